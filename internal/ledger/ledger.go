// =============================================
// File: internal/ledger/ledger.go
// =============================================
// Package ledger keeps the open positions of the controlled wallet.
// The whole ledger is one document: every mutation reads it, changes it and
// writes it back through the Store.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrStorageCorrupt возвращается, когда документ леджера не парсится.
	ErrStorageCorrupt = errors.New("ledger storage corrupt")

	// ErrInvalidPosition is returned by Upsert for a non-positive price or quantity.
	ErrInvalidPosition = errors.New("invalid position")
)

// Ledger is safe for concurrent use. All read-modify-write cycles are
// serialised by mu.
type Ledger struct {
	mu     sync.Mutex
	store  Store
	logger *zap.Logger
}

// New создаёт леджер поверх хранилища.
func New(store Store, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger.Named("ledger"),
	}
}

// Open выполняет первое чтение при старте. Повреждённый документ
// переносится в карантин, сервис продолжает работу с пустым леджером.
func (l *Ledger) Open(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	positions, err := l.loadForUpdate(ctx)
	if err != nil {
		return 0, err
	}
	l.logger.Info("Ledger opened", zap.Int("positions", len(positions)))
	return len(positions), nil
}

// GetAll returns a snapshot of all positions. The snapshot may be stale by
// the time the caller acts on it.
func (l *Ledger) GetAll(ctx context.Context) (map[string]Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

// Get returns a single position.
func (l *Ledger) Get(ctx context.Context, assetID string) (Position, bool, error) {
	positions, err := l.GetAll(ctx)
	if err != nil {
		return Position{}, false, err
	}
	p, ok := positions[assetID]
	return p, ok, nil
}

// Upsert добавляет позицию или усредняет существующую по объёму.
func (l *Ledger) Upsert(ctx context.Context, assetID string, price, quantity decimal.Decimal) error {
	if assetID == "" {
		return fmt.Errorf("%w: empty asset id", ErrInvalidPosition)
	}
	if !price.IsPositive() || !quantity.IsPositive() {
		return fmt.Errorf("%w: price=%s quantity=%s", ErrInvalidPosition, price, quantity)
	}

	return l.mutate(ctx, func(positions map[string]Position) bool {
		existing, ok := positions[assetID]
		if ok {
			positions[assetID] = existing.Merge(price, quantity)
		} else {
			positions[assetID] = Position{AverageEntryPrice: price, Quantity: quantity}
		}
		l.logger.Debug("Position upserted",
			zap.String("mint", assetID),
			zap.Bool("merged", ok),
			zap.String("avg_price", positions[assetID].AverageEntryPrice.String()),
			zap.String("quantity", positions[assetID].Quantity.String()))
		return true
	})
}

// Remove удаляет позицию. Отсутствие позиции не является ошибкой.
func (l *Ledger) Remove(ctx context.Context, assetID string) error {
	return l.mutate(ctx, func(positions map[string]Position) bool {
		if _, ok := positions[assetID]; !ok {
			return false
		}
		delete(positions, assetID)
		l.logger.Debug("Position removed", zap.String("mint", assetID))
		return true
	})
}

func (l *Ledger) mutate(ctx context.Context, fn func(map[string]Position) bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	positions, err := l.loadForUpdate(ctx)
	if err != nil {
		return err
	}
	if !fn(positions) {
		return nil
	}
	return l.save(ctx, positions)
}

// loadForUpdate reads the document; a corrupt document is moved aside and
// replaced by an empty ledger. Must be called with mu held.
func (l *Ledger) loadForUpdate(ctx context.Context) (map[string]Position, error) {
	positions, err := l.load(ctx)
	if err == nil {
		return positions, nil
	}
	if !errors.Is(err, ErrStorageCorrupt) {
		return nil, err
	}

	fields := []zap.Field{zap.Error(err)}
	if q, ok := l.store.(Quarantiner); ok {
		dst, qerr := q.Quarantine(ctx)
		if qerr != nil {
			l.logger.Error("Failed to quarantine corrupt ledger", zap.Error(qerr))
		} else {
			fields = append(fields, zap.String("moved_to", dst))
		}
	}
	l.logger.Warn("Ledger document corrupt, starting from empty ledger", fields...)
	return make(map[string]Position), nil
}

func (l *Ledger) load(ctx context.Context) (map[string]Position, error) {
	raw, err := l.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	positions := make(map[string]Position)
	if len(bytes.TrimSpace(raw)) == 0 {
		return positions, nil
	}
	if err := json.Unmarshal(raw, &positions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageCorrupt, err)
	}

	for id, p := range positions {
		if id == "" || !p.Valid() {
			delete(positions, id)
		}
	}
	return positions, nil
}

func (l *Ledger) save(ctx context.Context, positions map[string]Position) error {
	data, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	if err := l.store.Save(ctx, data); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}
