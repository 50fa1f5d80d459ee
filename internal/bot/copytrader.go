// internal/bot/copytrader.go
package bot

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-copybot/internal/audit"
	"github.com/rovshanmuradov/solana-copybot/internal/domain"
	"github.com/rovshanmuradov/solana-copybot/internal/executor"
	"github.com/rovshanmuradov/solana-copybot/internal/stream"
	"github.com/rovshanmuradov/solana-copybot/internal/utils/logger"
)

// Classifier превращает событие потока в намерение.
type Classifier interface {
	Classify(ctx context.Context, ev stream.Event) (domain.TradeIntent, bool)
}

// TradeExecutor исполняет намерение.
type TradeExecutor interface {
	Execute(ctx context.Context, intent domain.TradeIntent) (*executor.Result, error)
}

// PositionWriter применяет итог сделки к позициям.
type PositionWriter interface {
	Upsert(ctx context.Context, assetID string, price, quantity decimal.Decimal) error
	Remove(ctx context.Context, assetID string) error
}

// CopyTrader связывает классификатор, исполнение, позиции и аудит.
// События обрабатываются по одному, в порядке поступления.
type CopyTrader struct {
	classifier Classifier
	exec       TradeExecutor
	positions  PositionWriter
	audit      audit.Writer
	actor      string
	logger     *zap.Logger
}

func NewCopyTrader(
	classifier Classifier,
	exec TradeExecutor,
	positions PositionWriter,
	auditLog audit.Writer,
	actor string,
	log *zap.Logger,
) *CopyTrader {
	return &CopyTrader{
		classifier: classifier,
		exec:       exec,
		positions:  positions,
		audit:      auditLog,
		actor:      actor,
		logger:     log.Named("copy_trader"),
	}
}

// HandleEvent обрабатывает одно событие потока. Ошибка означает неудачную
// сделку; события, не требующие действий, возвращают nil.
func (c *CopyTrader) HandleEvent(ctx context.Context, ev stream.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic while handling event", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("panic while handling event: %v", r)
		}
	}()

	intent, ok := c.classifier.Classify(ctx, ev)
	if !ok {
		return nil
	}
	return c.Submit(ctx, intent)
}

// Submit исполняет намерение и применяет результат к позициям и аудиту.
func (c *CopyTrader) Submit(ctx context.Context, intent domain.TradeIntent) error {
	log := logger.IntentFields(c.logger, intent)

	result, execErr := c.exec.Execute(ctx, intent)

	record := audit.NewRecord(intent, c.actor, execErr != nil)
	if result != nil {
		record = record.WithTx(result.TxID)
		record.Simulated = result.Simulated
		if intent.IsBuy() {
			record.Amounts.Price = result.Price.String()
			record.Amounts.Quantity = result.Quantity.String()
		}
	}

	if execErr != nil {
		log.Error("Copy trade failed", zap.Error(execErr))
		c.appendAudit(log, record.WithError(execErr))
		return execErr
	}

	// Сделка уже исполнена: позиция обновляется даже при остановке сервиса.
	if err := c.apply(context.WithoutCancel(ctx), intent, result); err != nil {
		// Сделка прошла, но позиция не обновлена: фиксируем это в аудите.
		log.Error("Failed to update position after trade", zap.Error(err), zap.String("txid", result.TxID))
		c.appendAudit(log, record.WithError(err))
		return err
	}

	c.appendAudit(log, record)
	log.Info("Copy trade recorded", zap.String("txid", result.TxID), zap.Bool("simulated", result.Simulated))
	return nil
}

func (c *CopyTrader) apply(ctx context.Context, intent domain.TradeIntent, result *executor.Result) error {
	if intent.IsBuy() {
		if err := c.positions.Upsert(ctx, intent.AssetID, result.Price, result.Quantity); err != nil {
			return fmt.Errorf("upsert position: %w", err)
		}
		return nil
	}
	if err := c.positions.Remove(ctx, intent.AssetID); err != nil {
		return fmt.Errorf("remove position: %w", err)
	}
	return nil
}

func (c *CopyTrader) appendAudit(log *zap.Logger, record audit.Record) {
	if c.audit == nil {
		return
	}
	if err := c.audit.Append(record); err != nil {
		log.Error("Failed to append audit record", zap.Error(err), zap.String("event", string(record.Event)))
	}
}

// Consume читает события до закрытия канала или отмены ctx.
func (c *CopyTrader) Consume(ctx context.Context, events <-chan stream.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			// ошибки уже залогированы и записаны в аудит
			_ = c.HandleEvent(ctx, ev)
		}
	}
}
