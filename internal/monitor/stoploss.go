// internal/monitor/stoploss.go
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-copybot/internal/audit"
	"github.com/rovshanmuradov/solana-copybot/internal/domain"
	"github.com/rovshanmuradov/solana-copybot/internal/executor"
	"github.com/rovshanmuradov/solana-copybot/internal/ledger"
	"github.com/rovshanmuradov/solana-copybot/internal/utils/logger"
	"github.com/rovshanmuradov/solana-copybot/internal/utils/metrics"
)

// ErrPriceFetchFailed помечает актив, для которого в этом тике нет цены.
var ErrPriceFetchFailed = errors.New("price fetch failed")

// DefaultStopLossFactor: доля цены входа, ниже которой позиция продаётся.
var DefaultStopLossFactor = decimal.RequireFromString("0.87")

// Positions is the part of the ledger the monitor reads and mutates.
type Positions interface {
	GetAll(ctx context.Context) (map[string]ledger.Position, error)
	Remove(ctx context.Context, assetID string) error
}

// PriceSource returns the current price of an asset in SOL.
type PriceSource interface {
	Price(ctx context.Context, mint string) (decimal.Decimal, error)
}

// TradeExecutor исполняет SELL-намерения.
type TradeExecutor interface {
	Execute(ctx context.Context, intent domain.TradeIntent) (*executor.Result, error)
}

// Config configures the stop-loss monitor.
type Config struct {
	Interval     time.Duration
	Factor       decimal.Decimal
	PriceTimeout time.Duration
	// Actor: адрес контролируемого кошелька, пишется в аудит.
	Actor string
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if !c.Factor.IsPositive() {
		c.Factor = DefaultStopLossFactor
	}
	if c.PriceTimeout <= 0 {
		c.PriceTimeout = 10 * time.Second
	}
}

// SweepResult summarises one pass over the ledger.
type SweepResult struct {
	Checked   int
	Skipped   int
	Triggered int
	Sold      int
}

// StopLoss periodically re-checks every held position. Ticks are
// independent: a failed sell leaves the entry for the next sweep.
type StopLoss struct {
	positions Positions
	prices    PriceSource
	exec      TradeExecutor
	audit     audit.Writer
	cfg       Config
	logger    *zap.Logger
	metrics   *metrics.Collector

	sweepMu sync.Mutex
}

// NewStopLoss создает монитор стоп-лосса.
func NewStopLoss(
	positions Positions,
	prices PriceSource,
	exec TradeExecutor,
	auditLog audit.Writer,
	cfg Config,
	logger *zap.Logger,
	collector *metrics.Collector,
) *StopLoss {
	cfg.applyDefaults()
	return &StopLoss{
		positions: positions,
		prices:    prices,
		exec:      exec,
		audit:     auditLog,
		cfg:       cfg,
		logger:    logger.Named("stop_loss"),
		metrics:   collector,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *StopLoss) Run(ctx context.Context) error {
	s.logger.Info("Starting stop-loss monitor",
		zap.Duration("interval", s.cfg.Interval),
		zap.String("factor", s.cfg.Factor.String()))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Stop-loss monitor stopped")
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep проверяет все позиции один раз. Если предыдущий проход ещё
// выполняется, вызов ничего не делает.
func (s *StopLoss) Sweep(ctx context.Context) SweepResult {
	var res SweepResult
	if !s.sweepMu.TryLock() {
		s.logger.Debug("Previous sweep still running, skipping tick")
		return res
	}
	defer s.sweepMu.Unlock()

	positions, err := s.positions.GetAll(ctx)
	if err != nil {
		s.logger.Warn("Ledger read failed, nothing to check this tick", zap.Error(err))
		positions = nil
	}
	s.metrics.SetOpenPositions(len(positions))

	// Стабильный порядок упрощает чтение логов.
	assets := make([]string, 0, len(positions))
	for id := range positions {
		assets = append(assets, id)
	}
	sort.Strings(assets)
	if len(assets) > 0 {
		defer logger.TrackPerformance(s.logger, "stop_loss_sweep")()
	}

	for _, assetID := range assets {
		if ctx.Err() != nil {
			break
		}
		res.Checked++

		triggered, sold, err := s.check(ctx, assetID, positions[assetID])
		switch {
		case errors.Is(err, ErrPriceFetchFailed):
			res.Skipped++
			continue
		case triggered:
			res.Triggered++
			if sold {
				res.Sold++
			}
		}
	}
	return res
}

func (s *StopLoss) check(ctx context.Context, assetID string, pos ledger.Position) (triggered, sold bool, err error) {
	log := s.logger.With(zap.String("mint", assetID))

	price, err := s.fetchPrice(ctx, assetID)
	if err != nil {
		log.Debug("Skipping asset this tick", zap.Error(err))
		return false, false, err
	}

	threshold := pos.StopLossThreshold(s.cfg.Factor)
	if !price.LessThan(threshold) {
		return false, false, nil
	}

	log.Warn("Stop-loss triggered",
		zap.String("entry_price", pos.AverageEntryPrice.String()),
		zap.String("price", price.String()),
		zap.String("threshold", threshold.String()))

	intent := domain.TradeIntent{
		Direction:         domain.Sell,
		AssetID:           assetID,
		AmountIn:          domain.FullBalance,
		InitiatingAccount: s.cfg.Actor,
		Reason:            domain.ReasonStopLoss,
	}

	result, execErr := s.exec.Execute(ctx, intent)
	record := audit.NewRecord(intent, s.cfg.Actor, execErr != nil)
	record.Amounts.Price = price.String()
	record.Amounts.EntryPrice = pos.AverageEntryPrice.String()
	record.Amounts.Quantity = pos.Quantity.String()
	if result != nil {
		record = record.WithTx(result.TxID)
		record.Simulated = result.Simulated
	}

	if execErr != nil {
		s.metrics.RecordStopLoss(metrics.OutcomeFailed)
		log.Error("Stop-loss sell failed, position kept for next sweep", zap.Error(execErr))
		s.appendAudit(log, record.WithError(execErr))
		return true, false, execErr
	}

	if err := s.positions.Remove(context.WithoutCancel(ctx), assetID); err != nil {
		// Продажа прошла, но запись осталась: следующий тик попробует снова.
		log.Error("Failed to remove position after stop-loss sell", zap.Error(err))
		s.metrics.RecordStopLoss(metrics.OutcomeFailed)
		s.appendAudit(log, record.WithError(fmt.Errorf("remove position: %w", err)))
		return true, false, err
	}

	s.metrics.RecordStopLoss(metrics.OutcomeSuccess)
	s.appendAudit(log, record)
	log.Info("Stop-loss position closed", zap.String("txid", result.TxID))
	return true, true, nil
}

func (s *StopLoss) fetchPrice(ctx context.Context, assetID string) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PriceTimeout)
	defer cancel()

	price, err := s.prices.Price(ctx, assetID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrPriceFetchFailed, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive price %s", ErrPriceFetchFailed, price)
	}
	return price, nil
}

func (s *StopLoss) appendAudit(log *zap.Logger, record audit.Record) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(record); err != nil {
		log.Error("Failed to append audit record", zap.Error(err), zap.String("event", string(record.Event)))
	}
}
