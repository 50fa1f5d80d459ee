package monitor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-copybot/internal/audit"
	"github.com/rovshanmuradov/solana-copybot/internal/domain"
	"github.com/rovshanmuradov/solana-copybot/internal/executor"
	"github.com/rovshanmuradov/solana-copybot/internal/ledger"
)

type fakePrices struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	errs   map[string]error
}

func (f *fakePrices) Price(_ context.Context, mint string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[mint]; err != nil {
		return decimal.Zero, err
	}
	return f.prices[mint], nil
}

type fakeExecutor struct {
	mu      sync.Mutex
	intents []domain.TradeIntent
	err     error
	// during вызывается посреди сделки, до её завершения
	during func()
}

func (f *fakeExecutor) Execute(_ context.Context, intent domain.TradeIntent) (*executor.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents = append(f.intents, intent)
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &executor.Result{TxID: "Simulated-SL-1", Simulated: true}, nil
}

type memoryAudit struct {
	mu      sync.Mutex
	records []audit.Record
}

func (m *memoryAudit) Append(r audit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

type fixture struct {
	ledger *ledger.Ledger
	prices *fakePrices
	exec   *fakeExecutor
	audit  *memoryAudit
	sl     *StopLoss
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	f := &fixture{
		ledger: ledger.New(ledger.NewFileStore(filepath.Join(t.TempDir(), "positions.json")), log),
		prices: &fakePrices{prices: map[string]decimal.Decimal{}, errs: map[string]error{}},
		exec:   &fakeExecutor{},
		audit:  &memoryAudit{},
	}
	f.sl = NewStopLoss(f.ledger, f.prices, f.exec, f.audit, Config{Actor: "wallet1"}, log, nil)
	return f
}

func (f *fixture) hold(t *testing.T, mint string, entry string) {
	t.Helper()
	require.NoError(t, f.ledger.Upsert(context.Background(), mint, decimal.RequireFromString(entry), decimal.NewFromInt(5)))
}

func TestStopLossThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.hold(t, "mintA", "1.0")
	f.hold(t, "mintB", "1.0")
	f.prices.prices["mintA"] = decimal.RequireFromString("0.86")
	f.prices.prices["mintB"] = decimal.RequireFromString("0.88")

	res := f.sl.Sweep(ctx)
	assert.Equal(t, SweepResult{Checked: 2, Triggered: 1, Sold: 1}, res)

	require.Len(t, f.exec.intents, 1)
	intent := f.exec.intents[0]
	assert.Equal(t, domain.Sell, intent.Direction)
	assert.Equal(t, "mintA", intent.AssetID)
	assert.Equal(t, domain.FullBalance, intent.AmountIn)
	assert.Equal(t, domain.ReasonStopLoss, intent.Reason)

	positions, err := f.ledger.GetAll(ctx)
	require.NoError(t, err)
	assert.NotContains(t, positions, "mintA")
	assert.Contains(t, positions, "mintB")

	require.Len(t, f.audit.records, 1)
	rec := f.audit.records[0]
	assert.Equal(t, audit.StopLossSell, rec.Event)
	assert.Equal(t, "0.86", rec.Amounts.Price)
	assert.Equal(t, "1", rec.Amounts.EntryPrice)
	assert.Equal(t, "wallet1", rec.Actor)
	require.NotNil(t, rec.TxID)
	assert.Equal(t, "Simulated-SL-1", *rec.TxID)
	assert.True(t, rec.Simulated)
	assert.Nil(t, rec.Error)
}

func TestStopLossExactThresholdDoesNotTrigger(t *testing.T) {
	f := newFixture(t)
	f.hold(t, "mintA", "1.0")
	f.prices.prices["mintA"] = decimal.RequireFromString("0.87")

	res := f.sl.Sweep(context.Background())
	assert.Equal(t, 0, res.Triggered)
	assert.Empty(t, f.exec.intents)
}

func TestStopLossPriceFailureSkipsAsset(t *testing.T) {
	f := newFixture(t)
	f.hold(t, "mintA", "1.0")
	f.hold(t, "mintB", "1.0")
	f.prices.errs["mintA"] = errors.New("502 bad gateway")
	f.prices.prices["mintB"] = decimal.RequireFromString("0.5")

	res := f.sl.Sweep(context.Background())
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Sold)

	require.Len(t, f.exec.intents, 1)
	assert.Equal(t, "mintB", f.exec.intents[0].AssetID)
	// Ошибка цены не пишется в аудит.
	require.Len(t, f.audit.records, 1)
	assert.Equal(t, audit.StopLossSell, f.audit.records[0].Event)

	_, ok, err := f.ledger.Get(context.Background(), "mintA")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStopLossZeroPriceIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.hold(t, "mintA", "1.0")
	f.prices.prices["mintA"] = decimal.Zero

	res := f.sl.Sweep(context.Background())
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, f.exec.intents)
}

func TestStopLossSellFailureKeepsEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.hold(t, "mintA", "2.0")
	f.prices.prices["mintA"] = decimal.RequireFromString("1.0")
	f.exec.err = executor.ErrQuoteUnavailable

	res := f.sl.Sweep(ctx)
	assert.Equal(t, 1, res.Triggered)
	assert.Equal(t, 0, res.Sold)

	_, ok, err := f.ledger.Get(ctx, "mintA")
	require.NoError(t, err)
	assert.True(t, ok, "entry stays for the next sweep")

	require.Len(t, f.audit.records, 1)
	rec := f.audit.records[0]
	assert.Equal(t, audit.StopLossError, rec.Event)
	require.NotNil(t, rec.Error)
	assert.Contains(t, *rec.Error, "quote")
	assert.Nil(t, rec.TxID)

	// Следующий тик повторяет попытку.
	f.exec.err = nil
	res = f.sl.Sweep(ctx)
	assert.Equal(t, 1, res.Sold)
	_, ok, err = f.ledger.Get(ctx, "mintA")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, f.exec.intents, 2)
}

func TestStopLossEmptyLedger(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, SweepResult{}, f.sl.Sweep(context.Background()))
}

func TestStopLossCustomFactor(t *testing.T) {
	log := zaptest.NewLogger(t)
	l := ledger.New(ledger.NewFileStore(filepath.Join(t.TempDir(), "positions.json")), log)
	require.NoError(t, l.Upsert(context.Background(), "mintA", decimal.NewFromInt(1), decimal.NewFromInt(1)))

	prices := &fakePrices{prices: map[string]decimal.Decimal{"mintA": decimal.RequireFromString("0.95")}}
	exec := &fakeExecutor{}
	sl := NewStopLoss(l, prices, exec, nil, Config{Factor: decimal.RequireFromString("0.97")}, log, nil)

	res := sl.Sweep(context.Background())
	assert.Equal(t, 1, res.Sold)
}

func TestStopLossRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.hold(t, "mintA", "1.0")
	f.prices.prices["mintA"] = decimal.RequireFromString("0.1")
	f.sl.cfg.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.sl.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok, err := f.ledger.Get(context.Background(), "mintA")
		return err == nil && !ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// strictPositions отказывает в записи при отменённом контексте, как сетевое хранилище.
type strictPositions struct {
	*ledger.Ledger
}

func (p strictPositions) Remove(ctx context.Context, assetID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.Ledger.Remove(ctx, assetID)
}

func TestStopLossSellLandsDuringShutdown(t *testing.T) {
	f := newFixture(t)
	f.hold(t, "mintA", "1.0")
	f.prices.prices["mintA"] = decimal.RequireFromString("0.5")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.exec.during = cancel

	sl := NewStopLoss(strictPositions{f.ledger}, f.prices, f.exec, f.audit, Config{Actor: "wallet1"}, zaptest.NewLogger(t), nil)
	res := sl.Sweep(ctx)
	assert.Equal(t, SweepResult{Checked: 1, Triggered: 1, Sold: 1}, res)

	positions, err := f.ledger.GetAll(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, positions, "mintA")

	require.Len(t, f.audit.records, 1)
	assert.Equal(t, audit.StopLossSell, f.audit.records[0].Event)
	assert.Nil(t, f.audit.records[0].Error)
}
