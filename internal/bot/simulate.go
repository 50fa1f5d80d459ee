// internal/bot/simulate.go
package bot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-copybot/internal/config"
	"github.com/rovshanmuradov/solana-copybot/internal/domain"
)

// SimulateOptions описывает ручной прогон сделки через CopyTrader.
type SimulateOptions struct {
	Whale   string
	AssetID string
	// AmountIn: размер нашей покупки в лампортах (BUY_SOL).
	AmountIn uint64
	// WhaleLamports: размер сделки whale, попадает только в аудит.
	WhaleLamports uint64
	SourceTxID    string
	Buy           bool
	Sell          bool
}

// DefaultSimulateOptions: whale покупает на 3 SOL, мы повторяем на размер
// покупки по умолчанию, затем продаём тот же актив.
func DefaultSimulateOptions() SimulateOptions {
	return SimulateOptions{
		Whale:         "BHREKFkPQgAtDs8Vb1UfLkUpjG6ScidTjHaCWFuG2AtX",
		AssetID:       "So11111111111111111111111111111111111111112",
		AmountIn:      uint64(config.DefaultBuySOL * domain.LamportsPerSOL),
		WhaleLamports: 3 * domain.LamportsPerSOL,
		SourceTxID:    "Simulated-Test",
		Buy:           true,
		Sell:          true,
	}
}

// Simulate прогоняет BUY и/или SELL так, как если бы их прислал поток.
// Ошибки обеих сделок объединяются.
func Simulate(ctx context.Context, trader *CopyTrader, opts SimulateOptions, log *zap.Logger) error {
	if opts.AssetID == "" {
		return errors.New("simulate: asset id is required")
	}
	if !opts.Buy && !opts.Sell {
		return errors.New("simulate: nothing to do, enable buy or sell")
	}
	if opts.Buy && opts.AmountIn == 0 {
		return errors.New("simulate: buy size is required")
	}

	base := domain.TradeIntent{
		AssetID:           opts.AssetID,
		InitiatingAccount: opts.Whale,
		Reason:            domain.ReasonCopy,
	}

	var errs []error
	if opts.Buy {
		intent := base
		intent.Direction = domain.Buy
		intent.AmountIn = opts.AmountIn
		intent.WhaleLamports = opts.WhaleLamports
		intent.CorrelatedSourceTxID = opts.SourceTxID + "-BuyTxid"

		log.Info("Simulating whale buy",
			zap.String("mint", opts.AssetID),
			zap.Uint64("whale_lamports", opts.WhaleLamports),
			zap.Uint64("buy_lamports", opts.AmountIn))
		if err := trader.Submit(ctx, intent); err != nil {
			errs = append(errs, fmt.Errorf("buy: %w", err))
		}
	}

	if opts.Sell {
		intent := base
		intent.Direction = domain.Sell
		intent.AmountIn = domain.FullBalance
		intent.CorrelatedSourceTxID = opts.SourceTxID + "-SellTxid"

		log.Info("Simulating whale sell", zap.String("mint", opts.AssetID))
		if err := trader.Submit(ctx, intent); err != nil {
			errs = append(errs, fmt.Errorf("sell: %w", err))
		}
	}

	return errors.Join(errs...)
}
