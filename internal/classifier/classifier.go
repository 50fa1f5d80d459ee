// =============================================
// File: internal/classifier/classifier.go
// =============================================
// Package classifier decides whether a stream event is a trade of a
// tracked account worth mirroring, and turns it into a TradeIntent.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-copybot/internal/domain"
	"github.com/rovshanmuradov/solana-copybot/internal/ledger"
	"github.com/rovshanmuradov/solana-copybot/internal/stream"
	"github.com/rovshanmuradov/solana-copybot/internal/utils/metrics"
)

// Decision labels, also used as metric values.
const (
	ResultNotTransaction = "not_transaction"
	ResultFailedTx       = "failed_tx"
	ResultNoInitiator    = "no_initiator"
	ResultUntracked      = "untracked"
	ResultNoDEX          = "no_dex"
	ResultNoAsset        = "no_asset"
	ResultBelowMinimum   = "below_minimum"
	ResultBuy            = "buy"
	ResultSell           = "sell"
	ResultPanic          = "panic"
)

// PositionReader is the part of the ledger the classifier needs.
type PositionReader interface {
	GetAll(ctx context.Context) (map[string]ledger.Position, error)
}

// Config задаёт фильтры классификатора.
type Config struct {
	Tracked []string
	// Programs: id программ DEX; пустой список означает DefaultDEXPrograms.
	Programs         []string
	MinWhaleLamports uint64
	BuyLamports      uint64
}

// Classifier is stateless apart from its configuration.
type Classifier struct {
	tracked  map[solana.PublicKey]struct{}
	programs map[solana.PublicKey]string
	cfg      Config
	ledger   PositionReader
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// New разбирает адреса из конфигурации.
func New(cfg Config, positions PositionReader, logger *zap.Logger, collector *metrics.Collector) (*Classifier, error) {
	if len(cfg.Tracked) == 0 {
		return nil, errors.New("classifier: tracked set is empty")
	}
	if cfg.BuyLamports == 0 {
		return nil, errors.New("classifier: buy amount must be positive")
	}

	c := &Classifier{
		tracked:  make(map[solana.PublicKey]struct{}, len(cfg.Tracked)),
		programs: make(map[solana.PublicKey]string),
		cfg:      cfg,
		ledger:   positions,
		logger:   logger.Named("classifier"),
		metrics:  collector,
	}

	for _, s := range cfg.Tracked {
		pk, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("invalid tracked account %q: %w", s, err)
		}
		c.tracked[pk] = struct{}{}
	}

	if len(cfg.Programs) == 0 {
		for id, name := range DefaultDEXPrograms {
			c.programs[solana.MustPublicKeyFromBase58(id)] = name
		}
	} else {
		for _, s := range cfg.Programs {
			pk, err := solana.PublicKeyFromBase58(s)
			if err != nil {
				return nil, fmt.Errorf("invalid DEX program %q: %w", s, err)
			}
			name := DefaultDEXPrograms[s]
			if name == "" {
				name = "custom"
			}
			c.programs[pk] = name
		}
	}

	return c, nil
}

// Classify возвращает намерение и true, если событие нужно повторить.
// Никогда не паникует: любое непредвиденное состояние означает отказ.
func (c *Classifier) Classify(ctx context.Context, ev stream.Event) (intent domain.TradeIntent, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic while classifying event", zap.Any("panic", r))
			c.metrics.RecordClassification(ResultPanic)
			intent, ok = domain.TradeIntent{}, false
		}
	}()

	intent, result := c.classify(ctx, ev)
	c.metrics.RecordClassification(result)
	return intent, result == ResultBuy || result == ResultSell
}

func (c *Classifier) classify(ctx context.Context, ev stream.Event) (domain.TradeIntent, string) {
	if !ev.IsTransaction() {
		return domain.TradeIntent{}, ResultNotTransaction
	}
	update := ev.Transaction
	if update.Failed() {
		return domain.TradeIntent{}, ResultFailedTx
	}

	initiator, ok := update.Initiator()
	if !ok {
		return domain.TradeIntent{}, ResultNoInitiator
	}
	if _, tracked := c.tracked[initiator]; !tracked {
		return domain.TradeIntent{}, ResultUntracked
	}

	dex, ok := c.matchProgram(update)
	if !ok {
		c.logger.Debug("Tracked account activity without DEX program",
			zap.String("whale", initiator.String()),
			zap.String("signature", update.Signature.String()))
		return domain.TradeIntent{}, ResultNoDEX
	}

	asset, source := resolveAsset(update, initiator)
	if asset.IsZero() {
		return domain.TradeIntent{}, ResultNoAsset
	}
	assetID := asset.String()

	log := c.logger.With(
		zap.String("whale", initiator.String()),
		zap.String("mint", assetID),
		zap.String("dex", dex),
		zap.String("asset_source", source),
		zap.String("signature", update.Signature.String()))

	held, err := c.isHeld(ctx, assetID)
	if err != nil {
		log.Warn("Ledger read failed, treating ledger as empty", zap.Error(err))
	}

	intent := domain.TradeIntent{
		AssetID:              assetID,
		InitiatingAccount:    initiator.String(),
		CorrelatedSourceTxID: base58.Encode(update.Signature[:]),
		Reason:               domain.ReasonCopy,
		WhaleLamports:        whaleLamports(update.Meta),
	}

	if held {
		intent.Direction = domain.Sell
		intent.AmountIn = domain.FullBalance
		log.Info("Whale trade classified", zap.String("direction", string(intent.Direction)))
		return intent, ResultSell
	}

	if intent.WhaleLamports < c.cfg.MinWhaleLamports {
		log.Debug("Whale trade below minimum size",
			zap.Uint64("whale_lamports", intent.WhaleLamports),
			zap.Uint64("min_lamports", c.cfg.MinWhaleLamports))
		return domain.TradeIntent{}, ResultBelowMinimum
	}

	intent.Direction = domain.Buy
	intent.AmountIn = c.cfg.BuyLamports
	log.Info("Whale trade classified",
		zap.String("direction", string(intent.Direction)),
		zap.Uint64("whale_lamports", intent.WhaleLamports))
	return intent, ResultBuy
}

func (c *Classifier) matchProgram(update *stream.TransactionUpdate) (string, bool) {
	for _, id := range update.ProgramIDs() {
		if name, ok := c.programs[id]; ok {
			return name, true
		}
	}
	return "", false
}

func (c *Classifier) isHeld(ctx context.Context, assetID string) (bool, error) {
	if c.ledger == nil {
		return false, nil
	}
	positions, err := c.ledger.GetAll(ctx)
	if err != nil {
		return false, err
	}
	_, ok := positions[assetID]
	return ok, nil
}

// resolveAsset берёт mint с наибольшим по модулю изменением баланса
// инициатора (кроме WSOL). Без токен-балансов используется последний
// ключ аккаунта.
func resolveAsset(update *stream.TransactionUpdate, initiator solana.PublicKey) (solana.PublicKey, string) {
	if meta := update.Meta; meta != nil && (len(meta.PreTokenBalances) > 0 || len(meta.PostTokenBalances) > 0) {
		deltas := make(map[solana.PublicKey]decimal.Decimal)
		var order []solana.PublicKey

		apply := func(balances []rpc.TokenBalance, sign int64) {
			for _, b := range balances {
				if b.Owner == nil || !b.Owner.Equals(initiator) || b.Mint.Equals(WSOLMint) || b.UiTokenAmount == nil {
					continue
				}
				amount, err := decimal.NewFromString(b.UiTokenAmount.Amount)
				if err != nil {
					continue
				}
				if _, seen := deltas[b.Mint]; !seen {
					order = append(order, b.Mint)
				}
				deltas[b.Mint] = deltas[b.Mint].Add(amount.Mul(decimal.NewFromInt(sign)))
			}
		}
		apply(meta.PostTokenBalances, 1)
		apply(meta.PreTokenBalances, -1)

		var (
			best    solana.PublicKey
			bestAbs decimal.Decimal
		)
		for _, mint := range order {
			abs := deltas[mint].Abs()
			if abs.GreaterThan(bestAbs) {
				best, bestAbs = mint, abs
			}
		}
		if !best.IsZero() {
			return best, "token_balance"
		}
	}

	keys := update.AccountKeys
	if len(keys) < 2 {
		return solana.PublicKey{}, ""
	}
	return keys[len(keys)-1], "last_account_key"
}

// whaleLamports: SOL, которые инициатор реально потратил или получил, без комиссии.
func whaleLamports(meta *rpc.TransactionMeta) uint64 {
	if meta == nil || len(meta.PreBalances) == 0 || len(meta.PostBalances) == 0 {
		return 0
	}
	delta := int64(meta.PreBalances[0]) - int64(meta.PostBalances[0]) - int64(meta.Fee)
	if delta < 0 {
		delta = -delta
	}
	return uint64(delta)
}
