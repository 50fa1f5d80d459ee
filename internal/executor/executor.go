// =============================================
// File: internal/executor/executor.go
// =============================================
// Package executor turns a TradeIntent into a signed swap transaction and,
// in live mode, broadcasts it and waits for confirmation. It never touches
// the ledger: callers apply the Result.
package executor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-copybot/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-copybot/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/solana-copybot/internal/domain"
	"github.com/rovshanmuradov/solana-copybot/internal/utils/logger"
	"github.com/rovshanmuradov/solana-copybot/internal/utils/metrics"
)

// QuoteService строит свапы и отдаёт цены.
type QuoteService interface {
	SwapTransaction(ctx context.Context, wallet, side, mint string, inAmount uint64) (string, error)
	Price(ctx context.Context, mint string) (decimal.Decimal, error)
}

// BlockhashSource отдаёт свежий blockhash.
type BlockhashSource interface {
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
}

// Broadcaster отправляет подписанную транзакцию и ждёт подтверждения.
type Broadcaster interface {
	SendAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, *transaction.Status, error)
}

// Signer подписывает транзакции контролируемого кошелька.
type Signer interface {
	Address() string
	SignTransaction(tx *solana.Transaction) error
}

// Config задаёт режим работы.
type Config struct {
	// Simulation: транзакция собирается и подписывается, но не отправляется.
	Simulation bool
}

// Result описывает успешную сделку. On a failure after broadcast Execute
// also returns a Result carrying only TxID.
type Result struct {
	TxID      string
	Simulated bool
	// Price: цена единицы актива в SOL на момент BUY.
	Price decimal.Decimal
	// Quantity: ожидаемое количество купленного актива.
	Quantity decimal.Decimal
}

// Executor is safe for concurrent use if its collaborators are.
type Executor struct {
	quotes      QuoteService
	blockhashes BlockhashSource
	broadcaster Broadcaster
	signer      Signer
	cfg         Config
	logger      *zap.Logger
	metrics     *metrics.Collector
}

// New создаёт пайплайн исполнения сделок.
func New(
	quotes QuoteService,
	blockhashes BlockhashSource,
	broadcaster Broadcaster,
	signer Signer,
	cfg Config,
	log *zap.Logger,
	collector *metrics.Collector,
) *Executor {
	return &Executor{
		quotes:      quotes,
		blockhashes: blockhashes,
		broadcaster: broadcaster,
		signer:      signer,
		cfg:         cfg,
		logger:      log.Named("executor"),
		metrics:     collector,
	}
}

// Simulation reports whether transactions are only built and signed.
func (e *Executor) Simulation() bool {
	return e.cfg.Simulation
}

// Execute исполняет намерение целиком и возвращает итог.
func (e *Executor) Execute(ctx context.Context, intent domain.TradeIntent) (*Result, error) {
	start := time.Now()
	log := logger.IntentFields(e.logger, intent)

	res, err := e.execute(ctx, log, intent)

	e.metrics.RecordSwap(string(intent.Direction), string(intent.Reason), outcomeOf(err), e.cfg.Simulation, time.Since(start))
	if err != nil {
		log.Warn("Swap failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return res, err
	}

	log.Info("Swap completed",
		zap.String("txid", res.TxID),
		zap.Bool("simulated", res.Simulated),
		zap.String("price", res.Price.String()),
		zap.String("quantity", res.Quantity.String()),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (e *Executor) execute(ctx context.Context, log *zap.Logger, intent domain.TradeIntent) (*Result, error) {
	if intent.AssetID == "" {
		return nil, fmt.Errorf("%w: empty asset id", ErrInvalidIntent)
	}
	if intent.IsBuy() && intent.AmountIn == 0 {
		return nil, fmt.Errorf("%w: buy without amount", ErrInvalidIntent)
	}

	res := &Result{Simulated: e.cfg.Simulation}

	// Цена нужна как опорная для записи в леджер.
	if intent.IsBuy() {
		price, err := e.quotes.Price(ctx, intent.AssetID)
		if err != nil {
			return nil, fmt.Errorf("%w: price lookup: %w", ErrQuoteUnavailable, err)
		}
		res.Price = price
		res.Quantity = decimal.New(int64(intent.AmountIn), -9).Div(price)
	}

	encoded, err := e.quotes.SwapTransaction(ctx, e.signer.Address(), string(intent.Direction), intent.AssetID, intent.AmountIn)
	if err != nil {
		return nil, fmt.Errorf("%w: swap request: %w", ErrQuoteUnavailable, err)
	}

	tx, err := decodeTransaction(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuoteUnavailable, err)
	}

	if err := e.sign(ctx, tx); err != nil {
		return nil, err
	}

	if e.cfg.Simulation {
		res.TxID = simulatedTxID(intent)
		log.Debug("Simulation mode, transaction not sent", zap.String("txid", res.TxID))
		return res, nil
	}

	sig, status, err := e.broadcaster.SendAndConfirm(ctx, tx)
	if err != nil {
		return failedResult(sig), classifySendError(sig, err)
	}

	res.TxID = sig.String()
	if status != nil {
		log.Debug("Confirmation status",
			zap.String("status", status.Status),
			zap.Uint64("slot", status.Slot))
	}
	return res, nil
}

// sign заменяет blockhash на свежий и подписывает транзакцию кошельком.
func (e *Executor) sign(ctx context.Context, tx *solana.Transaction) error {
	blockhash, err := e.blockhashes.GetRecentBlockhash(ctx)
	if err != nil {
		return fmt.Errorf("%w: blockhash: %w", ErrSigning, err)
	}
	tx.Message.RecentBlockhash = blockhash

	if err := e.signer.SignTransaction(tx); err != nil {
		return fmt.Errorf("%w: %w", ErrSigning, err)
	}
	return nil
}

func decodeTransaction(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64 transaction: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("decode wire transaction: %w", err)
	}
	return tx, nil
}

func simulatedTxID(intent domain.TradeIntent) string {
	kind := string(intent.Direction)
	if intent.Reason == domain.ReasonStopLoss {
		kind = "SL"
	}
	return fmt.Sprintf("Simulated-%s-%s", kind, uuid.NewString())
}

func failedResult(sig solana.Signature) *Result {
	if sig.IsZero() {
		return nil
	}
	return &Result{TxID: sig.String()}
}

func classifySendError(sig solana.Signature, err error) error {
	txID := ""
	if !sig.IsZero() {
		txID = sig.String()
	}

	var failed *transaction.FailedError
	switch {
	case errors.As(err, &failed):
		return &TransactionFailedError{TxID: txID, Reason: failed.Reason, Err: err}
	case errors.Is(err, transaction.ErrConfirmationTimeout):
		return fmt.Errorf("%w: %s", ErrConfirmationTimeout, txID)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("confirmation aborted for %s: %w", txID, err)
	default:
		return &TransactionFailedError{TxID: txID, Reason: solbc.DescribeError(err), Err: err}
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrQuoteUnavailable):
		return metrics.OutcomeQuote
	case errors.Is(err, ErrConfirmationTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return metrics.OutcomeAborted
	default:
		return metrics.OutcomeFailed
	}
}
