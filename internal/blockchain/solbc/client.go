// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-copybot/internal/blockchain"
	"github.com/rovshanmuradov/solana-copybot/internal/utils/metrics"
)

// Config задаёт параметры RPC-клиента.
type Config struct {
	RPCURL     string
	Commitment rpc.CommitmentType
	// BlockhashRetries ограничивает число попыток GetLatestBlockhash.
	BlockhashRetries uint
}

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
type Client struct {
	rpc     *rpc.Client
	url     string
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewClient создаёт новый клиент, принимая конфигурацию и логгер через dependency injection.
func NewClient(cfg Config, logger *zap.Logger, collector *metrics.Collector) *Client {
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	if cfg.BlockhashRetries == 0 {
		cfg.BlockhashRetries = 3
	}
	return &Client{
		rpc:     rpc.New(cfg.RPCURL),
		url:     cfg.RPCURL,
		cfg:     cfg,
		logger:  logger.Named("solbc-client"),
		metrics: collector,
	}
}

// GetRecentBlockhash получает свежий blockhash, повторяя запрос при сетевых сбоях.
func (c *Client) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	notify := func(err error, d time.Duration) {
		c.logger.Warn("GetLatestBlockhash failed, retrying",
			zap.Error(err),
			zap.Duration("retry_in", d))
	}

	operation := func() (solana.Hash, error) {
		start := time.Now()
		result, err := c.rpc.GetLatestBlockhash(ctx, c.cfg.Commitment)
		c.metrics.RecordRPCLatency("getLatestBlockhash", time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				return solana.Hash{}, backoff.Permanent(ctx.Err())
			}
			return solana.Hash{}, err
		}
		if result == nil || result.Value == nil {
			return solana.Hash{}, backoff.Permanent(NewError(ErrInvalidResponse, c.url, "getLatestBlockhash"))
		}
		return result.Value.Blockhash, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	hash, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.cfg.BlockhashRetries),
		backoff.WithNotify(notify))
	if err != nil {
		c.logger.Error("GetRecentBlockhash error", zap.Error(err))
		return solana.Hash{}, NewError(err, c.url, "getLatestBlockhash")
	}
	return hash, nil
}

// SendTransactionWithOpts отправляет транзакцию с заданными опциями. Повторной
// отправки нет: решение о повторе принимает вызывающая сторона.
func (c *Client) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	start := time.Now()
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
	})
	c.metrics.RecordRPCLatency("sendTransaction", time.Since(start))
	if err != nil {
		c.logger.Error("SendTransactionWithOpts error",
			zap.String("reason", DescribeError(err)),
			zap.Error(err))
		return solana.Signature{}, NewError(err, c.url, "sendTransaction")
	}
	return sig, nil
}

// GetSignatureStatuses получает статусы транзакций.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	start := time.Now()
	result, err := c.rpc.GetSignatureStatuses(ctx, false, signatures...)
	c.metrics.RecordRPCLatency("getSignatureStatuses", time.Since(start))
	if err != nil {
		c.logger.Debug("GetSignatureStatuses error", zap.Error(err))
		return nil, NewError(err, c.url, "getSignatureStatuses")
	}
	return result, nil
}

// Close закрывает HTTP-транспорт RPC-клиента.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
