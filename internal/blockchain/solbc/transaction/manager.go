// internal/blockchain/solbc/transaction/manager.go
package transaction

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-copybot/internal/blockchain"
)

// Manager проверяет, отправляет и дожидается подтверждения транзакции.
// Транзакция отправляется ровно один раз.
type Manager struct {
	client    blockchain.Client
	logger    *zap.Logger
	config    Config
	validator *Validator
	monitor   *Monitor
}

func NewManager(client blockchain.Client, logger *zap.Logger, config Config) *Manager {
	monitor := NewMonitor(client, logger, config)
	return &Manager{
		client:    client,
		logger:    logger.Named("tx-manager"),
		config:    monitor.config,
		validator: NewValidator(logger),
		monitor:   monitor,
	}
}

// SendAndConfirm returns the signature even when confirmation fails, so
// the caller can record it. Cancelling ctx after the send does not stop
// the confirmation wait.
func (tm *Manager) SendAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, *Status, error) {
	if err := tm.validator.ValidateTransaction(tx); err != nil {
		tm.logger.Error("Transaction validation failed", zap.Error(err))
		return solana.Signature{}, nil, err
	}

	signature, err := tm.client.SendTransactionWithOpts(ctx, tx, blockchain.TransactionOptions{
		SkipPreflight:       tm.config.SkipPreflight,
		PreflightCommitment: tm.config.Commitment,
	})
	if err != nil {
		return solana.Signature{}, nil, fmt.Errorf("send transaction: %w", err)
	}

	tm.logger.Info("Transaction sent", zap.String("signature", signature.String()))

	// Отправленная транзакция может попасть в блок и после отмены ctx,
	// поэтому ожидание ограничено только ConfirmationTime.
	status, err := tm.monitor.AwaitConfirmation(context.WithoutCancel(ctx), signature)
	if err != nil {
		tm.logger.Error("Transaction confirmation failed",
			zap.String("signature", signature.String()),
			zap.Error(err))
		return signature, status, err
	}

	return signature, status, nil
}
