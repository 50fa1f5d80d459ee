// internal/blockchain/solbc/transaction/monitor.go
package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-copybot/internal/blockchain/solbc"
)

// StatusSource отдаёт статусы подписей.
type StatusSource interface {
	GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

type Monitor struct {
	client StatusSource
	logger *zap.Logger
	config Config
}

func NewMonitor(client StatusSource, logger *zap.Logger, config Config) *Monitor {
	defaults := DefaultConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.ConfirmationTime <= 0 {
		config.ConfirmationTime = defaults.ConfirmationTime
	}
	if config.Commitment == "" {
		config.Commitment = defaults.Commitment
	}
	return &Monitor{
		client: client,
		logger: logger.Named("tx-monitor"),
		config: config,
	}
}

// GetTransactionStatus возвращает текущий статус транзакции без ожидания.
func (m *Monitor) GetTransactionStatus(ctx context.Context, signature solana.Signature) (*Status, error) {
	response, err := m.client.GetSignatureStatuses(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction status: %w", err)
	}

	if response == nil || len(response.Value) == 0 || response.Value[0] == nil {
		return &Status{
			Signature: signature.String(),
			Status:    StatusPending,
			Timestamp: time.Now(),
		}, nil
	}

	status := response.Value[0]
	txStatus := &Status{
		Signature: signature.String(),
		Timestamp: time.Now(),
		Slot:      status.Slot,
	}

	if status.Confirmations != nil {
		txStatus.Confirmations = *status.Confirmations
	}

	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		txStatus.Status = StatusFinalized
	case rpc.ConfirmationStatusConfirmed:
		txStatus.Status = StatusConfirmed
	default:
		txStatus.Status = StatusPending
	}

	if status.Err != nil {
		txStatus.Error = solbc.DescribeStatusError(status.Err)
		txStatus.Status = StatusFailed
	}

	return txStatus, nil
}

func (m *Monitor) reached(status *Status) bool {
	if m.config.Commitment == rpc.CommitmentFinalized {
		return status.Status == StatusFinalized
	}
	return status.Status == StatusConfirmed || status.Status == StatusFinalized
}

// AwaitConfirmation проверяет статус сразу, затем каждые PollInterval, пока
// транзакция не будет подтверждена, не упадёт или не истечёт ConfirmationTime.
// Ошибки запроса статуса не прерывают ожидание.
func (m *Monitor) AwaitConfirmation(ctx context.Context, signature solana.Signature) (*Status, error) {
	deadline := time.NewTimer(m.config.ConfirmationTime)
	defer deadline.Stop()

	if status, done, err := m.poll(ctx, signature); done {
		return status, err
	}

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			m.logger.Warn("Confirmation timeout",
				zap.String("signature", signature.String()),
				zap.Duration("waited", m.config.ConfirmationTime))
			return nil, ErrConfirmationTimeout
		case <-ticker.C:
			if status, done, err := m.poll(ctx, signature); done {
				return status, err
			}
		}
	}
}

// poll делает один запрос статуса; done означает терминальный исход.
func (m *Monitor) poll(ctx context.Context, signature solana.Signature) (*Status, bool, error) {
	status, err := m.GetTransactionStatus(ctx, signature)
	if err != nil {
		m.logger.Warn("Confirmation check failed", zap.Error(err))
		return nil, false, nil
	}

	if status.Status == StatusFailed {
		return status, true, &FailedError{Signature: status.Signature, Reason: status.Error}
	}
	if m.reached(status) {
		m.logger.Debug("Transaction confirmed",
			zap.String("signature", status.Signature),
			zap.String("status", status.Status),
			zap.Uint64("slot", status.Slot))
		return status, true, nil
	}
	return status, false, nil
}
