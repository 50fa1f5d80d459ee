// internal/executor/errors.go
package executor

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/solana-copybot/internal/blockchain/solbc/transaction"
)

var (
	// ErrQuoteUnavailable: сервис котировок не дал цену или транзакцию.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrSigning: не удалось получить blockhash или подписать транзакцию.
	ErrSigning = errors.New("transaction signing failed")

	// ErrConfirmationTimeout: транзакция не подтвердилась за отведённое время.
	// Это тот же sentinel, что и в пакете transaction.
	ErrConfirmationTimeout = transaction.ErrConfirmationTimeout

	// ErrInvalidIntent is returned for intents that cannot be executed.
	ErrInvalidIntent = errors.New("invalid trade intent")
)

// TransactionFailedError: транзакция отклонена узлом или завершилась ошибкой в блоке.
type TransactionFailedError struct {
	TxID   string
	Reason string
	Err    error
}

func (e *TransactionFailedError) Error() string {
	if e.TxID == "" {
		return fmt.Sprintf("transaction failed: %s", e.Reason)
	}
	return fmt.Sprintf("transaction %s failed: %s", e.TxID, e.Reason)
}

func (e *TransactionFailedError) Unwrap() error {
	return e.Err
}
