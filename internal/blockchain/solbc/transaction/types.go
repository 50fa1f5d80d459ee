// internal/blockchain/solbc/transaction/types.go
package transaction

import (
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

var (
	ErrConfirmationTimeout = errors.New("transaction confirmation timeout")
	ErrInvalidSignature    = errors.New("invalid transaction signature")
	ErrInvalidBlockhash    = errors.New("invalid blockhash")
	ErrInvalidInstruction  = errors.New("invalid instruction")
)

// FailedError означает, что транзакция попала в блок, но завершилась ошибкой.
type FailedError struct {
	Signature string
	Reason    string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("transaction %s failed: %s", e.Signature, e.Reason)
}

type Config struct {
	PollInterval     time.Duration
	ConfirmationTime time.Duration
	SkipPreflight    bool
	Commitment       rpc.CommitmentType
}

// DefaultConfig: опрос каждые 3 секунды, не дольше 30 секунд.
func DefaultConfig() Config {
	return Config{
		PollInterval:     3 * time.Second,
		ConfirmationTime: 30 * time.Second,
		Commitment:       rpc.CommitmentConfirmed,
	}
}

type Status struct {
	Signature     string
	Status        string
	Confirmations uint64
	Slot          uint64
	Error         string
	Timestamp     time.Time
}

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFinalized = "finalized"
	StatusFailed    = "failed"
)
