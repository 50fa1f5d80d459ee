// internal/stream/event.go
package stream

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Kind classifies a frame received from the stream.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindSubscribed  Kind = "subscribed"
	KindUnknown     Kind = "unknown"
)

// Event is one frame of the stream. Only KindTransaction events carry a
// Transaction.
type Event struct {
	Kind           Kind
	SubscriptionID uint64
	Transaction    *TransactionUpdate
}

// IsTransaction reports whether the event carries a transaction update.
func (e Event) IsTransaction() bool {
	return e.Kind == KindTransaction && e.Transaction != nil
}

// TransactionUpdate: подтверждённая транзакция, затрагивающая отслеживаемый аккаунт.
type TransactionUpdate struct {
	Slot      uint64
	Signature solana.Signature
	// AccountKeys: статические ключи сообщения, затем загруженные из
	// address lookup tables (writable, потом readonly).
	AccountKeys  []solana.PublicKey
	Instructions []solana.CompiledInstruction
	Meta         *rpc.TransactionMeta
}

// Initiator returns the fee payer, account key 0.
func (u *TransactionUpdate) Initiator() (solana.PublicKey, bool) {
	if u == nil || len(u.AccountKeys) == 0 {
		return solana.PublicKey{}, false
	}
	if u.AccountKeys[0].IsZero() {
		return solana.PublicKey{}, false
	}
	return u.AccountKeys[0], true
}

// ProgramIDs returns the program ids of the top-level instructions.
func (u *TransactionUpdate) ProgramIDs() []solana.PublicKey {
	if u == nil {
		return nil
	}
	out := make([]solana.PublicKey, 0, len(u.Instructions))
	for _, ix := range u.Instructions {
		idx := int(ix.ProgramIDIndex)
		if idx < len(u.AccountKeys) {
			out = append(out, u.AccountKeys[idx])
		}
	}
	return out
}

// Failed reports whether the transaction meta carries an error.
func (u *TransactionUpdate) Failed() bool {
	return u != nil && u.Meta != nil && u.Meta.Err != nil
}
