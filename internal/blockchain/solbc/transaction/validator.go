// internal/blockchain/solbc/transaction/validator.go
package transaction

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

type Validator struct {
	logger *zap.Logger
}

func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{
		logger: logger.Named("tx-validator"),
	}
}

// ValidateTransaction проверяет подписанную транзакцию перед отправкой.
func (v *Validator) ValidateTransaction(tx *solana.Transaction) error {
	if tx == nil {
		return fmt.Errorf("%w: nil transaction", ErrInvalidInstruction)
	}
	if err := v.ValidateSignatures(tx); err != nil {
		return err
	}
	if err := v.ValidateBlockhash(tx); err != nil {
		return err
	}
	return v.ValidateInstructions(tx.Message.Instructions)
}

// ValidateSignatures требует ровно NumRequiredSignatures ненулевых подписей.
func (v *Validator) ValidateSignatures(tx *solana.Transaction) error {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) == 0 || len(tx.Signatures) != required {
		return fmt.Errorf("%w: have %d, need %d", ErrInvalidSignature, len(tx.Signatures), required)
	}
	for i, sig := range tx.Signatures {
		if sig.IsZero() {
			v.logger.Debug("Empty signature slot", zap.Int("index", i))
			return fmt.Errorf("%w: signature %d is empty", ErrInvalidSignature, i)
		}
	}
	return nil
}

func (v *Validator) ValidateBlockhash(tx *solana.Transaction) error {
	if tx.Message.RecentBlockhash.IsZero() {
		return ErrInvalidBlockhash
	}
	return nil
}

func (v *Validator) ValidateInstructions(instructions []solana.CompiledInstruction) error {
	if len(instructions) == 0 {
		return ErrInvalidInstruction
	}
	return nil
}
