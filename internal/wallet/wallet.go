// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrNotSigner is returned when the transaction does not require the
// wallet's signature.
var ErrNotSigner = errors.New("wallet is not a required signer of the transaction")

// Wallet представляет контролируемый кошелёк Solana.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
}

// NewWallet создаёт кошелёк из секретного ключа. Поддерживаются два формата:
// base58-строка и JSON-массив из 64 байт (формат solana-keygen).
func NewWallet(secret string) (*Wallet, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("empty private key")
	}

	var (
		privateKeyBytes []byte
		err             error
	)
	if strings.HasPrefix(secret, "[") {
		privateKeyBytes, err = decodeByteArray(secret)
	} else {
		privateKeyBytes, err = base58.Decode(secret)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}

	privateKey := solana.PrivateKey(privateKeyBytes)
	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
	}, nil
}

func decodeByteArray(s string) ([]byte, error) {
	var ints []int
	if err := json.Unmarshal([]byte(s), &ints); err != nil {
		return nil, err
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("byte %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// Address returns the base58 public key.
func (w *Wallet) Address() string {
	return w.PublicKey.String()
}

// SignTransaction подписывает транзакцию приватным ключом кошелька.
// Подписи-заглушки, пришедшие от сервиса котировок, сбрасываются.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	if !tx.IsSigner(w.PublicKey) {
		return ErrNotSigner
	}
	tx.Signatures = nil
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.PublicKey) {
			return &w.PrivateKey
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	return nil
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
