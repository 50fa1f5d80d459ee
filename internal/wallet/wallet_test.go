package wallet

import (
	"encoding/json"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transferTx(t *testing.T, payer solana.PublicKey) *solana.Transaction {
	t.Helper()
	to := solana.NewWallet().PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1000, payer, to).Build()},
		solana.Hash{1, 2, 3},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)
	return tx
}

func TestNewWalletFormats(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	fromBase58, err := NewWallet(key.String())
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), fromBase58.PublicKey)

	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	require.NoError(t, err)

	fromArray, err := NewWallet(string(raw))
	require.NoError(t, err)
	assert.Equal(t, fromBase58.Address(), fromArray.Address())
}

func TestNewWalletRejectsBadKeys(t *testing.T) {
	for name, secret := range map[string]string{
		"empty":        "",
		"short base58": "3yZe7d",
		"bad json":     "[1,2,",
		"out of range": "[256]",
		"short array":  "[1,2,3]",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewWallet(secret)
			assert.Error(t, err)
		})
	}
}

func TestSignTransactionReplacesPlaceholders(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	w, err := NewWallet(key.String())
	require.NoError(t, err)

	tx := transferTx(t, w.PublicKey)
	tx.Signatures = []solana.Signature{{}}

	require.NoError(t, w.SignTransaction(tx))
	require.Len(t, tx.Signatures, 1)
	assert.NotEqual(t, solana.Signature{}, tx.Signatures[0])
	assert.NoError(t, tx.VerifySignatures())
}

func TestSignTransactionForeignPayer(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	w, err := NewWallet(key.String())
	require.NoError(t, err)

	tx := transferTx(t, solana.NewWallet().PublicKey())
	assert.ErrorIs(t, w.SignTransaction(tx), ErrNotSigner)
}
