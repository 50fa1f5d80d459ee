// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TransactionOptions передаются узлу вместе с подписанной сделкой.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

// Client: всё, что конвейер исполнения требует от RPC-узла. Сделка
// отправляется один раз, затем статус опрашивается по подписи.
type Client interface {
	// blockhash обновляется непосредственно перед подписью
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts TransactionOptions) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}
