// internal/stream/decode.go
package stream

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
)

const notificationMethod = "transactionNotification"

// ErrMalformedFrame возвращается для кадров, которые не удалось разобрать.
var ErrMalformedFrame = errors.New("malformed stream frame")

// RPCError: ошибка JSON-RPC, присланная сервером.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("stream rpc error %d: %s", e.Code, e.Message)
}

type frame struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Params *struct {
		Subscription uint64          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
}

type notification struct {
	Signature   string `json:"signature"`
	Slot        uint64 `json:"slot"`
	Transaction struct {
		Transaction json.RawMessage     `json:"transaction"`
		Meta        *rpc.TransactionMeta `json:"meta"`
	} `json:"transaction"`
}

// DecodeFrame разбирает один текстовый кадр потока.
func DecodeFrame(raw []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Event{Kind: KindUnknown}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch {
	case f.Error != nil:
		return Event{Kind: KindUnknown}, f.Error
	case f.Method == notificationMethod && f.Params != nil:
		update, err := decodeNotification(f.Params.Result)
		if err != nil {
			return Event{Kind: KindUnknown, SubscriptionID: f.Params.Subscription}, err
		}
		return Event{Kind: KindTransaction, SubscriptionID: f.Params.Subscription, Transaction: update}, nil
	case f.ID != nil && len(f.Result) > 0:
		var subID uint64
		if err := json.Unmarshal(f.Result, &subID); err != nil {
			return Event{Kind: KindUnknown}, fmt.Errorf("%w: subscription id: %v", ErrMalformedFrame, err)
		}
		return Event{Kind: KindSubscribed, SubscriptionID: subID}, nil
	default:
		return Event{Kind: KindUnknown}, nil
	}
}

func decodeNotification(raw json.RawMessage) (*TransactionUpdate, error) {
	var n notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: notification: %v", ErrMalformedFrame, err)
	}

	tx, err := decodeWireTransaction(n.Transaction.Transaction)
	if err != nil {
		return nil, err
	}

	update := &TransactionUpdate{
		Slot:         n.Slot,
		Instructions: tx.Message.Instructions,
		Meta:         n.Transaction.Meta,
	}

	update.AccountKeys = append(update.AccountKeys, tx.Message.AccountKeys...)
	if update.Meta != nil {
		update.AccountKeys = append(update.AccountKeys, update.Meta.LoadedAddresses.Writable...)
		update.AccountKeys = append(update.AccountKeys, update.Meta.LoadedAddresses.ReadOnly...)
	}

	switch {
	case n.Signature != "":
		sig, err := solana.SignatureFromBase58(n.Signature)
		if err != nil {
			return nil, fmt.Errorf("%w: signature: %v", ErrMalformedFrame, err)
		}
		update.Signature = sig
	case len(tx.Signatures) > 0:
		update.Signature = tx.Signatures[0]
	}

	return update, nil
}

// decodeWireTransaction accepts either ["<data>", "<encoding>"] or a bare
// base64 string.
func decodeWireTransaction(raw json.RawMessage) (*solana.Transaction, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: missing transaction", ErrMalformedFrame)
	}

	var (
		data     string
		encoding = "base64"
	)
	if raw[0] == '[' {
		var parts []string
		if err := json.Unmarshal(raw, &parts); err != nil || len(parts) == 0 {
			return nil, fmt.Errorf("%w: transaction envelope", ErrMalformedFrame)
		}
		data = parts[0]
		if len(parts) > 1 {
			encoding = parts[1]
		}
	} else if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: transaction is not a string", ErrMalformedFrame)
	}

	var (
		wire []byte
		err  error
	)
	switch encoding {
	case "base64":
		wire, err = base64.StdEncoding.DecodeString(data)
	case "base58":
		wire, err = base58.Decode(data)
	default:
		return nil, fmt.Errorf("%w: unsupported encoding %q", ErrMalformedFrame, encoding)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformedFrame, encoding, err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(wire))
	if err != nil {
		return nil, fmt.Errorf("%w: wire transaction: %v", ErrMalformedFrame, err)
	}
	return tx, nil
}
