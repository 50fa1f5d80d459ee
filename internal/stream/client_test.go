package stream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-copybot/internal/utils/metrics"
)

type testTx struct {
	payer solana.PublicKey
	sig   solana.Signature
	b64   string
}

func buildTx(t *testing.T) testTx {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	payer := key.PublicKey()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(42, payer, solana.NewWallet().PublicKey()).Build()},
		solana.Hash{3},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)
	sigs, err := tx.Sign(func(k solana.PublicKey) *solana.PrivateKey {
		if k.Equals(payer) {
			return &key
		}
		return nil
	})
	require.NoError(t, err)

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return testTx{payer: payer, sig: sigs[0], b64: base64.StdEncoding.EncodeToString(raw)}
}

func notificationFrame(tx testTx, loaded string) string {
	return fmt.Sprintf(`{"jsonrpc":"2.0","method":"transactionNotification","params":{"subscription":77,"result":{
		"signature":%q,"slot":123,
		"transaction":{"transaction":[%q,"base64"],
		"meta":{"err":null,"fee":5000,"preBalances":[5000000000,0,1],"postBalances":[999995000,4000000000,1],
		"preTokenBalances":[],"postTokenBalances":[],"loadedAddresses":{"writable":[%s],"readonly":[]}}}}}}`,
		tx.sig.String(), tx.b64, loaded)
}

func TestDecodeFrameNotification(t *testing.T) {
	tx := buildTx(t)
	extra := solana.NewWallet().PublicKey()

	ev, err := DecodeFrame([]byte(notificationFrame(tx, fmt.Sprintf("%q", extra.String()))))
	require.NoError(t, err)
	require.True(t, ev.IsTransaction())
	assert.Equal(t, uint64(77), ev.SubscriptionID)

	u := ev.Transaction
	assert.Equal(t, uint64(123), u.Slot)
	assert.Equal(t, tx.sig, u.Signature)

	initiator, ok := u.Initiator()
	require.True(t, ok)
	assert.Equal(t, tx.payer, initiator)

	// 3 статических ключа + 1 из lookup table.
	require.Len(t, u.AccountKeys, 4)
	assert.Equal(t, extra, u.AccountKeys[3])
	assert.Equal(t, []solana.PublicKey{solana.SystemProgramID}, u.ProgramIDs())

	require.NotNil(t, u.Meta)
	assert.Equal(t, uint64(5000), u.Meta.Fee)
	assert.Equal(t, []uint64{5000000000, 0, 1}, u.Meta.PreBalances)
	assert.False(t, u.Failed())
}

func TestDecodeFrameOtherKinds(t *testing.T) {
	ev, err := DecodeFrame([]byte(`{"jsonrpc":"2.0","result":4743323479349712,"id":1}`))
	require.NoError(t, err)
	assert.Equal(t, KindSubscribed, ev.Kind)
	assert.Equal(t, uint64(4743323479349712), ev.SubscriptionID)
	assert.False(t, ev.IsTransaction())

	_, err = DecodeFrame([]byte(`{"jsonrpc":"2.0","error":{"code":-32602,"message":"Invalid params"},"id":1}`))
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32602, rpcErr.Code)

	ev, err = DecodeFrame([]byte(`{"jsonrpc":"2.0","method":"somethingElse","params":{}}`))
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, ev.Kind)

	_, err = DecodeFrame([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = DecodeFrame([]byte(`{"method":"transactionNotification","params":{"subscription":1,"result":{"transaction":{"transaction":["!!!","base64"]}}}}`))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecodeFrameBase58Envelope(t *testing.T) {
	tx := buildTx(t)
	raw, err := base64.StdEncoding.DecodeString(tx.b64)
	require.NoError(t, err)

	frame := fmt.Sprintf(`{"method":"transactionNotification","params":{"subscription":1,"result":{"slot":9,"transaction":{"transaction":[%q,"base58"],"meta":null}}}}`,
		base58.Encode(raw))
	ev, err := DecodeFrame([]byte(frame))
	require.NoError(t, err)
	require.True(t, ev.IsTransaction())
	// Без поля signature берётся первая подпись транзакции.
	assert.Equal(t, tx.sig, ev.Transaction.Signature)
	assert.Nil(t, ev.Transaction.Meta)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientSubscribesDeliversAndReconnects(t *testing.T) {
	tx := buildTx(t)
	var connections atomic.Int32
	requests := make(chan map[string]any, 4)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("api-key"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := connections.Add(1)

		var req map[string]any
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		requests <- req

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","result":77,"id":1}`))
		if n == 1 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{garbage`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(notificationFrame(tx, "")))
			return // обрыв соединения
		}
		// второе соединение держим открытым до конца теста
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Endpoint = wsURL(srv)
	cfg.APIKey = "secret"
	cfg.Accounts = []string{tx.payer.String()}
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 20 * time.Millisecond

	collector := metrics.NewCollector()
	client := NewClient(cfg, zaptest.NewLogger(t), collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Event, 16)
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx, out) }()

	var got []Event
	timeout := time.After(5 * time.Second)
	for len(got) < 3 {
		select {
		case ev := <-out:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("timed out, got %d events", len(got))
		}
	}

	assert.Equal(t, KindSubscribed, got[0].Kind)
	require.True(t, got[1].IsTransaction())
	assert.Equal(t, tx.sig, got[1].Transaction.Signature)
	assert.Equal(t, KindSubscribed, got[2].Kind, "resubscribed after disconnect")
	assert.GreaterOrEqual(t, connections.Load(), int32(2))

	req := <-requests
	assert.Equal(t, "transactionSubscribe", req["method"])
	params := req["params"].([]any)
	filter := params[0].(map[string]any)
	assert.Equal(t, []any{tx.payer.String()}, filter["accountInclude"])
	assert.Equal(t, false, filter["failed"])
	assert.Equal(t, false, filter["vote"])
	options := params[1].(map[string]any)
	assert.Equal(t, "confirmed", options["commitment"])
	assert.Equal(t, "base64", options["encoding"])
	assert.Equal(t, "full", options["transactionDetails"])
	assert.Equal(t, float64(0), options["maxSupportedTransactionVersion"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRequiresAccounts(t *testing.T) {
	client := NewClient(Config{Endpoint: "ws://127.0.0.1:1"}, zaptest.NewLogger(t), nil)
	err := client.Run(context.Background(), make(chan Event))
	assert.Error(t, err)
}

func TestSubscribeRequestShape(t *testing.T) {
	client := NewClient(Config{Accounts: []string{"A", "B"}, Commitment: "finalized"}, zaptest.NewLogger(t), nil)
	raw, err := json.Marshal(client.subscribeRequest())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"accountInclude":["A","B"]`)
	assert.Contains(t, string(raw), `"commitment":"finalized"`)
}
