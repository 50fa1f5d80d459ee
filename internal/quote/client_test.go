package quote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSwapTransactionContract(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/swap", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"tx":"AQID"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL + "/"}, zaptest.NewLogger(t))
	tx, err := c.SwapTransaction(context.Background(), "Wallet1", "BUY", "MintA", 100_000_000)
	require.NoError(t, err)
	assert.Equal(t, "AQID", tx)

	assert.Equal(t, "Wallet1", got["wallet"])
	assert.Equal(t, "BUY", got["type"])
	assert.Equal(t, "MintA", got["mint"])
	assert.Equal(t, float64(100_000_000), got["inAmount"])
	assert.Equal(t, "high", got["priorityFeeLevel"])
	assert.Equal(t, "300", got["slippageBps"])
}

func TestSwapTransactionErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "pool not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL}, zaptest.NewLogger(t))
	_, err := c.SwapTransaction(context.Background(), "W", "SELL", "MintA", 0)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, "/swap", httpErr.Path)
	assert.Contains(t, httpErr.Body, "pool not found")
}

func TestSwapTransactionEmptyTx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"no route"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL}, zaptest.NewLogger(t))
	_, err := c.SwapTransaction(context.Background(), "W", "BUY", "MintA", 1)
	assert.ErrorIs(t, err, ErrEmptyTransaction)
}

func TestPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/price", r.URL.Path)
		switch r.URL.Query().Get("mint") {
		case "Num":
			_, _ = w.Write([]byte(`{"price":0.0000321}`))
		case "Str":
			_, _ = w.Write([]byte(`{"price":"3.0"}`))
		case "Zero":
			_, _ = w.Write([]byte(`{"price":0}`))
		case "Missing":
			_, _ = w.Write([]byte(`{}`))
		default:
			http.Error(w, "unknown mint", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, SlippageBps: 500}, zaptest.NewLogger(t))
	ctx := context.Background()

	p, err := c.Price(ctx, "Num")
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("0.0000321")))

	p, err = c.Price(ctx, "Str")
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.NewFromInt(3)))

	_, err = c.Price(ctx, "Zero")
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = c.Price(ctx, "Missing")
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = c.Price(ctx, "Other")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
}

func TestPriceContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"price":1}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(Config{Endpoint: srv.URL}, zaptest.NewLogger(t))
	_, err := c.Price(ctx, "MintA")
	assert.ErrorIs(t, err, context.Canceled)
}
