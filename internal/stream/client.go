// =============================================
// File: internal/stream/client.go
// =============================================
// Package stream subscribes to confirmed transactions of the tracked
// accounts over a Geyser-enhanced WebSocket (transactionSubscribe) and
// delivers them as Events.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-copybot/internal/utils/metrics"
)

// Config configures the stream client.
type Config struct {
	// Endpoint is the wss:// URL of the enhanced WebSocket.
	Endpoint string
	// APIKey is passed as the api-key query parameter.
	APIKey string
	// Accounts is the accountInclude filter.
	Accounts []string
	// Commitment: processed, confirmed or finalized.
	Commitment string

	HandshakeTimeout  time.Duration
	SubscribeTimeout  time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
}

// DefaultConfig returns default WebSocket configuration.
func DefaultConfig() Config {
	return Config{
		Commitment:        "confirmed",
		HandshakeTimeout:  10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Commitment == "" {
		c.Commitment = d.Commitment
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.SubscribeTimeout <= 0 {
		c.SubscribeTimeout = d.SubscribeTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = d.ReconnectDelay
	}
	if c.MaxReconnectDelay <= 0 {
		c.MaxReconnectDelay = d.MaxReconnectDelay
	}
}

// Client держит одну подписку и переподключается при обрыве.
type Client struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Collector

	connMu sync.Mutex
	conn   *websocket.Conn
}

// NewClient создает клиента потока транзакций.
func NewClient(cfg Config, logger *zap.Logger, collector *metrics.Collector) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:     cfg,
		logger:  logger.Named("stream"),
		metrics: collector,
	}
}

// Run подписывается и пишет события в out, пока ctx не отменён.
// После каждого обрыва выполняется повторная подписка с экспоненциальной задержкой;
// задержка сбрасывается после успешной подписки.
func (c *Client) Run(ctx context.Context, out chan<- Event) error {
	if len(c.cfg.Accounts) == 0 {
		return errors.New("stream: no accounts to subscribe to")
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.ReconnectDelay
	bo.MaxInterval = c.cfg.MaxReconnectDelay

	for {
		subscribed, err := c.session(ctx, out)
		c.metrics.SetStreamConnected(false)

		if ctx.Err() != nil {
			c.logger.Info("Stream stopped")
			return nil
		}
		if subscribed {
			bo.Reset()
		}

		delay := bo.NextBackOff()
		c.metrics.RecordReconnect()
		c.logger.Warn("Stream interrupted, resubscribing",
			zap.Error(err),
			zap.Duration("retry_in", delay))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// Close закрывает текущее соединение. Run переподключится, если ctx ещё жив.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) dialURL() (string, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse stream endpoint: %w", err)
	}
	if c.cfg.APIKey != "" {
		q := u.Query()
		q.Set("api-key", c.cfg.APIKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// session обслуживает одно соединение. subscribed=true, если сервер
// подтвердил подписку.
func (c *Client) session(ctx context.Context, out chan<- Event) (subscribed bool, err error) {
	endpoint, err := c.dialURL()
	if err != nil {
		return false, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	sessionCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		_ = conn.Close()
		wg.Wait()
		c.connMu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.connMu.Unlock()
	}()

	var writeMu sync.Mutex

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-sessionCtx.Done()
		_ = conn.Close()
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	err = conn.WriteJSON(c.subscribeRequest())
	writeMu.Unlock()
	if err != nil {
		return false, fmt.Errorf("write subscribe: %w", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.pingLoop(sessionCtx, conn, &writeMu)
	}()

	subscribeDeadline := time.Now().Add(c.cfg.SubscribeTimeout)
	for {
		readDeadline := time.Now().Add(c.cfg.ReadTimeout)
		if !subscribed && subscribeDeadline.Before(readDeadline) {
			readDeadline = subscribeDeadline
		}
		_ = conn.SetReadDeadline(readDeadline)

		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if !subscribed && time.Now().After(subscribeDeadline) {
				return false, fmt.Errorf("subscription timeout after %s", c.cfg.SubscribeTimeout)
			}
			return subscribed, fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		ev, err := DecodeFrame(message)
		if err != nil {
			var rpcErr *RPCError
			if errors.As(err, &rpcErr) {
				return subscribed, err
			}
			c.logger.Warn("Skipping undecodable frame", zap.Error(err), zap.Int("bytes", len(message)))
			continue
		}

		if ev.Kind == KindSubscribed && !subscribed {
			subscribed = true
			c.metrics.SetStreamConnected(true)
			c.logger.Info("Subscribed to transaction stream",
				zap.Uint64("subscription", ev.SubscriptionID),
				zap.Int("accounts", len(c.cfg.Accounts)),
				zap.String("commitment", c.cfg.Commitment))
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return subscribed, ctx.Err()
		}
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
			writeMu.Unlock()
			if err != nil {
				// Reader will notice the dead connection.
				c.logger.Debug("Ping failed", zap.Error(err))
				return
			}
		}
	}
}

type subscribeRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

func (c *Client) subscribeRequest() subscribeRequest {
	filter := map[string]interface{}{
		"accountInclude": c.cfg.Accounts,
		"failed":         false,
		"vote":           false,
	}
	options := map[string]interface{}{
		"commitment":                     c.cfg.Commitment,
		"encoding":                       "base64",
		"transactionDetails":             "full",
		"showRewards":                    false,
		"maxSupportedTransactionVersion": 0,
	}
	return subscribeRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "transactionSubscribe",
		Params:  []interface{}{filter, options},
	}
}
