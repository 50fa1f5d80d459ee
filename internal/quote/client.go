// =============================================
// File: internal/quote/client.go
// =============================================
// Package quote talks to the external swap/price service: it builds
// unsigned swap transactions and reports unit prices of SPL tokens in SOL.
package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrEmptyTransaction: сервис ответил без поля tx.
	ErrEmptyTransaction = errors.New("swap response has no transaction")
	// ErrInvalidPrice: цена отсутствует или не положительна.
	ErrInvalidPrice = errors.New("invalid price in response")
)

// HTTPError несёт код и тело неуспешного ответа.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Config задаёт адрес сервиса и параметры свапа.
type Config struct {
	Endpoint         string
	Timeout          time.Duration
	PriorityFeeLevel string
	SlippageBps      int
}

// SwapRequest: тело POST /swap.
type SwapRequest struct {
	Wallet           string `json:"wallet"`
	Type             string `json:"type"`
	Mint             string `json:"mint"`
	InAmount         uint64 `json:"inAmount"`
	PriorityFeeLevel string `json:"priorityFeeLevel"`
	SlippageBps      string `json:"slippageBps"`
}

type swapResponse struct {
	Tx string `json:"tx"`
}

type priceResponse struct {
	Price *decimal.Decimal `json:"price"`
}

// Client is safe for concurrent use.
type Client struct {
	client *http.Client
	base   string
	cfg    Config
	logger *zap.Logger
}

// NewClient создает клиент сервиса котировок.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if level, err := ParsePriorityLevel(cfg.PriorityFeeLevel); err == nil {
		cfg.PriorityFeeLevel = string(level)
	} else {
		logger.Warn("Unknown priority fee level, using default",
			zap.String("level", cfg.PriorityFeeLevel), zap.String("default", string(DefaultPriorityLevel)))
		cfg.PriorityFeeLevel = string(DefaultPriorityLevel)
	}
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = 300
	}
	return &Client{
		client: &http.Client{Timeout: cfg.Timeout},
		base:   strings.TrimRight(cfg.Endpoint, "/"),
		cfg:    cfg,
		logger: logger.Named("quote"),
	}
}

// SwapTransaction запрашивает неподписанную транзакцию свапа и возвращает её в base64.
// inAmount в лампортах для BUY; 0 для SELL означает продажу всего баланса.
func (c *Client) SwapTransaction(ctx context.Context, wallet, side, mint string, inAmount uint64) (string, error) {
	req := SwapRequest{
		Wallet:           wallet,
		Type:             side,
		Mint:             mint,
		InAmount:         inAmount,
		PriorityFeeLevel: c.cfg.PriorityFeeLevel,
		SlippageBps:      strconv.Itoa(c.cfg.SlippageBps),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal swap request: %w", err)
	}

	var resp swapResponse
	if err := c.do(ctx, http.MethodPost, "/swap", bytes.NewReader(body), &resp); err != nil {
		return "", err
	}
	if resp.Tx == "" {
		return "", ErrEmptyTransaction
	}

	c.logger.Debug("Swap transaction received",
		zap.String("side", side),
		zap.String("mint", mint),
		zap.Uint64("in_amount", inAmount),
		zap.Int("tx_len", len(resp.Tx)))
	return resp.Tx, nil
}

// Price возвращает цену одного токена в SOL.
func (c *Client) Price(ctx context.Context, mint string) (decimal.Decimal, error) {
	path := "/price?mint=" + url.QueryEscape(mint)

	var resp priceResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	if resp.Price == nil || !resp.Price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w for %s", ErrInvalidPrice, mint)
	}
	return *resp.Price, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &HTTPError{
			Method: method,
			Path:   strings.SplitN(path, "?", 2)[0],
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(raw)),
		}
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
