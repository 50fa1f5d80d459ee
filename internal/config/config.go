// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/solana-copybot/internal/domain"
	"github.com/rovshanmuradov/solana-copybot/internal/quote"
)

// ErrConfigMissing: не задан обязательный параметр.
var ErrConfigMissing = errors.New("missing required configuration")

// Ledger backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

type Config struct {
	RPCURL         string   `mapstructure:"solana_rpc"`
	SecretKey      string   `mapstructure:"secret_key"`
	QuoteEndpoint  string   `mapstructure:"quote_endpoint"`
	StreamEndpoint string   `mapstructure:"stream_endpoint"`
	StreamToken    string   `mapstructure:"stream_token"`
	WatchList      []string `mapstructure:"watch_list"`
	DEXPrograms    []string `mapstructure:"dex_programs"`

	MinTxSOL       float64 `mapstructure:"min_tx_sol"`
	BuySOL         float64 `mapstructure:"buy_sol"`
	StopLossFactor float64 `mapstructure:"stop_loss_factor"`
	TestMode       bool    `mapstructure:"test_mode"`

	SlippageBps      int    `mapstructure:"slippage_bps"`
	PriorityFeeLevel string `mapstructure:"priority_fee_level"`
	Commitment       string `mapstructure:"commitment"`

	StopLossIntervalMS int `mapstructure:"stop_loss_interval_ms"`
	ConfirmPollMS      int `mapstructure:"confirm_poll_ms"`
	ConfirmTimeoutMS   int `mapstructure:"confirm_timeout_ms"`
	QuoteTimeoutMS     int `mapstructure:"quote_timeout_ms"`

	LedgerBackend string `mapstructure:"ledger_backend"`
	LedgerPath    string `mapstructure:"ledger_path"`
	RedisURL      string `mapstructure:"redis_url"`
	RedisKey      string `mapstructure:"redis_key"`
	AuditLogPath  string `mapstructure:"audit_log_path"`

	LogFile      string `mapstructure:"log_file"`
	DebugLogging bool   `mapstructure:"debug_logging"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
}

const (
	DefaultMinTxSOL           = 3.0
	DefaultBuySOL             = 0.1
	DefaultStopLossFactor     = 0.87
	DefaultSlippageBps        = 300
	DefaultPriorityFeeLevel   = "high"
	DefaultCommitment         = "confirmed"
	DefaultStopLossIntervalMS = 1000
	DefaultConfirmPollMS      = 3000
	DefaultConfirmTimeoutMS   = 30000
	DefaultQuoteTimeoutMS     = 15000
	DefaultLedgerPath         = "tokenMemory.json"
	DefaultRedisKey           = "copybot:ledger"
	DefaultAuditLogPath       = "copybot_swaps.jsonl"
	DefaultLogFile            = "copybot.log"
)

// requiredKeys в порядке проверки; имя в ошибке совпадает с переменной окружения.
var requiredKeys = []string{
	"solana_rpc",
	"secret_key",
	"quote_endpoint",
	"stream_endpoint",
	"stream_token",
	"watch_list",
}

// aliases: старые имена переменных окружения.
var aliases = map[string][]string{
	"quote_endpoint":  {"QUOTE_ENDPOINT", "METIS_ENDPOINT"},
	"stream_endpoint": {"STREAM_ENDPOINT", "YELLOWSTONE_ENDPOINT"},
	"stream_token":    {"STREAM_TOKEN", "YELLOWSTONE_TOKEN"},
}

// Load reads envFile (if present) into the process environment, then the
// optional config file at path, then environment overrides.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()

	defaults := map[string]interface{}{
		"solana_rpc":            "",
		"secret_key":            "",
		"quote_endpoint":        "",
		"stream_endpoint":       "",
		"stream_token":          "",
		"watch_list":            []string{},
		"dex_programs":          []string{},
		"min_tx_sol":            DefaultMinTxSOL,
		"buy_sol":               DefaultBuySOL,
		"stop_loss_factor":      DefaultStopLossFactor,
		"test_mode":             true,
		"slippage_bps":          DefaultSlippageBps,
		"priority_fee_level":    DefaultPriorityFeeLevel,
		"commitment":            DefaultCommitment,
		"stop_loss_interval_ms": DefaultStopLossIntervalMS,
		"confirm_poll_ms":       DefaultConfirmPollMS,
		"confirm_timeout_ms":    DefaultConfirmTimeoutMS,
		"quote_timeout_ms":      DefaultQuoteTimeoutMS,
		"ledger_backend":        BackendFile,
		"ledger_path":           DefaultLedgerPath,
		"redis_url":             "",
		"redis_key":             DefaultRedisKey,
		"audit_log_path":        DefaultAuditLogPath,
		"log_file":              DefaultLogFile,
		"debug_logging":         false,
		"metrics_addr":          "",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.WatchList = cleanList(cfg.WatchList)
	cfg.DEXPrograms = cleanList(cfg.DEXPrograms)

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	values := map[string]bool{
		"solana_rpc":      cfg.RPCURL != "",
		"secret_key":      cfg.SecretKey != "",
		"quote_endpoint":  cfg.QuoteEndpoint != "",
		"stream_endpoint": cfg.StreamEndpoint != "",
		"stream_token":    cfg.StreamToken != "",
		"watch_list":      len(cfg.WatchList) > 0,
	}
	for _, key := range requiredKeys {
		if !values[key] {
			return fmt.Errorf("%w: %s", ErrConfigMissing, strings.ToUpper(key))
		}
	}

	if err := validateURLWithCache(cfg.RPCURL, "http"); err != nil {
		return fmt.Errorf("SOLANA_RPC: %w", err)
	}
	if err := validateURLWithCache(cfg.QuoteEndpoint, "http"); err != nil {
		return fmt.Errorf("QUOTE_ENDPOINT: %w", err)
	}
	if err := validateURLWithCache(cfg.StreamEndpoint, "ws"); err != nil {
		return fmt.Errorf("STREAM_ENDPOINT: %w", err)
	}

	if err := validateNumericParams(cfg); err != nil {
		return err
	}

	switch cfg.LedgerBackend {
	case BackendFile:
		if cfg.LedgerPath == "" {
			return fmt.Errorf("%w: LEDGER_PATH", ErrConfigMissing)
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			return fmt.Errorf("%w: REDIS_URL", ErrConfigMissing)
		}
	default:
		return fmt.Errorf("invalid ledger_backend %q", cfg.LedgerBackend)
	}

	switch cfg.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("invalid commitment %q", cfg.Commitment)
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.MinTxSOL < 0 {
		return errors.New("invalid min_tx_sol")
	}
	if cfg.BuySOL <= 0 {
		return errors.New("invalid buy_sol")
	}
	if cfg.StopLossFactor <= 0 || cfg.StopLossFactor >= 1 {
		return errors.New("stop_loss_factor must be between 0 and 1")
	}
	if err := quote.ValidateSlippageBps(cfg.SlippageBps); err != nil {
		return fmt.Errorf("invalid slippage_bps: %w", err)
	}
	level, err := quote.ParsePriorityLevel(cfg.PriorityFeeLevel)
	if err != nil {
		return fmt.Errorf("invalid priority_fee_level: %w", err)
	}
	cfg.PriorityFeeLevel = string(level)
	if cfg.StopLossIntervalMS <= 0 {
		return errors.New("invalid stop_loss_interval_ms")
	}
	if cfg.ConfirmPollMS <= 0 {
		return errors.New("invalid confirm_poll_ms")
	}
	if cfg.ConfirmTimeoutMS < cfg.ConfirmPollMS {
		return errors.New("confirm_timeout_ms must not be shorter than confirm_poll_ms")
	}
	if cfg.QuoteTimeoutMS <= 0 {
		return errors.New("invalid quote_timeout_ms")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		// значение из окружения приходит одной строкой через запятую
		for _, part := range strings.Split(item, ",") {
			if clean := strings.TrimSpace(part); clean != "" {
				out = append(out, clean)
			}
		}
	}
	return out
}

// MinWhaleLamports: минимальный размер сделки whale в лампортах.
func (c *Config) MinWhaleLamports() uint64 {
	return solToLamports(c.MinTxSOL)
}

// BuyLamports: фиксированный размер покупки в лампортах.
func (c *Config) BuyLamports() uint64 {
	return solToLamports(c.BuySOL)
}

// Factor returns the stop-loss factor as a decimal.
func (c *Config) Factor() decimal.Decimal {
	return decimal.NewFromFloat(c.StopLossFactor)
}

func (c *Config) StopLossInterval() time.Duration {
	return time.Duration(c.StopLossIntervalMS) * time.Millisecond
}

func (c *Config) ConfirmPollInterval() time.Duration {
	return time.Duration(c.ConfirmPollMS) * time.Millisecond
}

func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutMS) * time.Millisecond
}

func (c *Config) QuoteTimeout() time.Duration {
	return time.Duration(c.QuoteTimeoutMS) * time.Millisecond
}

func solToLamports(sol float64) uint64 {
	return uint64(decimal.NewFromFloat(sol).Mul(decimal.NewFromInt(domain.LamportsPerSOL)).IntPart())
}
