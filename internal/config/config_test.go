package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SOLANA_RPC", "https://api.mainnet-beta.solana.com")
	t.Setenv("SECRET_KEY", "[1,2,3]")
	t.Setenv("QUOTE_ENDPOINT", "https://quote.example.com")
	t.Setenv("STREAM_ENDPOINT", "wss://stream.example.com")
	t.Setenv("STREAM_TOKEN", "token")
	t.Setenv("WATCH_LIST", "WhaleA, WhaleB,,")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"WhaleA", "WhaleB"}, cfg.WatchList)
	assert.Empty(t, cfg.DEXPrograms)
	assert.Equal(t, uint64(3_000_000_000), cfg.MinWhaleLamports())
	assert.Equal(t, uint64(100_000_000), cfg.BuyLamports())
	assert.Equal(t, "0.87", cfg.Factor().String())
	assert.True(t, cfg.TestMode)
	assert.Equal(t, 300, cfg.SlippageBps)
	assert.Equal(t, "high", cfg.PriorityFeeLevel)
	assert.Equal(t, "confirmed", cfg.Commitment)
	assert.Equal(t, time.Second, cfg.StopLossInterval())
	assert.Equal(t, 3*time.Second, cfg.ConfirmPollInterval())
	assert.Equal(t, 30*time.Second, cfg.ConfirmTimeout())
	assert.Equal(t, BackendFile, cfg.LedgerBackend)
	assert.Equal(t, DefaultLedgerPath, cfg.LedgerPath)
	assert.Equal(t, DefaultAuditLogPath, cfg.AuditLogPath)
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MIN_TX_SOL", "0.5")
	t.Setenv("BUY_SOL", "0.25")
	t.Setenv("STOP_LOSS_FACTOR", "0.9")
	t.Setenv("TEST_MODE", "false")
	t.Setenv("DEX_PROGRAMS", "ProgA,ProgB")
	t.Setenv("LEDGER_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, uint64(500_000_000), cfg.MinWhaleLamports())
	assert.Equal(t, uint64(250_000_000), cfg.BuyLamports())
	assert.Equal(t, "0.9", cfg.Factor().String())
	assert.False(t, cfg.TestMode)
	assert.Equal(t, []string{"ProgA", "ProgB"}, cfg.DEXPrograms)
	assert.Equal(t, BackendRedis, cfg.LedgerBackend)
}

func TestLoadLegacyAliases(t *testing.T) {
	setRequired(t)
	t.Setenv("QUOTE_ENDPOINT", "")
	t.Setenv("STREAM_ENDPOINT", "")
	t.Setenv("STREAM_TOKEN", "")
	t.Setenv("METIS_ENDPOINT", "https://metis.example.com")
	t.Setenv("YELLOWSTONE_ENDPOINT", "wss://yellowstone.example.com")
	t.Setenv("YELLOWSTONE_TOKEN", "legacy")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, "https://metis.example.com", cfg.QuoteEndpoint)
	assert.Equal(t, "wss://yellowstone.example.com", cfg.StreamEndpoint)
	assert.Equal(t, "legacy", cfg.StreamToken)
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("SECRET_KEY", "")

	_, err := Load("", "")
	require.ErrorIs(t, err, ErrConfigMissing)
	assert.Contains(t, err.Error(), "SECRET_KEY")

	setRequired(t)
	t.Setenv("WATCH_LIST", " , ")
	_, err = Load("", "")
	require.ErrorIs(t, err, ErrConfigMissing)
	assert.Contains(t, err.Error(), "WATCH_LIST")
}

func TestLoadRedisRequiresURL(t *testing.T) {
	setRequired(t)
	t.Setenv("LEDGER_BACKEND", "redis")
	t.Setenv("REDIS_URL", "")

	_, err := Load("", "")
	require.ErrorIs(t, err, ErrConfigMissing)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"factor above one":  {"STOP_LOSS_FACTOR", "1.5"},
		"zero buy":          {"BUY_SOL", "0"},
		"bad commitment":    {"COMMITMENT", "eventual"},
		"bad backend":       {"LEDGER_BACKEND", "postgres"},
		"stream not ws":     {"STREAM_ENDPOINT", "https://stream.example.com"},
		"rpc not http":      {"SOLANA_RPC", "ftp://rpc.example.com"},
		"negative slippage": {"SLIPPAGE_BPS", "-1"},
		"unknown priority":  {"PRIORITY_FEE_LEVEL", "ludicrous"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load("", "")
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFileAndEnvFile(t *testing.T) {
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
solana_rpc: https://rpc.example.com
quote_endpoint: https://quote.example.com
stream_endpoint: wss://stream.example.com
watch_list:
  - WhaleFromFile
buy_sol: 0.2
metrics_addr: ":9100"
`), 0o600))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("COPYBOT_TEST_SECRET=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("COPYBOT_TEST_SECRET") })

	t.Setenv("SECRET_KEY", "[9,9]")
	t.Setenv("STREAM_TOKEN", "token")
	t.Setenv("BUY_SOL", "0.3")

	cfg, err := Load(cfgPath, envPath)
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", os.Getenv("COPYBOT_TEST_SECRET"))
	assert.Equal(t, []string{"WhaleFromFile"}, cfg.WatchList)
	assert.Equal(t, "https://rpc.example.com", cfg.RPCURL)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	// окружение важнее файла
	assert.Equal(t, uint64(300_000_000), cfg.BuyLamports())
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	setRequired(t)
	_, err := Load("", filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
