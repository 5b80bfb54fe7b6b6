package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("KALSHI_API_KEY_ID", "key-id")
	t.Setenv("KALSHI_PRIVATE_KEY_PATH", filepath.Join(t.TempDir(), "missing.pem"))

	path := writeConfig(t, `
series:
  - ticker: KXBTC15M
    symbol: BTCUSDT
    label: BTC
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "PAPER", cfg.Mode)
	assert.True(t, cfg.Paper())
	assert.Equal(t, 60, cfg.Timers.EntrySeconds)
	assert.Equal(t, 10, cfg.Timers.PositionCheckSeconds)
	assert.Equal(t, 2, cfg.Risk.MaxShares)
	assert.Equal(t, int64(1000), cfg.Risk.MaxDailyLossCents)
	assert.Equal(t, 20, cfg.Exit.TakeProfitCents)
	assert.Equal(t, "https://api.elections.kalshi.com", cfg.Exchange.BaseURL)
	assert.Equal(t, "NOOP", cfg.LLM.Provider)
	assert.Equal(t, "key-id", cfg.Exchange.KeyID)
}

func TestLoadConfigLiveRequiresAcknowledgement(t *testing.T) {
	path := writeConfig(t, `
mode: LIVE
series:
  - ticker: KXBTC15M
    symbol: BTCUSDT
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirm_live")
}

func TestLoadConfigLiveWithAcknowledgement(t *testing.T) {
	t.Setenv("KALSHI_API_KEY_ID", "key-id")
	path := writeConfig(t, `
mode: LIVE
confirm_live: true
series:
  - ticker: KXBTC15M
    symbol: BTCUSDT
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.Paper())
}

func TestLoadConfigRejectsEmptySeries(t *testing.T) {
	path := writeConfig(t, "mode: PAPER\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "series")
}

func TestLoadConfigRejectsUnknownMode(t *testing.T) {
	path := writeConfig(t, `
mode: YOLO
series:
  - ticker: KXBTC15M
    symbol: BTCUSDT
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestValidateRequiresSymbol(t *testing.T) {
	path := writeConfig(t, `
series:
  - ticker: KXBTC15M
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol")
}
