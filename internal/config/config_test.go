package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrv/stock_anomaly_bot/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
alpaca:
  api_key: key
  api_secret: secret
symbols: [AAPL]
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 20, cfg.Strategy.Lookback)
	assert.Equal(t, 14, cfg.Strategy.RSIPeriod)
	assert.InDelta(t, 3.0, cfg.Strategy.LiquidationSeverity, 1e-9)
	assert.Equal(t, 60, cfg.Scheduler.IntervalSec)
	assert.Equal(t, "America/New_York", cfg.Scheduler.Timezone)
}

func TestEnvOverridesCredentials(t *testing.T) {
	path := writeConfig(t, `
alpaca:
  api_key: from-file
  api_secret: from-file
symbols: [AAPL]
`)
	t.Setenv("ALPACA_API_KEY", "from-env")
	t.Setenv("ALPACA_API_SECRET", "also-from-env")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Alpaca.APIKey)
	assert.Equal(t, "also-from-env", cfg.Alpaca.APISecret)
}

func TestValidateRejectsMissingCredentials(t *testing.T) {
	path := writeConfig(t, `
symbols: [AAPL]
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadPercents(t *testing.T) {
	path := writeConfig(t, `
alpaca:
  api_key: key
  api_secret: secret
symbols: [AAPL]
strategy:
  stop_pct: 1.5
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

func TestParseClock(t *testing.T) {
	h, m, err := config.ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9, h)
	assert.Equal(t, 30, m)

	_, _, err = config.ParseClock("930")
	assert.Error(t, err)
	_, _, err = config.ParseClock("25:00")
	assert.Error(t, err)
}
