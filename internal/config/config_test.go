package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "app:\n  env: test\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.02, cfg.Risk.MaxDailyLossPct)
	assert.Equal(t, 100.0, cfg.Risk.MaxDailyLossUSD)
	assert.Equal(t, 5, cfg.Risk.MaxDailyTrades)
	assert.Equal(t, 0.30, cfg.Risk.MaxPortfolioHeatPct)
	assert.Equal(t, 10, cfg.Risk.MaxPositions)
	assert.Equal(t, 0.05, cfg.Risk.MaxPositionPct)
	assert.Equal(t, 30, cfg.Risk.CooldownAfterLossMin)
	assert.Equal(t, 5, cfg.Risk.CooldownAfterWinMin)
	assert.Equal(t, 0.20, cfg.Risk.StopLossPct)
	assert.True(t, cfg.Risk.EnableCorrelationCheck)
	assert.Equal(t, 2, cfg.Risk.MaxCorrelatedPositions)
	assert.Equal(t, 0.05, cfg.Risk.EmergencyStopDailyLoss)

	assert.True(t, cfg.Trading.PaperTrading)
	assert.Equal(t, 10000.0, cfg.Trading.PaperBalanceUSD)
	assert.Equal(t, 0.02, cfg.Trading.MaxSlippagePct)
	assert.Equal(t, 30000, cfg.Trading.OrderTimeoutMs)

	assert.Equal(t, 300000, cfg.Reconcile.IntervalMs)
	assert.Equal(t, 5, cfg.Venue.CircuitBreakerThreshold)
}

func TestLoad_ExplicitZeroSurvives(t *testing.T) {
	path := writeConfig(t, `
risk:
  enable_correlation_check: false
trading:
  paper_fee_rate: 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Risk.EnableCorrelationCheck)
	assert.Equal(t, 0.0, cfg.Trading.PaperFeeRate)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MAX_DAILY_TRADES", "7")
	t.Setenv("PAPER_TRADING", "false")
	t.Setenv("PAPER_BALANCE", "2500")

	path := writeConfig(t, "venue:\n  api_url: http://venue.test\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Risk.MaxDailyTrades)
	assert.False(t, cfg.Trading.PaperTrading)
	assert.Equal(t, 2500.0, cfg.Trading.PaperBalanceUSD)
}

func TestLoad_RejectsBadLimits(t *testing.T) {
	path := writeConfig(t, "risk:\n  max_daily_loss_pct: 1.5\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_TelegramRequiresCredentials(t *testing.T) {
	path := writeConfig(t, "notify:\n  telegram:\n    enabled: true\n")
	_, err := Load(path)
	assert.Error(t, err)
}
