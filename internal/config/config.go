package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads the YAML config file at path, applies environment overrides,
// fills defaults and validates the result.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	bindEnvOverrides(v)
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	setKeys := make(keySet)
	collectSettingsKeys(v.AllSettings(), setKeys)
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindEnvOverrides wires the flat option names recognized by the deployment
// environment onto their config paths.
func bindEnvOverrides(v *viper.Viper) {
	envKeys := map[string]string{
		"risk.max_daily_loss_pct":        "MAX_DAILY_LOSS_PCT",
		"risk.max_daily_loss_usd":        "MAX_DAILY_LOSS_USD",
		"risk.max_daily_trades":          "MAX_DAILY_TRADES",
		"risk.max_portfolio_heat_pct":    "MAX_PORTFOLIO_HEAT_PCT",
		"risk.max_positions":             "MAX_POSITIONS",
		"risk.max_position_pct":          "MAX_POSITION_PCT",
		"risk.cooldown_after_loss_min":   "COOLDOWN_AFTER_LOSS_MIN",
		"risk.cooldown_after_win_min":    "COOLDOWN_AFTER_WIN_MIN",
		"risk.stop_loss_pct":             "STOP_LOSS_PCT",
		"risk.enable_correlation_check":  "ENABLE_CORRELATION_CHECK",
		"risk.max_correlated_positions":  "MAX_CORRELATED_POSITIONS",
		"risk.emergency_stop_daily_loss": "EMERGENCY_STOP_DAILY_LOSS",
		"trading.max_slippage_pct":       "MAX_SLIPPAGE_PCT",
		"trading.paper_trading":          "PAPER_TRADING",
		"trading.paper_balance_usd":      "PAPER_BALANCE",
		"trading.order_timeout_ms":       "ORDER_TIMEOUT_MS",
		"reconcile.interval_ms":          "RECONCILIATION_INTERVAL_MS",
	}
	for key, env := range envKeys {
		// error only fires on empty arguments
		_ = v.BindEnv(key, env)
	}
}

func collectSettingsKeys(settings map[string]any, dest keySet) {
	if dest == nil || len(settings) == 0 {
		return
	}
	flattenConfigKeys("", settings, dest)
}

func flattenConfigKeys(prefix string, node any, dest keySet) {
	switch val := node.(type) {
	case map[string]any:
		for k, v := range val {
			next := strings.ToLower(strings.TrimSpace(k))
			if next == "" {
				continue
			}
			if prefix != "" {
				next = prefix + "." + next
			}
			flattenConfigKeys(next, v, dest)
		}
	case []any:
		if prefix != "" {
			dest.mark(prefix)
		}
		for _, item := range val {
			flattenConfigKeys(prefix, item, dest)
		}
	default:
		if prefix != "" {
			dest.mark(prefix)
		}
	}
}
