package config

import "strings"

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9980"

	defaultVenueTimeout       = 15
	defaultVenueMaxRetries    = 3
	defaultVenueBaseDelayMs   = 500
	defaultVenueMaxDelayMs    = 10000
	defaultVenueMinIntervalMs = 200
	defaultVenueCBThreshold   = 5
	defaultVenueCBResetMs     = 30000

	defaultMaxDailyLossPct        = 0.02
	defaultMaxDailyLossUSD        = 100
	defaultMaxDailyTrades         = 5
	defaultMaxPortfolioHeatPct    = 0.30
	defaultMaxPositions           = 10
	defaultMaxPositionPct         = 0.05
	defaultCooldownAfterLossMin   = 30
	defaultCooldownAfterWinMin    = 5
	defaultStopLossPct            = 0.20
	defaultMaxCorrelatedPositions = 2
	defaultEmergencyStopDailyLoss = 0.05
	defaultRiskStateDBPath        = "data/risk_state.db"

	defaultPaperBalanceUSD = 10000
	defaultLiveFeeRate     = 0.01
	defaultMaxSlippagePct  = 0.02
	defaultOrderTimeoutMs  = 30000
	defaultOrderSweepMs    = 10000
	defaultOrderCleanupMs  = 60000
	defaultPriceMaxAgeMs   = 60000
	defaultStopLossScanMs  = 30000

	defaultReconcileIntervalMs = 300000

	defaultStoreDBPath = "data/polytrader.db"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Venue.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Reconcile.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (v *VenueConfig) applyDefaults(keys keySet) {
	if v == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("venue.timeout_seconds", &v.TimeoutSeconds, defaultVenueTimeout),
		intFieldDefault("venue.max_retries", &v.MaxRetries, defaultVenueMaxRetries),
		intFieldDefault("venue.base_delay_ms", &v.BaseDelayMs, defaultVenueBaseDelayMs),
		intFieldDefault("venue.max_delay_ms", &v.MaxDelayMs, defaultVenueMaxDelayMs),
		intFieldDefault("venue.min_interval_ms", &v.MinIntervalMs, defaultVenueMinIntervalMs),
		intFieldDefault("venue.circuit_breaker_threshold", &v.CircuitBreakerThreshold, defaultVenueCBThreshold),
		intFieldDefault("venue.circuit_reset_ms", &v.CircuitResetMs, defaultVenueCBResetMs),
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("risk.max_daily_loss_pct", &r.MaxDailyLossPct, defaultMaxDailyLossPct),
		floatFieldDefault("risk.max_daily_loss_usd", &r.MaxDailyLossUSD, defaultMaxDailyLossUSD),
		intFieldDefault("risk.max_daily_trades", &r.MaxDailyTrades, defaultMaxDailyTrades),
		floatFieldDefault("risk.max_portfolio_heat_pct", &r.MaxPortfolioHeatPct, defaultMaxPortfolioHeatPct),
		intFieldDefault("risk.max_positions", &r.MaxPositions, defaultMaxPositions),
		floatFieldDefault("risk.max_position_pct", &r.MaxPositionPct, defaultMaxPositionPct),
		intFieldDefault("risk.cooldown_after_loss_min", &r.CooldownAfterLossMin, defaultCooldownAfterLossMin),
		intFieldDefault("risk.cooldown_after_win_min", &r.CooldownAfterWinMin, defaultCooldownAfterWinMin),
		floatFieldDefault("risk.stop_loss_pct", &r.StopLossPct, defaultStopLossPct),
		boolFieldDefault("risk.enable_correlation_check", &r.EnableCorrelationCheck, true),
		intFieldDefault("risk.max_correlated_positions", &r.MaxCorrelatedPositions, defaultMaxCorrelatedPositions),
		floatFieldDefault("risk.emergency_stop_daily_loss", &r.EmergencyStopDailyLoss, defaultEmergencyStopDailyLoss),
		stringFieldDefault("risk.state_db_path", &r.StateDBPath, defaultRiskStateDBPath),
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("trading.paper_trading", &t.PaperTrading, true),
		floatFieldDefault("trading.paper_balance_usd", &t.PaperBalanceUSD, defaultPaperBalanceUSD),
		floatFieldDefault("trading.live_fee_rate", &t.LiveFeeRate, defaultLiveFeeRate),
		floatFieldDefault("trading.max_slippage_pct", &t.MaxSlippagePct, defaultMaxSlippagePct),
		intFieldDefault("trading.order_timeout_ms", &t.OrderTimeoutMs, defaultOrderTimeoutMs),
		intFieldDefault("trading.order_sweep_interval_ms", &t.OrderSweepMs, defaultOrderSweepMs),
		intFieldDefault("trading.order_cleanup_delay_ms", &t.OrderCleanupMs, defaultOrderCleanupMs),
		intFieldDefault("trading.price_max_age_ms", &t.PriceMaxAgeMs, defaultPriceMaxAgeMs),
		intFieldDefault("trading.stop_loss_scan_interval_ms", &t.StopLossScanMs, defaultStopLossScanMs),
	)
	if t.PaperFeeRate < 0 {
		t.PaperFeeRate = 0
	}
}

func (r *ReconcileConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("reconcile.interval_ms", &r.IntervalMs, defaultReconcileIntervalMs),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.db_path", &s.DBPath, defaultStoreDBPath),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
