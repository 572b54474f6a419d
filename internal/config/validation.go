package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Venue.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Store.DBPath) == "" {
		return fmt.Errorf("store.db_path cannot be empty")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	for _, pct := range []struct {
		name  string
		value float64
	}{
		{"risk.max_daily_loss_pct", r.MaxDailyLossPct},
		{"risk.max_portfolio_heat_pct", r.MaxPortfolioHeatPct},
		{"risk.max_position_pct", r.MaxPositionPct},
		{"risk.stop_loss_pct", r.StopLossPct},
		{"risk.emergency_stop_daily_loss", r.EmergencyStopDailyLoss},
	} {
		if pct.value <= 0 || pct.value > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %v", pct.name, pct.value)
		}
	}
	if r.MaxDailyLossUSD <= 0 {
		return fmt.Errorf("risk.max_daily_loss_usd must be > 0")
	}
	if r.MaxDailyTrades <= 0 {
		return fmt.Errorf("risk.max_daily_trades must be > 0")
	}
	if r.MaxPositions <= 0 {
		return fmt.Errorf("risk.max_positions must be > 0")
	}
	if r.MaxCorrelatedPositions <= 0 {
		return fmt.Errorf("risk.max_correlated_positions must be > 0")
	}
	if strings.TrimSpace(r.StateDBPath) == "" {
		return fmt.Errorf("risk.state_db_path cannot be empty")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if t.PaperTrading && t.PaperBalanceUSD <= 0 {
		return fmt.Errorf("trading.paper_balance_usd must be > 0 in paper mode")
	}
	if t.MaxSlippagePct <= 0 || t.MaxSlippagePct > 1 {
		return fmt.Errorf("trading.max_slippage_pct must be in (0, 1]")
	}
	if t.PaperFeeRate < 0 || t.LiveFeeRate < 0 {
		return fmt.Errorf("fee rates cannot be negative")
	}
	if t.OrderTimeoutMs <= 0 {
		return fmt.Errorf("trading.order_timeout_ms must be > 0")
	}
	return nil
}

func (v *VenueConfig) validate() error {
	// api_url may stay empty in paper mode; the client is then constructed
	// in simulated mode and never dials out.
	if v.MaxRetries < 0 {
		return fmt.Errorf("venue.max_retries cannot be negative")
	}
	if v.CircuitBreakerThreshold <= 0 {
		return fmt.Errorf("venue.circuit_breaker_threshold must be > 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if strings.TrimSpace(n.Telegram.BotToken) == "" || strings.TrimSpace(n.Telegram.ChatID) == "" {
			return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
		}
	}
	return nil
}
