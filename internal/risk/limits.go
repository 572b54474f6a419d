package risk

import (
	"time"

	"polytrader/internal/config"
)

// Limits is the active set of hard risk limits.
type Limits struct {
	MaxDailyLossPct        float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct"`
	MaxDailyLossUSD        float64 `json:"max_daily_loss_usd" yaml:"max_daily_loss_usd"`
	MaxDailyTrades         int     `json:"max_daily_trades" yaml:"max_daily_trades"`
	MaxPortfolioHeatPct    float64 `json:"max_portfolio_heat_pct" yaml:"max_portfolio_heat_pct"`
	MaxPositions           int     `json:"max_positions" yaml:"max_positions"`
	MaxPositionPct         float64 `json:"max_position_pct" yaml:"max_position_pct"`
	CooldownAfterLossMin   int     `json:"cooldown_after_loss_min" yaml:"cooldown_after_loss_min"`
	CooldownAfterWinMin    int     `json:"cooldown_after_win_min" yaml:"cooldown_after_win_min"`
	StopLossPct            float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	EnableCorrelationCheck bool    `json:"enable_correlation_check" yaml:"enable_correlation_check"`
	MaxCorrelatedPositions int     `json:"max_correlated_positions" yaml:"max_correlated_positions"`
	EmergencyStopDailyLoss float64 `json:"emergency_stop_daily_loss" yaml:"emergency_stop_daily_loss"`
}

// LimitsFromConfig maps the startup configuration onto a limit set.
func LimitsFromConfig(cfg config.RiskConfig) Limits {
	return Limits{
		MaxDailyLossPct:        cfg.MaxDailyLossPct,
		MaxDailyLossUSD:        cfg.MaxDailyLossUSD,
		MaxDailyTrades:         cfg.MaxDailyTrades,
		MaxPortfolioHeatPct:    cfg.MaxPortfolioHeatPct,
		MaxPositions:           cfg.MaxPositions,
		MaxPositionPct:         cfg.MaxPositionPct,
		CooldownAfterLossMin:   cfg.CooldownAfterLossMin,
		CooldownAfterWinMin:    cfg.CooldownAfterWinMin,
		StopLossPct:            cfg.StopLossPct,
		EnableCorrelationCheck: cfg.EnableCorrelationCheck,
		MaxCorrelatedPositions: cfg.MaxCorrelatedPositions,
		EmergencyStopDailyLoss: cfg.EmergencyStopDailyLoss,
	}
}

// CooldownAfterLoss returns the post-loss waiting period.
func (l Limits) CooldownAfterLoss() time.Duration {
	return time.Duration(l.CooldownAfterLossMin) * time.Minute
}

// CooldownAfterWin returns the post-win waiting period.
func (l Limits) CooldownAfterWin() time.Duration {
	return time.Duration(l.CooldownAfterWinMin) * time.Minute
}

// LimitsProvider yields the limit set in effect; implementations may swap
// limits at runtime.
type LimitsProvider interface {
	Current() Limits
}

// StaticLimits is a fixed LimitsProvider.
type StaticLimits struct {
	limits Limits
}

func NewStaticLimits(l Limits) *StaticLimits { return &StaticLimits{limits: l} }

func (s *StaticLimits) Current() Limits { return s.limits }
