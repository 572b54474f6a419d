package config

import "strings"

// Config is the root configuration of the trading core.
type Config struct {
	App       AppConfig       `toml:"app"`
	Venue     VenueConfig     `toml:"venue"`
	Risk      RiskConfig      `toml:"risk"`
	Trading   TradingConfig   `toml:"trading"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Store     StoreConfig     `toml:"store"`
	Notify    NotifyConfig    `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// VenueConfig describes access to the prediction-market venue API.
type VenueConfig struct {
	APIURL                  string `toml:"api_url"`
	APIKey                  string `toml:"api_key"`
	TimeoutSeconds          int    `toml:"timeout_seconds"`
	MaxRetries              int    `toml:"max_retries"`
	BaseDelayMs             int    `toml:"base_delay_ms"`
	MaxDelayMs              int    `toml:"max_delay_ms"`
	MinIntervalMs           int    `toml:"min_interval_ms"`
	CircuitBreakerThreshold int    `toml:"circuit_breaker_threshold"`
	CircuitResetMs          int    `toml:"circuit_reset_ms"`
	InsecureSkipVerify      bool   `toml:"insecure_skip_verify"`
}

// RiskConfig carries the hard risk limits. Values here are the startup
// limits; risk.limits_path can point at a hot-reloadable profile file that
// overrides them at runtime.
type RiskConfig struct {
	MaxDailyLossPct        float64 `toml:"max_daily_loss_pct"`
	MaxDailyLossUSD        float64 `toml:"max_daily_loss_usd"`
	MaxDailyTrades         int     `toml:"max_daily_trades"`
	MaxPortfolioHeatPct    float64 `toml:"max_portfolio_heat_pct"`
	MaxPositions           int     `toml:"max_positions"`
	MaxPositionPct         float64 `toml:"max_position_pct"`
	CooldownAfterLossMin   int     `toml:"cooldown_after_loss_min"`
	CooldownAfterWinMin    int     `toml:"cooldown_after_win_min"`
	StopLossPct            float64 `toml:"stop_loss_pct"`
	EnableCorrelationCheck bool    `toml:"enable_correlation_check"`
	MaxCorrelatedPositions int     `toml:"max_correlated_positions"`
	EmergencyStopDailyLoss float64 `toml:"emergency_stop_daily_loss"`
	LimitsPath             string  `toml:"limits_path"`
	StateDBPath            string  `toml:"state_db_path"`
}

// TradingConfig controls execution behaviour and the paper ledger.
type TradingConfig struct {
	PaperTrading    bool    `toml:"paper_trading"`
	PaperBalanceUSD float64 `toml:"paper_balance_usd"`
	PaperFeeRate    float64 `toml:"paper_fee_rate"`
	LiveFeeRate     float64 `toml:"live_fee_rate"`
	MaxSlippagePct  float64 `toml:"max_slippage_pct"`
	OrderTimeoutMs  int     `toml:"order_timeout_ms"`
	OrderSweepMs    int     `toml:"order_sweep_interval_ms"`
	OrderCleanupMs  int     `toml:"order_cleanup_delay_ms"`
	PriceMaxAgeMs   int     `toml:"price_max_age_ms"`
	StopLossScanMs  int     `toml:"stop_loss_scan_interval_ms"`
}

type ReconcileConfig struct {
	IntervalMs int `toml:"interval_ms"`
}

type StoreConfig struct {
	DBPath string `toml:"db_path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// keySet tracks config paths explicitly set in the file, so defaults never
// clobber a deliberate zero value.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes one field's defaulting rule.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
