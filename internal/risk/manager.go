// Package risk gates every proposed trade behind hard loss limits, sizing
// rules, cooldowns and a one-way emergency stop.
package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"polytrader/internal/logger"
	"polytrader/internal/notifier"
	"polytrader/internal/types"
)

// StateStore persists the per-day risk ledger keyed by local date
// (YYYY-MM-DD) so a restart resumes mid-day accounting.
type StateStore interface {
	Load(ctx context.Context, date string) (*types.DailyRiskState, error)
	Save(ctx context.Context, state types.DailyRiskState) error
	Close() error
}

// Assessment is the decision returned for a proposed trade. It is a data
// result, not an error: rejection reasons accumulate in Warnings.
type Assessment struct {
	Approved         bool     `json:"approved"`
	SuggestedSizeUSD float64  `json:"suggested_size_usd"`
	RiskScore        float64  `json:"risk_score"`
	Warnings         []string `json:"warnings"`
	MaxLossUSD       float64  `json:"max_loss_usd"`
}

// Manager is the stateful risk gate. All methods are safe for concurrent
// use; mutation is serialized on one mutex.
type Manager struct {
	mu     sync.Mutex
	limits LimitsProvider
	states StateStore
	alerts notifier.AlertSink

	day                *types.DailyRiskState
	emergencyStop      bool
	lastPortfolioValue float64

	now func() time.Time
}

// NewManager builds the risk gate and resumes today's persisted state.
// A concrete state store is required; there is no silent no-op fallback.
func NewManager(limits LimitsProvider, states StateStore, alerts notifier.AlertSink) (*Manager, error) {
	if limits == nil {
		return nil, fmt.Errorf("risk: limits provider is required")
	}
	if states == nil {
		return nil, fmt.Errorf("risk: state store is required")
	}
	if alerts == nil {
		alerts = notifier.NewLogSink()
	}
	m := &Manager{
		limits: limits,
		states: states,
		alerts: alerts,
		now:    time.Now,
	}
	today := dateKey(m.now())
	state, err := states.Load(context.Background(), today)
	if err != nil {
		return nil, fmt.Errorf("risk: loading daily state failed: %w", err)
	}
	if state == nil {
		state = freshDay(today)
	}
	m.day = state
	m.emergencyStop = state.EmergencyStopTriggered
	if m.emergencyStop {
		logger.Warnf("risk: resumed with emergency stop still triggered (date=%s)", today)
	}
	return m, nil
}

// AssessTrade evaluates a proposed trade against every limit. Checks are
// independent; all failures accumulate into Warnings and any failure rejects.
func (m *Manager) AssessTrade(signal types.TradeSignal, portfolioValue, availableBalance float64, openPositions []types.Position) Assessment {
	m.mu.Lock()
	defer m.mu.Unlock()

	limits := m.limits.Current()
	m.rolloverLocked()
	if portfolioValue > 0 {
		m.lastPortfolioValue = portfolioValue
	}

	heat := portfolioHeat(openPositions, portfolioValue)
	score := riskScore(limits, signal, len(openPositions))

	if m.emergencyStop {
		return Assessment{
			Approved:  false,
			RiskScore: score,
			Warnings:  []string{"emergency stop active; manual reset required"},
		}
	}

	var warnings []string

	// Daily loss limit and emergency threshold.
	maxDailyLoss := math.Min(portfolioValue*limits.MaxDailyLossPct, limits.MaxDailyLossUSD)
	if m.day.DailyPnL < -maxDailyLoss {
		warnings = append(warnings, fmt.Sprintf("daily loss limit reached: %.2f < -%.2f", m.day.DailyPnL, maxDailyLoss))
	}
	if m.evaluateEmergencyLocked(portfolioValue) {
		warnings = append(warnings, "emergency stop triggered by daily loss")
		m.persistLocked(context.Background())
	}

	if m.day.TotalTrades >= limits.MaxDailyTrades {
		warnings = append(warnings, fmt.Sprintf("daily trade cap reached (%d)", limits.MaxDailyTrades))
	}

	if now := m.now(); now.Before(m.day.CooldownUntil) {
		remaining := m.day.CooldownUntil.Sub(now)
		warnings = append(warnings, fmt.Sprintf("cooldown active: %.0f minutes remaining", math.Ceil(remaining.Minutes())))
	}

	if heat >= limits.MaxPortfolioHeatPct {
		warnings = append(warnings, fmt.Sprintf("portfolio heat %.2f above limit %.2f", heat, limits.MaxPortfolioHeatPct))
	}

	if len(openPositions) >= limits.MaxPositions {
		warnings = append(warnings, fmt.Sprintf("position cap reached (%d)", limits.MaxPositions))
	}

	if limits.EnableCorrelationCheck {
		warnings = append(warnings, m.correlationWarnings(limits, signal, openPositions)...)
	}

	size := suggestedSize(limits, signal, portfolioValue, availableBalance, heat)
	if size == 0 {
		warnings = append(warnings, "suggested size below minimum trade size")
	}

	return Assessment{
		Approved:         len(warnings) == 0 && size > 0,
		SuggestedSizeUSD: size,
		RiskScore:        score,
		Warnings:         warnings,
		MaxLossUSD:       size * limits.StopLossPct,
	}
}

func (m *Manager) correlationWarnings(limits Limits, signal types.TradeSignal, openPositions []types.Position) []string {
	var warnings []string
	correlated := 0
	for _, p := range openPositions {
		if p.MarketID == signal.MarketID {
			warnings = append(warnings, "position already open in this market")
			continue
		}
		if titlesCorrelated(p.MarketTitle, signal.MarketTitle) {
			correlated++
		}
	}
	if correlated >= limits.MaxCorrelatedPositions {
		warnings = append(warnings, fmt.Sprintf("too many correlated positions (%d)", correlated))
	}
	return warnings
}

// RecordTrade appends an executed trade to the daily ledger, applies the
// cooldown, persists the state and re-evaluates the emergency threshold.
func (m *Manager) RecordTrade(ctx context.Context, trade types.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limits := m.limits.Current()
	m.rolloverLocked()

	now := m.now()
	m.day.Trades = append(m.day.Trades, trade)
	m.day.TotalTrades++
	m.day.DailyPnL += trade.PnL
	m.day.LastTradeTime = now

	win := trade.PnL > 0
	if win {
		m.day.WinningTrades++
		m.day.CooldownUntil = now.Add(limits.CooldownAfterWin())
	} else {
		if trade.PnL < 0 {
			m.day.LosingTrades++
		}
		m.day.CooldownUntil = now.Add(limits.CooldownAfterLoss())
	}

	m.evaluateEmergencyLocked(m.lastPortfolioValue)
	m.persistLocked(ctx)
}

// CheckStopLosses flags positions whose drawdown from the average entry
// price breaches the stop-loss limit. Pure: no state is mutated and nothing
// is closed.
func (m *Manager) CheckStopLosses(positions []types.Position) []types.Position {
	limits := m.limits.Current()
	var breached []types.Position
	for _, p := range positions {
		if p.AveragePrice <= 0 {
			continue
		}
		change := (p.LastPrice - p.AveragePrice) / p.AveragePrice
		if change < -limits.StopLossPct {
			breached = append(breached, p)
		}
	}
	return breached
}

// EmergencyStopActive reports the sticky emergency flag.
func (m *Manager) EmergencyStopActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emergencyStop
}

// ResetEmergencyStop clears the emergency flag. This is the only way to
// resume trading after a trip; the daily reset never clears it.
func (m *Manager) ResetEmergencyStop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.emergencyStop {
		return
	}
	m.emergencyStop = false
	m.day.EmergencyStopTriggered = false
	m.persistLocked(ctx)
	logger.Warnf("risk: emergency stop manually reset")
}

// Status returns a copy of the current daily state plus the active limits.
func (m *Manager) Status() (types.DailyRiskState, Limits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked()
	day := *m.day
	day.Trades = append([]types.Trade(nil), m.day.Trades...)
	return day, m.limits.Current()
}

// Run drives the midnight rollover until ctx is cancelled. The replacement
// state is persisted immediately so a restart shortly after midnight does
// not resurrect yesterday's ledger.
func (m *Manager) Run(ctx context.Context) error {
	for {
		wait := time.Until(nextMidnight(m.now()))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			m.mu.Lock()
			m.rolloverLocked()
			m.persistLocked(ctx)
			m.mu.Unlock()
			logger.Infof("risk: daily state rolled over (date=%s)", dateKey(m.now()))
		}
	}
}

// rolloverLocked replaces the daily state when the local date has changed.
// The emergency flag survives the rollover.
func (m *Manager) rolloverLocked() {
	today := dateKey(m.now())
	if m.day != nil && m.day.Date == today {
		return
	}
	m.day = freshDay(today)
	m.day.EmergencyStopTriggered = m.emergencyStop
}

// evaluateEmergencyLocked trips the one-way emergency stop when the
// absolute daily P&L exceeds the configured fraction of portfolio value.
func (m *Manager) evaluateEmergencyLocked(portfolioValue float64) bool {
	if m.emergencyStop || portfolioValue <= 0 {
		return false
	}
	limits := m.limits.Current()
	threshold := portfolioValue * limits.EmergencyStopDailyLoss
	if math.Abs(m.day.DailyPnL) > threshold {
		m.emergencyStop = true
		m.day.EmergencyStopTriggered = true
		reason := fmt.Sprintf("daily pnl %.2f exceeded threshold %.2f", m.day.DailyPnL, threshold)
		logger.Errorf("risk: emergency stop triggered: %s", reason)
		m.alerts.EmergencyStop(reason)
		return true
	}
	return false
}

func (m *Manager) persistLocked(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.states.Save(saveCtx, *m.day); err != nil {
		logger.Errorf("risk: persisting daily state failed: %v", err)
		m.alerts.Error("risk", err)
	}
}

func freshDay(date string) *types.DailyRiskState {
	return &types.DailyRiskState{Date: date}
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func nextMidnight(now time.Time) time.Time {
	y, mo, d := now.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}
