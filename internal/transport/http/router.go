package adminhttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"polytrader/internal/executor"
	"polytrader/internal/gateway/venue"
	"polytrader/internal/risk"
	"polytrader/internal/types"

	"github.com/gin-gonic/gin"
)

// ExecutionEngine is the ledger surface the API exposes.
type ExecutionEngine interface {
	ExecuteSignal(ctx context.Context, signal types.TradeSignal, assessment risk.Assessment) (*types.Trade, error)
	Portfolio() types.Portfolio
	Positions() []types.Position
	Orders() []types.PendingOrder
	Health() executor.Health
	EmergencyCloseAll(ctx context.Context, reason string) executor.CloseAllResult
}

// RiskGate is the risk-manager surface the API exposes.
type RiskGate interface {
	AssessTrade(signal types.TradeSignal, portfolioValue, availableBalance float64, openPositions []types.Position) risk.Assessment
	Status() (types.DailyRiskState, risk.Limits)
	EmergencyStopActive() bool
	ResetEmergencyStop(ctx context.Context)
}

// PositionReconciler triggers and reports reconciliation runs.
type PositionReconciler interface {
	Reconcile(ctx context.Context) (types.ReconciliationResult, error)
	Last() (types.ReconciliationResult, bool)
	TotalDiscrepancies() int
}

// LimitsSource reports the active risk-limit profile.
type LimitsSource interface {
	SnapshotYAML() ([]byte, error)
	LoadedAt() time.Time
}

// TradeJournal reads the persisted trade history.
type TradeJournal interface {
	ListRecent(ctx context.Context, limit int) ([]types.Trade, error)
}

type handler struct {
	engine     ExecutionEngine
	risk       RiskGate
	reconciler PositionReconciler
	limits     LimitsSource
	trades     TradeJournal
	signals    *signalValidator
}

func newHandler(cfg ServerConfig) (*handler, error) {
	signals, err := newSignalValidator()
	if err != nil {
		return nil, err
	}
	return &handler{
		engine:     cfg.Engine,
		risk:       cfg.Risk,
		reconciler: cfg.Reconciler,
		limits:     cfg.Limits,
		trades:     cfg.Trades,
		signals:    signals,
	}, nil
}

func (h *handler) register(router *gin.Engine) {
	router.GET("/healthz", h.handleHealth)

	api := router.Group("/api/v1")
	api.GET("/portfolio", h.handlePortfolio)
	api.GET("/positions", h.handlePositions)
	api.GET("/orders", h.handleOrders)
	api.GET("/trades", h.handleTrades)
	api.POST("/signal", h.handleSignal)
	api.POST("/close-all", h.handleCloseAll)
	api.GET("/risk/status", h.handleRiskStatus)
	api.POST("/risk/reset", h.handleRiskReset)
	api.GET("/risk/limits", h.handleRiskLimits)
	api.POST("/reconcile", h.handleReconcile)
	api.GET("/reconcile/last", h.handleReconcileLast)
}

func (h *handler) handleHealth(c *gin.Context) {
	health := h.engine.Health()
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

func (h *handler) handlePortfolio(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Portfolio())
}

func (h *handler) handlePositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": h.engine.Positions()})
}

func (h *handler) handleOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orders": h.engine.Orders()})
}

func (h *handler) handleTrades(c *gin.Context) {
	if h.trades == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "trade journal not configured"})
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	trades, err := h.trades.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

// handleSignal runs one signal through risk assessment and, when approved,
// execution. A risk rejection is a 200 with approved:false, not an error.
func (h *handler) handleSignal(c *gin.Context) {
	signal, err := h.signals.decode(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	portfolio := h.engine.Portfolio()
	assessment := h.risk.AssessTrade(signal, portfolio.TotalValue, portfolio.AvailableBalance, portfolio.Positions)
	if !assessment.Approved {
		c.JSON(http.StatusOK, gin.H{"assessment": assessment, "executed": false})
		return
	}

	trade, err := h.engine.ExecuteSignal(c.Request.Context(), signal, assessment)
	if err != nil {
		c.JSON(executionStatus(err), gin.H{"assessment": assessment, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assessment": assessment, "executed": true, "trade": trade})
}

// executionStatus maps execution errors onto HTTP statuses.
func executionStatus(err error) int {
	var httpErr *venue.HTTPError
	switch {
	case executor.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, executor.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, executor.ErrOrderPending):
		return http.StatusConflict
	case errors.Is(err, venue.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.As(err, &httpErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) handleCloseAll(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "manual close-all"
	}
	c.JSON(http.StatusOK, h.engine.EmergencyCloseAll(c.Request.Context(), req.Reason))
}

func (h *handler) handleRiskStatus(c *gin.Context) {
	day, limits := h.risk.Status()
	c.JSON(http.StatusOK, gin.H{
		"date":           day.Date,
		"daily_pnl":      day.DailyPnL,
		"total_trades":   day.TotalTrades,
		"winning_trades": day.WinningTrades,
		"losing_trades":  day.LosingTrades,
		"cooldown_until": day.CooldownUntil,
		"emergency_stop": h.risk.EmergencyStopActive(),
		"limits":         limits,
	})
}

func (h *handler) handleRiskReset(c *gin.Context) {
	h.risk.ResetEmergencyStop(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"emergency_stop": h.risk.EmergencyStopActive()})
}

func (h *handler) handleRiskLimits(c *gin.Context) {
	if h.limits == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "limits profile not configured"})
		return
	}
	snapshot, err := h.limits.SnapshotYAML()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("X-Loaded-At", h.limits.LoadedAt().Format(time.RFC3339))
	c.Data(http.StatusOK, "application/yaml", snapshot)
}

func (h *handler) handleReconcile(c *gin.Context) {
	if h.reconciler == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "reconciler not configured"})
		return
	}
	result, err := h.reconciler.Reconcile(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) handleReconcileLast(c *gin.Context) {
	if h.reconciler == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "reconciler not configured"})
		return
	}
	last, ok := h.reconciler.Last()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no reconciliation has completed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":              last,
		"total_discrepancies": h.reconciler.TotalDiscrepancies(),
	})
}
