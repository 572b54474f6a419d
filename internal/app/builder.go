// Package app assembles the trading core from configuration and runs its
// background tasks until shutdown.
package app

import (
	"fmt"

	"polytrader/internal/config"
	"polytrader/internal/executor"
	"polytrader/internal/gateway/venue"
	"polytrader/internal/logger"
	"polytrader/internal/notifier"
	"polytrader/internal/reconcile"
	"polytrader/internal/risk"
	riskstorage "polytrader/internal/risk/storage"
	"polytrader/internal/store"
	"polytrader/internal/store/gormstore"
	adminhttp "polytrader/internal/transport/http"
)

// App holds every constructed component plus the resources to close on
// shutdown.
type App struct {
	cfg *config.Config

	store      store.Store
	riskStates *riskstorage.Store
	risk       *risk.Manager
	engine     *executor.Engine
	venue      *venue.Client
	reconciler *reconcile.Reconciler
	server     *adminhttp.Server
}

// NewApp wires the full component graph. Construction fails fast: a store
// or profile that cannot be opened is a startup error, never a silent
// no-op.
func NewApp(cfg *config.Config) (*App, error) {
	alerts := buildAlertSink(cfg.Notify)

	st, err := gormstore.Open(cfg.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("app: opening trading store: %w", err)
	}

	riskStates, err := riskstorage.Open(cfg.Risk.StateDBPath)
	if err != nil {
		return nil, fmt.Errorf("app: opening risk state store: %w", err)
	}

	limits, err := buildLimits(cfg.Risk)
	if err != nil {
		return nil, err
	}

	riskMgr, err := risk.NewManager(limits, riskStates, alerts)
	if err != nil {
		return nil, err
	}

	engine, err := executor.NewEngine(cfg.Trading, st, riskMgr, alerts)
	if err != nil {
		return nil, err
	}

	venueClient, err := venue.NewClient(cfg.Venue)
	if err != nil {
		return nil, fmt.Errorf("app: building venue client: %w", err)
	}
	reconciler := reconcile.NewReconciler(cfg.Reconcile, engine, venueClient, venueClient, alerts)

	server, err := adminhttp.NewServer(adminhttp.ServerConfig{
		Addr:       cfg.App.HTTPAddr,
		Engine:     engine,
		Risk:       riskMgr,
		Reconciler: reconciler,
		Limits:     limitsSource(cfg.Risk, limits),
		Trades:     st.Trades(),
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:        cfg,
		store:      st,
		riskStates: riskStates,
		risk:       riskMgr,
		engine:     engine,
		venue:      venueClient,
		reconciler: reconciler,
		server:     server,
	}, nil
}

// buildLimits prefers the hot-reloadable profile file; without one the
// startup configuration is the fixed limit set.
func buildLimits(cfg config.RiskConfig) (risk.LimitsProvider, error) {
	base := risk.LimitsFromConfig(cfg)
	if cfg.LimitsPath == "" {
		return risk.NewStaticLimits(base), nil
	}
	registry, err := risk.NewRegistry(cfg.LimitsPath, base)
	if err != nil {
		return nil, fmt.Errorf("app: loading risk limits profile: %w", err)
	}
	return registry, nil
}

// limitsSource exposes the registry over the admin API when one is in use.
func limitsSource(cfg config.RiskConfig, provider risk.LimitsProvider) adminhttp.LimitsSource {
	if registry, ok := provider.(*risk.Registry); ok && cfg.LimitsPath != "" {
		return registry
	}
	return nil
}

func buildAlertSink(cfg config.NotifyConfig) notifier.AlertSink {
	if cfg.Telegram.Enabled {
		return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}
	logger.Infof("app: telegram disabled, alerts go to the log")
	return notifier.NewLogSink()
}
