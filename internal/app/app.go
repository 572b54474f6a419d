package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"polytrader/internal/logger"

	"golang.org/x/sync/errgroup"
)

// Run starts every background task and blocks until a signal arrives or one
// of the tasks fails. Shutdown joins all tasks and closes the stores.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.server.Start(ctx) })
	g.Go(func() error { return ignoreCancel(a.engine.RunOrderSweep(ctx)) })
	g.Go(func() error { return ignoreCancel(a.engine.RunStopLossScan(ctx, a.risk)) })
	g.Go(func() error { return ignoreCancel(a.risk.Run(ctx)) })
	g.Go(func() error { return ignoreCancel(a.reconciler.Run(ctx)) })

	logger.Infof("app: running (paper=%v http=%s)", a.cfg.Trading.PaperTrading, a.cfg.App.HTTPAddr)
	err := g.Wait()

	if cerr := a.riskStates.Close(); cerr != nil {
		logger.Errorf("app: closing risk state store: %v", cerr)
	}
	if cerr := a.store.Close(); cerr != nil {
		logger.Errorf("app: closing trading store: %v", cerr)
	}
	logger.Infof("app: shut down")
	return err
}

// ignoreCancel treats context cancellation as a clean exit so shutdown does
// not surface as a failure.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
