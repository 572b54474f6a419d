// Package reconcile compares the local position ledger against the venue's
// authoritative view and cleans up drift.
package reconcile

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"polytrader/internal/config"
	"polytrader/internal/logger"
	"polytrader/internal/notifier"
	"polytrader/internal/types"
)

// diff below this absolute share count is measurement noise, not drift.
const diffEpsilon = 0.001

// Ledger is the local position owner. Orphan removal is delegated so there
// is exactly one component mutating positions.
type Ledger interface {
	Positions() []types.Position
	RemovePosition(ctx context.Context, marketID string, outcome types.Outcome) error
}

// PositionSource returns the venue's authoritative positions. Empty is
// legitimate in paper mode.
type PositionSource interface {
	Positions(ctx context.Context) ([]types.VenuePosition, error)
}

// MarketStatusLookup resolves the lifecycle state of a market.
type MarketStatusLookup interface {
	MarketStatus(ctx context.Context, marketID string) (types.MarketStatus, error)
}

// Reconciler runs periodic local-vs-venue position checks. Runs are
// single-flight: a call overlapping an active run returns the cached result.
type Reconciler struct {
	ledger  Ledger
	venue   PositionSource
	markets MarketStatusLookup
	alerts  notifier.AlertSink
	cfg     config.ReconcileConfig

	running sync.Mutex

	mu                 sync.Mutex
	last               *types.ReconciliationResult
	lastRun            time.Time
	totalDiscrepancies int
}

// NewReconciler wires the reconciler against the ledger and venue.
func NewReconciler(cfg config.ReconcileConfig, ledger Ledger, venue PositionSource, markets MarketStatusLookup, alerts notifier.AlertSink) *Reconciler {
	if alerts == nil {
		alerts = notifier.NewLogSink()
	}
	return &Reconciler{
		ledger:  ledger,
		venue:   venue,
		markets: markets,
		alerts:  alerts,
		cfg:     cfg,
	}
}

// Reconcile runs one cycle. If a cycle is already in progress the previous
// result is returned untouched. Fetch errors propagate; per-orphan cleanup
// failures are counted in the result and do not abort the cycle.
func (r *Reconciler) Reconcile(ctx context.Context) (types.ReconciliationResult, error) {
	if !r.running.TryLock() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.last != nil {
			return *r.last, nil
		}
		return types.ReconciliationResult{}, fmt.Errorf("reconcile: run in progress, no previous result")
	}
	defer r.running.Unlock()

	result, err := r.run(ctx)
	if err != nil {
		return types.ReconciliationResult{}, err
	}

	r.mu.Lock()
	r.last = &result
	r.lastRun = result.Timestamp
	r.totalDiscrepancies += len(result.Discrepancies)
	r.mu.Unlock()
	return result, nil
}

func (r *Reconciler) run(ctx context.Context) (types.ReconciliationResult, error) {
	local := r.ledger.Positions()
	external, err := r.venue.Positions(ctx)
	if err != nil {
		return types.ReconciliationResult{}, fmt.Errorf("reconcile: fetching venue positions: %w", err)
	}

	externalByKey := make(map[types.PositionKey]types.VenuePosition, len(external))
	for _, vp := range external {
		externalByKey[types.PositionKey{MarketID: vp.MarketID, Outcome: vp.Outcome}] = vp
	}

	result := types.ReconciliationResult{Timestamp: time.Now()}
	for _, position := range local {
		vp, ok := externalByKey[position.Key()]
		if !ok {
			result.OrphanedPositions = append(result.OrphanedPositions, position)
			continue
		}
		if d := discrepancy(position, vp); d != nil {
			result.Discrepancies = append(result.Discrepancies, *d)
		}
	}
	result.StalePositions = r.stalePositions(ctx, local)
	result.Synced = len(result.Discrepancies) == 0 && len(result.OrphanedPositions) == 0

	logger.Infof("reconcile: local=%d venue=%d discrepancies=%d orphans=%d stale=%d synced=%v",
		len(local), len(external), len(result.Discrepancies),
		len(result.OrphanedPositions), len(result.StalePositions), result.Synced)

	for _, d := range result.Discrepancies {
		if d.Severity == types.SeverityCritical {
			r.alerts.Error("reconcile", fmt.Errorf(
				"critical position drift on %s %s: local %.4f vs venue %.4f",
				d.Position.MarketID, d.Position.Outcome, d.ExpectedShares, d.ActualShares))
		}
	}

	for _, orphan := range result.OrphanedPositions {
		if err := r.ledger.RemovePosition(ctx, orphan.MarketID, orphan.Outcome); err != nil {
			result.CleanupFailures++
			logger.Errorf("reconcile: removing orphan %s %s: %v", orphan.MarketID, orphan.Outcome, err)
			r.alerts.Error("reconcile", fmt.Errorf("removing orphan %s %s: %w", orphan.MarketID, orphan.Outcome, err))
			continue
		}
		logger.Warnf("reconcile: removed orphaned position (market=%s outcome=%s shares=%.4f)",
			orphan.MarketID, orphan.Outcome, orphan.Shares)
	}
	return result, nil
}

// discrepancy grades the share drift between a local position and the
// venue's view, or returns nil when the drift is within tolerance.
func discrepancy(local types.Position, external types.VenuePosition) *types.PositionDiscrepancy {
	diff := math.Abs(local.Shares - external.Shares)
	if diff <= diffEpsilon {
		return nil
	}
	ratio := 0.0
	if local.Shares > 0 {
		ratio = diff / local.Shares
	}
	severity := types.SeverityMinor
	switch {
	case ratio > 0.10:
		severity = types.SeverityCritical
	case ratio > 0.05:
		severity = types.SeverityMajor
	}
	return &types.PositionDiscrepancy{
		Position:       local,
		ActualShares:   external.Shares,
		ExpectedShares: local.Shares,
		Difference:     diff,
		Severity:       severity,
	}
}

// stalePositions flags positions whose market is CLOSED or RESOLVED. Lookup
// failures are logged and the position skipped; staleness is advisory.
func (r *Reconciler) stalePositions(ctx context.Context, local []types.Position) []types.Position {
	if r.markets == nil {
		return nil
	}
	var stale []types.Position
	for _, position := range local {
		status, err := r.markets.MarketStatus(ctx, position.MarketID)
		if err != nil {
			logger.Warnf("reconcile: market status lookup failed (market=%s): %v", position.MarketID, err)
			continue
		}
		if status == types.MarketClosed || status == types.MarketResolved {
			stale = append(stale, position)
		}
	}
	return stale
}

// Last returns the most recent result, or false when none has completed.
func (r *Reconciler) Last() (types.ReconciliationResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return types.ReconciliationResult{}, false
	}
	return *r.last, true
}

// TotalDiscrepancies is the cumulative drift count for the life of the
// process. It is never reset.
func (r *Reconciler) TotalDiscrepancies() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalDiscrepancies
}

// Run drives periodic reconciliation until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	interval := time.Duration(r.cfg.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Reconcile(ctx); err != nil {
				logger.Errorf("reconcile: cycle failed: %v", err)
				r.alerts.Error("reconcile", err)
			}
		}
	}
}
