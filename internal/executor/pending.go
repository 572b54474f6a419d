package executor

import (
	"context"
	"sort"
	"time"

	"polytrader/internal/logger"
	"polytrader/internal/types"

	"github.com/google/uuid"
)

// registerOrder adds a PENDING order, enforcing one in-flight order per
// market.
func (e *Engine) registerOrder(signal types.TradeSignal) (*types.PendingOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, o := range e.orders {
		if o.Status == types.OrderPending && o.Signal.MarketID == signal.MarketID {
			return nil, ErrOrderPending
		}
	}
	order := &types.PendingOrder{
		ID:          uuid.NewString(),
		Signal:      signal,
		Status:      types.OrderPending,
		SubmittedAt: e.now(),
	}
	e.orders[order.ID] = order
	return order, nil
}

// finishOrder moves an order to a terminal status. A sweep may have
// cancelled it already; terminal states are never overwritten.
func (e *Engine) finishOrder(id string, status types.OrderStatus, trade *types.Trade, errMsg string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[id]
	if !ok || order.Status.Terminal() {
		return
	}
	order.Status = status
	order.Error = errMsg
	if trade != nil {
		filledAt := e.now()
		order.FilledAt = &filledAt
		order.FilledShares = trade.Shares
		order.FilledPrice = trade.Price
	}
}

// scheduleOrderCleanup drops the order record from the live map after the
// configured delay. The terminal status is already set; this is bookkeeping
// only.
func (e *Engine) scheduleOrderCleanup(id string) {
	delay := time.Duration(e.cfg.OrderCleanupMs) * time.Millisecond
	if delay <= 0 {
		delay = time.Minute
	}
	time.AfterFunc(delay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.orders, id)
	})
}

// Orders returns a snapshot of the live order map, newest first.
func (e *Engine) Orders() []types.PendingOrder {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.PendingOrder, 0, len(e.orders))
	for _, o := range e.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out
}

// sweepTimedOutOrders cancels PENDING orders older than the order timeout.
// It does not abort any in-flight venue call.
func (e *Engine) sweepTimedOutOrders() int {
	timeout := time.Duration(e.cfg.OrderTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cancelled := 0
	now := e.now()
	for _, o := range e.orders {
		if o.Status != types.OrderPending {
			continue
		}
		if now.Sub(o.SubmittedAt) > timeout {
			o.Status = types.OrderCancelled
			o.Error = "Order timeout"
			cancelled++
			logger.Warnf("executor: order %s timed out (market=%s age=%s)",
				o.ID, o.Signal.MarketID, now.Sub(o.SubmittedAt).Truncate(time.Second))
		}
	}
	return cancelled
}

// RunOrderSweep drives the order-timeout monitor until ctx is cancelled.
func (e *Engine) RunOrderSweep(ctx context.Context) error {
	interval := time.Duration(e.cfg.OrderSweepMs) * time.Millisecond
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.sweepTimedOutOrders()
		}
	}
}
