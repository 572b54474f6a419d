package executor

import (
	"context"
	"testing"
	"time"

	"polytrader/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepTimedOutOrders(t *testing.T) {
	e, _, _ := newTestEngine(t, testTradingConfig())

	order, err := e.registerOrder(buyAt(0.40))
	require.NoError(t, err)

	// Within the timeout nothing is touched.
	assert.Equal(t, 0, e.sweepTimedOutOrders())

	e.now = func() time.Time { return time.Now().Add(time.Minute) }
	assert.Equal(t, 1, e.sweepTimedOutOrders())

	orders := e.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, types.OrderCancelled, orders[0].Status)
	assert.Equal(t, "Order timeout", orders[0].Error)
	assert.Equal(t, order.ID, orders[0].ID)

	// A second sweep leaves the terminal order alone.
	assert.Equal(t, 0, e.sweepTimedOutOrders())
}

func TestFinishOrder_DoesNotOverwriteTerminal(t *testing.T) {
	e, _, _ := newTestEngine(t, testTradingConfig())

	order, err := e.registerOrder(buyAt(0.40))
	require.NoError(t, err)

	e.now = func() time.Time { return time.Now().Add(time.Minute) }
	require.Equal(t, 1, e.sweepTimedOutOrders())

	e.finishOrder(order.ID, types.OrderFilled, &types.Trade{Shares: 10, Price: 0.4}, "")
	assert.Equal(t, types.OrderCancelled, e.Orders()[0].Status)
}

func TestOrderClearedAfterTerminalAllowsNewExecution(t *testing.T) {
	e, _, _ := newTestEngine(t, testTradingConfig())
	ctx := context.Background()

	_, err := e.ExecuteSignal(ctx, buyAt(0.40), approved(10))
	require.NoError(t, err)

	// The first order is FILLED, so a second execution on the same market
	// is allowed even before cleanup removes the record.
	_, err = e.ExecuteSignal(ctx, buyAt(0.42), approved(10))
	require.NoError(t, err)

	assert.Len(t, e.Orders(), 2)
}
