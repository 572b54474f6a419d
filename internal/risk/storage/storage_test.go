package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"polytrader/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "risk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_LoadMissingDateReturnsNil(t *testing.T) {
	store := openTestStore(t)
	state, err := store.Load(context.Background(), "2026-08-29")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	state := types.DailyRiskState{
		Date:          "2026-08-29",
		Trades:        []types.Trade{{ID: "t-1", MarketID: "mkt-1", PnL: -12.5}},
		TotalTrades:   1,
		LosingTrades:  1,
		DailyPnL:      -12.5,
		LastTradeTime: now,
		CooldownUntil: now.Add(30 * time.Minute),
	}
	require.NoError(t, store.Save(ctx, state))

	loaded, err := store.Load(ctx, "2026-08-29")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, state.Date, loaded.Date)
	assert.Equal(t, state.TotalTrades, loaded.TotalTrades)
	assert.Equal(t, state.DailyPnL, loaded.DailyPnL)
	require.Len(t, loaded.Trades, 1)
	assert.Equal(t, "t-1", loaded.Trades[0].ID)
	assert.True(t, state.CooldownUntil.Equal(loaded.CooldownUntil))
}

func TestStore_SaveUpsertsSameDate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, types.DailyRiskState{Date: "2026-08-29", TotalTrades: 1}))
	require.NoError(t, store.Save(ctx, types.DailyRiskState{
		Date:                   "2026-08-29",
		TotalTrades:            2,
		EmergencyStopTriggered: true,
	}))

	loaded, err := store.Load(ctx, "2026-08-29")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 2, loaded.TotalTrades)
	assert.True(t, loaded.EmergencyStopTriggered)
}
