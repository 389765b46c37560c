package jobs

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pressmill-erp/pressmill-erp/internal/mill"
)

type fakeWarehouses struct {
	mu      sync.Mutex
	list    []mill.Warehouse
	updated map[int64]decimal.Decimal
}

func (f *fakeWarehouses) ListWarehouses(context.Context) ([]mill.Warehouse, error) {
	return f.list, nil
}

func (f *fakeWarehouses) UpdateCompensationRatio(_ context.Context, id int64, ratio decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updated == nil {
		f.updated = map[int64]decimal.Decimal{}
	}
	f.updated[id] = ratio
	return nil
}

type fakeTotals struct {
	mu    sync.Mutex
	fruit map[int64]decimal.Decimal
	juice map[int64]decimal.Decimal
	since map[int64]time.Time
}

func (f *fakeTotals) DoneLineTotals(_ context.Context, warehouseID int64, since time.Time) (decimal.Decimal, decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.since == nil {
		f.since = map[int64]time.Time{}
	}
	f.since[warehouseID] = since
	return f.fruit[warehouseID], f.juice[warehouseID], nil
}

func ratioTask(t *testing.T, warehouseID int64) *asynq.Task {
	t.Helper()
	task, err := NewCompensationRatioTask(CompensationRatioPayload{WarehouseID: warehouseID})
	require.NoError(t, err)
	return task
}

func TestRatioRecomputerSweep(t *testing.T) {
	warehouses := &fakeWarehouses{list: []mill.Warehouse{
		{ID: 1, CompensationRatioDays: 90},
		{ID: 2, CompensationRatioDays: 30},
	}}
	totals := &fakeTotals{
		fruit: map[int64]decimal.Decimal{
			1: decimal.NewFromInt(400),
			2: decimal.NewFromInt(250),
		},
		juice: map[int64]decimal.Decimal{
			1: decimal.RequireFromString("59.76"),
			2: decimal.NewFromInt(50),
		},
	}
	rc := NewRatioRecomputer(warehouses, totals, slog.Default())
	now := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	rc.now = func() time.Time { return now }

	require.NoError(t, rc.Handle(context.Background(), ratioTask(t, 0)))

	require.True(t, warehouses.updated[1].Equal(decimal.RequireFromString("14.94")),
		"got %s", warehouses.updated[1])
	require.True(t, warehouses.updated[2].Equal(decimal.NewFromInt(20)),
		"got %s", warehouses.updated[2])
	require.Equal(t, now.AddDate(0, 0, -90), totals.since[1])
	require.Equal(t, now.AddDate(0, 0, -30), totals.since[2])
}

func TestRatioRecomputerSingleWarehouse(t *testing.T) {
	warehouses := &fakeWarehouses{list: []mill.Warehouse{
		{ID: 1, CompensationRatioDays: 90},
		{ID: 2, CompensationRatioDays: 90},
	}}
	totals := &fakeTotals{
		fruit: map[int64]decimal.Decimal{
			1: decimal.NewFromInt(100),
			2: decimal.NewFromInt(100),
		},
		juice: map[int64]decimal.Decimal{
			1: decimal.NewFromInt(15),
			2: decimal.NewFromInt(15),
		},
	}
	rc := NewRatioRecomputer(warehouses, totals, slog.Default())

	require.NoError(t, rc.Handle(context.Background(), ratioTask(t, 2)))

	_, swept := warehouses.updated[1]
	require.False(t, swept)
	require.True(t, warehouses.updated[2].Equal(decimal.NewFromInt(15)))
}

func TestRatioRecomputerSkipsEmptyWindow(t *testing.T) {
	warehouses := &fakeWarehouses{list: []mill.Warehouse{{ID: 1, CompensationRatioDays: 90}}}
	totals := &fakeTotals{
		fruit: map[int64]decimal.Decimal{1: decimal.Zero},
		juice: map[int64]decimal.Decimal{1: decimal.Zero},
	}
	rc := NewRatioRecomputer(warehouses, totals, slog.Default())

	require.NoError(t, rc.Handle(context.Background(), ratioTask(t, 0)))
	require.Empty(t, warehouses.updated)
}
