package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/pressmill-erp/pressmill-erp/internal/mill"
)

// WarehousePort is the slice of the mill repository the ratio sweep needs.
type WarehousePort interface {
	ListWarehouses(ctx context.Context) ([]mill.Warehouse, error)
	UpdateCompensationRatio(ctx context.Context, warehouseID int64, ratio decimal.Decimal) error
}

// LineTotalsPort sums the pressed fruit and produced juice of finished
// arrival lines per warehouse since a cutoff date.
type LineTotalsPort interface {
	DoneLineTotals(ctx context.Context, warehouseID int64, since time.Time) (fruit, juice decimal.Decimal, err error)
}

// RatioRecomputer refreshes each warehouse's compensation ratio from the
// juice yield observed over its configured rolling window. The ratio seeds
// the mix-quantity plausibility check on new arrivals.
type RatioRecomputer struct {
	warehouses WarehousePort
	totals     LineTotalsPort
	logger     *slog.Logger
	now        func() time.Time
}

// NewRatioRecomputer constructs RatioRecomputer.
func NewRatioRecomputer(warehouses WarehousePort, totals LineTotalsPort, logger *slog.Logger) *RatioRecomputer {
	return &RatioRecomputer{warehouses: warehouses, totals: totals, logger: logger, now: time.Now}
}

// Handle processes TaskCompensationRatio tasks. The sweep is idempotent:
// re-running it writes the same ratios again.
func (rc *RatioRecomputer) Handle(ctx context.Context, t *asynq.Task) error {
	var payload CompensationRatioPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	warehouses, err := rc.warehouses.ListWarehouses(ctx)
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, w := range warehouses {
		if payload.WarehouseID != 0 && w.ID != payload.WarehouseID {
			continue
		}
		g.Go(func() error { return rc.recompute(ctx, w) })
	}
	return g.Wait()
}

func (rc *RatioRecomputer) recompute(ctx context.Context, w mill.Warehouse) error {
	days := w.CompensationRatioDays
	if days <= 0 {
		days = 365
	}
	since := rc.now().AddDate(0, 0, -days)
	fruit, juice, err := rc.totals.DoneLineTotals(ctx, w.ID, since)
	if err != nil {
		return err
	}
	if !fruit.IsPositive() {
		rc.logger.Info("compensation ratio sweep: no finished lines",
			slog.Int64("warehouse_id", w.ID))
		return nil
	}
	ratio := mill.RoundRatio(juice.Mul(decimal.NewFromInt(100)).Div(fruit))
	if err := rc.warehouses.UpdateCompensationRatio(ctx, w.ID, ratio); err != nil {
		return err
	}
	rc.logger.Info("compensation ratio updated",
		slog.Int64("warehouse_id", w.ID),
		slog.String("ratio", ratio.String()),
		slog.String("fruit_kg", fruit.String()),
		slog.String("juice_l", juice.String()))
	return nil
}
