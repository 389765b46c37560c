package production

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pressmill-erp/pressmill-erp/internal/platform/db"
)

// Repository persists batches in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, id int64) (Production, error) {
	var (
		p      Production
		doneAt pgtype.Timestamptz
		nums   [9]pgtype.Numeric
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(season_id, 0), warehouse_id, palox_id, date, state,
		       COALESCE(juice_product_id, 0), COALESCE(destination, ''),
		       fruit_qty, juice_qty_kg, juice_qty, ratio,
		       compensation_type, compensation_qty, compensation_last_fruit_qty,
		       compensation_ratio, COALESCE(compensation_tank_location_id, 0),
		       COALESCE(compensation_product_id, 0),
		       to_sale_tank_qty, to_comp_sale_tank_qty,
		       COALESCE(shrinkage_tank_location_id, 0), farmer_list,
		       needs_analysis, COALESCE(lot_id, 0), done_at
		FROM productions WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.SeasonID, &p.WarehouseID, &p.PaloxID, &p.Date, &p.State,
			&p.JuiceProductID, &p.Destination,
			&nums[0], &nums[1], &nums[2], &nums[3],
			&p.CompensationType, &nums[4], &nums[5],
			&nums[6], &p.CompensationTankLocationID,
			&p.CompensationProductID,
			&nums[7], &nums[8],
			&p.ShrinkageTankLocationID, &p.FarmerList,
			&p.NeedsAnalysis, &p.LotID, &doneAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Production{}, ErrNotFound
		}
		return Production{}, err
	}
	if doneAt.Valid {
		t := doneAt.Time
		p.DoneAt = &t
	}
	p.FruitQty = db.MustDecimal(nums[0])
	p.JuiceQtyKg = db.MustDecimal(nums[1])
	p.JuiceQty = db.MustDecimal(nums[2])
	p.Ratio = db.MustDecimal(nums[3])
	p.CompensationQty = db.MustDecimal(nums[4])
	p.CompensationLastFruitQty = db.MustDecimal(nums[5])
	p.CompensationRatio = db.MustDecimal(nums[6])
	p.ToSaleTankQty = db.MustDecimal(nums[7])
	p.ToCompSaleTankQty = db.MustDecimal(nums[8])
	return p, nil
}

func (r *Repository) Update(ctx context.Context, p Production) error {
	var doneAt pgtype.Timestamptz
	if p.DoneAt != nil {
		doneAt = pgtype.Timestamptz{Time: *p.DoneAt, Valid: true}
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE productions
		SET state = $2, juice_product_id = NULLIF($3, 0), destination = NULLIF($4, ''),
		    fruit_qty = $5, juice_qty_kg = $6, juice_qty = $7, ratio = $8,
		    compensation_type = $9, compensation_qty = $10,
		    compensation_last_fruit_qty = $11, compensation_ratio = $12,
		    compensation_tank_location_id = NULLIF($13, 0),
		    compensation_product_id = NULLIF($14, 0),
		    to_sale_tank_qty = $15, to_comp_sale_tank_qty = $16,
		    shrinkage_tank_location_id = NULLIF($17, 0), farmer_list = $18,
		    needs_analysis = $19, lot_id = NULLIF($20, 0), done_at = $21
		WHERE id = $1`,
		p.ID, p.State, p.JuiceProductID, string(p.Destination),
		db.DecimalToNumeric(p.FruitQty), db.DecimalToNumeric(p.JuiceQtyKg),
		db.DecimalToNumeric(p.JuiceQty), db.DecimalToNumeric(p.Ratio),
		p.CompensationType, db.DecimalToNumeric(p.CompensationQty),
		db.DecimalToNumeric(p.CompensationLastFruitQty),
		db.DecimalToNumeric(p.CompensationRatio),
		p.CompensationTankLocationID,
		p.CompensationProductID,
		db.DecimalToNumeric(p.ToSaleTankQty), db.DecimalToNumeric(p.ToCompSaleTankQty),
		p.ShrinkageTankLocationID, p.FarmerList,
		p.NeedsAnalysis, p.LotID, doneAt)
	return err
}
