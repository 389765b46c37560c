package arrival

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pressmill-erp/pressmill-erp/internal/platform/db"
)

// Repository persists arrivals and their lines in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const lineColumns = `
	l.id, l.arrival_id, COALESCE(l.name, ''), l.state, l.palox_id,
	COALESCE(l.variant_id, 0), l.juice_product_id, l.destination, l.fruit_qty,
	l.mix_withdrawal_qty, COALESCE(l.production_id, 0), l.needs_analysis,
	l.juice_qty, l.shrinkage_qty, l.filter_loss_qty, l.withdrawal_qty,
	l.sale_qty, l.to_sale_tank_qty, l.compensation_qty, l.juice_qty_net,
	l.juice_ratio_net, COALESCE(l.production_state, ''),
	a.farmer_id, f.name, COALESCE(a.season_id, 0)`

const lineFrom = `
	FROM arrival_lines l
	JOIN arrivals a ON a.id = l.arrival_id
	JOIN farmers f ON f.id = a.farmer_id`

func scanLine(row pgx.Row) (Line, error) {
	var (
		l    Line
		nums [11]pgtype.Numeric
	)
	err := row.Scan(&l.ID, &l.ArrivalID, &l.Name, &l.State, &l.PaloxID,
		&l.VariantID, &l.JuiceProductID, &l.Destination, &nums[0],
		&nums[1], &l.ProductionID, &l.NeedsAnalysis,
		&nums[2], &nums[3], &nums[4], &nums[5],
		&nums[6], &nums[7], &nums[8], &nums[9],
		&nums[10], &l.ProductionState,
		&l.FarmerID, &l.FarmerName, &l.SeasonID)
	if err != nil {
		return Line{}, err
	}
	l.FruitQty = db.MustDecimal(nums[0])
	l.MixWithdrawalQty = db.MustDecimal(nums[1])
	l.JuiceQty = db.MustDecimal(nums[2])
	l.ShrinkageQty = db.MustDecimal(nums[3])
	l.FilterLossQty = db.MustDecimal(nums[4])
	l.WithdrawalQty = db.MustDecimal(nums[5])
	l.SaleQty = db.MustDecimal(nums[6])
	l.ToSaleTankQty = db.MustDecimal(nums[7])
	l.CompensationQty = db.MustDecimal(nums[8])
	l.JuiceQtyNet = db.MustDecimal(nums[9])
	l.JuiceRatioNet = db.MustDecimal(nums[10])
	return l, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Arrival, []Line, error) {
	var (
		a      Arrival
		doneAt pgtype.Timestamptz
		nums   [3]pgtype.Numeric
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, farmer_id, warehouse_id, COALESCE(season_id, 0), date,
		       COALESCE(harvest_start_date, '0001-01-01'), state,
		       returned_regular_cases, returned_organic_cases, done_at,
		       pressed_qty, juice_qty_net, juice_ratio_net
		FROM arrivals WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.FarmerID, &a.WarehouseID, &a.SeasonID, &a.Date,
			&a.HarvestStartDate, &a.State,
			&a.ReturnedRegularCases, &a.ReturnedOrganicCases, &doneAt,
			&nums[0], &nums[1], &nums[2])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Arrival{}, nil, ErrNotFound
		}
		return Arrival{}, nil, err
	}
	if doneAt.Valid {
		t := doneAt.Time
		a.DoneAt = &t
	}
	a.PressedQty = db.MustDecimal(nums[0])
	a.JuiceQtyNet = db.MustDecimal(nums[1])
	a.JuiceRatioNet = db.MustDecimal(nums[2])

	if err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(array_agg(palox_id), '{}')
		FROM arrival_returned_paloxes WHERE arrival_id = $1`, id).
		Scan(&a.ReturnedPaloxIDs); err != nil {
		return Arrival{}, nil, err
	}

	lines, err := r.queryLines(ctx, `
		SELECT `+lineColumns+lineFrom+` WHERE l.arrival_id = $1 ORDER BY l.id`, id)
	if err != nil {
		return Arrival{}, nil, err
	}
	for i := range lines {
		extras, err := r.lineExtras(ctx, lines[i].ID)
		if err != nil {
			return Arrival{}, nil, err
		}
		lines[i].Extras = extras
	}
	return a, lines, nil
}

func (r *Repository) queryLines(ctx context.Context, sql string, args ...any) ([]Line, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repository) lineExtras(ctx context.Context, lineID int64) ([]LineExtra, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, line_id, product_id, qty, extra_type, fillup
		FROM arrival_line_extras WHERE line_id = $1 ORDER BY id`, lineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineExtra
	for rows.Next() {
		var e LineExtra
		var qty pgtype.Numeric
		if err := rows.Scan(&e.ID, &e.LineID, &e.ProductID, &qty, &e.Type, &e.Fillup); err != nil {
			return nil, err
		}
		e.Qty = db.MustDecimal(qty)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) Update(ctx context.Context, a Arrival) error {
	var doneAt pgtype.Timestamptz
	if a.DoneAt != nil {
		doneAt = pgtype.Timestamptz{Time: *a.DoneAt, Valid: true}
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE arrivals
		SET state = $2, returned_regular_cases = $3, returned_organic_cases = $4,
		    done_at = $5, pressed_qty = $6, juice_qty_net = $7, juice_ratio_net = $8
		WHERE id = $1`,
		a.ID, a.State, a.ReturnedRegularCases, a.ReturnedOrganicCases, doneAt,
		db.DecimalToNumeric(a.PressedQty), db.DecimalToNumeric(a.JuiceQtyNet),
		db.DecimalToNumeric(a.JuiceRatioNet))
	return err
}

func (r *Repository) UpdateLine(ctx context.Context, l Line) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE arrival_lines
		SET name = $2, state = $3, destination = $4, production_id = NULLIF($5, 0),
		    juice_qty = $6, shrinkage_qty = $7, filter_loss_qty = $8,
		    withdrawal_qty = $9, sale_qty = $10, to_sale_tank_qty = $11,
		    compensation_qty = $12, juice_qty_net = $13, juice_ratio_net = $14,
		    production_state = NULLIF($15, '')
		WHERE id = $1`,
		l.ID, l.Name, l.State, l.Destination, l.ProductionID,
		db.DecimalToNumeric(l.JuiceQty), db.DecimalToNumeric(l.ShrinkageQty),
		db.DecimalToNumeric(l.FilterLossQty), db.DecimalToNumeric(l.WithdrawalQty),
		db.DecimalToNumeric(l.SaleQty), db.DecimalToNumeric(l.ToSaleTankQty),
		db.DecimalToNumeric(l.CompensationQty), db.DecimalToNumeric(l.JuiceQtyNet),
		db.DecimalToNumeric(l.JuiceRatioNet), l.ProductionState)
	return err
}

// OpenLines lists the done lines of a palox that no batch has claimed yet.
func (r *Repository) OpenLines(ctx context.Context, paloxID int64) ([]Line, error) {
	return r.queryLines(ctx, `
		SELECT `+lineColumns+lineFrom+`
		WHERE l.palox_id = $1 AND l.state = 'done' AND l.production_id IS NULL
		ORDER BY l.id`, paloxID)
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM arrival_line_extras
			WHERE line_id IN (SELECT id FROM arrival_lines WHERE arrival_id = $1)`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM arrival_lines WHERE arrival_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM arrival_returned_paloxes WHERE arrival_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM arrivals WHERE id = $1`, id)
		return err
	})
}

func (r *Repository) DeleteLine(ctx context.Context, lineID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM arrival_line_extras WHERE line_id = $1`, lineID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM arrival_lines WHERE id = $1`, lineID)
		return err
	})
}

// ListLinesByProduction returns the lines attached to one batch.
func (r *Repository) ListLinesByProduction(ctx context.Context, productionID int64) ([]Line, error) {
	return r.queryLines(ctx, `
		SELECT `+lineColumns+lineFrom+`
		WHERE l.production_id = $1 ORDER BY l.id`, productionID)
}

// HasDraftLines reports whether the palox still holds unvalidated lines.
func (r *Repository) HasDraftLines(ctx context.Context, paloxID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM arrival_lines WHERE palox_id = $1 AND state = 'draft'
		)`, paloxID).Scan(&exists)
	return exists, err
}

// DoneLineTotals sums fruit and juice over the done lines of a warehouse
// since a cutoff. The compensation-ratio job feeds on it.
func (r *Repository) DoneLineTotals(ctx context.Context, warehouseID int64, since time.Time) (fruit, juice decimal.Decimal, err error) {
	var f, j pgtype.Numeric
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(l.fruit_qty), 0), COALESCE(SUM(l.juice_qty), 0)
		FROM arrival_lines l
		JOIN arrivals a ON a.id = l.arrival_id
		WHERE a.warehouse_id = $1 AND l.state = 'done'
		  AND l.production_state = 'done' AND a.date >= $2`,
		warehouseID, since).Scan(&f, &j)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return db.MustDecimal(f), db.MustDecimal(j), nil
}
