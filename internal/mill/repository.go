package mill

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pressmill-erp/pressmill-erp/internal/platform/db"
)

var (
	ErrFarmerNotFound    = errors.New("mill: farmer not found")
	ErrWarehouseNotFound = errors.New("mill: warehouse not found")
)

// Repository resolves farmers, warehouses and seasons from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Farmer(ctx context.Context, id int64) (Farmer, error) {
	var f Farmer
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(parent_id, 0), culture_type,
		       lended_regular_cases, lended_organic_cases
		FROM farmers WHERE id = $1`, id).
		Scan(&f.ID, &f.Name, &f.ParentID, &f.CultureType,
			&f.LendedRegularCases, &f.LendedOrganicCases)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Farmer{}, ErrFarmerNotFound
		}
		return Farmer{}, err
	}
	return f, nil
}

// AdjustLendedCases shifts the farmer's lended case counters by the given
// deltas, which may be negative.
func (r *Repository) AdjustLendedCases(ctx context.Context, farmerID int64, regular, organic int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE farmers
		SET lended_regular_cases = lended_regular_cases + $2,
		    lended_organic_cases = lended_organic_cases + $3
		WHERE id = $1`, farmerID, regular, organic)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFarmerNotFound
	}
	return nil
}

func (r *Repository) Warehouse(ctx context.Context, id int64) (Warehouse, error) {
	var (
		w     Warehouse
		ratio pgtype.Numeric
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(stock_location_id, 0), COALESCE(withdrawal_location_id, 0),
		       COALESCE(sale_tank_location_id, 0), COALESCE(comp_tank_location_id, 0),
		       COALESCE(comp_sale_tank_location_id, 0), COALESCE(shrinkage_tank_location_id, 0),
		       COALESCE(case_location_id, 0), COALESCE(regular_case_product_id, 0),
		       COALESCE(organic_case_product_id, 0), compensation_ratio,
		       compensation_ratio_days
		FROM warehouses WHERE id = $1`, id).
		Scan(&w.ID, &w.Name, &w.StockLocationID, &w.WithdrawalLocationID,
			&w.SaleTankLocationID, &w.CompTankLocationID,
			&w.CompSaleTankLocationID, &w.ShrinkageTankLocationID,
			&w.CaseLocationID, &w.RegularCaseProductID,
			&w.OrganicCaseProductID, &ratio,
			&w.CompensationRatioDays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, ErrWarehouseNotFound
		}
		return Warehouse{}, err
	}
	w.CompensationRatio = db.MustDecimal(ratio)
	return w, nil
}

// ListWarehouses returns every pressing site, for the ratio job sweep.
func (r *Repository) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM warehouses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]Warehouse, 0, len(ids))
	for _, id := range ids {
		w, err := r.Warehouse(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// UpdateCompensationRatio stores the recomputed rolling ratio.
func (r *Repository) UpdateCompensationRatio(ctx context.Context, warehouseID int64, ratio decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE warehouses
		SET compensation_ratio = $2, compensation_ratio_update_date = now()
		WHERE id = $1`,
		warehouseID, db.DecimalToNumeric(ratio))
	return err
}

// ListSeasons returns all seasons ordered by start date.
func (r *Repository) ListSeasons(ctx context.Context) ([]Season, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, year, start_date, end_date FROM seasons ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Season
	for rows.Next() {
		var s Season
		if err := rows.Scan(&s.ID, &s.Name, &s.Year, &s.StartDate, &s.EndDate); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
