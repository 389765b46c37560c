package tank

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository persists tank bindings in PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository constructs PgRepository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Get(ctx context.Context, locationID int64) (Tank, error) {
	var t Tank
	err := r.pool.QueryRow(ctx, `
		SELECT location_id, name, tank_type, COALESCE(juice_product_id, 0), COALESCE(season_id, 0)
		FROM tanks WHERE location_id = $1`, locationID).
		Scan(&t.LocationID, &t.Name, &t.Type, &t.JuiceProductID, &t.SeasonID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// A plain stock location: not a tank, IsTank() reports false.
			return Tank{LocationID: locationID}, nil
		}
		return Tank{}, err
	}
	return t, nil
}

func (r *PgRepository) Update(ctx context.Context, t Tank) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tanks
		SET juice_product_id = NULLIF($2, 0), season_id = NULLIF($3, 0)
		WHERE location_id = $1`,
		t.LocationID, t.JuiceProductID, t.SeasonID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: location %d", ErrNotATank, t.LocationID)
	}
	return nil
}
