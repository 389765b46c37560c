package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the PostgreSQL product catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Product(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, kind, COALESCE(culture_type, ''), uom,
		       COALESCE(tracking, ''), COALESCE(shrinkage_lot_id, 0)
		FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Kind, &p.CultureType, &p.UoM,
			&p.Tracking, &p.ShrinkageLotID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}
