package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pressmill-erp/pressmill-erp/internal/platform/db"
	"github.com/pressmill-erp/pressmill-erp/internal/shared"
)

// Repository is the PostgreSQL Store. Movements are rows in stock_movements;
// quants are maintained in stock_quants by ConfirmMovement inside a
// repeatable-read transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CreateLot(ctx context.Context, lot Lot) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO stock_lots (name, product_id, production_ref)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id`,
		lot.Name, lot.ProductID, lot.ProductionRef).Scan(&id)
	return id, err
}

func (r *Repository) CreateMovement(ctx context.Context, m Movement) (int64, error) {
	if !m.Qty.IsPositive() {
		return 0, ErrInvalidQuantity
	}
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO stock_movements
			(ref, origin, product_id, src_location_id, dst_location_id, qty, lot_id, owner_id, state)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, 0), NULLIF($8, 0), 'draft')
		RETURNING id`,
		m.Ref, m.Origin, m.ProductID, m.SrcLocationID, m.DstLocationID,
		db.DecimalToNumeric(m.Qty), m.LotID, m.OwnerID).Scan(&id)
	return id, err
}

// ConfirmMovement posts a draft movement: drains the source quants and
// credits the destination. The whole apply runs in one transaction so a
// concurrent confirm on the same location cannot overdraw it.
func (r *Repository) ConfirmMovement(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var m Movement
		var qty pgtype.Numeric
		err := tx.QueryRow(ctx, `
			SELECT ref, origin, product_id, src_location_id, dst_location_id,
			       qty, COALESCE(lot_id, 0), COALESCE(owner_id, 0), state
			FROM stock_movements WHERE id = $1 FOR UPDATE`, id).
			Scan(&m.Ref, &m.Origin, &m.ProductID, &m.SrcLocationID, &m.DstLocationID,
				&qty, &m.LotID, &m.OwnerID, &m.State)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrMovementNotDraft
			}
			return err
		}
		if m.State != MovementDraft {
			return ErrMovementNotDraft
		}
		m.Qty = db.MustDecimal(qty)

		if m.SrcLocationID > 0 {
			if err := db.AdvisoryLock(ctx, tx, shared.TankLockKey(m.SrcLocationID)); err != nil {
				return err
			}
			if err := drainQuants(ctx, tx, m); err != nil {
				return err
			}
		}
		if err := addQuant(ctx, tx, m.DstLocationID, m); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE stock_movements SET state = 'done', posted_at = now() WHERE id = $1`, id)
		return err
	})
}

func drainQuants(ctx context.Context, tx pgx.Tx, m Movement) error {
	rows, err := tx.Query(ctx, `
		SELECT id, qty, reserved FROM stock_quants
		WHERE location_id = $1 AND product_id = $2
		ORDER BY id FOR UPDATE`, m.SrcLocationID, m.ProductID)
	if err != nil {
		return err
	}
	type row struct {
		id       int64
		qty      decimal.Decimal
		reserved bool
	}
	var held []row
	avail := decimal.Zero
	for rows.Next() {
		var rec row
		var qty pgtype.Numeric
		if err := rows.Scan(&rec.id, &qty, &rec.reserved); err != nil {
			rows.Close()
			return err
		}
		rec.qty = db.MustDecimal(qty)
		held = append(held, rec)
		avail = avail.Add(rec.qty)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if avail.LessThan(m.Qty) {
		return ErrInsufficientQty
	}

	remaining := m.Qty
	for _, rec := range held {
		if !remaining.IsPositive() {
			break
		}
		if rec.reserved {
			return ErrReservedQuant
		}
		if rec.qty.LessThanOrEqual(remaining) {
			if _, err := tx.Exec(ctx, `DELETE FROM stock_quants WHERE id = $1`, rec.id); err != nil {
				return err
			}
			remaining = remaining.Sub(rec.qty)
			continue
		}
		if _, err := tx.Exec(ctx, `UPDATE stock_quants SET qty = qty - $2 WHERE id = $1`,
			rec.id, db.DecimalToNumeric(remaining)); err != nil {
			return err
		}
		remaining = decimal.Zero
	}
	return nil
}

func addQuant(ctx context.Context, tx pgx.Tx, locationID int64, m Movement) error {
	tag, err := tx.Exec(ctx, `
		UPDATE stock_quants SET qty = qty + $5
		WHERE location_id = $1 AND product_id = $2
		  AND COALESCE(lot_id, 0) = $3 AND COALESCE(owner_id, 0) = $4
		  AND NOT reserved`,
		locationID, m.ProductID, m.LotID, m.OwnerID, db.DecimalToNumeric(m.Qty))
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO stock_quants (location_id, product_id, lot_id, owner_id, qty, reserved)
		VALUES ($1, $2, NULLIF($3, 0), NULLIF($4, 0), $5, false)`,
		locationID, m.ProductID, m.LotID, m.OwnerID, db.DecimalToNumeric(m.Qty))
	return err
}

func (r *Repository) QuantsAt(ctx context.Context, locationID int64) ([]Quant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT location_id, product_id, COALESCE(lot_id, 0), COALESCE(owner_id, 0), qty, reserved
		FROM stock_quants WHERE location_id = $1 AND qty > 0 ORDER BY id`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Quant
	for rows.Next() {
		var q Quant
		var qty pgtype.Numeric
		if err := rows.Scan(&q.LocationID, &q.ProductID, &q.LotID, &q.OwnerID, &qty, &q.Reserved); err != nil {
			return nil, err
		}
		q.Qty = db.MustDecimal(qty)
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *Repository) QuantityAt(ctx context.Context, locationID int64) (decimal.Decimal, error) {
	var qty pgtype.Numeric
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(qty), 0) FROM stock_quants WHERE location_id = $1`, locationID).
		Scan(&qty)
	if err != nil {
		return decimal.Zero, err
	}
	return db.MustDecimal(qty), nil
}
