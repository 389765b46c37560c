package palox

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pressmill-erp/pressmill-erp/internal/mill"
	"github.com/pressmill-erp/pressmill-erp/internal/platform/db"
)

// Repository persists paloxes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, id int64) (Palox, error) {
	var (
		p        Palox
		borrowed pgtype.Date
		empty    pgtype.Numeric
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(label, ''), COALESCE(borrower_id, 0),
		       borrowed_date, COALESCE(juice_product_id, 0), empty_weight, active
		FROM paloxes WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Label, &p.BorrowerID, &borrowed, &p.JuiceProductID, &empty, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Palox{}, ErrNotFound
		}
		return Palox{}, err
	}
	if borrowed.Valid {
		d := borrowed.Time
		p.BorrowedDate = &d
	}
	p.EmptyWeight = db.MustDecimal(empty)
	return p, nil
}

func (r *Repository) Update(ctx context.Context, p Palox) error {
	var borrowed pgtype.Date
	if p.BorrowedDate != nil {
		borrowed = pgtype.Date{Time: *p.BorrowedDate, Valid: true}
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE paloxes
		SET borrower_id = NULLIF($2, 0), borrowed_date = $3,
		    juice_product_id = NULLIF($4, 0), empty_weight = $5, active = $6
		WHERE id = $1`,
		p.ID, p.BorrowerID, borrowed, p.JuiceProductID, db.DecimalToNumeric(p.EmptyWeight), p.Active)
	return err
}

func (r *Repository) InsertBorrowHistory(ctx context.Context, h BorrowHistory) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO palox_borrow_history (palox_id, farmer_id, season_id, start_date, end_date)
		VALUES ($1, $2, NULLIF($3, 0), $4, $5)`,
		h.PaloxID, h.FarmerID, h.SeasonID, h.StartDate, h.EndDate)
	return err
}

func (r *Repository) ListBorrowHistory(ctx context.Context, paloxID int64) ([]BorrowHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, palox_id, farmer_id, COALESCE(season_id, 0), start_date, end_date
		FROM palox_borrow_history WHERE palox_id = $1 ORDER BY end_date DESC`, paloxID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BorrowHistory
	for rows.Next() {
		var h BorrowHistory
		if err := rows.Scan(&h.ID, &h.PaloxID, &h.FarmerID, &h.SeasonID, &h.StartDate, &h.EndDate); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// OpenContent aggregates done, not-yet-in-production arrival lines.
func (r *Repository) OpenContent(ctx context.Context, paloxID int64) (Content, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.fruit_qty, l.destination, f.name, a.date
		FROM arrival_lines l
		JOIN arrivals a ON a.id = l.arrival_id
		JOIN farmers f ON f.id = a.farmer_id
		WHERE l.palox_id = $1 AND l.state = 'done' AND l.production_id IS NULL
		ORDER BY a.date`, paloxID)
	if err != nil {
		return Content{}, err
	}
	defer rows.Close()

	content := Content{Weight: decimal.Zero}
	var dests []mill.Destination
	for rows.Next() {
		var (
			qty     pgtype.Numeric
			dest    string
			farmer  string
			arrival time.Time
		)
		if err := rows.Scan(&qty, &dest, &farmer, &arrival); err != nil {
			return Content{}, err
		}
		content.Weight = content.Weight.Add(db.MustDecimal(qty))
		dests = append(dests, mill.Destination(dest))
		content.Farmers = append(content.Farmers, farmer)
		if content.ArrivalDate == nil || arrival.Before(*content.ArrivalDate) {
			d := arrival
			content.ArrivalDate = &d
		}
	}
	if err := rows.Err(); err != nil {
		return Content{}, err
	}
	content.Destination = SummarizeDestinations(dests)
	return content, nil
}

func (r *Repository) ListBorrowedBy(ctx context.Context, farmerID int64) ([]Palox, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(label, ''), COALESCE(borrower_id, 0), borrowed_date,
		       COALESCE(juice_product_id, 0), empty_weight, active
		FROM paloxes WHERE borrower_id = $1 ORDER BY name`, farmerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Palox
	for rows.Next() {
		var (
			p        Palox
			borrowed pgtype.Date
			empty    pgtype.Numeric
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Label, &p.BorrowerID, &borrowed, &p.JuiceProductID, &empty, &p.Active); err != nil {
			return nil, err
		}
		if borrowed.Valid {
			d := borrowed.Time
			p.BorrowedDate = &d
		}
		p.EmptyWeight = db.MustDecimal(empty)
		out = append(out, p)
	}
	return out, rows.Err()
}
