package palox

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pressmill-erp/pressmill-erp/internal/mill"
	"github.com/pressmill-erp/pressmill-erp/internal/shared"
)

// RepositoryPort abstracts palox persistence for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Palox, error)
	Update(ctx context.Context, p Palox) error
	InsertBorrowHistory(ctx context.Context, h BorrowHistory) error
	ListBorrowHistory(ctx context.Context, paloxID int64) ([]BorrowHistory, error)
	// OpenContent aggregates the done, not-yet-in-production lines of the palox.
	OpenContent(ctx context.Context, paloxID int64) (Content, error)
	// ListBorrowedBy lists paloxes currently lent to a farmer.
	ListBorrowedBy(ctx context.Context, farmerID int64) ([]Palox, error)
}

// FarmerPort resolves farmer accounts.
type FarmerPort interface {
	Farmer(ctx context.Context, id int64) (mill.Farmer, error)
}

// SeasonPort lists the pressing seasons, for stamping borrow history.
type SeasonPort interface {
	ListSeasons(ctx context.Context) ([]mill.Season, error)
}

// Service coordinates palox lifecycle operations.
type Service struct {
	repo    RepositoryPort
	farmers FarmerPort
	seasons SeasonPort
	audit   shared.AuditPort
	now     func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, farmers FarmerPort, seasons SeasonPort, audit shared.AuditPort) *Service {
	return &Service{repo: repo, farmers: farmers, seasons: seasons, audit: audit, now: time.Now}
}

// Get loads a palox.
func (s *Service) Get(ctx context.Context, id int64) (Palox, error) {
	return s.repo.Get(ctx, id)
}

// Lend hands a palox to a farmer. Sub-contact accounts cannot borrow.
func (s *Service) Lend(ctx context.Context, paloxID, farmerID int64) error {
	farmer, err := s.farmers.Farmer(ctx, farmerID)
	if err != nil {
		return err
	}
	if farmer.SubContact() {
		return ErrBorrowerSubContact
	}
	p, err := s.repo.Get(ctx, paloxID)
	if err != nil {
		return err
	}
	today := s.today()
	p.BorrowerID = farmerID
	p.BorrowedDate = &today
	if err := p.CheckBorrowInvariant(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	return s.recordAudit(ctx, "lend", p.ID, map[string]any{"farmer_id": farmerID})
}

// ReturnBorrowed closes the current loan, appending a borrow-history record
// and clearing borrower and date.
func (s *Service) ReturnBorrowed(ctx context.Context, paloxID int64) error {
	p, err := s.repo.Get(ctx, paloxID)
	if err != nil {
		return err
	}
	if p.BorrowerID == 0 {
		return fmt.Errorf("%w: palox %s", ErrNotBorrowed, p.Name)
	}
	if p.BorrowedDate == nil {
		return fmt.Errorf("%w: palox %s", ErrNoBorrowedDate, p.Name)
	}
	history := BorrowHistory{
		PaloxID:   p.ID,
		FarmerID:  p.BorrowerID,
		StartDate: *p.BorrowedDate,
		EndDate:   s.today(),
	}
	if s.seasons != nil {
		seasons, err := s.seasons.ListSeasons(ctx)
		if err != nil {
			return err
		}
		if season, ok := mill.CurrentSeason(s.today(), seasons); ok {
			history.SeasonID = season.ID
		}
	}
	if err := s.repo.InsertBorrowHistory(ctx, history); err != nil {
		return err
	}
	borrower := p.BorrowerID
	p.BorrowerID = 0
	p.BorrowedDate = nil
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	return s.recordAudit(ctx, "return", p.ID, map[string]any{"farmer_id": borrower})
}

// CurrentWeight sums the fruit weight of the done, unattached lines.
func (s *Service) CurrentWeight(ctx context.Context, paloxID int64) (decimal.Decimal, error) {
	content, err := s.repo.OpenContent(ctx, paloxID)
	if err != nil {
		return decimal.Zero, err
	}
	return content.Weight, nil
}

// OpenContent returns the content summary of the palox.
func (s *Service) OpenContent(ctx context.Context, paloxID int64) (Content, error) {
	return s.repo.OpenContent(ctx, paloxID)
}

// BorrowedBy lists the paloxes currently lent to a farmer.
func (s *Service) BorrowedBy(ctx context.Context, farmerID int64) ([]Palox, error) {
	return s.repo.ListBorrowedBy(ctx, farmerID)
}

// BorrowHistory lists the completed loans of a palox.
func (s *Service) BorrowHistory(ctx context.Context, paloxID int64) ([]BorrowHistory, error) {
	return s.repo.ListBorrowHistory(ctx, paloxID)
}

// LockJuiceType binds the palox to a juice product. The first delivery into
// an empty palox sets the lock; a conflicting type is rejected.
func (s *Service) LockJuiceType(ctx context.Context, paloxID, juiceProductID int64) error {
	p, err := s.repo.Get(ctx, paloxID)
	if err != nil {
		return err
	}
	if p.JuiceProductID != 0 && p.JuiceProductID != juiceProductID {
		return fmt.Errorf("%w: palox %s holds product %d, delivery has %d",
			ErrJuiceTypeLocked, p.Name, p.JuiceProductID, juiceProductID)
	}
	if p.JuiceProductID == juiceProductID {
		return nil
	}
	p.JuiceProductID = juiceProductID
	return s.repo.Update(ctx, p)
}

// ReleaseJuiceType clears the lock when the palox content moves to a batch.
func (s *Service) ReleaseJuiceType(ctx context.Context, paloxID int64) error {
	p, err := s.repo.Get(ctx, paloxID)
	if err != nil {
		return err
	}
	p.JuiceProductID = 0
	return s.repo.Update(ctx, p)
}

// RestoreJuiceType re-binds the lock, used when a batch detaches its lines.
func (s *Service) RestoreJuiceType(ctx context.Context, paloxID, juiceProductID int64) error {
	p, err := s.repo.Get(ctx, paloxID)
	if err != nil {
		return err
	}
	p.JuiceProductID = juiceProductID
	return s.repo.Update(ctx, p)
}

func (s *Service) today() time.Time {
	t := s.now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) recordAudit(ctx context.Context, action string, paloxID int64, meta map[string]any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "palox",
		EntityID: strconv.FormatInt(paloxID, 10),
		Meta:     meta,
		At:       s.now(),
	})
}
