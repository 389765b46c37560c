package palox

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pressmill-erp/pressmill-erp/internal/mill"
)

type memoryRepo struct {
	paloxes map[int64]Palox
	history []BorrowHistory
	content map[int64]Content
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{paloxes: make(map[int64]Palox), content: make(map[int64]Content)}
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Palox, error) {
	p, ok := r.paloxes[id]
	if !ok {
		return Palox{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) Update(_ context.Context, p Palox) error {
	r.paloxes[p.ID] = p
	return nil
}

func (r *memoryRepo) InsertBorrowHistory(_ context.Context, h BorrowHistory) error {
	r.history = append(r.history, h)
	return nil
}

func (r *memoryRepo) ListBorrowHistory(_ context.Context, paloxID int64) ([]BorrowHistory, error) {
	var out []BorrowHistory
	for _, h := range r.history {
		if h.PaloxID == paloxID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *memoryRepo) OpenContent(_ context.Context, paloxID int64) (Content, error) {
	return r.content[paloxID], nil
}

func (r *memoryRepo) ListBorrowedBy(_ context.Context, farmerID int64) ([]Palox, error) {
	var out []Palox
	for _, p := range r.paloxes {
		if p.BorrowerID == farmerID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memoryFarmers map[int64]mill.Farmer

func (f memoryFarmers) Farmer(_ context.Context, id int64) (mill.Farmer, error) {
	return f[id], nil
}

type memorySeasons []mill.Season

func (s memorySeasons) ListSeasons(_ context.Context) ([]mill.Season, error) {
	return s, nil
}

func TestLendAndReturn(t *testing.T) {
	repo := newMemoryRepo()
	repo.paloxes[1] = Palox{ID: 1, Name: "P001", Active: true}
	farmers := memoryFarmers{7: {ID: 7, Name: "Ferme du Vallon"}}
	seasons := memorySeasons{{
		ID:        3,
		Year:      time.Now().Format("2006"),
		StartDate: time.Now().AddDate(0, -1, 0),
		EndDate:   time.Now().AddDate(0, 5, 0),
	}}
	svc := NewService(repo, farmers, seasons, nil)
	ctx := context.Background()

	require.NoError(t, svc.Lend(ctx, 1, 7))
	p := repo.paloxes[1]
	require.EqualValues(t, 7, p.BorrowerID)
	require.NotNil(t, p.BorrowedDate)

	require.NoError(t, svc.ReturnBorrowed(ctx, 1))
	p = repo.paloxes[1]
	require.Zero(t, p.BorrowerID)
	require.Nil(t, p.BorrowedDate)
	require.Len(t, repo.history, 1)
	require.EqualValues(t, 7, repo.history[0].FarmerID)
	require.EqualValues(t, 3, repo.history[0].SeasonID)
}

func TestLendRejectsSubContact(t *testing.T) {
	repo := newMemoryRepo()
	repo.paloxes[1] = Palox{ID: 1, Name: "P001"}
	farmers := memoryFarmers{7: {ID: 7, ParentID: 3}}
	svc := NewService(repo, farmers, nil, nil)

	require.ErrorIs(t, svc.Lend(context.Background(), 1, 7), ErrBorrowerSubContact)
}

func TestReturnRequiresBorrower(t *testing.T) {
	repo := newMemoryRepo()
	repo.paloxes[1] = Palox{ID: 1, Name: "P001"}
	svc := NewService(repo, memoryFarmers{}, nil, nil)

	require.ErrorIs(t, svc.ReturnBorrowed(context.Background(), 1), ErrNotBorrowed)

	date := time.Now()
	repo.paloxes[1] = Palox{ID: 1, Name: "P001", BorrowerID: 7, BorrowedDate: &date}
	require.NoError(t, svc.ReturnBorrowed(context.Background(), 1))
}

func TestJuiceTypeLock(t *testing.T) {
	repo := newMemoryRepo()
	repo.paloxes[1] = Palox{ID: 1, Name: "P001"}
	svc := NewService(repo, memoryFarmers{}, nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.LockJuiceType(ctx, 1, 42))
	require.NoError(t, svc.LockJuiceType(ctx, 1, 42))
	require.ErrorIs(t, svc.LockJuiceType(ctx, 1, 43), ErrJuiceTypeLocked)

	require.NoError(t, svc.ReleaseJuiceType(ctx, 1))
	require.NoError(t, svc.LockJuiceType(ctx, 1, 43))

	require.NoError(t, svc.RestoreJuiceType(ctx, 1, 42))
	require.EqualValues(t, 42, repo.paloxes[1].JuiceProductID)
}

func TestCurrentWeight(t *testing.T) {
	repo := newMemoryRepo()
	repo.paloxes[1] = Palox{ID: 1, Name: "P001"}
	repo.content[1] = Content{Weight: decimal.RequireFromString("480.50")}
	svc := NewService(repo, memoryFarmers{}, nil, nil)

	w, err := svc.CurrentWeight(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, w.Equal(decimal.RequireFromString("480.50")))
}

func TestSummarizeDestinations(t *testing.T) {
	require.Equal(t, mill.DestinationSale, SummarizeDestinations([]mill.Destination{mill.DestinationSale, mill.DestinationSale}))
	require.Equal(t, mill.DestinationWithdrawal, SummarizeDestinations([]mill.Destination{mill.DestinationWithdrawal}))
	require.Equal(t, mill.DestinationMix, SummarizeDestinations([]mill.Destination{mill.DestinationSale, mill.DestinationWithdrawal}))
	require.Equal(t, mill.Destination(""), SummarizeDestinations(nil))
}
