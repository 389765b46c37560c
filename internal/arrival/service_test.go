package arrival

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pressmill-erp/pressmill-erp/internal/catalog"
	"github.com/pressmill-erp/pressmill-erp/internal/mill"
	"github.com/pressmill-erp/pressmill-erp/internal/palox"
	"github.com/pressmill-erp/pressmill-erp/internal/shared"
	"github.com/pressmill-erp/pressmill-erp/internal/stock"
)

type memoryRepo struct {
	arrivals map[int64]Arrival
	lines    map[int64]Line
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{arrivals: make(map[int64]Arrival), lines: make(map[int64]Line)}
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Arrival, []Line, error) {
	a, ok := r.arrivals[id]
	if !ok {
		return Arrival{}, nil, ErrNotFound
	}
	var lines []Line
	for _, l := range r.lines {
		if l.ArrivalID == id {
			lines = append(lines, l)
		}
	}
	// Map iteration order is random; tests rely on line ids being ordered.
	for i := 0; i < len(lines); i++ {
		for j := i + 1; j < len(lines); j++ {
			if lines[j].ID < lines[i].ID {
				lines[i], lines[j] = lines[j], lines[i]
			}
		}
	}
	return a, lines, nil
}

func (r *memoryRepo) Update(_ context.Context, a Arrival) error {
	r.arrivals[a.ID] = a
	return nil
}

func (r *memoryRepo) UpdateLine(_ context.Context, l Line) error {
	r.lines[l.ID] = l
	return nil
}

func (r *memoryRepo) OpenLines(_ context.Context, paloxID int64) ([]Line, error) {
	var out []Line
	for _, l := range r.lines {
		if l.PaloxID == paloxID && l.State == LineDone && !l.Attached() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	delete(r.arrivals, id)
	return nil
}

func (r *memoryRepo) DeleteLine(_ context.Context, lineID int64) error {
	delete(r.lines, lineID)
	return nil
}

type memoryFarmers struct {
	farmers map[int64]mill.Farmer
}

func (f *memoryFarmers) Farmer(_ context.Context, id int64) (mill.Farmer, error) {
	return f.farmers[id], nil
}

func (f *memoryFarmers) AdjustLendedCases(_ context.Context, farmerID int64, regular, organic int) error {
	farmer := f.farmers[farmerID]
	farmer.LendedRegularCases += regular
	farmer.LendedOrganicCases += organic
	f.farmers[farmerID] = farmer
	return nil
}

type memoryPaloxes struct {
	paloxes  map[int64]palox.Palox
	returned []int64
}

func (p *memoryPaloxes) Get(_ context.Context, id int64) (palox.Palox, error) {
	return p.paloxes[id], nil
}

func (p *memoryPaloxes) LockJuiceType(_ context.Context, paloxID, juiceProductID int64) error {
	box := p.paloxes[paloxID]
	if box.JuiceProductID != 0 && box.JuiceProductID != juiceProductID {
		return palox.ErrJuiceTypeLocked
	}
	box.JuiceProductID = juiceProductID
	p.paloxes[paloxID] = box
	return nil
}

func (p *memoryPaloxes) ReturnBorrowed(_ context.Context, paloxID int64) error {
	box := p.paloxes[paloxID]
	box.BorrowerID = 0
	box.BorrowedDate = nil
	p.paloxes[paloxID] = box
	p.returned = append(p.returned, paloxID)
	return nil
}

type memoryWarehouses map[int64]mill.Warehouse

func (w memoryWarehouses) Warehouse(_ context.Context, id int64) (mill.Warehouse, error) {
	return w[id], nil
}

type memoryCatalog map[int64]catalog.Product

func (c memoryCatalog) Product(_ context.Context, id int64) (catalog.Product, error) {
	p, ok := c[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

type fixture struct {
	svc      *Service
	repo     *memoryRepo
	farmers  *memoryFarmers
	paloxes  *memoryPaloxes
	store    *stock.MemoryStore
	arrivals memoryWarehouses
}

func newFixture() *fixture {
	repo := newMemoryRepo()
	farmers := &memoryFarmers{farmers: map[int64]mill.Farmer{
		7: {ID: 7, Name: "Ferme du Vallon", CultureType: mill.CultureRegular,
			LendedRegularCases: 10, LendedOrganicCases: 2},
	}}
	paloxes := &memoryPaloxes{paloxes: map[int64]palox.Palox{
		1: {ID: 1, Name: "P001", Active: true},
		2: {ID: 2, Name: "P002", Active: true},
	}}
	warehouses := memoryWarehouses{
		5: {ID: 5, Name: "Mill", CompensationRatio: decimal.NewFromInt(20)},
	}
	products := memoryCatalog{
		42: {ID: 42, Name: "Apple Juice", Kind: catalog.KindJuice,
			CultureType: mill.CultureRegular, UoM: "L"},
		43: {ID: 43, Name: "Organic Apple Juice", Kind: catalog.KindJuice,
			CultureType: mill.CultureOrganic, UoM: "L"},
	}
	store := stock.NewMemoryStore()
	svc := NewService(repo, farmers, paloxes, warehouses, products, store, mill.DefaultConfig(), nil)
	return &fixture{svc: svc, repo: repo, farmers: farmers, paloxes: paloxes,
		store: store, arrivals: warehouses}
}

func (f *fixture) addArrival(a Arrival, lines ...Line) {
	f.repo.arrivals[a.ID] = a
	for _, l := range lines {
		l.ArrivalID = a.ID
		f.repo.lines[l.ID] = l
	}
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func baseArrival() Arrival {
	return Arrival{
		ID: 100, Name: "ARR/0100", FarmerID: 7, WarehouseID: 5, SeasonID: 1,
		Date: day("2025-11-03"), HarvestStartDate: day("2025-11-02"), State: StateDraft,
	}
}

func TestCheckArrivalPaloxCapacity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// 450 kg already validated into the palox from an earlier delivery.
	f.addArrival(Arrival{ID: 99, Name: "ARR/0099", FarmerID: 7, WarehouseID: 5,
		Date: day("2025-11-01"), State: StateDone},
		Line{ID: 1, State: LineDone, PaloxID: 1, JuiceProductID: 42,
			Destination: mill.DestinationWithdrawal, FruitQty: decimal.NewFromInt(450)})

	// 450 + 30 = 480 kg fits under the 500 kg cap.
	a := baseArrival()
	ok := Line{ID: 2, Name: "ARR/0100/1", State: LineDraft, PaloxID: 1, JuiceProductID: 42,
		Destination: mill.DestinationWithdrawal, FruitQty: decimal.NewFromInt(30)}
	warnings, err := f.svc.CheckArrival(ctx, a, []Line{ok})
	require.NoError(t, err)
	require.True(t, warnings.Empty())

	// A further 25 kg in the same delivery would reach 505 kg.
	over := ok
	more := Line{ID: 3, State: LineDraft, PaloxID: 1, JuiceProductID: 42,
		Destination: mill.DestinationWithdrawal, FruitQty: decimal.NewFromInt(25)}
	_, err = f.svc.CheckArrival(ctx, a, []Line{over, more})
	require.ErrorIs(t, err, ErrPaloxOverweight)
}

func TestCheckArrivalHardFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := baseArrival()

	zero := Line{ID: 1, State: LineDraft, PaloxID: 1, JuiceProductID: 42,
		Destination: mill.DestinationWithdrawal}
	_, err := f.svc.CheckArrival(ctx, a, []Line{zero})
	require.ErrorIs(t, err, ErrZeroFruitQty)

	organic := Line{ID: 1, State: LineDraft, PaloxID: 1, JuiceProductID: 43,
		Destination: mill.DestinationWithdrawal, FruitQty: decimal.NewFromInt(100)}
	_, err = f.svc.CheckArrival(ctx, a, []Line{organic})
	require.ErrorIs(t, err, ErrCultureMismatch)

	mix := Line{ID: 1, State: LineDraft, PaloxID: 1, JuiceProductID: 42,
		Destination: mill.DestinationMix, FruitQty: decimal.NewFromInt(100)}
	_, err = f.svc.CheckArrival(ctx, a, []Line{mix})
	require.ErrorIs(t, err, ErrMixWithoutQty)

	locked := f.paloxes.paloxes[1]
	locked.JuiceProductID = 43
	f.paloxes.paloxes[1] = locked
	plain := Line{ID: 1, State: LineDraft, PaloxID: 1, JuiceProductID: 42,
		Destination: mill.DestinationWithdrawal, FruitQty: decimal.NewFromInt(100)}
	_, err = f.svc.CheckArrival(ctx, a, []Line{plain})
	require.ErrorIs(t, err, palox.ErrJuiceTypeLocked)

	over := baseArrival()
	over.ReturnedRegularCases = 11
	_, err = f.svc.CheckArrival(ctx, over, nil)
	require.ErrorIs(t, err, ErrCaseOverReturn)
}

func TestCheckArrivalWarnings(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.addArrival(Arrival{ID: 99, Name: "ARR/0099", FarmerID: 7, WarehouseID: 5,
		Date: day("2025-11-01"), State: StateDone},
		Line{ID: 1, State: LineDone, PaloxID: 1, VariantID: 3, JuiceProductID: 42,
			Destination: mill.DestinationWithdrawal, FruitQty: decimal.NewFromInt(100)})

	a := baseArrival()
	a.HarvestStartDate = day("2025-10-25")
	// Mix request of 40 L on 100 kg: the 20% average ratio expects 20 L.
	line := Line{ID: 2, State: LineDraft, PaloxID: 1, VariantID: 4, JuiceProductID: 42,
		Destination: mill.DestinationMix, FruitQty: decimal.NewFromInt(100),
		MixWithdrawalQty: decimal.NewFromInt(40)}
	warnings, err := f.svc.CheckArrival(ctx, a, []Line{line})
	require.NoError(t, err)
	require.Len(t, warnings, 4)
	codes := map[string]bool{}
	for _, w := range warnings {
		codes[w.Code] = true
	}
	require.True(t, codes[WarnMixExceedsRatio])
	require.True(t, codes[WarnVariantMismatch])
	require.True(t, codes[WarnDestinationMismatch])
	require.True(t, codes[WarnHarvestDelayExceeded])
}

func TestValidateBlocksOnWarnings(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	a := baseArrival()
	a.HarvestStartDate = day("2025-10-25")
	f.addArrival(a, Line{ID: 1, State: LineDraft, PaloxID: 1, JuiceProductID: 42,
		Destination: mill.DestinationSale, FruitQty: decimal.NewFromInt(100)})

	err := f.svc.Validate(ctx, a.ID, false)
	require.ErrorIs(t, err, shared.ErrWarningsNotBypassed)
	require.Equal(t, StateDraft, f.repo.arrivals[a.ID].State)

	require.NoError(t, f.svc.Validate(ctx, a.ID, true))
	require.Equal(t, StateDone, f.repo.arrivals[a.ID].State)
}

func TestValidateNumbersAndBooks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	borrowed := day("2025-10-01")
	box := f.paloxes.paloxes[1]
	box.BorrowerID = 7
	box.BorrowedDate = &borrowed
	f.paloxes.paloxes[1] = box

	a := baseArrival()
	a.ReturnedRegularCases = 4
	f.addArrival(a,
		Line{ID: 1, State: LineDraft, PaloxID: 1, JuiceProductID: 42,
			Destination: mill.DestinationWithdrawal, FruitQty: decimal.NewFromInt(120)},
		Line{ID: 2, State: LineDraft, PaloxID: 2, JuiceProductID: 42,
			Destination: mill.DestinationWithdrawal, FruitQty: decimal.NewFromInt(90)})

	require.NoError(t, f.svc.Validate(ctx, a.ID, false))

	require.Equal(t, "ARR/0100/1", f.repo.lines[1].Name)
	require.Equal(t, "ARR/0100/2", f.repo.lines[2].Name)
	require.Equal(t, LineDone, f.repo.lines[1].State)
	require.NotNil(t, f.repo.arrivals[a.ID].DoneAt)

	// The palox lock binds to the delivered juice type.
	require.EqualValues(t, 42, f.paloxes.paloxes[1].JuiceProductID)
	// The borrowed palox used on a line comes back.
	require.Equal(t, []int64{1}, f.paloxes.returned)
	// Returned cases come off the farmer's tab.
	require.Equal(t, 6, f.farmers.farmers[7].LendedRegularCases)
}

func TestValidateRequiresLines(t *testing.T) {
	f := newFixture()
	a := baseArrival()
	f.addArrival(a)

	require.ErrorIs(t, f.svc.Validate(context.Background(), a.ID, false), ErrNoLines)
}

func TestCancelAndBackToDraft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	a := baseArrival()
	f.addArrival(a,
		Line{ID: 1, State: LineDone, PaloxID: 1, JuiceProductID: 42,
			Destination: mill.DestinationWithdrawal, FruitQty: decimal.NewFromInt(100),
			ProductionID: 9},
		Line{ID: 2, State: LineDraft, PaloxID: 2, JuiceProductID: 42,
			Destination: mill.DestinationWithdrawal, FruitQty: decimal.NewFromInt(50)})

	require.NoError(t, f.svc.Cancel(ctx, a.ID))
	require.Equal(t, StateCancel, f.repo.arrivals[a.ID].State)
	// The attached line is untouched, the free one is cancelled.
	require.Equal(t, LineDone, f.repo.lines[1].State)
	require.Equal(t, LineCancel, f.repo.lines[2].State)

	require.NoError(t, f.svc.BackToDraft(ctx, a.ID))
	require.Equal(t, StateDraft, f.repo.arrivals[a.ID].State)
	require.Equal(t, LineDraft, f.repo.lines[2].State)
}

func TestCancelRejectedWhenAllAttached(t *testing.T) {
	f := newFixture()
	a := baseArrival()
	f.addArrival(a, Line{ID: 1, State: LineDone, PaloxID: 1, JuiceProductID: 42,
		Destination: mill.DestinationWithdrawal, FruitQty: decimal.NewFromInt(100),
		ProductionID: 9})

	require.ErrorIs(t, f.svc.Cancel(context.Background(), a.ID), ErrAllLinesAttached)
}

func TestUnlinkGuards(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	a := baseArrival()
	f.addArrival(a, Line{ID: 1, State: LineDraft, PaloxID: 1, JuiceProductID: 42,
		Destination: mill.DestinationWithdrawal, FruitQty: decimal.NewFromInt(100)})
	require.ErrorIs(t, f.svc.Unlink(ctx, a.ID), ErrLineHasFruit)

	f.repo.lines[1] = Line{ID: 1, ArrivalID: a.ID, State: LineDone, PaloxID: 1}
	require.ErrorIs(t, f.svc.Unlink(ctx, a.ID), ErrLineDone)

	f.repo.lines[1] = Line{ID: 1, ArrivalID: a.ID, State: LineDraft, PaloxID: 1, ProductionID: 9}
	require.ErrorIs(t, f.svc.UnlinkLine(ctx, a.ID, 1), ErrLineAttached)

	f.repo.lines[1] = Line{ID: 1, ArrivalID: a.ID, State: LineDraft, PaloxID: 1}
	require.NoError(t, f.svc.UnlinkLine(ctx, a.ID, 1))
	require.NoError(t, f.svc.Unlink(ctx, a.ID))
}

func TestRecomputeRollups(t *testing.T) {
	f := newFixture()
	a := baseArrival()
	a.State = StateDone
	f.addArrival(a,
		Line{ID: 1, State: LineDone, PaloxID: 1, JuiceProductID: 42,
			Destination: mill.DestinationWithdrawal, FruitQty: decimal.NewFromInt(100),
			JuiceQtyNet: decimal.RequireFromString("14.94"), ProductionState: "done"},
		Line{ID: 2, State: LineDone, PaloxID: 2, JuiceProductID: 42,
			Destination: mill.DestinationWithdrawal, FruitQty: decimal.NewFromInt(300),
			JuiceQtyNet: decimal.RequireFromString("44.82"), ProductionState: "done"},
		Line{ID: 3, State: LineDone, PaloxID: 2, JuiceProductID: 42,
			Destination: mill.DestinationWithdrawal, FruitQty: decimal.NewFromInt(50)})

	require.NoError(t, f.svc.RecomputeRollups(context.Background(), a.ID))
	got := f.repo.arrivals[a.ID]
	require.True(t, got.PressedQty.Equal(decimal.NewFromInt(400)), "got %s", got.PressedQty)
	require.True(t, got.JuiceQtyNet.Equal(decimal.RequireFromString("59.76")), "got %s", got.JuiceQtyNet)
	require.True(t, got.JuiceRatioNet.Equal(decimal.RequireFromString("14.94")), "got %s", got.JuiceRatioNet)
}
