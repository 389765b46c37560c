package production

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pressmill-erp/pressmill-erp/internal/arrival"
	"github.com/pressmill-erp/pressmill-erp/internal/catalog"
	"github.com/pressmill-erp/pressmill-erp/internal/mill"
	"github.com/pressmill-erp/pressmill-erp/internal/shared"
	"github.com/pressmill-erp/pressmill-erp/internal/stock"
	"github.com/pressmill-erp/pressmill-erp/internal/tank"
	"github.com/pressmill-erp/pressmill-erp/internal/uom"
)

// RepositoryPort abstracts batch persistence for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Production, error)
	Update(ctx context.Context, p Production) error
}

// LinePort is the slice of the arrival ledger the batch reads and writes.
type LinePort interface {
	OpenLines(ctx context.Context, paloxID int64) ([]arrival.Line, error)
	HasDraftLines(ctx context.Context, paloxID int64) (bool, error)
	ListLinesByProduction(ctx context.Context, productionID int64) ([]arrival.Line, error)
	UpdateLine(ctx context.Context, l arrival.Line) error
}

// ArrivalPort triggers the parent-arrival rollups after finalize.
type ArrivalPort interface {
	RecomputeRollups(ctx context.Context, arrivalID int64) error
}

// PaloxPort manages the container's juice-type lock.
type PaloxPort interface {
	ReleaseJuiceType(ctx context.Context, paloxID int64) error
	RestoreJuiceType(ctx context.Context, paloxID, juiceProductID int64) error
}

// WarehousePort resolves warehouses.
type WarehousePort interface {
	Warehouse(ctx context.Context, id int64) (mill.Warehouse, error)
}

// TankPort is the transfer engine contract.
type TankPort interface {
	Check(ctx context.Context, t tank.Tank, raiseIfEmpty bool) ([]stock.Quant, error)
	CompatibilityCheck(t tank.Tank, juiceProductID, seasonID int64) error
	Quantity(ctx context.Context, locationID int64) (decimal.Decimal, error)
	Transfer(ctx context.Context, in tank.TransferInput) ([]int64, error)
}

// Service drives the batch state machine. Transitions on one batch are
// serialized through the keyed mutex; different batches run in parallel.
type Service struct {
	repo       RepositoryPort
	lines      LinePort
	arrivals   ArrivalPort
	paloxes    PaloxPort
	warehouses WarehousePort
	products   catalog.Lookup
	tanks      tank.Repository
	engine     TankPort
	store      stock.Store
	cfg        mill.Config
	audit      shared.AuditPort
	locks      *shared.KeyedMutex
	now        func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, lines LinePort, arrivals ArrivalPort,
	paloxes PaloxPort, warehouses WarehousePort, products catalog.Lookup,
	tanks tank.Repository, engine TankPort, store stock.Store,
	cfg mill.Config, audit shared.AuditPort) *Service {
	return &Service{
		repo:       repo,
		lines:      lines,
		arrivals:   arrivals,
		paloxes:    paloxes,
		warehouses: warehouses,
		products:   products,
		tanks:      tanks,
		engine:     engine,
		store:      store,
		cfg:        cfg,
		audit:      audit,
		locks:      shared.NewKeyedMutex(),
		now:        time.Now,
	}
}

func (s *Service) lock(id int64) func() {
	return s.locks.Lock(strconv.FormatInt(shared.ProductionLockKey(id), 10))
}

// Get loads a batch.
func (s *Service) Get(ctx context.Context, id int64) (Production, error) {
	return s.repo.Get(ctx, id)
}

// AttachLines moves draft to ratio: claims every done, unattached line of the
// batch's palox, verifies they share one juice type and one season, and
// releases the palox lock for new deliveries.
func (s *Service) AttachLines(ctx context.Context, id int64) error {
	defer s.lock(id)()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.State != StateDraft {
		return fmt.Errorf("%w: %s is %s", ErrBadState, p.Name, p.State)
	}
	draft, err := s.lines.HasDraftLines(ctx, p.PaloxID)
	if err != nil {
		return err
	}
	if draft {
		return fmt.Errorf("%w: palox %d", ErrDraftLinesOnPalox, p.PaloxID)
	}
	lines, err := s.lines.OpenLines(ctx, p.PaloxID)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("%w: palox %d", ErrPaloxEmpty, p.PaloxID)
	}

	juiceProductID := lines[0].JuiceProductID
	seasonID := lines[0].SeasonID
	fruit := decimal.Zero
	dests := make([]mill.Destination, 0, len(lines))
	var farmers []string
	seen := map[string]bool{}
	needsAnalysis := false
	for _, l := range lines {
		if l.JuiceProductID != juiceProductID {
			return fmt.Errorf("%w: line %s", ErrMixedJuiceTypes, l.Name)
		}
		if l.SeasonID != seasonID {
			return fmt.Errorf("%w: line %s", ErrMixedSeasons, l.Name)
		}
		if !l.FruitQty.IsPositive() {
			return fmt.Errorf("%w: line %s", ErrLineWithoutFruit, l.Name)
		}
		fruit = fruit.Add(l.FruitQty)
		dests = append(dests, l.Destination)
		if !seen[l.FarmerName] {
			seen[l.FarmerName] = true
			farmers = append(farmers, l.FarmerName)
		}
		if l.NeedsAnalysis {
			needsAnalysis = true
		}
	}

	wh, err := s.warehouses.Warehouse(ctx, p.WarehouseID)
	if err != nil {
		return err
	}

	for _, l := range lines {
		l.ProductionID = p.ID
		l.ProductionState = string(StateRatio)
		if err := s.lines.UpdateLine(ctx, l); err != nil {
			return err
		}
	}
	if err := s.paloxes.ReleaseJuiceType(ctx, p.PaloxID); err != nil {
		return err
	}

	p.JuiceProductID = juiceProductID
	p.SeasonID = seasonID
	if p.CompensationType == "" {
		p.CompensationType = mill.CompensationNone
	}
	p.FruitQty = mill.RoundWeight(fruit)
	p.Destination = ComputeDestination(dests)
	p.FarmerList = farmers
	p.NeedsAnalysis = needsAnalysis
	p.ShrinkageTankLocationID = wh.ShrinkageTankLocationID
	if p.CompensationTankLocationID == 0 {
		p.CompensationTankLocationID = wh.CompTankLocationID
	}
	p.State = StateRatio
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	return s.recordAudit(ctx, "attach_lines", p.ID, map[string]any{"lines": len(lines)})
}

// SetCompensation configures the batch's compensation mode. For last mode the
// fruit quantity and ratio must be strictly positive, the ratio inside the
// realistic band, and the pooled volume follows from them.
func (s *Service) SetCompensation(ctx context.Context, id int64,
	compType mill.CompensationType, tankLocationID int64,
	lastFruitQty, ratio decimal.Decimal) error {
	defer s.lock(id)()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.State == StateDone {
		return ErrAlreadyDone
	}
	p.CompensationType = compType
	p.CompensationTankLocationID = tankLocationID
	p.CompensationLastFruitQty = decimal.Zero
	p.CompensationRatio = decimal.Zero
	if compType != mill.CompensationLast {
		if compType == mill.CompensationNone {
			p.CompensationQty = decimal.Zero
		}
		return s.repo.Update(ctx, p)
	}
	if !lastFruitQty.IsPositive() || !ratio.IsPositive() {
		return ErrCompQtyNotPositive
	}
	if !s.cfg.RatioInBand(ratio) {
		return fmt.Errorf("%w: compensation ratio %s, band [%s, %s]",
			ErrRatioOutOfBand, ratio, s.cfg.MinRatio, s.cfg.MaxRatio)
	}
	p.CompensationLastFruitQty = mill.RoundWeight(lastFruitQty)
	p.CompensationRatio = mill.RoundRatio(ratio)
	p.CompensationQty = mill.RoundVolume(lastFruitQty.Mul(ratio).Div(hundred))
	return s.repo.Update(ctx, p)
}

// EnterResult records the measured raw output of the press while the batch
// sits in ratio. The gross ratio, compensation included, must fall inside
// the realistic band.
func (s *Service) EnterResult(ctx context.Context, id int64, measuredKg decimal.Decimal) error {
	defer s.lock(id)()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.State != StateRatio {
		return fmt.Errorf("%w: %s is %s", ErrBadState, p.Name, p.State)
	}
	if !measuredKg.IsPositive() {
		return ErrNoJuiceQty
	}
	liters, err := uom.KgToLiter(measuredKg, s.cfg.JuiceDensity)
	if err != nil {
		return err
	}
	gross := liters
	switch p.CompensationType {
	case mill.CompensationFirst:
		gross = gross.Add(p.CompensationQty)
	case mill.CompensationLast:
		gross = gross.Sub(p.CompensationQty)
	}
	if !p.FruitQty.IsPositive() {
		return ErrLineWithoutFruit
	}
	ratio := mill.RoundRatio(hundred.Mul(gross).Div(p.FruitQty))
	if !s.cfg.RatioInBand(ratio) {
		return fmt.Errorf("%w: gross ratio %s, band [%s, %s]",
			ErrRatioOutOfBand, ratio, s.cfg.MinRatio, s.cfg.MaxRatio)
	}
	p.JuiceQtyKg = mill.RoundWeight(measuredKg)
	p.JuiceQty = liters
	p.Ratio = ratio
	return s.repo.Update(ctx, p)
}

// compensationCheckTank validates the compensation tank against the batch
// mode. none and last want it empty beforehand, first wants it filled; for
// first the found volume and product are captured on the batch.
func (s *Service) compensationCheckTank(ctx context.Context, p *Production) error {
	if p.CompensationType == mill.CompensationNone && p.CompensationTankLocationID == 0 {
		return nil
	}
	if p.CompensationTankLocationID == 0 {
		return ErrCompTankUnset
	}
	t, err := s.tanks.Get(ctx, p.CompensationTankLocationID)
	if err != nil {
		return err
	}
	qty, err := s.engine.Quantity(ctx, t.LocationID)
	if err != nil {
		return err
	}
	switch p.CompensationType {
	case mill.CompensationNone, mill.CompensationLast:
		if qty.IsPositive() {
			return fmt.Errorf("%w: %s holds %s L", ErrCompTankNotEmpty, t.Name, qty)
		}
		if p.CompensationType == mill.CompensationLast {
			// The pool juice joins this batch, so the tank binds to its type.
			t.JuiceProductID = p.JuiceProductID
			if t.SeasonID == 0 {
				t.SeasonID = p.SeasonID
			}
			if err := s.tanks.Update(ctx, t); err != nil {
				return err
			}
		}
	case mill.CompensationFirst:
		if _, err := s.engine.Check(ctx, t, true); err != nil {
			if qty.IsZero() {
				return fmt.Errorf("%w: %s", ErrCompTankEmpty, t.Name)
			}
			return err
		}
		p.CompensationQty = mill.RoundVolume(qty)
		p.CompensationProductID = t.JuiceProductID
	}
	return nil
}

// RatioToForce leaves ratio: runs the compensation tank pre-check and the
// allocator, then lands on force, pack or check. Single-line batches skip
// the manual force step; pure-sale single-line batches skip packaging too.
func (s *Service) RatioToForce(ctx context.Context, id int64) error {
	defer s.lock(id)()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.State != StateRatio {
		return fmt.Errorf("%w: %s is %s", ErrBadState, p.Name, p.State)
	}
	if err := s.compensationCheckTank(ctx, &p); err != nil {
		return err
	}
	lines, err := s.distribute(ctx, &p, 0, decimal.Zero)
	if err != nil {
		return err
	}
	if len(lines) == 1 {
		if p.Destination == mill.DestinationSale {
			p.State = StateCheck
		} else {
			p.State = StatePack
		}
	} else {
		p.State = StateForce
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	return s.recordAudit(ctx, "ratio_to_force", p.ID, map[string]any{"state": string(p.State)})
}

// ForceRatio re-runs the allocator with one line pinned to an operator
// ratio. The batch stays in force until ForceToPack.
func (s *Service) ForceRatio(ctx context.Context, id, lineID int64, ratio decimal.Decimal) error {
	defer s.lock(id)()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.State != StateForce {
		return fmt.Errorf("%w: %s is %s", ErrBadState, p.Name, p.State)
	}
	if _, err := s.distribute(ctx, &p, lineID, ratio); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	return s.recordAudit(ctx, "force_ratio", p.ID,
		map[string]any{"line_id": lineID, "ratio": ratio.String()})
}

// ForceToPack advances past the manual forcing step. Pure-sale batches have
// nothing to pack and go straight to check.
func (s *Service) ForceToPack(ctx context.Context, id int64) error {
	defer s.lock(id)()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.State != StateForce {
		return fmt.Errorf("%w: %s is %s", ErrBadState, p.Name, p.State)
	}
	if p.Destination == mill.DestinationSale {
		p.State = StateCheck
	} else {
		p.State = StatePack
	}
	return s.repo.Update(ctx, p)
}

// PackToCheck closes the packaging step.
func (s *Service) PackToCheck(ctx context.Context, id int64) error {
	defer s.lock(id)()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.State != StatePack {
		return fmt.Errorf("%w: %s is %s", ErrBadState, p.Name, p.State)
	}
	p.State = StateCheck
	return s.repo.Update(ctx, p)
}

// distribute runs the allocator over the attached lines, persists the
// results and refreshes the batch aggregates.
func (s *Service) distribute(ctx context.Context, p *Production,
	forcedLineID int64, forcedRatio decimal.Decimal) ([]arrival.Line, error) {
	lines, err := s.lines.ListLinesByProduction(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if !p.JuiceQty.IsPositive() {
		return nil, ErrNoJuiceQty
	}
	allocated, err := Distribute(AllocationInput{
		Lines:            lines,
		TotalJuice:       p.JuiceQty,
		CompensationType: p.CompensationType,
		CompensationQty:  p.CompensationQty,
		ForcedLineID:     forcedLineID,
		ForcedRatio:      forcedRatio,
		Config:           s.cfg,
	})
	if err != nil {
		return nil, err
	}

	toSale, toCompSale := decimal.Zero, decimal.Zero
	dests := make([]mill.Destination, 0, len(allocated))
	for _, l := range allocated {
		if err := s.lines.UpdateLine(ctx, l); err != nil {
			return nil, err
		}
		toSale = toSale.Add(l.ToSaleTankQty)
		if l.Destination != mill.DestinationWithdrawal {
			toCompSale = toCompSale.Add(l.CompensationQty)
		}
		dests = append(dests, l.Destination)
	}
	p.ToSaleTankQty = mill.RoundVolume(toSale)
	p.ToCompSaleTankQty = mill.RoundVolume(toCompSale)
	p.Destination = ComputeDestination(dests)
	return allocated, nil
}

// Finalize turns a checked batch into stock reality: one production lot,
// withdrawal and extra movements per line, the sale-tank transfer, the
// compensation settlement and the shrinkage booking. Repeating it on a done
// batch is rejected before any movement is created.
func (s *Service) Finalize(ctx context.Context, id int64) error {
	defer s.lock(id)()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.State == StateDone {
		return fmt.Errorf("%w: %s", ErrAlreadyDone, p.Name)
	}
	if p.State != StateCheck {
		return fmt.Errorf("%w: %s is %s", ErrBadState, p.Name, p.State)
	}
	if err := s.compensationCheckTank(ctx, &p); err != nil {
		return err
	}
	if p.CompensationType == mill.CompensationLast && !p.CompensationQty.IsPositive() {
		return ErrCompQtyNotPositive
	}
	lines, err := s.lines.ListLinesByProduction(ctx, p.ID)
	if err != nil {
		return err
	}
	wh, err := s.warehouses.Warehouse(ctx, p.WarehouseID)
	if err != nil {
		return err
	}

	lotID, err := s.store.CreateLot(ctx, stock.Lot{
		Name:          p.Name,
		ProductID:     p.JuiceProductID,
		ProductionRef: uuid.NewString(),
	})
	if err != nil {
		return err
	}
	p.LotID = lotID

	// Virtual production source; by convention negative of the batch id.
	virtualLoc := -p.ID

	for _, l := range lines {
		if l.WithdrawalQty.IsPositive() {
			if err := s.confirmMove(ctx, stock.Movement{
				Origin:        p.Name,
				ProductID:     p.JuiceProductID,
				SrcLocationID: virtualLoc,
				DstLocationID: wh.WithdrawalLocationID,
				Qty:           l.WithdrawalQty,
				LotID:         lotID,
				OwnerID:       l.FarmerID,
			}); err != nil {
				return err
			}
		}
		for _, extra := range l.Extras {
			product, err := s.products.Product(ctx, extra.ProductID)
			if err != nil {
				return err
			}
			if product.Tracked() {
				return fmt.Errorf("%w: %s on line %s", ErrTrackedExtra, product.Name, l.Name)
			}
			if !extra.Qty.IsPositive() {
				continue
			}
			if err := s.confirmMove(ctx, stock.Movement{
				Origin:        p.Name,
				ProductID:     extra.ProductID,
				SrcLocationID: wh.StockLocationID,
				DstLocationID: wh.WithdrawalLocationID,
				Qty:           extra.Qty,
				OwnerID:       l.FarmerID,
			}); err != nil {
				return err
			}
		}
	}

	if p.ToSaleTankQty.IsPositive() {
		if err := s.transferToSaleTank(ctx, p, wh, virtualLoc); err != nil {
			return err
		}
	}
	if p.CompensationType == mill.CompensationLast && p.CompensationQty.IsPositive() {
		if err := s.confirmMove(ctx, stock.Movement{
			Origin:        p.Name,
			ProductID:     p.JuiceProductID,
			SrcLocationID: virtualLoc,
			DstLocationID: p.CompensationTankLocationID,
			Qty:           p.CompensationQty,
			LotID:         lotID,
		}); err != nil {
			return err
		}
	}
	if err := s.bookShrinkage(ctx, p, lines, virtualLoc); err != nil {
		return err
	}
	if p.CompensationType == mill.CompensationFirst && p.CompensationQty.IsPositive() {
		if err := s.settleFirstCompensation(ctx, p, wh, lines); err != nil {
			return err
		}
	}

	done := s.now()
	p.State = StateDone
	p.DoneAt = &done
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}

	arrivalIDs := map[int64]bool{}
	for _, l := range lines {
		l.ProductionState = string(StateDone)
		if err := s.lines.UpdateLine(ctx, l); err != nil {
			return err
		}
		arrivalIDs[l.ArrivalID] = true
	}
	for arrivalID := range arrivalIDs {
		if err := s.arrivals.RecomputeRollups(ctx, arrivalID); err != nil {
			return err
		}
	}
	return s.recordAudit(ctx, "finalize", p.ID, map[string]any{"lot_id": lotID})
}

func (s *Service) transferToSaleTank(ctx context.Context, p Production,
	wh mill.Warehouse, virtualLoc int64) error {
	if wh.SaleTankLocationID == 0 {
		return ErrSaleTankUnset
	}
	t, err := s.tanks.Get(ctx, wh.SaleTankLocationID)
	if err != nil {
		return err
	}
	if t.JuiceProductID != 0 {
		if err := s.engine.CompatibilityCheck(t, p.JuiceProductID, p.SeasonID); err != nil {
			return err
		}
	} else {
		t.JuiceProductID = p.JuiceProductID
		t.SeasonID = p.SeasonID
		if err := s.tanks.Update(ctx, t); err != nil {
			return err
		}
	}
	return s.confirmMove(ctx, stock.Movement{
		Origin:        p.Name,
		ProductID:     p.JuiceProductID,
		SrcLocationID: virtualLoc,
		DstLocationID: wh.SaleTankLocationID,
		Qty:           p.ToSaleTankQty,
		LotID:         p.LotID,
	})
}

// bookShrinkage moves the shrinkage of withdrawal-destination lines to the
// shrinkage tank under its product's generic shrinkage lot.
func (s *Service) bookShrinkage(ctx context.Context, p Production,
	lines []arrival.Line, virtualLoc int64) error {
	total := decimal.Zero
	for _, l := range lines {
		if l.Destination == mill.DestinationWithdrawal {
			total = total.Add(l.ShrinkageQty)
		}
	}
	if !total.IsPositive() {
		return nil
	}
	if p.ShrinkageTankLocationID == 0 {
		return ErrShrinkageTankUnset
	}
	t, err := s.tanks.Get(ctx, p.ShrinkageTankLocationID)
	if err != nil {
		return err
	}
	productID := t.JuiceProductID
	if productID == 0 {
		productID = p.JuiceProductID
	}
	product, err := s.products.Product(ctx, productID)
	if err != nil {
		return err
	}
	if product.ShrinkageLotID == 0 {
		return fmt.Errorf("%w: product %s", ErrShrinkageLotMissing, product.Name)
	}
	return s.confirmMove(ctx, stock.Movement{
		Origin:        p.Name,
		ProductID:     productID,
		SrcLocationID: virtualLoc,
		DstLocationID: p.ShrinkageTankLocationID,
		Qty:           mill.RoundVolume(total),
		LotID:         product.ShrinkageLotID,
	})
}

// settleFirstCompensation empties the pool built up by earlier batches. When
// every line sells, everything goes to the compensation-sale tank; otherwise
// the sale share moves there and the rest drains farmer by farmer into the
// withdrawal location, the last one taking whatever remains.
func (s *Service) settleFirstCompensation(ctx context.Context, p Production,
	wh mill.Warehouse, lines []arrival.Line) error {
	allSaleMix := true
	var withdrawalLines []arrival.Line
	for _, l := range lines {
		if l.Destination == mill.DestinationWithdrawal {
			allSaleMix = false
			withdrawalLines = append(withdrawalLines, l)
		}
	}

	if allSaleMix {
		_, err := s.engine.Transfer(ctx, tank.TransferInput{
			SrcLocationID: p.CompensationTankLocationID,
			DstLocationID: wh.CompSaleTankLocationID,
			Mode:          tank.TransferFull,
			WarehouseID:   wh.ID,
			Origin:        p.Name,
			AutoValidate:  true,
		})
		return err
	}

	if p.ToCompSaleTankQty.IsPositive() {
		if _, err := s.engine.Transfer(ctx, tank.TransferInput{
			SrcLocationID: p.CompensationTankLocationID,
			DstLocationID: wh.CompSaleTankLocationID,
			Mode:          tank.TransferPartial,
			WarehouseID:   wh.ID,
			Qty:           p.ToCompSaleTankQty,
			Origin:        p.Name,
			AutoValidate:  true,
		}); err != nil {
			return err
		}
	}
	for i, l := range withdrawalLines {
		in := tank.TransferInput{
			SrcLocationID: p.CompensationTankLocationID,
			DstLocationID: wh.WithdrawalLocationID,
			Mode:          tank.TransferPartial,
			WarehouseID:   wh.ID,
			Qty:           l.CompensationQty,
			DestFarmerID:  l.FarmerID,
			Origin:        p.Name,
			AutoValidate:  true,
		}
		if i == len(withdrawalLines)-1 {
			// Rounding remainders stay in the pool otherwise.
			in.Mode = tank.TransferFull
			in.Qty = decimal.Zero
		}
		if _, err := s.engine.Transfer(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

// Cancel aborts a batch that is not done yet, zeroing the computed figures.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	defer s.lock(id)()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.State == StateDone {
		return fmt.Errorf("%w: %s", ErrAlreadyDone, p.Name)
	}
	p.JuiceQty = decimal.Zero
	p.JuiceQtyKg = decimal.Zero
	p.Ratio = decimal.Zero
	p.ToSaleTankQty = decimal.Zero
	p.ToCompSaleTankQty = decimal.Zero
	p.State = StateCancel
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	return s.recordAudit(ctx, "cancel", p.ID, nil)
}

// BackToDraft reopens a cancelled batch.
func (s *Service) BackToDraft(ctx context.Context, id int64) error {
	defer s.lock(id)()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.State != StateCancel {
		return fmt.Errorf("%w: %s is %s", ErrBadState, p.Name, p.State)
	}
	p.State = StateDraft
	return s.repo.Update(ctx, p)
}

// DetachLines abandons the batch before finalize: lines go back to the open
// pool and the palox lock is restored to the batch's juice type.
func (s *Service) DetachLines(ctx context.Context, id int64) error {
	defer s.lock(id)()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.State == StateDone {
		return fmt.Errorf("%w: %s", ErrAlreadyDone, p.Name)
	}
	lines, err := s.lines.ListLinesByProduction(ctx, p.ID)
	if err != nil {
		return err
	}
	for _, l := range lines {
		l.ProductionID = 0
		l.ProductionState = ""
		if err := s.lines.UpdateLine(ctx, l); err != nil {
			return err
		}
	}
	if p.JuiceProductID != 0 {
		if err := s.paloxes.RestoreJuiceType(ctx, p.PaloxID, p.JuiceProductID); err != nil {
			return err
		}
	}
	p.State = StateDraft
	p.FruitQty = decimal.Zero
	p.ToSaleTankQty = decimal.Zero
	p.ToCompSaleTankQty = decimal.Zero
	p.FarmerList = nil
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	return s.recordAudit(ctx, "detach_lines", p.ID, map[string]any{"lines": len(lines)})
}

func (s *Service) confirmMove(ctx context.Context, m stock.Movement) error {
	id, err := s.store.CreateMovement(ctx, m)
	if err != nil {
		return err
	}
	return s.store.ConfirmMovement(ctx, id)
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "production",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
}
