package arrival

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pressmill-erp/pressmill-erp/internal/catalog"
	"github.com/pressmill-erp/pressmill-erp/internal/mill"
	"github.com/pressmill-erp/pressmill-erp/internal/palox"
	"github.com/pressmill-erp/pressmill-erp/internal/shared"
	"github.com/pressmill-erp/pressmill-erp/internal/stock"
)

// RepositoryPort abstracts arrival persistence for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Arrival, []Line, error)
	Update(ctx context.Context, a Arrival) error
	UpdateLine(ctx context.Context, l Line) error
	// OpenLines lists the done, not-yet-attached lines held by a palox.
	OpenLines(ctx context.Context, paloxID int64) ([]Line, error)
	Delete(ctx context.Context, id int64) error
	DeleteLine(ctx context.Context, lineID int64) error
}

// FarmerPort resolves and updates farmer accounts.
type FarmerPort interface {
	Farmer(ctx context.Context, id int64) (mill.Farmer, error)
	AdjustLendedCases(ctx context.Context, farmerID int64, regular, organic int) error
}

// PaloxPort is the slice of the palox tracker the ledger needs.
type PaloxPort interface {
	Get(ctx context.Context, id int64) (palox.Palox, error)
	LockJuiceType(ctx context.Context, paloxID, juiceProductID int64) error
	ReturnBorrowed(ctx context.Context, paloxID int64) error
}

// WarehousePort resolves warehouses.
type WarehousePort interface {
	Warehouse(ctx context.Context, id int64) (mill.Warehouse, error)
}

// Service coordinates the arrival lifecycle.
type Service struct {
	repo       RepositoryPort
	farmers    FarmerPort
	paloxes    PaloxPort
	warehouses WarehousePort
	products   catalog.Lookup
	store      stock.Store
	cfg        mill.Config
	audit      shared.AuditPort
	now        func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, farmers FarmerPort, paloxes PaloxPort,
	warehouses WarehousePort, products catalog.Lookup, store stock.Store,
	cfg mill.Config, audit shared.AuditPort) *Service {
	return &Service{
		repo:       repo,
		farmers:    farmers,
		paloxes:    paloxes,
		warehouses: warehouses,
		products:   products,
		store:      store,
		cfg:        cfg,
		audit:      audit,
		now:        time.Now,
	}
}

// Get loads an arrival with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Arrival, []Line, error) {
	return s.repo.Get(ctx, id)
}

// CheckArrival runs the per-line validation pass. Hard failures abort with an
// error; non-fatal issues come back as warnings for the operator to confirm.
func (s *Service) CheckArrival(ctx context.Context, a Arrival, lines []Line) (shared.Warnings, error) {
	var warnings shared.Warnings

	if !a.HarvestStartDate.IsZero() && a.HarvestStartDate.After(a.Date) {
		return nil, ErrHarvestAfterDate
	}
	farmer, err := s.farmers.Farmer(ctx, a.FarmerID)
	if err != nil {
		return nil, err
	}
	if a.ReturnedRegularCases < 0 || a.ReturnedOrganicCases < 0 {
		return nil, ErrNegativeQty
	}
	if a.ReturnedRegularCases > farmer.LendedRegularCases ||
		a.ReturnedOrganicCases > farmer.LendedOrganicCases {
		return nil, fmt.Errorf("%w: farmer %s has %d regular and %d organic cases out",
			ErrCaseOverReturn, farmer.Name, farmer.LendedRegularCases, farmer.LendedOrganicCases)
	}
	wh, err := s.warehouses.Warehouse(ctx, a.WarehouseID)
	if err != nil {
		return nil, err
	}

	harvestDelayed := !a.HarvestStartDate.IsZero() &&
		a.Date.Sub(a.HarvestStartDate) > time.Duration(s.cfg.HarvestArrivalMaxDays)*24*time.Hour

	// Lines of this same arrival landing in one palox count against its
	// capacity together.
	incoming := map[int64]decimal.Decimal{}

	for _, line := range lines {
		if line.State == LineCancel {
			continue
		}
		if !line.FruitQty.IsPositive() {
			return nil, fmt.Errorf("%w: line %s", ErrZeroFruitQty, line.Name)
		}
		product, err := s.products.Product(ctx, line.JuiceProductID)
		if err != nil {
			return nil, err
		}
		if product.CultureType != farmer.CultureType {
			return nil, fmt.Errorf("%w: product %s is %s, farmer %s is %s",
				ErrCultureMismatch, product.Name, product.CultureType, farmer.Name, farmer.CultureType)
		}
		if line.Destination == mill.DestinationMix && !line.MixWithdrawalQty.IsPositive() {
			return nil, fmt.Errorf("%w: line %s", ErrMixWithoutQty, line.Name)
		}

		box, err := s.paloxes.Get(ctx, line.PaloxID)
		if err != nil {
			return nil, err
		}
		if box.JuiceProductID != 0 && box.JuiceProductID != line.JuiceProductID {
			return nil, fmt.Errorf("%w: palox %s", palox.ErrJuiceTypeLocked, box.Name)
		}
		open, err := s.repo.OpenLines(ctx, line.PaloxID)
		if err != nil {
			return nil, err
		}
		held := incoming[line.PaloxID]
		for _, o := range open {
			held = held.Add(o.FruitQty)
		}
		if held.Add(line.FruitQty).GreaterThan(s.cfg.MaxPaloxWeight) {
			return nil, fmt.Errorf("%w: palox %s holds %s kg, delivery adds %s kg, maximum %s kg",
				ErrPaloxOverweight, box.Name, held, line.FruitQty, s.cfg.MaxPaloxWeight)
		}
		incoming[line.PaloxID] = incoming[line.PaloxID].Add(line.FruitQty)

		if line.Destination == mill.DestinationMix && wh.CompensationRatio.IsPositive() {
			expected := line.FruitQty.Mul(wh.CompensationRatio).Div(decimal.NewFromInt(100))
			if line.MixWithdrawalQty.GreaterThan(expected) {
				warnings.Add(WarnMixExceedsRatio, fmt.Sprintf(
					"line %s requests %s L withdrawal, above the expected %s L at the average ratio",
					line.Name, line.MixWithdrawalQty, mill.RoundVolume(expected)))
			}
		}
		for _, o := range open {
			if o.VariantID != line.VariantID {
				warnings.Add(WarnVariantMismatch, fmt.Sprintf(
					"palox %s already holds a different fruit variant", box.Name))
				break
			}
		}
		for _, o := range open {
			if o.Destination != line.Destination {
				warnings.Add(WarnDestinationMismatch, fmt.Sprintf(
					"palox %s already holds fruit with destination %s", box.Name, o.Destination))
				break
			}
		}
		if harvestDelayed &&
			(line.Destination == mill.DestinationSale || line.Destination == mill.DestinationMix) {
			warnings.Add(WarnHarvestDelayExceeded, fmt.Sprintf(
				"line %s: more than %d days between harvest start and arrival",
				line.Name, s.cfg.HarvestArrivalMaxDays))
		}
	}
	return warnings, nil
}

// Weighted moves a draft arrival to weighted once the scale figures are in.
// The checks run again but only hard failures block; warnings are returned.
func (s *Service) Weighted(ctx context.Context, id int64) (shared.Warnings, error) {
	a, lines, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.State != StateDraft {
		return nil, fmt.Errorf("%w: %s is %s", ErrBadState, a.Name, a.State)
	}
	warnings, err := s.CheckArrival(ctx, a, lines)
	if err != nil {
		return nil, err
	}
	a.State = StateWeighted
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return warnings, s.recordAudit(ctx, "weighted", a.ID, nil)
}

// Validate transitions draft|weighted to done: re-runs the checks, numbers
// the lines, books the returned lended cases, returns borrowed paloxes,
// locks each palox to its line's juice type, and marks every line done.
// Warnings abort the transition unless bypassWarnings is set.
func (s *Service) Validate(ctx context.Context, id int64, bypassWarnings bool) error {
	a, lines, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.State != StateDraft && a.State != StateWeighted {
		return fmt.Errorf("%w: %s is %s", ErrBadState, a.Name, a.State)
	}
	active := activeLines(lines)
	if len(active) == 0 {
		return fmt.Errorf("%w: %s", ErrNoLines, a.Name)
	}
	warnings, err := s.CheckArrival(ctx, a, lines)
	if err != nil {
		return err
	}
	if !warnings.Empty() {
		if !bypassWarnings {
			return &shared.WarningsError{Warnings: warnings}
		}
		if err := s.recordAudit(ctx, "bypass_warnings", a.ID,
			map[string]any{"warnings": warnings.Messages()}); err != nil {
			return err
		}
	}

	for i, line := range active {
		line.Name = fmt.Sprintf("%s/%d", a.Name, i+1)
		line.State = LineDone
		for _, extra := range line.Extras {
			if extra.Type == ExtraAnalysis {
				line.NeedsAnalysis = true
				break
			}
		}
		if err := s.paloxes.LockJuiceType(ctx, line.PaloxID, line.JuiceProductID); err != nil {
			return err
		}
		if err := s.repo.UpdateLine(ctx, line); err != nil {
			return err
		}
	}

	if err := s.bookReturnedCases(ctx, a); err != nil {
		return err
	}
	if err := s.returnBorrowedPaloxes(ctx, a, active); err != nil {
		return err
	}

	done := s.now()
	a.State = StateDone
	a.DoneAt = &done
	if err := s.repo.Update(ctx, a); err != nil {
		return err
	}
	return s.recordAudit(ctx, "validate", a.ID, map[string]any{"lines": len(active)})
}

// bookReturnedCases decrements the farmer's lended counters and posts the
// case stock back into the warehouse when a case location is configured.
func (s *Service) bookReturnedCases(ctx context.Context, a Arrival) error {
	if a.ReturnedRegularCases == 0 && a.ReturnedOrganicCases == 0 {
		return nil
	}
	if err := s.farmers.AdjustLendedCases(ctx, a.FarmerID,
		-a.ReturnedRegularCases, -a.ReturnedOrganicCases); err != nil {
		return err
	}
	wh, err := s.warehouses.Warehouse(ctx, a.WarehouseID)
	if err != nil {
		return err
	}
	if wh.CaseLocationID == 0 {
		return nil
	}
	for _, c := range []struct {
		productID int64
		qty       int
	}{
		{wh.RegularCaseProductID, a.ReturnedRegularCases},
		{wh.OrganicCaseProductID, a.ReturnedOrganicCases},
	} {
		if c.productID == 0 || c.qty == 0 {
			continue
		}
		id, err := s.store.CreateMovement(ctx, stock.Movement{
			Origin:        a.Name,
			ProductID:     c.productID,
			SrcLocationID: -a.FarmerID,
			DstLocationID: wh.CaseLocationID,
			Qty:           decimal.NewFromInt(int64(c.qty)),
		})
		if err != nil {
			return err
		}
		if err := s.store.ConfirmMovement(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// returnBorrowedPaloxes closes the loan on every borrowed palox the delivery
// touches, plus the ones explicitly listed as handed back.
func (s *Service) returnBorrowedPaloxes(ctx context.Context, a Arrival, lines []Line) error {
	seen := map[int64]bool{}
	candidates := a.ReturnedPaloxIDs
	for _, line := range lines {
		candidates = append(candidates, line.PaloxID)
	}
	for _, paloxID := range candidates {
		if seen[paloxID] {
			continue
		}
		seen[paloxID] = true
		box, err := s.paloxes.Get(ctx, paloxID)
		if err != nil {
			return err
		}
		if box.BorrowerID != a.FarmerID {
			continue
		}
		if err := s.paloxes.ReturnBorrowed(ctx, paloxID); err != nil {
			return err
		}
	}
	return nil
}

// Cancel cancels the arrival's unattached lines. It fails when every line
// already belongs to a production.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	a, lines, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	free := 0
	for _, line := range lines {
		if !line.Attached() {
			free++
		}
	}
	if free == 0 && len(lines) > 0 {
		return fmt.Errorf("%w: %s", ErrAllLinesAttached, a.Name)
	}
	for _, line := range lines {
		if line.Attached() || line.State == LineCancel {
			continue
		}
		line.State = LineCancel
		if err := s.repo.UpdateLine(ctx, line); err != nil {
			return err
		}
	}
	a.State = StateCancel
	if err := s.repo.Update(ctx, a); err != nil {
		return err
	}
	return s.recordAudit(ctx, "cancel", a.ID, nil)
}

// BackToDraft reopens a cancelled arrival and its cancelled lines.
func (s *Service) BackToDraft(ctx context.Context, id int64) error {
	a, lines, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.State != StateCancel {
		return fmt.Errorf("%w: %s is %s", ErrBadState, a.Name, a.State)
	}
	for _, line := range lines {
		if line.State != LineCancel {
			continue
		}
		line.State = LineDraft
		if err := s.repo.UpdateLine(ctx, line); err != nil {
			return err
		}
	}
	a.State = StateDraft
	a.DoneAt = nil
	if err := s.repo.Update(ctx, a); err != nil {
		return err
	}
	return s.recordAudit(ctx, "back_to_draft", a.ID, nil)
}

// Unlink deletes the arrival. Any attached, weighed or done line blocks it.
func (s *Service) Unlink(ctx context.Context, id int64) error {
	_, lines, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if err := deletableLine(line); err != nil {
			return err
		}
	}
	return s.repo.Delete(ctx, id)
}

// UnlinkLine deletes one line under the same guards.
func (s *Service) UnlinkLine(ctx context.Context, arrivalID, lineID int64) error {
	_, lines, err := s.repo.Get(ctx, arrivalID)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if line.ID != lineID {
			continue
		}
		if err := deletableLine(line); err != nil {
			return err
		}
		return s.repo.DeleteLine(ctx, lineID)
	}
	return ErrNotFound
}

func deletableLine(l Line) error {
	if l.Attached() {
		return fmt.Errorf("%w: line %s", ErrLineAttached, l.Name)
	}
	if !l.FruitQty.IsZero() {
		return fmt.Errorf("%w: line %s", ErrLineHasFruit, l.Name)
	}
	if l.State == LineDone {
		return fmt.Errorf("%w: line %s", ErrLineDone, l.Name)
	}
	return nil
}

// RecomputeRollups refreshes the arrival's pressed-weight and net-juice
// figures from its lines whose batch has finished. Called when a production
// finalizes.
func (s *Service) RecomputeRollups(ctx context.Context, id int64) error {
	a, lines, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	pressed, juiceNet := decimal.Zero, decimal.Zero
	for _, line := range lines {
		if line.State != LineDone || line.ProductionState != "done" {
			continue
		}
		pressed = pressed.Add(line.FruitQty)
		juiceNet = juiceNet.Add(line.JuiceQtyNet)
	}
	a.PressedQty = mill.RoundWeight(pressed)
	a.JuiceQtyNet = mill.RoundVolume(juiceNet)
	if pressed.IsPositive() {
		a.JuiceRatioNet = mill.RoundRatio(decimal.NewFromInt(100).Mul(juiceNet).Div(pressed))
	} else {
		a.JuiceRatioNet = decimal.Zero
	}
	return s.repo.Update(ctx, a)
}

func activeLines(lines []Line) []Line {
	var out []Line
	for _, line := range lines {
		if line.State != LineCancel {
			out = append(out, line)
		}
	}
	return out
}

func (s *Service) recordAudit(ctx context.Context, action string, arrivalID int64, meta map[string]any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "arrival",
		EntityID: strconv.FormatInt(arrivalID, 10),
		Meta:     meta,
		At:       s.now(),
	})
}
