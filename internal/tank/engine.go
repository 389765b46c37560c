package tank

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/pressmill-erp/pressmill-erp/internal/shared"
	"github.com/pressmill-erp/pressmill-erp/internal/stock"
)

// Engine moves juice between tanks through stock movements. The
// check-then-transfer sequence is serialized per source tank.
type Engine struct {
	tanks Repository
	store stock.Store
	locks *shared.KeyedMutex
}

// NewEngine builds Engine.
func NewEngine(tanks Repository, store stock.Store) *Engine {
	return &Engine{tanks: tanks, store: store, locks: shared.NewKeyedMutex()}
}

func (e *Engine) lock(locationID int64) func() {
	return e.locks.Lock(strconv.FormatInt(shared.TankLockKey(locationID), 10))
}

// TransferInput describes one tank transfer.
type TransferInput struct {
	SrcLocationID int64
	DstLocationID int64
	Mode          TransferMode
	WarehouseID   int64
	// Qty is the exact volume for partial transfers, in liters.
	Qty decimal.Decimal
	// DestFarmerID re-tags moved quantities to this owner when set.
	DestFarmerID int64
	Origin       string
	AutoValidate bool
}

// Check verifies the tank invariants and returns the held quants: a tank
// holds at most one product, which must match its binding.
func (e *Engine) Check(ctx context.Context, t Tank, raiseIfEmpty bool) ([]stock.Quant, error) {
	if !t.IsTank() {
		return nil, fmt.Errorf("%w: location %s", ErrNotATank, t.Name)
	}
	quants, err := e.store.QuantsAt(ctx, t.LocationID)
	if err != nil {
		return nil, err
	}
	if len(quants) == 0 {
		if raiseIfEmpty {
			return nil, fmt.Errorf("%w: %s", ErrTankEmpty, t.Name)
		}
		return nil, nil
	}
	productID := quants[0].ProductID
	for _, q := range quants {
		if q.Qty.IsNegative() {
			return nil, fmt.Errorf("%w: %s", ErrNegativeQuant, t.Name)
		}
		if q.ProductID != productID {
			return nil, fmt.Errorf("%w: %s", ErrMixedProducts, t.Name)
		}
	}
	if t.JuiceProductID == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProductNotBound, t.Name)
	}
	if productID != t.JuiceProductID {
		return nil, fmt.Errorf("%w: tank %s holds product %d but is bound to %d",
			ErrProductMismatch, t.Name, productID, t.JuiceProductID)
	}
	return quants, nil
}

// CompatibilityCheck verifies that a destination tank accepts a product and
// season.
func (e *Engine) CompatibilityCheck(t Tank, juiceProductID, seasonID int64) error {
	if !t.IsTank() {
		return fmt.Errorf("%w: location %s", ErrNotATank, t.Name)
	}
	if t.JuiceProductID == 0 {
		return fmt.Errorf("%w: %s", ErrProductNotBound, t.Name)
	}
	if t.JuiceProductID != juiceProductID {
		return fmt.Errorf("%w: tank %s is bound to product %d, working with %d",
			ErrProductMismatch, t.Name, t.JuiceProductID, juiceProductID)
	}
	if t.SeasonID == 0 {
		return fmt.Errorf("%w: no season bound on %s", ErrSeasonMismatch, t.Name)
	}
	if t.SeasonID != seasonID {
		return fmt.Errorf("%w: tank %s is bound to season %d, working with %d",
			ErrSeasonMismatch, t.Name, t.SeasonID, seasonID)
	}
	return nil
}

// Quantity sums the volume currently held by a location.
func (e *Engine) Quantity(ctx context.Context, locationID int64) (decimal.Decimal, error) {
	return e.store.QuantityAt(ctx, locationID)
}

// Transfer moves juice from one tank to a destination location. Full mode
// drains the source preserving lot and owner tags (one movement per held
// lot/owner bucket); partial mode moves exactly the requested volume. The
// destination tank's product binds on first use and must match afterwards.
func (e *Engine) Transfer(ctx context.Context, in TransferInput) ([]int64, error) {
	defer e.lock(in.SrcLocationID)()

	src, err := e.tanks.Get(ctx, in.SrcLocationID)
	if err != nil {
		return nil, err
	}
	quants, err := e.Check(ctx, src, true)
	if err != nil {
		return nil, err
	}

	dst, err := e.tanks.Get(ctx, in.DstLocationID)
	if err != nil {
		return nil, err
	}
	if dst.IsTank() {
		if _, err := e.Check(ctx, dst, false); err != nil {
			return nil, err
		}
		if dst.JuiceProductID == 0 {
			dst.JuiceProductID = src.JuiceProductID
			if err := e.tanks.Update(ctx, dst); err != nil {
				return nil, err
			}
		} else if dst.JuiceProductID != src.JuiceProductID {
			return nil, fmt.Errorf("%w: source %s holds %d, destination %s is bound to %d",
				ErrProductMismatch, src.Name, src.JuiceProductID, dst.Name, dst.JuiceProductID)
		}
		if src.SeasonID != 0 {
			if dst.SeasonID == 0 {
				dst.SeasonID = src.SeasonID
				if err := e.tanks.Update(ctx, dst); err != nil {
					return nil, err
				}
			} else if dst.SeasonID != src.SeasonID {
				return nil, fmt.Errorf("%w: source %s season %d, destination %s season %d",
					ErrSeasonMismatch, src.Name, src.SeasonID, dst.Name, dst.SeasonID)
			}
		}
	}

	switch in.Mode {
	case TransferFull:
		return e.transferFull(ctx, in, src, quants)
	case TransferPartial:
		return e.transferPartial(ctx, in, src, quants)
	default:
		return nil, fmt.Errorf("tank: unknown transfer mode %q", in.Mode)
	}
}

func (e *Engine) transferFull(ctx context.Context, in TransferInput, src Tank, quants []stock.Quant) ([]int64, error) {
	var ids []int64
	for _, q := range quants {
		if q.Reserved {
			return nil, fmt.Errorf("%w: %s", ErrReservedQuantity, src.Name)
		}
		owner := q.OwnerID
		if in.DestFarmerID != 0 {
			owner = in.DestFarmerID
		}
		id, err := e.createMove(ctx, in, src, q.Qty, q.LotID, owner)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (e *Engine) transferPartial(ctx context.Context, in TransferInput, src Tank, quants []stock.Quant) ([]int64, error) {
	if !in.Qty.IsPositive() {
		return nil, ErrInvalidPartialQty
	}
	available := decimal.Zero
	for _, q := range quants {
		available = available.Add(q.Qty)
	}
	if available.LessThan(in.Qty) {
		return nil, fmt.Errorf("%w: %s holds %s L, requested %s L",
			stock.ErrInsufficientQty, src.Name, available, in.Qty)
	}
	var lotID int64
	if len(quants) > 0 {
		lotID = quants[0].LotID
	}
	id, err := e.createMove(ctx, in, src, in.Qty, lotID, in.DestFarmerID)
	if err != nil {
		return nil, err
	}
	return []int64{id}, nil
}

func (e *Engine) createMove(ctx context.Context, in TransferInput, src Tank, qty decimal.Decimal, lotID, ownerID int64) (int64, error) {
	id, err := e.store.CreateMovement(ctx, stock.Movement{
		Origin:        in.Origin,
		ProductID:     src.JuiceProductID,
		SrcLocationID: src.LocationID,
		DstLocationID: in.DstLocationID,
		Qty:           qty,
		LotID:         lotID,
		OwnerID:       ownerID,
	})
	if err != nil {
		return 0, err
	}
	if in.AutoValidate {
		if err := e.store.ConfirmMovement(ctx, id); err != nil {
			return 0, err
		}
	}
	return id, nil
}
