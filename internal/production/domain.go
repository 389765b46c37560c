// Package production drives a pressing batch from attached delivery lines to
// finalized stock movements: the state machine, the quantity allocator and
// the compensation mechanism live here.
package production

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pressmill-erp/pressmill-erp/internal/mill"
)

// State is the batch lifecycle. Transitions only move forward, except cancel
// and its way back to draft.
type State string

const (
	StateDraft  State = "draft"
	StateRatio  State = "ratio"
	StateForce  State = "force"
	StatePack   State = "pack"
	StateCheck  State = "check"
	StateDone   State = "done"
	StateCancel State = "cancel"
)

// Production is one pressing run over the contents of a single palox.
type Production struct {
	ID             int64
	Name           string
	SeasonID       int64
	WarehouseID    int64
	PaloxID        int64
	Date           time.Time
	State          State
	JuiceProductID int64
	Destination    mill.Destination

	// FruitQty is the sum of attached-line fruit weights, in kg.
	FruitQty decimal.Decimal
	// JuiceQtyKg is the measured raw output in kg; JuiceQty its volume in
	// liters through the configured density.
	JuiceQtyKg decimal.Decimal
	JuiceQty   decimal.Decimal
	// Ratio is the gross juice ratio in percent entered with the measured
	// output.
	Ratio decimal.Decimal

	CompensationType mill.CompensationType
	// CompensationQty is always non-negative. For last it is the volume
	// pulled from the compensation pool into this batch; for first it is the
	// pool volume found in the tank, to be redistributed at finalize.
	CompensationQty            decimal.Decimal
	CompensationLastFruitQty   decimal.Decimal
	CompensationRatio          decimal.Decimal
	CompensationTankLocationID int64
	// CompensationProductID is the juice product found in the tank when the
	// first-mode pre-check ran.
	CompensationProductID int64

	// Aggregates recomputed at distribute time.
	ToSaleTankQty     decimal.Decimal
	ToCompSaleTankQty decimal.Decimal

	ShrinkageTankLocationID int64
	FarmerList              []string
	NeedsAnalysis           bool
	LotID                   int64
	DoneAt                  *time.Time
}

var (
	ErrNotFound            = errors.New("production: not found")
	ErrBadState            = errors.New("production: operation not allowed in this state")
	ErrPaloxEmpty          = errors.New("production: palox has no validated lines")
	ErrDraftLinesOnPalox   = errors.New("production: palox still has draft lines, validate the arrival first")
	ErrMixedJuiceTypes     = errors.New("production: attached lines carry different juice types")
	ErrMixedSeasons        = errors.New("production: attached lines span different seasons")
	ErrLineWithoutFruit    = errors.New("production: attached line has no fruit weight")
	ErrCompTankUnset       = errors.New("production: no compensation tank configured")
	ErrCompTankNotEmpty    = errors.New("production: compensation tank must be empty")
	ErrCompTankEmpty       = errors.New("production: compensation tank must not be empty")
	ErrCompQtyNotPositive  = errors.New("production: compensation quantity must be strictly positive")
	ErrRatioOutOfBand      = errors.New("production: juice ratio outside the realistic band")
	ErrForcedExceedsTotal  = errors.New("production: forced ratio allocates more juice than the batch holds")
	ErrForcedLineUnknown   = errors.New("production: forced line is not attached to this batch")
	ErrNoJuiceQty          = errors.New("production: no measured juice quantity")
	ErrSaleTankUnset       = errors.New("production: no sale tank configured")
	ErrShrinkageTankUnset  = errors.New("production: no shrinkage tank configured")
	ErrShrinkageLotMissing = errors.New("production: shrinkage tank product has no generic shrinkage lot")
	ErrTrackedExtra        = errors.New("production: lot-tracked extras cannot be handed out at withdrawal")
	ErrAlreadyDone         = errors.New("production: batch is already done")
)

// ComputeDestination folds the line destinations into the batch destination.
func ComputeDestination(dests []mill.Destination) mill.Destination {
	if len(dests) == 0 {
		return ""
	}
	allSale, allWithdrawal := true, true
	for _, d := range dests {
		if d != mill.DestinationSale {
			allSale = false
		}
		if d != mill.DestinationWithdrawal {
			allWithdrawal = false
		}
	}
	switch {
	case allSale:
		return mill.DestinationSale
	case allWithdrawal:
		return mill.DestinationWithdrawal
	default:
		return mill.DestinationMix
	}
}
