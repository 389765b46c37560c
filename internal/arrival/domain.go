// Package arrival is the delivery ledger: farmers bring fruit in paloxes,
// each delivery is recorded as an arrival with one line per palox, and a
// validated line becomes immutable input for a pressing batch.
package arrival

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pressmill-erp/pressmill-erp/internal/mill"
)

// State is the arrival lifecycle.
type State string

const (
	StateDraft    State = "draft"
	StateWeighted State = "weighted"
	StateDone     State = "done"
	StateCancel   State = "cancel"
)

// LineState is the per-line lifecycle. A line can be cancelled on its own
// while the arrival stays open.
type LineState string

const (
	LineDraft  LineState = "draft"
	LineDone   LineState = "done"
	LineCancel LineState = "cancel"
)

// Arrival is one delivery event of a farmer at a warehouse.
type Arrival struct {
	ID               int64
	Name             string
	FarmerID         int64
	WarehouseID      int64
	SeasonID         int64
	Date             time.Time
	HarvestStartDate time.Time
	State            State
	// ReturnedRegularCases and ReturnedOrganicCases are small harvest cases
	// the farmer brings back with this delivery.
	ReturnedRegularCases int
	ReturnedOrganicCases int
	// ReturnedPaloxIDs are borrowed paloxes handed back alongside the
	// delivery, on top of the ones used on the lines.
	ReturnedPaloxIDs []int64
	DoneAt           *time.Time

	// Rollups recomputed when a production over the lines finalizes.
	PressedQty    decimal.Decimal
	JuiceQtyNet   decimal.Decimal
	JuiceRatioNet decimal.Decimal
}

// Line is one palox worth of fruit inside an arrival.
type Line struct {
	ID             int64
	ArrivalID      int64
	Name           string
	State          LineState
	PaloxID        int64
	VariantID      int64
	JuiceProductID int64
	Destination    mill.Destination
	FruitQty       decimal.Decimal
	// MixWithdrawalQty is the requested withdrawal volume in liters, only
	// meaningful for mix lines.
	MixWithdrawalQty decimal.Decimal
	ProductionID     int64
	NeedsAnalysis    bool
	Extras           []LineExtra

	// FarmerID, FarmerName and SeasonID come from the parent arrival; they
	// are loaded with the line and never written through it.
	FarmerID   int64
	FarmerName string
	SeasonID   int64

	// Allocation outputs, written by the distribute step of the batch.
	JuiceQty        decimal.Decimal
	ShrinkageQty    decimal.Decimal
	FilterLossQty   decimal.Decimal
	WithdrawalQty   decimal.Decimal
	SaleQty         decimal.Decimal
	ToSaleTankQty   decimal.Decimal
	CompensationQty decimal.Decimal
	JuiceQtyNet     decimal.Decimal
	JuiceRatioNet   decimal.Decimal
	ProductionState string
}

// ExtraType classifies an ancillary item requested on a line.
type ExtraType string

const (
	ExtraBottle   ExtraType = "bottle"
	ExtraAnalysis ExtraType = "analysis"
	ExtraService  ExtraType = "extra_service"
)

// LineExtra is an ancillary item (bottles, analysis consumables) handed to
// the farmer at withdrawal time.
type LineExtra struct {
	ID        int64
	LineID    int64
	ProductID int64
	Qty       decimal.Decimal
	Type      ExtraType
	// Fillup bottles are filled from the line's own juice instead of sold.
	Fillup bool
}

// Attached reports whether the line already belongs to a batch.
func (l Line) Attached() bool { return l.ProductionID != 0 }

var (
	ErrNotFound         = errors.New("arrival: not found")
	ErrNoLines          = errors.New("arrival: arrival has no lines")
	ErrBadState         = errors.New("arrival: operation not allowed in this state")
	ErrZeroFruitQty     = errors.New("arrival: fruit weight is zero")
	ErrCultureMismatch  = errors.New("arrival: juice product culture does not match the farmer")
	ErrMixWithoutQty    = errors.New("arrival: mix line requires a positive requested withdrawal quantity")
	ErrPaloxOverweight  = errors.New("arrival: palox would exceed the maximum container weight")
	ErrHarvestAfterDate = errors.New("arrival: harvest start date is after the arrival date")
	ErrCaseOverReturn   = errors.New("arrival: returned cases exceed the farmer's lended cases")
	ErrLineAttached     = errors.New("arrival: line is attached to a production")
	ErrLineHasFruit     = errors.New("arrival: line has a non-zero fruit weight")
	ErrLineDone         = errors.New("arrival: line is already done")
	ErrAllLinesAttached = errors.New("arrival: every line is attached to a production")
	ErrNegativeQty      = errors.New("arrival: quantity must not be negative")
)

// Warning codes raised by CheckArrival.
const (
	WarnMixExceedsRatio      = "mix_exceeds_ratio"
	WarnVariantMismatch      = "palox_variant_mismatch"
	WarnDestinationMismatch  = "palox_destination_mismatch"
	WarnHarvestDelayExceeded = "harvest_delay_exceeded"
)
