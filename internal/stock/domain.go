// Package stock provides the movement and location-quantity primitives
// consumed by the tank transfer engine and the production finalize step.
package stock

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MovementState is the lifecycle of a stock movement.
type MovementState string

const (
	MovementDraft MovementState = "draft"
	MovementDone  MovementState = "done"
)

// Movement records one product quantity moved between two locations.
type Movement struct {
	ID            int64
	Ref           string
	Origin        string
	ProductID     int64
	SrcLocationID int64
	DstLocationID int64
	Qty           decimal.Decimal
	LotID         int64
	OwnerID       int64
	State         MovementState
	PostedAt      time.Time
}

// Quant is the quantity of one product held at a location, split by lot and
// owner tag.
type Quant struct {
	LocationID int64
	ProductID  int64
	LotID      int64
	OwnerID    int64
	Qty        decimal.Decimal
	Reserved   bool
}

// Lot identifies a production lot.
type Lot struct {
	ID            int64
	Name          string
	ProductID     int64
	ProductionRef string
}

var (
	ErrInvalidQuantity  = errors.New("stock: quantity must be strictly positive")
	ErrInsufficientQty  = errors.New("stock: insufficient quantity at source location")
	ErrMovementNotDraft = errors.New("stock: movement is not in draft state")
	ErrReservedQuant    = errors.New("stock: reserved quantity at source location")
)

// Store is the persistence contract for movements, quants and lots.
type Store interface {
	CreateLot(ctx context.Context, lot Lot) (int64, error)
	CreateMovement(ctx context.Context, m Movement) (int64, error)
	ConfirmMovement(ctx context.Context, id int64) error
	QuantsAt(ctx context.Context, locationID int64) ([]Quant, error)
	QuantityAt(ctx context.Context, locationID int64) (decimal.Decimal, error)
}
