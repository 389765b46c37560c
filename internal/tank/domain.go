// Package tank models the named juice storage locations and the transfer
// engine that moves measured volumes between them.
package tank

import (
	"context"
	"errors"
)

// Type classifies a tank location.
type Type string

const (
	TypeRegular      Type = "regular"
	TypeCompensation Type = "compensation"
	TypeShrinkage    Type = "shrinkage"
)

// Tank is a stock location bound to at most one juice product and season at
// a time. Its held quantity must stay non-negative and homogeneous.
type Tank struct {
	LocationID     int64
	Name           string
	Type           Type
	JuiceProductID int64
	SeasonID       int64
}

// IsTank reports whether the location is a juice tank at all.
func (t Tank) IsTank() bool { return t.Type != "" }

// TransferMode selects between moving everything and an exact quantity.
type TransferMode string

const (
	TransferFull    TransferMode = "full"
	TransferPartial TransferMode = "partial"
)

var (
	ErrNotATank          = errors.New("tank: location is not a juice tank")
	ErrTankEmpty         = errors.New("tank: tank is empty")
	ErrMixedProducts     = errors.New("tank: several different products in tank")
	ErrProductNotBound   = errors.New("tank: juice product not configured on tank")
	ErrProductMismatch   = errors.New("tank: juice product mismatch")
	ErrSeasonMismatch    = errors.New("tank: season mismatch")
	ErrReservedQuantity  = errors.New("tank: reserved quantity on tank")
	ErrInvalidPartialQty = errors.New("tank: partial transfer quantity must be strictly positive")
	ErrNegativeQuant     = errors.New("tank: negative quantity on tank")
)

// Repository persists tank bindings.
type Repository interface {
	Get(ctx context.Context, locationID int64) (Tank, error)
	Update(ctx context.Context, t Tank) error
}
