// Package uom converts juice quantities between kilograms and liters through
// the configured juice density.
package uom

import (
	"github.com/shopspring/decimal"

	"github.com/pressmill-erp/pressmill-erp/internal/mill"
)

// KgToLiter converts a kg quantity to liters. The density must be strictly
// positive; the check runs before any division.
func KgToLiter(kg, density decimal.Decimal) (decimal.Decimal, error) {
	if !density.IsPositive() {
		return decimal.Zero, mill.ErrInvalidDensity
	}
	return mill.RoundVolume(kg.Div(density)), nil
}

// LiterToKg converts a liter quantity to kg.
func LiterToKg(liters, density decimal.Decimal) (decimal.Decimal, error) {
	if !density.IsPositive() {
		return decimal.Zero, mill.ErrInvalidDensity
	}
	return mill.RoundWeight(liters.Mul(density)), nil
}
