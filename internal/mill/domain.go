// Package mill holds the per-company mill configuration and the shared
// domain enumerations used across the arrival, palox, production and tank
// packages.
package mill

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Destination tells where the juice of a line or batch goes.
type Destination string

const (
	// DestinationWithdrawal means the farmer takes the juice back.
	DestinationWithdrawal Destination = "withdrawal"
	// DestinationSale means the juice goes to the mill's sale tank.
	DestinationSale Destination = "sale"
	// DestinationMix means part withdrawal, part sale.
	DestinationMix Destination = "mix"
)

// CompensationType selects the cross-batch compensation mode.
type CompensationType string

const (
	CompensationNone  CompensationType = "none"
	CompensationFirst CompensationType = "first"
	CompensationLast  CompensationType = "last"
)

// CultureType is the culture classification of a farmer or juice product.
type CultureType string

const (
	CultureRegular    CultureType = "regular"
	CultureOrganic    CultureType = "organic"
	CultureConversion CultureType = "conversion"
)

// Fixed decimal precisions. Stored values are rounded to these at each
// computation boundary, never deferred to display time.
const (
	WeightPrecision int32 = 2
	VolumePrecision int32 = 2
	RatioPrecision  int32 = 2
)

// RoundWeight rounds a kg quantity to the declared weight precision.
func RoundWeight(d decimal.Decimal) decimal.Decimal { return d.Round(WeightPrecision) }

// RoundVolume rounds a liter quantity to the declared volume precision.
func RoundVolume(d decimal.Decimal) decimal.Decimal { return d.Round(VolumePrecision) }

// RoundRatio rounds a percentage ratio to the declared ratio precision.
func RoundRatio(d decimal.Decimal) decimal.Decimal { return d.Round(RatioPrecision) }

var (
	ErrInvalidDensity = errors.New("mill: juice density must be strictly positive")
	ErrInvalidConfig  = errors.New("mill: invalid configuration")
)

// Config is the per-company mill configuration. It is loaded once and passed
// explicitly into the services that need it.
type Config struct {
	// JuiceDensity is the juice density in kg per liter.
	JuiceDensity decimal.Decimal
	// ShrinkageRatio is the processing loss applied to all output, in percent.
	ShrinkageRatio decimal.Decimal
	// FilterRatio is the loss applied to sale-destined output, in percent.
	FilterRatio decimal.Decimal
	// MinRatio and MaxRatio bound the realistic juice/fruit ratio band.
	MinRatio decimal.Decimal
	MaxRatio decimal.Decimal
	// MaxPaloxWeight is the maximum fruit weight per palox, in kg.
	MaxPaloxWeight decimal.Decimal
	// HarvestArrivalMaxDays is the maximum delay between harvest start and
	// arrival before a warning fires on sale/mix lines.
	HarvestArrivalMaxDays int
}

// DefaultConfig returns the stock mill parameters.
func DefaultConfig() Config {
	return Config{
		JuiceDensity:          decimal.RequireFromString("0.916"),
		ShrinkageRatio:        decimal.RequireFromString("0.4"),
		FilterRatio:           decimal.RequireFromString("1.0"),
		MinRatio:              decimal.NewFromInt(5),
		MaxRatio:              decimal.NewFromInt(35),
		MaxPaloxWeight:        decimal.NewFromInt(500),
		HarvestArrivalMaxDays: 3,
	}
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if !c.JuiceDensity.IsPositive() {
		return ErrInvalidDensity
	}
	if c.ShrinkageRatio.IsNegative() || c.FilterRatio.IsNegative() {
		return errors.New("mill: shrinkage and filter ratios must be positive or null")
	}
	if c.MinRatio.IsNegative() || c.MaxRatio.LessThan(c.MinRatio) {
		return errors.New("mill: realistic ratio band is inverted")
	}
	if !c.MaxPaloxWeight.IsPositive() {
		return errors.New("mill: max palox weight must be strictly positive")
	}
	if c.HarvestArrivalMaxDays < 0 {
		return errors.New("mill: harvest arrival max delay must be positive or null")
	}
	return nil
}

// RatioInBand reports whether a juice ratio lies within the realistic band.
func (c Config) RatioInBand(ratio decimal.Decimal) bool {
	return ratio.GreaterThanOrEqual(c.MinRatio) && ratio.LessThanOrEqual(c.MaxRatio)
}
