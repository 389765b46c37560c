package production

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pressmill-erp/pressmill-erp/internal/arrival"
	"github.com/pressmill-erp/pressmill-erp/internal/mill"
)

var hundred = decimal.NewFromInt(100)

// AllocationInput is one distribution run over a batch's attached lines.
type AllocationInput struct {
	Lines []arrival.Line
	// TotalJuice is the measured gross output in liters.
	TotalJuice       decimal.Decimal
	CompensationType mill.CompensationType
	// CompensationQty is non-negative; its meaning follows the mode.
	CompensationQty decimal.Decimal
	// ForcedLineID pins one line to ForcedRatio (percent). Zero means no
	// forcing.
	ForcedLineID int64
	ForcedRatio  decimal.Decimal
	Config       mill.Config
}

// Distribute splits the batch output across the attached lines and computes
// every per-line quantity. No line is mutated when it returns an error.
//
// The reference-line-first scheme is deliberate: the first line (or the
// forced one) takes its straight pro-rata share, every other line splits
// what remains. Forcing one line therefore never changes how the rest are
// computed relative to each other.
func Distribute(in AllocationInput) ([]arrival.Line, error) {
	if err := in.Config.Validate(); err != nil {
		return nil, err
	}
	if len(in.Lines) == 0 {
		return nil, ErrPaloxEmpty
	}

	totalFruit := decimal.Zero
	for _, l := range in.Lines {
		if !l.FruitQty.IsPositive() {
			return nil, fmt.Errorf("%w: line %s", ErrLineWithoutFruit, l.Name)
		}
		totalFruit = totalFruit.Add(l.FruitQty)
	}

	// For last-mode compensation the pool share leaves the batch before
	// anything is distributed to the lines.
	distributable := in.TotalJuice
	if in.CompensationType == mill.CompensationLast {
		distributable = distributable.Sub(in.CompensationQty)
	}
	if !distributable.IsPositive() {
		return nil, ErrNoJuiceQty
	}

	refIdx := 0
	refJuice := decimal.Zero
	if in.ForcedLineID != 0 {
		found := false
		for i, l := range in.Lines {
			if l.ID == in.ForcedLineID {
				refIdx, found = i, true
				break
			}
		}
		if !found {
			return nil, ErrForcedLineUnknown
		}
		if !in.Config.RatioInBand(in.ForcedRatio) {
			return nil, fmt.Errorf("%w: forced ratio %s, band [%s, %s]",
				ErrRatioOutOfBand, in.ForcedRatio, in.Config.MinRatio, in.Config.MaxRatio)
		}
		refJuice = mill.RoundVolume(in.Lines[refIdx].FruitQty.Mul(in.ForcedRatio).Div(hundred))
		if refJuice.GreaterThan(distributable) {
			return nil, fmt.Errorf("%w: forced volume %s L, batch holds %s L",
				ErrForcedExceedsTotal, refJuice, distributable)
		}
	} else {
		refJuice = mill.RoundVolume(in.Lines[refIdx].FruitQty.Mul(distributable).Div(totalFruit))
	}

	remainingJuice := distributable.Sub(refJuice)
	remainingFruit := totalFruit.Sub(in.Lines[refIdx].FruitQty)

	out := make([]arrival.Line, len(in.Lines))
	for i, l := range in.Lines {
		var juice decimal.Decimal
		if i == refIdx {
			juice = refJuice
		} else {
			juice = mill.RoundVolume(l.FruitQty.Mul(remainingJuice).Div(remainingFruit))
		}
		comp := decimal.Zero
		if in.CompensationQty.IsPositive() && distributable.IsPositive() {
			comp = mill.RoundVolume(in.CompensationQty.Mul(juice).Div(distributable))
		}
		line, err := allocateLine(l, juice, comp, in.CompensationType, in.Config)
		if err != nil {
			return nil, err
		}
		out[i] = line
	}
	return out, nil
}

// allocateLine computes the per-line quantities from its juice and
// compensation shares. A mix line whose requested withdrawal exceeds the net
// available volume is rewritten to a plain withdrawal line.
func allocateLine(l arrival.Line, juice, comp decimal.Decimal,
	compType mill.CompensationType, cfg mill.Config) (arrival.Line, error) {
	if !cfg.JuiceDensity.IsPositive() {
		return arrival.Line{}, mill.ErrInvalidDensity
	}

	shrinkage := mill.RoundVolume(juice.Mul(cfg.ShrinkageRatio).Div(hundred))
	netOfShrinkage := juice.Sub(shrinkage)

	l.JuiceQty = juice
	l.CompensationQty = comp
	l.ShrinkageQty = shrinkage
	l.FilterLossQty = decimal.Zero
	l.WithdrawalQty = decimal.Zero
	l.SaleQty = decimal.Zero
	l.ToSaleTankQty = decimal.Zero

	switch l.Destination {
	case mill.DestinationWithdrawal:
		l.WithdrawalQty = netOfShrinkage

	case mill.DestinationSale:
		l.FilterLossQty = mill.RoundVolume(juice.Mul(cfg.FilterRatio).Div(hundred))
		l.SaleQty = netOfShrinkage.Sub(l.FilterLossQty)
		if compType == mill.CompensationFirst {
			l.SaleQty = l.SaleQty.Add(comp)
		}
		l.ToSaleTankQty = juice.Sub(l.FilterLossQty)

	case mill.DestinationMix:
		if netOfShrinkage.GreaterThanOrEqual(l.MixWithdrawalQty) {
			l.WithdrawalQty = l.MixWithdrawalQty
			remainder := juice.Sub(l.WithdrawalQty)
			l.FilterLossQty = mill.RoundVolume(remainder.Mul(cfg.FilterRatio).Div(hundred))
			l.SaleQty = remainder.Sub(shrinkage).Sub(l.FilterLossQty)
			if compType == mill.CompensationFirst {
				l.SaleQty = l.SaleQty.Add(comp)
			}
			l.ToSaleTankQty = remainder.Sub(l.FilterLossQty)
		} else {
			// Requested more than the pressing yielded: the line becomes a
			// plain withdrawal. The rewrite is permanent.
			l.Destination = mill.DestinationWithdrawal
			l.WithdrawalQty = netOfShrinkage
		}
	}

	net := netOfShrinkage.Sub(l.FilterLossQty)
	if compType == mill.CompensationFirst {
		net = net.Add(comp)
	}
	l.JuiceQtyNet = mill.RoundVolume(net)
	l.JuiceRatioNet = mill.RoundRatio(hundred.Mul(l.JuiceQtyNet).Div(l.FruitQty))
	return l, nil
}
