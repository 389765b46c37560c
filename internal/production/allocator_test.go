package production

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pressmill-erp/pressmill-erp/internal/arrival"
	"github.com/pressmill-erp/pressmill-erp/internal/mill"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func twoLines() []arrival.Line {
	return []arrival.Line{
		{ID: 1, Name: "ARR/1/1", FarmerID: 7, Destination: mill.DestinationWithdrawal,
			FruitQty: decimal.NewFromInt(100)},
		{ID: 2, Name: "ARR/1/2", FarmerID: 8, Destination: mill.DestinationWithdrawal,
			FruitQty: decimal.NewFromInt(300)},
	}
}

func TestDistributeReferenceLineScheme(t *testing.T) {
	cfg := mill.DefaultConfig()
	cfg.JuiceDensity = dec("0.92")

	// 100 kg and 300 kg sharing 60 L: reference line takes 100×60/400 = 15,
	// the other 300×45/300 = 45.
	out, err := Distribute(AllocationInput{
		Lines:            twoLines(),
		TotalJuice:       decimal.NewFromInt(60),
		CompensationType: mill.CompensationNone,
		Config:           cfg,
	})
	require.NoError(t, err)
	require.True(t, out[0].JuiceQty.Equal(decimal.NewFromInt(15)), "got %s", out[0].JuiceQty)
	require.True(t, out[1].JuiceQty.Equal(decimal.NewFromInt(45)), "got %s", out[1].JuiceQty)

	// Shrinkage at 0.4%.
	require.True(t, out[0].ShrinkageQty.Equal(dec("0.06")), "got %s", out[0].ShrinkageQty)
	require.True(t, out[1].ShrinkageQty.Equal(dec("0.18")), "got %s", out[1].ShrinkageQty)
	require.True(t, out[0].WithdrawalQty.Equal(dec("14.94")))
	require.True(t, out[1].WithdrawalQty.Equal(dec("44.82")))

	total := out[0].JuiceQty.Add(out[1].JuiceQty)
	require.True(t, total.Equal(decimal.NewFromInt(60)))
}

func TestDistributeForcedRatio(t *testing.T) {
	cfg := mill.DefaultConfig()

	out, err := Distribute(AllocationInput{
		Lines:        twoLines(),
		TotalJuice:   decimal.NewFromInt(60),
		ForcedLineID: 2,
		ForcedRatio:  decimal.NewFromInt(10),
		Config:       cfg,
	})
	require.NoError(t, err)
	// Forced line: 300 × 10 / 100 = 30 L; the other absorbs the residual.
	require.True(t, out[1].JuiceQty.Equal(decimal.NewFromInt(30)), "got %s", out[1].JuiceQty)
	require.True(t, out[0].JuiceQty.Equal(decimal.NewFromInt(30)), "got %s", out[0].JuiceQty)
}

func TestDistributeForcedExceedsTotal(t *testing.T) {
	cfg := mill.DefaultConfig()

	// 300 kg at 25% wants 75 L out of 60.
	_, err := Distribute(AllocationInput{
		Lines:        twoLines(),
		TotalJuice:   decimal.NewFromInt(60),
		ForcedLineID: 2,
		ForcedRatio:  decimal.NewFromInt(25),
		Config:       cfg,
	})
	require.ErrorIs(t, err, ErrForcedExceedsTotal)
}

func TestDistributeForcedRatioOutOfBand(t *testing.T) {
	cfg := mill.DefaultConfig()

	_, err := Distribute(AllocationInput{
		Lines:        twoLines(),
		TotalJuice:   decimal.NewFromInt(60),
		ForcedLineID: 1,
		ForcedRatio:  decimal.NewFromInt(50),
		Config:       cfg,
	})
	require.ErrorIs(t, err, ErrRatioOutOfBand)
}

func TestDistributeCompensationProportional(t *testing.T) {
	cfg := mill.DefaultConfig()

	out, err := Distribute(AllocationInput{
		Lines:            twoLines(),
		TotalJuice:       decimal.NewFromInt(60),
		CompensationType: mill.CompensationFirst,
		CompensationQty:  decimal.NewFromInt(8),
		Config:           cfg,
	})
	require.NoError(t, err)
	// comp_i = 8 × juice_i / 60: 2 L and 6 L.
	require.True(t, out[0].CompensationQty.Equal(decimal.NewFromInt(2)), "got %s", out[0].CompensationQty)
	require.True(t, out[1].CompensationQty.Equal(decimal.NewFromInt(6)), "got %s", out[1].CompensationQty)
}

func TestDistributeLastSubtractsPool(t *testing.T) {
	cfg := mill.DefaultConfig()

	out, err := Distribute(AllocationInput{
		Lines:            twoLines(),
		TotalJuice:       decimal.NewFromInt(60),
		CompensationType: mill.CompensationLast,
		CompensationQty:  decimal.NewFromInt(20),
		Config:           cfg,
	})
	require.NoError(t, err)
	// Only 40 L remain for the lines: 10 and 30.
	require.True(t, out[0].JuiceQty.Equal(decimal.NewFromInt(10)), "got %s", out[0].JuiceQty)
	require.True(t, out[1].JuiceQty.Equal(decimal.NewFromInt(30)), "got %s", out[1].JuiceQty)
}

func TestAllocateSaleLine(t *testing.T) {
	cfg := mill.DefaultConfig()

	line := arrival.Line{ID: 1, Name: "ARR/1/1", Destination: mill.DestinationSale,
		FruitQty: decimal.NewFromInt(100)}
	out, err := Distribute(AllocationInput{
		Lines:      []arrival.Line{line},
		TotalJuice: decimal.NewFromInt(20),
		Config:     cfg,
	})
	require.NoError(t, err)
	l := out[0]
	// shrinkage 0.08, filter 0.20 on 20 L.
	require.True(t, l.ShrinkageQty.Equal(dec("0.08")))
	require.True(t, l.FilterLossQty.Equal(dec("0.2")), "got %s", l.FilterLossQty)
	require.True(t, l.SaleQty.Equal(dec("19.72")), "got %s", l.SaleQty)
	require.True(t, l.ToSaleTankQty.Equal(dec("19.8")), "got %s", l.ToSaleTankQty)
	require.True(t, l.WithdrawalQty.IsZero())
	require.True(t, l.JuiceQtyNet.Equal(dec("19.72")))
	require.True(t, l.JuiceRatioNet.Equal(dec("19.72")))
}

func TestAllocateMixHonorsRequest(t *testing.T) {
	cfg := mill.DefaultConfig()

	line := arrival.Line{ID: 1, Name: "ARR/1/1", Destination: mill.DestinationMix,
		FruitQty: decimal.NewFromInt(100), MixWithdrawalQty: decimal.NewFromInt(5)}
	out, err := Distribute(AllocationInput{
		Lines:      []arrival.Line{line},
		TotalJuice: decimal.NewFromInt(20),
		Config:     cfg,
	})
	require.NoError(t, err)
	l := out[0]
	require.Equal(t, mill.DestinationMix, l.Destination)
	require.True(t, l.WithdrawalQty.Equal(decimal.NewFromInt(5)))
	// Filter loss on the 15 L remainder.
	require.True(t, l.FilterLossQty.Equal(dec("0.15")), "got %s", l.FilterLossQty)
	require.True(t, l.SaleQty.Equal(dec("14.77")), "got %s", l.SaleQty)
	require.True(t, l.ToSaleTankQty.Equal(dec("14.85")), "got %s", l.ToSaleTankQty)
}

func TestAllocateMixDegradesToWithdrawal(t *testing.T) {
	cfg := mill.DefaultConfig()

	line := arrival.Line{ID: 1, Name: "ARR/1/1", Destination: mill.DestinationMix,
		FruitQty: decimal.NewFromInt(100), MixWithdrawalQty: decimal.NewFromInt(25)}
	out, err := Distribute(AllocationInput{
		Lines:      []arrival.Line{line},
		TotalJuice: decimal.NewFromInt(20),
		Config:     cfg,
	})
	require.NoError(t, err)
	l := out[0]
	require.Equal(t, mill.DestinationWithdrawal, l.Destination)
	require.True(t, l.WithdrawalQty.Equal(dec("19.92")), "got %s", l.WithdrawalQty)
	require.True(t, l.SaleQty.IsZero())
	require.True(t, l.FilterLossQty.IsZero())
}

func TestDistributeRejectsZeroFruit(t *testing.T) {
	cfg := mill.DefaultConfig()

	lines := twoLines()
	lines[1].FruitQty = decimal.Zero
	_, err := Distribute(AllocationInput{
		Lines:      lines,
		TotalJuice: decimal.NewFromInt(60),
		Config:     cfg,
	})
	require.ErrorIs(t, err, ErrLineWithoutFruit)
}

func TestDistributeRequiresDensity(t *testing.T) {
	cfg := mill.DefaultConfig()
	cfg.JuiceDensity = decimal.Zero

	_, err := Distribute(AllocationInput{
		Lines:      twoLines(),
		TotalJuice: decimal.NewFromInt(60),
		Config:     cfg,
	})
	require.ErrorIs(t, err, mill.ErrInvalidDensity)
}
