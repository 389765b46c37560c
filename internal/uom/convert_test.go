package uom

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pressmill-erp/pressmill-erp/internal/mill"
)

func TestKgToLiter(t *testing.T) {
	density := decimal.RequireFromString("0.916")

	l, err := KgToLiter(decimal.RequireFromString("45.8"), density)
	require.NoError(t, err)
	require.True(t, l.Equal(decimal.NewFromInt(50)), "got %s", l)

	kg, err := LiterToKg(decimal.NewFromInt(50), density)
	require.NoError(t, err)
	require.True(t, kg.Equal(decimal.RequireFromString("45.8")), "got %s", kg)
}

func TestInvalidDensity(t *testing.T) {
	_, err := KgToLiter(decimal.NewFromInt(10), decimal.Zero)
	require.ErrorIs(t, err, mill.ErrInvalidDensity)

	_, err = LiterToKg(decimal.NewFromInt(10), decimal.NewFromInt(-1))
	require.ErrorIs(t, err, mill.ErrInvalidDensity)
}

func TestRoundTripPrecision(t *testing.T) {
	density := decimal.RequireFromString("0.92")
	l, err := KgToLiter(decimal.RequireFromString("55.2"), density)
	require.NoError(t, err)
	require.True(t, l.Equal(decimal.NewFromInt(60)), "got %s", l)
}
