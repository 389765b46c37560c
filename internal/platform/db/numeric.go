package db

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// NumericToDecimal converts a scanned NUMERIC into a decimal value.
func NumericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid || n.NaN {
		return decimal.Zero, nil
	}
	if n.Int == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}

// DecimalToNumeric converts a decimal value into a NUMERIC parameter.
func DecimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{
		Int:   d.Coefficient(),
		Exp:   d.Exponent(),
		Valid: true,
	}
}

// MustDecimal is NumericToDecimal for scan paths where a conversion failure
// means corrupt data rather than a recoverable condition.
func MustDecimal(n pgtype.Numeric) decimal.Decimal {
	d, err := NumericToDecimal(n)
	if err != nil {
		panic(fmt.Sprintf("platform/db: numeric conversion: %v", err))
	}
	return d
}
