package mill

import "github.com/shopspring/decimal"

// Warehouse is one pressing site. The tank bindings are stock location ids;
// zero means unconfigured.
type Warehouse struct {
	ID                      int64
	Name                    string
	StockLocationID         int64
	WithdrawalLocationID    int64
	SaleTankLocationID      int64
	CompTankLocationID      int64
	CompSaleTankLocationID  int64
	ShrinkageTankLocationID int64
	CaseLocationID          int64
	RegularCaseProductID    int64
	OrganicCaseProductID    int64
	// CompensationRatio is the rolling average juice ratio (%) of recent
	// batches, used to sanity-check mix withdrawal requests and as the
	// default quantity basis for last-mode compensation.
	CompensationRatio decimal.Decimal
	// CompensationRatioDays is the window the ratio job averages over.
	CompensationRatioDays int
}
