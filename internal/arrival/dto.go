package arrival

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pressmill-erp/pressmill-erp/internal/mill"
)

// ArrivalDTO is the JSON shape of an arrival.
type ArrivalDTO struct {
	ID                   int64           `json:"id"`
	Name                 string          `json:"name"`
	FarmerID             int64           `json:"farmer_id"`
	WarehouseID          int64           `json:"warehouse_id"`
	SeasonID             int64           `json:"season_id"`
	Date                 time.Time       `json:"date"`
	HarvestStartDate     time.Time       `json:"harvest_start_date"`
	State                State           `json:"state"`
	ReturnedRegularCases int             `json:"returned_regular_cases"`
	ReturnedOrganicCases int             `json:"returned_organic_cases"`
	ReturnedPaloxIDs     []int64         `json:"returned_palox_ids,omitempty"`
	DoneAt               *time.Time      `json:"done_at,omitempty"`
	PressedQty           decimal.Decimal `json:"pressed_qty"`
	JuiceQtyNet          decimal.Decimal `json:"juice_qty_net"`
	JuiceRatioNet        decimal.Decimal `json:"juice_ratio_net"`
	Lines                []LineDTO       `json:"lines"`
}

// LineDTO is the JSON shape of an arrival line.
type LineDTO struct {
	ID               int64            `json:"id"`
	Name             string           `json:"name"`
	State            LineState        `json:"state"`
	PaloxID          int64            `json:"palox_id"`
	VariantID        int64            `json:"variant_id"`
	JuiceProductID   int64            `json:"juice_product_id"`
	Destination      mill.Destination `json:"destination"`
	FruitQty         decimal.Decimal  `json:"fruit_qty"`
	MixWithdrawalQty decimal.Decimal  `json:"mix_withdrawal_qty"`
	ProductionID     int64            `json:"production_id,omitempty"`
	ProductionState  string           `json:"production_state,omitempty"`
	NeedsAnalysis    bool             `json:"needs_analysis"`
	JuiceQty         decimal.Decimal  `json:"juice_qty"`
	ShrinkageQty     decimal.Decimal  `json:"shrinkage_qty"`
	FilterLossQty    decimal.Decimal  `json:"filter_loss_qty"`
	WithdrawalQty    decimal.Decimal  `json:"withdrawal_qty"`
	SaleQty          decimal.Decimal  `json:"sale_qty"`
	ToSaleTankQty    decimal.Decimal  `json:"to_sale_tank_qty"`
	CompensationQty  decimal.Decimal  `json:"compensation_qty"`
	JuiceQtyNet      decimal.Decimal  `json:"juice_qty_net"`
	JuiceRatioNet    decimal.Decimal  `json:"juice_ratio_net"`
}

func arrivalResponse(a Arrival, lines []Line) ArrivalDTO {
	dto := ArrivalDTO{
		ID:                   a.ID,
		Name:                 a.Name,
		FarmerID:             a.FarmerID,
		WarehouseID:          a.WarehouseID,
		SeasonID:             a.SeasonID,
		Date:                 a.Date,
		HarvestStartDate:     a.HarvestStartDate,
		State:                a.State,
		ReturnedRegularCases: a.ReturnedRegularCases,
		ReturnedOrganicCases: a.ReturnedOrganicCases,
		ReturnedPaloxIDs:     a.ReturnedPaloxIDs,
		DoneAt:               a.DoneAt,
		PressedQty:           a.PressedQty,
		JuiceQtyNet:          a.JuiceQtyNet,
		JuiceRatioNet:        a.JuiceRatioNet,
		Lines:                make([]LineDTO, 0, len(lines)),
	}
	for _, l := range lines {
		dto.Lines = append(dto.Lines, LineDTO{
			ID:               l.ID,
			Name:             l.Name,
			State:            l.State,
			PaloxID:          l.PaloxID,
			VariantID:        l.VariantID,
			JuiceProductID:   l.JuiceProductID,
			Destination:      l.Destination,
			FruitQty:         l.FruitQty,
			MixWithdrawalQty: l.MixWithdrawalQty,
			ProductionID:     l.ProductionID,
			ProductionState:  l.ProductionState,
			NeedsAnalysis:    l.NeedsAnalysis,
			JuiceQty:         l.JuiceQty,
			ShrinkageQty:     l.ShrinkageQty,
			FilterLossQty:    l.FilterLossQty,
			WithdrawalQty:    l.WithdrawalQty,
			SaleQty:          l.SaleQty,
			ToSaleTankQty:    l.ToSaleTankQty,
			CompensationQty:  l.CompensationQty,
			JuiceQtyNet:      l.JuiceQtyNet,
			JuiceRatioNet:    l.JuiceRatioNet,
		})
	}
	return dto
}
