// Package catalog exposes the narrow product-catalog contract consumed by
// the arrival ledger and the production engine.
package catalog

import (
	"context"
	"errors"

	"github.com/pressmill-erp/pressmill-erp/internal/mill"
)

// ProductKind classifies the mill-relevant products.
type ProductKind string

const (
	KindJuice        ProductKind = "juice"
	KindBottle       ProductKind = "bottle"
	KindAnalysis     ProductKind = "analysis"
	KindExtraService ProductKind = "extra_service"
	KindService      ProductKind = "service"
)

// Product is the catalog view the engine needs: classification and unit of
// measure. Juice products are measured in liters.
type Product struct {
	ID          int64
	Name        string
	Kind        ProductKind
	CultureType mill.CultureType
	UoM         string
	// Tracking is the lot/serial tracking policy ("", "none", "lot", "serial").
	Tracking string
	// ShrinkageLotID is the generic production lot used when this product is
	// bound to a shrinkage tank.
	ShrinkageLotID int64
}

// Tracked reports whether the product requires lot or serial tracking.
func (p Product) Tracked() bool {
	return p.Tracking != "" && p.Tracking != "none"
}

var ErrProductNotFound = errors.New("catalog: product not found")

// Lookup resolves products by id.
type Lookup interface {
	Product(ctx context.Context, id int64) (Product, error)
}
