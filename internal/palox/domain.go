// Package palox tracks the reusable bulk containers that hold fruit between
// arrival and pressing.
package palox

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pressmill-erp/pressmill-erp/internal/mill"
)

// Palox is one bulk container. Borrower and borrowed date are either both
// set or both empty.
type Palox struct {
	ID             int64
	Name           string
	Label          string
	BorrowerID     int64
	BorrowedDate   *time.Time
	JuiceProductID int64
	EmptyWeight    decimal.Decimal
	Active         bool
}

// Borrowed reports whether the palox is currently lent out.
func (p Palox) Borrowed() bool { return p.BorrowerID != 0 }

// BorrowHistory is one completed loan of a palox to a farmer.
type BorrowHistory struct {
	ID        int64
	PaloxID   int64
	FarmerID  int64
	SeasonID  int64
	StartDate time.Time
	EndDate   time.Time
}

// Content summarises the open (done, unattached) lines of a palox.
type Content struct {
	Weight      decimal.Decimal
	Destination mill.Destination
	Farmers     []string
	// ArrivalDate is the oldest arrival date among the open lines.
	ArrivalDate *time.Time
}

var (
	ErrNotFound          = errors.New("palox: not found")
	ErrBorrowerSubContact = errors.New("palox: cannot lend to a sub-contact account")
	ErrNotBorrowed       = errors.New("palox: no borrower set")
	ErrNoBorrowedDate    = errors.New("palox: no borrowed date set")
	ErrBorrowerDateState = errors.New("palox: borrower and borrowed date must be both set or both empty")
	ErrJuiceTypeLocked   = errors.New("palox: palox already holds a different juice type")
)

// CheckBorrowInvariant validates the both-or-neither borrower/date rule.
func (p Palox) CheckBorrowInvariant() error {
	if (p.BorrowerID != 0) != (p.BorrowedDate != nil) {
		return ErrBorrowerDateState
	}
	return nil
}

// SummarizeDestinations folds line destinations into one: sale when all
// lines sell, withdrawal when all withdraw, mix otherwise.
func SummarizeDestinations(dests []mill.Destination) mill.Destination {
	if len(dests) == 0 {
		return ""
	}
	allSale, allWithdrawal := true, true
	for _, d := range dests {
		if d != mill.DestinationSale {
			allSale = false
		}
		if d != mill.DestinationWithdrawal {
			allWithdrawal = false
		}
	}
	switch {
	case allSale:
		return mill.DestinationSale
	case allWithdrawal:
		return mill.DestinationWithdrawal
	default:
		return mill.DestinationMix
	}
}
