package stock

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-memory Store. It backs package tests across the tank
// and production packages and small tooling that does not need Postgres.
type MemoryStore struct {
	mu        sync.Mutex
	movements map[int64]*Movement
	quants    []*Quant
	lots      map[int64]Lot
	nextID    int64
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		movements: make(map[int64]*Movement),
		lots:      make(map[int64]Lot),
	}
}

func (s *MemoryStore) nextSeq() int64 {
	s.nextID++
	return s.nextID
}

// CreateLot registers a production lot.
func (s *MemoryStore) CreateLot(_ context.Context, lot Lot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lot.ID = s.nextSeq()
	s.lots[lot.ID] = lot
	return lot.ID, nil
}

// CreateMovement stores a draft movement.
func (s *MemoryStore) CreateMovement(_ context.Context, m Movement) (int64, error) {
	if !m.Qty.IsPositive() {
		return 0, ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.nextSeq()
	m.State = MovementDraft
	s.movements[m.ID] = &m
	return m.ID, nil
}

// ConfirmMovement applies a draft movement to the quants.
func (s *MemoryStore) ConfirmMovement(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movements[id]
	if !ok || m.State != MovementDraft {
		return ErrMovementNotDraft
	}
	// Virtual production locations (negative ids by convention here) may go
	// negative; real locations may not.
	if m.SrcLocationID > 0 {
		avail := decimal.Zero
		for _, q := range s.quants {
			if q.LocationID == m.SrcLocationID && q.ProductID == m.ProductID {
				avail = avail.Add(q.Qty)
			}
		}
		if avail.LessThan(m.Qty) {
			return ErrInsufficientQty
		}
		s.drain(m.SrcLocationID, m.ProductID, m.Qty)
	}
	s.add(Quant{
		LocationID: m.DstLocationID,
		ProductID:  m.ProductID,
		LotID:      m.LotID,
		OwnerID:    m.OwnerID,
		Qty:        m.Qty,
	})
	m.State = MovementDone
	return nil
}

func (s *MemoryStore) drain(locationID, productID int64, qty decimal.Decimal) {
	remaining := qty
	kept := s.quants[:0]
	for _, q := range s.quants {
		if remaining.IsPositive() && q.LocationID == locationID && q.ProductID == productID {
			if q.Qty.LessThanOrEqual(remaining) {
				remaining = remaining.Sub(q.Qty)
				continue
			}
			q.Qty = q.Qty.Sub(remaining)
			remaining = decimal.Zero
		}
		kept = append(kept, q)
	}
	s.quants = kept
}

func (s *MemoryStore) add(q Quant) {
	for _, existing := range s.quants {
		if existing.LocationID == q.LocationID && existing.ProductID == q.ProductID &&
			existing.LotID == q.LotID && existing.OwnerID == q.OwnerID && !existing.Reserved {
			existing.Qty = existing.Qty.Add(q.Qty)
			return
		}
	}
	copied := q
	s.quants = append(s.quants, &copied)
}

// QuantsAt returns copies of the quants held at a location.
func (s *MemoryStore) QuantsAt(_ context.Context, locationID int64) ([]Quant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Quant
	for _, q := range s.quants {
		if q.LocationID == locationID && q.Qty.IsPositive() {
			out = append(out, *q)
		}
	}
	return out, nil
}

// QuantityAt sums the quantity held at a location.
func (s *MemoryStore) QuantityAt(ctx context.Context, locationID int64) (decimal.Decimal, error) {
	quants, err := s.QuantsAt(ctx, locationID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, q := range quants {
		total = total.Add(q.Qty)
	}
	return total, nil
}

// Reserve marks every quant of a location as reserved. Used by tests and by
// the reservation pass-through of the transfer engine.
func (s *MemoryStore) Reserve(locationID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.quants {
		if q.LocationID == locationID {
			q.Reserved = true
		}
	}
}
