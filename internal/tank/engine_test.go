package tank

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pressmill-erp/pressmill-erp/internal/stock"
)

type memoryTanks map[int64]Tank

func (m memoryTanks) Get(_ context.Context, locationID int64) (Tank, error) {
	return m[locationID], nil
}

func (m memoryTanks) Update(_ context.Context, t Tank) error {
	m[t.LocationID] = t
	return nil
}

func fill(t *testing.T, store *stock.MemoryStore, locationID, productID, lotID, ownerID int64, qty string) {
	t.Helper()
	id, err := store.CreateMovement(context.Background(), stock.Movement{
		ProductID:     productID,
		SrcLocationID: -1,
		DstLocationID: locationID,
		Qty:           decimal.RequireFromString(qty),
		LotID:         lotID,
		OwnerID:       ownerID,
	})
	require.NoError(t, err)
	require.NoError(t, store.ConfirmMovement(context.Background(), id))
}

func TestFullTransferPreservesTags(t *testing.T) {
	store := stock.NewMemoryStore()
	tanks := memoryTanks{
		10: {LocationID: 10, Name: "CUVE-A", Type: TypeRegular, JuiceProductID: 42, SeasonID: 1},
		11: {LocationID: 11, Name: "CUVE-B", Type: TypeRegular, SeasonID: 0},
	}
	fill(t, store, 10, 42, 5, 7, "80.00")
	engine := NewEngine(tanks, store)

	ids, err := engine.Transfer(context.Background(), TransferInput{
		SrcLocationID: 10, DstLocationID: 11, Mode: TransferFull, AutoValidate: true,
	})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	// Destination binds to the source product and season on first use.
	require.EqualValues(t, 42, tanks[11].JuiceProductID)
	require.EqualValues(t, 1, tanks[11].SeasonID)

	quants, err := store.QuantsAt(context.Background(), 11)
	require.NoError(t, err)
	require.Len(t, quants, 1)
	require.EqualValues(t, 5, quants[0].LotID)
	require.EqualValues(t, 7, quants[0].OwnerID)
	require.True(t, quants[0].Qty.Equal(decimal.RequireFromString("80.00")))

	srcQty, err := store.QuantityAt(context.Background(), 10)
	require.NoError(t, err)
	require.True(t, srcQty.IsZero())
}

func TestFullTransferRetagsOwner(t *testing.T) {
	store := stock.NewMemoryStore()
	tanks := memoryTanks{
		10: {LocationID: 10, Name: "COMP", Type: TypeCompensation, JuiceProductID: 42, SeasonID: 1},
		20: {LocationID: 20, Name: "WITHDRAWAL"},
	}
	fill(t, store, 10, 42, 5, 0, "12.50")
	engine := NewEngine(tanks, store)

	_, err := engine.Transfer(context.Background(), TransferInput{
		SrcLocationID: 10, DstLocationID: 20, Mode: TransferFull,
		DestFarmerID: 99, AutoValidate: true,
	})
	require.NoError(t, err)

	quants, err := store.QuantsAt(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, quants, 1)
	require.EqualValues(t, 99, quants[0].OwnerID)
}

func TestPartialTransferExactQty(t *testing.T) {
	store := stock.NewMemoryStore()
	tanks := memoryTanks{
		10: {LocationID: 10, Name: "COMP", Type: TypeCompensation, JuiceProductID: 42, SeasonID: 1},
		11: {LocationID: 11, Name: "CSALE", Type: TypeRegular, JuiceProductID: 42, SeasonID: 1},
	}
	fill(t, store, 10, 42, 0, 0, "30.00")
	engine := NewEngine(tanks, store)

	_, err := engine.Transfer(context.Background(), TransferInput{
		SrcLocationID: 10, DstLocationID: 11, Mode: TransferPartial,
		Qty: decimal.RequireFromString("12.34"), AutoValidate: true,
	})
	require.NoError(t, err)

	srcQty, _ := store.QuantityAt(context.Background(), 10)
	dstQty, _ := store.QuantityAt(context.Background(), 11)
	require.True(t, srcQty.Equal(decimal.RequireFromString("17.66")), "got %s", srcQty)
	require.True(t, dstQty.Equal(decimal.RequireFromString("12.34")), "got %s", dstQty)
}

func TestPartialTransferOverdraw(t *testing.T) {
	store := stock.NewMemoryStore()
	tanks := memoryTanks{
		10: {LocationID: 10, Name: "COMP", Type: TypeCompensation, JuiceProductID: 42},
		11: {LocationID: 11, Name: "CSALE", Type: TypeRegular, JuiceProductID: 42},
	}
	fill(t, store, 10, 42, 0, 0, "5.00")
	engine := NewEngine(tanks, store)

	_, err := engine.Transfer(context.Background(), TransferInput{
		SrcLocationID: 10, DstLocationID: 11, Mode: TransferPartial,
		Qty: decimal.RequireFromString("9.00"),
	})
	require.ErrorIs(t, err, stock.ErrInsufficientQty)
}

func TestTransferProductMismatch(t *testing.T) {
	store := stock.NewMemoryStore()
	tanks := memoryTanks{
		10: {LocationID: 10, Name: "CUVE-A", Type: TypeRegular, JuiceProductID: 42, SeasonID: 1},
		11: {LocationID: 11, Name: "CUVE-B", Type: TypeRegular, JuiceProductID: 43, SeasonID: 1},
	}
	fill(t, store, 10, 42, 0, 0, "10.00")
	engine := NewEngine(tanks, store)

	_, err := engine.Transfer(context.Background(), TransferInput{
		SrcLocationID: 10, DstLocationID: 11, Mode: TransferFull,
	})
	require.ErrorIs(t, err, ErrProductMismatch)
}

func TestFullTransferRejectsReserved(t *testing.T) {
	store := stock.NewMemoryStore()
	tanks := memoryTanks{
		10: {LocationID: 10, Name: "CUVE-A", Type: TypeRegular, JuiceProductID: 42, SeasonID: 1},
		11: {LocationID: 11, Name: "CUVE-B", Type: TypeRegular, JuiceProductID: 42, SeasonID: 1},
	}
	fill(t, store, 10, 42, 0, 0, "10.00")
	store.Reserve(10)
	engine := NewEngine(tanks, store)

	_, err := engine.Transfer(context.Background(), TransferInput{
		SrcLocationID: 10, DstLocationID: 11, Mode: TransferFull,
	})
	require.ErrorIs(t, err, ErrReservedQuantity)
}

func TestCheckMixedProducts(t *testing.T) {
	store := stock.NewMemoryStore()
	tanks := memoryTanks{10: {LocationID: 10, Name: "CUVE-A", Type: TypeRegular, JuiceProductID: 42}}
	fill(t, store, 10, 42, 0, 0, "10.00")
	fill(t, store, 10, 43, 0, 0, "1.00")
	engine := NewEngine(tanks, store)

	_, err := engine.Check(context.Background(), tanks[10], false)
	require.ErrorIs(t, err, ErrMixedProducts)
}

func TestCheckEmptyTank(t *testing.T) {
	store := stock.NewMemoryStore()
	tanks := memoryTanks{10: {LocationID: 10, Name: "CUVE-A", Type: TypeRegular, JuiceProductID: 42}}
	engine := NewEngine(tanks, store)

	quants, err := engine.Check(context.Background(), tanks[10], false)
	require.NoError(t, err)
	require.Empty(t, quants)

	_, err = engine.Check(context.Background(), tanks[10], true)
	require.ErrorIs(t, err, ErrTankEmpty)
}
