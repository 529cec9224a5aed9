package cart

import (
	"context"
	"testing"

	"github.com/BearBump/StreetEats/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	m map[string]*models.Cart
}

func newMemStore() *memStore { return &memStore{m: map[string]*models.Cart{}} }

func (s *memStore) Load(ctx context.Context, customerID string) (*models.Cart, bool, error) {
	c, ok := s.m[customerID]
	if !ok {
		return nil, false, nil
	}
	cp := *c
	cp.Lines = append([]models.CartLine(nil), c.Lines...)
	return &cp, true, nil
}

func (s *memStore) Save(ctx context.Context, cart *models.Cart) error {
	cp := *cart
	cp.Lines = append([]models.CartLine(nil), cart.Lines...)
	s.m[cart.CustomerID] = &cp
	return nil
}

func (s *memStore) Delete(ctx context.Context, customerID string) error {
	delete(s.m, customerID)
	return nil
}

type fakeOrders struct {
	got *models.OrderCreateInput
	out *models.Order
	err error
}

func (f *fakeOrders) Create(ctx context.Context, in models.OrderCreateInput) (*models.Order, error) {
	f.got = &in
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return &models.Order{ID: 1, Status: models.OrderStatusPending}, nil
}

var (
	tacoTruck  = models.TruckRef{ID: "truck-1", Name: "Taco Cat"}
	ramenTruck = models.TruckRef{ID: "truck-2", Name: "Ramen Rover"}

	taco = models.CartLine{ItemID: "taco", Name: "Taco", UnitPriceCents: 899, Quantity: 1}
	soda = models.CartLine{ItemID: "soda", Name: "Soda", UnitPriceCents: 399, Quantity: 1}
)

func TestAddLine_SameTruckAccumulates(t *testing.T) {
	s := New(newMemStore(), &fakeOrders{}, 800)
	ctx := context.Background()

	cart, err := s.AddLine(ctx, "cust-1", tacoTruck, taco, false)
	require.NoError(t, err)
	require.Equal(t, "truck-1", cart.TruckID)

	cart, err = s.AddLine(ctx, "cust-1", tacoTruck, taco, false)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	require.Equal(t, int32(2), cart.Lines[0].Quantity)

	cart, err = s.AddLine(ctx, "cust-1", tacoTruck, soda, false)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 2)
	require.Equal(t, "truck-1", cart.TruckID)
}

func TestAddLine_TruckConflictRequiresConfirmation(t *testing.T) {
	s := New(newMemStore(), &fakeOrders{}, 800)
	ctx := context.Background()

	_, err := s.AddLine(ctx, "cust-1", tacoTruck, taco, false)
	require.NoError(t, err)

	// Без подтверждения корзина не меняется.
	_, err = s.AddLine(ctx, "cust-1", ramenTruck, soda, false)
	require.ErrorIs(t, err, models.ErrTruckConflict)

	var conflict *TruckConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "truck-1", conflict.BoundTruckID)
	require.Equal(t, "Taco Cat", conflict.BoundTruckName)

	cart, err := s.Get(ctx, "cust-1")
	require.NoError(t, err)
	require.Equal(t, "truck-1", cart.TruckID)
	require.Len(t, cart.Lines, 1)
	require.Equal(t, "taco", cart.Lines[0].ItemID)

	// С подтверждением корзина заменяется позициями нового трака.
	cart, err = s.AddLine(ctx, "cust-1", ramenTruck, soda, true)
	require.NoError(t, err)
	require.Equal(t, "truck-2", cart.TruckID)
	require.Len(t, cart.Lines, 1)
	require.Equal(t, "soda", cart.Lines[0].ItemID)
}

func TestIncrementDecrementRemove(t *testing.T) {
	s := New(newMemStore(), &fakeOrders{}, 800)
	ctx := context.Background()

	_, err := s.AddLine(ctx, "cust-1", tacoTruck, taco, false)
	require.NoError(t, err)

	cart, err := s.IncrementLine(ctx, "cust-1", "taco")
	require.NoError(t, err)
	require.Equal(t, int32(2), cart.Lines[0].Quantity)

	cart, err = s.DecrementLine(ctx, "cust-1", "taco")
	require.NoError(t, err)
	require.Equal(t, int32(1), cart.Lines[0].Quantity)

	// Декремент на количестве 1 удаляет позицию, привязка остаётся.
	cart, err = s.DecrementLine(ctx, "cust-1", "taco")
	require.NoError(t, err)
	require.Empty(t, cart.Lines)
	require.Equal(t, "truck-1", cart.TruckID)

	_, err = s.IncrementLine(ctx, "cust-1", "nope")
	require.ErrorIs(t, err, models.ErrLineNotFound)

	_, err = s.AddLine(ctx, "cust-1", tacoTruck, soda, false)
	require.NoError(t, err)
	cart, err = s.RemoveLine(ctx, "cust-1", "soda")
	require.NoError(t, err)
	require.Empty(t, cart.Lines)
}

func TestClear_ResetsBinding(t *testing.T) {
	s := New(newMemStore(), &fakeOrders{}, 800)
	ctx := context.Background()

	_, err := s.AddLine(ctx, "cust-1", tacoTruck, taco, false)
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx, "cust-1"))

	cart, err := s.Get(ctx, "cust-1")
	require.NoError(t, err)
	require.Empty(t, cart.TruckID)
	require.Empty(t, cart.Lines)
}

func TestTotals_RoundsTaxToCents(t *testing.T) {
	s := New(newMemStore(), &fakeOrders{}, 800)

	cart := &models.Cart{Lines: []models.CartLine{
		{ItemID: "taco", UnitPriceCents: 899, Quantity: 2},
		{ItemID: "soda", UnitPriceCents: 399, Quantity: 1},
	}}

	totals := s.Totals(cart, 0)
	require.Equal(t, int64(2197), totals.SubtotalCents)
	require.Equal(t, int64(176), totals.TaxCents) // 175.76 -> 176
	require.Equal(t, int64(2373), totals.TotalCents)

	withTip := s.Totals(cart, 300)
	require.Equal(t, int64(2673), withTip.TotalCents)
}

func TestSubmit_SnapshotsCartAndClears(t *testing.T) {
	store := newMemStore()
	orders := &fakeOrders{}
	s := New(store, orders, 800)
	ctx := context.Background()

	_, err := s.AddLine(ctx, "cust-1", tacoTruck, models.CartLine{ItemID: "taco", Name: "Taco", UnitPriceCents: 899, Quantity: 2}, false)
	require.NoError(t, err)
	_, err = s.AddLine(ctx, "cust-1", tacoTruck, soda, false)
	require.NoError(t, err)

	_, err = s.Submit(ctx, "cust-1", 0, "no onions")
	require.NoError(t, err)

	require.Equal(t, "cust-1", orders.got.CustomerID)
	require.Equal(t, "truck-1", orders.got.TruckID)
	require.Equal(t, int64(2197), orders.got.SubtotalCents)
	require.Equal(t, int64(176), orders.got.TaxCents)
	require.Equal(t, "no onions", orders.got.Notes)
	require.Len(t, orders.got.Lines, 2)

	// Успешный сабмит очищает корзину.
	cart, err := s.Get(ctx, "cust-1")
	require.NoError(t, err)
	require.Empty(t, cart.Lines)
	require.Empty(t, cart.TruckID)

	// Снапшот не зависит от последующих мутаций корзины.
	snapshot := append([]models.OrderLine(nil), orders.got.Lines...)
	_, err = s.AddLine(ctx, "cust-1", ramenTruck, soda, false)
	require.NoError(t, err)
	require.Equal(t, snapshot, orders.got.Lines)
}

func TestSubmit_Validation(t *testing.T) {
	s := New(newMemStore(), &fakeOrders{}, 800)
	ctx := context.Background()

	_, err := s.Submit(ctx, "cust-1", 0, "")
	require.ErrorIs(t, err, models.ErrEmptyCart)

	_, err = s.Submit(ctx, "cust-1", -1, "")
	require.Error(t, err)
}

func TestSubmit_NoTruckBound(t *testing.T) {
	store := newMemStore()
	s := New(store, &fakeOrders{}, 800)
	ctx := context.Background()

	// Непустая корзина без привязки (повреждённое состояние).
	require.NoError(t, store.Save(ctx, &models.Cart{
		CustomerID: "cust-1",
		Lines:      []models.CartLine{taco},
	}))

	_, err := s.Submit(ctx, "cust-1", 0, "")
	require.ErrorIs(t, err, models.ErrNoTruckBound)
}

func TestSubmit_CreateFailureKeepsCart(t *testing.T) {
	store := newMemStore()
	orders := &fakeOrders{err: errors.New("storage down")}
	s := New(store, orders, 800)
	ctx := context.Background()

	_, err := s.AddLine(ctx, "cust-1", tacoTruck, taco, false)
	require.NoError(t, err)

	_, err = s.Submit(ctx, "cust-1", 0, "")
	require.Error(t, err)

	cart, err := s.Get(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	require.Equal(t, "truck-1", cart.TruckID)
}
