package rediscart

import (
	"context"
	"testing"

	"github.com/BearBump/StreetEats/internal/models"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	s := New(mr.Addr())
	ctx := context.Background()

	_, ok, err := s.Load(ctx, "cust-1")
	require.NoError(t, err)
	require.False(t, ok)

	cart := &models.Cart{
		CustomerID: "cust-1",
		TruckID:    "truck-1",
		TruckName:  "Taco Cat",
		Lines: []models.CartLine{
			{ItemID: "taco", Name: "Taco", UnitPriceCents: 899, Quantity: 2},
		},
	}
	require.NoError(t, s.Save(ctx, cart))

	got, ok, err := s.Load(ctx, "cust-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cart.TruckID, got.TruckID)
	require.Equal(t, cart.Lines, got.Lines)

	require.NoError(t, s.Delete(ctx, "cust-1"))
	_, ok, err = s.Load(ctx, "cust-1")
	require.NoError(t, err)
	require.False(t, ok)
}
