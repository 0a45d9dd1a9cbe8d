package store

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lastclick/internal/model"
)

func seedOrders(t *testing.T, s *Store, n int) []model.Order {
	t.Helper()
	ctx := context.Background()

	// Insert in reverse time order so pagination has to sort.
	var orders []model.Order
	for i := n - 1; i >= 0; i-- {
		id := fmt.Sprintf("o%02d", i)
		orders = append(orders, createTestOrder(id, "fp-"+id, baseTime.Add(time.Duration(i)*time.Minute)))
	}
	require.NoError(t, s.WithWriter(ctx, func(tx Port) error {
		return tx.InsertOrders(ctx, orders)
	}))
	return orders
}

func ids(orders []model.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

func TestPageOrders(t *testing.T) {
	s := createTestStore(t)
	seedOrders(t, s, 5)
	ctx := context.Background()

	page0, err := s.PageOrders(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"o00", "o01"}, ids(page0))

	page1, err := s.PageOrders(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"o02", "o03"}, ids(page1))

	page2, err := s.PageOrders(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"o04"}, ids(page2))

	page3, err := s.PageOrders(ctx, 3, 2)
	require.NoError(t, err)
	assert.NotNil(t, page3)
	assert.Empty(t, page3)
}

func TestPageOrders_TieBreaksByID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WithWriter(ctx, func(tx Port) error {
		return tx.InsertOrders(ctx, []model.Order{
			createTestOrder("b", "fp-b", baseTime),
			createTestOrder("a", "fp-a", baseTime),
		})
	}))

	page, err := s.PageOrders(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(page))
}

func TestPageOrders_OffsetOverflowIsPastTheEnd(t *testing.T) {
	s := createTestStore(t)
	seedOrders(t, s, 3)
	ctx := context.Background()

	page, err := s.PageOrders(ctx, math.MaxInt64/2+1, 2)
	require.NoError(t, err)
	assert.NotNil(t, page)
	assert.Empty(t, page)

	page, err = s.PageOrders(ctx, math.MaxInt64, math.MaxInt64)
	require.NoError(t, err)
	assert.Empty(t, page)

	page, err = s.PageOrders(ctx, 1, math.MaxInt64)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestPageOrders_InvalidArguments(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.PageOrders(ctx, -1, 10)
	assert.ErrorIs(t, err, ErrInvalidPage)

	_, err = s.PageOrders(ctx, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidPage)
}

func TestPageOrders_DoesNotMutate(t *testing.T) {
	s := createTestStore(t)
	seedOrders(t, s, 3)
	ctx := context.Background()

	before, err := s.CountOrders(ctx)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.PageOrders(ctx, i, 1)
		require.NoError(t, err)
	}

	after, err := s.CountOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, int64(3), after)
}

func TestPageOrders_TimestampIsUTC(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	local := time.Date(2023, 11, 14, 23, 13, 20, 123456000, time.FixedZone("CET", 3600))
	require.NoError(t, s.WithWriter(ctx, func(tx Port) error {
		return tx.InsertOrders(ctx, []model.Order{createTestOrder("o1", "fp-1", local)})
	}))

	page, err := s.PageOrders(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, time.UTC, page[0].EventTimestamp.Location())
	assert.True(t, local.Equal(page[0].EventTimestamp))
}

func TestReadAll_EmptyStoreReturnsEmptySlices(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	orders, err := s.ReadAllOrders(ctx)
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)

	products, err := s.ReadAllProducts(ctx)
	require.NoError(t, err)
	assert.NotNil(t, products)

	ops, err := s.ReadAllOrderProducts(ctx)
	require.NoError(t, err)
	assert.NotNil(t, ops)
}
