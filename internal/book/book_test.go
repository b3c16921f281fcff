package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickex/internal/model"
)

func limitOrder(id uint64, side model.Side, price, qty int64) *model.Order {
	return &model.Order{
		ID:         id,
		Instrument: "ABC",
		Side:       side,
		Kind:       model.Limit,
		Price:      price,
		Quantity:   qty,
		Sequence:   id,
		Status:     model.StatusNew,
	}
}

func TestInsertAndBestPrices(t *testing.T) {
	b := New("ABC")

	require.NoError(t, b.Insert(limitOrder(1, model.Buy, 100, 10)))
	require.NoError(t, b.Insert(limitOrder(2, model.Buy, 98, 5)))
	require.NoError(t, b.Insert(limitOrder(3, model.Sell, 103, 7)))
	require.NoError(t, b.Insert(limitOrder(4, model.Sell, 105, 2)))

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(100), bid)

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, int64(103), ask)

	assert.Equal(t, 4, b.Len())
	require.NoError(t, b.CheckUncrossed())
}

func TestInsertRejectsInvalidOrders(t *testing.T) {
	b := New("ABC")

	err := b.Insert(limitOrder(1, model.Buy, 0, 10))
	assert.ErrorIs(t, err, model.ErrInvalidPrice)

	err = b.Insert(limitOrder(2, model.Buy, -5, 10))
	assert.ErrorIs(t, err, model.ErrInvalidPrice)

	err = b.Insert(limitOrder(3, model.Buy, 100, 0))
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)

	market := limitOrder(4, model.Buy, 100, 10)
	market.Kind = model.Market
	assert.ErrorIs(t, b.Insert(market), model.ErrInvalidPrice)

	assert.Equal(t, 0, b.Len())
}

func TestInsertDuplicateIDIsInternalFault(t *testing.T) {
	b := New("ABC")
	require.NoError(t, b.Insert(limitOrder(1, model.Buy, 100, 10)))

	err := b.Insert(limitOrder(1, model.Buy, 99, 10))
	assert.ErrorIs(t, err, model.ErrInternal)
}

func TestFIFOWithinLevel(t *testing.T) {
	b := New("ABC")
	require.NoError(t, b.Insert(limitOrder(1, model.Sell, 100, 5)))
	require.NoError(t, b.Insert(limitOrder(2, model.Sell, 100, 5)))
	require.NoError(t, b.Insert(limitOrder(3, model.Sell, 100, 5)))

	first := b.BestResting(model.Sell)
	require.NotNil(t, first)
	assert.Equal(t, uint64(1), first.ID)

	_, ok := b.Remove(1)
	require.True(t, ok)

	second := b.BestResting(model.Sell)
	require.NotNil(t, second)
	assert.Equal(t, uint64(2), second.ID)
}

func TestRemoveDeletesEmptyLevel(t *testing.T) {
	b := New("ABC")
	require.NoError(t, b.Insert(limitOrder(1, model.Buy, 100, 10)))
	require.NoError(t, b.Insert(limitOrder(2, model.Buy, 99, 10)))

	o, ok := b.Remove(1)
	require.True(t, ok)
	assert.Equal(t, uint64(1), o.ID)
	assert.False(t, b.Contains(1))

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(99), bid)

	_, ok = b.Remove(1)
	assert.False(t, ok)
}

func TestReduceEvictsFilledOrders(t *testing.T) {
	b := New("ABC")
	o := limitOrder(1, model.Buy, 100, 10)
	require.NoError(t, b.Insert(o))

	o.Fill(4)
	b.Reduce(1, 4)

	levels := b.Depth(model.Buy, 1)
	require.Len(t, levels, 1)
	assert.Equal(t, int64(6), levels[0].Quantity)
	assert.True(t, b.Contains(1))

	o.Fill(6)
	b.Reduce(1, 6)
	assert.False(t, b.Contains(1))
	_, ok := b.BestBid()
	assert.False(t, ok)
}

func TestDepthOrderingAndAggregation(t *testing.T) {
	b := New("ABC")
	require.NoError(t, b.Insert(limitOrder(1, model.Buy, 100, 10)))
	require.NoError(t, b.Insert(limitOrder(2, model.Buy, 100, 5)))
	require.NoError(t, b.Insert(limitOrder(3, model.Buy, 98, 7)))
	require.NoError(t, b.Insert(limitOrder(4, model.Buy, 99, 1)))
	require.NoError(t, b.Insert(limitOrder(5, model.Sell, 101, 3)))
	require.NoError(t, b.Insert(limitOrder(6, model.Sell, 104, 2)))

	bids := b.Depth(model.Buy, 2)
	require.Len(t, bids, 2)
	assert.Equal(t, model.BookLevel{Price: 100, Quantity: 15, Orders: 2}, bids[0])
	assert.Equal(t, model.BookLevel{Price: 99, Quantity: 1, Orders: 1}, bids[1])

	asks := b.Depth(model.Sell, 10)
	require.Len(t, asks, 2)
	assert.Equal(t, int64(101), asks[0].Price)
	assert.Equal(t, int64(104), asks[1].Price)

	assert.Nil(t, b.Depth(model.Buy, 0))
}

func TestCheckUncrossedDetectsCrossedBook(t *testing.T) {
	b := New("ABC")
	require.NoError(t, b.Insert(limitOrder(1, model.Buy, 105, 10)))
	require.NoError(t, b.Insert(limitOrder(2, model.Sell, 100, 10)))

	err := b.CheckUncrossed()
	assert.ErrorIs(t, err, model.ErrInternal)
}
