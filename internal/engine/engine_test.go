package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickex/internal/book"
	"tickex/internal/model"
)

var nextID uint64

func newOrder(side model.Side, kind model.OrderKind, price, qty int64) *model.Order {
	nextID++
	return &model.Order{
		ID:         nextID,
		Instrument: "ABC",
		Side:       side,
		Kind:       kind,
		Price:      price,
		Quantity:   qty,
		Sequence:   nextID,
		Status:     model.StatusNew,
	}
}

func newEngine() (*Engine, *book.Book) {
	b := book.New("ABC")
	return New(b), b
}

func TestLimitOrderRestsWhenNoLiquidity(t *testing.T) {
	e, b := newEngine()

	buy := newOrder(model.Buy, model.Limit, 100, 10)
	trades, err := e.Match(buy)
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Equal(t, model.StatusNew, buy.Status)
	assert.True(t, b.Contains(buy.ID))
}

func TestPartialFillThenMarketSweep(t *testing.T) {
	// The concrete scenario: buy limit 100x10 rests; sell limit 100x4
	// trades 4; a market sell of 10 fills the remaining 6 and has its
	// last 4 rejected.
	e, b := newEngine()

	buy := newOrder(model.Buy, model.Limit, 100, 10)
	_, err := e.Match(buy)
	require.NoError(t, err)

	sell := newOrder(model.Sell, model.Limit, 100, 4)
	trades, err := e.Match(sell)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(100), trades[0].Price)
	assert.Equal(t, int64(4), trades[0].Quantity)
	assert.Equal(t, buy.ID, trades[0].BuyOrderID)
	assert.Equal(t, sell.ID, trades[0].SellOrderID)

	assert.Equal(t, model.StatusPartiallyFilled, buy.Status)
	assert.Equal(t, int64(6), buy.Remaining())
	assert.Equal(t, model.StatusFilled, sell.Status)

	mkt := newOrder(model.Sell, model.Market, 0, 10)
	trades, err = e.Match(mkt)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(100), trades[0].Price)
	assert.Equal(t, int64(6), trades[0].Quantity)

	assert.Equal(t, model.StatusFilled, buy.Status)
	assert.Equal(t, model.StatusRejected, mkt.Status)
	assert.Equal(t, int64(6), mkt.FilledQuantity)
	assert.Equal(t, int64(4), mkt.Remaining())
	assert.False(t, b.Contains(mkt.ID))
	assert.Equal(t, 0, b.Len())
}

func TestMarketOrderWithEmptyBookIsRejected(t *testing.T) {
	e, _ := newEngine()

	mkt := newOrder(model.Buy, model.Market, 0, 5)
	trades, err := e.Match(mkt)
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Equal(t, model.StatusRejected, mkt.Status)
	assert.Zero(t, mkt.FilledQuantity)
}

func TestTradesPriceAtRestingOrder(t *testing.T) {
	e, _ := newEngine()

	sell := newOrder(model.Sell, model.Limit, 101, 5)
	_, err := e.Match(sell)
	require.NoError(t, err)

	// Aggressive buy at 105 gets price improvement to the resting 101.
	buy := newOrder(model.Buy, model.Limit, 105, 5)
	trades, err := e.Match(buy)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(101), trades[0].Price)
	assert.Equal(t, model.StatusFilled, buy.Status)
}

func TestPriceTimePriority(t *testing.T) {
	e, _ := newEngine()

	first := newOrder(model.Sell, model.Limit, 100, 5)
	second := newOrder(model.Sell, model.Limit, 100, 5)
	cheaper := newOrder(model.Sell, model.Limit, 99, 2)
	for _, o := range []*model.Order{first, second, cheaper} {
		_, err := e.Match(o)
		require.NoError(t, err)
	}

	buy := newOrder(model.Buy, model.Limit, 100, 9)
	trades, err := e.Match(buy)
	require.NoError(t, err)
	require.Len(t, trades, 3)

	// Best price first, then FIFO within the 100 level.
	assert.Equal(t, cheaper.ID, trades[0].SellOrderID)
	assert.Equal(t, int64(99), trades[0].Price)
	assert.Equal(t, first.ID, trades[1].SellOrderID)
	assert.Equal(t, second.ID, trades[2].SellOrderID)
	assert.Equal(t, int64(2), second.FilledQuantity)
	assert.Equal(t, model.StatusPartiallyFilled, second.Status)
}

func TestLimitStopsAtLimitPrice(t *testing.T) {
	e, b := newEngine()

	_, err := e.Match(newOrder(model.Sell, model.Limit, 100, 5))
	require.NoError(t, err)
	_, err = e.Match(newOrder(model.Sell, model.Limit, 104, 5))
	require.NoError(t, err)

	buy := newOrder(model.Buy, model.Limit, 102, 10)
	trades, err := e.Match(buy)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(100), trades[0].Price)

	// Residual 5 rests at 102, below the remaining 104 ask.
	assert.Equal(t, model.StatusPartiallyFilled, buy.Status)
	assert.True(t, b.Contains(buy.ID))
	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(102), bid)
	require.NoError(t, b.CheckUncrossed())
}

func TestQuantityConservation(t *testing.T) {
	e, _ := newEngine()

	resting := []*model.Order{
		newOrder(model.Sell, model.Limit, 100, 3),
		newOrder(model.Sell, model.Limit, 100, 4),
		newOrder(model.Sell, model.Limit, 101, 5),
	}
	for _, o := range resting {
		_, err := e.Match(o)
		require.NoError(t, err)
	}

	buy := newOrder(model.Buy, model.Limit, 101, 20)
	trades, err := e.Match(buy)
	require.NoError(t, err)

	var total int64
	for _, tr := range trades {
		assert.Positive(t, tr.Quantity)
		total += tr.Quantity
	}
	assert.Equal(t, int64(12), total)
	assert.Equal(t, buy.FilledQuantity, total)
	for _, o := range resting {
		assert.Equal(t, o.Quantity, o.FilledQuantity)
		assert.Equal(t, model.StatusFilled, o.Status)
	}
}

func TestDeterministicTradeSequence(t *testing.T) {
	run := func() []model.Trade {
		e, _ := newEngine()
		id := uint64(0)
		mk := func(side model.Side, kind model.OrderKind, price, qty int64) *model.Order {
			id++
			return &model.Order{ID: id, Instrument: "ABC", Side: side, Kind: kind,
				Price: price, Quantity: qty, Sequence: id, Status: model.StatusNew}
		}
		var all []model.Trade
		script := []*model.Order{
			mk(model.Sell, model.Limit, 102, 5),
			mk(model.Sell, model.Limit, 101, 3),
			mk(model.Buy, model.Limit, 100, 4),
			mk(model.Buy, model.Limit, 103, 6),
			mk(model.Sell, model.Market, 0, 8),
		}
		for _, o := range script {
			trades, err := e.Match(o)
			require.NoError(t, err)
			all = append(all, trades...)
		}
		return all
	}

	assert.Equal(t, run(), run())
}
