// Package book maintains one instrument's resting limit orders as
// price-ordered levels with FIFO time priority inside each level.
//
// The book owns no matching logic and no clock. It only answers where an
// order rests and in what order liquidity would be consumed.
package book

import (
	"fmt"
	"sort"

	"tickex/internal/model"
)

// sideLevels holds one side of the book: a price -> level map plus a
// sorted ascending slice of populated prices for ordered traversal.
type sideLevels struct {
	byPrice map[int64]*level
	prices  []int64
}

func newSideLevels() sideLevels {
	return sideLevels{byPrice: make(map[int64]*level)}
}

func (s *sideLevels) get(price int64) *level {
	return s.byPrice[price]
}

func (s *sideLevels) upsert(price int64) *level {
	if lvl, ok := s.byPrice[price]; ok {
		return lvl
	}
	lvl := &level{price: price}
	s.byPrice[price] = lvl
	i := sort.Search(len(s.prices), func(i int) bool { return s.prices[i] >= price })
	s.prices = append(s.prices, 0)
	copy(s.prices[i+1:], s.prices[i:])
	s.prices[i] = price
	return lvl
}

func (s *sideLevels) remove(price int64) {
	delete(s.byPrice, price)
	i := sort.Search(len(s.prices), func(i int) bool { return s.prices[i] >= price })
	if i < len(s.prices) && s.prices[i] == price {
		s.prices = append(s.prices[:i], s.prices[i+1:]...)
	}
}

func (s *sideLevels) lowest() (*level, bool) {
	if len(s.prices) == 0 {
		return nil, false
	}
	return s.byPrice[s.prices[0]], true
}

func (s *sideLevels) highest() (*level, bool) {
	if len(s.prices) == 0 {
		return nil, false
	}
	return s.byPrice[s.prices[len(s.prices)-1]], true
}

// Book is the resting-order state for a single instrument. It is not
// safe for concurrent use; the exchange serializes access per instrument.
type Book struct {
	instrument string
	bids       sideLevels
	asks       sideLevels
	entries    map[uint64]*entry
}

// New creates an empty book for the given instrument.
func New(instrument string) *Book {
	return &Book{
		instrument: instrument,
		bids:       newSideLevels(),
		asks:       newSideLevels(),
		entries:    make(map[uint64]*entry),
	}
}

// Instrument returns the symbol this book belongs to.
func (b *Book) Instrument() string { return b.instrument }

// Len is the number of resting orders across both sides.
func (b *Book) Len() int { return len(b.entries) }

// Contains reports whether the order currently rests on the book.
func (b *Book) Contains(orderID uint64) bool {
	_, ok := b.entries[orderID]
	return ok
}

// Insert places a limit order at the tail of its price level, creating
// the level if absent. Orders with non-positive price or no remaining
// quantity are rejected; a duplicate id is an internal fault.
func (b *Book) Insert(o *model.Order) error {
	if o.Kind != model.Limit || o.Price <= 0 {
		return model.ErrInvalidPrice
	}
	if o.Remaining() <= 0 {
		return model.ErrInvalidQuantity
	}
	if _, ok := b.entries[o.ID]; ok {
		return fmt.Errorf("%w: duplicate order id %d", model.ErrInternal, o.ID)
	}
	e := &entry{order: o}
	b.side(o.Side).upsert(o.Price).enqueue(e)
	b.entries[o.ID] = e
	return nil
}

// Remove takes an order off the book, deleting its level if it empties.
// Returns the order, or false if it does not rest here.
func (b *Book) Remove(orderID uint64) (*model.Order, bool) {
	e, ok := b.entries[orderID]
	if !ok {
		return nil, false
	}
	lvl := e.level
	lvl.unlink(e)
	if lvl.empty() {
		b.side(e.order.Side).remove(lvl.price)
	}
	delete(b.entries, orderID)
	return e.order, true
}

// Reduce records a partial fill of qty against a resting order's level
// aggregate, evicting the order once its remaining quantity reaches zero.
// The order itself must already have been filled by the caller.
func (b *Book) Reduce(orderID uint64, qty int64) {
	e, ok := b.entries[orderID]
	if !ok {
		return
	}
	e.level.reduce(qty)
	if e.order.Remaining() <= 0 {
		b.Remove(orderID)
	}
}

// BestBid returns the highest bid price, if any bids rest.
func (b *Book) BestBid() (int64, bool) {
	lvl, ok := b.bids.highest()
	if !ok {
		return 0, false
	}
	return lvl.price, true
}

// BestAsk returns the lowest ask price, if any asks rest.
func (b *Book) BestAsk() (int64, bool) {
	lvl, ok := b.asks.lowest()
	if !ok {
		return 0, false
	}
	return lvl.price, true
}

// BestResting returns the order at the front of the best level of the
// given side: highest bid or lowest ask, earliest sequence first.
func (b *Book) BestResting(side model.Side) *model.Order {
	var lvl *level
	var ok bool
	if side == model.Buy {
		lvl, ok = b.bids.highest()
	} else {
		lvl, ok = b.asks.lowest()
	}
	if !ok {
		return nil
	}
	return lvl.head.order
}

// Depth returns up to n aggregated levels for the side, best first.
func (b *Book) Depth(side model.Side, n int) []model.BookLevel {
	s := b.side(side)
	if n <= 0 || len(s.prices) == 0 {
		return nil
	}
	out := make([]model.BookLevel, 0, n)
	if side == model.Buy {
		for i := len(s.prices) - 1; i >= 0 && len(out) < n; i-- {
			out = append(out, toBookLevel(s.byPrice[s.prices[i]]))
		}
	} else {
		for i := 0; i < len(s.prices) && len(out) < n; i++ {
			out = append(out, toBookLevel(s.byPrice[s.prices[i]]))
		}
	}
	return out
}

// CheckUncrossed verifies the standing invariant best bid < best ask.
// A violation observed here means a matching pass left the book in an
// inconsistent state and the engine must not continue.
func (b *Book) CheckUncrossed() error {
	bid, hasBid := b.BestBid()
	ask, hasAsk := b.BestAsk()
	if hasBid && hasAsk && bid >= ask {
		return fmt.Errorf("%w: crossed book %s: best bid %d >= best ask %d",
			model.ErrInternal, b.instrument, bid, ask)
	}
	return nil
}

func (b *Book) side(s model.Side) *sideLevels {
	if s == model.Buy {
		return &b.bids
	}
	return &b.asks
}

func toBookLevel(l *level) model.BookLevel {
	return model.BookLevel{Price: l.price, Quantity: l.totalQty, Orders: l.count}
}
