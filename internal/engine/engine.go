// Package engine applies price-time-priority matching against a single
// order book. The engine is deterministic and side-effect free beyond the
// book it is given: identical input order sequences produce identical
// trade sequences, which is what makes backtests reproducible.
package engine

import (
	"tickex/internal/book"
	"tickex/internal/model"
)

// Engine matches incoming orders against one instrument's book.
type Engine struct {
	book *book.Book
}

// New builds an engine over the given book.
func New(b *book.Book) *Engine {
	return &Engine{book: b}
}

// Match runs one matching pass for the incoming order. It consumes
// opposing levels best price first, within a level strictly in insertion
// sequence. Each execution prices at the resting order's price. A limit
// residual is inserted into the book; a market residual is rejected since
// market orders never rest.
//
// Trades are returned without id, sequence, or tick: the exchange stamps
// those. An error return means a broken invariant, never bad input;
// validation is the caller's precondition.
func (e *Engine) Match(incoming *model.Order) ([]model.Trade, error) {
	var trades []model.Trade

	for incoming.Remaining() > 0 {
		resting := e.book.BestResting(incoming.Side.Opposite())
		if resting == nil {
			break
		}
		if incoming.Kind == model.Limit && !crosses(incoming.Side, incoming.Price, resting.Price) {
			break
		}

		qty := incoming.Remaining()
		if r := resting.Remaining(); r < qty {
			qty = r
		}

		incoming.Fill(qty)
		resting.Fill(qty)
		e.book.Reduce(resting.ID, qty)

		trades = append(trades, newTrade(incoming, resting, qty))
	}

	if incoming.Remaining() > 0 {
		switch incoming.Kind {
		case model.Limit:
			if err := e.book.Insert(incoming); err != nil {
				return trades, err
			}
		case model.Market:
			// No resting market orders: the unfilled remainder is
			// rejected while any fills above stand.
			incoming.Status = model.StatusRejected
		}
	}

	if err := e.book.CheckUncrossed(); err != nil {
		return trades, err
	}
	return trades, nil
}

// crosses reports whether a limit order at price can trade against a
// resting order at restingPrice.
func crosses(side model.Side, price, restingPrice int64) bool {
	if side == model.Buy {
		return price >= restingPrice
	}
	return price <= restingPrice
}

// newTrade prices the execution at the resting order's price, so the
// aggressor always gets price improvement or par, never worse.
func newTrade(incoming, resting *model.Order, qty int64) model.Trade {
	t := model.Trade{
		Instrument: incoming.Instrument,
		Price:      resting.Price,
		Quantity:   qty,
	}
	if incoming.Side == model.Buy {
		t.BuyOrderID = incoming.ID
		t.SellOrderID = resting.ID
	} else {
		t.BuyOrderID = resting.ID
		t.SellOrderID = incoming.ID
	}
	return t
}
