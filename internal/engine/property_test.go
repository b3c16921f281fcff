package engine

import (
	"testing"

	"pgregory.net/rapid"

	"tickex/internal/book"
	"tickex/internal/model"
)

// Property: no sequence of valid limit submissions leaves the book
// crossed, and price compatibility alone decides whether opposing
// orders trade.
func TestProperty_BookNeverCrossed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := book.New("TEST")
		e := New(b)

		n := rapid.IntRange(1, 60).Draw(t, "n")
		for i := 0; i < n; i++ {
			side := model.Buy
			if rapid.Bool().Draw(t, "isSell") {
				side = model.Sell
			}
			o := &model.Order{
				ID:       uint64(i + 1),
				Side:     side,
				Kind:     model.Limit,
				Price:    rapid.Int64Range(90, 110).Draw(t, "price"),
				Quantity: rapid.Int64Range(1, 20).Draw(t, "qty"),
				Sequence: uint64(i + 1),
				Status:   model.StatusNew,
			}
			if _, err := e.Match(o); err != nil {
				t.Fatalf("match failed: %v", err)
			}

			bid, hasBid := b.BestBid()
			ask, hasAsk := b.BestAsk()
			if hasBid && hasAsk && bid >= ask {
				t.Fatalf("book crossed after order %d: best bid %d >= best ask %d", o.ID, bid, ask)
			}
		}
	})
}

// Property: the sum of trade quantities on an order never exceeds its
// original quantity, and fills on both sides advance in lockstep.
func TestProperty_QuantityConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := book.New("TEST")
		e := New(b)

		filledByOrder := make(map[uint64]int64)
		quantityByOrder := make(map[uint64]int64)

		n := rapid.IntRange(1, 60).Draw(t, "n")
		for i := 0; i < n; i++ {
			side := model.Buy
			if rapid.Bool().Draw(t, "isSell") {
				side = model.Sell
			}
			kind := model.Limit
			var price int64
			if rapid.Bool().Draw(t, "isMarket") {
				kind = model.Market
			} else {
				price = rapid.Int64Range(95, 105).Draw(t, "price")
			}
			o := &model.Order{
				ID:       uint64(i + 1),
				Side:     side,
				Kind:     kind,
				Price:    price,
				Quantity: rapid.Int64Range(1, 15).Draw(t, "qty"),
				Sequence: uint64(i + 1),
				Status:   model.StatusNew,
			}
			quantityByOrder[o.ID] = o.Quantity

			trades, err := e.Match(o)
			if err != nil {
				t.Fatalf("match failed: %v", err)
			}
			for _, tr := range trades {
				if tr.Quantity <= 0 {
					t.Fatalf("non-positive trade quantity %d", tr.Quantity)
				}
				filledByOrder[tr.BuyOrderID] += tr.Quantity
				filledByOrder[tr.SellOrderID] += tr.Quantity
			}
		}

		for id, filled := range filledByOrder {
			if filled > quantityByOrder[id] {
				t.Fatalf("order %d overfilled: %d > %d", id, filled, quantityByOrder[id])
			}
		}
	})
}
