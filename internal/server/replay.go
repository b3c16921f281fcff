package server

import (
	"context"
	"fmt"

	"tickex/internal/exchange"
	"tickex/internal/journal"
	"tickex/internal/store"
)

// Replay re-issues every journaled request against ex in append order,
// rebuilding the state of the run that wrote the journal. ex must be a
// fresh exchange with the same instrument configuration and no journal
// attached; the caller attaches the journal afterwards so replayed
// requests are not re-recorded. Trades are re-persisted to st when it
// is non-nil; inserts are idempotent, so rows from the original run are
// left untouched.
//
// Only requests that mutated state were journaled, so every record is
// expected to apply cleanly. Any rejection or divergence means the
// journal does not belong to this configuration and replay stops.
func Replay(ctx context.Context, jnl *journal.Journal, ex *exchange.Exchange, st *store.Store) error {
	return jnl.Replay(func(rec journal.Record) error {
		switch rec.Kind {
		case journal.KindSubmit:
			ack, err := ex.Submit(exchange.SubmitRequest{
				Instrument: rec.Instrument,
				Side:       rec.Side,
				Kind:       rec.OrderKind,
				Price:      rec.Price,
				Quantity:   rec.Quantity,
			})
			if err != nil {
				return fmt.Errorf("replay submit %s: %w", rec.Instrument, err)
			}
			if st != nil {
				return st.SaveTrades(ctx, ack.Trades)
			}
			return nil
		case journal.KindCancel:
			ack, err := ex.Cancel(rec.OrderID)
			if err != nil {
				return fmt.Errorf("replay cancel %d: %w", rec.OrderID, err)
			}
			if !ack.Cancelled {
				return fmt.Errorf("replay cancel %d: order already terminal", rec.OrderID)
			}
			return nil
		case journal.KindTick:
			summary, err := ex.AdvanceTick()
			if err != nil {
				return err
			}
			if st != nil {
				return st.SaveTrades(ctx, summary.Trades)
			}
			return nil
		default:
			return fmt.Errorf("unknown journal record kind %d", rec.Kind)
		}
	})
}
