// Package exchange owns all mutable market state of the simulation: one
// order book and matching engine per instrument, the global order and
// trade sequence counters, and the discrete simulation clock.
//
// Per-instrument mutation is serialized by a per-instrument mutex;
// operations on different instruments run fully in parallel. Advancing
// the tick takes every instrument lock in sorted-symbol order, which
// makes the tick a barrier against all in-flight mutations without a
// global lock on the hot path.
package exchange

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"tickex/internal/book"
	"tickex/internal/engine"
	"tickex/internal/journal"
	"tickex/internal/liquidity"
	"tickex/internal/model"
)

// Recorder persists mutating requests before they execute. Satisfied by
// *journal.Journal.
type Recorder interface {
	Append(rec journal.Record) error
}

// InstrumentConfig declares one tradable instrument. Maker, when set,
// enables synthetic liquidity injection at tick boundaries.
type InstrumentConfig struct {
	Symbol string
	Maker  *liquidity.Config
}

// SubmitRequest is the input of a submit operation, before the exchange
// has assigned any identity to the order.
type SubmitRequest struct {
	Instrument string
	Side       model.Side
	Kind       model.OrderKind
	Price      int64
	Quantity   int64
}

// OrderAck reports the synchronous outcome of a submit: the assigned id,
// the trades the order produced, and the order's residual state.
type OrderAck struct {
	OrderID        uint64
	Trades         []model.Trade
	Status         model.OrderStatus
	FilledQuantity int64
	Tick           uint64
}

// CancelAck reports a cancel outcome. Cancelled false with a nil error
// means the order was already terminal: a race outcome the client
// reconciles, not a failure.
type CancelAck struct {
	OrderID   uint64
	Cancelled bool
}

// TickSummary reports one clock advance: the new tick, the synthetic
// quotes injected at the boundary, and any trades those quotes produced
// against resting orders.
type TickSummary struct {
	Tick   uint64
	Quotes []model.Quote
	Trades []model.Trade
}

// instrument bundles the per-symbol state guarded by its mutex.
type instrument struct {
	symbol string
	mu     sync.Mutex
	book   *book.Book
	engine *engine.Engine

	maker    *liquidity.Maker
	makerBid uint64 // resting synthetic order ids; zero when none
	makerAsk uint64
}

// orderRecord ties an order to the instrument whose lock guards it.
type orderRecord struct {
	order *model.Order
	inst  *instrument
}

// Exchange is the sole owner of all books, orders, and trades for its
// lifetime. External callers receive copies, never references into
// book state.
type Exchange struct {
	logger *zap.Logger

	orderSeq atomic.Uint64
	tradeSeq atomic.Uint64
	tick     atomic.Uint64

	instruments map[string]*instrument
	symbols     []string // sorted; also the tick-advance lock order

	// journal, when attached, receives every external mutating request.
	// seqMu pins journal append order, order id assignment, and trade
	// stamping to one global order; replay re-runs the journal in append
	// order and must come back with identical ids.
	journal Recorder
	seqMu   sync.Mutex

	ordersMu sync.RWMutex
	orders   map[uint64]*orderRecord

	tradesMu sync.Mutex
	trades   []model.Trade
}

// New builds an exchange over the given instruments.
func New(logger *zap.Logger, instruments []InstrumentConfig) (*Exchange, error) {
	if len(instruments) == 0 {
		return nil, fmt.Errorf("at least one instrument is required")
	}
	ex := &Exchange{
		logger:      logger,
		instruments: make(map[string]*instrument, len(instruments)),
		orders:      make(map[uint64]*orderRecord),
	}
	for _, cfg := range instruments {
		if cfg.Symbol == "" {
			return nil, fmt.Errorf("instrument symbol must not be empty")
		}
		if _, ok := ex.instruments[cfg.Symbol]; ok {
			return nil, fmt.Errorf("duplicate instrument %q", cfg.Symbol)
		}
		b := book.New(cfg.Symbol)
		inst := &instrument{
			symbol: cfg.Symbol,
			book:   b,
			engine: engine.New(b),
		}
		if cfg.Maker != nil {
			inst.maker = liquidity.New(*cfg.Maker)
		}
		ex.instruments[cfg.Symbol] = inst
		ex.symbols = append(ex.symbols, cfg.Symbol)
	}
	sort.Strings(ex.symbols)
	return ex, nil
}

// SetJournal attaches the request journal. Every subsequent external
// submit, cancel, and tick advance is appended before it executes.
// Attach after any replay has finished and before serving requests:
// replayed requests must not be re-journaled, and the field is not
// guarded against concurrent mutation.
func (ex *Exchange) SetJournal(j Recorder) {
	ex.journal = j
}

// CurrentTick returns the simulation clock's current value.
func (ex *Exchange) CurrentTick() uint64 {
	return ex.tick.Load()
}

// Instruments returns the configured symbols in sorted order.
func (ex *Exchange) Instruments() []string {
	out := make([]string, len(ex.symbols))
	copy(out, ex.symbols)
	return out
}

// Submit validates the request, assigns the order's id and sequence,
// matches it against the instrument's book, and returns the resulting
// trades and residual state synchronously within the current tick.
func (ex *Exchange) Submit(req SubmitRequest) (OrderAck, error) {
	if err := validate(req); err != nil {
		return OrderAck{}, err
	}
	inst, ok := ex.instruments[req.Instrument]
	if !ok {
		return OrderAck{}, fmt.Errorf("%w: %s", model.ErrUnknownInstrument, req.Instrument)
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	var rec *journal.Record
	if ex.journal != nil {
		rec = &journal.Record{
			Kind:       journal.KindSubmit,
			Instrument: req.Instrument,
			Side:       req.Side,
			OrderKind:  req.Kind,
			Price:      req.Price,
			Quantity:   req.Quantity,
		}
	}
	return ex.submitLocked(inst, req, rec)
}

// submitLocked runs the matching pass. Caller holds inst.mu. A non-nil
// rec is journaled before the order consumes an id; a failed append
// rejects the request so the journal never lags the live state.
func (ex *Exchange) submitLocked(inst *instrument, req SubmitRequest, rec *journal.Record) (OrderAck, error) {
	if ex.journal != nil {
		// Append order, id assignment, and trade stamping must agree
		// on one global order across instruments, or a replayed run
		// assigns different ids than the run that wrote the journal.
		ex.seqMu.Lock()
		defer ex.seqMu.Unlock()
		if rec != nil {
			if err := ex.journal.Append(*rec); err != nil {
				return OrderAck{}, fmt.Errorf("journal submit %s: %w", inst.symbol, err)
			}
		}
	}

	seq := ex.orderSeq.Add(1)
	o := &model.Order{
		ID:         seq,
		Instrument: req.Instrument,
		Side:       req.Side,
		Kind:       req.Kind,
		Price:      req.Price,
		Quantity:   req.Quantity,
		Sequence:   seq,
		Status:     model.StatusNew,
		Tick:       ex.tick.Load(),
	}

	ex.ordersMu.Lock()
	ex.orders[o.ID] = &orderRecord{order: o, inst: inst}
	ex.ordersMu.Unlock()

	trades, err := inst.engine.Match(o)
	if err != nil {
		ex.logger.Error("matching aborted on invariant violation",
			zap.String("instrument", inst.symbol),
			zap.Uint64("order_id", o.ID),
			zap.String("side", o.Side.String()),
			zap.String("kind", o.Kind.String()),
			zap.Int64("price", o.Price),
			zap.Int64("quantity", o.Quantity),
			zap.Int64("filled", o.FilledQuantity),
			zap.Error(err),
		)
		return OrderAck{}, fmt.Errorf("submit %s: %w", inst.symbol, err)
	}

	ex.stampTrades(trades, o.Tick)

	return OrderAck{
		OrderID:        o.ID,
		Trades:         trades,
		Status:         o.Status,
		FilledQuantity: o.FilledQuantity,
		Tick:           o.Tick,
	}, nil
}

// stampTrades assigns trade ids, sequences, and the processing tick, and
// appends the trades to the audit log.
func (ex *Exchange) stampTrades(trades []model.Trade, tick uint64) {
	if len(trades) == 0 {
		return
	}
	// Ids are assigned while holding the log lock so the audit log stays
	// ordered by sequence even under concurrent cross-instrument submits.
	ex.tradesMu.Lock()
	for i := range trades {
		id := ex.tradeSeq.Add(1)
		trades[i].ID = id
		trades[i].Sequence = id
		trades[i].Tick = tick
	}
	ex.trades = append(ex.trades, trades...)
	ex.tradesMu.Unlock()
}

// Cancel removes a resting order from its book. Cancelling an order that
// already reached a terminal status is reported as Cancelled=false with
// no error.
func (ex *Exchange) Cancel(orderID uint64) (CancelAck, error) {
	rec, err := ex.lookup(orderID)
	if err != nil {
		return CancelAck{}, err
	}

	rec.inst.mu.Lock()
	defer rec.inst.mu.Unlock()
	return ex.cancelLocked(rec, orderID, true)
}

// cancelLocked removes an active order. Caller holds rec.inst.mu. Only
// cancels that actually mutate the book are journaled; terminal-order
// cancels are no-ops and replay identically by their absence.
func (ex *Exchange) cancelLocked(rec *orderRecord, orderID uint64, record bool) (CancelAck, error) {
	o := rec.order
	if o.Status.Terminal() {
		return CancelAck{OrderID: orderID, Cancelled: false}, nil
	}
	if record && ex.journal != nil {
		if err := ex.journal.Append(journal.Record{Kind: journal.KindCancel, OrderID: orderID}); err != nil {
			return CancelAck{}, fmt.Errorf("journal cancel %d: %w", orderID, err)
		}
	}
	if _, ok := rec.inst.book.Remove(orderID); !ok {
		return CancelAck{}, fmt.Errorf("%w: active order %d missing from book %s",
			model.ErrInternal, orderID, rec.inst.symbol)
	}
	o.Status = model.StatusCancelled
	return CancelAck{OrderID: orderID, Cancelled: true}, nil
}

// AdvanceTick increments the simulation clock. While holding every
// instrument lock it re-quotes the synthetic makers, so injected
// liquidity is stamped with the new tick and no client operation can
// observe the advance half-applied. The clock itself cannot fail; a
// non-nil error means the journal append failed and the tick did not
// happen.
func (ex *Exchange) AdvanceTick() (TickSummary, error) {
	for _, sym := range ex.symbols {
		ex.instruments[sym].mu.Lock()
	}
	defer func() {
		for i := len(ex.symbols) - 1; i >= 0; i-- {
			ex.instruments[ex.symbols[i]].mu.Unlock()
		}
	}()

	// All instrument locks are held, so no submit or cancel can append
	// between this record and the increment.
	if ex.journal != nil {
		if err := ex.journal.Append(journal.Record{Kind: journal.KindTick}); err != nil {
			return TickSummary{}, fmt.Errorf("journal tick: %w", err)
		}
	}

	tick := ex.tick.Add(1)
	summary := TickSummary{Tick: tick}

	for _, sym := range ex.symbols {
		inst := ex.instruments[sym]
		if inst.maker == nil {
			continue
		}
		quote, trades, err := ex.requoteLocked(inst, tick)
		if err != nil {
			// requoteLocked already logged; a broken book stops
			// quoting this instrument but the clock still advances.
			continue
		}
		summary.Quotes = append(summary.Quotes, quote)
		summary.Trades = append(summary.Trades, trades...)
	}
	return summary, nil
}

// requoteLocked cancels the previous synthetic quotes and submits the
// next pair through the regular matching path. Caller holds inst.mu.
func (ex *Exchange) requoteLocked(inst *instrument, tick uint64) (model.Quote, []model.Trade, error) {
	ex.retireMakerOrder(inst, &inst.makerBid)
	ex.retireMakerOrder(inst, &inst.makerAsk)

	bid, ask, qty := inst.maker.Next()
	quote := model.Quote{
		Instrument: inst.symbol,
		Bid:        bid,
		BidQty:     qty,
		Ask:        ask,
		AskQty:     qty,
		Tick:       tick,
	}

	// Maker legs are not journaled: a replayed tick record regenerates
	// them from the seeded quote stream.
	var trades []model.Trade
	for _, leg := range []SubmitRequest{
		{Instrument: inst.symbol, Side: model.Buy, Kind: model.Limit, Price: bid, Quantity: qty},
		{Instrument: inst.symbol, Side: model.Sell, Kind: model.Limit, Price: ask, Quantity: qty},
	} {
		ack, err := ex.submitLocked(inst, leg, nil)
		if err != nil {
			return model.Quote{}, nil, err
		}
		trades = append(trades, ack.Trades...)
		if !ack.Status.Terminal() {
			if leg.Side == model.Buy {
				inst.makerBid = ack.OrderID
			} else {
				inst.makerAsk = ack.OrderID
			}
		}
	}
	return quote, trades, nil
}

func (ex *Exchange) retireMakerOrder(inst *instrument, id *uint64) {
	if *id == 0 {
		return
	}
	ex.ordersMu.RLock()
	rec := ex.orders[*id]
	ex.ordersMu.RUnlock()
	if rec != nil {
		// AlreadyTerminal is fine: the quote traded away since last tick.
		_, _ = ex.cancelLocked(rec, *id, false)
	}
	*id = 0
}

// Snapshot returns a consistent read-only view of the instrument's book
// at up to depth levels per side, as of the call.
func (ex *Exchange) Snapshot(instrumentID string, depth int) (model.BookView, error) {
	inst, ok := ex.instruments[instrumentID]
	if !ok {
		return model.BookView{}, fmt.Errorf("%w: %s", model.ErrUnknownInstrument, instrumentID)
	}
	if depth <= 0 {
		depth = 10
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()
	return model.BookView{
		Instrument: instrumentID,
		Bids:       inst.book.Depth(model.Buy, depth),
		Asks:       inst.book.Depth(model.Sell, depth),
		Tick:       ex.tick.Load(),
	}, nil
}

// OrderStatus returns a copy of the order's current state.
func (ex *Exchange) OrderStatus(orderID uint64) (model.Order, error) {
	rec, err := ex.lookup(orderID)
	if err != nil {
		return model.Order{}, err
	}
	rec.inst.mu.Lock()
	defer rec.inst.mu.Unlock()
	return *rec.order, nil
}

// Trades returns up to max trades with sequence greater than fromSeq, in
// sequence order. max <= 0 means no limit.
func (ex *Exchange) Trades(fromSeq uint64, max int) []model.Trade {
	ex.tradesMu.Lock()
	defer ex.tradesMu.Unlock()
	i := sort.Search(len(ex.trades), func(i int) bool { return ex.trades[i].Sequence > fromSeq })
	out := ex.trades[i:]
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	cp := make([]model.Trade, len(out))
	copy(cp, out)
	return cp
}

func (ex *Exchange) lookup(orderID uint64) (*orderRecord, error) {
	ex.ordersMu.RLock()
	rec, ok := ex.orders[orderID]
	ex.ordersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", model.ErrUnknownOrder, orderID)
	}
	return rec, nil
}

func validate(req SubmitRequest) error {
	if req.Quantity <= 0 {
		return fmt.Errorf("%w: got %d", model.ErrInvalidQuantity, req.Quantity)
	}
	if req.Kind == model.Limit && req.Price <= 0 {
		return fmt.Errorf("%w: got %d", model.ErrInvalidPrice, req.Price)
	}
	return nil
}
