package model

// Side is the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the side an order of this side matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderKind is the execution style of an order.
type OrderKind int

const (
	// Limit orders rest on the book until filled or cancelled.
	Limit OrderKind = iota
	// Market orders consume available liquidity immediately and never rest.
	Market
)

func (k OrderKind) String() string {
	switch k {
	case Limit:
		return "LIMIT"
	case Market:
		return "MARKET"
	default:
		return "UNKNOWN"
	}
}

// OrderStatus tracks the lifecycle of an order. Transitions are monotone:
// an order never returns to New after leaving it, and terminal statuses
// (Filled, Cancelled, Rejected) are final.
type OrderStatus int

const (
	StatusNew OrderStatus = iota
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
	StatusRejected
)

func (s OrderStatus) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether an order in this status can no longer change.
func (s OrderStatus) Terminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusRejected
}

// Order is a request to trade one instrument. Prices are integer ticks,
// quantities integer units. The exchange assigns ID and Sequence; callers
// outside the exchange only ever see copies.
type Order struct {
	ID             uint64
	Instrument     string
	Side           Side
	Kind           OrderKind
	Price          int64 // ticks; zero for market orders
	Quantity       int64
	FilledQuantity int64
	Sequence       uint64 // global insertion order, time-priority tie-break
	Status         OrderStatus
	Tick           uint64 // simulation tick at which the order was processed
}

// Remaining is the unfilled quantity.
func (o *Order) Remaining() int64 {
	return o.Quantity - o.FilledQuantity
}

// Fill consumes qty from the order's remaining quantity and moves the
// status forward. qty must not exceed Remaining.
func (o *Order) Fill(qty int64) {
	o.FilledQuantity += qty
	if o.FilledQuantity >= o.Quantity {
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartiallyFilled
	}
}

// Trade is one execution between a resting and an incoming order.
// Immutable once created. Price is always the resting order's price.
type Trade struct {
	ID          uint64 `json:"id"`
	Instrument  string `json:"instrument"`
	BuyOrderID  uint64 `json:"buy_order_id"`
	SellOrderID uint64 `json:"sell_order_id"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	Sequence    uint64 `json:"sequence"`
	Tick        uint64 `json:"tick"`
}

// Quote is a top-of-book bid/ask pair, used for synthetic liquidity
// injected at tick boundaries.
type Quote struct {
	Instrument string `json:"instrument"`
	Bid        int64  `json:"bid"`
	BidQty     int64  `json:"bid_qty"`
	Ask        int64  `json:"ask"`
	AskQty     int64  `json:"ask_qty"`
	Tick       uint64 `json:"tick"`
}

// BookLevel is the aggregate of one price level in a snapshot.
type BookLevel struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
	Orders   int   `json:"orders"`
}

// BookView is a consistent point-in-time snapshot of one book. Bids are
// ordered best (highest) first, asks best (lowest) first.
type BookView struct {
	Instrument string      `json:"instrument"`
	Bids       []BookLevel `json:"bids"`
	Asks       []BookLevel `json:"asks"`
	Tick       uint64      `json:"tick"`
}
