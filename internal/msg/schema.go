package msg

// Topic names
const (
	TopicTrades = "exchange.trades"
	TopicTicks  = "exchange.ticks"
)

// TradeEventMsg represents one execution published downstream
type TradeEventMsg struct {
	EventID     string `json:"event_id"`
	TradeID     uint64 `json:"trade_id"`
	Instrument  string `json:"instrument"`
	BuyOrderID  uint64 `json:"buy_order_id"`
	SellOrderID uint64 `json:"sell_order_id"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	Sequence    uint64 `json:"sequence"`
	Tick        uint64 `json:"tick"`
}

// TickEventMsg represents one simulation clock advance
type TickEventMsg struct {
	EventID   string `json:"event_id"`
	Tick      uint64 `json:"tick"`
	NumQuotes int    `json:"num_quotes"`
	NumTrades int    `json:"num_trades"`
}
