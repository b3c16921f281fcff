// Package liquidity generates synthetic market-maker quotes at tick
// boundaries. The generator takes an explicit seeded random source so
// that a backtest replayed with the same seed injects bit-identical
// liquidity.
package liquidity

import "math/rand"

// Config parameterizes one instrument's synthetic maker.
type Config struct {
	// Mid is the starting mid price in ticks.
	Mid int64
	// HalfSpread is the distance from mid to each quoted side, in ticks.
	HalfSpread int64
	// Quantity quoted on each side per tick.
	Quantity int64
	// Walk bounds the per-tick random move of the mid price.
	Walk int64
	// Seed for the quote stream.
	Seed int64
}

// Maker produces one bid/ask quote pair per tick, random-walking the mid
// price. Not safe for concurrent use; the exchange calls it only while
// holding the instrument lock during a tick advance.
type Maker struct {
	rng        *rand.Rand
	mid        int64
	halfSpread int64
	quantity   int64
	walk       int64
}

// New builds a maker from cfg, applying floors so a degenerate config
// still quotes a valid uncrossed pair.
func New(cfg Config) *Maker {
	m := &Maker{
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		mid:        cfg.Mid,
		halfSpread: cfg.HalfSpread,
		quantity:   cfg.Quantity,
		walk:       cfg.Walk,
	}
	if m.halfSpread < 1 {
		m.halfSpread = 1
	}
	if m.quantity < 1 {
		m.quantity = 1
	}
	if m.mid <= m.halfSpread {
		m.mid = m.halfSpread + 1
	}
	return m
}

// Next advances the mid by one random-walk step and returns the new
// bid price, ask price, and quoted quantity.
func (m *Maker) Next() (bid, ask, qty int64) {
	if m.walk > 0 {
		m.mid += m.rng.Int63n(2*m.walk+1) - m.walk
	}
	if m.mid <= m.halfSpread {
		m.mid = m.halfSpread + 1
	}
	return m.mid - m.halfSpread, m.mid + m.halfSpread, m.quantity
}
