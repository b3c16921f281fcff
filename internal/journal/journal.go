// Package journal records every mutating exchange request in an
// append-only pebble log before it executes. Because the core is
// deterministic, replaying the journal through a fresh exchange rebuilds
// the exact same books, orders, and trades after a restart.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"tickex/internal/model"
)

// Kind discriminates journal records.
type Kind uint8

const (
	KindSubmit Kind = iota + 1
	KindCancel
	KindTick
)

func (k Kind) String() string {
	switch k {
	case KindSubmit:
		return "SUBMIT"
	case KindCancel:
		return "CANCEL"
	case KindTick:
		return "TICK"
	default:
		return "UNKNOWN"
	}
}

// Record is one journaled request. Submit fields are only meaningful for
// KindSubmit, OrderID only for KindCancel.
type Record struct {
	Kind       Kind            `json:"-"`
	Instrument string          `json:"instrument,omitempty"`
	Side       model.Side      `json:"side,omitempty"`
	OrderKind  model.OrderKind `json:"order_kind,omitempty"`
	Price      int64           `json:"price,omitempty"`
	Quantity   int64           `json:"quantity,omitempty"`
	OrderID    uint64          `json:"order_id,omitempty"`
}

// Journal is an append-only request log. Safe for concurrent appends.
type Journal struct {
	db   *pebble.DB
	mu   sync.Mutex
	next uint64
}

// Open opens or creates a journal in dir and positions the write cursor
// after the last existing record.
func Open(dir string) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	j := &Journal{db: db}

	iter, err := db.NewIter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to scan journal: %w", err)
	}
	if iter.Last() && len(iter.Key()) == 8 {
		j.next = binary.BigEndian.Uint64(iter.Key()) + 1
	}
	if err := iter.Close(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to close journal iterator: %w", err)
	}

	return j, nil
}

// Len returns the index the next record will receive.
func (j *Journal) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.next
}

// Append writes one record durably before returning.
func (j *Journal) Append(rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode journal record: %w", err)
	}
	// value layout: [kind:1][json payload]
	value := make([]byte, 0, 1+len(payload))
	value = append(value, byte(rec.Kind))
	value = append(value, payload...)

	j.mu.Lock()
	defer j.mu.Unlock()
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], j.next)
	if err := j.db.Set(key[:], value, pebble.Sync); err != nil {
		return fmt.Errorf("failed to append journal record: %w", err)
	}
	j.next++
	return nil
}

// Replay calls fn for every record in append order. fn returning an
// error stops the replay.
func (j *Journal) Replay(fn func(Record) error) error {
	iter, err := j.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("failed to open journal iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		value := iter.Value()
		if len(value) < 1 {
			return fmt.Errorf("corrupt journal record at key %x", iter.Key())
		}
		rec := Record{Kind: Kind(value[0])}
		if err := json.Unmarshal(value[1:], &rec); err != nil {
			return fmt.Errorf("corrupt journal record at key %x: %w", iter.Key(), err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Close closes the underlying log.
func (j *Journal) Close() error {
	return j.db.Close()
}
