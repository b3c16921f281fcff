package book

import "tickex/internal/model"

// entry is one resting order's position inside a price level queue.
// Entries form an intrusive doubly-linked FIFO so that cancellation is an
// O(1) unlink instead of a slice scan.
type entry struct {
	order *model.Order
	level *level
	prev  *entry
	next  *entry
}

// level is one price point with its time-ordered queue of resting orders.
// totalQty tracks the sum of remaining quantities of queued orders.
type level struct {
	price    int64
	head     *entry
	tail     *entry
	totalQty int64
	count    int
}

func (l *level) enqueue(e *entry) {
	e.level = l
	if l.head == nil {
		l.head = e
		l.tail = e
	} else {
		l.tail.next = e
		e.prev = l.tail
		l.tail = e
	}
	l.totalQty += e.order.Remaining()
	l.count++
}

// unlink removes e from the queue. The remaining quantity still carried by
// the order is deducted here, so partial fills must be accounted through
// reduce before the final unlink.
func (l *level) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.prev = nil
	e.next = nil
	l.totalQty -= e.order.Remaining()
	l.count--
}

func (l *level) reduce(qty int64) {
	l.totalQty -= qty
}

func (l *level) empty() bool {
	return l.count == 0
}
