package portfolio

import (
	"container/heap"

	"backtest-lab/internal/domain"
)

// queuedEvent pairs a pending TradeEvent with its insertion sequence.
type queuedEvent struct {
	ev  *domain.TradeEvent
	seq uint64
}

// EventQueue is a binary min-heap of pending trade events keyed on
// (timestamp, insertion sequence). The explicit sequence makes the FIFO
// tie-break testable rather than incidental.
type EventQueue struct {
	items eventHeap
	seq   uint64
}

// NewEventQueue creates an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Push enqueues an event, assigning the next insertion sequence.
func (q *EventQueue) Push(ev *domain.TradeEvent) {
	heap.Push(&q.items, queuedEvent{ev: ev, seq: q.seq})
	q.seq++
}

// PopDue removes and returns the earliest event with timestamp <= ts,
// or nil when none is due.
func (q *EventQueue) PopDue(ts int64) *domain.TradeEvent {
	if len(q.items) == 0 || q.items[0].ev.TS > ts {
		return nil
	}
	return heap.Pop(&q.items).(queuedEvent).ev
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int { return len(q.items) }

// EntryLegs counts queued entry-class events.
func (q *EventQueue) EntryLegs() int {
	var n int
	for _, it := range q.items {
		if it.ev.IsEntry() {
			n++
		}
	}
	return n
}

// EntrySymbols returns the symbols of queued entry-class events.
func (q *EventQueue) EntrySymbols() map[string]struct{} {
	syms := make(map[string]struct{})
	for _, it := range q.items {
		if it.ev.IsEntry() {
			syms[it.ev.Symbol()] = struct{}{}
		}
	}
	return syms
}

type eventHeap []queuedEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].ev.TS != h[j].ev.TS {
		return h[i].ev.TS < h[j].ev.TS
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(queuedEvent)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}
