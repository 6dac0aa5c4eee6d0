package event

import (
	"sort"

	"github.com/firewheel-audio/firewheel-go/pkg/graph"
)

// ImmediateQueue holds events with no delivery time, populated at message
// intake and cleared at the end of every block. Events are grouped into
// contiguous per-node "clumps" so a node's linear scan over its own
// events stays short regardless of total queue size.
type ImmediateQueue struct {
	capacity int
	mode     OverflowMode

	events       []Event
	firstForNode map[graph.NodeId]int
	finalized    bool
}

// NewImmediateQueue builds a queue with the given capacity hint and
// overflow policy.
func NewImmediateQueue(capacity int, mode OverflowMode) *ImmediateQueue {
	return &ImmediateQueue{capacity: capacity, mode: mode, events: make([]Event, 0, capacity)}
}

// Push appends an event. Once capacity is reached, behavior follows the
// queue's OverflowMode: OverflowAllocate grows past the hint (the slice
// just reallocates, as it would for any over-cap append), OverflowPanic
// panics, and OverflowDrop returns ErrQueueFull without appending.
func (q *ImmediateQueue) Push(e Event) error {
	if len(q.events) >= q.capacity {
		switch q.mode {
		case OverflowPanic:
			panic("event: immediate queue capacity exceeded")
		case OverflowDrop:
			return ErrQueueFull
		}
	}
	q.events = append(q.events, e)
	q.finalized = false
	return nil
}

// Finalize groups the queue's events into contiguous per-node runs and
// records each node's first index. Must be called once after intake and
// before any EventsFor call for this block.
func (q *ImmediateQueue) Finalize() {
	sort.SliceStable(q.events, func(i, j int) bool {
		return q.events[i].Node.SortKey() < q.events[j].Node.SortKey()
	})
	q.firstForNode = make(map[graph.NodeId]int, len(q.events))
	for i, e := range q.events {
		if _, ok := q.firstForNode[e.Node]; !ok {
			q.firstForNode[e.Node] = i
		}
	}
	q.finalized = true
}

// EventsFor returns the contiguous run of events addressed to node. Must
// be called after Finalize.
func (q *ImmediateQueue) EventsFor(node graph.NodeId) []Event {
	if !q.finalized {
		return nil
	}
	start, ok := q.firstForNode[node]
	if !ok {
		return nil
	}
	end := start
	for end < len(q.events) && q.events[end].Node == node {
		end++
	}
	return q.events[start:end]
}

// Len reports how many events are currently queued.
func (q *ImmediateQueue) Len() int { return len(q.events) }

// Clear empties the queue for the next block.
func (q *ImmediateQueue) Clear() {
	q.events = q.events[:0]
	q.firstForNode = nil
	q.finalized = false
}
