package event

import (
	"sort"

	"github.com/firewheel-audio/firewheel-go/pkg/clock"
	"github.com/firewheel-audio/firewheel-go/pkg/graph"
)

// ScheduledHandle names a single entry in a ScheduledArena, stable until
// the entry is removed or elapses.
type ScheduledHandle struct {
	index uint32
	gen   uint32
}

type scheduledSlot struct {
	gen     uint32
	live    bool
	event   Event
	instant EventInstant
	samples clock.InstantSamples
}

type sortedEntry struct {
	handle  ScheduledHandle
	samples clock.InstantSamples
}

// ScheduledArena is a slab of scheduled events with a free-list, kept
// alongside a sample-time-ordered index so the processor can pop elapsed
// entries in O(elapsed) per block.
type ScheduledArena struct {
	capacity int
	mode     OverflowMode

	slots  []scheduledSlot
	free   []uint32
	sorted []sortedEntry
}

// NewScheduledArena builds an arena with the given capacity hint and
// overflow policy.
func NewScheduledArena(capacity int, mode OverflowMode) *ScheduledArena {
	return &ScheduledArena{capacity: capacity, mode: mode}
}

// Len reports how many entries are currently live (not yet elapsed or removed).
func (a *ScheduledArena) Len() int { return len(a.sorted) }

func (a *ScheduledArena) liveCount() int {
	return len(a.slots) - len(a.free)
}

// Insert resolves e's time to an absolute sample instant via resolve and
// inserts it into the arena in sample-time order. e.Time must be non-nil.
func (a *ScheduledArena) Insert(e Event, resolve Resolver) (ScheduledHandle, error) {
	if a.liveCount() >= a.capacity {
		switch a.mode {
		case OverflowPanic:
			panic("event: scheduled arena capacity exceeded")
		case OverflowDrop:
			return ScheduledHandle{}, ErrQueueFull
		}
	}

	samples := resolve(*e.Time)

	var idx uint32
	if len(a.free) > 0 {
		idx = a.free[len(a.free)-1]
		a.free = a.free[:len(a.free)-1]
		a.slots[idx] = scheduledSlot{gen: a.slots[idx].gen, live: true, event: e, instant: *e.Time, samples: samples}
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, scheduledSlot{gen: 0, live: true, event: e, instant: *e.Time, samples: samples})
	}

	handle := ScheduledHandle{index: idx, gen: a.slots[idx].gen}
	a.insertSorted(sortedEntry{handle: handle, samples: samples})
	return handle, nil
}

func (a *ScheduledArena) insertSorted(entry sortedEntry) {
	i := sort.Search(len(a.sorted), func(i int) bool { return a.sorted[i].samples >= entry.samples })
	a.sorted = append(a.sorted, sortedEntry{})
	copy(a.sorted[i+1:], a.sorted[i:])
	a.sorted[i] = entry
}

// Remove drops an entry before it elapses. Returns false if the handle is stale.
func (a *ScheduledArena) Remove(h ScheduledHandle) bool {
	if int(h.index) >= len(a.slots) {
		return false
	}
	slot := &a.slots[h.index]
	if !slot.live || slot.gen != h.gen {
		return false
	}
	a.removeSorted(h)
	slot.live = false
	slot.gen++
	a.free = append(a.free, h.index)
	return true
}

func (a *ScheduledArena) removeSorted(h ScheduledHandle) {
	for i, e := range a.sorted {
		if e.handle == h {
			a.sorted = append(a.sorted[:i], a.sorted[i+1:]...)
			return
		}
	}
}

// Retime recomputes the sample instant of every musical-time entry using
// resolve (called after a transport change) and resorts the index.
func (a *ScheduledArena) Retime(resolve Resolver) {
	changed := false
	for i := range a.slots {
		slot := &a.slots[i]
		if !slot.live || slot.instant.Kind != KindMusical {
			continue
		}
		slot.samples = resolve(slot.instant)
		changed = true
	}
	if !changed {
		return
	}
	a.sorted = a.sorted[:0]
	for i := range a.slots {
		if !a.slots[i].live {
			continue
		}
		a.insertSorted(sortedEntry{handle: ScheduledHandle{index: uint32(i), gen: a.slots[i].gen}, samples: a.slots[i].samples})
	}
}

// ElapsedEvent is one scheduled event popped out of the arena because its
// time has passed.
type ElapsedEvent struct {
	Event   Event
	Samples clock.InstantSamples
}

// PopElapsed removes and returns every entry whose resolved sample
// instant is strictly less than blockEndSamples, in ascending time order.
func (a *ScheduledArena) PopElapsed(blockEndSamples clock.InstantSamples) []ElapsedEvent {
	i := 0
	for i < len(a.sorted) && a.sorted[i].samples < blockEndSamples {
		i++
	}
	if i == 0 {
		return nil
	}
	popped := a.sorted[:i]
	a.sorted = a.sorted[i:]

	out := make([]ElapsedEvent, 0, len(popped))
	for _, p := range popped {
		slot := &a.slots[p.handle.index]
		out = append(out, ElapsedEvent{Event: slot.event, Samples: p.samples})
		slot.live = false
		slot.gen++
		a.free = append(a.free, p.handle.index)
	}
	return out
}

// NodeDelivery is one scheduled event delivered to a specific node within
// the current block, flagged for whether it is the first delivery for
// that node this block (the sub-chunk split driver).
type NodeDelivery struct {
	Event        Event
	Samples      clock.InstantSamples
	FirstForNode bool
}

// GroupByNode partitions a batch of elapsed events by target node,
// tagging the first entry per node so the processor knows where each
// node's sub-chunk walk must begin.
func GroupByNode(events []ElapsedEvent) map[graph.NodeId][]NodeDelivery {
	out := make(map[graph.NodeId][]NodeDelivery)
	seen := make(map[graph.NodeId]bool)
	for _, ev := range events {
		nd := NodeDelivery{Event: ev.Event, Samples: ev.Samples, FirstForNode: !seen[ev.Event.Node]}
		seen[ev.Event.Node] = true
		out[ev.Event.Node] = append(out[ev.Event.Node], nd)
	}
	return out
}
