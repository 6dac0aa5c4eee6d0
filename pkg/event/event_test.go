package event

import (
	"testing"

	"github.com/firewheel-audio/firewheel-go/pkg/clock"
	"github.com/firewheel-audio/firewheel-go/pkg/graph"
)

func identityResolver(i EventInstant) clock.InstantSamples {
	switch i.Kind {
	case KindSamples:
		return i.Samples
	default:
		return clock.MaxInstantSamples
	}
}

func TestImmediateQueueGroupsIntoContiguousClumps(t *testing.T) {
	g := graph.New(0, 1)
	a, _ := g.AddNode("a", 0, 0)
	b, _ := g.AddNode("b", 0, 0)

	q := NewImmediateQueue(16, OverflowAllocate)
	q.Push(Event{Node: b, Payload: CustomPayload{Data: 1}})
	q.Push(Event{Node: a, Payload: CustomPayload{Data: 2}})
	q.Push(Event{Node: b, Payload: CustomPayload{Data: 3}})
	q.Finalize()

	aEvents := q.EventsFor(a)
	bEvents := q.EventsFor(b)
	if len(aEvents) != 1 {
		t.Fatalf("expected 1 event for node a, got %d", len(aEvents))
	}
	if len(bEvents) != 2 {
		t.Fatalf("expected 2 events for node b, got %d", len(bEvents))
	}
}

func TestImmediateQueueClearResetsState(t *testing.T) {
	g := graph.New(0, 1)
	a, _ := g.AddNode("a", 0, 0)

	q := NewImmediateQueue(4, OverflowAllocate)
	q.Push(Event{Node: a})
	q.Finalize()
	q.Clear()

	if q.Len() != 0 {
		t.Errorf("expected empty queue after Clear, got %d", q.Len())
	}
	if got := q.EventsFor(a); got != nil {
		t.Errorf("expected nil events after Clear, got %v", got)
	}
}

func TestImmediateQueueDropOverflow(t *testing.T) {
	g := graph.New(0, 1)
	a, _ := g.AddNode("a", 0, 0)

	q := NewImmediateQueue(1, OverflowDrop)
	if err := q.Push(Event{Node: a}); err != nil {
		t.Fatalf("first push should succeed: %v", err)
	}
	if err := q.Push(Event{Node: a}); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestScheduledArenaPopElapsedOrdersByTime(t *testing.T) {
	g := graph.New(0, 1)
	n, _ := g.AddNode("n", 0, 0)

	a := NewScheduledArena(16, OverflowAllocate)
	t200 := AtSamples(200)
	t50 := AtSamples(50)
	t100 := AtSamples(100)
	a.Insert(Event{Node: n, Time: &t200}, identityResolver)
	a.Insert(Event{Node: n, Time: &t50}, identityResolver)
	a.Insert(Event{Node: n, Time: &t100}, identityResolver)

	popped := a.PopElapsed(150)
	if len(popped) != 2 {
		t.Fatalf("expected 2 elapsed events at blockEnd=150, got %d", len(popped))
	}
	if popped[0].Samples != 50 || popped[1].Samples != 100 {
		t.Errorf("expected ascending order [50,100], got [%d,%d]", popped[0].Samples, popped[1].Samples)
	}
	if a.Len() != 1 {
		t.Errorf("expected 1 remaining scheduled event, got %d", a.Len())
	}
}

func TestScheduledEventDeliveredNoEarlierNoLater(t *testing.T) {
	g := graph.New(0, 1)
	n, _ := g.AddNode("n", 0, 0)

	a := NewScheduledArena(16, OverflowAllocate)
	tm := AtSamples(100)
	a.Insert(Event{Node: n, Time: &tm}, identityResolver)

	if popped := a.PopElapsed(100); len(popped) != 0 {
		t.Error("event at sample 100 must not be delivered in a block ending exactly at 100 (no earlier than its instant)")
	}
	if popped := a.PopElapsed(101); len(popped) != 1 {
		t.Error("event at sample 100 must be delivered in the block containing frame 100")
	}
}

func TestScheduledArenaRetimePreservesMusicalInstantAcrossTempoChange(t *testing.T) {
	g := graph.New(0, 1)
	n, _ := g.AddNode("n", 0, 0)

	a := NewScheduledArena(16, OverflowAllocate)
	musical := AtMusical(clock.InstantMusical(2))

	// 120bpm: 2 beats = 1s = 48000 samples at 48kHz.
	resolve120 := func(i EventInstant) clock.InstantSamples {
		if i.Kind == KindMusical {
			return clock.InstantSamples(float64(i.Musical) * 0.5 * 48000)
		}
		return i.Samples
	}
	a.Insert(Event{Node: n, Time: &musical}, resolve120)
	if popped := a.PopElapsed(48001); len(popped) != 1 {
		t.Fatalf("expected event resolved at 120bpm to elapse by sample 48001")
	}

	// Re-insert and retime at 60bpm: 2 beats = 2s = 96000 samples.
	a2 := NewScheduledArena(16, OverflowAllocate)
	a2.Insert(Event{Node: n, Time: &musical}, resolve120)
	resolve60 := func(i EventInstant) clock.InstantSamples {
		if i.Kind == KindMusical {
			return clock.InstantSamples(float64(i.Musical) * 1.0 * 48000)
		}
		return i.Samples
	}
	a2.Retime(resolve60)

	if popped := a2.PopElapsed(48001); len(popped) != 0 {
		t.Error("after retiming to 60bpm the event should no longer have elapsed at sample 48001")
	}
	if popped := a2.PopElapsed(96001); len(popped) != 1 {
		t.Error("after retiming to 60bpm the event should elapse by sample 96001 (same musical instant, new tempo)")
	}
}

func TestGroupByNodeFlagsFirstDeliveryPerNode(t *testing.T) {
	g := graph.New(0, 1)
	n, _ := g.AddNode("n", 0, 0)

	elapsed := []ElapsedEvent{
		{Event: Event{Node: n}, Samples: 10},
		{Event: Event{Node: n}, Samples: 20},
	}
	grouped := GroupByNode(elapsed)
	deliveries := grouped[n]
	if len(deliveries) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(deliveries))
	}
	if !deliveries[0].FirstForNode {
		t.Error("first delivery should be flagged FirstForNode")
	}
	if deliveries[1].FirstForNode {
		t.Error("second delivery should not be flagged FirstForNode")
	}
}
