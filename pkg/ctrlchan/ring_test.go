package ctrlchan

import (
	"sync"
	"testing"
)

func TestRingPushPopFIFO(t *testing.T) {
	r := NewRing[int](4)
	for i := 0; i < 4; i++ {
		if !r.Push(i) {
			t.Fatalf("Push(%d) failed unexpectedly", i)
		}
	}
	if r.Push(4) {
		t.Fatal("Push should fail once the ring is full")
	}
	for i := 0; i < 4; i++ {
		v, ok := r.Pop()
		if !ok || v != i {
			t.Fatalf("Pop() = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
	if _, ok := r.Pop(); ok {
		t.Error("Pop on an empty ring should return false")
	}
}

func TestRingCapacityRoundsToPowerOfTwo(t *testing.T) {
	r := NewRing[int](5)
	if r.Cap() != 8 {
		t.Errorf("Cap() = %d, want 8", r.Cap())
	}
}

func TestRingConcurrentSPSC(t *testing.T) {
	r := NewRing[int](16)
	const n = 100000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !r.Push(i) {
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for {
				v, ok := r.Pop()
				if ok {
					if v != i {
						t.Errorf("out of order: got %d, want %d", v, i)
					}
					break
				}
			}
		}
	}()

	wg.Wait()
}

func TestChannelMessageRoundTrip(t *testing.T) {
	ch := NewChannel(8)
	if !ch.ToProcessor.Push(StopMsg{}) {
		t.Fatal("Push to ToProcessor failed")
	}
	msg, ok := ch.ToProcessor.Pop()
	if !ok {
		t.Fatal("Pop from ToProcessor failed")
	}
	if _, isStop := msg.(StopMsg); !isStop {
		t.Errorf("expected StopMsg, got %T", msg)
	}

	if !ch.ToController.Push(ProcessorDroppedMsg{}) {
		t.Fatal("Push to ToController failed")
	}
	back, ok := ch.ToController.Pop()
	if !ok {
		t.Fatal("Pop from ToController failed")
	}
	if _, isDropped := back.(ProcessorDroppedMsg); !isDropped {
		t.Errorf("expected ProcessorDroppedMsg, got %T", back)
	}
}
