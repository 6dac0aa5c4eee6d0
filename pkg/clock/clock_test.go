package clock

import (
	"sync"
	"testing"
)

func TestSampleRateConversions(t *testing.T) {
	sr, err := NewSampleRate(48000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := InstantSeconds(1.5).ToSamples(sr); got != 72000 {
		t.Errorf("1.5s at 48kHz = %d, want 72000", got)
	}

	if got := InstantSamples(72000).ToSeconds(sr); got != 1.5 {
		t.Errorf("72000 samples at 48kHz = %f, want 1.5", float64(got))
	}
}

func TestNewSampleRateRejectsZero(t *testing.T) {
	if _, err := NewSampleRate(0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestInstantSamplesSaturates(t *testing.T) {
	a := InstantSamples(5)
	b := InstantSamples(10)
	if got := a.Sub(b); got != 0 {
		t.Errorf("5 - 10 should saturate to 0, got %d", got)
	}
}

func TestInstantMusicalBeatsSubbeats(t *testing.T) {
	m := InstantMusical(2.5)
	if m.Beats() != 2 {
		t.Errorf("Beats() = %d, want 2", m.Beats())
	}
	if got := m.Subbeats(); got != SubbeatsPerBeat/2 {
		t.Errorf("Subbeats() = %d, want %d", got, SubbeatsPerBeat/2)
	}
}

func TestSharedClockConcurrentReadWrite(t *testing.T) {
	sh := NewShared()
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10000; i++ {
			select {
			case <-done:
				return
			default:
			}
			snap := sh.Load()
			if snap.ClockSamples < 0 {
				t.Error("ClockSamples should never be negative")
			}
		}
	}()

	for i := InstantSamples(0); i < 1000; i++ {
		sh.Store(Snapshot{ClockSamples: i, MusicalTime: InstantMusical(i), HasMusicalTime: true, TransportPlaying: true})
	}
	close(done)
	wg.Wait()
}
