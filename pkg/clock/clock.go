// Package clock provides the sample/second/musical time types shared by the
// rest of the audio graph core, plus the lock-free shared clock snapshot
// published by the processor and read by the controller.
package clock

import (
	"fmt"
	"math"
	"sync/atomic"
)

// SubbeatsPerBeat is the integer musical subdivision used when a
// fixed-point musical representation is needed.
const SubbeatsPerBeat = 1920

// SampleRate pairs a sample rate with its cached reciprocal so that
// samples<->seconds conversions never divide on the audio thread.
type SampleRate struct {
	Rate  uint32
	Recip float64
}

// NewSampleRate validates and builds a SampleRate. The rate must be >= 1.
func NewSampleRate(rate uint32) (SampleRate, error) {
	if rate < 1 {
		return SampleRate{}, fmt.Errorf("clock: sample rate must be >= 1, got %d", rate)
	}
	return SampleRate{Rate: rate, Recip: 1.0 / float64(rate)}, nil
}

// InstantSamples is an absolute point in time measured in samples.
type InstantSamples int64

// DurationSamples is a span of time measured in samples.
type DurationSamples int64

// InstantSeconds is an absolute point in time measured in seconds.
type InstantSeconds float64

// DurationSeconds is a span of time measured in seconds.
type DurationSeconds float64

// InstantMusical is an absolute point in musical time measured in beats.
type InstantMusical float64

// DurationMusical is a span of musical time measured in beats.
type DurationMusical float64

// MaxInstantSamples is the sentinel used for events that cannot currently
// be resolved to a sample instant (e.g. a musical-time event scheduled
// while no transport is active).
const MaxInstantSamples InstantSamples = math.MaxInt64

// ToSeconds converts a sample instant to seconds using the cached reciprocal.
func (s InstantSamples) ToSeconds(sr SampleRate) InstantSeconds {
	return InstantSeconds(float64(s) * sr.Recip)
}

// ToSamples converts a second instant to samples.
//
// samples = floor(seconds)*rate + round(fract(seconds)*rate)
func (s InstantSeconds) ToSamples(sr SampleRate) InstantSamples {
	whole := math.Floor(float64(s))
	fract := float64(s) - whole
	return InstantSamples(whole*float64(sr.Rate) + math.Round(fract*float64(sr.Rate)))
}

// ToSamples converts a duration in seconds to a duration in samples, using
// the same floor+round split as InstantSeconds.ToSamples.
func (d DurationSeconds) ToSamples(sr SampleRate) DurationSamples {
	whole := math.Floor(float64(d))
	fract := float64(d) - whole
	return DurationSamples(whole*float64(sr.Rate) + math.Round(fract*float64(sr.Rate)))
}

// ToSeconds converts a duration in samples to a duration in seconds.
func (d DurationSamples) ToSeconds(sr SampleRate) DurationSeconds {
	return DurationSeconds(float64(d) * sr.Recip)
}

// Add returns s+d, saturating at zero since InstantSamples is non-negative
// by construction in this core.
func (s InstantSamples) Add(d DurationSamples) InstantSamples {
	r := s + InstantSamples(d)
	if r < 0 {
		return 0
	}
	return r
}

// Sub returns the non-negative difference between two sample instants,
// saturating at zero when rhs is later than s.
func (s InstantSamples) Sub(rhs InstantSamples) DurationSamples {
	if rhs > s {
		return 0
	}
	return DurationSamples(s - rhs)
}

// Add returns s+d.
func (s InstantSeconds) Add(d DurationSeconds) InstantSeconds {
	r := s + InstantSeconds(d)
	if r < 0 {
		return 0
	}
	return r
}

// Sub returns the non-negative difference between two second instants.
func (s InstantSeconds) Sub(rhs InstantSeconds) DurationSeconds {
	if rhs > s {
		return 0
	}
	return DurationSeconds(s - rhs)
}

// Add returns m+d.
func (m InstantMusical) Add(d DurationMusical) InstantMusical {
	r := m + InstantMusical(d)
	if r < 0 {
		return 0
	}
	return r
}

// Sub returns the non-negative musical difference between two instants.
func (m InstantMusical) Sub(rhs InstantMusical) DurationMusical {
	if rhs > m {
		return 0
	}
	return DurationMusical(m - rhs)
}

// Beats returns the number of whole beats preceding m.
func (m InstantMusical) Beats() int64 {
	return int64(math.Floor(float64(m)))
}

// Subbeats packs the fractional part of m into sub-beat units
// (1 beat = SubbeatsPerBeat sub-beats).
func (m InstantMusical) Subbeats() int64 {
	whole := math.Floor(float64(m))
	fract := float64(m) - whole
	return int64(math.Round(fract * SubbeatsPerBeat))
}

// shared is the seqlock-guarded snapshot written once per block by the
// processor and read by the controller. clock_samples, the "has musical
// time" flag, the musical instant and transport_playing each live in
// their own atomic field; a single sequence counter protects a
// consistent multi-field read.
type shared struct {
	seq              atomic.Uint64
	clockSamples     atomic.Int64
	musicalValid     atomic.Bool
	musicalTime      atomic.Int64 // bits of float64 musical beats
	transportPlaying atomic.Bool
}

// Shared is a published snapshot of the processor's clock. Exactly one
// writer (the processor) calls Store once per block; any number of
// readers (the controller) call Load without blocking the writer.
type Shared struct {
	s *shared
}

// NewShared allocates a new shared clock snapshot.
func NewShared() Shared {
	return Shared{s: &shared{}}
}

// Snapshot is a consistent point-in-time read of the shared clock.
type Snapshot struct {
	ClockSamples     InstantSamples
	MusicalTime      InstantMusical
	HasMusicalTime   bool
	TransportPlaying bool
}

// Store publishes a new snapshot. Only the processor may call this.
func (sh Shared) Store(snap Snapshot) {
	sh.s.seq.Add(1) // odd: write in progress
	sh.s.clockSamples.Store(int64(snap.ClockSamples))
	sh.s.musicalValid.Store(snap.HasMusicalTime)
	sh.s.musicalTime.Store(int64(math.Float64bits(float64(snap.MusicalTime))))
	sh.s.transportPlaying.Store(snap.TransportPlaying)
	sh.s.seq.Add(1) // even: write complete
}

// Load reads the latest published snapshot. Safe to call concurrently
// with Store; readers never block the writer.
func (sh Shared) Load() Snapshot {
	for {
		seq1 := sh.s.seq.Load()
		if seq1%2 != 0 {
			continue
		}
		samples := sh.s.clockSamples.Load()
		valid := sh.s.musicalValid.Load()
		musicalBits := sh.s.musicalTime.Load()
		playing := sh.s.transportPlaying.Load()
		seq2 := sh.s.seq.Load()
		if seq1 == seq2 {
			return Snapshot{
				ClockSamples:     InstantSamples(samples),
				MusicalTime:      InstantMusical(math.Float64frombits(uint64(musicalBits))),
				HasMusicalTime:   valid,
				TransportPlaying: playing,
			}
		}
	}
}
