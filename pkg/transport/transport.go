// Package transport implements the musical-time transport subsystem (C2):
// static and piecewise-tempo transports, and the per-block timing
// resolution (playhead, loop, stop-at, keyframe truncation) the processor
// consults once per inner block.
package transport

import (
	"fmt"
	"math"

	"github.com/firewheel-audio/firewheel-go/pkg/clock"
)

// SecondsPerBeat returns 60/bpm.
func SecondsPerBeat(bpm float64) float64 { return 60.0 / bpm }

// BeatsPerSecond returns bpm/60.
func BeatsPerSecond(bpm float64) float64 { return bpm / 60.0 }

// ProcInfo describes the tempo in effect for a contiguous run of frames
// within a processing block.
type ProcInfo struct {
	// Frames is how many frames this tempo information covers before it
	// changes (may be less than the block requested, e.g. at a keyframe
	// boundary).
	Frames int
	// BPM is the tempo at the first frame of this run.
	BPM float64
	// DeltaBPMPerFrame is the rate at which BPM changes each frame. This
	// core's transports are all piecewise-constant, so this is always 0;
	// the field exists so a future linearly-automated transport variant
	// can be added without changing the contract.
	DeltaBPMPerFrame float64
}

// BPMAtFrame returns the bpm at the given frame offset, or false if frame
// is outside this ProcInfo's coverage.
func (p ProcInfo) BPMAtFrame(frame int) (float64, bool) {
	if frame < 0 || frame >= p.Frames {
		return 0, false
	}
	return p.BPM + p.DeltaBPMPerFrame*float64(frame), true
}

// MusicalTransport maps between musical, second, and sample timelines.
// Static and Piecewise are the two variants; both satisfy this interface
// in place of source-language trait-object dispatch.
type MusicalTransport interface {
	MusicalToSeconds(musical clock.InstantMusical, transportStart clock.InstantSeconds) clock.InstantSeconds
	MusicalToSamples(musical clock.InstantMusical, transportStart clock.InstantSamples, sr clock.SampleRate) clock.InstantSamples
	SecondsToMusical(seconds, transportStart clock.InstantSeconds) clock.InstantMusical
	SamplesToMusical(sampleTime, transportStart clock.InstantSamples, sr clock.SampleRate) clock.InstantMusical
	BPMAt(musical clock.InstantMusical) float64
	ProcTransportInfo(frames int, playhead clock.InstantMusical, sr clock.SampleRate) ProcInfo
	// TransportStart returns the transport-start sample instant such that
	// the playhead at sample instant `now` equals `playhead`.
	TransportStart(now clock.InstantSamples, playhead clock.InstantMusical, sr clock.SampleRate) clock.InstantSamples
}

// Static is a musical transport with a single fixed tempo.
type Static struct {
	BPM float64
}

// NewStatic builds a Static transport, defaulting to 110 BPM like the
// reference transport when bpm <= 0.
func NewStatic(bpm float64) Static {
	if bpm <= 0 {
		bpm = 110.0
	}
	return Static{BPM: bpm}
}

func (s Static) MusicalToSeconds(musical clock.InstantMusical, transportStart clock.InstantSeconds) clock.InstantSeconds {
	return transportStart.Add(clock.DurationSeconds(float64(musical) * SecondsPerBeat(s.BPM)))
}

func (s Static) MusicalToSamples(musical clock.InstantMusical, transportStart clock.InstantSamples, sr clock.SampleRate) clock.InstantSamples {
	d := clock.DurationSeconds(float64(musical) * SecondsPerBeat(s.BPM)).ToSamples(sr)
	return transportStart.Add(d)
}

func (s Static) SecondsToMusical(seconds, transportStart clock.InstantSeconds) clock.InstantMusical {
	return clock.InstantMusical(float64(seconds.Sub(transportStart)) * BeatsPerSecond(s.BPM))
}

func (s Static) SamplesToMusical(sampleTime, transportStart clock.InstantSamples, sr clock.SampleRate) clock.InstantMusical {
	secs := sampleTime.Sub(transportStart).ToSeconds(sr)
	return clock.InstantMusical(float64(secs) * BeatsPerSecond(s.BPM))
}

func (s Static) BPMAt(clock.InstantMusical) float64 { return s.BPM }

func (s Static) ProcTransportInfo(frames int, _ clock.InstantMusical, _ clock.SampleRate) ProcInfo {
	return ProcInfo{Frames: frames, BPM: s.BPM, DeltaBPMPerFrame: 0}
}

func (s Static) TransportStart(now clock.InstantSamples, playhead clock.InstantMusical, sr clock.SampleRate) clock.InstantSamples {
	d := clock.DurationSeconds(float64(playhead) * SecondsPerBeat(s.BPM)).ToSamples(sr)
	return now.Add(-clock.DurationSamples(d))
}

// Keyframe is a single tempo segment of a Piecewise transport: a BPM that
// holds for Duration beats before jumping (not ramping) to the next
// keyframe's BPM.
type Keyframe struct {
	BPM      float64
	Duration clock.DurationMusical
}

type keyframeCache struct {
	startMusical clock.InstantMusical
	startSeconds clock.DurationSeconds
}

// Piecewise is a musical transport with an ordered sequence of tempo
// keyframes. Lookup is linear in the number of keyframes; the contract
// permits a binary search implementation (see DESIGN.md open question).
type Piecewise struct {
	keyframes []Keyframe
	cache     []keyframeCache
}

// NewPiecewise builds a Piecewise transport from an ordered, non-empty
// keyframe list and precomputes the per-keyframe start-time cache.
func NewPiecewise(keyframes []Keyframe) (*Piecewise, error) {
	if len(keyframes) == 0 {
		return nil, fmt.Errorf("transport: piecewise transport requires at least one keyframe")
	}
	p := &Piecewise{keyframes: append([]Keyframe(nil), keyframes...)}
	p.computeCache()
	return p, nil
}

// EditKeyframes replaces the keyframe list and recomputes the cache.
func (p *Piecewise) EditKeyframes(keyframes []Keyframe) error {
	if len(keyframes) == 0 {
		return fmt.Errorf("transport: piecewise transport requires at least one keyframe")
	}
	p.keyframes = append([]Keyframe(nil), keyframes...)
	p.computeCache()
	return nil
}

func (p *Piecewise) computeCache() {
	p.cache = make([]keyframeCache, len(p.keyframes))
	startMusical := clock.InstantMusical(0)
	startSeconds := clock.DurationSeconds(0)
	for i, kf := range p.keyframes {
		p.cache[i] = keyframeCache{startMusical: startMusical, startSeconds: startSeconds}
		startMusical = startMusical.Add(clock.DurationMusical(kf.Duration))
		startSeconds += clock.DurationSeconds(float64(kf.Duration) * SecondsPerBeat(kf.BPM))
	}
}

func (p *Piecewise) musicalToSecondsInner(musical clock.InstantMusical) clock.DurationSeconds {
	// TODO: switch to binary search once keyframe counts get large.
	for i := 1; i < len(p.keyframes); i++ {
		if musical < p.cache[i].startMusical {
			prev := p.cache[i-1]
			return prev.startSeconds + clock.DurationSeconds(float64(musical.Sub(prev.startMusical))*SecondsPerBeat(p.keyframes[i-1].BPM))
		}
	}
	last := len(p.keyframes) - 1
	lastCache := p.cache[last]
	return lastCache.startSeconds + clock.DurationSeconds(float64(musical.Sub(lastCache.startMusical))*SecondsPerBeat(p.keyframes[last].BPM))
}

func (p *Piecewise) secondsToMusicalInner(seconds clock.DurationSeconds) clock.InstantMusical {
	for i := 1; i < len(p.keyframes); i++ {
		if seconds < p.cache[i].startSeconds {
			prev := p.cache[i-1]
			return prev.startMusical.Add(clock.DurationMusical(float64(seconds-prev.startSeconds) * BeatsPerSecond(p.keyframes[i-1].BPM)))
		}
	}
	last := len(p.keyframes) - 1
	lastCache := p.cache[last]
	return lastCache.startMusical.Add(clock.DurationMusical(float64(seconds-lastCache.startSeconds) * BeatsPerSecond(p.keyframes[last].BPM)))
}

func (p *Piecewise) MusicalToSeconds(musical clock.InstantMusical, transportStart clock.InstantSeconds) clock.InstantSeconds {
	return transportStart.Add(p.musicalToSecondsInner(musical))
}

func (p *Piecewise) MusicalToSamples(musical clock.InstantMusical, transportStart clock.InstantSamples, sr clock.SampleRate) clock.InstantSamples {
	return transportStart.Add(clock.DurationSamples(p.musicalToSecondsInner(musical).ToSamples(sr)))
}

func (p *Piecewise) SecondsToMusical(seconds, transportStart clock.InstantSeconds) clock.InstantMusical {
	return p.secondsToMusicalInner(seconds.Sub(transportStart))
}

func (p *Piecewise) SamplesToMusical(sampleTime, transportStart clock.InstantSamples, sr clock.SampleRate) clock.InstantMusical {
	return p.secondsToMusicalInner(sampleTime.Sub(transportStart).ToSeconds(sr))
}

func (p *Piecewise) BPMAt(musical clock.InstantMusical) float64 {
	for i := 1; i < len(p.keyframes); i++ {
		if musical < p.cache[i].startMusical {
			return p.keyframes[i-1].BPM
		}
	}
	return p.keyframes[len(p.keyframes)-1].BPM
}

func (p *Piecewise) ProcTransportInfo(frames int, playhead clock.InstantMusical, sr clock.SampleRate) ProcInfo {
	for i := 1; i < len(p.keyframes); i++ {
		if playhead < p.cache[i].startMusical {
			framesLeft := clock.DurationSeconds(float64(p.cache[i].startMusical.Sub(playhead)) * SecondsPerBeat(p.keyframes[i-1].BPM)).ToSamples(sr)
			if int(framesLeft) < frames {
				frames = int(framesLeft)
			}
			return ProcInfo{Frames: frames, BPM: p.keyframes[i-1].BPM, DeltaBPMPerFrame: 0}
		}
	}
	return ProcInfo{Frames: frames, BPM: p.keyframes[len(p.keyframes)-1].BPM, DeltaBPMPerFrame: 0}
}

func (p *Piecewise) TransportStart(now clock.InstantSamples, playhead clock.InstantMusical, sr clock.SampleRate) clock.InstantSamples {
	d := p.musicalToSecondsInner(playhead).ToSamples(sr)
	return now.Add(-clock.DurationSamples(d))
}

// LoopRange is a half-open musical range [Start, End) the transport loops
// within once Playing and LoopRange are both set.
type LoopRange struct {
	Start, End clock.InstantMusical
}

// State is the externally visible state of the musical transport.
type State struct {
	Transport MusicalTransport // nil means no transport is active
	Playing   bool
	Playhead  clock.InstantMusical
	StopAt    *clock.InstantMusical // ignored when LoopRange is set
	LoopRange *LoopRange
}

// BlockInfo is what the processor resolves once per inner block from the
// transport runner: how many frames this tempo/loop/stop regime covers,
// and the tempo information to hand to nodes via ProcInfo.
type BlockInfo struct {
	Frames  int
	Playing bool
	Tempo   ProcInfo
}

// Runner tracks the running transport-start offset and executes the
// per-block resolution algorithm described in the transport component
// design: playhead derivation, loop rebinding, stop-at, and frame
// truncation at tempo/loop/stop boundaries.
type Runner struct {
	sr             clock.SampleRate
	state          State
	transportStart clock.InstantSamples
	pausedPlayhead *clock.InstantMusical
}

// NewRunner creates a transport runner for the given sample rate.
func NewRunner(sr clock.SampleRate) *Runner {
	return &Runner{sr: sr}
}

// SetState installs a new transport state. If playback is starting (was
// stopped, now playing) the transport-start offset is rebuilt from the
// playhead snapshotted at the last pause, or from the requested playhead
// when there is no snapshot; if it was already playing the
// transport-start is rebuilt from the requested playhead in the new
// state. Stopping snapshots the current playhead.
func (r *Runner) SetState(now clock.InstantSamples, s State) {
	wasPlaying := r.state.Playing
	r.state = s
	if s.Transport == nil {
		return
	}
	switch {
	case s.Playing && !wasPlaying:
		// Resuming: recompute transport-start from the (possibly paused)
		// playhead snapshot so musical time continues smoothly.
		playhead := s.Playhead
		if r.pausedPlayhead != nil {
			playhead = *r.pausedPlayhead
		}
		r.transportStart = s.Transport.TransportStart(now, playhead, r.sr)
		r.pausedPlayhead = nil
	case !s.Playing && wasPlaying:
		playhead := s.Transport.SamplesToMusical(now, r.transportStart, r.sr)
		r.pausedPlayhead = &playhead
	case s.Playing && wasPlaying:
		r.transportStart = s.Transport.TransportStart(now, s.Playhead, r.sr)
	}
}

// Advance resolves the tempo/loop/stop regime in effect for the next
// chunk of at most requestedFrames frames starting at sample instant now.
func (r *Runner) Advance(now clock.InstantSamples, requestedFrames int) BlockInfo {
	if r.state.Transport == nil || !r.state.Playing {
		return BlockInfo{Frames: requestedFrames, Playing: false}
	}

	t := r.state.Transport
	playhead := t.SamplesToMusical(now, r.transportStart, r.sr)

	if r.state.LoopRange != nil {
		loopEndSamples := t.MusicalToSamples(r.state.LoopRange.End, r.transportStart, r.sr)
		if now >= loopEndSamples {
			r.transportStart = t.TransportStart(now, r.state.LoopRange.Start, r.sr)
			playhead = r.state.LoopRange.Start
		}
	} else if r.state.StopAt != nil {
		stopSamples := t.MusicalToSamples(*r.state.StopAt, r.transportStart, r.sr)
		if now >= stopSamples {
			r.state.Playing = false
			return BlockInfo{Frames: requestedFrames, Playing: false}
		}
	}

	frames := requestedFrames
	tempo := t.ProcTransportInfo(frames, playhead, r.sr)
	if tempo.Frames < frames {
		frames = tempo.Frames
	}

	if r.state.LoopRange != nil {
		loopEndSamples := t.MusicalToSamples(r.state.LoopRange.End, r.transportStart, r.sr)
		if framesUntilLoopEnd := int(loopEndSamples.Sub(now)); framesUntilLoopEnd < frames {
			frames = framesUntilLoopEnd
		}
	} else if r.state.StopAt != nil {
		stopSamples := t.MusicalToSamples(*r.state.StopAt, r.transportStart, r.sr)
		if framesUntilStop := int(stopSamples.Sub(now)); framesUntilStop < frames {
			frames = framesUntilStop
		}
	}

	if frames <= 0 {
		frames = 1
	}

	tempo.Frames = frames
	return BlockInfo{Frames: frames, Playing: true, Tempo: tempo}
}

// Playhead returns the current musical playhead derived from the sample
// clock, without mutating runner state.
func (r *Runner) Playhead(now clock.InstantSamples) clock.InstantMusical {
	if r.state.Transport == nil {
		return 0
	}
	return r.state.Transport.SamplesToMusical(now, r.transportStart, r.sr)
}

// TransportStart exposes the current transport-start sample offset, used
// by the event scheduler to convert musical-time events to samples.
func (r *Runner) TransportStart() clock.InstantSamples {
	return r.transportStart
}

// State returns the runner's current transport state.
func (r *Runner) State() State {
	return r.state
}

var _ = math.MaxInt64 // referenced for documentation parity with clock.MaxInstantSamples
