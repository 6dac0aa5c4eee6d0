// Package declick provides the shared declick ramp table and the small
// per-parameter fade state machine nodes use to avoid discontinuities
// when enabling, disabling, or retargeting a smoothed value.
package declick

import "fmt"

// DefaultFadeSeconds is the ramp length used when a node doesn't specify
// its own declick_frames.
const DefaultFadeSeconds = 10.0 / 1000.0

// Table holds precomputed linear ramp values shared by every node in a
// stream. Building the ramp once avoids per-node allocation and keeps the
// fade itself SIMD-friendly (a plain multiply-accumulate over a slice)
// rather than a per-sample smoothing filter.
type Table struct {
	fade0to1 []float32
	fade1to0 []float32
}

// NewTable builds a ramp table of the given length in frames.
func NewTable(frames uint32) (*Table, error) {
	if frames == 0 {
		return nil, fmt.Errorf("declick: frames must be >= 1")
	}
	n := int(frames)
	recip := 1.0 / float32(n)

	up := make([]float32, n)
	down := make([]float32, n)
	for i := 0; i < n; i++ {
		up[i] = float32(i) * recip
		down[i] = float32(n-1-i) * recip
	}
	return &Table{fade0to1: up, fade1to0: down}, nil
}

// Frames reports the ramp length.
func (t *Table) Frames() int { return len(t.fade0to1) }

// state is the phase of a single Declicker's fade.
type state int

const (
	settledAt0 state = iota
	settledAt1
	fadingTo0
	fadingTo1
)

// Declicker is a per-parameter fade state machine: settled at 0 or 1, or
// fading between them over the shared Table's ramp length.
type Declicker struct {
	st          state
	samplesLeft int
}

// NewDeclicker returns a Declicker settled at 1 (the default: audible,
// unmuted), matching the contract's default-on behavior.
func NewDeclicker() *Declicker {
	return &Declicker{st: settledAt1}
}

// IsSettled reports whether the declicker is not mid-fade.
func (d *Declicker) IsSettled() bool {
	return d.st == settledAt0 || d.st == settledAt1
}

// FadeTo0 begins (or redirects) a fade toward silence.
func (d *Declicker) FadeTo0(t *Table) {
	switch d.st {
	case settledAt1:
		d.st = fadingTo0
		d.samplesLeft = t.Frames()
	case fadingTo1:
		if d.samplesLeft <= t.Frames() {
			d.samplesLeft = t.Frames() - d.samplesLeft
		} else {
			d.samplesLeft = t.Frames()
		}
		d.st = fadingTo0
	}
}

// FadeTo1 begins (or redirects) a fade toward full gain.
func (d *Declicker) FadeTo1(t *Table) {
	switch d.st {
	case settledAt0:
		d.st = fadingTo1
		d.samplesLeft = t.Frames()
	case fadingTo0:
		if d.samplesLeft <= t.Frames() {
			d.samplesLeft = t.Frames() - d.samplesLeft
		} else {
			d.samplesLeft = t.Frames()
		}
		d.st = fadingTo1
	}
}

// ResetTo0 snaps the declicker to the silent state without fading.
func (d *Declicker) ResetTo0() { d.st = settledAt0; d.samplesLeft = 0 }

// ResetTo1 snaps the declicker to full gain without fading.
func (d *Declicker) ResetTo1() { d.st = settledAt1; d.samplesLeft = 0 }

// Process applies the declicker's current fade (or settled state) to
// every buffer in place over buf[start:end], multiplying by gain in
// addition to the ramp. It never allocates and is safe to call from the
// processor.
func (d *Declicker) Process(buffers [][]float32, start, end int, t *Table, gain float32) {
	switch d.st {
	case settledAt0:
		for _, b := range buffers {
			for i := start; i < end; i++ {
				b[i] = 0
			}
		}
	case fadingTo0:
		processed := d.fade(buffers, start, end, t.fade1to0, t.Frames(), gain)
		if start+processed < end {
			for _, b := range buffers {
				for i := start + processed; i < end; i++ {
					b[i] = 0
				}
			}
		}
		if d.samplesLeft == 0 {
			d.st = settledAt0
		}
	case fadingTo1:
		processed := d.fade(buffers, start, end, t.fade0to1, t.Frames(), gain)
		if start+processed < end && gain != 1.0 {
			for _, b := range buffers {
				for i := start + processed; i < end; i++ {
					b[i] *= gain
				}
			}
		}
		if d.samplesLeft == 0 {
			d.st = settledAt1
		}
	default:
		if gain != 1.0 {
			for _, b := range buffers {
				for i := start; i < end; i++ {
					b[i] *= gain
				}
			}
		}
	}
}

// fade multiplies buffers[*][start:start+n] by values[startFrame:startFrame+n]
// (and by gain, when gain != 1) where n = min(end-start, samplesLeft), and
// returns n.
func (d *Declicker) fade(buffers [][]float32, start, end int, values []float32, totalFrames int, gain float32) int {
	bufferSamples := end - start
	process := bufferSamples
	if d.samplesLeft < process {
		process = d.samplesLeft
	}
	startFrame := totalFrames - d.samplesLeft

	if gain == 1.0 {
		for _, b := range buffers {
			for i := 0; i < process; i++ {
				b[start+i] *= values[startFrame+i]
			}
		}
	} else {
		for _, b := range buffers {
			for i := 0; i < process; i++ {
				b[start+i] *= values[startFrame+i] * gain
			}
		}
	}
	d.samplesLeft -= process
	return process
}
