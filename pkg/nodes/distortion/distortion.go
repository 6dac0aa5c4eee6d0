// Package distortion provides a waveshaping distortion node: a
// per-channel pkg/dsp/distortion.Waveshaper with patchable drive and
// dry/wet mix, wired the same way pkg/nodes/gain wires its smoothed gain
// parameter. The curve selection itself is not smoothed -- it is a
// discrete choice applied directly to the Waveshaper, the same way a
// filter node's mode switch would be.
package distortion

import (
	dspdistortion "github.com/firewheel-audio/firewheel-go/pkg/dsp/distortion"
	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/param"
	"github.com/firewheel-audio/firewheel-go/pkg/silence"
)

const (
	MinDrive = 1.0
	MaxDrive = 20.0
	MinMix   = 0.0
	MaxMix   = 1.0
)

// Curve mirrors dspdistortion.CurveType so callers outside pkg/dsp don't
// need to import it directly.
type Curve = dspdistortion.CurveType

const (
	CurveHardClip    = dspdistortion.CurveHardClip
	CurveSoftClip    = dspdistortion.CurveSoftClip
	CurveSaturate    = dspdistortion.CurveSaturate
	CurveFoldback    = dspdistortion.CurveFoldback
	CurveAsymmetric  = dspdistortion.CurveAsymmetric
	CurveSine        = dspdistortion.CurveSine
	CurveExponential = dspdistortion.CurveExponential
)

// Params is a distortion node's parameter snapshot: "drive" and "mix".
type Params struct {
	*param.Registry
}

// NewParams builds a Params snapshot defaulted to unity drive and fully
// wet mix.
func NewParams() *Params {
	r := param.NewRegistry()
	r.Add(param.NewParameter("drive", "Drive", MinDrive, MaxDrive, 1.0))
	r.Add(param.NewParameter("mix", "Mix", MinMix, MaxMix, 1.0))
	return &Params{Registry: r}
}

func (p *Params) Drive() float64     { return p.Get("drive").GetPlainValue() }
func (p *Params) SetDrive(d float64) { p.Get("drive").SetPlainValue(d) }
func (p *Params) Mix() float64       { return p.Get("mix").GetPlainValue() }
func (p *Params) SetMix(m float64)   { p.Get("mix").SetPlainValue(m) }

// Node is a smoothed multichannel waveshaper.
type Node struct {
	Params   *Params
	Channels int
	Curve    Curve
}

// New builds a distortion node for channels channels, starting at the
// given curve, drive, and mix.
func New(channels int, curve Curve, drive, mix float64) *Node {
	p := NewParams()
	p.SetDrive(drive)
	p.SetMix(mix)
	return &Node{Params: p, Channels: channels, Curve: curve}
}

// Config returns the node.Config this node declares at insertion time.
func (n *Node) Config(debugName string) node.Config {
	return node.Config{
		DebugName: debugName,
		ChannelConfig: node.ChannelConfig{
			NumInputs:  n.Channels,
			NumOutputs: n.Channels,
		},
		UsesEvents: true,
	}
}

// Factory builds the node.Factory for this node.
func (n *Node) Factory() node.Factory {
	initialDrive := n.Params.Drive()
	initialMix := n.Params.Mix()
	channels := n.Channels
	curve := n.Curve
	return func(info node.StreamInfo) (node.Processor, error) {
		sampleRate := float64(info.SampleRate)
		shapers := make([]*dspdistortion.Waveshaper, channels)
		for ch := range shapers {
			shapers[ch] = dspdistortion.NewWaveshaper(curve)
			shapers[ch].SetDrive(initialDrive)
			shapers[ch].SetMix(initialMix)
		}
		driveSmoother := param.NewSmoother(param.LinearSmoothing, 0.0)
		driveSmoother.Reset(initialDrive)
		driveSmoother.RateForTime(sampleRate, 0.02)
		return &processor{
			shapers:       shapers,
			driveSmoother: driveSmoother,
			mix:           initialMix,
			scratchIn:     make([]float64, info.MaxBlockFrames),
			scratchOut:    make([]float64, info.MaxBlockFrames),
		}, nil
	}
}

type processor struct {
	shapers       []*dspdistortion.Waveshaper
	driveSmoother *param.Smoother
	mix           float64
	scratchIn     []float64
	scratchOut    []float64
}

// Process drives every channel through its own Waveshaper. Drive is read
// from its smoother once per block, so a drive change advances one
// smoother step per block; mix is applied directly to each shaper once
// per block
// (the Waveshaper itself already blends dry/wet internally, so there is
// no audible benefit to smoothing it sample-by-sample here).
func (p *processor) Process(info node.ProcInfo, buffers node.ProcBuffers, events node.NodeEvents) node.ProcessStatus {
	for _, e := range events.Immediate {
		p.applyPatch(e.Payload)
	}
	for _, d := range events.Scheduled {
		p.applyPatch(d.Event.Payload)
	}

	n := len(buffers.Inputs)
	if len(buffers.Outputs) < n {
		n = len(buffers.Outputs)
	}
	if n == 0 {
		return node.ClearAllOutputs()
	}
	if info.InSilenceMask == silence.AllSilent(len(buffers.Inputs)) {
		return node.ClearAllOutputs()
	}

	drive := p.driveSmoother.Next()
	for ch := 0; ch < n; ch++ {
		p.shapers[ch].SetDrive(drive)
		p.shapers[ch].SetMix(p.mix)
	}

	in := p.scratchIn[:info.Frames]
	out := p.scratchOut[:info.Frames]
	for ch := 0; ch < n; ch++ {
		src := buffers.Inputs[ch]
		dst := buffers.Outputs[ch]
		for i := 0; i < info.Frames; i++ {
			in[i] = float64(src[i])
		}
		p.shapers[ch].ProcessBuffer(in, out)
		for i := 0; i < info.Frames; i++ {
			dst[i] = float32(out[i])
		}
	}

	return node.OutputsModified(silence.NoneSilent)
}

func (p *processor) applyPatch(payload any) {
	pp, ok := payload.(event.PatchPayload)
	if !ok {
		return
	}
	v, ok := pp.Data.(float64)
	if !ok {
		return
	}
	switch pp.Path {
	case "drive":
		p.driveSmoother.SetTarget(v)
	case "mix":
		p.mix = v
	}
}

func (p *processor) NewStream(info node.StreamInfo) {}
func (p *processor) StreamStopped()                 {}
