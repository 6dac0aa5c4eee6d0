// Package compressor provides a feed-forward dynamics-compression node:
// a per-channel pkg/dsp/dynamics.Compressor with a smoothed threshold
// and block-rate ratio/attack/release/makeup gain, wired the same way
// pkg/nodes/distortion wires its Waveshaper. Attack and release are not
// smoothed across a block boundary -- they're handed straight to the
// Compressor's own envelope.Detector, which already owns attack/release
// time-constant recalculation.
package compressor

import (
	dspdynamics "github.com/firewheel-audio/firewheel-go/pkg/dsp/dynamics"
	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/param"
	"github.com/firewheel-audio/firewheel-go/pkg/silence"
)

const (
	MinThresholdDb = -60.0
	MaxThresholdDb = 0.0
	MinRatio       = 1.0
	MaxRatio       = 20.0
	MinSeconds     = 0.0001
	MaxSeconds     = 1.0
	MinMakeupDb    = 0.0
	MaxMakeupDb    = 24.0
)

type Params struct {
	*param.Registry
}

func NewParams() *Params {
	r := param.NewRegistry()
	r.Add(param.NewParameter("threshold_db", "Threshold", MinThresholdDb, MaxThresholdDb, -20.0))
	r.Add(param.NewParameter("ratio", "Ratio", MinRatio, MaxRatio, 4.0))
	r.Add(param.NewParameter("attack", "Attack", MinSeconds, MaxSeconds, 0.005))
	r.Add(param.NewParameter("release", "Release", MinSeconds, MaxSeconds, 0.05))
	r.Add(param.NewParameter("makeup_db", "Makeup Gain", MinMakeupDb, MaxMakeupDb, 0.0))
	return &Params{Registry: r}
}

func (p *Params) ThresholdDb() float64      { return p.Get("threshold_db").GetPlainValue() }
func (p *Params) SetThresholdDb(v float64)  { p.Get("threshold_db").SetPlainValue(v) }
func (p *Params) Ratio() float64            { return p.Get("ratio").GetPlainValue() }
func (p *Params) SetRatio(v float64)        { p.Get("ratio").SetPlainValue(v) }
func (p *Params) Attack() float64           { return p.Get("attack").GetPlainValue() }
func (p *Params) SetAttack(v float64)       { p.Get("attack").SetPlainValue(v) }
func (p *Params) Release() float64          { return p.Get("release").GetPlainValue() }
func (p *Params) SetRelease(v float64)      { p.Get("release").SetPlainValue(v) }
func (p *Params) MakeupDb() float64         { return p.Get("makeup_db").GetPlainValue() }
func (p *Params) SetMakeupDb(v float64)     { p.Get("makeup_db").SetPlainValue(v) }

type Node struct {
	Params   *Params
	Channels int
}

func New(channels int, thresholdDb, ratio, attack, release, makeupDb float64) *Node {
	p := NewParams()
	p.SetThresholdDb(thresholdDb)
	p.SetRatio(ratio)
	p.SetAttack(attack)
	p.SetRelease(release)
	p.SetMakeupDb(makeupDb)
	return &Node{Params: p, Channels: channels}
}

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

func (n *Node) Factory() node.Factory {
	initialThreshold := n.Params.ThresholdDb()
	ratio := n.Params.Ratio()
	attack := n.Params.Attack()
	release := n.Params.Release()
	makeup := n.Params.MakeupDb()
	channels := n.Channels
	return func(info node.StreamInfo) (node.Processor, error) {
		sampleRate := float64(info.SampleRate)
		comps := make([]*dspdynamics.Compressor, channels)
		for ch := range comps {
			comps[ch] = dspdynamics.NewCompressor(sampleRate)
			comps[ch].SetThreshold(initialThreshold)
			comps[ch].SetRatio(ratio)
			comps[ch].SetAttack(attack)
			comps[ch].SetRelease(release)
			comps[ch].SetMakeupGain(makeup)
		}
		thresholdSmoother := param.NewSmoother(param.LinearSmoothing, 0.0)
		thresholdSmoother.Reset(initialThreshold)
		thresholdSmoother.RateForTime(sampleRate, 0.02)
		return &processor{
			comps:             comps,
			thresholdSmoother: thresholdSmoother,
			ratio:             ratio,
			attack:            attack,
			release:           release,
			makeup:            makeup,
		}, nil
	}
}

type processor struct {
	comps             []*dspdynamics.Compressor
	thresholdSmoother *param.Smoother
	ratio             float64
	attack            float64
	release           float64
	makeup            float64
}

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

	threshold := p.thresholdSmoother.Next()
	for ch := 0; ch < n; ch++ {
		c := p.comps[ch]
		c.SetThreshold(threshold)
		c.SetRatio(p.ratio)
		c.SetAttack(p.attack)
		c.SetRelease(p.release)
		c.SetMakeupGain(p.makeup)
		c.ProcessBuffer(buffers.Inputs[ch][:info.Frames], buffers.Outputs[ch][:info.Frames])
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
	case "threshold_db":
		p.thresholdSmoother.SetTarget(v)
	case "ratio":
		p.ratio = v
	case "attack":
		p.attack = v
	case "release":
		p.release = v
	case "makeup_db":
		p.makeup = v
	}
}

func (p *processor) NewStream(info node.StreamInfo) {}
func (p *processor) StreamStopped()                 {}
