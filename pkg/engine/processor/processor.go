// Package processor implements the realtime side of the engine (C8): the
// process_interleaved entry point the audio driver calls once per
// device block. It owns the active schedule, the per-node processor
// instances, the transport runner, and the event queues, and drains its
// control channel at the top of every call.
package processor

import (
	"github.com/firewheel-audio/firewheel-go/pkg/bufferpool"
	"github.com/firewheel-audio/firewheel-go/pkg/clock"
	"github.com/firewheel-audio/firewheel-go/pkg/ctrlchan"
	"github.com/firewheel-audio/firewheel-go/pkg/dsp/debug"
	"github.com/firewheel-audio/firewheel-go/pkg/dsp/declick"
	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/graph"
	"github.com/firewheel-audio/firewheel-go/pkg/graph/compiler"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"github.com/firewheel-audio/firewheel-go/pkg/silence"
	"github.com/firewheel-audio/firewheel-go/pkg/transport"
)

// Result is the outcome of one process_interleaved call.
type Result int

const (
	Ok Result = iota
	DropProcessor
)

// Config configures a Processor at stream start. Everything here is
// decided off the audio thread, either at construction or on a later
// new_stream call.
type Config struct {
	SampleRate       clock.SampleRate
	MaxBlockFrames   int
	NumGraphInputs   int
	NumGraphOutputs  int
	HardClipOutputs  bool
	EventCapacity    int
	OverflowMode     event.OverflowMode
	DeclickFrames    uint32
	Clock            clock.Shared
	Channel          *ctrlchan.Channel
}

// Processor is the audio-thread half of the engine. All of its exported
// methods except construction are expected to run on the realtime
// callback thread.
type Processor struct {
	channel *ctrlchan.Channel
	pool    *bufferpool.Pool

	schedule   *compiler.Schedule
	buffers    [][]float32
	processors map[graph.NodeId]node.Processor
	graphIn    graph.NodeId
	graphOut   graph.NodeId

	runner    *transport.Runner
	immediate *event.ImmediateQueue
	scheduled *event.ScheduledArena

	sr             clock.SampleRate
	sharedClock    clock.Shared
	clockSamples   clock.InstantSamples
	maxBlockFrames int
	hardClip       bool
	stopRequested  bool

	declickTable *declick.Table

	deinterleaved   [][]float32
	numGraphInputs  int
	numGraphOutputs int

	inScratch  [][]float32
	outScratch [][]float32
}

// New builds a Processor ready to receive its first schedule.
func New(cfg Config) (*Processor, error) {
	declickFrames := cfg.DeclickFrames
	if declickFrames == 0 {
		declickFrames = uint32(declick.DefaultFadeSeconds * float64(cfg.SampleRate.Rate))
		if declickFrames == 0 {
			declickFrames = 1
		}
	}
	table, err := declick.NewTable(declickFrames)
	if err != nil {
		return nil, err
	}

	deinterleaved := make([][]float32, cfg.NumGraphInputs)
	for i := range deinterleaved {
		deinterleaved[i] = make([]float32, cfg.MaxBlockFrames)
	}

	return &Processor{
		channel:         cfg.Channel,
		pool:            bufferpool.New(cfg.MaxBlockFrames),
		processors:      make(map[graph.NodeId]node.Processor),
		runner:          transport.NewRunner(cfg.SampleRate),
		immediate:       event.NewImmediateQueue(cfg.EventCapacity, cfg.OverflowMode),
		scheduled:       event.NewScheduledArena(cfg.EventCapacity, cfg.OverflowMode),
		sr:              cfg.SampleRate,
		sharedClock:     cfg.Clock,
		maxBlockFrames:  cfg.MaxBlockFrames,
		hardClip:        cfg.HardClipOutputs,
		declickTable:    table,
		deinterleaved:   deinterleaved,
		numGraphInputs:  cfg.NumGraphInputs,
		numGraphOutputs: cfg.NumGraphOutputs,
		inScratch:       make([][]float32, 0, silence.MaxChannels),
		outScratch:      make([][]float32, 0, silence.MaxChannels),
	}, nil
}

// resolve converts an EventInstant into an absolute sample instant using
// the processor's current transport, satisfying event.Resolver.
func (p *Processor) resolve(inst event.EventInstant) clock.InstantSamples {
	switch inst.Kind {
	case event.KindSamples:
		return inst.Samples
	case event.KindSeconds:
		return inst.Seconds.ToSamples(p.sr)
	case event.KindMusical:
		tr := p.runner.State().Transport
		if tr == nil {
			return clock.MaxInstantSamples
		}
		return tr.MusicalToSamples(inst.Musical, p.runner.TransportStart(), p.sr)
	default:
		return clock.MaxInstantSamples
	}
}

// drainControl applies every pending control message, oldest first.
func (p *Processor) drainControl() {
	for {
		msg, ok := p.channel.ToProcessor.Pop()
		if !ok {
			return
		}
		switch m := msg.(type) {
		case ctrlchan.NewScheduleMsg:
			old := p.schedule
			p.schedule = m.Schedule
			p.buffers = m.Buffers
			p.graphIn = m.GraphIn
			p.graphOut = m.GraphOut
			for id, proc := range m.Processors {
				p.processors[id] = proc
			}
			if old != nil {
				p.channel.ToController.Push(ctrlchan.ReturnScheduleMsg{Schedule: old})
			}
		case ctrlchan.EventGroupMsg:
			for _, e := range m.Immediate {
				_ = p.immediate.Push(e)
			}
			for _, e := range m.Scheduled {
				_, _ = p.scheduled.Insert(e, p.resolve)
			}
			p.channel.ToController.Push(ctrlchan.ReturnEventGroupMsg{Immediate: m.Immediate, Scheduled: m.Scheduled})
		case ctrlchan.HardClipOutputsMsg:
			p.hardClip = m.Enabled
		case ctrlchan.SetTransportStateMsg:
			p.runner.SetState(p.clockSamples, m.State)
			p.scheduled.Retime(p.resolve)
		case ctrlchan.StopMsg:
			p.stopRequested = true
		}
	}
}

func (p *Processor) publishClock() {
	playing := false
	var musical clock.InstantMusical
	hasMusical := false
	if tr := p.runner.State().Transport; tr != nil {
		playing = p.runner.State().Playing
		musical = p.runner.Playhead(p.clockSamples)
		hasMusical = true
	}
	p.sharedClock.Store(clock.Snapshot{
		ClockSamples:     p.clockSamples,
		MusicalTime:      musical,
		HasMusicalTime:   hasMusical,
		TransportPlaying: playing,
	})
}

// ProcessInterleaved is the entry point the audio driver calls once per
// block. in and out are contiguous interleaved sample buffers.
func (p *Processor) ProcessInterleaved(in, out []float32, inChannels, outChannels, frames int, streamStatus node.StreamStatus, droppedFrames uint32) Result {
	debug.StartFrame()
	debug.CheckAllocation(in, "processor.in")
	debug.CheckAllocation(out, "processor.out")
	defer debug.EndFrame()

	p.drainControl()
	if p.immediate.Len() > 0 {
		p.immediate.Finalize()
	}

	if p.stopRequested {
		if p.channel.ToController.Len() == 0 {
			p.channel.ToController.Push(ctrlchan.ProcessorDroppedMsg{Schedule: p.schedule})
			return DropProcessor
		}
	}

	for i := range out {
		out[i] = 0
	}

	if p.schedule == nil {
		p.clockSamples = p.clockSamples.Add(clock.DurationSamples(frames))
		p.publishClock()
		return Ok
	}

	for ch := 0; ch < inChannels && ch < len(p.deinterleaved); ch++ {
		buf := p.deinterleaved[ch]
		for i := 0; i < frames; i++ {
			buf[i] = in[i*inChannels+ch]
		}
	}

	cursor := p.clockSamples
	pos := 0
	remaining := frames
	for remaining > 0 {
		want := remaining
		if p.maxBlockFrames < want {
			want = p.maxBlockFrames
		}

		blockInfo := p.runner.Advance(cursor, want)
		segFrames := blockInfo.Frames
		if segFrames <= 0 || segFrames > want {
			segFrames = want
		}

		var transportInfo *node.TransportInfo
		if tr := p.runner.State().Transport; tr != nil {
			transportInfo = &node.TransportInfo{
				Transport:         tr,
				StartClockSamples: p.runner.TransportStart(),
				BPM:               blockInfo.Tempo.BPM,
				DeltaBPMPerFrame:  blockInfo.Tempo.DeltaBPMPerFrame,
			}
		}

		p.runSegment(pos, segFrames, cursor, transportInfo, streamStatus, droppedFrames, pos == 0)

		pos += segFrames
		cursor = cursor.Add(clock.DurationSamples(segFrames))
		remaining -= segFrames
	}
	p.clockSamples = cursor
	p.publishClock()

	p.interleaveOut(out, outChannels, frames)

	if p.hardClip {
		for i := range out {
			if out[i] > 1.0 {
				out[i] = 1.0
			} else if out[i] < -1.0 {
				out[i] = -1.0
			}
		}
	}

	p.immediate.Clear()
	return Ok
}

func (p *Processor) findNode(id graph.NodeId) *compiler.ScheduledNode {
	for i := range p.schedule.Nodes {
		if p.schedule.Nodes[i].ID == id {
			return &p.schedule.Nodes[i]
		}
	}
	return nil
}

func (p *Processor) interleaveOut(out []float32, outChannels, frames int) {
	sn := p.findNode(p.graphOut)
	if sn == nil {
		return
	}
	for ch, assign := range sn.Inputs {
		if ch >= outChannels {
			break
		}
		buf := p.buffers[assign.Buffer]
		for i := 0; i < frames; i++ {
			out[i*outChannels+ch] = buf[i]
		}
	}
}

// runSegment walks the schedule once for [segStart, segStart+frames),
// materializing the graph's stream input at its head and the per-node
// event sub-chunk splits for every scheduled node.
func (p *Processor) runSegment(posOffset, frames int, segStart clock.InstantSamples, transportInfo *node.TransportInfo, streamStatus node.StreamStatus, droppedFrames uint32, firstSegmentOfCall bool) {
	blockEnd := segStart.Add(clock.DurationSamples(frames))
	elapsed := p.scheduled.PopElapsed(blockEnd)
	grouped := event.GroupByNode(elapsed)

	if gin := p.findNode(p.graphIn); gin != nil {
		for ch, assign := range gin.Outputs {
			buf := p.buffers[assign.Buffer][posOffset : posOffset+frames]
			if ch < len(p.deinterleaved) {
				copy(buf, p.deinterleaved[ch][posOffset:posOffset+frames])
			} else {
				for i := range buf {
					buf[i] = 0
				}
			}
		}
	}

	for _, sn := range p.schedule.Nodes {
		if sn.ID == p.graphIn {
			continue
		}
		proc := p.processors[sn.ID]
		if proc == nil {
			continue
		}

		p.inScratch = p.inScratch[:0]
		for _, assign := range sn.Inputs {
			buf := p.buffers[assign.Buffer][posOffset : posOffset+frames]
			if assign.ShouldClear {
				for i := range buf {
					buf[i] = 0
				}
			}
			p.inScratch = append(p.inScratch, buf)
		}
		p.outScratch = p.outScratch[:0]
		for _, assign := range sn.Outputs {
			p.outScratch = append(p.outScratch, p.buffers[assign.Buffer][posOffset:posOffset+frames])
		}
		inputs := append([][]float32(nil), p.inScratch...)
		outputs := append([][]float32(nil), p.outScratch...)

		var immediateEvents []event.Event
		if firstSegmentOfCall {
			immediateEvents = p.immediate.EventsFor(sn.ID)
		}

		p.processNodeSubChunks(proc, inputs, outputs, frames, segStart, immediateEvents, grouped[sn.ID], transportInfo, streamStatus, droppedFrames)
	}
}

// processNodeSubChunks implements the per-node event sub-chunk split: the
// node's process call is broken at each of its own scheduled event
// sample times, with the event injected into the sub-chunk that begins
// at that sample.
func (p *Processor) processNodeSubChunks(proc node.Processor, inputs, outputs [][]float32, frames int, segStart clock.InstantSamples, immediate []event.Event, deliveries []event.NodeDelivery, transportInfo *node.TransportInfo, streamStatus node.StreamStatus, droppedFrames uint32) {
	scratch := p.pool.Borrow(frames)

	segStartRel := 0
	di := 0
	immAttached := false
	var pending []event.NodeDelivery

	for segStartRel < frames {
		segEndRel := frames
		var boundaryGroup []event.NodeDelivery
		if di < len(deliveries) {
			rel := int(deliveries[di].Samples - segStart)
			if rel < segStartRel {
				rel = segStartRel
			}
			if rel < segEndRel {
				segEndRel = rel
			}
		}
		for segEndRel == segStartRel && di < len(deliveries) {
			rel := int(deliveries[di].Samples - segStart)
			if rel > segStartRel {
				break
			}
			boundaryGroup = append(boundaryGroup, deliveries[di])
			di++
		}
		if len(boundaryGroup) > 0 {
			pending = boundaryGroup
			continue
		}

		n := segEndRel - segStartRel
		if n > 0 {
			var imm []event.Event
			if !immAttached {
				imm = immediate
				immAttached = true
			}
			status := proc.Process(
				node.ProcInfo{
					Frames:        n,
					InSilenceMask: silence.NoneSilent,
					SampleRate:    p.sr,
					ClockSamples:  segStart.Add(clock.DurationSamples(segStartRel)),
					Transport:     transportInfo,
					StreamStatus:  streamStatus,
					DroppedFrames: droppedFrames,
					Declick:       p.declickTable,
				},
				node.ProcBuffers{
					Inputs:  windowAll(inputs, segStartRel, segEndRel),
					Outputs: windowAll(outputs, segStartRel, segEndRel),
					Scratch: windowScratch(scratch, segStartRel, segEndRel),
				},
				node.NodeEvents{Immediate: imm, Scheduled: pending},
			)
			applyStatus(status, windowAll(inputs, segStartRel, segEndRel), windowAll(outputs, segStartRel, segEndRel))
			pending = nil
		}
		segStartRel = segEndRel
	}
}

func windowAll(bufs [][]float32, start, end int) [][]float32 {
	out := make([][]float32, len(bufs))
	for i, b := range bufs {
		out[i] = b[start:end]
	}
	return out
}

func windowScratch(scratch [bufferpool.NumScratchBuffers][]float32, start, end int) [bufferpool.NumScratchBuffers][]float32 {
	var out [bufferpool.NumScratchBuffers][]float32
	for i, b := range scratch {
		out[i] = b[start:end]
	}
	return out
}

func applyStatus(status node.ProcessStatus, inputs, outputs [][]float32) {
	switch status.Kind {
	case node.StatusClearAllOutputs:
		for _, o := range outputs {
			for i := range o {
				o[i] = 0
			}
		}
	case node.StatusBypass:
		n := len(inputs)
		if len(outputs) < n {
			n = len(outputs)
		}
		for i := 0; i < n; i++ {
			copy(outputs[i], inputs[i])
		}
		for i := n; i < len(outputs); i++ {
			for j := range outputs[i] {
				outputs[i][j] = 0
			}
		}
	case node.StatusOutputsModified:
		// the node already wrote its output slices directly.
	}
}

// SetTransportState installs a new transport state to take effect
// immediately, bypassing the control channel. Used by callers that run
// the processor in-process with the controller (e.g. tests).
func (p *Processor) SetTransportState(s transport.State) {
	p.runner.SetState(p.clockSamples, s)
	p.scheduled.Retime(p.resolve)
}

// ClockSamples reports the processor's current absolute sample clock.
func (p *Processor) ClockSamples() clock.InstantSamples { return p.clockSamples }
