// Package engine implements the controller-facing facade (C10): the
// public surface that mutates the graph, drives compilation, and ships
// schedules and events to the processor over the control channel. Every
// exported method here is expected to run off the audio thread.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firewheel-audio/firewheel-go/pkg/ctrlchan"
	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/graph"
	"github.com/firewheel-audio/firewheel-go/pkg/graph/compiler"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
	"golang.org/x/sync/semaphore"
)

// maxConcurrentDeactivations bounds how many Engines may sit in
// Deactivate's return-channel polling loop at once. A host that tears
// down many engines in the same process (e.g. closing several
// simultaneous sessions) would otherwise busy-poll one goroutine per
// engine; this caps the concurrent waiters without limiting how many
// engines can be deactivated in total.
const maxConcurrentDeactivations = 4

var deactivateSem = semaphore.NewWeighted(maxConcurrentDeactivations)

// ErrProcessorAbandoned is returned by Deactivate when the processor did
// not acknowledge Stop within the given timeout. The processor's memory
// is reclaimed whenever the driver finally releases it.
var ErrProcessorAbandoned = errors.New("engine: processor did not acknowledge stop before timeout")

// Status is the activation state update() reports.
type Status int

const (
	StatusActive Status = iota
	StatusInactive
	StatusDeactivated
)

// UpdateResult is update()'s return value: the current activation status
// plus the latest compile error, if the most recent graph edit failed to
// compile (the previously active schedule remains in force).
type UpdateResult struct {
	Status      Status
	CompileErr  error
	Deactivated error
}

// Config configures an Engine at construction.
type Config struct {
	NumGraphInputs  int
	NumGraphOutputs int
	MaxBlockFrames  int
	ChannelCapacity int
	StreamInfo      node.StreamInfo
}

// Engine owns the graph, the pending node factories, and the control
// channel to the processor.
type Engine struct {
	g        *graph.Graph
	channel  *ctrlchan.Channel
	cfg      Config
	active   bool

	pendingProcessors map[graph.NodeId]node.Processor

	pendingImmediate []event.Event
	pendingScheduled []event.Event

	lastCompileErr error
}

// New builds an Engine with an empty graph and the given channel
// capacity for its control connection to the processor.
func New(cfg Config) *Engine {
	return &Engine{
		g:                 graph.New(cfg.NumGraphInputs, cfg.NumGraphOutputs),
		channel:           ctrlchan.NewChannel(cfg.ChannelCapacity),
		cfg:               cfg,
		active:            true,
		pendingProcessors: make(map[graph.NodeId]node.Processor),
	}
}

// Channel returns the control channel shared with the processor. The
// processor side is constructed against the same *ctrlchan.Channel.
func (e *Engine) Channel() *ctrlchan.Channel { return e.channel }

// AddNode inserts a node and constructs its processor via factory,
// queuing it for delivery on the next compiled schedule.
func (e *Engine) AddNode(cfg node.Config, factory node.Factory) (graph.NodeId, error) {
	id, err := e.g.AddNode(cfg.DebugName, cfg.ChannelConfig.NumInputs, cfg.ChannelConfig.NumOutputs)
	if err != nil {
		return graph.NodeId{}, err
	}
	proc, err := factory(e.cfg.StreamInfo)
	if err != nil {
		e.g.RemoveNode(id)
		return graph.NodeId{}, fmt.Errorf("engine: node construction failed for %q: %w", cfg.DebugName, err)
	}
	e.pendingProcessors[id] = proc
	return id, nil
}

// RemoveNode removes a node and returns the incident edges it dropped.
func (e *Engine) RemoveNode(id graph.NodeId) ([]graph.EdgeId, error) {
	edges, err := e.g.RemoveNode(id)
	if err != nil {
		return nil, err
	}
	delete(e.pendingProcessors, id)
	return edges, nil
}

// Connect wires src's output port to dst's input port.
func (e *Engine) Connect(src graph.NodeId, outPort uint32, dst graph.NodeId, inPort uint32, checkCycles bool) (graph.EdgeId, error) {
	return e.g.Connect(src, outPort, dst, inPort, checkCycles)
}

// Disconnect removes an edge by id.
func (e *Engine) Disconnect(id graph.EdgeId) bool { return e.g.Disconnect(id) }

// SetNumInputs resizes a node's input port count.
func (e *Engine) SetNumInputs(id graph.NodeId, n int) error { return e.g.SetNumInputs(id, n) }

// SetNumOutputs resizes a node's output port count.
func (e *Engine) SetNumOutputs(id graph.NodeId, n int) error { return e.g.SetNumOutputs(id, n) }

// QueueEventFor addresses evt to node and queues it for the next
// FlushEvents call. evt.Node is overwritten with the given node id.
func (e *Engine) QueueEventFor(id graph.NodeId, evt event.Event) {
	evt.Node = id
	if evt.Time == nil {
		e.pendingImmediate = append(e.pendingImmediate, evt)
	} else {
		e.pendingScheduled = append(e.pendingScheduled, evt)
	}
}

// FlushEvents ships every queued event to the processor as a single
// EventGroupMsg. A no-op if nothing is queued.
func (e *Engine) FlushEvents() {
	if len(e.pendingImmediate) == 0 && len(e.pendingScheduled) == 0 {
		return
	}
	imm := e.pendingImmediate
	sched := e.pendingScheduled
	e.pendingImmediate = nil
	e.pendingScheduled = nil
	e.channel.ToProcessor.Push(ctrlchan.EventGroupMsg{Immediate: imm, Scheduled: sched})
}

// SetHardClipOutputs toggles the output hard-clip stage.
func (e *Engine) SetHardClipOutputs(enabled bool) {
	e.channel.ToProcessor.Push(ctrlchan.HardClipOutputsMsg{Enabled: enabled})
}

// Update drains the return channel, recycling completed schedules and
// event batches, and recompiles the graph if it needs it. A compile
// failure leaves the previously active schedule in force and is
// reported through CompileErr; the graph itself is left unchanged by a
// failed connect/add, so a failed compile here can only be hit through a
// cycle slipping past check_cycles=false or an unreachable endpoint.
func (e *Engine) Update() UpdateResult {
	for {
		msg, ok := e.channel.ToController.Pop()
		if !ok {
			break
		}
		switch m := msg.(type) {
		case ctrlchan.ReturnScheduleMsg:
			_ = m // superseded schedule, let GC reclaim it
		case ctrlchan.ReturnEventGroupMsg:
			_ = m // consumed event batch, let GC reclaim it
		case ctrlchan.ProcessorDroppedMsg:
			e.active = false
		}
	}

	if !e.active {
		return UpdateResult{Status: StatusInactive}
	}

	if e.g.NeedsCompile() {
		sched, err := compiler.Compile(e.g)
		if err != nil {
			e.lastCompileErr = err
			return UpdateResult{Status: StatusActive, CompileErr: err}
		}
		e.g.MarkCompiled()
		e.lastCompileErr = nil

		buffers := make([][]float32, sched.NumBuffers)
		for i := range buffers {
			buffers[i] = make([]float32, e.cfg.MaxBlockFrames)
		}

		procs := e.pendingProcessors
		e.pendingProcessors = make(map[graph.NodeId]node.Processor)

		e.channel.ToProcessor.Push(ctrlchan.NewScheduleMsg{
			Schedule:   sched,
			Processors: procs,
			Buffers:    buffers,
			GraphIn:    e.g.GraphIn(),
			GraphOut:   e.g.GraphOut(),
		})
	}

	return UpdateResult{Status: StatusActive}
}

// Deactivate requests the processor stop, polling the return channel
// until it reports ProcessorDropped or timeout elapses. On timeout the
// processor is abandoned; its memory is reclaimed whenever the driver
// finally releases it. Acquires a slot in the package-wide deactivation
// semaphore first, so a process tearing down many engines at once bounds
// how many poll concurrently rather than spinning every one of them.
func (e *Engine) Deactivate(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := deactivateSem.Acquire(ctx, 1); err != nil {
		e.active = false
		return ErrProcessorAbandoned
	}
	defer deactivateSem.Release(1)

	e.channel.ToProcessor.Push(ctrlchan.StopMsg{})
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		msg, ok := e.channel.ToController.Pop()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		if _, dropped := msg.(ctrlchan.ProcessorDroppedMsg); dropped {
			e.active = false
			return nil
		}
	}
	e.active = false
	return ErrProcessorAbandoned
}

// LastCompileError reports the most recent compile failure, or nil.
func (e *Engine) LastCompileError() error { return e.lastCompileErr }

// GraphIn returns the graph's fixed GRAPH_IN node id.
func (e *Engine) GraphIn() graph.NodeId { return e.g.GraphIn() }

// GraphOut returns the graph's fixed GRAPH_OUT node id.
func (e *Engine) GraphOut() graph.NodeId { return e.g.GraphOut() }
