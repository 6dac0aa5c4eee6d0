// Package compiler turns a graph.Graph into an immutable Schedule: a
// topologically ordered list of nodes with buffer assignments that reuse
// inter-node buffers aggressively (C5). This is the hardest subsystem in
// the core -- see DESIGN.md for the grounding of each step.
package compiler

import (
	"errors"
	"fmt"
	"sort"

	"github.com/firewheel-audio/firewheel-go/pkg/graph"
)

// CompileError wraps the taxonomy of recoverable compile failures. The
// graph itself is never mutated by a failed compile.
var (
	ErrCycleDetected       = errors.New("compiler: cycle detected during compile")
	ErrUnreachableEndpoint = errors.New("compiler: required endpoint is unreachable")
)

// BufferIndex names a slot in the schedule's float arena.
type BufferIndex uint32

// InputAssignment is the buffer bound to one scheduled node's input port.
type InputAssignment struct {
	Buffer      BufferIndex
	ShouldClear bool
	Generation  uint32
}

// OutputAssignment is the buffer bound to one scheduled node's output port.
type OutputAssignment struct {
	Buffer     BufferIndex
	Generation uint32
}

// ScheduledNode is one entry of a compiled schedule.
type ScheduledNode struct {
	ID      graph.NodeId
	Inputs  []InputAssignment
	Outputs []OutputAssignment
}

// Schedule is the compiler's output: an ordered node list plus the size
// of the float arena that backs every BufferIndex. It is immutable once
// built and is the unit exchanged between controller and processor.
type Schedule struct {
	Nodes      []ScheduledNode
	NumBuffers int
}

type outKey struct {
	node graph.NodeId
	port uint32
}

// Compile builds a Schedule from the graph's current state. Unreachable
// nodes (neither an ancestor of GRAPH_OUT nor GRAPH_IN itself) are elided.
func Compile(g *graph.Graph) (*Schedule, error) {
	order, err := topoOrder(g)
	if err != nil {
		return nil, err
	}

	refcount := make(map[outKey]int)
	for _, n := range order {
		for _, e := range g.EdgesFrom(n) {
			refcount[outKey{n, e.SrcPort}]++
		}
	}

	producerBuffer := make(map[outKey]BufferIndex)
	producerGen := make(map[outKey]uint32)

	var freeList []BufferIndex
	var nextBuffer BufferIndex
	var nextGeneration uint32
	numBuffers := 0

	allocate := func(avoid map[BufferIndex]bool) (BufferIndex, uint32) {
		var parked []BufferIndex
		var buf BufferIndex
		for {
			if len(freeList) > 0 {
				buf = freeList[len(freeList)-1]
				freeList = freeList[:len(freeList)-1]
			} else {
				buf = nextBuffer
				nextBuffer++
				if int(nextBuffer) > numBuffers {
					numBuffers = int(nextBuffer)
				}
			}
			if avoid != nil && avoid[buf] {
				parked = append(parked, buf)
				continue
			}
			break
		}
		freeList = append(freeList, parked...)
		gen := nextGeneration
		nextGeneration++
		return buf, gen
	}

	scheduled := make([]ScheduledNode, 0, len(order))

	for _, n := range order {
		info, ok := g.Node(n)
		if !ok {
			return nil, fmt.Errorf("%w: node %v vanished mid-compile", ErrUnreachableEndpoint, n)
		}

		incoming := make(map[uint32]graph.Edge, info.NumInputs)
		for _, e := range g.EdgesTo(n) {
			incoming[e.DstPort] = e
		}

		usedThisNode := make(map[BufferIndex]bool, info.NumInputs+info.NumOutputs)
		inputs := make([]InputAssignment, info.NumInputs)
		var producersUsed []outKey

		for port := 0; port < info.NumInputs; port++ {
			if e, ok := incoming[uint32(port)]; ok {
				key := outKey{e.Src, e.SrcPort}
				buf, ok := producerBuffer[key]
				if !ok {
					return nil, fmt.Errorf("%w: node %v input %d has no producer buffer bound", ErrUnreachableEndpoint, n, port)
				}
				inputs[port] = InputAssignment{Buffer: buf, ShouldClear: false, Generation: producerGen[key]}
				usedThisNode[buf] = true
				producersUsed = append(producersUsed, key)
			} else {
				buf, gen := allocate(usedThisNode)
				inputs[port] = InputAssignment{Buffer: buf, ShouldClear: true, Generation: gen}
				usedThisNode[buf] = true
			}
		}

		// Only return producer buffers to the free list after every input
		// of this node is bound -- otherwise an unconnected input assigned
		// later in this same loop could alias an earlier input's producer
		// buffer freed mid-walk.
		for _, key := range producersUsed {
			refcount[key]--
			if refcount[key] == 0 {
				freeList = append(freeList, producerBuffer[key])
				delete(producerBuffer, key)
				delete(producerGen, key)
			}
		}

		outputs := make([]OutputAssignment, info.NumOutputs)
		for port := 0; port < info.NumOutputs; port++ {
			buf, gen := allocate(usedThisNode)
			usedThisNode[buf] = true
			outputs[port] = OutputAssignment{Buffer: buf, Generation: gen}

			key := outKey{n, uint32(port)}
			producerBuffer[key] = buf
			producerGen[key] = gen
			if refcount[key] == 0 {
				// No consumer at all: free it back immediately rather than
				// hold a buffer nothing will ever read.
				freeList = append(freeList, buf)
				delete(producerBuffer, key)
				delete(producerGen, key)
			}
		}

		scheduled = append(scheduled, ScheduledNode{ID: n, Inputs: inputs, Outputs: outputs})
	}

	return &Schedule{Nodes: scheduled, NumBuffers: numBuffers}, nil
}

// computeReachable returns the set of nodes the schedule must cover:
// every ancestor of GRAPH_OUT (GRAPH_OUT included), plus GRAPH_IN, which
// is always present in the schedule even when nothing consumes its
// outputs.
func computeReachable(g *graph.Graph) map[graph.NodeId]bool {
	reachable := map[graph.NodeId]bool{g.GraphIn(): true}
	visited := map[graph.NodeId]bool{}
	var visit func(graph.NodeId)
	visit = func(n graph.NodeId) {
		if visited[n] {
			return
		}
		visited[n] = true
		reachable[n] = true
		for _, e := range g.EdgesTo(n) {
			visit(e.Src)
		}
	}
	visit(g.GraphOut())
	return reachable
}

// topoOrder computes a deterministic topological order over the
// reachable node set using Kahn's algorithm, tie-breaking ready nodes by
// NodeId.SortKey and forcing GRAPH_IN to the front.
func topoOrder(g *graph.Graph) ([]graph.NodeId, error) {
	reachable := computeReachable(g)

	indegree := make(map[graph.NodeId]int, len(reachable))
	for n := range reachable {
		indegree[n] = 0
	}
	for n := range reachable {
		for _, e := range g.EdgesFrom(n) {
			if reachable[e.Dst] {
				indegree[e.Dst]++
			}
		}
	}

	less := func(a, b graph.NodeId) bool {
		if a == g.GraphIn() {
			return true
		}
		if b == g.GraphIn() {
			return false
		}
		return a.SortKey() < b.SortKey()
	}

	var ready []graph.NodeId
	for n, d := range indegree {
		if d == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]graph.NodeId, 0, len(reachable))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, e := range g.EdgesFrom(n) {
			if !reachable[e.Dst] {
				continue
			}
			indegree[e.Dst]--
			if indegree[e.Dst] == 0 {
				ready = append(ready, e.Dst)
			}
		}
	}

	if len(order) != len(reachable) {
		return nil, ErrCycleDetected
	}
	return order, nil
}
