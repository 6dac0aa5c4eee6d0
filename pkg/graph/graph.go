// Package graph implements the mutable control-side graph model (C4):
// nodes, edges, port validation, and cycle detection. The graph itself
// never touches audio; it is compiled (see pkg/graph/compiler) into a
// schedule the processor executes.
package graph

import (
	"errors"
	"fmt"

	"github.com/firewheel-audio/firewheel-go/pkg/silence"
)

// Validation errors. The graph is left unchanged whenever one of these is
// returned.
var (
	ErrSrcNodeNotFound           = errors.New("graph: source node not found")
	ErrDstNodeNotFound           = errors.New("graph: destination node not found")
	ErrOutPortOutOfRange         = errors.New("graph: output port out of range")
	ErrInPortOutOfRange          = errors.New("graph: input port out of range")
	ErrEdgeAlreadyExists         = errors.New("graph: edge already exists")
	ErrInputPortAlreadyConnected = errors.New("graph: input port already connected")
	ErrCycleDetected             = errors.New("graph: connecting would create a cycle")
	ErrNodeNotFound              = errors.New("graph: node not found")
	ErrCannotRemoveSentinel      = errors.New("graph: GRAPH_IN/GRAPH_OUT cannot be removed")
	ErrCannotResizeSentinel      = errors.New("graph: cannot resize the fixed side of GRAPH_IN/GRAPH_OUT")
	ErrTooManyChannels           = errors.New("graph: channel count exceeds 64")
)

// NodeId is an opaque generational index. It stays stable for the life of
// the node it names; a removed and re-added node never reuses a stale id.
type NodeId struct {
	index uint32
	gen   uint32
}

func (id NodeId) String() string {
	return fmt.Sprintf("NodeId(%d,%d)", id.index, id.gen)
}

// SortKey returns a value that orders NodeIds by slot index, then
// generation, used by the compiler to make topological tie-breaking
// deterministic. Slots freed by RemoveNode are reused, so this matches
// insertion order only while no node has been removed.
func (id NodeId) SortKey() uint64 {
	return uint64(id.index)<<32 | uint64(id.gen)
}

// EdgeId is an opaque generational handle for a single connection.
type EdgeId struct {
	index uint32
	gen   uint32
}

func (id EdgeId) String() string {
	return fmt.Sprintf("EdgeId(%d,%d)", id.index, id.gen)
}

// Edge describes one connection between an out-port of a source node and
// an in-port of a destination node.
type Edge struct {
	ID       EdgeId
	Src      NodeId
	SrcPort  uint32
	Dst      NodeId
	DstPort  uint32
}

type nodeSlot struct {
	gen       uint32
	live      bool
	debugName string
	numIn     int
	numOut    int
}

type edgeSlot struct {
	gen  uint32
	live bool
	edge Edge
}

type portKey struct {
	node NodeId
	port uint32
}

// Graph is the mutable control-side representation of the node/edge DAG.
// It is owned entirely by the controller thread; nothing here is safe to
// touch from the processor.
type Graph struct {
	nodes     []nodeSlot
	freeNodes []uint32

	edges     []edgeSlot
	freeEdges []uint32

	outEdges map[NodeId][]EdgeId // edges keyed by source node
	inEdges  map[NodeId][]EdgeId // edges keyed by destination node
	inPort   map[portKey]EdgeId  // enforces at most one edge per (dst, in_port)

	graphIn, graphOut NodeId
	needsCompile      bool
}

// New constructs a graph with the two sentinel nodes GRAPH_IN (an output
// side of numGraphInputs channels) and GRAPH_OUT (an input side of
// numGraphOutputs channels) already present.
func New(numGraphInputs, numGraphOutputs int) *Graph {
	g := &Graph{
		outEdges: make(map[NodeId][]EdgeId),
		inEdges:  make(map[NodeId][]EdgeId),
		inPort:   make(map[portKey]EdgeId),
	}
	g.graphIn = g.insertNode("GRAPH_IN", 0, int(silence.Clamp(numGraphInputs)))
	g.graphOut = g.insertNode("GRAPH_OUT", int(silence.Clamp(numGraphOutputs)), 0)
	g.needsCompile = true
	return g
}

// GraphIn returns the sentinel node representing the stream's input ports.
func (g *Graph) GraphIn() NodeId { return g.graphIn }

// GraphOut returns the sentinel node representing the stream's output ports.
func (g *Graph) GraphOut() NodeId { return g.graphOut }

// NeedsCompile reports whether the graph has changed since the last call
// to MarkCompiled.
func (g *Graph) NeedsCompile() bool { return g.needsCompile }

// MarkCompiled clears the needs-compile flag; called by the controller
// immediately after a successful compile.
func (g *Graph) MarkCompiled() { g.needsCompile = false }

func (g *Graph) insertNode(debugName string, numIn, numOut int) NodeId {
	if len(g.freeNodes) > 0 {
		idx := g.freeNodes[len(g.freeNodes)-1]
		g.freeNodes = g.freeNodes[:len(g.freeNodes)-1]
		slot := &g.nodes[idx]
		slot.live = true
		slot.debugName = debugName
		slot.numIn = numIn
		slot.numOut = numOut
		return NodeId{index: idx, gen: slot.gen}
	}
	idx := uint32(len(g.nodes))
	g.nodes = append(g.nodes, nodeSlot{gen: 0, live: true, debugName: debugName, numIn: numIn, numOut: numOut})
	return NodeId{index: idx, gen: 0}
}

func (g *Graph) lookupNode(id NodeId) (*nodeSlot, bool) {
	if int(id.index) >= len(g.nodes) {
		return nil, false
	}
	slot := &g.nodes[id.index]
	if !slot.live || slot.gen != id.gen {
		return nil, false
	}
	return slot, true
}

// AddNode inserts a new node with the given declared port counts (each
// clamped to [0, 64] per the channel-count invariant) and marks the graph
// dirty.
func (g *Graph) AddNode(debugName string, numInputs, numOutputs int) (NodeId, error) {
	numInputs = int(silence.Clamp(numInputs))
	numOutputs = int(silence.Clamp(numOutputs))
	id := g.insertNode(debugName, numInputs, numOutputs)
	g.needsCompile = true
	return id, nil
}

// RemoveNode deletes a node and every edge incident to it, returning the
// set of edges dropped. GRAPH_IN/GRAPH_OUT cannot be removed.
func (g *Graph) RemoveNode(id NodeId) ([]EdgeId, error) {
	if id == g.graphIn || id == g.graphOut {
		return nil, ErrCannotRemoveSentinel
	}
	slot, ok := g.lookupNode(id)
	if !ok {
		return nil, ErrNodeNotFound
	}

	dropped := g.dropIncidentEdges(id)

	slot.live = false
	slot.gen++
	slot.debugName = ""
	g.freeNodes = append(g.freeNodes, id.index)
	delete(g.outEdges, id)
	delete(g.inEdges, id)

	g.needsCompile = true
	return dropped, nil
}

// dropIncidentEdges removes every edge touching node id and returns their ids.
func (g *Graph) dropIncidentEdges(id NodeId) []EdgeId {
	var dropped []EdgeId
	for _, eid := range append([]EdgeId(nil), g.outEdges[id]...) {
		g.removeEdge(eid)
		dropped = append(dropped, eid)
	}
	for _, eid := range append([]EdgeId(nil), g.inEdges[id]...) {
		if containsEdge(dropped, eid) {
			continue
		}
		g.removeEdge(eid)
		dropped = append(dropped, eid)
	}
	return dropped
}

func containsEdge(s []EdgeId, id EdgeId) bool {
	for _, e := range s {
		if e == id {
			return true
		}
	}
	return false
}

// Connect adds a new edge from (src, outPort) to (dst, inPort). When
// checkCycles is true the whole graph is re-validated for cycles via a
// DFS coloring walk from GRAPH_OUT and then from every node not yet
// visited; on failure the tentative edge is rolled back and the graph is
// left unchanged.
func (g *Graph) Connect(src NodeId, outPort uint32, dst NodeId, inPort uint32, checkCycles bool) (EdgeId, error) {
	srcSlot, ok := g.lookupNode(src)
	if !ok {
		return EdgeId{}, ErrSrcNodeNotFound
	}
	dstSlot, ok := g.lookupNode(dst)
	if !ok {
		return EdgeId{}, ErrDstNodeNotFound
	}
	if int(outPort) >= srcSlot.numOut {
		return EdgeId{}, ErrOutPortOutOfRange
	}
	if int(inPort) >= dstSlot.numIn {
		return EdgeId{}, ErrInPortOutOfRange
	}

	for _, eid := range g.outEdges[src] {
		e := g.edges[eid.index].edge
		if e.SrcPort == outPort && e.Dst == dst && e.DstPort == inPort {
			return EdgeId{}, ErrEdgeAlreadyExists
		}
	}

	key := portKey{node: dst, port: inPort}
	if _, occupied := g.inPort[key]; occupied {
		return EdgeId{}, ErrInputPortAlreadyConnected
	}

	eid := g.insertEdge(Edge{Src: src, SrcPort: outPort, Dst: dst, DstPort: inPort})

	if checkCycles && g.hasCycle() {
		g.removeEdge(eid)
		return EdgeId{}, ErrCycleDetected
	}

	g.needsCompile = true
	return eid, nil
}

func (g *Graph) insertEdge(e Edge) EdgeId {
	var id EdgeId
	if len(g.freeEdges) > 0 {
		idx := g.freeEdges[len(g.freeEdges)-1]
		g.freeEdges = g.freeEdges[:len(g.freeEdges)-1]
		slot := &g.edges[idx]
		slot.live = true
		id = EdgeId{index: idx, gen: slot.gen}
	} else {
		idx := uint32(len(g.edges))
		g.edges = append(g.edges, edgeSlot{gen: 0, live: true})
		id = EdgeId{index: idx, gen: 0}
	}
	e.ID = id
	g.edges[id.index].edge = e

	g.outEdges[e.Src] = append(g.outEdges[e.Src], id)
	g.inEdges[e.Dst] = append(g.inEdges[e.Dst], id)
	g.inPort[portKey{node: e.Dst, port: e.DstPort}] = id
	return id
}

func (g *Graph) removeEdge(id EdgeId) {
	if int(id.index) >= len(g.edges) {
		return
	}
	slot := &g.edges[id.index]
	if !slot.live || slot.gen != id.gen {
		return
	}
	e := slot.edge
	slot.live = false
	slot.gen++
	g.freeEdges = append(g.freeEdges, id.index)

	g.outEdges[e.Src] = removeFromSlice(g.outEdges[e.Src], id)
	g.inEdges[e.Dst] = removeFromSlice(g.inEdges[e.Dst], id)
	delete(g.inPort, portKey{node: e.Dst, port: e.DstPort})
}

func removeFromSlice(s []EdgeId, id EdgeId) []EdgeId {
	for i, e := range s {
		if e == id {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// Disconnect removes a single edge by id. Returns false if the edge does
// not exist (already removed, or never existed).
func (g *Graph) Disconnect(id EdgeId) bool {
	if int(id.index) >= len(g.edges) {
		return false
	}
	slot := &g.edges[id.index]
	if !slot.live || slot.gen != id.gen {
		return false
	}
	g.removeEdge(id)
	g.needsCompile = true
	return true
}

// DisconnectByEndpoints is the fast-path remover keyed by endpoints
// instead of an EdgeId, matching the contract's "fast-path removers by
// endpoint."
func (g *Graph) DisconnectByEndpoints(src NodeId, outPort uint32, dst NodeId, inPort uint32) bool {
	for _, eid := range append([]EdgeId(nil), g.outEdges[src]...) {
		e := g.edges[eid.index].edge
		if e.SrcPort == outPort && e.Dst == dst && e.DstPort == inPort {
			return g.Disconnect(eid)
		}
	}
	return false
}

// SetNumInputs resizes a node's input port count. Shrinking drops any
// incident edges on ports beyond the new range. The input side of
// GRAPH_IN cannot be resized (it is always 0).
func (g *Graph) SetNumInputs(id NodeId, n int) error {
	if id == g.graphIn {
		return ErrCannotResizeSentinel
	}
	if n < 0 || n > silence.MaxChannels {
		return ErrTooManyChannels
	}
	slot, ok := g.lookupNode(id)
	if !ok {
		return ErrNodeNotFound
	}
	if n < slot.numIn {
		g.dropEdgesAbovePort(g.inEdges[id], id, uint32(n), true)
	}
	slot.numIn = n
	g.needsCompile = true
	return nil
}

// SetNumOutputs resizes a node's output port count. Shrinking drops any
// incident edges on ports beyond the new range. The output side of
// GRAPH_OUT cannot be resized (it is always 0).
func (g *Graph) SetNumOutputs(id NodeId, n int) error {
	if id == g.graphOut {
		return ErrCannotResizeSentinel
	}
	if n < 0 || n > silence.MaxChannels {
		return ErrTooManyChannels
	}
	slot, ok := g.lookupNode(id)
	if !ok {
		return ErrNodeNotFound
	}
	if n < slot.numOut {
		g.dropEdgesAbovePort(g.outEdges[id], id, uint32(n), false)
	}
	slot.numOut = n
	g.needsCompile = true
	return nil
}

func (g *Graph) dropEdgesAbovePort(edges []EdgeId, node NodeId, limit uint32, isInput bool) {
	for _, eid := range append([]EdgeId(nil), edges...) {
		slot := &g.edges[eid.index]
		if !slot.live {
			continue
		}
		e := slot.edge
		port := e.SrcPort
		if isInput {
			port = e.DstPort
		}
		if port >= limit {
			g.removeEdge(eid)
		}
	}
}

// color states for the cycle-detection DFS.
type color uint8

const (
	white color = iota
	grey
	black
)

// hasCycle runs a DFS/coloring walk starting at GRAPH_OUT, following
// edges backward (from a node to the source nodes of its incoming
// edges), then repeats the walk from every live node still unvisited so
// that cycles not feeding GRAPH_OUT are found too. A grey re-visit
// indicates a cycle.
func (g *Graph) hasCycle() bool {
	colors := make(map[NodeId]color)
	var visit func(NodeId) bool
	visit = func(n NodeId) bool {
		colors[n] = grey
		for _, eid := range g.inEdges[n] {
			slot := &g.edges[eid.index]
			if !slot.live {
				continue
			}
			pred := slot.edge.Src
			switch colors[pred] {
			case grey:
				return true
			case black:
				continue
			default:
				if visit(pred) {
					return true
				}
			}
		}
		colors[n] = black
		return false
	}
	if visit(g.graphOut) {
		return true
	}
	for i := range g.nodes {
		if !g.nodes[i].live {
			continue
		}
		n := NodeId{index: uint32(i), gen: g.nodes[i].gen}
		if colors[n] == white && visit(n) {
			return true
		}
	}
	return false
}

// NodeInfo reports a node's declared shape.
type NodeInfo struct {
	DebugName  string
	NumInputs  int
	NumOutputs int
}

// Node returns the declared info for a live node.
func (g *Graph) Node(id NodeId) (NodeInfo, bool) {
	slot, ok := g.lookupNode(id)
	if !ok {
		return NodeInfo{}, false
	}
	return NodeInfo{DebugName: slot.debugName, NumInputs: slot.numIn, NumOutputs: slot.numOut}, true
}

// Nodes returns the ids of every live node, GRAPH_IN and GRAPH_OUT included.
func (g *Graph) Nodes() []NodeId {
	var out []NodeId
	for i := range g.nodes {
		if g.nodes[i].live {
			out = append(out, NodeId{index: uint32(i), gen: g.nodes[i].gen})
		}
	}
	return out
}

// Edges returns every live edge.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for i := range g.edges {
		if g.edges[i].live {
			out = append(out, g.edges[i].edge)
		}
	}
	return out
}

// EdgesFrom returns the live edges whose source is node.
func (g *Graph) EdgesFrom(node NodeId) []Edge {
	var out []Edge
	for _, eid := range g.outEdges[node] {
		out = append(out, g.edges[eid.index].edge)
	}
	return out
}

// EdgesTo returns the live edges whose destination is node.
func (g *Graph) EdgesTo(node NodeId) []Edge {
	var out []Edge
	for _, eid := range g.inEdges[node] {
		out = append(out, g.edges[eid.index].edge)
	}
	return out
}
