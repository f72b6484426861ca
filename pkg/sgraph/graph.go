// Package sgraph implements the hybrid mutable/compressed weighted
// directed graph: nodes keyed by quantized 3-D coordinates, a default cost
// layer plus named overlays, per-node string attributes, and on-demand
// compression to compressed-sparse-row form.
package sgraph

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/tidwall/btree"

	"github.com/azybler/meshvis/internal/engerr"
	"github.com/azybler/meshvis/pkg/geom"
)

// DefaultLayer is the name reserved for the always-present base cost layer.
const DefaultLayer = ""

// decimalPrecision is the number of fractional digits coordinates are
// rounded to before hashing/comparison (spec.md §4.3).
const decimalPrecision = 4

// Node is a spatial graph vertex: a quantized 3-D coordinate, a dense id
// assigned on first insertion, and an optional type tag.
type Node struct {
	ID    int32
	Point geom.Vec
	Type  int32
}

// Edge is a directed relation read out of the default cost layer.
type Edge struct {
	Parent   int32
	Child    int32
	Score    float64
	StepType int32
}

// Subgraph is the induced view from a single parent node: the node plus
// its outgoing edges in the default layer.
type Subgraph struct {
	Parent Node
	Edges  []Edge
}

// mutEdge is one outgoing edge as kept in the mutable adjacency list.
type mutEdge struct {
	child    int32
	score    float64
	stepType int32
}

// csr is the compressed-sparse-row representation of one cost layer.
type csr struct {
	data  []float64
	inner []int32 // child id per entry
	outer []int32 // row-start offsets, length N+1
}

// attribute is a named per-node string value, with a roaring bitmap
// tracking which node ids currently have a value set.
type attribute struct {
	present *roaring.Bitmap
	values  []string
}

// Graph is the hybrid mutable/compressed weighted directed graph. The zero
// value is not usable; construct with New.
//
// Mutation (AddEdge, AddEdges, attribute writes, Clear) is single-writer
// and must not run concurrently with any other method call on the same
// Graph — the caller serializes, matching RayEngine's write/query split.
// Concurrent read-only access (Nodes, EdgesFrom, CSR export) is only safe
// once the graph is compressed and guaranteed not to mutate further.
type Graph struct {
	mu sync.Mutex // guards the mutable/compressed transition bookkeeping

	nodes    []Node
	keyIndex map[[3]int64]int32
	adj      [][]mutEdge // default-layer outgoing edges, per node, insertion order

	layers *btree.Map[string, map[int64]float64] // overlay name -> (parent<<32|child) -> score
	attrs  map[string]*attribute

	dirty    bool
	defaultC csr
}

func edgeKey(parent, child int32) int64 {
	return int64(uint32(parent))<<32 | int64(uint32(child))
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		keyIndex: make(map[[3]int64]int32),
		layers:   btree.NewMap[string, map[int64]float64](16),
		attrs:    make(map[string]*attribute),
		dirty:    true,
	}
}

// NodeCount returns the number of nodes currently in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the default layer.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, es := range g.adj {
		n += len(es)
	}
	return n
}

// GetID returns the dense id assigned to point, or ok=false if no node has
// been inserted at an equivalent (quantized) coordinate.
func (g *Graph) GetID(point geom.Vec) (id int32, ok bool) {
	key := geom.RoundKey(point, decimalPrecision)
	id, ok = g.keyIndex[key]
	return id, ok
}

// InternNode returns the id for point, minting a fresh dense id on first
// occurrence of its quantized coordinate — the node-only counterpart to
// AddEdge, used by VisibilityGraph to seed node ids in input order before
// any occlusion queries run, so that a node with no visible neighbors
// still occupies its slot in the id space.
func (g *Graph) InternNode(point geom.Vec) int32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.internNode(point)
}

// internNode returns the id for point, minting a fresh dense id on first
// occurrence of its quantized coordinate.
func (g *Graph) internNode(point geom.Vec) int32 {
	key := geom.RoundKey(point, decimalPrecision)
	if id, ok := g.keyIndex[key]; ok {
		return id
	}
	id := int32(len(g.nodes))
	g.nodes = append(g.nodes, Node{ID: id, Point: point})
	g.adj = append(g.adj, nil)
	g.keyIndex[key] = id
	return id
}

// AddEdge inserts both endpoints if absent and records the edge in the
// given cost layer. Writing to a non-default layer requires the edge to
// already exist in the default layer.
func (g *Graph) AddEdge(parent, child geom.Vec, score float64, stepType int32, costLayer string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	pid := g.internNode(parent)
	cid := g.internNode(child)

	if costLayer == DefaultLayer {
		g.upsertDefaultEdge(pid, cid, score, stepType)
		g.dirty = true
		return nil
	}

	if !g.hasDefaultEdge(pid, cid) {
		return engerr.EdgeNotInDefaultLayer("Graph.AddEdge")
	}
	g.upsertOverlay(costLayer, pid, cid, score)
	g.dirty = true
	return nil
}

// BatchEdge is one entry of an AddEdges call.
type BatchEdge struct {
	Parent    geom.Vec
	Child     geom.Vec
	Score     float64
	StepType  int32
	CostLayer string
}

// AddEdges bulk-inserts edges, semantically equivalent to repeated AddEdge.
func (g *Graph) AddEdges(batch []BatchEdge) error {
	for _, b := range batch {
		layer := b.CostLayer
		if err := g.AddEdge(b.Parent, b.Child, b.Score, b.StepType, layer); err != nil {
			return err
		}
	}
	return nil
}

// AddEdgeByID is the id-addressed counterpart to AddEdge, used by
// CostAlgorithms and VisibilityGraph once node ids are already known.
func (g *Graph) AddEdgeByID(parent, child int32, score float64, stepType int32, costLayer string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if int(parent) >= len(g.nodes) || int(child) >= len(g.nodes) || parent < 0 || child < 0 {
		return engerr.NoSuchNode("Graph.AddEdgeByID")
	}

	if costLayer == DefaultLayer {
		g.upsertDefaultEdge(parent, child, score, stepType)
		g.dirty = true
		return nil
	}
	if !g.hasDefaultEdge(parent, child) {
		return engerr.EdgeNotInDefaultLayer("Graph.AddEdgeByID")
	}
	g.upsertOverlay(costLayer, parent, child, score)
	g.dirty = true
	return nil
}

func (g *Graph) upsertDefaultEdge(parent, child int32, score float64, stepType int32) {
	es := g.adj[parent]
	for i := range es {
		if es[i].child == child {
			es[i].score = score
			es[i].stepType = stepType
			return
		}
	}
	g.adj[parent] = append(es, mutEdge{child: child, score: score, stepType: stepType})
}

func (g *Graph) hasDefaultEdge(parent, child int32) bool {
	if int(parent) >= len(g.adj) {
		return false
	}
	for _, e := range g.adj[parent] {
		if e.child == child {
			return true
		}
	}
	return false
}

func (g *Graph) upsertOverlay(layer string, parent, child int32, score float64) {
	m, ok := g.layers.Get(layer)
	if !ok {
		m = make(map[int64]float64)
		g.layers.Set(layer, m)
	}
	m[edgeKey(parent, child)] = score
}

// Nodes returns every node in id order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// EdgesFrom returns the outgoing default-layer edges of nodeID, in
// insertion order.
func (g *Graph) EdgesFrom(nodeID int32) ([]Edge, error) {
	if int(nodeID) >= len(g.adj) || nodeID < 0 {
		return nil, engerr.NoSuchNode("Graph.EdgesFrom")
	}
	es := g.adj[nodeID]
	out := make([]Edge, len(es))
	for i, e := range es {
		out[i] = Edge{Parent: nodeID, Child: e.child, Score: e.score, StepType: e.stepType}
	}
	return out, nil
}

// Subgraphs returns one Subgraph per node that has at least one outgoing
// edge, in ascending parent id order.
func (g *Graph) Subgraphs() []Subgraph {
	var out []Subgraph
	for pid, es := range g.adj {
		if len(es) == 0 {
			continue
		}
		edges := make([]Edge, len(es))
		for i, e := range es {
			edges[i] = Edge{Parent: int32(pid), Child: e.child, Score: e.score, StepType: e.stepType}
		}
		out = append(out, Subgraph{Parent: g.nodes[pid], Edges: edges})
	}
	return out
}

// Clear drops all nodes, edges, layers, and attributes, returning the
// graph to its initial (empty) state.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = nil
	g.keyIndex = make(map[[3]int64]int32)
	g.adj = nil
	g.layers = btree.NewMap[string, map[int64]float64](16)
	g.attrs = make(map[string]*attribute)
	g.defaultC = csr{}
	g.dirty = true
}

// IsCompressed reports whether the CSR arrays are currently consistent
// with the mutable adjacency lists.
func (g *Graph) IsCompressed() bool {
	return !g.dirty
}

// Compress rebuilds the default layer's CSR arrays from the mutable
// adjacency lists, sorting each row's children ascending. A no-op when
// already compressed.
func (g *Graph) Compress() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.compressLocked()
}

func (g *Graph) compressLocked() {
	if !g.dirty {
		return
	}
	n := len(g.nodes)
	outer := make([]int32, n+1)
	for i, es := range g.adj {
		outer[i+1] = outer[i] + int32(len(es))
	}
	nnz := outer[n]
	data := make([]float64, nnz)
	inner := make([]int32, nnz)

	for pid, es := range g.adj {
		sorted := make([]mutEdge, len(es))
		copy(sorted, es)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].child < sorted[j].child })
		base := outer[pid]
		for i, e := range sorted {
			data[int(base)+i] = e.score
			inner[int(base)+i] = e.child
		}
	}

	g.defaultC = csr{data: data, inner: inner, outer: outer}
	g.dirty = false
}

// CSR exposes the default layer's compressed-sparse-row arrays, forcing a
// compress if the graph is currently dirty.
func (g *Graph) CSR() (nnz int, rows, cols int, data []float64, innerIndices, outerIndices []int32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.compressLocked()
	n := len(g.nodes)
	return len(g.defaultC.data), n, n, g.defaultC.data, g.defaultC.inner, g.defaultC.outer
}

// CSRLayer exposes CSR arrays restricted to the named overlay layer: only
// edges present in that layer appear in data/innerIndices, but
// outerIndices is still length N+1 so rows without layer coverage have
// equal successive offsets.
func (g *Graph) CSRLayer(layer string) (nnz int, rows, cols int, data []float64, innerIndices, outerIndices []int32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.compressLocked()

	n := len(g.nodes)
	if layer == DefaultLayer {
		return len(g.defaultC.data), n, n, g.defaultC.data, g.defaultC.inner, g.defaultC.outer
	}

	scores, _ := g.layers.Get(layer)
	outer := make([]int32, n+1)
	var dataOut []float64
	var innerOut []int32

	for pid := 0; pid < n; pid++ {
		start, end := g.defaultC.outer[pid], g.defaultC.outer[pid+1]
		type kv struct {
			child int32
			score float64
		}
		var row []kv
		for i := start; i < end; i++ {
			child := g.defaultC.inner[i]
			if score, ok := scores[edgeKey(int32(pid), child)]; ok {
				row = append(row, kv{child: child, score: score})
			}
		}
		sort.Slice(row, func(i, j int) bool { return row[i].child < row[j].child })
		for _, r := range row {
			dataOut = append(dataOut, r.score)
			innerOut = append(innerOut, r.child)
		}
		outer[pid+1] = int32(len(dataOut))
	}

	return len(dataOut), n, n, dataOut, innerOut, outer
}
