// Package visibility builds sgraph.Graph instances whose edges mark pairs
// of nodes with an unobstructed mutual sight line, using occlusion queries
// fired through a rayengine.RayEngine.
package visibility

import (
	"context"
	"math"
	"sync"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sync/semaphore"

	"github.com/azybler/meshvis/pkg/geom"
	"github.com/azybler/meshvis/pkg/rayengine"
	"github.com/azybler/meshvis/pkg/sgraph"
)

// DefaultHeight is the eye-height offset added to each node's z-coordinate
// when it isn't specified, matching spec.md §4.5.
const DefaultHeight = 1.7

// epsilon is subtracted from t_max for occlusion rays so that a ray
// starting inside or very near the target geometry doesn't self-occlude.
const epsilon = 1e-4

func eyePoint(p geom.Vec, height float64) geom.Vec {
	return geom.New(p.X, p.Y, p.Z+height)
}

// AllToAll fires an occlusion ray between every ordered pair (i, j), i !=
// j, of nodes and inserts a directed edge (i, j) scoring the pair's
// distance when the sight line is unobstructed.
func AllToAll(engine *rayengine.RayEngine, nodes []geom.Vec, height float64) *sgraph.Graph {
	g := sgraph.New()
	eyes := make([]geom.Vec, len(nodes))
	for i, n := range nodes {
		g.InternNode(n)
		eyes[i] = eyePoint(n, height)
	}

	for i := range eyes {
		for j := range eyes {
			if i == j {
				continue
			}
			if visible(engine, eyes[i], eyes[j]) {
				dist := distance(eyes[i], eyes[j])
				g.AddEdge(nodes[i], nodes[j], dist, 0, sgraph.DefaultLayer)
			}
		}
	}
	return g
}

// GroupToGroup builds the Cartesian-product visibility graph between two
// node sets; the returned graph's ids are [0, len(from)+len(to)) with
// from-nodes first.
func GroupToGroup(engine *rayengine.RayEngine, from, to []geom.Vec, height float64) *sgraph.Graph {
	g := sgraph.New()
	// Seed node ids in order so that from-nodes occupy the low ids even
	// when none of them gain an edge.
	for _, p := range from {
		g.InternNode(p)
	}
	for _, p := range to {
		g.InternNode(p)
	}

	fromEyes := make([]geom.Vec, len(from))
	for i, p := range from {
		fromEyes[i] = eyePoint(p, height)
	}
	toEyes := make([]geom.Vec, len(to))
	for i, p := range to {
		toEyes[i] = eyePoint(p, height)
	}

	for i, a := range fromEyes {
		for j, b := range toEyes {
			if visible(engine, a, b) {
				dist := distance(a, b)
				g.AddEdge(from[i], to[j], dist, 0, sgraph.DefaultLayer)
			}
		}
	}
	return g
}

type pairEdge struct {
	i, j int
	dist float64
}

// AllToAllUndirected is the parallel, symmetry-exploiting variant: only
// pairs with i < j are tested; a visible pair inserts both (i, j) and (j,
// i) with equal score. cores = -1 means "use all available hardware
// threads"; a positive value pins the degree of parallelism.
//
// Pair-space is partitioned into contiguous row chunks, matching the
// "source dispatches with coarse chunking, never merges by completion
// order" design note: each worker appends to its own chunk's edge slice,
// and the final graph is assembled by concatenating chunks in ascending
// chunk-index order, so two runs over the same input always produce the
// same edge insertion order and hence the same graph.
func AllToAllUndirected(engine *rayengine.RayEngine, nodes []geom.Vec, height float64, cores int) *sgraph.Graph {
	n := len(nodes)
	g := sgraph.New()
	if n == 0 {
		return g
	}
	for _, p := range nodes {
		g.InternNode(p)
	}
	if n == 1 {
		return g
	}

	eyes := make([]geom.Vec, n)
	for i, p := range nodes {
		eyes[i] = eyePoint(p, height)
	}

	workers := resolveCores(cores)
	if workers > n-1 {
		workers = n - 1
	}
	if workers < 1 {
		workers = 1
	}

	chunks := make([][]pairEdge, workers)
	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(int64(workers))
	for w := 0; w < workers; w++ {
		rowStart := w * chunkSize
		rowEnd := min(rowStart+chunkSize, n)
		if rowStart >= rowEnd {
			continue
		}
		wg.Add(1)
		w := w
		go func() {
			defer wg.Done()
			_ = sem.Acquire(context.Background(), 1)
			defer sem.Release(1)

			var local []pairEdge
			for i := rowStart; i < rowEnd; i++ {
				for j := i + 1; j < n; j++ {
					if visible(engine, eyes[i], eyes[j]) {
						local = append(local, pairEdge{i: i, j: j, dist: distance(eyes[i], eyes[j])})
					}
				}
			}
			chunks[w] = local
		}()
	}
	wg.Wait()

	for _, chunk := range chunks {
		for _, e := range chunk {
			g.AddEdge(nodes[e.i], nodes[e.j], e.dist, 0, sgraph.DefaultLayer)
			g.AddEdge(nodes[e.j], nodes[e.i], e.dist, 0, sgraph.DefaultLayer)
		}
	}
	return g
}

func resolveCores(cores int) int {
	if cores > 0 {
		return cores
	}
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return 1
}

// visible fires an occlusion ray from a toward b using a unit direction
// vector, so that the returned HitRecord/occlusion distance is the
// physical distance along the sight line and t_max can be expressed
// directly in those same units.
func visible(engine *rayengine.RayEngine, a, b geom.Vec) bool {
	d := distance(a, b)
	if d == 0 {
		return true // coincident endpoints: always visible (epsilon clamp)
	}
	dir := geom.New((b.X-a.X)/d, (b.Y-a.Y)/d, (b.Z-a.Z)/d)
	tMax := math.Max(d-epsilon, 0)
	return !engine.FireOcclusion(a, dir, tMax)
}

func distance(a, b geom.Vec) float64 {
	return math.Sqrt((b.X-a.X)*(b.X-a.X) + (b.Y-a.Y)*(b.Y-a.Y) + (b.Z-a.Z)*(b.Z-a.Z))
}
