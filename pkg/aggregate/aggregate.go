// Package aggregate computes per-node reductions over a compressed
// sgraph.Graph's edge scores.
package aggregate

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/azybler/meshvis/pkg/sgraph"
)

// Kind selects the reduction applied to each node's incident edge scores.
type Kind int

const (
	Sum Kind = iota
	Average
	Count
	Max
	Min
)

// Compute returns a dense vector of length N, one reduction per node.
// When directed is true, only a node's outgoing edges are considered;
// when false, both outgoing and incoming edges are included, each
// physical edge counted once per endpoint it touches. A node with no
// matching edges yields 0 for Sum/Count and NaN for Average/Max/Min.
func Compute(g *sgraph.Graph, kind Kind, directed bool) []float64 {
	n := g.NodeCount()
	scores := make([][]float64, n)

	for pid := 0; pid < n; pid++ {
		edges, err := g.EdgesFrom(int32(pid))
		if err != nil {
			continue
		}
		for _, e := range edges {
			scores[pid] = append(scores[pid], e.Score)
			if !directed && e.Child != e.Parent {
				scores[e.Child] = append(scores[e.Child], e.Score)
			}
		}
	}

	out := make([]float64, n)
	for i, s := range scores {
		out[i] = reduce(kind, s)
	}
	return out
}

func reduce(kind Kind, scores []float64) float64 {
	if len(scores) == 0 {
		switch kind {
		case Sum, Count:
			return 0
		default:
			return math.NaN()
		}
	}
	switch kind {
	case Sum:
		return floats.Sum(scores)
	case Average:
		return floats.Sum(scores) / float64(len(scores))
	case Count:
		return float64(len(scores))
	case Max:
		return floats.Max(scores)
	case Min:
		return floats.Min(scores)
	default:
		return math.NaN()
	}
}
