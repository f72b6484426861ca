package rayengine

import (
	"math"
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/azybler/meshvis/internal/engerr"
	"github.com/azybler/meshvis/pkg/geom"
)

// HitRecord is the result of a ray query. Distance and Point are only
// meaningful when Hit is true.
type HitRecord struct {
	Hit      bool
	Distance float32
	MeshID   int32
	TriID    uint32
	Point    geom.Vec
}

// defaultParallelism returns the degree of parallelism used when cores is
// -1 ("use all available hardware threads").
func defaultParallelism() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func resolveCores(cores int) int {
	if cores <= 0 {
		return defaultParallelism()
	}
	return cores
}

// effectiveTMax clamps an unbounded t_max to a distance guaranteed to
// cover the entire scene, since nothing beyond the scene's bounding box
// can be hit. Caller must hold s.writeMu for reading.
func (s *sharedScene) effectiveTMax(origin, dir geom.Vec, tMax float64) float64 {
	if !math.IsInf(tMax, 1) {
		return tMax
	}
	if !s.hasBound {
		return 0
	}
	diag := geom.HorizontalLength(geom.New(s.boundMax.X-s.boundMin.X, s.boundMax.Y-s.boundMin.Y, 0))
	diag += s.boundMax.Z - s.boundMin.Z
	// Distance from origin to the far corner of the scene's bound, plus
	// the bound's own diagonal, is always sufficient headroom.
	far := geom.New(
		math.Max(math.Abs(origin.X-s.boundMin.X), math.Abs(origin.X-s.boundMax.X)),
		math.Max(math.Abs(origin.Y-s.boundMin.Y), math.Abs(origin.Y-s.boundMax.Y)),
		math.Max(math.Abs(origin.Z-s.boundMin.Z), math.Abs(origin.Z-s.boundMax.Z)),
	)
	reach := diag + far.X + far.Y + far.Z
	// t is measured in multiples of dir, so a non-unit direction needs the
	// physical reach divided by its length.
	if l := math.Sqrt(dir.X*dir.X + dir.Y*dir.Y + dir.Z*dir.Z); l > 0 {
		reach /= l
	}
	return reach
}

// candidates runs f over every triangle whose scene-index footprint
// overlaps the ray's segment bounding box; f returns false to stop early.
// Caller must hold s.writeMu for reading.
func (s *sharedScene) candidates(origin, dir geom.Vec, tMax float64, f func(idx uint32) bool) {
	if s.destroyed.Load() || len(s.triangles) == 0 {
		return
	}
	end := geom.New(origin.X+dir.X*tMax, origin.Y+dir.Y*tMax, origin.Z+dir.Z*tMax)
	minX, maxX := minmax(origin.X, end.X)
	minY, maxY := minmax(origin.Y, end.Y)
	minZ, maxZ := minmax(origin.Z, end.Z)

	s.index.Search([2]float64{minX, minY}, [2]float64{maxX, maxY}, func(_, _ [2]float64, idx uint32) bool {
		if s.zmax[idx] < minZ || s.zmin[idx] > maxZ {
			return true // z-slab reject, keep scanning
		}
		return f(idx)
	})
}

func minmax(a, b float64) (lo, hi float64) {
	if a < b {
		return a, b
	}
	return b, a
}

// closestHit finds the nearest intersection in [0, t_max].
func (e *RayEngine) closestHit(origin, dir geom.Vec, tMax float64) HitRecord {
	s := e.scene
	s.writeMu.RLock()
	defer s.writeMu.RUnlock()

	tMax = s.effectiveTMax(origin, dir, tMax)

	best := HitRecord{}
	bestT := math.Inf(1)
	s.candidates(origin, dir, tMax, func(idx uint32) bool {
		tri := s.triangles[idx]
		if hit, t := intersectTriangle(s.precise, origin, dir, tri.v0, tri.v1, tri.v2, tMax); hit {
			if t < bestT {
				bestT = t
				best = HitRecord{
					Hit:      true,
					Distance: float32(t),
					MeshID:   tri.meshID,
					TriID:    tri.localTriID,
					Point:    geom.New(origin.X+dir.X*t, origin.Y+dir.Y*t, origin.Z+dir.Z*t),
				}
			}
		}
		return true
	})
	return best
}

// anyHit stops at the first intersection found, for occlusion queries.
func (e *RayEngine) anyHit(origin, dir geom.Vec, tMax float64) bool {
	s := e.scene
	s.writeMu.RLock()
	defer s.writeMu.RUnlock()

	tMax = s.effectiveTMax(origin, dir, tMax)

	found := false
	s.candidates(origin, dir, tMax, func(idx uint32) bool {
		tri := s.triangles[idx]
		if hit, _ := intersectTriangle(s.precise, origin, dir, tri.v0, tri.v1, tri.v2, tMax); hit {
			found = true
			return false // stop scanning
		}
		return true
	})
	return found
}

// Intersect returns the closest hit in [0, t_max]. t_max defaults to +Inf
// when the caller has no bound; pass math.Inf(1) explicitly.
func (e *RayEngine) Intersect(origin, dir geom.Vec, tMax float64) HitRecord {
	return e.closestHit(origin, dir, tMax)
}

// FireRay reports only whether a ray hits anything in [0, t_max].
func (e *RayEngine) FireRay(origin, dir geom.Vec, tMax float64) bool {
	return e.closestHit(origin, dir, tMax).Hit
}

// FireAnyRay is the single entry point for "did it hit, how far, what":
// it returns the closest hit's (hit?, distance, mesh id).
func (e *RayEngine) FireAnyRay(origin, dir geom.Vec, tMax float64) (bool, float32, int32) {
	h := e.closestHit(origin, dir, tMax)
	return h.Hit, h.Distance, h.MeshID
}

// FireOcclusion is an any-hit query: it stops at the first intersection
// in [0, t_max], used for visibility testing.
func (e *RayEngine) FireOcclusion(origin, dir geom.Vec, tMax float64) bool {
	return e.anyHit(origin, dir, tMax)
}

// FireManyIntersect runs Intersect over parallel origin/direction/tMax
// arrays, fanning work out across goroutines in contiguous chunks and
// writing results back in input order regardless of completion order.
// tMax may be nil, meaning +Inf for every ray.
func (e *RayEngine) FireManyIntersect(origins, dirs []geom.Vec, tMax []float64) ([]HitRecord, error) {
	n, err := validateRaySet(origins, dirs, tMax)
	if err != nil {
		return nil, err
	}
	results := make([]HitRecord, n)
	parallelFor(n, defaultParallelism(), func(i int) {
		results[i] = e.closestHit(origins[i], dirs[i], tMaxAt(tMax, i))
	})
	return results, nil
}

// FireManyOcclusion is the fire_occlusion analogue of FireManyIntersect.
func (e *RayEngine) FireManyOcclusion(origins, dirs []geom.Vec, tMax []float64) ([]bool, error) {
	n, err := validateRaySet(origins, dirs, tMax)
	if err != nil {
		return nil, err
	}
	results := make([]bool, n)
	parallelFor(n, defaultParallelism(), func(i int) {
		results[i] = e.anyHit(origins[i], dirs[i], tMaxAt(tMax, i))
	})
	return results, nil
}

func tMaxAt(tMax []float64, i int) float64 {
	if tMax == nil {
		return math.Inf(1)
	}
	return tMax[i]
}

func validateRaySet(origins, dirs []geom.Vec, tMax []float64) (int, error) {
	if len(origins) != len(dirs) {
		return 0, engerr.Invalid("rayengine.FireMany", "origin and direction arrays must be equal length")
	}
	if tMax != nil && len(tMax) != len(origins) {
		return 0, engerr.Invalid("rayengine.FireMany", "t_max array must match origin/direction length")
	}
	return len(origins), nil
}

// parallelFor partitions [0,n) into contiguous chunks, one per worker, and
// runs fn(i) for each index. Chunking (rather than per-index dispatch) is
// what makes the chunk-index order, not completion order, the thing that
// determines where results land — every fn write is to a distinct slot, so
// there is nothing to merge and nothing to race.
func parallelFor(n, workers int, fn func(i int)) {
	if n == 0 {
		return
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		start, end := start, end
		g.Go(func() error {
			for i := start; i < end; i++ {
				fn(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}
