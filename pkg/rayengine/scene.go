// Package rayengine provides a thread-safe ray-intersection acceleration
// structure over one or more triangle meshes.
//
// The backing spatial index is a 2-D R-tree (github.com/tidwall/rtree)
// keyed by each triangle's horizontal (X-Y) footprint; the vertical
// extent is carried alongside each entry and used as a cheap pre-filter
// before the exact triangle test runs. This mirrors how a map-oriented
// R-tree is commonly pressed into service for 2.5-D scenes: reduce to a
// 2-D index, then slab-filter on the remaining axis.
package rayengine

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tidwall/rtree"

	"github.com/azybler/meshvis/internal/engerr"
	"github.com/azybler/meshvis/pkg/geom"
	"github.com/azybler/meshvis/pkg/mesh"
)

// triangle is one triangle uploaded into the shared scene.
type triangle struct {
	meshID     int32
	localTriID uint32
	v0, v1, v2 geom.Vec
}

// meshRecord tracks bookkeeping for one inserted mesh.
type meshRecord struct {
	triangleCount int
	name          string
}

// sharedScene is the reference-counted, otherwise-immutable acceleration
// structure. Queries take a shared (read) lock; Insert, Commit, and the
// last Release take the exclusive (write) lock, so concurrent queries
// never observe a scene mid-mutation (spec.md §4.2's "MUST NOT mutate
// the scene during queries; concurrent queries are safe").
type sharedScene struct {
	id        uuid.UUID
	precise   bool
	refs      atomic.Int32
	destroyed atomic.Bool

	writeMu sync.RWMutex // exclusive for Insert/Commit/Release, shared for queries

	triangles []triangle
	index     rtree.RTreeG[uint32] // 2-D (X,Y) footprint -> index into triangles
	zmin, zmax []float64            // parallel to triangles, for slab pre-filter

	meshes map[int32]*meshRecord

	pending []triangle // buffered by Insert(mesh, commit=false) until Commit()

	boundMin, boundMax geom.Vec // scene bounding box, used to clamp +Inf t_max
	hasBound           bool
}

// RayEngine is a value type owning a shared, reference-counted scene.
// Clone shares the scene (increments the reference count); Release
// decrements it, destroying the scene on the last release.
type RayEngine struct {
	scene *sharedScene
}

// New builds a RayEngine over a single mesh.
func New(m *mesh.MeshInfo, precise bool) (*RayEngine, error) {
	return NewFromMeshes([]*mesh.MeshInfo{m}, precise)
}

// NewFromMeshes builds a RayEngine over several meshes, uploaded together.
func NewFromMeshes(meshes []*mesh.MeshInfo, precise bool) (*RayEngine, error) {
	scene := &sharedScene{
		id:      uuid.New(),
		precise: precise,
		meshes:  make(map[int32]*meshRecord),
	}
	scene.refs.Store(1)

	for _, m := range meshes {
		if m.TriangleCount() == 0 {
			return nil, engerr.Invalid("rayengine.NewFromMeshes", "mesh has zero triangles")
		}
		if _, exists := scene.meshes[m.ID()]; exists {
			return nil, engerr.Invalid("rayengine.NewFromMeshes", "duplicate mesh id")
		}
		addMeshTriangles(scene, m)
	}
	rebuildIndex(scene)

	return &RayEngine{scene: scene}, nil
}

// NewFromTriangleSoup builds a RayEngine over a flat array of per-vertex
// coordinates, every three vertices forming one triangle — the "list of
// 3-tuples treated as a single triangle-soup mesh" constructor.
func NewFromTriangleSoup(flatVerts []float32, precise bool) (*RayEngine, error) {
	m, err := mesh.NewFromTriangleSoup(0, "", flatVerts, geom.NewEulerRotation(0, 0, 0))
	if err != nil {
		return nil, err
	}
	return New(m, precise)
}

func addMeshTriangles(scene *sharedScene, m *mesh.MeshInfo) {
	n := m.TriangleCount()
	scene.meshes[m.ID()] = &meshRecord{triangleCount: n, name: m.Name()}
	for t := 0; t < n; t++ {
		v0, v1, v2 := m.Triangle(uint32(t))
		tri := triangle{meshID: m.ID(), localTriID: uint32(t), v0: v0, v1: v1, v2: v2}
		scene.triangles = append(scene.triangles, tri)
		growBound(scene, tri)
	}
}

func growBound(scene *sharedScene, tri triangle) {
	lo, hi := triBounds(tri)
	if !scene.hasBound {
		scene.boundMin, scene.boundMax = lo, hi
		scene.hasBound = true
		return
	}
	scene.boundMin = geom.New(min(scene.boundMin.X, lo.X), min(scene.boundMin.Y, lo.Y), min(scene.boundMin.Z, lo.Z))
	scene.boundMax = geom.New(max(scene.boundMax.X, hi.X), max(scene.boundMax.Y, hi.Y), max(scene.boundMax.Z, hi.Z))
}

func triBounds(tri triangle) (lo, hi geom.Vec) {
	lo = geom.New(
		fmin3(tri.v0.X, tri.v1.X, tri.v2.X),
		fmin3(tri.v0.Y, tri.v1.Y, tri.v2.Y),
		fmin3(tri.v0.Z, tri.v1.Z, tri.v2.Z),
	)
	hi = geom.New(
		fmax3(tri.v0.X, tri.v1.X, tri.v2.X),
		fmax3(tri.v0.Y, tri.v1.Y, tri.v2.Y),
		fmax3(tri.v0.Z, tri.v1.Z, tri.v2.Z),
	)
	return
}

func fmin3(a, b, c float64) float64 { return min(a, min(b, c)) }
func fmax3(a, b, c float64) float64 { return max(a, max(b, c)) }

// rebuildIndex rebuilds the 2-D spatial index from scratch, over all
// triangles currently in scene.triangles. Called after a batch of
// insertions (NewFromMeshes, or Commit following buffered Insert calls).
func rebuildIndex(scene *sharedScene) {
	scene.index = rtree.RTreeG[uint32]{}
	scene.zmin = make([]float64, len(scene.triangles))
	scene.zmax = make([]float64, len(scene.triangles))
	for i, tri := range scene.triangles {
		lo, hi := triBounds(tri)
		scene.zmin[i] = lo.Z
		scene.zmax[i] = hi.Z
		scene.index.Insert([2]float64{lo.X, lo.Y}, [2]float64{hi.X, hi.Y}, uint32(i))
	}
}

// Insert adds a new mesh to the scene. If commit is false, the mesh's
// triangles are buffered and Commit must be called before any query.
func (e *RayEngine) Insert(m *mesh.MeshInfo, commit bool) error {
	s := e.scene
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, exists := s.meshes[m.ID()]; exists {
		return engerr.Invalid("RayEngine.Insert", "mesh id collides with an existing mesh")
	}
	if m.TriangleCount() == 0 {
		return engerr.Invalid("RayEngine.Insert", "mesh has zero triangles")
	}

	s.meshes[m.ID()] = &meshRecord{triangleCount: m.TriangleCount(), name: m.Name()}
	for t := 0; t < m.TriangleCount(); t++ {
		v0, v1, v2 := m.Triangle(uint32(t))
		tri := triangle{meshID: m.ID(), localTriID: uint32(t), v0: v0, v1: v1, v2: v2}
		s.pending = append(s.pending, tri)
	}

	if commit {
		return e.commitLocked()
	}
	return nil
}

// Commit flushes any triangles buffered by a non-committing Insert into
// the queryable index. A no-op if nothing is pending.
func (e *RayEngine) Commit() error {
	s := e.scene
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return e.commitLocked()
}

func (e *RayEngine) commitLocked() error {
	s := e.scene
	if len(s.pending) == 0 {
		return nil
	}
	for _, tri := range s.pending {
		growBound(s, tri)
	}
	s.triangles = append(s.triangles, s.pending...)
	s.pending = s.pending[:0]
	rebuildIndex(s)
	return nil
}

// Clone returns a new RayEngine sharing the same underlying scene via
// reference counting; it does not rebuild the acceleration structure.
func (e *RayEngine) Clone() *RayEngine {
	e.scene.refs.Add(1)
	return &RayEngine{scene: e.scene}
}

// Release decrements the scene's reference count, destroying the scene's
// buffers on the last release. Queries against a released engine report
// misses rather than erroring, matching the "ray queries never error"
// contract. The buffer teardown takes the same exclusive lock Insert and
// Commit use, so a query racing the last Release either completes first
// (reading the live scene) or blocks until the teardown is done (then
// sees destroyed == true and reports a clean miss) — it never observes a
// scene half torn down.
func (e *RayEngine) Release() {
	s := e.scene
	if s.refs.Add(-1) != 0 {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.destroyed.Store(true)
	s.triangles = nil
	s.pending = nil
	s.zmin = nil
	s.zmax = nil
	s.meshes = nil
}

// MeshCount returns the number of meshes currently in the scene.
func (e *RayEngine) MeshCount() int {
	s := e.scene
	s.writeMu.RLock()
	defer s.writeMu.RUnlock()
	return len(s.meshes)
}

// TriangleCount returns the total number of triangles currently queryable
// (committed, not pending).
func (e *RayEngine) TriangleCount() int {
	s := e.scene
	s.writeMu.RLock()
	defer s.writeMu.RUnlock()
	return len(s.triangles)
}

// Precise reports whether the engine uses the double-precision watertight
// intersection routine.
func (e *RayEngine) Precise() bool {
	return e.scene.precise
}
