package rayengine

import (
	"math"
	"sync"
	"testing"

	"github.com/azybler/meshvis/pkg/geom"
	"github.com/azybler/meshvis/pkg/mesh"
)

func singleTriMesh(t *testing.T, id int32) *mesh.MeshInfo {
	t.Helper()
	m, err := mesh.New(id, "tri", []float32{
		-1, -1, 0,
		1, -1, 0,
		0, 1, 0,
	}, []uint32{0, 1, 2}, geom.NewEulerRotation(0, 0, 0))
	if err != nil {
		t.Fatalf("mesh.New: %v", err)
	}
	return m
}

func TestNewFromMeshesRejectsDuplicateMeshID(t *testing.T) {
	m0 := singleTriMesh(t, 0)
	m1 := singleTriMesh(t, 0)
	_, err := NewFromMeshes([]*mesh.MeshInfo{m0, m1}, false)
	if err == nil {
		t.Fatal("expected error for duplicate mesh id")
	}
}

func TestInsertRejectsCollidingMeshID(t *testing.T) {
	engine := flatPlaneEngine(t, false)
	defer engine.Release()

	dup, err := mesh.New(0, "dup", []float32{0, 0, 1, 1, 0, 1, 0, 1, 1}, []uint32{0, 1, 2}, geom.NewEulerRotation(0, 0, 0))
	if err != nil {
		t.Fatalf("mesh.New: %v", err)
	}
	if err := engine.Insert(dup, true); err == nil {
		t.Fatal("expected error for mesh id collision")
	}
}

func TestInsertWithoutCommitDefersVisibility(t *testing.T) {
	engine := flatPlaneEngine(t, false)
	defer engine.Release()

	extra := singleTriMesh(t, 1)
	if err := engine.Insert(extra, false); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	before := engine.TriangleCount()

	if err := engine.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	after := engine.TriangleCount()

	if after != before+1 {
		t.Errorf("TriangleCount after commit = %d, want %d", after, before+1)
	}
}

func TestCommitWithNothingPendingIsNoOp(t *testing.T) {
	engine := flatPlaneEngine(t, false)
	defer engine.Release()

	before := engine.TriangleCount()
	if err := engine.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if engine.TriangleCount() != before {
		t.Errorf("TriangleCount changed on a no-op commit")
	}
}

// TestCloneSharesSceneAndReleaseIsRefCounted is spec.md's clone/drop
// invariant: Clone shares the underlying scene (no rebuild, same query
// results), and the scene is only torn down on the last Release.
func TestCloneSharesSceneAndReleaseIsRefCounted(t *testing.T) {
	engine := flatPlaneEngine(t, false)
	clone := engine.Clone()

	hit := clone.Intersect(geom.New(0, 0, 1), geom.New(0, 0, -1), math.Inf(1))
	if !hit.Hit {
		t.Fatal("clone should see the same scene as the original")
	}

	engine.Release() // one ref remains, held by clone
	hit = clone.Intersect(geom.New(0, 0, 1), geom.New(0, 0, -1), math.Inf(1))
	if !hit.Hit {
		t.Fatal("clone must still be queryable after the original is released")
	}

	clone.Release() // last ref: scene is torn down
	hit = clone.Intersect(geom.New(0, 0, 1), geom.New(0, 0, -1), math.Inf(1))
	if hit.Hit {
		t.Fatal("a query against a fully released scene must report a miss, not a hit")
	}
}

// TestReleaseDuringConcurrentQueriesDoesNotRace exercises the exclusive-
// lock discipline in Release against in-flight queries: the last Release
// (which actually tears down the scene's buffers) runs concurrently with
// a batch of queries, and every query either completes against the live
// scene or observes the destroyed scene cleanly, never a half torn-down
// one. Run with -race to confirm there is no data race.
func TestReleaseDuringConcurrentQueriesDoesNotRace(t *testing.T) {
	engine := flatPlaneEngine(t, false) // sole ref: this Release tears the scene down

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.Intersect(geom.New(0, 0, 1), geom.New(0, 0, -1), math.Inf(1))
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		engine.Release()
	}()
	wg.Wait()
}

func TestMeshCountAndPrecise(t *testing.T) {
	engine := flatPlaneEngine(t, true)
	defer engine.Release()

	if engine.MeshCount() != 1 {
		t.Errorf("MeshCount = %d, want 1", engine.MeshCount())
	}
	if !engine.Precise() {
		t.Error("Precise = false, want true")
	}
}
