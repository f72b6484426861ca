// Package mesh holds MeshInfo, an owned triangle mesh: a flat vertex
// buffer, a flat index buffer, a numeric id, and an optional name.
package mesh

import (
	"github.com/azybler/meshvis/internal/engerr"
	"github.com/azybler/meshvis/pkg/geom"
)

// MeshInfo is an owned (vertices, indices) block with an id unique within
// the RayEngine it is inserted into.
type MeshInfo struct {
	id       int32
	name     string
	vertices []float32 // flat, 3 per vertex: x0,y0,z0,x1,y1,z1,...
	indices  []uint32  // flat, 3 per triangle
}

// New builds a MeshInfo from separate vertex and index buffers. rotation
// is applied to every vertex before storage; pass geom.NewEulerRotation(0,
// 0, 0) for no rotation.
func New(id int32, name string, vertices []float32, indices []uint32, rotation geom.EulerRotation) (*MeshInfo, error) {
	if len(vertices)%3 != 0 {
		return nil, engerr.Invalid("mesh.New", "vertex array length must be a multiple of 3")
	}
	if len(indices)%3 != 0 {
		return nil, engerr.Invalid("mesh.New", "index array length must be a multiple of 3")
	}
	numVerts := uint32(len(vertices) / 3)
	for _, idx := range indices {
		if idx >= numVerts {
			return nil, engerr.Invalid("mesh.New", "triangle index out of range")
		}
	}
	if len(indices) == 0 {
		return nil, engerr.Invalid("mesh.New", "mesh has zero triangles")
	}

	out := make([]float32, len(vertices))
	copy(out, vertices)
	if !rotation.IsIdentity() {
		applyRotation(out, rotation)
	}

	idxOut := make([]uint32, len(indices))
	copy(idxOut, indices)

	return &MeshInfo{id: id, name: name, vertices: out, indices: idxOut}, nil
}

// NewFromTriangleSoup builds a MeshInfo from a flat array of per-vertex
// coordinates, grouping every three vertices into one triangle — the
// degenerate "list of 3-tuples treated as a single mesh" constructor from
// §4.2's RayEngine construction surface.
func NewFromTriangleSoup(id int32, name string, flatVerts []float32, rotation geom.EulerRotation) (*MeshInfo, error) {
	if len(flatVerts)%9 != 0 {
		return nil, engerr.Invalid("mesh.NewFromTriangleSoup", "triangle-soup array length must be a multiple of 9 (3 verts x 3 coords)")
	}
	numVerts := uint32(len(flatVerts) / 3)
	indices := make([]uint32, numVerts)
	for i := range indices {
		indices[i] = uint32(i)
	}
	return New(id, name, flatVerts, indices, rotation)
}

func applyRotation(vertices []float32, rotation geom.EulerRotation) {
	for i := 0; i+2 < len(vertices); i += 3 {
		v := geom.New(float64(vertices[i]), float64(vertices[i+1]), float64(vertices[i+2]))
		r := rotation.Apply(v)
		vertices[i] = float32(r.X)
		vertices[i+1] = float32(r.Y)
		vertices[i+2] = float32(r.Z)
	}
}

// ID returns the mesh's numeric id.
func (m *MeshInfo) ID() int32 { return m.id }

// Name returns the mesh's optional name.
func (m *MeshInfo) Name() string { return m.name }

// VertexCount returns the number of vertices.
func (m *MeshInfo) VertexCount() int { return len(m.vertices) / 3 }

// TriangleCount returns the number of triangles.
func (m *MeshInfo) TriangleCount() int { return len(m.indices) / 3 }

// Vertices returns the flat, read-only vertex buffer (3 floats per vertex).
func (m *MeshInfo) Vertices() []float32 { return m.vertices }

// Indices returns the flat, read-only index buffer (3 uint32 per triangle).
func (m *MeshInfo) Indices() []uint32 { return m.indices }

// Vertex returns the position of vertex i as a geom.Vec.
func (m *MeshInfo) Vertex(i uint32) geom.Vec {
	o := i * 3
	return geom.New(float64(m.vertices[o]), float64(m.vertices[o+1]), float64(m.vertices[o+2]))
}

// Triangle returns the three vertex positions of triangle t.
func (m *MeshInfo) Triangle(t uint32) (a, b, c geom.Vec) {
	o := t * 3
	return m.Vertex(m.indices[o]), m.Vertex(m.indices[o+1]), m.Vertex(m.indices[o+2])
}
