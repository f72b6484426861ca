package httpapi

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/azybler/meshvis/pkg/geom"
	"github.com/azybler/meshvis/pkg/rayengine"
	"github.com/azybler/meshvis/pkg/sgraph"
	"github.com/azybler/meshvis/pkg/visibility"
)

var (
	queryCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshvis_queries_total",
		Help: "Ray and visibility queries served, by kind.",
	}, []string{"kind"})

	visibilityEdgeCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meshvis_visibility_edges_total",
		Help: "Total edges inserted by visibility graph builds.",
	})
)

// Handlers holds the HTTP handlers and their engine dependency.
type Handlers struct {
	engine *rayengine.RayEngine
}

// NewHandlers creates handlers wrapping the given engine.
func NewHandlers(engine *rayengine.RayEngine) *Handlers {
	return &Handlers{engine: engine}
}

func toVec(v Vec3JSON) geom.Vec { return geom.New(v.X, v.Y, v.Z) }

func fromVec(v geom.Vec) Vec3JSON { return Vec3JSON{X: v.X, Y: v.Y, Z: v.Z} }

// HandleIntersect handles POST /v1/intersect.
func (h *Handlers) HandleIntersect(w http.ResponseWriter, r *http.Request) {
	queryCounter.WithLabelValues("intersect").Inc()

	var req IntersectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tMax := float64(1e308) // effectively unbounded when omitted
	if req.TMax != nil {
		tMax = *req.TMax
	}

	hit := h.engine.Intersect(toVec(req.Origin), toVec(req.Direction), tMax)
	writeJSON(w, http.StatusOK, IntersectResponse{
		Hit:      hit.Hit,
		Distance: hit.Distance,
		MeshID:   hit.MeshID,
		TriID:    hit.TriID,
		Point:    fromVec(hit.Point),
	})
}

// HandleOcclude handles POST /v1/occlude.
func (h *Handlers) HandleOcclude(w http.ResponseWriter, r *http.Request) {
	queryCounter.WithLabelValues("occlude").Inc()

	var req OccludeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	occluded := h.engine.FireOcclusion(toVec(req.Origin), toVec(req.Direction), req.TMax)
	writeJSON(w, http.StatusOK, OccludeResponse{Occluded: occluded})
}

// HandleVisibility handles POST /v1/visibility.
func (h *Handlers) HandleVisibility(w http.ResponseWriter, r *http.Request) {
	queryCounter.WithLabelValues("visibility").Inc()

	var req VisibilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	height := visibility.DefaultHeight
	if req.Height != nil {
		height = *req.Height
	}

	nodes := make([]geom.Vec, len(req.Nodes))
	for i, n := range req.Nodes {
		nodes[i] = toVec(n)
	}

	var built *sgraph.Graph
	if req.Undirected {
		built = visibility.AllToAllUndirected(h.engine, nodes, height, req.Cores)
	} else {
		built = visibility.AllToAll(h.engine, nodes, height)
	}

	resp := buildVisibilityResponse(built)
	visibilityEdgeCounter.Add(float64(len(resp.Edges)))
	writeJSON(w, http.StatusOK, resp)
}

func buildVisibilityResponse(g *sgraph.Graph) VisibilityResponse {
	resp := VisibilityResponse{NodeCount: g.NodeCount()}
	for _, sub := range g.Subgraphs() {
		for _, e := range sub.Edges {
			resp.Edges = append(resp.Edges, VisibilityEdgeJSON{
				Parent: e.Parent,
				Child:  e.Child,
				Score:  e.Score,
			})
		}
	}
	return resp
}

// HandleStats handles GET /v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{
		MeshCount:     h.engine.MeshCount(),
		TriangleCount: h.engine.TriangleCount(),
		Precise:       h.engine.Precise(),
	})
}

// HandleHealth handles GET /v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, ErrorResponse{Error: code})
}
