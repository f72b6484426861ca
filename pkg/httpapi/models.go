package httpapi

// Vec3JSON is a 3-D coordinate in JSON.
type Vec3JSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// IntersectRequest is the JSON body for POST /v1/intersect.
type IntersectRequest struct {
	Origin    Vec3JSON `json:"origin"`
	Direction Vec3JSON `json:"direction"`
	TMax      *float64 `json:"t_max,omitempty"`
}

// IntersectResponse is the JSON response for a closest-hit query.
type IntersectResponse struct {
	Hit      bool     `json:"hit"`
	Distance float32  `json:"distance,omitempty"`
	MeshID   int32    `json:"mesh_id,omitempty"`
	TriID    uint32   `json:"tri_id,omitempty"`
	Point    Vec3JSON `json:"point,omitempty"`
}

// OccludeRequest is the JSON body for POST /v1/occlude.
type OccludeRequest struct {
	Origin    Vec3JSON `json:"origin"`
	Direction Vec3JSON `json:"direction"`
	TMax      float64  `json:"t_max"`
}

// OccludeResponse is the JSON response for an occlusion query.
type OccludeResponse struct {
	Occluded bool `json:"occluded"`
}

// VisibilityRequest is the JSON body for POST /v1/visibility.
type VisibilityRequest struct {
	Nodes      []Vec3JSON `json:"nodes"`
	Height     *float64   `json:"height,omitempty"`
	Undirected bool       `json:"undirected"`
	Cores      int        `json:"cores,omitempty"`
}

// VisibilityEdgeJSON is one edge of a VisibilityResponse.
type VisibilityEdgeJSON struct {
	Parent int32   `json:"parent"`
	Child  int32   `json:"child"`
	Score  float64 `json:"score"`
}

// VisibilityResponse is the JSON response for POST /v1/visibility.
type VisibilityResponse struct {
	NodeCount int                   `json:"node_count"`
	Edges     []VisibilityEdgeJSON `json:"edges"`
}

// StatsResponse is the JSON response for GET /v1/stats.
type StatsResponse struct {
	MeshCount     int  `json:"mesh_count"`
	TriangleCount int  `json:"triangle_count"`
	Precise       bool `json:"precise"`
}

// HealthResponse is the JSON response for GET /v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the JSON response for a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
