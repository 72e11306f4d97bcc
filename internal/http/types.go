package http

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Services   map[string]string `json:"services"`
	Collection *CollectionStatus `json:"collection,omitempty"`
}

// CollectionStatus describes the backing vector collection.
type CollectionStatus struct {
	Name       string `json:"name"`
	Chunks     int    `json:"chunks"`
	VectorSize int    `json:"vector_size"`
}
