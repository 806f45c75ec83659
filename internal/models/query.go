package models

// Search modes supported by the retriever.
const (
	// SearchModeHybrid blends vector similarity with lexical rank.
	SearchModeHybrid = "hybrid"
	// SearchModeVector ranks by vector distance alone.
	SearchModeVector = "vector"
)

// SearchQuery is the input for a retrieval request.
type SearchQuery struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
	Mode  string `json:"mode,omitempty"`
}

// SearchResult represents a single retrieval hit.
type SearchResult struct {
	ID        string  `json:"id"`
	ServiceID string  `json:"service_id"`
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
}
