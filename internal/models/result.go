package models

// SearchHit is a single search result.
type SearchHit struct {
	EntryID     string                 `json:"entry_id"`
	Fingerprint string                 `json:"fingerprint"`
	Score       float64                `json:"score"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	ProjectID string       `json:"project_id"`
	Results   []*SearchHit `json:"results"`
	Total     int          `json:"total"`
	QueryTime int64        `json:"query_time_ms"`
}
