package models

import "fmt"

// SearchQuery is a similarity search request scoped to one project.
type SearchQuery struct {
	Vector []float32 `json:"vector,omitempty"`
	Text   string    `json:"text,omitempty"` // embedded by the server when Vector is empty
	// Limit is nil when the caller did not set it. An explicit zero or negative limit
	// yields an empty result.
	Limit     *int    `json:"limit,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// Normalize checks the threshold range and returns the effective limit: defaultLimit when
// Limit is unset, otherwise Limit capped at maxLimit. A limit below one is returned as is so
// the store can answer it with an empty result.
func (q *SearchQuery) Normalize(defaultLimit, maxLimit int) (int, error) {
	if q.Threshold < 0 || q.Threshold > 1 {
		return 0, fmt.Errorf("threshold must be in [0, 1], got %v", q.Threshold)
	}
	limit := defaultLimit
	if q.Limit != nil {
		limit = *q.Limit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return limit, nil
}

// IntPtr returns a pointer to n, for setting optional fields such as SearchQuery.Limit.
func IntPtr(n int) *int {
	return &n
}
