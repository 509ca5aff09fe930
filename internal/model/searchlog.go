package model

import "time"

// SearchLogEntry is an append-only audit row recorded for each tool
// invocation that touched the cache. Never read by business logic; the
// stats and export tools are its only consumers.
type SearchLogEntry struct {
	ID          string    `json:"id"`
	ToolName    string    `json:"tool_name"`
	QueryParams string    `json:"query_params"`
	ResultCount int       `json:"result_count"`
	CacheHit    bool      `json:"cache_hit"`
	CreatedAt   time.Time `json:"created_at"`
}
