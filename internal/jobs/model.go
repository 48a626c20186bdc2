package jobs

import (
	"encoding/json"
	"time"
)

// Run is a persisted analysis run: enough to list past batches and
// re-export their result tables.
type Run struct {
	ID             string          `json:"id"`
	Kind           string          `json:"kind"`
	Query          string          `json:"query,omitempty"`
	Provider       string          `json:"provider"`
	Model          string          `json:"model"`
	Status         string          `json:"status"`
	TotalCount     int             `json:"totalCount"`
	CompletedCount int             `json:"completedCount"`
	Results        json.RawMessage `json:"results,omitempty"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	FinishedAt     *time.Time      `json:"finishedAt,omitempty"`
}
