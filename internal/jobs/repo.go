package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Repo stores analysis runs.
type Repo interface {
	Create(ctx context.Context, run Run) error
	Finish(ctx context.Context, id, status string, total, completed int, results json.RawMessage, errorMessage string, finishedAt time.Time) error
	GetByID(ctx context.Context, id string) (Run, error)
	List(ctx context.Context, limit, offset int) ([]Run, error)
}
