package analysis

import "errors"

var (
	ErrNotFound = errors.New("job not found")
	ErrNoClient = errors.New("no client configured for provider")
)
