// Package store persists the run history of optimizer, costing and
// comparison runs.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/heraklist/evochia-ops/internal/model"
)

// DefaultListLimit is used when a RunFilter has no positive limit.
const DefaultListLimit = 100

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind   model.RunKind   `json:"kind,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Store defines the persistence interface for run history.
type Store interface {
	CreateRun(ctx context.Context, kind model.RunKind, outputDir string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary any) error
	FailRun(ctx context.Context, runID string, cause error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func marshalSummary(summary any) ([]byte, error) {
	if summary == nil {
		return nil, nil
	}
	if raw, ok := summary.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal summary")
	}
	return data, nil
}

func errorText(cause error) string {
	if cause == nil {
		return "unknown error"
	}
	return cause.Error()
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
