package model

import (
	"encoding/json"
	"time"
)

// RunKind identifies what a recorded run did.
type RunKind string

const (
	RunKindOptimize RunKind = "optimize"
	RunKindCost     RunKind = "cost"
	RunKindCompare  RunKind = "compare"
)

// RunStatus represents the current state of a recorded run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusBlocked  RunStatus = "blocked"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one optimizer, costing or comparison invocation recorded in the
// run history. Summary is the kind-specific summary document.
type Run struct {
	ID        string          `json:"id"`
	Kind      RunKind         `json:"kind"`
	Status    RunStatus       `json:"status"`
	OutputDir string          `json:"output_dir,omitempty"`
	Summary   json.RawMessage `json:"summary,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
