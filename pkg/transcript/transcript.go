// Package transcript records processed chat turns for later inspection.
//
// The transcript is an audit artifact, not conversation state: the relay
// keeps working histories in memory and only writes here after a turn has
// been fully processed, whatever its outcome.
package transcript

import (
	"context"
	"time"
)

// Outcome labels for Entry.Outcome.
const (
	OutcomeOK              = "ok"
	OutcomeEmptyInput      = "empty_input"
	OutcomeInputFiltered   = "input_filtered"
	OutcomeOutputFiltered  = "output_filtered"
	OutcomeUpstreamError   = "upstream_error"
	OutcomeEmptyCompletion = "empty_completion"
)

// Entry is one processed turn, whatever its outcome.
type Entry struct {
	ID             string        `json:"id"`
	Session        string        `json:"session"`
	Outcome        string        `json:"outcome"`
	Prompt         string        `json:"prompt"`
	Reply          string        `json:"reply,omitempty"`
	Classification string        `json:"classification,omitempty"`
	Model          string        `json:"model,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Stats summarizes recorded turns.
type Stats struct {
	Total     int            `json:"total"`
	ByOutcome map[string]int `json:"by_outcome"`
}

// Recorder persists turn entries to a storage backend.
type Recorder interface {
	// Record stores an entry.
	Record(ctx context.Context, entry *Entry) error

	// Recent returns the most recent entries, newest first, at most limit.
	// A non-positive limit returns everything.
	Recent(ctx context.Context, limit int) ([]*Entry, error)

	// BySession returns a session's entries in insertion order.
	BySession(ctx context.Context, session string) ([]*Entry, error)

	// Stats returns counts over all recorded entries.
	Stats(ctx context.Context) (Stats, error)

	// Close closes the recorder and releases any resources.
	Close() error
}
