// Package inmemory provides a transcript recorder backed by process memory.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/moriagate/balrog/pkg/transcript"
)

// Driver stores entries in memory. Used in tests and when the relay runs
// without a database path.
type Driver struct {
	mu      sync.RWMutex
	entries []*transcript.Entry
}

// NewDriver creates an empty in-memory recorder.
func NewDriver() *Driver {
	return &Driver{}
}

// Record stores a copy of the entry.
func (d *Driver) Record(ctx context.Context, entry *transcript.Entry) error {
	if entry == nil {
		return fmt.Errorf("cannot record nil entry")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	e := *entry
	d.entries = append(d.entries, &e)
	return nil
}

// Recent returns the most recent entries, newest first.
func (d *Driver) Recent(ctx context.Context, limit int) ([]*transcript.Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := len(d.entries)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]*transcript.Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		e := *d.entries[i]
		out = append(out, &e)
	}
	return out, nil
}

// BySession returns a session's entries in insertion order.
func (d *Driver) BySession(ctx context.Context, session string) ([]*transcript.Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*transcript.Entry, 0)
	for _, entry := range d.entries {
		if entry.Session == session {
			e := *entry
			out = append(out, &e)
		}
	}
	return out, nil
}

// Stats returns counts over all recorded entries.
func (d *Driver) Stats(ctx context.Context) (transcript.Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := transcript.Stats{
		Total:     len(d.entries),
		ByOutcome: make(map[string]int),
	}
	for _, entry := range d.entries {
		stats.ByOutcome[entry.Outcome]++
	}
	return stats, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
