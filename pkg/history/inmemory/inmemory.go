// Package inmemory provides a process-local history driver.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/papercomputeco/murmur/pkg/history"
)

// Driver implements history.Driver using an in-memory slice.
type Driver struct {
	mu      sync.RWMutex
	entries []*history.Entry
}

// NewDriver creates a new in-memory history driver.
func NewDriver() *Driver {
	return &Driver{}
}

// Append stores a copy of entry.
func (d *Driver) Append(_ context.Context, entry *history.Entry) error {
	if entry == nil {
		return errors.New("cannot store nil entry")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	cp := *entry
	d.mu.Lock()
	d.entries = append(d.entries, &cp)
	d.mu.Unlock()
	return nil
}

// List returns entries newest first.
func (d *Driver) List(_ context.Context, sessionID string, limit int) ([]*history.Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*history.Entry, 0, len(d.entries))
	for i := len(d.entries) - 1; i >= 0; i-- {
		e := d.entries[i]
		if sessionID != "" && e.SessionID != sessionID {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}
