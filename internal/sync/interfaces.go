// Package sync defines the contracts shared by the offline sync components:
// the queue manager, the connectivity monitor and the background trigger.
package sync

import (
	"context"

	"github.com/aykha18/tajir-optimized-sub001/internal/models"
)

// Dispatcher replays one record against the remote API.
// This interface allows for mocking in tests and alternative transports.
type Dispatcher interface {
	// Create sends rec to the creation endpoint of opType and returns the
	// server's copy of the record, if it sent one.
	Create(ctx context.Context, opType models.OperationType, rec models.Record) (models.Record, error)
}

// Connectivity reports the platform's view of network availability.
type Connectivity interface {
	IsOnline() bool
}

// DrainResult summarizes one pass over the pending queue.
type DrainResult struct {
	// Skipped is set when the pass did not run, either because another
	// drain was in progress or because the platform reported offline.
	Skipped   bool `json:"skipped"`
	Offline   bool `json:"offline"`
	Attempted int  `json:"attempted"`
	Synced    int  `json:"synced"`
	Retried   int  `json:"retried"`
	Abandoned int  `json:"abandoned"`
}

// Drainer replays the pending queue.
type Drainer interface {
	Drain(ctx context.Context) (DrainResult, error)
}

// DrainerFunc adapts a function to Drainer.
type DrainerFunc func(ctx context.Context) (DrainResult, error)

// Drain calls f.
func (f DrainerFunc) Drain(ctx context.Context) (DrainResult, error) {
	return f(ctx)
}
