// Package history keeps a ledger of completed reconcile runs. Only run
// outcomes are recorded, never intermediate mutation state: crash safety
// comes from per-step idempotence, not from replaying a journal.
package history

import (
	"context"
	"time"
)

// Run is one completed (or failed) reconcile run.
type Run struct {
	ID         string
	RootQuery  string
	PlannedOps int
	AppliedOps int
	ErrorText  string // empty on success
	StartedAt  time.Time
	Duration   time.Duration
}

// Store persists run outcomes.
type Store interface {
	// RecordRun appends one run to the ledger.
	RecordRun(ctx context.Context, run Run) error

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]Run, error)

	Close() error
}
