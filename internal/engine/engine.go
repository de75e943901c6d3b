// Package engine wires discovery, matching, reconciliation, and execution
// into the single entry point callers use. One logical task per document:
// no two mutation sequences run concurrently against the same document
// because mutation ordering is structurally meaningful. Independent
// documents may be reconciled concurrently, each engine call building its
// own walker and index.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pagesync/internal/history"
	"pagesync/internal/matcher"
	"pagesync/internal/reconciler"
	"pagesync/internal/remote"
	"pagesync/internal/schema"
	"pagesync/internal/walker"
)

// Config bundles the engine's tuning knobs.
type Config struct {
	Walker walker.Config
	Retry  remote.RetryConfig // write-side delete retries
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Walker: walker.DefaultConfig(),
		Retry:  remote.DefaultRetryConfig(),
	}
}

// Result summarizes one reconcile run for the caller.
type Result struct {
	RunID            string
	Success          bool
	PlannedOps       int
	MutationsApplied int
	Errors           []string
	Warnings         []string
	Duration         time.Duration
}

// Engine reconciles documents against schemas.
type Engine struct {
	client remote.Client
	cfg    Config
	ledger history.Store // optional
	logger *zap.Logger
}

// New creates an Engine. ledger may be nil to skip run recording.
func New(client remote.Client, cfg Config, ledger history.Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{client: client, cfg: cfg, ledger: ledger, logger: logger}
}

// Plan computes the mutation plan for rootQuery without applying anything.
func (e *Engine) Plan(ctx context.Context, rootQuery string, s *schema.Schema) (*reconciler.Plan, []matcher.Ambiguity, error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}

	w := walker.New(e.client, e.cfg.Walker, e.logger)
	ix, err := w.Discover(ctx, rootQuery)
	if err != nil {
		return nil, nil, err
	}

	resolved, unresolved, ambiguities, err := matcher.Match(ix, s, ix.RootID(), e.logger)
	if err != nil {
		return nil, nil, err
	}
	if len(unresolved) > 0 {
		e.logger.Debug("entries to create", zap.Strings("keys", unresolved))
	}

	return reconciler.Build(ix, resolved, s, ix.RootID(), e.logger), ambiguities, nil
}

// ReconcileDocument discovers the document behind rootQuery, matches the
// schema, applies the computed plan, and returns a structured summary.
// Discovery and match failures abort before any mutation, so they are
// always safe. A mutation failure stops the remaining entries without
// rollback; re-running once the condition clears converges, because every
// step is re-derived from observed state and pre-checked for prior
// completion.
func (e *Engine) ReconcileDocument(ctx context.Context, rootQuery string, s *schema.Schema) Result {
	start := time.Now()
	result := Result{RunID: uuid.NewString()}

	plan, ambiguities, err := e.Plan(ctx, rootQuery, s)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.Duration = time.Since(start)
		e.record(ctx, rootQuery, result, start)
		return result
	}
	for _, amb := range ambiguities {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("entry %q: ambiguous match, using %s, alternates %v",
				amb.Key, amb.ChosenID, amb.AlternateIDs))
	}
	result.PlannedOps = plan.Total()

	executor := reconciler.NewExecutor(e.client, e.cfg.Retry, e.logger)
	applied, err := executor.Apply(ctx, plan)
	result.MutationsApplied = applied
	if err != nil {
		var mutErr *reconciler.MutationError
		if errors.As(err, &mutErr) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("entry %q: %v", mutErr.EntryKey, mutErr.Cause))
		} else {
			result.Errors = append(result.Errors, err.Error())
		}
	} else {
		result.Success = true
	}

	result.Duration = time.Since(start)
	e.logger.Info("reconcile finished",
		zap.String("run", result.RunID),
		zap.String("query", rootQuery),
		zap.Bool("success", result.Success),
		zap.Int("planned", result.PlannedOps),
		zap.Int("applied", result.MutationsApplied),
		zap.Duration("elapsed", result.Duration))

	e.record(ctx, rootQuery, result, start)
	return result
}

// record appends the run to the ledger, best effort.
func (e *Engine) record(ctx context.Context, rootQuery string, result Result, start time.Time) {
	if e.ledger == nil {
		return
	}
	errText := ""
	if len(result.Errors) > 0 {
		errText = result.Errors[0]
	}
	err := e.ledger.RecordRun(ctx, history.Run{
		ID:         result.RunID,
		RootQuery:  rootQuery,
		PlannedOps: result.PlannedOps,
		AppliedOps: result.MutationsApplied,
		ErrorText:  errText,
		StartedAt:  start,
		Duration:   result.Duration,
	})
	if err != nil {
		e.logger.Warn("failed to record run", zap.String("run", result.RunID), zap.Error(err))
	}
}
