package reconciler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pagesync/internal/remote"
)

// MutationError reports a failed op together with everything that never ran.
// Already-applied ops are not undone; the documented recovery is re-running
// the reconcile once the underlying condition clears.
type MutationError struct {
	EntryKey  string
	Op        Op
	Remaining []Op
	Cause     error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("mutation failed for entry %q (%s, %d ops unexecuted): %v",
		e.EntryKey, e.Op, len(e.Remaining), e.Cause)
}

func (e *MutationError) Unwrap() error { return e.Cause }

// Executor applies plans strictly in emitted order, which the
// Create-before-Delete move invariant depends on. Creates and updates are
// issued exactly once; on an ambiguous or timed-out response the caller
// re-runs the whole reconcile and the pre-checks make that safe. Deletes are
// idempotent remotely and retry on transient failure.
type Executor struct {
	client remote.Client
	retry  remote.RetryConfig
	logger *zap.Logger
}

// NewExecutor creates an Executor over the given client.
func NewExecutor(client remote.Client, retry remote.RetryConfig, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{client: client, retry: retry, logger: logger}
}

// Apply executes the plan and returns how many ops were applied.
// Cancellation is honored only at group boundaries: stopping mid-group could
// leave a move with its Create done and its Delete pending in an unrecorded
// state, which the boundary rule exists to avoid.
func (x *Executor) Apply(ctx context.Context, plan *Plan) (int, error) {
	applied := 0

	for gi, group := range plan.Groups {
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		// Ops inside a group run to completion even if the caller cancels:
		// stopping between a move's Create and its Delete would leave the
		// document in a state no record tracks. Cancellation takes effect
		// at the next group boundary.
		groupCtx := context.WithoutCancel(ctx)

		createdIDs := make([]string, len(group.Ops))
		for oi, op := range group.Ops {
			id, err := x.applyOp(groupCtx, op, createdIDs)
			if err != nil {
				return applied, &MutationError{
					EntryKey:  group.Key,
					Op:        op,
					Remaining: remainingOps(plan, gi, oi),
					Cause:     err,
				}
			}
			createdIDs[oi] = id
			applied++
			x.logger.Debug("op applied",
				zap.String("plan", plan.ID),
				zap.String("entry", group.Key),
				zap.String("op", op.String()))
		}
	}

	return applied, nil
}

func (x *Executor) applyOp(ctx context.Context, op Op, createdIDs []string) (string, error) {
	switch op.Kind {
	case OpCreate:
		parentID := op.ParentID
		if op.ParentFromOp >= 0 {
			parentID = createdIDs[op.ParentFromOp]
		}
		ids, err := x.client.AppendChildren(ctx, parentID, []remote.Payload{op.Payload}, op.AfterID)
		if err != nil {
			return "", err
		}
		return ids[0], nil

	case OpUpdate:
		return "", x.client.UpdateNode(ctx, op.NodeID, op.Payload)

	case OpDelete:
		err := remote.WithRetry(ctx, x.retry, "delete_node", func(ctx context.Context) error {
			return x.client.DeleteNode(ctx, op.NodeID)
		})
		return "", err

	default:
		return "", fmt.Errorf("unknown op kind %q", op.Kind)
	}
}

// remainingOps collects every op after the failed one, in plan order.
func remainingOps(plan *Plan, failedGroup, failedOp int) []Op {
	var out []Op
	out = append(out, plan.Groups[failedGroup].Ops[failedOp+1:]...)
	for _, g := range plan.Groups[failedGroup+1:] {
		out = append(out, g.Ops...)
	}
	return out
}
