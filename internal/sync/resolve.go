package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/refsync/refsync/internal/logging"
)

// ErrCancelled is returned when a run is cancelled before resolutions are
// finalized. No mutation has been applied at that point.
var ErrCancelled = errors.New("sync cancelled")

// errResolverStalled is returned when an interactive resolver reports
// neither progress nor an error, which would otherwise spin forever.
var errResolverStalled = errors.New("resolver returned no decisions and no error")

// Resolver turns a list of conflicts into resolution decisions. A resolver
// may decide everything in one call, or return a partial map and be invoked
// again with the remaining conflicts (a decision stream); blocking on user
// input is the resolver's own business. Implementations run on the sync
// worker's goroutine.
type Resolver interface {
	Resolve(ctx context.Context, conflicts []*Conflict) (map[string]Resolution, error)
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func(ctx context.Context, conflicts []*Conflict) (map[string]Resolution, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, conflicts []*Conflict) (map[string]Resolution, error) {
	return f(ctx, conflicts)
}

// coordinator drives a resolver until every conflict has a decision, or
// assigns KeepBoth across the board in auto mode.
type coordinator struct {
	resolver Resolver
	auto     bool
}

// resolve returns the final decision map plus a list of non-fatal
// resolution errors (unrecognized decision values). Items with a resolution
// error stay out of the map and are skipped by the merge stage rather than
// defaulted to anything destructive. A context or run cancellation surfaces
// as ErrCancelled with zero decisions applied.
func (c *coordinator) resolve(ctx context.Context, conflicts []*Conflict, cancelled func() bool) (map[string]Resolution, []string, error) {
	decisions := make(map[string]Resolution, len(conflicts))
	if len(conflicts) == 0 {
		return decisions, nil, nil
	}

	if c.auto {
		// Deterministic and lossless: a non-interactive run never blocks
		// and never silently drops a version.
		for _, conflict := range conflicts {
			decisions[conflict.ID()] = ResolutionKeepBoth
		}
		logging.Debug("auto mode resolved all conflicts as keep_both",
			logging.Count(len(conflicts)),
		)
		return decisions, nil, nil
	}

	if c.resolver == nil {
		return nil, nil, errors.New("no resolver configured for interactive run")
	}

	var resolutionErrs []string
	unresolved := make(map[string]bool, len(conflicts))
	remaining := conflicts

	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, ErrCancelled
		}
		if cancelled != nil && cancelled() {
			return nil, nil, ErrCancelled
		}

		partial, err := c.resolver.Resolve(ctx, remaining)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
				return nil, nil, ErrCancelled
			}
			return nil, nil, fmt.Errorf("resolver failed: %w", err)
		}

		progressed := false
		for _, conflict := range remaining {
			id := conflict.ID()
			res, ok := partial[id]
			if !ok {
				continue
			}
			progressed = true
			if !res.IsValid() {
				resolutionErrs = append(resolutionErrs,
					fmt.Sprintf("conflict %s: unrecognized resolution %q, left unresolved", id, res))
				unresolved[id] = true
				continue
			}
			decisions[id] = res
		}
		if !progressed {
			if ctx.Err() != nil || (cancelled != nil && cancelled()) {
				return nil, nil, ErrCancelled
			}
			return nil, nil, errResolverStalled
		}

		remaining = pending(remaining, decisions, unresolved)
	}

	logging.Debug("conflict resolution finalized",
		logging.Count(len(decisions)),
		logging.Operation("resolve"),
	)
	return decisions, resolutionErrs, nil
}

// pending filters out conflicts that already have a decision or were
// terminally left unresolved.
func pending(conflicts []*Conflict, decisions map[string]Resolution, unresolved map[string]bool) []*Conflict {
	var out []*Conflict
	for _, c := range conflicts {
		id := c.ID()
		if _, done := decisions[id]; done {
			continue
		}
		if unresolved[id] {
			continue
		}
		out = append(out, c)
	}
	return out
}
