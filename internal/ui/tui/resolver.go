package tui

import (
	"context"

	"github.com/refsync/refsync/internal/sync"
)

// ConflictResolver adapts the conflict browser to the sync engine's
// Resolver interface.
type ConflictResolver struct {
	// run is swappable for tests; defaults to RunConflictList.
	run func([]*sync.Conflict) (ConflictListResult, error)
}

// NewConflictResolver creates a resolver backed by the interactive
// conflict browser.
func NewConflictResolver() *ConflictResolver {
	return &ConflictResolver{run: RunConflictList}
}

// Resolve presents the conflicts in the browser and returns the user's
// decisions. Quitting or cancelling the browser cancels the sync run.
func (cr *ConflictResolver) Resolve(ctx context.Context, conflicts []*sync.Conflict) (map[string]sync.Resolution, error) {
	if err := ctx.Err(); err != nil {
		return nil, sync.ErrCancelled
	}

	result, err := cr.run(conflicts)
	if err != nil {
		return nil, err
	}
	if result.Action != ConflictActionResolve {
		return nil, sync.ErrCancelled
	}
	return result.Resolutions, nil
}
