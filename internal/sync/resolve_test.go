package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/refsync/refsync/internal/model"
)

func testConflicts(keys ...string) []*Conflict {
	var out []*Conflict
	for _, key := range keys {
		out = append(out, newRecordConflict(key,
			model.Record{Title: "local " + key, DOI: key},
			model.Record{Title: "remote " + key, DOI: key},
		))
	}
	return out
}

func TestCoordinator_AutoModeNeverInvokesResolver(t *testing.T) {
	invoked := false
	coord := &coordinator{
		auto: true,
		resolver: ResolverFunc(func(_ context.Context, _ []*Conflict) (map[string]Resolution, error) {
			invoked = true
			return nil, nil
		}),
	}

	conflicts := testConflicts("a", "b")
	decisions, resErrs, err := coord.resolve(context.Background(), conflicts, nil)
	if err != nil {
		t.Fatalf("auto resolve failed: %v", err)
	}
	if invoked {
		t.Error("auto mode must never invoke the resolver")
	}
	if len(resErrs) != 0 {
		t.Errorf("unexpected resolution errors: %v", resErrs)
	}
	for _, c := range conflicts {
		if decisions[c.ID()] != ResolutionKeepBoth {
			t.Errorf("auto mode must resolve %s as keep_both, got %s", c.ID(), decisions[c.ID()])
		}
	}
}

func TestCoordinator_BulkDecision(t *testing.T) {
	coord := &coordinator{
		resolver: ResolverFunc(func(_ context.Context, conflicts []*Conflict) (map[string]Resolution, error) {
			all := make(map[string]Resolution, len(conflicts))
			for _, c := range conflicts {
				all[c.ID()] = ResolutionUseLocal
			}
			return all, nil
		}),
	}

	decisions, _, err := coord.resolve(context.Background(), testConflicts("a", "b", "c"), nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(decisions) != 3 {
		t.Errorf("expected 3 decisions, got %d", len(decisions))
	}
}

func TestCoordinator_IncrementalDecisionStream(t *testing.T) {
	calls := 0
	coord := &coordinator{
		resolver: ResolverFunc(func(_ context.Context, conflicts []*Conflict) (map[string]Resolution, error) {
			calls++
			// Resolve only the first remaining conflict per call: a legal
			// partial map that forces the coordinator to re-poll.
			return map[string]Resolution{conflicts[0].ID(): ResolutionUseRemote}, nil
		}),
	}

	decisions, _, err := coord.resolve(context.Background(), testConflicts("a", "b", "c"), nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 resolver calls for the decision stream, got %d", calls)
	}
	if len(decisions) != 3 {
		t.Errorf("expected 3 decisions, got %d", len(decisions))
	}
}

func TestCoordinator_UnrecognizedResolutionLeftUnresolved(t *testing.T) {
	coord := &coordinator{
		resolver: ResolverFunc(func(_ context.Context, conflicts []*Conflict) (map[string]Resolution, error) {
			out := make(map[string]Resolution, len(conflicts))
			for i, c := range conflicts {
				if i == 0 {
					out[c.ID()] = Resolution("smash_together")
				} else {
					out[c.ID()] = ResolutionUseLocal
				}
			}
			return out, nil
		}),
	}

	conflicts := testConflicts("a", "b")
	decisions, resErrs, err := coord.resolve(context.Background(), conflicts, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(resErrs) != 1 {
		t.Fatalf("expected one resolution error, got %v", resErrs)
	}
	if _, ok := decisions[conflicts[0].ID()]; ok {
		t.Error("unrecognized resolution must never be defaulted to a destructive choice")
	}
	if decisions[conflicts[1].ID()] != ResolutionUseLocal {
		t.Error("valid decisions alongside an invalid one must survive")
	}
}

func TestCoordinator_ResolverError(t *testing.T) {
	boom := errors.New("resolver exploded")
	coord := &coordinator{
		resolver: ResolverFunc(func(_ context.Context, _ []*Conflict) (map[string]Resolution, error) {
			return nil, boom
		}),
	}

	_, _, err := coord.resolve(context.Background(), testConflicts("a"), nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected resolver error to propagate, got %v", err)
	}
}

func TestCoordinator_StalledResolver(t *testing.T) {
	coord := &coordinator{
		resolver: ResolverFunc(func(_ context.Context, _ []*Conflict) (map[string]Resolution, error) {
			return map[string]Resolution{}, nil
		}),
	}

	_, _, err := coord.resolve(context.Background(), testConflicts("a"), nil)
	if !errors.Is(err, errResolverStalled) {
		t.Errorf("a no-progress resolver must not spin, got %v", err)
	}
}

func TestCoordinator_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	coord := &coordinator{
		resolver: ResolverFunc(func(_ context.Context, _ []*Conflict) (map[string]Resolution, error) {
			t.Fatal("resolver must not be invoked after cancellation")
			return nil, nil
		}),
	}

	_, _, err := coord.resolve(ctx, testConflicts("a"), nil)
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
}

func TestCoordinator_RunCancellationFlag(t *testing.T) {
	coord := &coordinator{
		resolver: ResolverFunc(func(_ context.Context, _ []*Conflict) (map[string]Resolution, error) {
			t.Fatal("resolver must not be invoked after cancellation")
			return nil, nil
		}),
	}

	_, _, err := coord.resolve(context.Background(), testConflicts("a"), func() bool { return true })
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
}

func TestCoordinator_NoConflicts(t *testing.T) {
	coord := &coordinator{auto: false, resolver: nil}
	decisions, resErrs, err := coord.resolve(context.Background(), nil, nil)
	if err != nil || len(decisions) != 0 || len(resErrs) != 0 {
		t.Errorf("empty conflict list should be a no-op: %v %v %v", decisions, resErrs, err)
	}
}

func TestResolution_IsValid(t *testing.T) {
	for _, r := range AllResolutions() {
		if !r.IsValid() {
			t.Errorf("%s should be valid", r)
		}
	}
	if Resolution("newer_wins").IsValid() {
		t.Error("unknown resolution should be invalid")
	}
}
