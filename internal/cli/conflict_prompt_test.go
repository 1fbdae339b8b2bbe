package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/refsync/refsync/internal/model"
	"github.com/refsync/refsync/internal/sync"
)

func recordConflict(key string) *sync.Conflict {
	return &sync.Conflict{
		Key:  key,
		Kind: model.KindRecord,
		FieldDiffs: map[string]sync.FieldDiff{
			"title": {Local: "Local Title", Remote: "Remote Title"},
			"year":  {Local: "2020", Remote: "2021"},
		},
	}
}

func TestPromptResolver_SingleDecision(t *testing.T) {
	var out bytes.Buffer
	pr := newPromptResolverFor(strings.NewReader("2\n"), &out)

	conflict := recordConflict("doi:10.1/a")
	decisions, err := pr.Resolve(context.Background(), []*sync.Conflict{conflict})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got := decisions[conflict.ID()]; got != sync.ResolutionUseRemote {
		t.Errorf("decision = %v, want %v", got, sync.ResolutionUseRemote)
	}
	if !strings.Contains(out.String(), "title") || !strings.Contains(out.String(), "Remote Title") {
		t.Errorf("prompt did not show field diffs:\n%s", out.String())
	}
}

func TestPromptResolver_ReprompsOnInvalidInput(t *testing.T) {
	var out bytes.Buffer
	pr := newPromptResolverFor(strings.NewReader("9\nnope\n1\n"), &out)

	conflict := recordConflict("doi:10.1/b")
	decisions, err := pr.Resolve(context.Background(), []*sync.Conflict{conflict})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got := decisions[conflict.ID()]; got != sync.ResolutionUseLocal {
		t.Errorf("decision = %v, want %v", got, sync.ResolutionUseLocal)
	}
	if !strings.Contains(out.String(), "Invalid choice") {
		t.Error("invalid input was not re-prompted")
	}
}

func TestPromptResolver_ApplyToAllRemaining(t *testing.T) {
	var out bytes.Buffer
	pr := newPromptResolverFor(strings.NewReader("4\n3\n"), &out)

	conflicts := []*sync.Conflict{
		recordConflict("doi:10.1/a"),
		recordConflict("doi:10.1/b"),
		recordConflict("doi:10.1/c"),
	}
	decisions, err := pr.Resolve(context.Background(), conflicts)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(decisions) != 3 {
		t.Fatalf("got %d decisions, want 3", len(decisions))
	}
	for _, c := range conflicts {
		if decisions[c.ID()] != sync.ResolutionKeepBoth {
			t.Errorf("decision for %s = %v, want %v", c.Key, decisions[c.ID()], sync.ResolutionKeepBoth)
		}
	}
	// Only the first conflict should have been shown.
	if got := strings.Count(out.String(), "--- Conflict"); got != 1 {
		t.Errorf("prompted %d times, want 1", got)
	}
}

func TestPromptResolver_InputEOF(t *testing.T) {
	var out bytes.Buffer
	pr := newPromptResolverFor(strings.NewReader(""), &out)

	_, err := pr.Resolve(context.Background(), []*sync.Conflict{recordConflict("doi:10.1/x")})
	if err == nil {
		t.Fatal("Resolve() succeeded on EOF")
	}
}

func TestPromptResolver_CancelledContext(t *testing.T) {
	var out bytes.Buffer
	pr := newPromptResolverFor(strings.NewReader("1\n"), &out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pr.Resolve(ctx, []*sync.Conflict{recordConflict("doi:10.1/x")})
	if err != sync.ErrCancelled {
		t.Errorf("Resolve() error = %v, want %v", err, sync.ErrCancelled)
	}
}

func TestTruncateValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "(empty)"},
		{"short", "short"},
		{"line\nbreaks\nhere", "line breaks here"},
		{strings.Repeat("a", 80), strings.Repeat("a", 57) + "..."},
		// Multi-byte titles are cut on rune boundaries, never mid-character.
		{strings.Repeat("é", 80), strings.Repeat("é", 57) + "..."},
	}
	for _, tt := range tests {
		if got := truncateValue(tt.in); got != tt.want {
			t.Errorf("truncateValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
