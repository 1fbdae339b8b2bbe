package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/refsync/refsync/internal/sync"
)

// PromptResolver resolves conflicts by asking the user on the terminal,
// one conflict at a time. It implements sync.Resolver.
type PromptResolver struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptResolver creates a resolver reading from stdin and writing to
// stdout.
func NewPromptResolver() *PromptResolver {
	return &PromptResolver{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
	}
}

// newPromptResolverFor builds a resolver over explicit streams, for tests.
func newPromptResolverFor(in io.Reader, out io.Writer) *PromptResolver {
	return &PromptResolver{in: bufio.NewReader(in), out: out}
}

// Resolve prompts the user for a decision on each conflict. The user may
// apply one decision to all remaining conflicts, so the returned map always
// covers every conflict unless reading input fails.
func (pr *PromptResolver) Resolve(ctx context.Context, conflicts []*sync.Conflict) (map[string]sync.Resolution, error) {
	decisions := make(map[string]sync.Resolution, len(conflicts))

	fmt.Fprintf(pr.out, "\n=== Conflict Resolution ===\n")
	fmt.Fprintf(pr.out, "Found %d conflict(s) that require resolution.\n\n", len(conflicts))

	var bulk sync.Resolution
	for i, conflict := range conflicts {
		if err := ctx.Err(); err != nil {
			return decisions, sync.ErrCancelled
		}

		if bulk != "" {
			decisions[conflict.ID()] = bulk
			continue
		}

		fmt.Fprintf(pr.out, "--- Conflict %d of %d: %s %s ---\n", i+1, len(conflicts), conflict.Kind, conflict.Key)
		pr.showFieldDiffs(conflict)

		choice, applyAll, err := pr.promptResolution(conflict)
		if err != nil {
			return decisions, fmt.Errorf("failed to get resolution for %s: %w", conflict.Key, err)
		}

		decisions[conflict.ID()] = choice
		if applyAll {
			bulk = choice
		}

		fmt.Fprintf(pr.out, "✓ Resolved %s with: %s\n\n", conflict.Key, choice)
	}

	return decisions, nil
}

// showFieldDiffs displays the diverging fields side by side.
func (pr *PromptResolver) showFieldDiffs(conflict *sync.Conflict) {
	fmt.Fprintln(pr.out, strings.Repeat("-", 50))

	for _, name := range conflict.FieldNames() {
		diff := conflict.FieldDiffs[name]
		fmt.Fprintf(pr.out, "%-12s local:  %s\n", name, truncateValue(diff.Local))
		fmt.Fprintf(pr.out, "%-12s remote: %s\n", "", truncateValue(diff.Remote))
	}

	fmt.Fprintln(pr.out, strings.Repeat("-", 50))
}

// promptResolution asks the user to choose how to resolve a conflict.
func (pr *PromptResolver) promptResolution(conflict *sync.Conflict) (sync.Resolution, bool, error) {
	fmt.Fprintln(pr.out, "\nHow would you like to resolve this conflict?")
	fmt.Fprintln(pr.out, "  1. Use local version (overwrite remote)")
	fmt.Fprintln(pr.out, "  2. Use remote version (overwrite local)")
	fmt.Fprintln(pr.out, "  3. Keep both versions (duplicate under a new key)")
	fmt.Fprintln(pr.out, "  4. Apply one of the above to ALL remaining conflicts")
	fmt.Fprint(pr.out, "\nEnter choice [1-4]: ")

	for {
		choice, err := pr.readChoice(4)
		if err != nil {
			return "", false, err
		}

		switch choice {
		case 1:
			return sync.ResolutionUseLocal, false, nil
		case 2:
			return sync.ResolutionUseRemote, false, nil
		case 3:
			return sync.ResolutionKeepBoth, false, nil
		case 4:
			fmt.Fprintln(pr.out, "\nApply to all remaining conflicts:")
			fmt.Fprintln(pr.out, "  1. Use local version")
			fmt.Fprintln(pr.out, "  2. Use remote version")
			fmt.Fprintln(pr.out, "  3. Keep both versions")
			fmt.Fprint(pr.out, "\nEnter choice [1-3]: ")
			all, err := pr.readChoice(3)
			if err != nil {
				return "", false, err
			}
			switch all {
			case 1:
				return sync.ResolutionUseLocal, true, nil
			case 2:
				return sync.ResolutionUseRemote, true, nil
			default:
				return sync.ResolutionKeepBoth, true, nil
			}
		}
	}
}

// readChoice reads a number between 1 and max, re-prompting on bad input.
func (pr *PromptResolver) readChoice(max int) (int, error) {
	for {
		response, err := pr.in.ReadString('\n')
		if err != nil {
			return 0, fmt.Errorf("failed to read input: %w", err)
		}

		response = strings.TrimSpace(response)
		choice, err := strconv.Atoi(response)
		if err != nil || choice < 1 || choice > max {
			fmt.Fprintf(pr.out, "Invalid choice. Enter 1-%d: ", max)
			continue
		}
		return choice, nil
	}
}

// truncateValue keeps long field values (abstracts, notes) to one line.
func truncateValue(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if runes := []rune(s); len(runes) > 60 {
		return string(runes[:57]) + "..."
	}
	if s == "" {
		return "(empty)"
	}
	return s
}
