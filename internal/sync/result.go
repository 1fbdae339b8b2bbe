package sync

import (
	"fmt"
	"sort"
	"strings"
)

// Change categories used as keys in Result.Changes.
const (
	CategoryRecords     = "records"
	CategoryCollections = "collections"
	CategoryPdfs        = "pdfs"
)

// maxSummaryLines caps the per-category listing in Summary(). Error text is
// never truncated.
const maxSummaryLines = 10

// Result is the immutable outcome of a sync run. The engine retains no
// reference to it after Run returns.
type Result struct {
	// Stage is the terminal stage the run ended in.
	Stage Stage

	// Errors collects non-fatal per-item and resolution errors.
	Errors []string

	// Changes maps category (records, collections, pdfs) to human-readable
	// change lines, each tagged with its direction.
	Changes map[string][]string

	// Counts holds the final item counts.
	Counts Counts
}

// newResult returns an empty result ready for accumulation.
func newResult() *Result {
	return &Result{
		Stage:   StageIdle,
		Changes: make(map[string][]string),
	}
}

// addChange appends a change line to a category.
func (r *Result) addChange(category, line string) {
	r.Changes[category] = append(r.Changes[category], line)
}

// addError appends a non-fatal error.
func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Counts.ItemErrors = len(r.Errors)
}

// HasErrors reports whether any non-fatal error was collected.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// TotalChanges returns the number of change lines across all categories.
func (r *Result) TotalChanges() int {
	n := 0
	for _, lines := range r.Changes {
		n += len(lines)
	}
	return n
}

// Summary returns a human-readable summary. The error count leads whenever
// errors occurred; per-category listings are truncated to stay readable,
// error text never is.
func (r *Result) Summary() string {
	var sb strings.Builder

	switch r.Stage {
	case StageCancelled:
		sb.WriteString("Sync cancelled - no changes were applied\n")
	case StageFailed:
		sb.WriteString("Sync failed\n")
	default:
		if r.HasErrors() {
			sb.WriteString(fmt.Sprintf("Sync completed with %d error(s) - %d change(s) applied\n",
				len(r.Errors), r.TotalChanges()))
		} else if r.TotalChanges() == 0 {
			sb.WriteString("Sync complete - replicas already identical\n")
		} else {
			sb.WriteString(fmt.Sprintf("Sync complete - %d change(s) applied\n", r.TotalChanges()))
		}
	}

	for _, category := range orderedCategories(r.Changes) {
		lines := r.Changes[category]
		if len(lines) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n%s (%d):\n", category, len(lines)))
		for i, line := range lines {
			if i == maxSummaryLines {
				sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(lines)-maxSummaryLines))
				break
			}
			sb.WriteString("  " + line + "\n")
		}
	}

	if r.HasErrors() {
		sb.WriteString(fmt.Sprintf("\nerrors (%d):\n", len(r.Errors)))
		for _, e := range r.Errors {
			sb.WriteString("  - " + e + "\n")
		}
	}

	return sb.String()
}

// orderedCategories returns the known categories first, in pipeline order,
// followed by any others sorted by name.
func orderedCategories(changes map[string][]string) []string {
	known := []string{CategoryRecords, CategoryCollections, CategoryPdfs}
	seen := make(map[string]bool, len(known))
	var out []string
	for _, c := range known {
		seen[c] = true
		if _, ok := changes[c]; ok {
			out = append(out, c)
		}
	}
	var extra []string
	for c := range changes {
		if !seen[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
