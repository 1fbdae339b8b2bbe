// Package progress provides progress indicators for long-running operations.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/refsync/refsync/internal/logging"
	"github.com/refsync/refsync/internal/sync"
	"github.com/refsync/refsync/internal/ui"
)

// Bar wraps progressbar functionality with integration to refsync's UI and logging.
type Bar struct {
	bar     *progressbar.ProgressBar
	enabled bool
	desc    string
}

// Options configures the progress bar behavior.
type Options struct {
	// Max is the maximum value for the progress bar (total steps).
	Max int64
	// Description is the prefix text shown before the progress bar.
	Description string
	// Writer is the output destination. Defaults to os.Stderr.
	Writer io.Writer
	// Force shows the bar even when the heuristics would hide it.
	Force bool
}

// DefaultOptions returns sensible defaults for CLI progress bars.
func DefaultOptions() Options {
	return Options{
		Max:         100,
		Description: "Syncing",
		Writer:      os.Stderr,
	}
}

// New creates a new progress bar with the given options.
// The bar is only shown if:
//   - Colors are enabled (respects NO_COLOR and --no-color)
//   - Output is a terminal
//   - Not in debug/verbose mode (to avoid interfering with logs)
func New(opts Options) *Bar {
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}

	enabled := opts.Force || shouldShowProgress(opts.Writer)

	b := &Bar{
		enabled: enabled,
		desc:    opts.Description,
	}

	if !enabled {
		// Log start at debug level instead
		logging.Debug(fmt.Sprintf("%s started", opts.Description),
			logging.Count(int(opts.Max)))
		return b
	}

	b.bar = progressbar.NewOptions64(
		opts.Max,
		progressbar.OptionSetDescription(opts.Description),
		progressbar.OptionSetWriter(opts.Writer),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(opts.Writer, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionEnableColorCodes(ui.IsColorEnabled()),
	)

	return b
}

// Add increments the progress bar by n steps.
func (b *Bar) Add(n int) error {
	if !b.enabled {
		return nil
	}
	return b.bar.Add(n)
}

// Set sets the progress bar to a specific value.
func (b *Bar) Set(n int) error {
	if !b.enabled {
		return nil
	}
	return b.bar.Set(n)
}

// Describe updates the progress bar description.
func (b *Bar) Describe(desc string) {
	b.desc = desc
	if !b.enabled {
		return
	}
	b.bar.Describe(desc)
}

// Finish completes the progress bar and logs completion.
func (b *Bar) Finish() error {
	if !b.enabled {
		logging.Debug(fmt.Sprintf("%s completed", b.desc))
		return nil
	}
	return b.bar.Finish()
}

// Clear removes the progress bar from the terminal.
func (b *Bar) Clear() error {
	if !b.enabled {
		return nil
	}
	return b.bar.Clear()
}

// stageLabels maps sync stages to the short description shown on the bar.
var stageLabels = map[sync.Stage]string{
	sync.StagePreparingRemote:     "Preparing remote",
	sync.StageReadingSnapshots:    "Reading snapshots",
	sync.StageDetectingConflicts:  "Detecting conflicts",
	sync.StageResolvingConflicts:  "Resolving conflicts",
	sync.StageApplyingRecords:     "Applying records",
	sync.StageApplyingCollections: "Merging collections",
	sync.StageApplyingPdfs:        "Copying PDFs",
	sync.StageFinalizing:          "Finalizing",
}

// StageBar adapts a Bar into a sync.ProgressFunc: each working stage of a
// run advances the bar one step and updates its label, and a terminal stage
// finishes it. The returned function is safe to hand to the engine even when
// the bar is hidden.
func StageBar(b *Bar) sync.ProgressFunc {
	return func(stage sync.Stage, counts sync.Counts) {
		if stage.Terminal() {
			_ = b.Finish()
			return
		}
		idx := sync.StageIndex(stage)
		if idx < 0 {
			return
		}
		label := stageLabels[stage]
		if stage == sync.StageResolvingConflicts && counts.Conflicts > 0 {
			label = fmt.Sprintf("%s (%d)", label, counts.Conflicts)
		}
		b.Describe(label)
		_ = b.Set(idx)
	}
}

// ForSync builds a progress bar sized to the sync stage machine.
func ForSync(force bool) *Bar {
	return New(Options{
		Max:         int64(len(sync.Stages())),
		Description: "Syncing",
		Writer:      os.Stderr,
		Force:       force,
	})
}

// shouldShowProgress determines if progress bars should be displayed.
// Progress is disabled if:
//   - Not outputting to a terminal
//   - Colors are disabled (NO_COLOR, --no-color)
//   - Logger is at debug level (to avoid interfering with debug output)
func shouldShowProgress(w io.Writer) bool {
	if !ui.IsColorEnabled() {
		return false
	}

	if f, ok := w.(*os.File); ok {
		if f == os.Stderr {
			if !ui.IsTerminal() {
				return false
			}
		} else {
			stat, err := f.Stat()
			if err != nil {
				return false
			}
			// A pipe or regular file never gets a live bar
			if (stat.Mode() & os.ModeCharDevice) == 0 {
				return false
			}
		}
	}

	if logging.Default().Enabled(context.Background(), logging.LevelDebug) {
		return false
	}

	return true
}
