package backup

import (
	"sort"
	"time"
)

// PruneOptions configures vault pruning.
type PruneOptions struct {
	// MaxEntries limits the number of preserved versions to keep per item
	// key (0 = unlimited).
	MaxEntries int

	// MaxAge is the maximum age of preserved files to keep (0 = unlimited).
	MaxAge time.Duration

	// KeepLatest ensures the newest version of each item key survives even
	// when it is older than MaxAge.
	KeepLatest bool

	// DryRun previews what would be deleted without actually deleting.
	DryRun bool
}

// DefaultPruneOptions returns the pruning policy the engine applies after
// every sync pass.
func DefaultPruneOptions() PruneOptions {
	return PruneOptions{
		MaxEntries: 10,
		MaxAge:     30 * 24 * time.Hour,
		KeepLatest: true,
	}
}

// Prune removes old preserved files according to the given options and
// returns the IDs that were (or would be) deleted.
func (v *Vault) Prune(opts PruneOptions) ([]string, error) {
	idx, err := v.loadIndex()
	if err != nil {
		return nil, err
	}

	// Group entries by item key, newest first within each group.
	groups := make(map[string][]Entry)
	for _, e := range idx.Entries {
		groups[e.Key] = append(groups[e.Key], e)
	}
	for key := range groups {
		g := groups[key]
		sort.Slice(g, func(i, j int) bool {
			return g[i].CreatedAt.After(g[j].CreatedAt)
		})
		groups[key] = g
	}

	var toDelete []string
	now := time.Now()

	for _, g := range groups {
		for pos, e := range g {
			if opts.KeepLatest && pos == 0 {
				continue
			}
			expired := opts.MaxAge > 0 && now.Sub(e.CreatedAt) > opts.MaxAge
			over := opts.MaxEntries > 0 && pos >= opts.MaxEntries
			if expired || over {
				toDelete = append(toDelete, e.ID)
			}
		}
	}

	if opts.DryRun {
		return toDelete, nil
	}

	var deleted []string
	for _, id := range toDelete {
		if err := v.remove(idx, id); err != nil {
			return deleted, err
		}
		deleted = append(deleted, id)
	}
	if len(deleted) > 0 {
		if err := v.saveIndex(idx); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// Stats summarizes the contents of a vault.
type Stats struct {
	Entries   int
	TotalSize int64
	Oldest    time.Time
	Newest    time.Time
}

// GetStats returns statistics about the vault's contents.
func (v *Vault) GetStats() (*Stats, error) {
	idx, err := v.loadIndex()
	if err != nil {
		return nil, err
	}

	stats := &Stats{Entries: len(idx.Entries)}
	for _, e := range idx.Entries {
		stats.TotalSize += e.Size
		if stats.Oldest.IsZero() || e.CreatedAt.Before(stats.Oldest) {
			stats.Oldest = e.CreatedAt
		}
		if e.CreatedAt.After(stats.Newest) {
			stats.Newest = e.CreatedAt
		}
	}
	return stats, nil
}
