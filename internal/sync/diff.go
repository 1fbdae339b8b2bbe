package sync

import (
	"sort"

	"github.com/refsync/refsync/internal/logging"
	"github.com/refsync/refsync/internal/model"
	"github.com/refsync/refsync/internal/snapshot"
)

// Direction tags a change with the replica it flowed from.
type Direction string

const (
	// LocalToRemote marks a change applied to the remote replica.
	LocalToRemote Direction = "local→remote"

	// RemoteToLocal marks a change applied to the local replica.
	RemoteToLocal Direction = "remote→local"
)

// Item identifies a syncable item present on only one replica.
type Item struct {
	Key  string
	Kind model.ItemKind
}

// AutoUpdate is a shared item that diverged but where the baseline proves
// only one side changed. The changed side wins without a conflict.
type AutoUpdate struct {
	Key       string
	Kind      model.ItemKind
	Direction Direction
}

// DiffReport is the structured outcome of comparing two snapshots.
type DiffReport struct {
	// Conflicts are shared items modified on both sides.
	Conflicts []*Conflict

	// LocalOnly and RemoteOnly are one-sided items, auto-merged by copying.
	LocalOnly  []Item
	RemoteOnly []Item

	// AutoUpdates are one-sided edits proven by the baseline.
	AutoUpdates []AutoUpdate

	// AssocMerges are record keys whose only divergence is tags or
	// collections and where the baseline cannot prove a single editor;
	// their associations are union-merged in the collections stage
	// instead of conflicting.
	AssocMerges []string

	// Identical counts shared items that agree on both sides.
	Identical int
}

// HasWork reports whether the report implies any mutation.
func (r *DiffReport) HasWork() bool {
	return len(r.Conflicts) > 0 || len(r.LocalOnly) > 0 || len(r.RemoteOnly) > 0 ||
		len(r.AutoUpdates) > 0 || len(r.AssocMerges) > 0
}

// Diff compares two replica snapshots item by item. base may be nil, in
// which case every shared divergence is a conflict. There is no implicit
// last-write-wins: neither replica's clock is trusted, so recency never
// decides anything.
func Diff(local, remote *snapshot.Snapshot, base *Baseline) *DiffReport {
	defer logging.Timer("diff")()

	report := &DiffReport{}
	diffRecords(local, remote, base, report)
	diffPdfs(local, remote, base, report)

	logging.Debug("diff complete",
		logging.Count(report.Identical),
		logging.Operation("diff"),
	)
	return report
}

func diffRecords(local, remote *snapshot.Snapshot, base *Baseline, report *DiffReport) {
	for _, key := range unionKeys(recordKeys(local), recordKeys(remote)) {
		lrec, lok := local.Records[key]
		rrec, rok := remote.Records[key]

		switch {
		case lok && !rok:
			report.LocalOnly = append(report.LocalOnly, Item{Key: key, Kind: model.KindRecord})
		case !lok && rok:
			report.RemoteOnly = append(report.RemoteOnly, Item{Key: key, Kind: model.KindRecord})
		default:
			classifyShared(key, lrec, rrec, base, report)
		}
	}
}

// classifyShared handles a record key present on both replicas.
func classifyShared(key string, lrec, rrec model.Record, base *Baseline, report *DiffReport) {
	lfp, rfp := fingerprintRecord(lrec), fingerprintRecord(rrec)
	if lfp == rfp {
		report.Identical++
		return
	}

	// A baseline-proven one-sided edit always wins as-is, even when only
	// the associations moved: a union merge would resurrect a one-sided
	// tag or collection removal.
	id := string(model.KindRecord) + "/" + key
	if basefp, ok := base.Lookup(id); ok {
		switch basefp {
		case lfp: // local unchanged, remote edited
			report.AutoUpdates = append(report.AutoUpdates, AutoUpdate{
				Key: key, Kind: model.KindRecord, Direction: RemoteToLocal,
			})
			return
		case rfp: // remote unchanged, local edited
			report.AutoUpdates = append(report.AutoUpdates, AutoUpdate{
				Key: key, Kind: model.KindRecord, Direction: LocalToRemote,
			})
			return
		}
	}

	diffs := diffRecordFields(lrec, rrec)
	if associationOnly(diffs) {
		report.AssocMerges = append(report.AssocMerges, key)
		return
	}

	logging.Debug("record conflict detected",
		logging.Item(key),
		logging.Count(len(diffs)),
	)
	report.Conflicts = append(report.Conflicts, newRecordConflict(key, lrec, rrec))
}

func diffPdfs(local, remote *snapshot.Snapshot, base *Baseline, report *DiffReport) {
	for _, key := range unionKeys(pdfKeys(local), pdfKeys(remote)) {
		lpdf, lok := local.Pdfs[key]
		rpdf, rok := remote.Pdfs[key]

		switch {
		case lok && !rok:
			report.LocalOnly = append(report.LocalOnly, Item{Key: key, Kind: model.KindPdf})
		case !lok && rok:
			report.RemoteOnly = append(report.RemoteOnly, Item{Key: key, Kind: model.KindPdf})
		case lpdf.SHA256 == rpdf.SHA256:
			report.Identical++
		default:
			id := string(model.KindPdf) + "/" + key
			if basefp, ok := base.Lookup(id); ok {
				switch basefp {
				case lpdf.SHA256:
					report.AutoUpdates = append(report.AutoUpdates, AutoUpdate{
						Key: key, Kind: model.KindPdf, Direction: RemoteToLocal,
					})
					continue
				case rpdf.SHA256:
					report.AutoUpdates = append(report.AutoUpdates, AutoUpdate{
						Key: key, Kind: model.KindPdf, Direction: LocalToRemote,
					})
					continue
				}
			}
			logging.Debug("pdf conflict detected", logging.Item(key))
			report.Conflicts = append(report.Conflicts, newPdfConflict(key, lpdf, rpdf))
		}
	}
}

func recordKeys(s *snapshot.Snapshot) []string {
	keys := make([]string, 0, len(s.Records))
	for k := range s.Records {
		keys = append(keys, k)
	}
	return keys
}

func pdfKeys(s *snapshot.Snapshot) []string {
	keys := make([]string, 0, len(s.Pdfs))
	for k := range s.Pdfs {
		keys = append(keys, k)
	}
	return keys
}

// unionKeys merges two key sets into a sorted slice so diff output is
// deterministic run to run.
func unionKeys(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, k := range a {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range b {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
