package sync

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/refsync/refsync/internal/model"
	"github.com/refsync/refsync/internal/snapshot"
)

// Resolution represents the chosen outcome for a conflict.
type Resolution string

const (
	// ResolutionUseLocal overwrites the remote version with the local one.
	ResolutionUseLocal Resolution = "use_local"

	// ResolutionUseRemote overwrites the local version with the remote one.
	ResolutionUseRemote Resolution = "use_remote"

	// ResolutionKeepBoth retains both versions as distinct items; the
	// remote version is re-keyed with a disambiguating suffix.
	ResolutionKeepBoth Resolution = "keep_both"
)

// IsValid returns true if the resolution is recognized.
func (r Resolution) IsValid() bool {
	switch r {
	case ResolutionUseLocal, ResolutionUseRemote, ResolutionKeepBoth:
		return true
	default:
		return false
	}
}

// String returns the string representation of the resolution.
func (r Resolution) String() string {
	return string(r)
}

// Description returns a human-readable description of the resolution.
func (r Resolution) Description() string {
	switch r {
	case ResolutionUseLocal:
		return "Use the local version (overwrite remote)"
	case ResolutionUseRemote:
		return "Use the remote version (overwrite local)"
	case ResolutionKeepBoth:
		return "Keep both versions as distinct items"
	default:
		return "Unknown resolution"
	}
}

// AllResolutions returns every supported resolution.
func AllResolutions() []Resolution {
	return []Resolution{ResolutionUseLocal, ResolutionUseRemote, ResolutionKeepBoth}
}

// FieldDiff holds the two values of a single diverging field, rendered as
// strings for the resolver.
type FieldDiff struct {
	Local  string
	Remote string
}

// Conflict is a detected divergence between replicas for one item key where
// both sides have moved since the replicas were last known equal. One-sided
// additions are never conflicts; they are copied automatically.
type Conflict struct {
	// Key is the stable item key.
	Key string

	// Kind is the item kind (record or pdf). A record and its PDF diverging
	// under the same key produce two independent conflicts.
	Kind model.ItemKind

	// LocalRecord and RemoteRecord carry the two record versions when Kind
	// is KindRecord.
	LocalRecord  model.Record
	RemoteRecord model.Record

	// LocalPdf and RemotePdf carry the two file views when Kind is KindPdf.
	LocalPdf  snapshot.PdfView
	RemotePdf snapshot.PdfView

	// FieldDiffs maps field name to the pair of diverging values. Only
	// differing fields are carried, to keep the resolver payload focused.
	FieldDiffs map[string]FieldDiff
}

// ID returns the conflict's identity, unique within a run.
func (c *Conflict) ID() string {
	return string(c.Kind) + "/" + c.Key
}

// Summary returns a one-line description of the conflict.
func (c *Conflict) Summary() string {
	fields := c.FieldNames()
	return fmt.Sprintf("%s %s: %s differ", c.Kind, c.Key, strings.Join(fields, ", "))
}

// FieldNames returns the diverging field names in sorted order.
func (c *Conflict) FieldNames() []string {
	names := make([]string, 0, len(c.FieldDiffs))
	for name := range c.FieldDiffs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newRecordConflict builds a conflict carrying only the differing record fields.
func newRecordConflict(key string, local, remote model.Record) *Conflict {
	return &Conflict{
		Key:          key,
		Kind:         model.KindRecord,
		LocalRecord:  local,
		RemoteRecord: remote,
		FieldDiffs:   diffRecordFields(local, remote),
	}
}

// newPdfConflict builds a conflict for two PDF versions with differing content.
func newPdfConflict(key string, local, remote snapshot.PdfView) *Conflict {
	return &Conflict{
		Key:       key,
		Kind:      model.KindPdf,
		LocalPdf:  local,
		RemotePdf: remote,
		FieldDiffs: map[string]FieldDiff{
			"sha256": {Local: local.SHA256, Remote: remote.SHA256},
			"size": {
				Local:  humanize.Bytes(uint64(local.Size)),
				Remote: humanize.Bytes(uint64(remote.Size)),
			},
		},
	}
}

// diffRecordFields compares every modeled field and returns only the
// diverging ones. Internal ids and timestamps are not part of the model and
// therefore can never leak into a diff.
func diffRecordFields(local, remote model.Record) map[string]FieldDiff {
	diffs := make(map[string]FieldDiff)

	addString := func(name, l, r string) {
		if l != r {
			diffs[name] = FieldDiff{Local: l, Remote: r}
		}
	}
	addList := func(name string, l, r []string) {
		lj, rj := strings.Join(l, ", "), strings.Join(r, ", ")
		if lj != rj {
			diffs[name] = FieldDiff{Local: lj, Remote: rj}
		}
	}

	addString("title", local.Title, remote.Title)
	addList("authors", local.Authors, remote.Authors)
	addString("abstract", local.Abstract, remote.Abstract)
	addString("doi", local.DOI, remote.DOI)
	addString("arxiv_id", local.ArxivID, remote.ArxivID)
	addString("venue", local.Venue, remote.Venue)
	addString("year", strconv.Itoa(local.Year), strconv.Itoa(remote.Year))
	addString("notes", local.Notes, remote.Notes)
	addList("tags", local.Tags, remote.Tags)
	addList("collections", local.Collections, remote.Collections)

	return diffs
}

// associationFields are the record fields merged in the collections stage
// rather than resolved as conflicts.
var associationFields = map[string]bool{
	"tags":        true,
	"collections": true,
}

// associationOnly reports whether every diverging field is an association
// field (tags, collections). Such divergence is union-merged automatically.
func associationOnly(diffs map[string]FieldDiff) bool {
	if len(diffs) == 0 {
		return false
	}
	for name := range diffs {
		if !associationFields[name] {
			return false
		}
	}
	return true
}
