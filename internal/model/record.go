// Package model defines the core types for refsync: bibliographic records,
// syncable item kinds, and the stable key scheme that addresses the same
// logical item on either replica.
package model

// Record represents a single bibliographic entry in the library.
// It carries exactly the user-visible fields the sync engine is allowed
// to compare; replica-local row ids and bookkeeping timestamps are never
// part of this type.
type Record struct {
	Title       string   `yaml:"title" json:"title"`
	Authors     []string `yaml:"authors,omitempty" json:"authors,omitempty"`
	Abstract    string   `yaml:"abstract,omitempty" json:"abstract,omitempty"`
	DOI         string   `yaml:"doi,omitempty" json:"doi,omitempty"`
	ArxivID     string   `yaml:"arxiv_id,omitempty" json:"arxiv_id,omitempty"`
	Venue       string   `yaml:"venue,omitempty" json:"venue,omitempty"`
	Year        int      `yaml:"year,omitempty" json:"year,omitempty"`
	Notes       string   `yaml:"notes,omitempty" json:"notes,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Collections []string `yaml:"collections,omitempty" json:"collections,omitempty"`
}

// ItemKind identifies the kind of a syncable item.
type ItemKind string

const (
	// KindRecord is a bibliographic record.
	KindRecord ItemKind = "record"

	// KindPdf is a PDF file attached to a record key.
	KindPdf ItemKind = "pdf"
)

// String returns the string representation of the kind.
func (k ItemKind) String() string {
	return string(k)
}

// FirstAuthor returns the first listed author, or "" when none are set.
func (r Record) FirstAuthor() string {
	if len(r.Authors) == 0 {
		return ""
	}
	return r.Authors[0]
}

// Clone returns a deep copy of the record. The applier uses it when a
// KeepBoth resolution re-keys a losing version.
func (r Record) Clone() Record {
	out := r
	out.Authors = append([]string(nil), r.Authors...)
	out.Tags = append([]string(nil), r.Tags...)
	out.Collections = append([]string(nil), r.Collections...)
	return out
}
