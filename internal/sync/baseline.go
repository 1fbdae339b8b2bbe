package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/refsync/refsync/internal/logging"
	"github.com/refsync/refsync/internal/model"
	"github.com/refsync/refsync/internal/snapshot"
)

// baselineDirName holds per-pair sync state under the local replica root.
const baselineDirName = ".refsync"

// baselineFileName records the content fingerprints of every item the two
// replicas last agreed on.
const baselineFileName = "baseline.yaml"

// Baseline maps item id (kind/key) to the content fingerprint observed when
// the replicas were last known equal. It lets the diff engine tell a
// one-sided edit (auto-merged, changed side wins) from a true two-sided
// conflict. A missing baseline is legal: every shared divergence is then a
// conflict, which errs toward asking rather than overwriting.
type Baseline struct {
	Entries map[string]string `yaml:"entries"`
}

// Lookup returns the fingerprint recorded for an item id, if any.
func (b *Baseline) Lookup(id string) (string, bool) {
	if b == nil || b.Entries == nil {
		return "", false
	}
	fp, ok := b.Entries[id]
	return fp, ok
}

// baselinePath returns the baseline file location for a local replica root.
func baselinePath(localRoot string) string {
	return filepath.Join(localRoot, baselineDirName, baselineFileName)
}

// LoadBaseline reads the baseline stored under the local replica root.
// A missing file returns a nil baseline without error; a corrupt file is
// treated the same way after a warning, since the worst outcome of a lost
// baseline is extra conflicts, never data loss.
func LoadBaseline(localRoot string) *Baseline {
	path := baselinePath(localRoot)
	// #nosec G304 - path is constructed from the replica root
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("baseline unreadable, treating all divergence as conflicts",
				logging.Path(path),
				logging.Err(err),
			)
		}
		return nil
	}

	var b Baseline
	if err := yaml.Unmarshal(data, &b); err != nil {
		logging.Warn("baseline corrupt, treating all divergence as conflicts",
			logging.Path(path),
			logging.Err(err),
		)
		return nil
	}
	return &b
}

// SaveBaseline writes the baseline under the local replica root.
func SaveBaseline(localRoot string, b *Baseline) error {
	path := baselinePath(localRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create baseline directory: %w", err)
	}

	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write baseline: %w", err)
	}
	return nil
}

// buildBaseline derives a fresh baseline from two snapshots: every item
// whose content agrees on both sides gets its fingerprint recorded. Called
// after a successful merge, when the applier has brought the in-memory
// snapshots up to date.
func buildBaseline(local, remote *snapshot.Snapshot) *Baseline {
	b := &Baseline{Entries: make(map[string]string)}

	for key, lrec := range local.Records {
		rrec, ok := remote.Records[key]
		if !ok {
			continue
		}
		lfp := fingerprintRecord(lrec)
		if lfp == fingerprintRecord(rrec) {
			b.Entries[string(model.KindRecord)+"/"+key] = lfp
		}
	}
	for key, lpdf := range local.Pdfs {
		rpdf, ok := remote.Pdfs[key]
		if !ok {
			continue
		}
		if lpdf.SHA256 == rpdf.SHA256 {
			b.Entries[string(model.KindPdf)+"/"+key] = lpdf.SHA256
		}
	}
	return b
}

// fingerprintRecord returns a content fingerprint covering every diffable
// field of a record. Two records are equal iff their fingerprints are.
func fingerprintRecord(rec model.Record) string {
	data, err := yaml.Marshal(rec)
	if err != nil {
		// Marshal of a plain struct cannot realistically fail; fall back to
		// a representation that still distinguishes records.
		data = []byte(fmt.Sprintf("%+v", rec))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
