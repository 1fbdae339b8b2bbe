package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/refsync/refsync/internal/model"
	"github.com/refsync/refsync/internal/snapshot"
)

func TestBaseline_SaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	b := &Baseline{Entries: map[string]string{
		"record/doi:10.1/a": "fp-a",
		"pdf/paper":         "fp-b",
	}}

	if err := SaveBaseline(root, b); err != nil {
		t.Fatalf("SaveBaseline() error: %v", err)
	}

	got := LoadBaseline(root)
	if got == nil {
		t.Fatal("LoadBaseline() returned nil for a saved baseline")
	}
	for id, fp := range b.Entries {
		lfp, ok := got.Lookup(id)
		if !ok || lfp != fp {
			t.Errorf("Lookup(%s) = %q, %v; want %q, true", id, lfp, ok, fp)
		}
	}
}

func TestBaseline_MissingFileIsNil(t *testing.T) {
	if b := LoadBaseline(t.TempDir()); b != nil {
		t.Errorf("LoadBaseline() = %+v, want nil for missing file", b)
	}
}

func TestBaseline_CorruptFileIsNil(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, baselineDirName, baselineFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("entries: [not a map"), 0o600); err != nil {
		t.Fatal(err)
	}

	if b := LoadBaseline(root); b != nil {
		t.Errorf("LoadBaseline() = %+v, want nil for corrupt file", b)
	}
}

func TestBaseline_NilLookupSafe(t *testing.T) {
	var b *Baseline
	if _, ok := b.Lookup("record/x"); ok {
		t.Error("nil baseline Lookup reported a hit")
	}
}

func TestBuildBaseline_RecordsOnlyAgreedItems(t *testing.T) {
	agreed := model.Record{Title: "Same", DOI: "10.1/same"}
	localRec := model.Record{Title: "Local", DOI: "10.1/div"}
	remoteRec := model.Record{Title: "Remote", DOI: "10.1/div"}

	local := &snapshot.Snapshot{
		Records: map[string]model.Record{
			"doi:10.1/same": agreed,
			"doi:10.1/div":  localRec,
			"doi:10.1/solo": {Title: "Solo"},
		},
		Pdfs: map[string]snapshot.PdfView{
			"shared": {SHA256: "aaaa"},
			"forked": {SHA256: "bbbb"},
		},
	}
	remote := &snapshot.Snapshot{
		Records: map[string]model.Record{
			"doi:10.1/same": agreed,
			"doi:10.1/div":  remoteRec,
		},
		Pdfs: map[string]snapshot.PdfView{
			"shared": {SHA256: "aaaa"},
			"forked": {SHA256: "cccc"},
		},
	}

	b := buildBaseline(local, remote)

	if fp, ok := b.Lookup("record/doi:10.1/same"); !ok || fp != fingerprintRecord(agreed) {
		t.Errorf("agreed record not recorded: %q, %v", fp, ok)
	}
	if fp, ok := b.Lookup("pdf/shared"); !ok || fp != "aaaa" {
		t.Errorf("agreed pdf not recorded: %q, %v", fp, ok)
	}
	for _, id := range []string{"record/doi:10.1/div", "record/doi:10.1/solo", "pdf/forked"} {
		if _, ok := b.Lookup(id); ok {
			t.Errorf("%s recorded despite divergence or one-sidedness", id)
		}
	}
}

func TestFingerprintRecord_CanonicalAndSensitive(t *testing.T) {
	a := model.Record{Title: "T", Authors: []string{"X", "Y"}, Year: 2020}
	b := a

	if fingerprintRecord(a) != fingerprintRecord(b) {
		t.Error("identical records fingerprint differently")
	}

	b.Notes = "annotated"
	if fingerprintRecord(a) == fingerprintRecord(b) {
		t.Error("differing records share a fingerprint")
	}
}
