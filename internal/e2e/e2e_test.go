package e2e

import (
	"testing"

	"github.com/refsync/refsync/internal/model"
)

func TestSyncAuto_ConvergesReplicas(t *testing.T) {
	h := NewHarness(t)
	local := h.LocalFixture()
	remote := h.RemoteFixture()

	keyA := local.WriteRecord(model.Record{
		Title:   "Attention Is All You Need",
		Authors: []string{"Vaswani, Ashish"},
		DOI:     "10.5555/3295222",
		Year:    2017,
	})
	keyB := remote.WriteRecord(model.Record{
		Title:   "Deep Residual Learning",
		Authors: []string{"He, Kaiming"},
		ArxivID: "1512.03385",
		Year:    2015,
	})

	r := h.Run("sync", "--auto")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "Sync complete")
	AssertOutputContains(t, r, "2 change(s) applied")

	if !remote.HasRecord(keyA) {
		t.Errorf("record %s not copied to remote", keyA)
	}
	if !local.HasRecord(keyB) {
		t.Errorf("record %s not copied to local", keyB)
	}
}

func TestSyncAuto_SecondRunIsIdempotent(t *testing.T) {
	h := NewHarness(t)
	local := h.LocalFixture()
	h.RemoteFixture()

	local.WriteRecord(model.Record{Title: "Paper", DOI: "10.1/p1"})

	AssertSuccess(t, h.Run("sync", "--auto"))

	r := h.Run("sync", "--auto")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "already identical")
}

func TestSync_PdfCopiedToRemote(t *testing.T) {
	h := NewHarness(t)
	local := h.LocalFixture()
	remote := h.RemoteFixture()

	local.WritePdf("attention", []byte("%PDF-1.4 body"))

	AssertSuccess(t, h.Run("sync", "--auto"))

	AssertFileExists(t, remote.Path("pdfs/attention.pdf"))
	if got := remote.ReadFile("pdfs/attention.pdf"); got != "%PDF-1.4 body" {
		t.Errorf("pdf content mismatch: %q", got)
	}
}

func TestSync_InteractivePromptResolvesConflict(t *testing.T) {
	h := NewHarness(t)
	local := h.LocalFixture()
	remote := h.RemoteFixture()

	rec := model.Record{Title: "Shared Paper", DOI: "10.1/shared"}
	rec.Notes = "local notes"
	key := local.WriteRecord(rec)
	rec.Notes = "remote notes"
	remote.WriteRecord(rec)

	// Choose "use remote" at the prompt.
	r := h.RunWithStdin("2\n", "sync")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "Conflict Resolution")
	AssertOutputContains(t, r, "1 change(s) applied")

	if got := local.Record(key).Notes; got != "remote notes" {
		t.Errorf("local notes = %q, want remote version", got)
	}
}

func TestSync_DryRunDoesNotMutate(t *testing.T) {
	h := NewHarness(t)
	local := h.LocalFixture()
	remote := h.RemoteFixture()

	key := local.WriteRecord(model.Record{Title: "Pending", DOI: "10.1/pending"})

	r := h.Run("sync", "--dry-run")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, key)
	AssertOutputContains(t, r, "1 pending change(s)")

	if remote.HasRecord(key) {
		t.Error("dry run must not copy records")
	}
}

func TestStatus_ReportsIdenticalReplicas(t *testing.T) {
	h := NewHarness(t)
	local := h.LocalFixture()
	h.RemoteFixture()

	local.WriteRecord(model.Record{Title: "Paper", DOI: "10.1/p1"})
	AssertSuccess(t, h.Run("sync", "--auto"))

	r := h.Run("status")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "replicas are identical")
}

func TestStatus_ListsConflicts(t *testing.T) {
	h := NewHarness(t)
	local := h.LocalFixture()
	remote := h.RemoteFixture()

	rec := model.Record{Title: "Shared", DOI: "10.1/shared", Year: 2020}
	key := local.WriteRecord(rec)
	rec.Year = 2021
	remote.WriteRecord(rec)

	r := h.Run("status")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, key)
	AssertOutputContains(t, r, "1 conflict(s)")
}

func TestStatus_MissingReplicaFails(t *testing.T) {
	h := NewHarness(t)
	h.LocalFixture()
	// Remote root never initialized.

	r := h.Run("status")
	AssertError(t, r)
	AssertExitCode(t, r, 1)
}

func TestConfig_InitAndShow(t *testing.T) {
	h := NewHarness(t)

	r := h.Run("config", "init")
	AssertSuccess(t, r)
	AssertFileExists(t, h.HomeDir()+"/.config/refsync/config.yaml")

	// A second init must refuse to clobber the existing file.
	AssertError(t, h.Run("config", "init"))

	r = h.Run("config", "show")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "replicas:")
	AssertOutputContains(t, r, "sync:")
}

func TestVersionCommand(t *testing.T) {
	h := NewHarness(t)

	r := h.Run("version")
	AssertSuccess(t, r)
	AssertOutputContains(t, r, "refsync")
}
