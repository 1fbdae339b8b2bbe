package sync

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/refsync/refsync/internal/backup"
	"github.com/refsync/refsync/internal/logging"
	"github.com/refsync/refsync/internal/model"
	"github.com/refsync/refsync/internal/snapshot"
	"github.com/refsync/refsync/internal/store"
)

// applier carries the per-run state of the merge stages. It mutates both
// replicas and keeps the in-memory snapshots current so the engine can
// derive the post-merge baseline without re-reading disk.
type applier struct {
	local      *store.Store
	remote     *store.Store
	localSnap  *snapshot.Snapshot
	remoteSnap *snapshot.Snapshot
	report     *DiffReport
	decisions  map[string]Resolution
	result     *Result
	cancelled  func() bool

	// Vaults for pre-overwrite copies; nil when backups are disabled.
	localVault  *backup.Vault
	remoteVault *backup.Vault

	lateCancelSeen bool
}

// preserve copies the file at path into the vault before it is
// overwritten. A vault failure never blocks the merge; the overwrite
// proceeds and the failure is logged.
func (a *applier) preserve(v *backup.Vault, key, path string) {
	if v == nil {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if _, err := v.Preserve(key, path); err != nil {
		logging.Warn("failed to preserve file before overwrite",
			logging.Item(key), logging.Err(err))
	}
}

// observeLateCancel notes a cancellation signal that arrived after merge
// application began. Writes already issued are never rolled back, so the
// run completes; the signal is only logged.
func (a *applier) observeLateCancel() {
	if a.lateCancelSeen || a.cancelled == nil || !a.cancelled() {
		return
	}
	a.lateCancelSeen = true
	logging.Warn("cancellation observed mid-merge; completing run, writes are not rolled back")
}

// applyRecords is the first merge stage: one-sided copies, baseline-proven
// updates, and resolved record conflicts. A failure on one item never
// aborts the stage.
func (a *applier) applyRecords() {
	for _, item := range a.report.LocalOnly {
		if item.Kind != model.KindRecord {
			continue
		}
		a.observeLateCancel()
		rec := a.localSnap.Records[item.Key]
		if err := a.remote.Create(item.Key, rec); err != nil {
			a.result.addError("record %s: %v", item.Key, err)
			continue
		}
		a.remoteSnap.Records[item.Key] = rec
		a.result.Counts.ToRemote++
		a.result.addChange(CategoryRecords,
			fmt.Sprintf("copied record %s (%s)", item.Key, LocalToRemote))
	}

	for _, item := range a.report.RemoteOnly {
		if item.Kind != model.KindRecord {
			continue
		}
		a.observeLateCancel()
		rec := a.remoteSnap.Records[item.Key]
		if err := a.local.Create(item.Key, rec); err != nil {
			a.result.addError("record %s: %v", item.Key, err)
			continue
		}
		a.localSnap.Records[item.Key] = rec
		a.result.Counts.ToLocal++
		a.result.addChange(CategoryRecords,
			fmt.Sprintf("copied record %s (%s)", item.Key, RemoteToLocal))
	}

	for _, au := range a.report.AutoUpdates {
		if au.Kind != model.KindRecord {
			continue
		}
		a.observeLateCancel()
		a.applyRecordUpdate(au.Key, au.Direction, "updated record")
	}

	for _, conflict := range a.report.Conflicts {
		if conflict.Kind != model.KindRecord {
			continue
		}
		a.observeLateCancel()
		a.applyRecordResolution(conflict)
	}
}

// applyRecordUpdate overwrites one side of a record with the other.
func (a *applier) applyRecordUpdate(key string, dir Direction, verb string) {
	switch dir {
	case LocalToRemote:
		rec := a.localSnap.Records[key]
		a.preserve(a.remoteVault, key, a.remote.RecordPath(key))
		if err := a.remote.Upsert(key, rec); err != nil {
			a.result.addError("record %s: %v", key, err)
			return
		}
		a.remoteSnap.Records[key] = rec
		a.result.Counts.ToRemote++
	case RemoteToLocal:
		rec := a.remoteSnap.Records[key]
		a.preserve(a.localVault, key, a.local.RecordPath(key))
		if err := a.local.Upsert(key, rec); err != nil {
			a.result.addError("record %s: %v", key, err)
			return
		}
		a.localSnap.Records[key] = rec
		a.result.Counts.ToLocal++
	}
	a.result.addChange(CategoryRecords, fmt.Sprintf("%s %s (%s)", verb, key, dir))
}

// applyRecordResolution applies one resolved record conflict. Conflicts
// without a decision (unrecognized resolver output) were already reported
// and are skipped here.
func (a *applier) applyRecordResolution(conflict *Conflict) {
	res, ok := a.decisions[conflict.ID()]
	if !ok {
		logging.Debug("skipping unresolved conflict", logging.Item(conflict.Key))
		return
	}

	key := conflict.Key
	switch res {
	case ResolutionUseLocal:
		a.applyRecordUpdate(key, LocalToRemote, "resolved record")
		a.result.Counts.Resolved++

	case ResolutionUseRemote:
		a.applyRecordUpdate(key, RemoteToLocal, "resolved record")
		a.result.Counts.Resolved++

	case ResolutionKeepBoth:
		// The remote version is re-keyed; the local one keeps the original
		// key. Neither version is lost on either replica.
		loser := conflict.RemoteRecord.Clone()
		dupKey := model.Disambiguate(key, fingerprintRecord(loser), a.recordKeyTaken)

		failed := false
		if err := a.local.Create(dupKey, loser); err != nil {
			a.result.addError("record %s: %v", dupKey, err)
			failed = true
		} else {
			a.localSnap.Records[dupKey] = loser
			a.result.Counts.ToLocal++
			a.result.addChange(CategoryRecords,
				fmt.Sprintf("kept both: record %s duplicated as %s (%s)", key, dupKey, RemoteToLocal))
		}
		if err := a.remote.Upsert(dupKey, loser); err != nil {
			a.result.addError("record %s: %v", dupKey, err)
			failed = true
		} else {
			a.remoteSnap.Records[dupKey] = loser
		}
		a.preserve(a.remoteVault, key, a.remote.RecordPath(key))
		if err := a.remote.Upsert(key, conflict.LocalRecord); err != nil {
			a.result.addError("record %s: %v", key, err)
			failed = true
		} else {
			a.remoteSnap.Records[key] = conflict.LocalRecord
			a.result.Counts.ToRemote++
			a.result.addChange(CategoryRecords,
				fmt.Sprintf("kept both: record %s now local version (%s)", key, LocalToRemote))
		}
		if !failed {
			a.result.Counts.Resolved++
		}
	}
}

// recordKeyTaken reports whether a candidate key already exists on either
// replica, consulting both snapshots and the stores.
func (a *applier) recordKeyTaken(key string) bool {
	if _, ok := a.localSnap.Records[key]; ok {
		return true
	}
	if _, ok := a.remoteSnap.Records[key]; ok {
		return true
	}
	return a.local.Exists(key) || a.remote.Exists(key)
}

// applyCollections is the second merge stage: records whose only divergence
// is tags or collections get their associations union-merged on both sides.
func (a *applier) applyCollections() {
	for _, key := range a.report.AssocMerges {
		a.observeLateCancel()

		lrec := a.localSnap.Records[key]
		rrec := a.remoteSnap.Records[key]

		merged := lrec.Clone()
		merged.Tags = unionStrings(lrec.Tags, rrec.Tags)
		merged.Collections = unionStrings(lrec.Collections, rrec.Collections)

		if fingerprintRecord(merged) != fingerprintRecord(lrec) {
			a.preserve(a.localVault, key, a.local.RecordPath(key))
			if err := a.local.Upsert(key, merged); err != nil {
				a.result.addError("associations %s: %v", key, err)
			} else {
				a.localSnap.Records[key] = merged
				a.result.Counts.ToLocal++
				a.result.addChange(CategoryCollections,
					fmt.Sprintf("merged associations for %s (%s)", key, RemoteToLocal))
			}
		}
		if fingerprintRecord(merged) != fingerprintRecord(rrec) {
			a.preserve(a.remoteVault, key, a.remote.RecordPath(key))
			if err := a.remote.Upsert(key, merged); err != nil {
				a.result.addError("associations %s: %v", key, err)
			} else {
				a.remoteSnap.Records[key] = merged
				a.result.Counts.ToRemote++
				a.result.addChange(CategoryCollections,
					fmt.Sprintf("merged associations for %s (%s)", key, LocalToRemote))
			}
		}
	}
}

// applyPdfs is the third merge stage: one-sided file copies, baseline-proven
// overwrites, and resolved PDF conflicts. Equality is content-hash equality;
// file times never decide anything.
func (a *applier) applyPdfs() {
	for _, item := range a.report.LocalOnly {
		if item.Kind != model.KindPdf {
			continue
		}
		a.observeLateCancel()
		a.copyPdf(item.Key, LocalToRemote, "copied pdf")
	}

	for _, item := range a.report.RemoteOnly {
		if item.Kind != model.KindPdf {
			continue
		}
		a.observeLateCancel()
		a.copyPdf(item.Key, RemoteToLocal, "copied pdf")
	}

	for _, au := range a.report.AutoUpdates {
		if au.Kind != model.KindPdf {
			continue
		}
		a.observeLateCancel()
		a.copyPdf(au.Key, au.Direction, "updated pdf")
	}

	for _, conflict := range a.report.Conflicts {
		if conflict.Kind != model.KindPdf {
			continue
		}
		a.observeLateCancel()
		a.applyPdfResolution(conflict)
	}
}

// copyPdf copies one PDF in the given direction and updates the target
// snapshot with the source's view.
func (a *applier) copyPdf(key string, dir Direction, verb string) {
	var (
		src      snapshot.PdfView
		dst      string
		dstSnap  *snapshot.Snapshot
		dstVault *backup.Vault
	)
	switch dir {
	case LocalToRemote:
		src = a.localSnap.Pdfs[key]
		dst = a.remote.PdfPath(key)
		dstSnap = a.remoteSnap
		dstVault = a.remoteVault
	case RemoteToLocal:
		src = a.remoteSnap.Pdfs[key]
		dst = a.local.PdfPath(key)
		dstSnap = a.localSnap
		dstVault = a.localVault
	}

	a.preserve(dstVault, key, dst)
	if err := copyFile(src.Path, dst); err != nil {
		a.result.addError("pdf %s: %v", key, err)
		return
	}
	dstSnap.Pdfs[key] = snapshot.PdfView{
		Path:    dst,
		Size:    src.Size,
		ModTime: src.ModTime,
		SHA256:  src.SHA256,
	}
	switch dir {
	case LocalToRemote:
		a.result.Counts.ToRemote++
	case RemoteToLocal:
		a.result.Counts.ToLocal++
	}
	a.result.addChange(CategoryPdfs,
		fmt.Sprintf("%s %s [%s] (%s)", verb, key, humanize.Bytes(uint64(src.Size)), dir))
}

// applyPdfResolution applies one resolved PDF conflict.
func (a *applier) applyPdfResolution(conflict *Conflict) {
	res, ok := a.decisions[conflict.ID()]
	if !ok {
		logging.Debug("skipping unresolved conflict", logging.Item(conflict.Key))
		return
	}

	key := conflict.Key
	switch res {
	case ResolutionUseLocal:
		a.copyPdf(key, LocalToRemote, "resolved pdf")
		a.result.Counts.Resolved++

	case ResolutionUseRemote:
		a.copyPdf(key, RemoteToLocal, "resolved pdf")
		a.result.Counts.Resolved++

	case ResolutionKeepBoth:
		// Duplicate the remote version under a disambiguated name on both
		// replicas before the original remote file is overwritten below.
		loser := conflict.RemotePdf
		dupKey := model.Disambiguate(key, loser.SHA256, a.pdfKeyTaken)

		failed := false
		for _, target := range []struct {
			dst  string
			snap *snapshot.Snapshot
			dir  Direction
		}{
			{a.local.PdfPath(dupKey), a.localSnap, RemoteToLocal},
			{a.remote.PdfPath(dupKey), a.remoteSnap, LocalToRemote},
		} {
			if err := copyFile(loser.Path, target.dst); err != nil {
				a.result.addError("pdf %s: %v", dupKey, err)
				failed = true
				continue
			}
			target.snap.Pdfs[dupKey] = snapshot.PdfView{
				Path:    target.dst,
				Size:    loser.Size,
				ModTime: loser.ModTime,
				SHA256:  loser.SHA256,
			}
		}
		if !failed {
			a.result.Counts.ToLocal++
			a.result.addChange(CategoryPdfs,
				fmt.Sprintf("kept both: pdf %s duplicated as %s (%s)", key, dupKey, RemoteToLocal))
		}

		a.copyPdf(key, LocalToRemote, "kept both: pdf")
		if !failed {
			a.result.Counts.Resolved++
		}
	}
}

// pdfKeyTaken reports whether a candidate PDF key is already in use on
// either replica.
func (a *applier) pdfKeyTaken(key string) bool {
	if _, ok := a.localSnap.Pdfs[key]; ok {
		return true
	}
	if _, ok := a.remoteSnap.Pdfs[key]; ok {
		return true
	}
	if _, err := os.Stat(a.local.PdfPath(key)); err == nil {
		return true
	}
	_, err := os.Stat(a.remote.PdfPath(key))
	return err == nil
}

// unionStrings merges two string sets into a sorted, de-duplicated slice.
func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, lists := range [][]string{a, b} {
		for _, s := range lists {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}

// copyFile copies a single file from src to dst, preserving permissions.
func copyFile(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source %q: %w", src, err)
	}

	// #nosec G304 - src comes from a replica's pdfs directory
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source %q: %w", src, err)
	}
	defer func() { _ = srcFile.Close() }()

	// #nosec G304 - dst is constructed from the target store
	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination %q: %w", dst, err)
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return fmt.Errorf("failed to copy to %q: %w", dst, err)
	}
	if err := dstFile.Close(); err != nil {
		return fmt.Errorf("failed to finalize %q: %w", dst, err)
	}
	return nil
}
