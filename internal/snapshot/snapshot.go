// Package snapshot loads a canonical, comparable view of a library replica:
// every record keyed by its stable key, and every PDF with size, modified
// time, and content hash. Snapshots are what the diff engine compares; they
// are never written back.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/refsync/refsync/internal/logging"
	"github.com/refsync/refsync/internal/model"
	"github.com/refsync/refsync/internal/store"
)

// PdfView is the comparable view of a single PDF file. Equality across
// replicas is decided by SHA256 alone; size and mtime are carried for
// reporting, not for comparison, since timestamp resolution differs across
// filesystems.
type PdfView struct {
	Path    string
	Size    int64
	ModTime time.Time
	SHA256  string
}

// Snapshot is the comparable view of one replica.
type Snapshot struct {
	// Records maps stable item key to the record's diffable fields.
	Records map[string]model.Record
	// Pdfs maps the PDF's key (its sanitized file base name) to its view.
	Pdfs map[string]PdfView
}

// Read loads a snapshot of the replica at root. Per-item failures
// (unreadable record files, unhashable PDFs) are skipped and returned as
// warning strings; a missing or unreadable replica root is an error.
func Read(root string) (*Snapshot, []string, error) {
	defer logging.Timer("snapshot_read")()

	st, err := store.Open(root)
	if err != nil {
		return nil, nil, err
	}

	entries, warnings, err := st.ListAll()
	if err != nil {
		return nil, nil, err
	}

	snap := &Snapshot{
		Records: make(map[string]model.Record, len(entries)),
		Pdfs:    make(map[string]PdfView),
	}
	for _, e := range entries {
		snap.Records[e.Key] = e.Record
	}

	pdfWarnings, err := readPdfs(st.PdfsDir(), snap.Pdfs)
	if err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, pdfWarnings...)

	logging.Debug("read replica snapshot",
		logging.Path(root),
		logging.Count(len(snap.Records)),
		logging.Kind("records"),
	)
	return snap, warnings, nil
}

// PrepareRemote ensures the remote replica root exists with the expected
// layout, creating directories and a manifest on first contact. It is never
// used for the local side: a missing local store is fatal, not fabricated.
func PrepareRemote(root string) error {
	if _, err := store.Init(root); err != nil {
		return fmt.Errorf("failed to prepare remote replica: %w", err)
	}
	return nil
}

// readPdfs walks a pdfs directory and fills views keyed by file base name.
// A missing directory yields an empty map, matching a replica that has
// records but no attachments yet.
func readPdfs(dir string, out map[string]PdfView) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pdfs directory: %w", err)
	}

	var warnings []string
	for _, de := range dirEntries {
		if de.IsDir() || !strings.EqualFold(filepath.Ext(de.Name()), ".pdf") {
			continue
		}
		path := filepath.Join(dir, de.Name())

		info, err := de.Info()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("pdf %s: %v", de.Name(), err))
			continue
		}
		hash, err := HashFile(path)
		if err != nil {
			logging.Warn("skipping unhashable pdf",
				logging.Path(path),
				logging.Err(err),
			)
			warnings = append(warnings, fmt.Sprintf("pdf %s: %v", de.Name(), err))
			continue
		}

		key := strings.TrimSuffix(de.Name(), filepath.Ext(de.Name()))
		out[key] = PdfView{
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			SHA256:  hash,
		}
	}
	return warnings, nil
}

// HashFile returns the hex SHA-256 of a file's content, streaming the file
// rather than loading it into memory.
func HashFile(path string) (string, error) {
	// #nosec G304 - path comes from walking the replica's pdfs directory
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
