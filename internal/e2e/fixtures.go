package e2e

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/refsync/refsync/internal/model"
	"github.com/refsync/refsync/internal/store"
)

// Fixture provides helpers for seeding a replica in E2E tests.
// It wraps an initialized store so records land exactly where the
// sync engine expects to find them.
type Fixture struct {
	t     *testing.T
	root  string
	store *store.Store
}

// NewFixture initializes a replica at the given root and returns a
// fixture helper for it.
func NewFixture(t *testing.T, root string) *Fixture {
	t.Helper()
	st, err := store.Init(root)
	if err != nil {
		t.Fatalf("failed to initialize replica at %s: %v", root, err)
	}
	return &Fixture{
		t:     t,
		root:  root,
		store: st,
	}
}

// LocalFixture initializes the harness's local replica and returns a
// fixture helper for it.
func (h *Harness) LocalFixture() *Fixture {
	h.t.Helper()
	return NewFixture(h.t, h.localRoot)
}

// RemoteFixture initializes the harness's remote replica and returns a
// fixture helper for it.
func (h *Harness) RemoteFixture() *Fixture {
	h.t.Helper()
	return NewFixture(h.t, h.remoteRoot)
}

// WriteRecord stores a bibliographic record under its derived key and
// returns that key.
func (f *Fixture) WriteRecord(rec model.Record) string {
	f.t.Helper()
	key := model.DeriveKey(rec)
	if err := f.store.Upsert(key, rec); err != nil {
		f.t.Fatalf("failed to write record %s: %v", key, err)
	}
	return key
}

// WritePdf stores PDF bytes under the given attachment name.
func (f *Fixture) WritePdf(name string, content []byte) string {
	f.t.Helper()
	path := filepath.Join(f.store.PdfsDir(), name+".pdf")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		f.t.Fatalf("failed to write pdf %s: %v", path, err)
	}
	return path
}

// Record reads back the record stored under key. It fails the test
// when the record does not exist.
func (f *Fixture) Record(key string) model.Record {
	f.t.Helper()
	rec, ok, err := f.store.Get(key)
	if err != nil {
		f.t.Fatalf("failed to read record %s: %v", key, err)
	}
	if !ok {
		f.t.Fatalf("record %s does not exist in %s", key, f.root)
	}
	return rec
}

// HasRecord returns true if a record exists under key.
func (f *Fixture) HasRecord(key string) bool {
	f.t.Helper()
	return f.store.Exists(key)
}

// WriteFile writes content to a file relative to the replica root.
// It creates parent directories as needed.
func (f *Fixture) WriteFile(relPath, content string) string {
	f.t.Helper()
	fullPath := filepath.Join(f.root, relPath)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		f.t.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, []byte(content), 0o600); err != nil {
		f.t.Fatalf("failed to write file %s: %v", fullPath, err)
	}

	return fullPath
}

// Path returns the full path for a path relative to the replica root.
func (f *Fixture) Path(relPath string) string {
	return filepath.Join(f.root, relPath)
}

// Exists returns true if the file or directory exists.
func (f *Fixture) Exists(relPath string) bool {
	f.t.Helper()
	_, err := os.Stat(filepath.Join(f.root, relPath))
	return err == nil
}

// ReadFile reads and returns the content of a file relative to the
// replica root.
func (f *Fixture) ReadFile(relPath string) string {
	f.t.Helper()
	fullPath := filepath.Join(f.root, relPath)

	// #nosec G304 - fullPath is constructed from trusted test fixture base and test-provided path
	data, err := os.ReadFile(fullPath)
	if err != nil {
		f.t.Fatalf("failed to read file %s: %v", fullPath, err)
	}

	return string(data)
}
