// Package store implements the on-disk record repository for a library
// replica. Each record lives in its own YAML file under records/, PDFs live
// under pdfs/, and a small TOML manifest at the replica root identifies the
// library and its schema version.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/refsync/refsync/internal/logging"
	"github.com/refsync/refsync/internal/model"
)

const (
	// RecordsDirName is the directory holding one YAML file per record.
	RecordsDirName = "records"
	// PdfsDirName is the directory holding attached PDF files.
	PdfsDirName = "pdfs"

	recordExt = ".yaml"
	pdfExt    = ".pdf"
)

// Entry pairs a record with the key it is stored under. The stored key wins
// over key derivation, which is what lets a KeepBoth duplicate live under a
// disambiguated key.
type Entry struct {
	Key    string
	Record model.Record
}

// storedRecord is the on-disk shape. Key is only written when it differs
// from what DeriveKey would produce.
type storedRecord struct {
	Key          string `yaml:"key,omitempty"`
	model.Record `yaml:",inline"`
}

// Store is a record repository rooted at a replica directory.
type Store struct {
	root string
}

// Open returns a store for an existing replica root. The records directory
// must already exist; use Init to create a fresh replica.
func Open(root string) (*Store, error) {
	info, err := os.Stat(filepath.Join(root, RecordsDirName))
	if err != nil {
		return nil, fmt.Errorf("record store unreadable at %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("record store at %s: %s is not a directory", root, RecordsDirName)
	}
	return &Store{root: root}, nil
}

// Init creates the replica directory layout (records/, pdfs/, manifest) if
// missing and returns a store for it. Existing content is left untouched.
func Init(root string) (*Store, error) {
	for _, dir := range []string{RecordsDirName, PdfsDirName} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}
	if _, err := ReadManifest(root); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := WriteManifest(root, DefaultManifest(filepath.Base(root))); err != nil {
			return nil, err
		}
		logging.Debug("wrote new library manifest", logging.Path(root))
	}
	return &Store{root: root}, nil
}

// Root returns the replica root directory.
func (s *Store) Root() string {
	return s.root
}

// RecordsDir returns the directory holding record files.
func (s *Store) RecordsDir() string {
	return filepath.Join(s.root, RecordsDirName)
}

// PdfsDir returns the directory holding PDF files.
func (s *Store) PdfsDir() string {
	return filepath.Join(s.root, PdfsDirName)
}

// RecordPath returns the file path a record with the given key is stored at.
func (s *Store) RecordPath(key string) string {
	return filepath.Join(s.RecordsDir(), model.SanitizeFilename(key)+recordExt)
}

// PdfPath returns the file path a PDF for the given key is stored at.
func (s *Store) PdfPath(key string) string {
	return filepath.Join(s.PdfsDir(), model.SanitizeFilename(key)+pdfExt)
}

// ListAll reads every record in the store. Unparsable files are skipped;
// each one contributes a warning string so callers can surface them without
// aborting the listing. The returned entries are sorted by key.
func (s *Store) ListAll() ([]Entry, []string, error) {
	dirEntries, err := os.ReadDir(s.RecordsDir())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read records directory: %w", err)
	}

	var (
		entries  []Entry
		warnings []string
	)
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), recordExt) {
			continue
		}
		path := filepath.Join(s.RecordsDir(), de.Name())
		entry, err := readRecordFile(path)
		if err != nil {
			logging.Warn("skipping unreadable record file",
				logging.Path(path),
				logging.Err(err),
			)
			warnings = append(warnings, fmt.Sprintf("record %s: %v", de.Name(), err))
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, warnings, nil
}

// Get reads a single record by key. The boolean reports presence.
func (s *Store) Get(key string) (model.Record, bool, error) {
	entry, err := readRecordFile(s.RecordPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return model.Record{}, false, nil
		}
		return model.Record{}, false, err
	}
	return entry.Record, true, nil
}

// Exists reports whether a record is stored under the given key.
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(s.RecordPath(key))
	return err == nil
}

// Upsert writes a record under the given key, creating or overwriting.
func (s *Store) Upsert(key string, rec model.Record) error {
	return s.write(key, rec)
}

// Create writes a record under the given key, failing if one already exists.
func (s *Store) Create(key string, rec model.Record) error {
	if s.Exists(key) {
		return fmt.Errorf("record %s already exists", key)
	}
	return s.write(key, rec)
}

func (s *Store) write(key string, rec model.Record) error {
	sr := storedRecord{Record: rec}
	if model.DeriveKey(rec) != key {
		sr.Key = key
	}

	data, err := yaml.Marshal(&sr)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", key, err)
	}

	path := s.RecordPath(key)
	// #nosec G306 - record files should be readable
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write record %s: %w", key, err)
	}
	logging.Debug("wrote record file", logging.Item(key), logging.Path(path))
	return nil
}

func readRecordFile(path string) (Entry, error) {
	// #nosec G304 - path is constructed from the store root
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}

	var sr storedRecord
	if err := yaml.Unmarshal(data, &sr); err != nil {
		return Entry{}, fmt.Errorf("invalid record file: %w", err)
	}

	key := sr.Key
	if key == "" {
		key = model.DeriveKey(sr.Record)
	}
	return Entry{Key: key, Record: sr.Record}, nil
}
