package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Entry describes one preserved file.
type Entry struct {
	ID         string    `json:"id"`          // Unique identifier (timestamp + content hash prefix)
	Key        string    `json:"key"`         // Item key the file belonged to
	SourcePath string    `json:"source_path"` // Replica path the file was preserved from
	BackupPath string    `json:"backup_path"` // Path of the preserved copy
	CreatedAt  time.Time `json:"created_at"`  // When the file was preserved
	Hash       string    `json:"hash"`        // SHA256 of the preserved content
	Size       int64     `json:"size"`        // File size in bytes
}

// index is the on-disk catalogue of a vault.
type index struct {
	Version string           `json:"version"`
	Updated time.Time        `json:"updated"`
	Entries map[string]Entry `json:"entries"`
}

const (
	indexVersion  = "1.0"
	indexFilename = "index.json"
)

func (v *Vault) indexPath() string {
	return filepath.Join(v.dir, indexFilename)
}

// loadIndex reads the vault index, returning an empty one when the vault
// has never been written to.
func (v *Vault) loadIndex() (*index, error) {
	path := v.indexPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &index{
			Version: indexVersion,
			Updated: time.Now(),
			Entries: make(map[string]Entry),
		}, nil
	}

	// #nosec G304 - path is inside this vault's directory
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse index file: %w", err)
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]Entry)
	}

	return &idx, nil
}

func (v *Vault) saveIndex(idx *index) error {
	if err := os.MkdirAll(v.dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}

	idx.Updated = time.Now()
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	// #nosec G306 - index.json is metadata and can be group-readable
	if err := os.WriteFile(v.indexPath(), data, filePerm); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}
	return nil
}

// List returns all preserved files, newest first.
func (v *Vault) List() ([]Entry, error) {
	idx, err := v.loadIndex()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// History returns the preserved versions of one item key, newest first.
func (v *Vault) History(key string) ([]Entry, error) {
	all, err := v.List()
	if err != nil {
		return nil, err
	}

	var history []Entry
	for _, e := range all {
		if e.Key == key {
			history = append(history, e)
		}
	}
	return history, nil
}
