// Package backup preserves replica files before the merge overwrites them.
// Each replica carries its own vault under .refsync/backups; an overwrite
// anywhere on a replica first copies the old bytes into that replica's
// vault, so any resolution can be undone by hand.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	// dirPerm is the permission for vault directories (rwxr-x---)
	dirPerm = 0o750
	// filePerm is the permission for preserved files (rw-r-----)
	filePerm = 0o640
)

// Vault stores pre-overwrite copies for one replica.
type Vault struct {
	dir string
}

// Open returns the vault for the replica rooted at root. Nothing is
// created on disk until the first file is preserved.
func Open(root string) *Vault {
	return &Vault{dir: filepath.Join(root, ".refsync", "backups")}
}

// Dir returns the vault directory.
func (v *Vault) Dir() string {
	return v.dir
}

// Preserve copies the file at sourcePath into the vault under the given
// item key and records it in the index.
func (v *Vault) Preserve(key, sourcePath string) (*Entry, error) {
	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source path %q: %w", sourcePath, err)
	}

	// #nosec G304 - sourcePath is a replica file chosen by the merge stage
	content, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file %q: %w", sourcePath, err)
	}

	hash := sha256.Sum256(content)
	hashStr := hex.EncodeToString(hash[:])

	now := time.Now()
	id := now.UTC().Format("20060102-150405.000000000") + "-" + hashStr[:8]

	if err := os.MkdirAll(v.dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}

	backupPath := filepath.Join(v.dir, id+filepath.Ext(sourcePath))
	if err := os.WriteFile(backupPath, content, filePerm); err != nil {
		return nil, fmt.Errorf("failed to write backup file: %w", err)
	}

	entry := &Entry{
		ID:         id,
		Key:        key,
		SourcePath: sourcePath,
		BackupPath: backupPath,
		CreatedAt:  now,
		Hash:       hashStr,
		Size:       sourceInfo.Size(),
	}

	idx, err := v.loadIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to load vault index: %w", err)
	}
	idx.Entries[entry.ID] = *entry
	if err := v.saveIndex(idx); err != nil {
		return nil, fmt.Errorf("failed to save vault index: %w", err)
	}

	return entry, nil
}

// Restore writes a preserved file back to the given target path. The
// preserved bytes are verified against the recorded hash first.
func (v *Vault) Restore(id, targetPath string) error {
	idx, err := v.loadIndex()
	if err != nil {
		return fmt.Errorf("failed to load vault index: %w", err)
	}

	entry, exists := idx.Entries[id]
	if !exists {
		return fmt.Errorf("backup %q not found", id)
	}

	// #nosec G304 - BackupPath was written by this vault
	content, err := os.ReadFile(entry.BackupPath)
	if err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}

	hash := sha256.Sum256(content)
	if hex.EncodeToString(hash[:]) != entry.Hash {
		return fmt.Errorf("backup file corrupted: hash mismatch")
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), dirPerm); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}
	if err := os.WriteFile(targetPath, content, filePerm); err != nil {
		return fmt.Errorf("failed to write target file: %w", err)
	}

	return nil
}

// Verify checks that a preserved file is intact and matches its hash.
func (v *Vault) Verify(id string) error {
	idx, err := v.loadIndex()
	if err != nil {
		return fmt.Errorf("failed to load vault index: %w", err)
	}

	entry, exists := idx.Entries[id]
	if !exists {
		return fmt.Errorf("backup %q not found", id)
	}

	// #nosec G304 - BackupPath was written by this vault
	file, err := os.Open(entry.BackupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}

	if got := hex.EncodeToString(hash.Sum(nil)); got != entry.Hash {
		return fmt.Errorf("backup file corrupted: hash mismatch (expected %s, got %s)", entry.Hash, got)
	}

	return nil
}

// remove deletes a preserved file and drops it from the index.
func (v *Vault) remove(idx *index, id string) error {
	entry, exists := idx.Entries[id]
	if !exists {
		return fmt.Errorf("backup %q not found", id)
	}

	if err := os.Remove(entry.BackupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete backup file: %w", err)
	}

	delete(idx.Entries, id)
	return nil
}
