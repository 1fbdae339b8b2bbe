package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ManifestFileName is the library manifest written at every replica root.
const ManifestFileName = "library.toml"

// SchemaVersion is the current replica layout version. Replicas with a
// newer schema than this are refused rather than silently misread.
const SchemaVersion = 1

// Manifest identifies a library replica.
type Manifest struct {
	Name          string    `toml:"name"`
	SchemaVersion int       `toml:"schema_version"`
	CreatedAt     time.Time `toml:"created_at"`
}

// DefaultManifest returns a manifest for a freshly initialized replica.
func DefaultManifest(name string) Manifest {
	return Manifest{
		Name:          name,
		SchemaVersion: SchemaVersion,
		CreatedAt:     time.Now().UTC(),
	}
}

// ReadManifest reads and validates the manifest at a replica root.
// A missing manifest surfaces as os.IsNotExist.
func ReadManifest(root string) (Manifest, error) {
	path := filepath.Join(root, ManifestFileName)
	// #nosec G304 - path is constructed from the replica root
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("invalid manifest at %s: %w", path, err)
	}
	if m.SchemaVersion > SchemaVersion {
		return Manifest{}, fmt.Errorf("replica %s uses schema version %d, newer than supported %d",
			root, m.SchemaVersion, SchemaVersion)
	}
	return m, nil
}

// WriteManifest writes the manifest at a replica root.
func WriteManifest(root string, m Manifest) error {
	path := filepath.Join(root, ManifestFileName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := toml.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return nil
}
