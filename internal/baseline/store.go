package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// SchemaVersion is the only baseline document version this build reads
// or writes.
const SchemaVersion = "1"

var (
	// ErrNotFound reports that no baseline exists at the given path.
	ErrNotFound = errors.New("baseline not found")
	// ErrSchemaVersion reports a baseline document whose version field
	// does not match SchemaVersion.
	ErrSchemaVersion = errors.New("unsupported baseline schema version")
)

// Save writes the baseline as an indented JSON document, creating parent
// directories as needed.
func Save(b Baseline, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create baseline dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write baseline: %w", err)
	}
	return nil
}

// Load reads and validates a baseline document. A missing file yields
// ErrNotFound and a version mismatch yields ErrSchemaVersion; a
// mismatched document is never partially loaded.
func Load(path string) (Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Baseline{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Baseline{}, fmt.Errorf("read baseline: %w", err)
	}

	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return Baseline{}, fmt.Errorf("parse baseline %s: %w", path, err)
	}
	if b.Version != SchemaVersion {
		return Baseline{}, fmt.Errorf("%w: got %q, want %q", ErrSchemaVersion, b.Version, SchemaVersion)
	}
	return b, nil
}
