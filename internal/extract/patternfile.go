package extract

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// patternFile is the YAML root of a pattern pack.
type patternFile struct {
	Patterns []patternEntry `yaml:"patterns"`
}

type patternEntry struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"`
	Regex string `yaml:"regex"`
}

// LoadPatternFile reads custom metric definitions from a YAML pattern
// pack. An empty path or a missing file yields no definitions, so a
// deployment without a pack falls through to the built-in registry.
func LoadPatternFile(path string) ([]Definition, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pattern pack: %w", err)
	}

	var file patternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse pattern pack %s: %w", path, err)
	}

	defs := make([]Definition, 0, len(file.Patterns))
	for _, entry := range file.Patterns {
		if entry.Name == "" {
			return nil, fmt.Errorf("pattern pack %s: entry without a name", path)
		}
		kind, err := ParseKind(entry.Kind)
		if err != nil {
			return nil, fmt.Errorf("pattern pack %s: %q: %w", path, entry.Name, err)
		}
		defs = append(defs, Definition{Name: entry.Name, Kind: kind, Expr: entry.Regex})
	}
	return defs, nil
}
