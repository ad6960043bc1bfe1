// Package bas compiles heterogeneous calculation outputs onto the
// fixed statutory BAS label schema.
//
// The mapping is configuration, not code: each output label names an
// ordered list of (source, dotted path) pairs whose resolved values are
// summed in exact decimals and rounded to whole currency units only at
// the very end. Rounding per addend would compound error across
// labels, so it never happens.
package bas

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceRef names one addend: a declared source and a dotted path
// inside it.
type SourceRef struct {
	Source string `yaml:"source"`
	Path   string `yaml:"path"`
}

// Mapping is the label-to-source-path configuration. Loaded once and
// never mutated at runtime; the schema version travels into every
// compiled filing for audit.
type Mapping struct {
	// Version identifies the mapping schema revision.
	Version string `yaml:"version"`

	// Labels maps each statutory label (G1, W2, ...) to its addends.
	Labels map[string][]SourceRef `yaml:"labels"`
}

// LoadMapping reads a mapping document from a YAML file.
func LoadMapping(path string) (*Mapping, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping: %w", err)
	}
	return ParseMapping(raw)
}

// ParseMapping parses and validates a YAML mapping document.
func ParseMapping(raw []byte) (*Mapping, error) {
	var m Mapping
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing mapping: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks structural requirements: a version string, at least
// one label, and complete source/path pairs. A broken mapping fails
// entirely - it indicates config drift, not a per-label condition.
func (m *Mapping) Validate() error {
	if m.Version == "" {
		return &CompileError{Code: ErrCodeBadMapping, Message: "mapping version is required"}
	}
	if len(m.Labels) == 0 {
		return &CompileError{Code: ErrCodeBadMapping, Message: "mapping declares no labels"}
	}
	for label, refs := range m.Labels {
		if len(refs) == 0 {
			return &CompileError{Code: ErrCodeBadMapping, Label: label,
				Message: "label has no source entries"}
		}
		for i, ref := range refs {
			if ref.Source == "" || ref.Path == "" {
				return &CompileError{Code: ErrCodeBadMapping, Label: label,
					Message: fmt.Sprintf("entry %d is missing source or path", i)}
			}
		}
	}
	return nil
}
