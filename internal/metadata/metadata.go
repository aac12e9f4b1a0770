// Package metadata reads metadata mappings for the CLI: YAML or JSON files
// and key=value assignments from flags.
package metadata

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a metadata file holding both blocks.
//
//	immutable_data:
//	  owner: alice
//	mutable_data:
//	  status: draft
type Document struct {
	ImmutableData map[string]any `yaml:"immutable_data,omitempty"`
	MutableData   map[string]any `yaml:"mutable_data,omitempty"`
}

// LoadDocument reads a Document from a YAML (or JSON) file. Top-level keys
// other than immutable_data and mutable_data are ignored.
func LoadDocument(path string) (*Document, error) {
	root, err := LoadMap(path)
	if err != nil {
		return nil, err
	}

	doc := &Document{}
	for key, dst := range map[string]*map[string]any{
		"immutable_data": &doc.ImmutableData,
		"mutable_data":   &doc.MutableData,
	} {
		v, ok := root[key]
		if !ok || v == nil {
			continue
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: %s must be a mapping", path, key)
		}
		*dst = m
	}
	return doc, nil
}

// LoadMap reads a single mapping from a YAML (or JSON) file.
func LoadMap(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	return ParseMap(data)
}

// ParseMap decodes a YAML (or JSON) mapping. An empty document yields an
// empty map.
func ParseMap(data []byte) (map[string]any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if raw == nil {
		return map[string]any{}, nil
	}
	m, ok := Normalize(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("metadata must be a mapping, got %T", raw)
	}
	return m, nil
}

// ParseAssignments turns ["key=value", ...] into a mapping. Values are read
// as YAML scalars, so "count=3" yields an int and "ok=true" a bool; anything
// that is not a scalar is kept as the raw string.
func ParseAssignments(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid assignment %q (expected key=value)", pair)
		}
		out[key] = parseScalar(value)
	}
	return out, nil
}

func parseScalar(s string) any {
	if s == "" {
		return ""
	}
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case nil, map[string]any, map[any]any, []any:
		if strings.TrimSpace(s) == "null" || s == "~" {
			return nil
		}
		return s
	}
	return v
}

// Merge returns base with overlay written over it (shallow).
func Merge(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// Normalize converts YAML mappings with non-string keys into
// map[string]any so the result can be encoded as JSON.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, inner := range t {
			t[k] = Normalize(inner)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[fmt.Sprint(k)] = Normalize(inner)
		}
		return out
	case []any:
		for i, inner := range t {
			t[i] = Normalize(inner)
		}
		return t
	default:
		return v
	}
}
