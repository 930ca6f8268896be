package importer

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed mapping/projects.yaml
var defaultMapping []byte

// Mapping represents the YAML mapping configuration
type Mapping struct {
	Version int `yaml:"version"`
	// Sheet names the worksheet to read; empty means the first one.
	Sheet         string              `yaml:"sheet"`
	ListSeparator string              `yaml:"list_separator"`
	Defaults      map[string]string   `yaml:"defaults"`
	Columns       map[string][]string `yaml:"columns"`
}

// fields a mapping may bind a column to
var knownFields = map[string]bool{
	"name":                  true,
	"project_code":          true,
	"description":           true,
	"status":                true,
	"priority":              true,
	"start_date":            true,
	"end_date":              true,
	"estimated_end_date":    true,
	"budget":                true,
	"actual_cost":           true,
	"client_name":           true,
	"technology_stack":      true,
	"team_size":             true,
	"completion_percentage": true,
	"managers":              true,
}

var requiredColumns = []string{"name", "project_code"}

// DefaultMapping returns the mapping compiled into the binary
func DefaultMapping() (*Mapping, error) {
	return ParseMapping(defaultMapping)
}

// LoadMapping reads a mapping file; an empty path yields DefaultMapping.
func LoadMapping(path string) (*Mapping, error) {
	if path == "" {
		return DefaultMapping()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping %s: %w", path, err)
	}
	m, err := ParseMapping(data)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	return m, nil
}

// ParseMapping decodes and checks a YAML mapping
func ParseMapping(data []byte) (*Mapping, error) {
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}
	if m.Version != 1 {
		return nil, fmt.Errorf("unsupported mapping version %d", m.Version)
	}
	if m.ListSeparator == "" {
		m.ListSeparator = ","
	}

	var unknown []string
	for field := range m.Columns {
		if !knownFields[field] {
			unknown = append(unknown, field)
		}
	}
	for field := range m.Defaults {
		if !knownFields[field] {
			unknown = append(unknown, field)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown fields: %s", strings.Join(unknown, ", "))
	}
	for _, field := range requiredColumns {
		if len(m.Columns[field]) == 0 {
			return nil, fmt.Errorf("no headers mapped for required field %s", field)
		}
	}
	return &m, nil
}

// resolve maps header cells to fields. Header matching ignores case and
// surrounding space; the first column wins when two headers match one field.
func (m *Mapping) resolve(headers []string) map[int]string {
	byHeader := make(map[string]string)
	for field, aliases := range m.Columns {
		for _, alias := range aliases {
			byHeader[normalizeHeader(alias)] = field
		}
	}

	out := make(map[int]string)
	taken := make(map[string]bool)
	for col, h := range headers {
		field, ok := byHeader[normalizeHeader(h)]
		if !ok || taken[field] {
			continue
		}
		taken[field] = true
		out[col] = field
	}
	return out
}

func normalizeHeader(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
