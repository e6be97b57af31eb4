// Package methods holds the gateway's static method descriptor table
// (spec.md §3, §9 "Schema table"): an immutable mapping from method name
// to the data the pipeline needs to drive caching, destination-scoped rate
// limiting, upload encoding, and validation, with no per-method code
// paths. An optional YAML override file extends or replaces entries at
// startup without a rebuild.
package methods

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/eugener/gatekeeper/internal"
)

// Table is an immutable, name-keyed set of method descriptors.
type Table struct {
	descriptors map[string]gateway.MethodDescriptor
}

// Lookup returns the descriptor for name, or nil if the method is
// unregistered (the pipeline falls back to lenient validation and plain
// JSON dispatch in that case).
func (t *Table) Lookup(name string) *gateway.MethodDescriptor {
	d, ok := t.descriptors[name]
	if !ok {
		return nil
	}
	return &d
}

// All returns every registered descriptor, used by the tool-protocol
// transport's "find" ranking.
func (t *Table) All() []gateway.MethodDescriptor {
	out := make([]gateway.MethodDescriptor, 0, len(t.descriptors))
	for _, d := range t.descriptors {
		out = append(out, d)
	}
	return out
}

// Len reports the number of registered methods.
func (t *Table) Len() int { return len(t.descriptors) }

// NewDefault builds the table from the built-in descriptor set.
func NewDefault() *Table {
	t := &Table{descriptors: make(map[string]gateway.MethodDescriptor, len(builtin))}
	for _, d := range builtin {
		t.descriptors[d.Name] = d
	}
	return t
}

// overrideEntry is the YAML shape accepted by METHODS_OVERRIDE_FILE.
// Field names mirror gateway.MethodDescriptor but stay independent so a
// malformed override file cannot corrupt the in-memory type directly.
// Schema and cross-field rules are deliberately not overridable from
// YAML -- those stay code-reviewed, in builtin.
type overrideEntry struct {
	Name         string   `yaml:"name"`
	Required     []string `yaml:"required"`
	Optional     []string `yaml:"optional"`
	DestScoped   bool     `yaml:"dest_scoped"`
	DestIDField  string   `yaml:"dest_id_field"`
	Cacheable    bool     `yaml:"cacheable"`
	CacheTTLSecs int      `yaml:"cache_ttl_seconds"`
	UploadFields []string `yaml:"upload_fields"`
	NestedUpload []string `yaml:"nested_upload"`
	Category     string   `yaml:"category"`
	Description  string   `yaml:"description"`
}

func secondsToDuration(secs int) time.Duration {
	return time.Duration(secs) * time.Second
}

// LoadOverrides extends or replaces t's entries with descriptors read from
// path. An override entry with a name matching a built-in method replaces
// it wholesale; a new name is added. Empty path is a no-op.
func (t *Table) LoadOverrides(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("methods: read override file: %w", err)
	}

	var entries []overrideEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("methods: parse override file: %w", err)
	}

	for _, e := range entries {
		if e.Name == "" {
			return fmt.Errorf("methods: override entry missing name")
		}
		t.descriptors[e.Name] = gateway.MethodDescriptor{
			Name:         e.Name,
			Required:     e.Required,
			Optional:     e.Optional,
			DestScoped:   e.DestScoped,
			DestIDField:  e.DestIDField,
			Cacheable:    e.Cacheable,
			CacheTTL:     secondsToDuration(e.CacheTTLSecs),
			UploadFields: e.UploadFields,
			NestedUpload: e.NestedUpload,
			Category:     e.Category,
			Description:  e.Description,
		}
	}
	return nil
}
