package artifact

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	catalogdata "github.com/jguan/sdtank/catalog"
)

// ArtifactKey identifies one compiled artifact in the catalog.
type ArtifactKey string

// KeySpec is the structured form of an ArtifactKey.
type KeySpec struct {
	Variant   Variant   `json:"variant" yaml:"variant"`
	Version   Version   `json:"version" yaml:"version"`
	Component Component `json:"component" yaml:"component"`
	Precision Precision `json:"precision" yaml:"precision"`
	MaxLength int       `json:"max_length" yaml:"max_length"`
	Tuned     bool      `json:"tuned" yaml:"tuned"`
	Base      bool      `json:"base" yaml:"base"`
}

// Key renders k as
// <variant>/<version>/<component>/<precision>/length_<N>/<tuned|untuned>[/base].
func (k KeySpec) Key() ArtifactKey {
	tuned := "untuned"
	if k.Tuned {
		tuned = "tuned"
	}
	key := fmt.Sprintf("%s/%s/%s/%s/length_%d/%s", k.Variant, k.Version, k.Component, k.Precision, k.MaxLength, tuned)
	if k.Base {
		key += "/base"
	}
	return ArtifactKey(key)
}

// ParseKey is the inverse of KeySpec.Key.
func ParseKey(s string) (KeySpec, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 6 && len(parts) != 7 {
		return KeySpec{}, fmt.Errorf("artifact key %q: want 6 or 7 segments, got %d", s, len(parts))
	}

	var k KeySpec
	var err error
	if k.Variant, err = ParseVariant(parts[0]); err != nil {
		return KeySpec{}, err
	}
	if k.Version, err = ParseVersion(parts[1]); err != nil {
		return KeySpec{}, err
	}
	if k.Component, err = ParseComponent(parts[2]); err != nil {
		return KeySpec{}, err
	}
	if k.Precision, err = ParsePrecision(parts[3]); err != nil {
		return KeySpec{}, err
	}

	n, ok := strings.CutPrefix(parts[4], "length_")
	if !ok {
		return KeySpec{}, fmt.Errorf("artifact key %q: bad length segment %q", s, parts[4])
	}
	if k.MaxLength, err = strconv.Atoi(n); err != nil {
		return KeySpec{}, fmt.Errorf("artifact key %q: bad length: %w", s, err)
	}

	switch parts[5] {
	case "tuned":
		k.Tuned = true
	case "untuned":
	default:
		return KeySpec{}, fmt.Errorf("artifact key %q: bad tuning segment %q", s, parts[5])
	}

	if len(parts) == 7 {
		if parts[6] != "base" {
			return KeySpec{}, fmt.Errorf("artifact key %q: bad trailing segment %q", s, parts[6])
		}
		k.Base = true
	}
	return k, nil
}

type Buckets struct {
	Default  string            `yaml:"default" json:"default"`
	Tuned    string            `yaml:"tuned" json:"tuned"`
	Variants map[string]string `yaml:"variants" json:"variants,omitempty"`
}

type catalogFile struct {
	Buckets Buckets           `yaml:"buckets"`
	Models  map[string]string `yaml:"models"`
}

// Entry is one catalog row.
type Entry struct {
	Key       ArtifactKey `json:"key" yaml:"key"`
	ModelName string      `json:"model_name" yaml:"model_name"`
	Spec      KeySpec     `json:"-" yaml:"-"`
}

// Catalog maps artifact keys to precompiled model names. It is read-only
// after loading and safe for concurrent use.
type Catalog struct {
	buckets Buckets
	models  map[ArtifactKey]string
	entries []Entry
}

// LoadCatalog decodes and validates a YAML catalog.
func LoadCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, ErrCatalogInvalid.WithCause(fmt.Errorf("decode YAML: %w", err))
	}
	if f.Buckets.Default == "" {
		return nil, ErrCatalogInvalid.WithDetails("field", "buckets.default")
	}
	if f.Buckets.Tuned == "" {
		return nil, ErrCatalogInvalid.WithDetails("field", "buckets.tuned")
	}
	for v := range f.Buckets.Variants {
		if _, err := ParseVariant(v); err != nil {
			return nil, ErrCatalogInvalid.WithDetails("field", "buckets.variants."+v).WithCause(err)
		}
	}
	if len(f.Models) == 0 {
		return nil, ErrCatalogInvalid.WithDetails("field", "models")
	}

	c := &Catalog{
		buckets: f.Buckets,
		models:  make(map[ArtifactKey]string, len(f.Models)),
		entries: make([]Entry, 0, len(f.Models)),
	}
	for raw, name := range f.Models {
		spec, err := ParseKey(raw)
		if err != nil {
			return nil, ErrCatalogInvalid.WithDetails("key", raw).WithCause(err)
		}
		if strings.TrimSpace(name) == "" {
			return nil, ErrCatalogInvalid.WithDetails("key", raw).WithCause(fmt.Errorf("empty model name"))
		}
		// Keys are stored in canonical form so lookups never depend on
		// the spelling used in the file.
		key := spec.Key()
		c.models[key] = name
		c.entries = append(c.entries, Entry{Key: key, ModelName: name, Spec: spec})
	}
	sort.Slice(c.entries, func(i, j int) bool { return c.entries[i].Key < c.entries[j].Key })
	return c, nil
}

// LoadCatalogFile reads a catalog from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return LoadCatalog(data)
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return LoadCatalog(catalogdata.Models)
})

// DefaultCatalog returns the catalog embedded in the binary.
func DefaultCatalog() (*Catalog, error) {
	return defaultCatalog()
}

func (c *Catalog) Lookup(k KeySpec) (string, bool) {
	name, ok := c.models[k.Key()]
	return name, ok
}

// Bucket returns the storage location for variant. Tuned artifacts share
// one bucket regardless of variant.
func (c *Catalog) Bucket(v Variant, tuned bool) string {
	if tuned {
		return c.buckets.Tuned
	}
	if b, ok := c.buckets.Variants[string(v)]; ok && b != "" {
		return b
	}
	return c.buckets.Default
}

func (c *Catalog) Buckets() Buckets {
	return c.buckets
}

// Entries returns all rows sorted by key.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

// Diagnose names the first field of k, in key order, that no catalog entry
// agrees with. It is used to explain a failed Lookup.
func (c *Catalog) Diagnose(k KeySpec) string {
	checks := []struct {
		field string
		match func(e KeySpec) bool
	}{
		{"variant", func(e KeySpec) bool { return e.Variant == k.Variant }},
		{"version", func(e KeySpec) bool { return e.Version == k.Version }},
		{"component", func(e KeySpec) bool { return e.Component == k.Component }},
		{"precision", func(e KeySpec) bool { return e.Precision == k.Precision }},
		{"max_length", func(e KeySpec) bool { return e.MaxLength == k.MaxLength }},
		{"use_tuned", func(e KeySpec) bool { return e.Tuned == k.Tuned }},
		{"use_base_vae", func(e KeySpec) bool { return e.Base == k.Base }},
	}

	candidates := make([]KeySpec, 0, len(c.entries))
	for _, e := range c.entries {
		candidates = append(candidates, e.Spec)
	}
	for _, check := range checks {
		next := candidates[:0:0]
		for _, e := range candidates {
			if check.match(e) {
				next = append(next, e)
			}
		}
		if len(next) == 0 {
			return check.field
		}
		candidates = next
	}
	return ""
}
