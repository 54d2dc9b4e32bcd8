package artifact

import (
	"fmt"
	"strings"

	"github.com/jguan/sdtank/pkg/device"
)

// Params is the loosely typed input a TargetConfig is built from, as it
// arrives from a config file or command line.
type Params struct {
	Variant      string
	Version      string
	Precision    string
	MaxLength    int
	Device       string
	UseTuned     bool
	UseBaseVAE   bool
	ImportMLIR   bool
	TargetTriple string
	ExtraFlags   []string
}

// TargetConfig is the validated, immutable description of what to resolve.
// Build it with NewTargetConfig; the zero value is not usable.
type TargetConfig struct {
	variant      Variant
	version      Version
	precision    Precision
	maxLength    int
	device       string
	useTuned     bool
	useBaseVAE   bool
	importMLIR   bool
	targetTriple string
	extraFlags   []string
}

// NewTargetConfig parses p into closed enumerations. Unknown values fail
// here with ErrUnsupportedConfiguration naming the field.
func NewTargetConfig(p Params) (TargetConfig, error) {
	variant, err := ParseVariant(p.Variant)
	if err != nil {
		return TargetConfig{}, err
	}
	version, err := ParseVersion(p.Version)
	if err != nil {
		return TargetConfig{}, err
	}
	precision, err := ParsePrecision(p.Precision)
	if err != nil {
		return TargetConfig{}, err
	}
	if err := ValidateMaxLength(p.MaxLength); err != nil {
		return TargetConfig{}, err
	}
	device := strings.TrimSpace(p.Device)
	if device == "" {
		return TargetConfig{}, unsupported("device", p.Device)
	}

	extra := make([]string, 0, len(p.ExtraFlags))
	for _, f := range p.ExtraFlags {
		if f = strings.TrimSpace(f); f != "" {
			extra = append(extra, f)
		}
	}

	return TargetConfig{
		variant:      variant,
		version:      version,
		precision:    precision,
		maxLength:    p.MaxLength,
		device:       device,
		useTuned:     p.UseTuned,
		useBaseVAE:   p.UseBaseVAE,
		importMLIR:   p.ImportMLIR,
		targetTriple: strings.TrimSpace(p.TargetTriple),
		extraFlags:   extra,
	}, nil
}

func (c TargetConfig) Variant() Variant     { return c.variant }
func (c TargetConfig) Version() Version     { return c.version }
func (c TargetConfig) Precision() Precision { return c.precision }
func (c TargetConfig) MaxLength() int       { return c.maxLength }
func (c TargetConfig) Device() string       { return c.device }
func (c TargetConfig) UseTuned() bool       { return c.useTuned }
func (c TargetConfig) UseBaseVAE() bool     { return c.useBaseVAE }
func (c TargetConfig) ImportMLIR() bool     { return c.importMLIR }

// ExtraFlags returns a copy of the caller-supplied compiler flags.
func (c TargetConfig) ExtraFlags() []string {
	out := make([]string, len(c.extraFlags))
	copy(out, c.extraFlags)
	return out
}

// TargetTripleOverride returns the caller-supplied triple, either set
// directly or carried in the extra flags, and whether one was present.
// A directly set triple wins over one found in the flags.
func (c TargetConfig) TargetTripleOverride() (string, bool) {
	if c.targetTriple != "" {
		return c.targetTriple, true
	}
	return device.TripleFromFlags(c.extraFlags)
}

func (c TargetConfig) String() string {
	return fmt.Sprintf("%s/%s/%s/length_%d@%s", c.variant, c.version, c.precision, c.maxLength, c.device)
}
