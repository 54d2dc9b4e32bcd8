package artifact

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Variant is a model family or fine-tuned checkpoint.
type Variant string

const (
	VariantStableDiffusion Variant = "stablediffusion"
	VariantAnythingV3      Variant = "anythingv3"
	VariantAnalogDiffusion Variant = "analogdiffusion"
)

// Variants lists every known variant in display order.
var Variants = []Variant{VariantStableDiffusion, VariantAnythingV3, VariantAnalogDiffusion}

// Version is a checkpoint release of a variant.
type Version string

const (
	VersionV14     Version = "v1.4"
	VersionV21     Version = "v2.1"
	VersionV21Base Version = "v2.1base"
)

var Versions = []Version{VersionV14, VersionV21, VersionV21Base}

// Precision is the numeric width a compiled artifact runs at.
type Precision string

const (
	PrecisionFP32 Precision = "fp32"
	PrecisionFP16 Precision = "fp16"
	PrecisionINT8 Precision = "int8"
)

var Precisions = []Precision{PrecisionFP32, PrecisionFP16, PrecisionINT8}

// Component is one compiled piece of the diffusion pipeline.
type Component string

const (
	// ComponentCLIP is the text encoder.
	ComponentCLIP Component = "clip"
	// ComponentUNet is the denoising network.
	ComponentUNet Component = "unet"
	// ComponentVAE is the latent decoder.
	ComponentVAE Component = "vae"
)

// Components is the order ResolveAll resolves in.
var Components = []Component{ComponentCLIP, ComponentUNet, ComponentVAE}

// Supported sequence lengths for the text encoder and denoiser.
const (
	MaxLength64 = 64
	MaxLength77 = 77
)

func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Variants {
		if v == known {
			return v, nil
		}
	}
	return "", unsupported("variant", s)
}

func ParseVersion(s string) (Version, error) {
	v := Version(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Versions {
		if v == known {
			return v, nil
		}
	}
	return "", unsupported("version", s)
}

func ParsePrecision(s string) (Precision, error) {
	p := Precision(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Precisions {
		if p == known {
			return p, nil
		}
	}
	return "", unsupported("precision", s)
}

func ParseComponent(s string) (Component, error) {
	c := Component(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Components {
		if c == known {
			return c, nil
		}
	}
	return "", unsupported("component", s)
}

func ValidateMaxLength(n int) error {
	if n != MaxLength64 && n != MaxLength77 {
		return unsupported("max_length", fmt.Sprintf("%d", n))
	}
	return nil
}

// The enumerations double as command-line flag values.
var (
	_ pflag.Value = (*Variant)(nil)
	_ pflag.Value = (*Version)(nil)
	_ pflag.Value = (*Precision)(nil)
	_ pflag.Value = (*Component)(nil)
)

func (v Variant) String() string { return string(v) }
func (v *Variant) Type() string  { return "variant" }
func (v *Variant) Set(s string) error {
	parsed, err := ParseVariant(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Version) String() string { return string(v) }
func (v *Version) Type() string  { return "version" }
func (v *Version) Set(s string) error {
	parsed, err := ParseVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (p Precision) String() string { return string(p) }
func (p *Precision) Type() string  { return "precision" }
func (p *Precision) Set(s string) error {
	parsed, err := ParsePrecision(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (c Component) String() string { return string(c) }
func (c *Component) Type() string  { return "component" }
func (c *Component) Set(s string) error {
	parsed, err := ParseComponent(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
