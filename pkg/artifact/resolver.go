package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jguan/sdtank/pkg/device"
	"github.com/jguan/sdtank/pkg/infra/logger"
)

// TripleSource maps a device identifier to a compiler target triple.
// *device.Resolver satisfies it.
type TripleSource interface {
	TripleForDevice(ctx context.Context, identifier string) (string, error)
}

// tunedFamily is the only hardware family tuned artifacts are built for.
const tunedFamily = "rdna3"

// ResolvedArtifact is everything needed to fetch or import one compiled
// component.
type ResolvedArtifact struct {
	Component    Component   `json:"component" yaml:"component"`
	Bucket       string      `json:"bucket" yaml:"bucket"`
	Key          ArtifactKey `json:"key" yaml:"key"`
	ModelName    string      `json:"model_name" yaml:"model_name"`
	Flags        FlagSet     `json:"flags" yaml:"flags"`
	Tuned        bool        `json:"tuned" yaml:"tuned"`
	Import       bool        `json:"import" yaml:"import"`
	BaseVAE      bool        `json:"base_vae" yaml:"base_vae"`
	TargetTriple string      `json:"target_triple,omitempty" yaml:"target_triple,omitempty"`
}

// Resolver turns a TargetConfig into artifacts. It holds no per-call state
// and is safe for concurrent use.
type Resolver struct {
	catalog  *Catalog
	triples  TripleSource
	platform device.Platform
}

type Option func(*Resolver)

func WithCatalog(c *Catalog) Option {
	return func(r *Resolver) {
		r.catalog = c
	}
}

func WithTripleSource(s TripleSource) Option {
	return func(r *Resolver) {
		r.triples = s
	}
}

// WithPlatform overrides host detection, which decides whether the Apple
// workaround flag is emitted.
func WithPlatform(p device.Platform) Option {
	return func(r *Resolver) {
		r.platform = p
	}
}

// NewResolver uses the embedded catalog unless WithCatalog is given.
func NewResolver(opts ...Option) (*Resolver, error) {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	if r.catalog == nil {
		c, err := DefaultCatalog()
		if err != nil {
			return nil, err
		}
		r.catalog = c
	}
	if r.platform == "" {
		r.platform = device.DetectPlatform()
	}
	return r, nil
}

func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

func (r *Resolver) Platform() device.Platform {
	return r.platform
}

// Resolve resolves a single component of cfg.
func (r *Resolver) Resolve(ctx context.Context, cfg TargetConfig, comp Component) (ResolvedArtifact, error) {
	if _, err := ParseComponent(string(comp)); err != nil {
		return ResolvedArtifact{}, err
	}
	triple, err := r.targetTriple(ctx, cfg)
	if err != nil {
		return ResolvedArtifact{}, err
	}
	tuned := r.tunedAllowed(ctx, cfg, triple)
	return r.resolve(ctx, cfg, comp, triple, tuned)
}

// ResolveAll resolves clip, unet and vae in that order. The target triple
// is detected once and shared by all three.
func (r *Resolver) ResolveAll(ctx context.Context, cfg TargetConfig) ([]ResolvedArtifact, error) {
	triple, err := r.targetTriple(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tuned := r.tunedAllowed(ctx, cfg, triple)

	out := make([]ResolvedArtifact, 0, len(Components))
	for _, comp := range Components {
		a, err := r.resolve(ctx, cfg, comp, triple, tuned)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *Resolver) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(logger.SetComponent(ctx, "artifact"))
}

// targetTriple returns the caller's triple if one is pinned, otherwise asks
// the triple source. Unrecognized hardware yields an empty triple.
func (r *Resolver) targetTriple(ctx context.Context, cfg TargetConfig) (string, error) {
	if t, ok := cfg.TargetTripleOverride(); ok {
		r.log(ctx).Info("using target triple from command line args", "triple", t)
		return t, nil
	}
	if r.triples == nil {
		return "", ErrTripleSourceNotSet
	}

	t, err := r.triples.TripleForDevice(ctx, cfg.Device())
	if errors.Is(err, device.ErrUnrecognizedHardware) {
		r.log(ctx).Info("continuing without a target triple", "device", cfg.Device())
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return t, nil
}

func (r *Resolver) tunedAllowed(ctx context.Context, cfg TargetConfig, triple string) bool {
	if !cfg.UseTuned() {
		return false
	}
	reason := ""
	switch {
	case cfg.Precision() != PrecisionFP16:
		reason = fmt.Sprintf("tuned models are only available at fp16, not %s", cfg.Precision())
	case cfg.Variant() != VariantStableDiffusion:
		reason = fmt.Sprintf("tuned models are not available for %s", cfg.Variant())
	case device.TripleFamily(triple) != tunedFamily:
		reason = "tuned models are not available for this device"
	}
	if reason != "" {
		r.log(ctx).Info(reason+"; using untuned models", "triple", triple)
		return false
	}
	return true
}

func (r *Resolver) resolve(ctx context.Context, cfg TargetConfig, comp Component, triple string, tuned bool) (ResolvedArtifact, error) {
	spec := KeySpec{
		Variant:   cfg.Variant(),
		Version:   cfg.Version(),
		Component: comp,
		Precision: cfg.Precision(),
		MaxLength: cfg.MaxLength(),
		Tuned:     tuned,
	}

	switch comp {
	case ComponentCLIP:
		spec.Precision = PrecisionFP32
		spec.Tuned = false
	case ComponentVAE:
		spec.MaxLength = MaxLength77
		spec.Base = cfg.UseBaseVAE()
		if spec.Precision == PrecisionINT8 && spec.Variant == VariantStableDiffusion {
			spec.Precision = PrecisionFP16
		}
	}

	name, ok := r.catalog.Lookup(spec)
	if !ok && spec.Tuned {
		r.log(ctx).Info("no tuned model for component; using untuned", "component", comp)
		spec.Tuned = false
		name, ok = r.catalog.Lookup(spec)
	}
	if !ok {
		return ResolvedArtifact{}, r.missing(cfg, spec)
	}

	a := ResolvedArtifact{
		Component:    comp,
		Bucket:       r.catalog.Bucket(spec.Variant, spec.Tuned),
		Key:          spec.Key(),
		ModelName:    name,
		Flags:        r.flags(cfg, spec, triple),
		Tuned:        spec.Tuned,
		Import:       cfg.ImportMLIR() && !spec.Tuned,
		BaseVAE:      spec.Base,
		TargetTriple: triple,
	}
	r.log(ctx).Debug("resolved artifact", "component", comp, "key", a.Key, "model", a.ModelName)
	return a, nil
}

// missing builds the error for a key the catalog lacks, naming the user
// setting responsible.
func (r *Resolver) missing(cfg TargetConfig, spec KeySpec) error {
	field := r.catalog.Diagnose(spec)
	var value string
	switch field {
	case "variant":
		value = string(spec.Variant)
	case "version":
		value = string(spec.Version)
	case "component":
		value = string(spec.Component)
	case "precision":
		value = string(cfg.Precision())
	case "max_length":
		value = fmt.Sprintf("%d", cfg.MaxLength())
	case "use_tuned":
		value = fmt.Sprintf("%t", spec.Tuned)
	case "use_base_vae":
		value = fmt.Sprintf("%t", spec.Base)
	default:
		field, value = "key", string(spec.Key())
	}
	return unsupported(field, value).WithDetails("key", string(spec.Key()))
}

func (r *Resolver) flags(cfg TargetConfig, spec KeySpec, triple string) FlagSet {
	var fs FlagSet
	if triple != "" {
		fs.add(device.TargetTripleFlagPrefix + triple)
	}
	if r.platform.IsApple() {
		fs.addOnce(FlagFuseBindingDisabled)
	}

	switch {
	case spec.Component == ComponentCLIP:
		fs.add(FlagPaddingSize16, FlagEnablePadding)
	case spec.Tuned && spec.Component == ComponentUNet:
	case spec.Tuned && spec.Component == ComponentVAE:
		fs.add(FlagEnablePadding, FlagPaddingSize32, FlagConvImg2Col, FlagConvWinogradTransform)
	case spec.Precision == PrecisionFP32:
		fs.add(FlagConvNCHWToNHWC, FlagEnablePadding, FlagPaddingSize16)
	default:
		fs.add(FlagEnablePadding, FlagPaddingSize32, FlagConvImg2Col)
	}

	for _, f := range cfg.ExtraFlags() {
		if device.HasTargetTripleFlag([]string{f}) {
			continue
		}
		// The Apple workaround is unconditional; callers cannot repeat or undo it.
		if r.platform.IsApple() && FlagKey(f) == FlagKey(FlagFuseBindingDisabled) {
			continue
		}
		fs.add(f)
	}
	return fs
}
