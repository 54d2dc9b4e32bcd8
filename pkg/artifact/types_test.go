package artifact

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jguan/sdtank/pkg/errs"
)

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	e, ok := errs.As(err)
	require.True(t, ok, "expected *errs.Error, got %v", err)
	return e.Field()
}

func TestParseEnums(t *testing.T) {
	v, err := ParseVariant(" StableDiffusion ")
	require.NoError(t, err)
	assert.Equal(t, VariantStableDiffusion, v)

	ver, err := ParseVersion("v2.1base")
	require.NoError(t, err)
	assert.Equal(t, VersionV21Base, ver)

	p, err := ParsePrecision("FP16")
	require.NoError(t, err)
	assert.Equal(t, PrecisionFP16, p)

	c, err := ParseComponent("vae")
	require.NoError(t, err)
	assert.Equal(t, ComponentVAE, c)

	tests := []struct {
		field string
		parse func() error
	}{
		{"variant", func() error { _, err := ParseVariant("waifu"); return err }},
		{"version", func() error { _, err := ParseVersion("v3"); return err }},
		{"precision", func() error { _, err := ParsePrecision("bf16"); return err }},
		{"component", func() error { _, err := ParseComponent("controlnet"); return err }},
		{"max_length", func() error { return ValidateMaxLength(128) }},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			err := tt.parse()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
			assert.Equal(t, tt.field, fieldOf(t, err))
		})
	}
}

func TestEnumsAsFlags(t *testing.T) {
	variant := VariantStableDiffusion
	precision := PrecisionFP16

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Var(&variant, "variant", "")
	fs.Var(&precision, "precision", "")

	require.NoError(t, fs.Parse([]string{"--variant", "anythingv3", "--precision=fp32"}))
	assert.Equal(t, VariantAnythingV3, variant)
	assert.Equal(t, PrecisionFP32, precision)
	assert.Equal(t, "variant", fs.Lookup("variant").Value.Type())

	err := fs.Parse([]string{"--precision", "fp64"})
	assert.Error(t, err)
	assert.Equal(t, PrecisionFP32, precision, "failed Set leaves value untouched")
}

func validParams() Params {
	return Params{
		Variant:   "stablediffusion",
		Version:   "v2.1base",
		Precision: "fp16",
		MaxLength: 64,
		Device:    "vulkan",
	}
}

func TestNewTargetConfig(t *testing.T) {
	p := validParams()
	p.ExtraFlags = []string{" --foo ", "", "--bar=1"}
	p.UseBaseVAE = true

	cfg, err := NewTargetConfig(p)
	require.NoError(t, err)
	assert.Equal(t, VariantStableDiffusion, cfg.Variant())
	assert.Equal(t, VersionV21Base, cfg.Version())
	assert.Equal(t, PrecisionFP16, cfg.Precision())
	assert.Equal(t, 64, cfg.MaxLength())
	assert.Equal(t, "vulkan", cfg.Device())
	assert.True(t, cfg.UseBaseVAE())
	assert.Equal(t, []string{"--foo", "--bar=1"}, cfg.ExtraFlags())
	assert.Equal(t, "stablediffusion/v2.1base/fp16/length_64@vulkan", cfg.String())

	extra := cfg.ExtraFlags()
	extra[0] = "mutated"
	assert.Equal(t, "--foo", cfg.ExtraFlags()[0])
}

func TestNewTargetConfig_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
		field  string
	}{
		{"unknown variant", func(p *Params) { p.Variant = "waifu" }, "variant"},
		{"unknown version", func(p *Params) { p.Version = "v9" }, "version"},
		{"unknown precision", func(p *Params) { p.Precision = "fp8" }, "precision"},
		{"bad length", func(p *Params) { p.MaxLength = 100 }, "max_length"},
		{"no device", func(p *Params) { p.Device = "  " }, "device"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.modify(&p)
			_, err := NewTargetConfig(p)
			require.Error(t, err)
			assert.Equal(t, errs.CodeUnsupportedConfiguration, errs.CodeOf(err))
			assert.Equal(t, tt.field, fieldOf(t, err))
		})
	}
}

func TestTargetTripleOverride(t *testing.T) {
	p := validParams()
	cfg, err := NewTargetConfig(p)
	require.NoError(t, err)
	_, ok := cfg.TargetTripleOverride()
	assert.False(t, ok)

	p.ExtraFlags = []string{"-iree-vulkan-target-triple=rdna2-unknown-linux"}
	cfg, err = NewTargetConfig(p)
	require.NoError(t, err)
	triple, ok := cfg.TargetTripleOverride()
	assert.True(t, ok)
	assert.Equal(t, "rdna2-unknown-linux", triple)

	p.TargetTriple = "rdna3-7900-linux"
	cfg, err = NewTargetConfig(p)
	require.NoError(t, err)
	triple, ok = cfg.TargetTripleOverride()
	assert.True(t, ok)
	assert.Equal(t, "rdna3-7900-linux", triple)
}

func TestFlagSet(t *testing.T) {
	fs := FlagSet{FlagEnablePadding, FlagPaddingSize32, FlagPaddingSize16}
	assert.True(t, fs.Contains(FlagEnablePadding))
	assert.Equal(t, 1, fs.Count(FlagPaddingSize16))
	assert.True(t, fs.HasKey("iree-flow-linalg-ops-padding-size"))

	v, ok := fs.Value("iree-flow-linalg-ops-padding-size")
	assert.True(t, ok)
	assert.Equal(t, "16", v)

	fs.addOnce(FlagEnablePadding)
	assert.Equal(t, 1, fs.Count(FlagEnablePadding))
	assert.Equal(t, "iree-stream-fuse-binding", FlagKey(FlagFuseBindingDisabled))
}
