package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	assert.Greater(t, c.Len(), 0)

	again, err := DefaultCatalog()
	require.NoError(t, err)
	assert.Same(t, c, again)

	entries := c.Entries()
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Key, entries[i].Key)
	}
	for _, e := range entries {
		assert.NotEmpty(t, e.ModelName, e.Key)
		assert.Equal(t, e.Key, e.Spec.Key())
	}
}

func TestKeyRoundTrip(t *testing.T) {
	keys := []string{
		"stablediffusion/v1.4/clip/fp32/length_77/untuned",
		"stablediffusion/v2.1base/unet/fp16/length_64/tuned",
		"anythingv3/v1.4/vae/fp16/length_77/untuned/base",
	}
	for _, k := range keys {
		spec, err := ParseKey(k)
		require.NoError(t, err, k)
		assert.Equal(t, ArtifactKey(k), spec.Key())
	}

	spec, err := ParseKey("stablediffusion/v2.1base/unet/fp16/length_64/tuned")
	require.NoError(t, err)
	assert.Equal(t, KeySpec{
		Variant:   VariantStableDiffusion,
		Version:   VersionV21Base,
		Component: ComponentUNet,
		Precision: PrecisionFP16,
		MaxLength: 64,
		Tuned:     true,
	}, spec)
}

func TestParseKey_Invalid(t *testing.T) {
	bad := []string{
		"",
		"stablediffusion/v1.4/clip",
		"waifu/v1.4/clip/fp32/length_77/untuned",
		"stablediffusion/v1.4/clip/fp32/77/untuned",
		"stablediffusion/v1.4/clip/fp32/length_x/untuned",
		"stablediffusion/v1.4/clip/fp32/length_77/maybe",
		"stablediffusion/v1.4/vae/fp16/length_77/untuned/other",
	}
	for _, k := range bad {
		_, err := ParseKey(k)
		assert.Error(t, err, k)
	}
}

func TestLoadCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not yaml", "buckets: [unclosed"},
		{"no default bucket", "buckets: {tuned: t}\nmodels: {stablediffusion/v1.4/clip/fp32/length_77/untuned: c}"},
		{"no tuned bucket", "buckets: {default: d}\nmodels: {stablediffusion/v1.4/clip/fp32/length_77/untuned: c}"},
		{"unknown variant bucket", "buckets: {default: d, tuned: t, variants: {waifu: w}}\nmodels: {stablediffusion/v1.4/clip/fp32/length_77/untuned: c}"},
		{"no models", "buckets: {default: d, tuned: t}"},
		{"bad key", "buckets: {default: d, tuned: t}\nmodels: {not-a-key: c}"},
		{"empty name", "buckets: {default: d, tuned: t}\nmodels: {stablediffusion/v1.4/clip/fp32/length_77/untuned: ''}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCatalog([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCatalogInvalid)
		})
	}
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	data := `
buckets:
  default: gs://bucket/default
  tuned: gs://bucket/tuned
models:
  StableDiffusion/V1.4/CLIP/FP32/length_77/untuned: my_clip
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := LoadCatalogFile(path)
	require.NoError(t, err)

	name, ok := c.Lookup(KeySpec{
		Variant:   VariantStableDiffusion,
		Version:   VersionV14,
		Component: ComponentCLIP,
		Precision: PrecisionFP32,
		MaxLength: 77,
	})
	assert.True(t, ok, "keys are canonicalized on load")
	assert.Equal(t, "my_clip", name)

	_, err = LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCatalogBucket(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	assert.Equal(t, "gs://shark_tank/stable_diffusion", c.Bucket(VariantStableDiffusion, false))
	assert.Equal(t, "gs://shark_tank/sd_anythingv3", c.Bucket(VariantAnythingV3, false))
	assert.Equal(t, "gs://shark_tank/sd_analog_diffusion", c.Bucket(VariantAnalogDiffusion, false))
	assert.Equal(t, "gs://shark_tank/vivian", c.Bucket(VariantStableDiffusion, true))
}

func TestCatalogDiagnose(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	base := KeySpec{
		Variant:   VariantStableDiffusion,
		Version:   VersionV14,
		Component: ComponentUNet,
		Precision: PrecisionFP16,
		MaxLength: 77,
	}
	assert.Equal(t, "", c.Diagnose(base))

	tests := []struct {
		field  string
		modify func(*KeySpec)
	}{
		{"version", func(k *KeySpec) { k.Variant = VariantAnythingV3; k.Version = VersionV21 }},
		{"precision", func(k *KeySpec) { k.Precision = PrecisionINT8 }},
		{"precision", func(k *KeySpec) { k.Version = VersionV21; k.Precision = PrecisionFP32 }},
		{"max_length", func(k *KeySpec) { k.MaxLength = 64 }},
		{"use_tuned", func(k *KeySpec) { k.Precision = PrecisionFP32; k.Tuned = true }},
		{"use_base_vae", func(k *KeySpec) { k.Component = ComponentVAE; k.Precision = PrecisionFP32; k.Base = true }},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			k := base
			tt.modify(&k)
			_, ok := c.Lookup(k)
			require.False(t, ok)
			assert.Equal(t, tt.field, c.Diagnose(k))
		})
	}
}
