package e2e

import (
	"errors"
	"strings"
	"testing"

	"github.com/jguan/sdtank/pkg/artifact"
	"github.com/jguan/sdtank/pkg/device"
	"github.com/jguan/sdtank/pkg/errs"
)

const twoCards = `{
	"VkPhysicalDevices": [
		{"deviceName": "NVIDIA GeForce RTX 3090", "deviceID": 8708, "vendorID": 4318, "deviceUUID": "C0FFEE00-0000-0000-0000-000000000002"},
		{"deviceName": "AMD Radeon RX 7900 XTX (RADV NAVI31)", "deviceID": 29772, "vendorID": 4098, "deviceUUID": "00000000-0300-0000-0000-000000000000"}
	]
}`

const unknownCard = `{
	"VkPhysicalDevices": [
		{"deviceName": "Generic Display Adapter", "deviceID": 1, "vendorID": 1}
	]
}`

func TestResolveFlowE2E(t *testing.T) {
	env := SetupTestEnv(t, device.PlatformLinux, twoCards)

	t.Run("devices are ordered by path", func(t *testing.T) {
		path, err := env.Devices.ResolvePath(env.Ctx, "vulkan")
		if err != nil {
			t.Fatalf("ResolvePath: %v", err)
		}
		if path != "vulkan://00000000-0300-0000-0000-000000000000" {
			t.Errorf("path = %q", path)
		}
	})

	t.Run("tuned artifacts on rdna3", func(t *testing.T) {
		cfg := mustTarget(t, artifact.Params{
			Variant: "stablediffusion", Version: "v2.1base", Precision: "fp16",
			MaxLength: 77, Device: "vulkan", UseTuned: true,
		})
		arts, err := env.Artifacts.ResolveAll(env.Ctx, cfg)
		if err != nil {
			t.Fatalf("ResolveAll: %v", err)
		}
		if !arts[1].Tuned || arts[1].ModelName != "unet2base_8dec_fp16_tuned_v2" {
			t.Errorf("unet = %+v", arts[1])
		}
		if arts[0].Flags[0] != device.TargetTripleFlagPrefix+"rdna3-7900-linux" {
			t.Errorf("clip flags = %v", arts[0].Flags)
		}
	})

	t.Run("tuned request on nvidia is downgraded", func(t *testing.T) {
		cfg := mustTarget(t, artifact.Params{
			Variant: "stablediffusion", Version: "v2.1base", Precision: "fp16",
			MaxLength: 77, Device: "vulkan://1", UseTuned: true,
		})
		arts, err := env.Artifacts.ResolveAll(env.Ctx, cfg)
		if err != nil {
			t.Fatalf("ResolveAll: %v", err)
		}
		for _, a := range arts {
			if a.Tuned {
				t.Errorf("%s resolved tuned on %s", a.Component, a.TargetTriple)
			}
		}
	})

	t.Run("cpu device", func(t *testing.T) {
		cfg := mustTarget(t, artifact.Params{
			Variant: "stablediffusion", Version: "v1.4", Precision: "fp32",
			MaxLength: 77, Device: "local-task",
		})
		arts, err := env.Artifacts.ResolveAll(env.Ctx, cfg)
		if err != nil {
			t.Fatalf("ResolveAll: %v", err)
		}
		if arts[1].ModelName != "unet_1dec_fp32" {
			t.Errorf("unet = %q", arts[1].ModelName)
		}
	})

	t.Run("unknown device is fatal", func(t *testing.T) {
		cfg := mustTarget(t, artifact.Params{
			Variant: "stablediffusion", Version: "v1.4", Precision: "fp16",
			MaxLength: 77, Device: "vulkan://9",
		})
		_, err := env.Artifacts.ResolveAll(env.Ctx, cfg)
		if !errors.Is(err, device.ErrUnknownDevice) || !errs.IsFatal(err) {
			t.Errorf("err = %v, want fatal ErrUnknownDevice", err)
		}
	})
}

func TestUnrecognizedHardwareE2E(t *testing.T) {
	env := SetupTestEnv(t, device.PlatformMacOS, unknownCard)

	cfg := mustTarget(t, artifact.Params{
		Variant: "analogdiffusion", Version: "v1.4", Precision: "fp16",
		MaxLength: 77, Device: "vulkan",
	})
	arts, err := env.Artifacts.ResolveAll(env.Ctx, cfg)
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	for _, a := range arts {
		if a.TargetTriple != "" {
			t.Errorf("%s: triple = %q, want none", a.Component, a.TargetTriple)
		}
		joined := strings.Join(a.Flags, " ")
		if strings.Contains(joined, device.TargetTripleFlagPrefix) {
			t.Errorf("%s: unexpected triple flag in %q", a.Component, joined)
		}
		if a.Flags.Count(artifact.FlagFuseBindingDisabled) != 1 {
			t.Errorf("%s: want the fusion flag exactly once, got %v", a.Component, a.Flags)
		}
	}
}
