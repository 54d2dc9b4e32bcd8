package e2e

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jguan/sdtank/pkg/artifact"
	"github.com/jguan/sdtank/pkg/device"
	"github.com/jguan/sdtank/pkg/infra/hal"
	"github.com/jguan/sdtank/pkg/infra/hal/cpu"
	"github.com/jguan/sdtank/pkg/infra/hal/vulkan"
	"github.com/jguan/sdtank/pkg/infra/logger"
)

type TestEnv struct {
	Devices   *device.Resolver
	Artifacts *artifact.Resolver
	Ctx       context.Context
}

// SetupTestEnv wires the real Vulkan provider to a fake vulkaninfo that
// prints vulkanInfoJSON.
func SetupTestEnv(t *testing.T, platform device.Platform, vulkanInfoJSON string) *TestEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake vulkaninfo is a shell script")
	}

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "vulkaninfo.json")
	if err := os.WriteFile(jsonPath, []byte(vulkanInfoJSON), 0o644); err != nil {
		t.Fatalf("write vulkaninfo output: %v", err)
	}
	script := filepath.Join(dir, "vulkaninfo")
	if err := os.WriteFile(script, []byte("#!/bin/sh\ncat '"+jsonPath+"'\n"), 0o755); err != nil {
		t.Fatalf("write fake vulkaninfo: %v", err)
	}

	drivers := hal.NewRegistry(
		vulkan.NewProvider(vulkan.WithVulkanInfoPath(script), vulkan.WithoutPCIFallback()),
		cpu.NewProvider(hal.DriverLocalTask),
	)
	devices := device.NewResolver(drivers, device.WithPlatform(platform))

	artifacts, err := artifact.NewResolver(
		artifact.WithTripleSource(devices),
		artifact.WithPlatform(platform),
	)
	if err != nil {
		t.Fatalf("create artifact resolver: %v", err)
	}

	ctx, _ := logger.StartSession(context.Background())
	return &TestEnv{
		Devices:   devices,
		Artifacts: artifacts,
		Ctx:       ctx,
	}
}

func mustTarget(t *testing.T, p artifact.Params) artifact.TargetConfig {
	t.Helper()
	cfg, err := artifact.NewTargetConfig(p)
	if err != nil {
		t.Fatalf("NewTargetConfig(%+v): %v", p, err)
	}
	return cfg
}
