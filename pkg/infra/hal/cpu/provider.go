// Package cpu exposes the host processor as the single device of the
// local-task and local-sync drivers.
package cpu

import (
	"context"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"

	"github.com/jguan/sdtank/pkg/infra/hal"
)

type Provider struct {
	driver string
	brand  func() (name, vendor string)
}

// NewProvider returns an enumerator for driver, which must be one of the
// local drivers.
func NewProvider(driver string) *Provider {
	return &Provider{driver: driver, brand: hostBrand}
}

func (p *Provider) Driver() string {
	return p.driver
}

func (p *Provider) Available(ctx context.Context) bool {
	return true
}

func (p *Provider) Enumerate(ctx context.Context) ([]hal.DeviceDescriptor, error) {
	name, vendor := p.brand()
	return []hal.DeviceDescriptor{{
		Driver: p.driver,
		Path:   "0",
		Name:   name,
		ID:     "0",
		Vendor: vendor,
	}}, nil
}

func hostBrand() (string, string) {
	name := strings.TrimSpace(cpuid.CPU.BrandName)
	if name == "" {
		name = runtime.GOARCH + " CPU"
	}
	vendor := cpuid.CPU.VendorString
	if vendor == "" {
		vendor = hal.VendorFromName(name)
	}
	return name, vendor
}
