// Package metal exposes the Apple GPU as the single device of the metal
// driver. On other hosts the driver reports itself unavailable.
package metal

import (
	"context"

	"github.com/jguan/sdtank/pkg/infra/hal"
)

type Provider struct {
	chipName func() (string, error)
}

func NewProvider() *Provider {
	return &Provider{chipName: chipName}
}

func (p *Provider) Driver() string {
	return hal.DriverMetal
}

func (p *Provider) Available(ctx context.Context) bool {
	_, err := p.chipName()
	return err == nil
}

func (p *Provider) Enumerate(ctx context.Context) ([]hal.DeviceDescriptor, error) {
	name, err := p.chipName()
	if err != nil {
		return nil, err
	}
	return []hal.DeviceDescriptor{{
		Driver: hal.DriverMetal,
		Path:   "0",
		Name:   name,
		ID:     "0",
		Vendor: hal.VendorApple,
	}}, nil
}
