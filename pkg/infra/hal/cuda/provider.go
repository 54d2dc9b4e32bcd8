package cuda

import (
	"context"
	"strconv"
	"time"

	"github.com/jguan/sdtank/pkg/infra/hal"
)

type smiInterface interface {
	Available(ctx context.Context) bool
	Query(ctx context.Context) (*smiOutput, error)
}

// Provider enumerates CUDA devices through nvidia-smi. Device paths are the
// GPU UUIDs, which is how the CUDA runtime names its devices.
type Provider struct {
	smi smiInterface
}

type Option func(*Provider)

func WithSMIPath(path string, timeout time.Duration) Option {
	return func(p *Provider) {
		p.smi = NewSMI(path, timeout)
	}
}

func withSMI(smi smiInterface) Option {
	return func(p *Provider) {
		p.smi = smi
	}
}

func NewProvider(opts ...Option) *Provider {
	p := &Provider{smi: NewSMI("", 0)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Driver() string {
	return hal.DriverCUDA
}

func (p *Provider) Available(ctx context.Context) bool {
	return p.smi.Available(ctx)
}

func (p *Provider) Enumerate(ctx context.Context) ([]hal.DeviceDescriptor, error) {
	output, err := p.smi.Query(ctx)
	if err != nil {
		return nil, err
	}

	devices := make([]hal.DeviceDescriptor, 0, len(output.GPUs))
	for i, gpu := range output.GPUs {
		id := gpu.MinorNumber
		if _, err := strconv.Atoi(id); err != nil {
			id = strconv.Itoa(i)
		}
		path := gpu.UUID
		if path == "" || path == "N/A" {
			path = gpu.ID
		}
		devices = append(devices, hal.DeviceDescriptor{
			Driver: hal.DriverCUDA,
			Path:   path,
			Name:   gpu.ProductName,
			ID:     id,
			Vendor: hal.VendorNVIDIA,
		})
	}
	return devices, nil
}
