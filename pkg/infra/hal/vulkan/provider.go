// Package vulkan enumerates Vulkan physical devices. It asks vulkaninfo
// first and falls back to the PCI bus when the Vulkan SDK tools are absent.
package vulkan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/jaypipes/ghw"

	"github.com/jguan/sdtank/pkg/infra/hal"
	"github.com/jguan/sdtank/pkg/infra/logger"
)

const defaultVulkanInfoPath = "vulkaninfo"

type physicalDevice struct {
	DeviceName string `json:"deviceName"`
	DeviceType string `json:"deviceType"`
	DeviceID   uint32 `json:"deviceID"`
	VendorID   uint32 `json:"vendorID"`
	DeviceUUID string `json:"deviceUUID"`
}

type vulkanInfo struct {
	VkPhysicalDevices []physicalDevice `json:"VkPhysicalDevices"`
}

type runner func(ctx context.Context) ([]byte, error)

type pciLister func() ([]hal.DeviceDescriptor, error)

type Provider struct {
	path    string
	timeout time.Duration
	run     runner
	pci     pciLister
}

type Option func(*Provider)

func WithVulkanInfoPath(path string) Option {
	return func(p *Provider) {
		if path != "" {
			p.path = path
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithoutPCIFallback disables the PCI bus fallback.
func WithoutPCIFallback() Option {
	return func(p *Provider) {
		p.pci = nil
	}
}

func withRunner(r runner) Option {
	return func(p *Provider) {
		p.run = r
	}
}

func withPCILister(l pciLister) Option {
	return func(p *Provider) {
		p.pci = l
	}
}

func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		path:    defaultVulkanInfoPath,
		timeout: 10 * time.Second,
		pci:     listPCIGraphicsCards,
	}
	p.run = p.runVulkanInfo
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Driver() string {
	return hal.DriverVulkan
}

func (p *Provider) Available(ctx context.Context) bool {
	if _, err := exec.LookPath(p.path); err == nil {
		return true
	}
	return p.pci != nil
}

func (p *Provider) Enumerate(ctx context.Context) ([]hal.DeviceDescriptor, error) {
	out, err := p.run(ctx)
	if err == nil {
		return parseVulkanInfo(out)
	}
	if p.pci == nil {
		return nil, err
	}

	logger.WithContext(ctx).Debug("vulkaninfo unavailable, listing PCI graphics cards", "error", err)
	devices, pciErr := p.pci()
	if pciErr != nil {
		return nil, hal.ErrCommandFailed.WithCause(errors.Join(err, pciErr))
	}
	return devices, nil
}

func (p *Provider) runVulkanInfo(ctx context.Context) ([]byte, error) {
	if _, err := exec.LookPath(p.path); err != nil {
		return nil, hal.ErrToolNotFound.WithCause(err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.path, "--json")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, hal.ErrCommandFailed.WithCause(
			fmt.Errorf("vulkaninfo: %w: %s", err, strings.TrimSpace(stderr.String())))
	}
	return stdout.Bytes(), nil
}

func parseVulkanInfo(data []byte) ([]hal.DeviceDescriptor, error) {
	var info vulkanInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, hal.ErrParseFailed.WithCause(fmt.Errorf("parse vulkaninfo output: %w", err))
	}

	devices := make([]hal.DeviceDescriptor, 0, len(info.VkPhysicalDevices))
	for i, d := range info.VkPhysicalDevices {
		path := strings.ToLower(strings.TrimSpace(d.DeviceUUID))
		if path == "" {
			path = strconv.Itoa(i)
		}
		devices = append(devices, hal.DeviceDescriptor{
			Driver: hal.DriverVulkan,
			Path:   path,
			Name:   d.DeviceName,
			ID:     strconv.FormatUint(uint64(d.DeviceID), 10),
			Vendor: vendorFromID(d.VendorID, d.DeviceName),
		})
	}
	return devices, nil
}

func vendorFromID(id uint32, name string) string {
	switch id {
	case 0x10de:
		return hal.VendorNVIDIA
	case 0x1002:
		return hal.VendorAMD
	case 0x8086:
		return hal.VendorIntel
	case 0x106b:
		return hal.VendorApple
	default:
		return hal.VendorFromName(name)
	}
}

// listPCIGraphicsCards reports display controllers from the PCI database.
// Names are "<vendor> <product>" so that vendor substrings stay matchable,
// e.g. "Advanced Micro Devices, Inc. [AMD/ATI] Navi 31 [Radeon RX 7900 XT/7900 XTX]".
func listPCIGraphicsCards() ([]hal.DeviceDescriptor, error) {
	info, err := ghw.GPU()
	if err != nil {
		return nil, fmt.Errorf("read PCI graphics cards: %w", err)
	}

	devices := make([]hal.DeviceDescriptor, 0, len(info.GraphicsCards))
	for _, card := range info.GraphicsCards {
		if card == nil {
			continue
		}
		var vendor, product, productID string
		if card.DeviceInfo != nil {
			if card.DeviceInfo.Vendor != nil {
				vendor = card.DeviceInfo.Vendor.Name
			}
			if card.DeviceInfo.Product != nil {
				product = card.DeviceInfo.Product.Name
				productID = card.DeviceInfo.Product.ID
			}
		}
		name := strings.TrimSpace(vendor + " " + product)
		devices = append(devices, hal.DeviceDescriptor{
			Driver: hal.DriverVulkan,
			Path:   card.Address,
			Name:   name,
			ID:     productID,
			Vendor: hal.VendorFromName(name),
		})
	}
	return devices, nil
}
