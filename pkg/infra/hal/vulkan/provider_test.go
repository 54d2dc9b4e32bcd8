package vulkan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jguan/sdtank/pkg/infra/hal"
)

const sampleVulkanInfo = `{
	"VkPhysicalDevices": [
		{
			"deviceName": "AMD Radeon RX 7900 XTX (RADV NAVI31)",
			"deviceType": "VK_PHYSICAL_DEVICE_TYPE_DISCRETE_GPU",
			"deviceID": 29772,
			"vendorID": 4098,
			"deviceUUID": "00000000-0300-0000-0000-000000000000"
		},
		{
			"deviceName": "llvmpipe (LLVM 15.0.7, 256 bits)",
			"deviceType": "VK_PHYSICAL_DEVICE_TYPE_CPU",
			"deviceID": 0,
			"vendorID": 65541
		}
	]
}`

func TestParseVulkanInfo(t *testing.T) {
	devices, err := parseVulkanInfo([]byte(sampleVulkanInfo))
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, hal.DeviceDescriptor{
		Driver: hal.DriverVulkan,
		Path:   "00000000-0300-0000-0000-000000000000",
		Name:   "AMD Radeon RX 7900 XTX (RADV NAVI31)",
		ID:     "29772",
		Vendor: hal.VendorAMD,
	}, devices[0])
	assert.Equal(t, "1", devices[1].Path, "missing UUID falls back to index")
	assert.Equal(t, hal.VendorUnknown, devices[1].Vendor)
}

func TestParseVulkanInfo_Invalid(t *testing.T) {
	_, err := parseVulkanInfo([]byte("not json"))
	assert.ErrorIs(t, err, hal.ErrParseFailed)
}

func TestProvider_EnumerateFromVulkanInfo(t *testing.T) {
	pciCalled := false
	p := NewProvider(
		withRunner(func(ctx context.Context) ([]byte, error) { return []byte(sampleVulkanInfo), nil }),
		withPCILister(func() ([]hal.DeviceDescriptor, error) {
			pciCalled = true
			return nil, nil
		}),
	)

	devices, err := p.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Len(t, devices, 2)
	assert.False(t, pciCalled)
}

func TestProvider_EnumerateFallsBackToPCI(t *testing.T) {
	pci := []hal.DeviceDescriptor{{
		Driver: hal.DriverVulkan,
		Path:   "0000:03:00.0",
		Name:   "Advanced Micro Devices, Inc. [AMD/ATI] Navi 31 [Radeon RX 7900 XT/7900 XTX]",
	}}
	p := NewProvider(
		withRunner(func(ctx context.Context) ([]byte, error) { return nil, hal.ErrToolNotFound }),
		withPCILister(func() ([]hal.DeviceDescriptor, error) { return pci, nil }),
	)

	devices, err := p.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pci, devices)
}

func TestProvider_EnumerateBothFail(t *testing.T) {
	p := NewProvider(
		withRunner(func(ctx context.Context) ([]byte, error) { return nil, hal.ErrToolNotFound }),
		withPCILister(func() ([]hal.DeviceDescriptor, error) { return nil, errors.New("no /sys/bus/pci") }),
	)

	_, err := p.Enumerate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, hal.ErrCommandFailed)
	assert.ErrorIs(t, err, hal.ErrToolNotFound)
}

func TestProvider_WithoutPCIFallback(t *testing.T) {
	p := NewProvider(
		WithVulkanInfoPath("/nonexistent/vulkaninfo"),
		WithoutPCIFallback(),
	)

	assert.False(t, p.Available(context.Background()))
	_, err := p.Enumerate(context.Background())
	assert.ErrorIs(t, err, hal.ErrToolNotFound)
}

func TestProvider_Options(t *testing.T) {
	p := NewProvider(WithVulkanInfoPath("/usr/local/bin/vulkaninfo"), WithTimeout(2*time.Second))
	assert.Equal(t, "/usr/local/bin/vulkaninfo", p.path)
	assert.Equal(t, 2*time.Second, p.timeout)
	assert.Equal(t, hal.DriverVulkan, p.Driver())

	def := NewProvider(WithVulkanInfoPath(""), WithTimeout(0))
	assert.Equal(t, "vulkaninfo", def.path)
	assert.Equal(t, 10*time.Second, def.timeout)
}

func TestVendorFromID(t *testing.T) {
	assert.Equal(t, hal.VendorNVIDIA, vendorFromID(0x10de, ""))
	assert.Equal(t, hal.VendorAMD, vendorFromID(0x1002, ""))
	assert.Equal(t, hal.VendorIntel, vendorFromID(0x8086, ""))
	assert.Equal(t, hal.VendorApple, vendorFromID(0x106b, ""))
	assert.Equal(t, hal.VendorApple, vendorFromID(0, "Apple M1 Pro"))
}
