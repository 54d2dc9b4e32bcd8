package hal

const (
	VendorNVIDIA  = "NVIDIA"
	VendorAMD     = "AMD"
	VendorIntel   = "Intel"
	VendorApple   = "Apple"
	VendorUnknown = "Unknown"
)

// Driver names understood by the compiler runtime.
const (
	DriverVulkan    = "vulkan"
	DriverCUDA      = "cuda"
	DriverLocalTask = "local-task"
	DriverLocalSync = "local-sync"
	DriverMetal     = "metal"
)

// DeviceDescriptor identifies one compute device exposed by a driver.
type DeviceDescriptor struct {
	Driver string `json:"driver" yaml:"driver"`
	Path   string `json:"path" yaml:"path"`
	Name   string `json:"name" yaml:"name"`
	ID     string `json:"id" yaml:"id"`
	Vendor string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
}

// URI returns the fully qualified device identifier, driver://path.
func (d DeviceDescriptor) URI() string {
	return d.Driver + "://" + d.Path
}

// VendorFromName guesses a vendor from a marketing name.
func VendorFromName(name string) string {
	switch {
	case containsAny(name, "NVIDIA", "GeForce", "RTX", "Quadro", "Tesla", "A100", "H100"):
		return VendorNVIDIA
	case containsAny(name, "AMD", "Radeon", "ATI"):
		return VendorAMD
	case containsAny(name, "Intel"):
		return VendorIntel
	case containsAny(name, "Apple"):
		return VendorApple
	default:
		return VendorUnknown
	}
}
