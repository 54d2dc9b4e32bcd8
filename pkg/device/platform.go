package device

import (
	"runtime"
	"strings"

	"github.com/jguan/sdtank/pkg/infra/logger"
)

// Platform is the host operating system as it appears in target triples.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformMacOS   Platform = "macos"
	PlatformWindows Platform = "windows"
)

// IsApple reports whether the platform runs Vulkan through MoltenVK.
func (p Platform) IsApple() bool {
	return p == PlatformMacOS
}

func (p Platform) String() string {
	return string(p)
}

// PlatformFromGOOS maps a GOOS value to a Platform. ok is false for hosts
// that have no target triples of their own.
func PlatformFromGOOS(goos string) (p Platform, ok bool) {
	switch goos {
	case "linux", "android":
		return PlatformLinux, true
	case "darwin":
		return PlatformMacOS, true
	case "windows":
		return PlatformWindows, true
	default:
		return PlatformLinux, false
	}
}

// DetectPlatform probes the running host, defaulting to linux.
func DetectPlatform() Platform {
	p, ok := PlatformFromGOOS(runtime.GOOS)
	if !ok {
		logger.Warn("cannot detect OS type, defaulting to linux", "goos", runtime.GOOS)
	}
	return p
}

// ParsePlatform accepts a platform name or a GOOS value. The empty string
// means "probe the host".
func ParsePlatform(s string) (Platform, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch Platform(s) {
	case "":
		return DetectPlatform(), nil
	case PlatformLinux, PlatformMacOS, PlatformWindows:
		return Platform(s), nil
	}
	if p, ok := PlatformFromGOOS(s); ok {
		return p, nil
	}
	return "", ErrInvalidPlatform.WithDetails("platform", s)
}
