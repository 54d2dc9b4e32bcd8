// Package device turns user-facing device identifiers into canonical device
// paths and picks a compiler target triple from a device's name.
package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jguan/sdtank/pkg/infra/hal"
	"github.com/jguan/sdtank/pkg/infra/logger"
)

// TargetTripleFlagPrefix is the compiler flag that pins the Vulkan target.
const TargetTripleFlagPrefix = "-iree-vulkan-target-triple="

const uriSeparator = "://"

// Key selects which descriptor field a device map yields.
type Key string

const (
	KeyPath Key = "path"
	KeyName Key = "name"
	KeyID   Key = "id"
)

// Resolver resolves device identifiers of the forms "driver",
// "driver://<index>" and "driver://<path>". Device lists are enumerated once
// per driver and reused for the lifetime of the Resolver.
type Resolver struct {
	drivers  *hal.Registry
	platform Platform
	rules    []TripleRule

	mu      sync.Mutex
	devices map[string][]hal.DeviceDescriptor
}

type Option func(*Resolver)

func WithPlatform(p Platform) Option {
	return func(r *Resolver) {
		r.platform = p
	}
}

func WithRules(rules []TripleRule) Option {
	return func(r *Resolver) {
		r.rules = rules
	}
}

func NewResolver(drivers *hal.Registry, opts ...Option) *Resolver {
	r := &Resolver{
		drivers: drivers,
		rules:   DefaultRules,
		devices: make(map[string][]hal.DeviceDescriptor),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.platform == "" {
		r.platform = DetectPlatform()
	}
	return r
}

func (r *Resolver) Platform() Platform {
	return r.platform
}

// ListDevices returns the devices of driver sorted by path.
func (r *Resolver) ListDevices(ctx context.Context, driver string) ([]hal.DeviceDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.devices[driver]; ok {
		return cloneDevices(cached), nil
	}

	if r.drivers == nil {
		return nil, ErrDriverUnavailable.WithDetails("driver", driver)
	}
	e, err := r.drivers.Lookup(driver)
	if err != nil {
		return nil, ErrDriverUnavailable.WithDetails("driver", driver).WithCause(err)
	}
	devices, err := e.Enumerate(ctx)
	if err != nil {
		return nil, ErrDriverUnavailable.WithDetails("driver", driver).WithCause(err)
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Path < devices[j].Path
	})
	for i := range devices {
		if devices[i].Driver == "" {
			devices[i].Driver = driver
		}
	}

	logger.WithContext(ctx).Debug("enumerated devices", "driver", driver, "count", len(devices))
	r.devices[driver] = devices
	return cloneDevices(devices), nil
}

// DeviceMap maps every accepted identifier of driver to the requested field:
// the bare driver name to device 0, "driver://i" to device i and
// "driver://<path>" to the device at path.
func (r *Resolver) DeviceMap(ctx context.Context, driver string, key Key) (map[string]string, error) {
	devices, err := r.ListDevices(ctx, driver)
	if err != nil {
		return nil, err
	}

	m := make(map[string]string, 2*len(devices)+1)
	for i, d := range devices {
		v, err := field(d, key)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			m[driver] = v
		}
		m[driver+uriSeparator+strconv.Itoa(i)] = v
		m[driver+uriSeparator+d.Path] = v
	}
	return m, nil
}

// Lookup returns the descriptor an identifier refers to.
func (r *Resolver) Lookup(ctx context.Context, identifier string) (hal.DeviceDescriptor, error) {
	driver, rest := SplitIdentifier(identifier)
	if driver == "" || (rest == "" && strings.Contains(identifier, uriSeparator)) {
		return hal.DeviceDescriptor{}, ErrUnknownDevice.WithDetails("identifier", identifier)
	}

	devices, err := r.ListDevices(ctx, driver)
	if err != nil {
		return hal.DeviceDescriptor{}, err
	}
	if len(devices) == 0 {
		return hal.DeviceDescriptor{}, ErrUnknownDevice.
			WithDetails("identifier", identifier).
			WithCause(fmt.Errorf("driver %s reports no devices", driver))
	}

	if rest == "" {
		return devices[0], nil
	}
	if idx, err := strconv.Atoi(rest); err == nil && strconv.Itoa(idx) == rest && idx >= 0 && idx < len(devices) {
		return devices[idx], nil
	}
	for _, d := range devices {
		if d.Path == rest {
			return d, nil
		}
	}
	return hal.DeviceDescriptor{}, ErrUnknownDevice.WithDetails("identifier", identifier)
}

// ResolvePath returns the fully qualified "driver://path" for identifier.
func (r *Resolver) ResolvePath(ctx context.Context, identifier string) (string, error) {
	d, err := r.Lookup(ctx, identifier)
	if err != nil {
		return "", err
	}
	return d.URI(), nil
}

// ResolveName returns the human-readable name of the device.
func (r *Resolver) ResolveName(ctx context.Context, identifier string) (string, error) {
	d, err := r.Lookup(ctx, identifier)
	if err != nil {
		return "", err
	}
	return d.Name, nil
}

// TargetTriple matches name against the resolver's rules and platform.
func (r *Resolver) TargetTriple(ctx context.Context, name string) (string, error) {
	triple, err := MatchTriple(r.rules, name, r.platform)
	if err != nil {
		logger.WithContext(ctx).Warn("optimized kernel for target device is not added yet", "target", name)
		return "", err
	}
	logger.WithContext(ctx).Info(fmt.Sprintf("Found %s. Using %s", name, triple), "device_name", name, "triple", triple)
	return triple, nil
}

// TripleForDevice resolves identifier to a device name and then to a
// target triple. ErrUnrecognizedHardware is returned as-is so callers can
// continue without a triple.
func (r *Resolver) TripleForDevice(ctx context.Context, identifier string) (string, error) {
	name, err := r.ResolveName(ctx, identifier)
	if err != nil {
		return "", err
	}
	return r.TargetTriple(ctx, name)
}

// VulkanArgs returns the target triple flag for identifier. It returns no
// flags when extra already pins a triple, or when the device is not
// recognized.
func (r *Resolver) VulkanArgs(ctx context.Context, identifier string, extra []string) ([]string, error) {
	name, err := r.ResolveName(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if HasTargetTripleFlag(extra) {
		logger.WithContext(ctx).Info(fmt.Sprintf("Found %s. Using target triple from command line args", name))
		return nil, nil
	}

	triple, err := r.TargetTriple(ctx, name)
	if errors.Is(err, ErrUnrecognizedHardware) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []string{TargetTripleFlagPrefix + triple}, nil
}

// HasTargetTripleFlag reports whether flags already pin a target triple.
func HasTargetTripleFlag(flags []string) bool {
	return strings.Contains(strings.Join(flags, " "), TargetTripleFlagPrefix)
}

// TripleFromFlags returns the triple pinned by flags. When several flags
// pin one, the last wins, as it does for the compiler.
func TripleFromFlags(flags []string) (string, bool) {
	triple, found := "", false
	for _, f := range flags {
		i := strings.Index(f, TargetTripleFlagPrefix)
		if i < 0 {
			continue
		}
		if v := strings.TrimSpace(f[i+len(TargetTripleFlagPrefix):]); v != "" {
			triple, found = v, true
		}
	}
	return triple, found
}

// SplitIdentifier splits "driver://rest" into its parts. A bare driver name
// yields an empty rest.
func SplitIdentifier(identifier string) (driver, rest string) {
	identifier = strings.TrimSpace(identifier)
	driver, rest, _ = strings.Cut(identifier, uriSeparator)
	return driver, rest
}

func field(d hal.DeviceDescriptor, key Key) (string, error) {
	switch key {
	case KeyPath:
		return d.Path, nil
	case KeyName:
		return d.Name, nil
	case KeyID:
		return d.ID, nil
	default:
		return "", fmt.Errorf("unknown device key %q", key)
	}
}

func cloneDevices(in []hal.DeviceDescriptor) []hal.DeviceDescriptor {
	out := make([]hal.DeviceDescriptor, len(in))
	copy(out, in)
	return out
}
