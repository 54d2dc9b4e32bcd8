package hal

import (
	"context"
	"sort"
	"strings"
	"sync"
)

var (
	ErrDriverNotRegistered = NewProviderError("driver not registered")
	ErrToolNotFound        = NewProviderError("device query tool not found")
	ErrCommandFailed       = NewProviderError("command failed")
	ErrParseFailed         = NewProviderError("parse device list")
	ErrNotSupported        = NewProviderError("driver not supported on this host")
)

type ProviderError struct {
	Message string
	Cause   error
}

func NewProviderError(message string) *ProviderError {
	return &ProviderError{Message: message}
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is matches provider errors by message so wrapped copies still compare
// equal to the package sentinels.
func (e *ProviderError) Is(target error) bool {
	t, ok := target.(*ProviderError)
	return ok && t.Message == e.Message
}

func (e *ProviderError) WithCause(cause error) *ProviderError {
	return &ProviderError{Message: e.Message, Cause: cause}
}

// Enumerator lists the devices one driver can see. Implementations do not
// need to sort; callers order by path.
type Enumerator interface {
	Driver() string
	Available(ctx context.Context) bool
	Enumerate(ctx context.Context) ([]DeviceDescriptor, error)
}

// Registry maps driver names to enumerators.
type Registry struct {
	mu          sync.RWMutex
	enumerators map[string]Enumerator
}

func NewRegistry(enumerators ...Enumerator) *Registry {
	r := &Registry{enumerators: make(map[string]Enumerator)}
	for _, e := range enumerators {
		r.Register(e)
	}
	return r
}

// Register adds e, replacing any enumerator already bound to its driver.
func (r *Registry) Register(e Enumerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enumerators[e.Driver()] = e
}

func (r *Registry) Lookup(driver string) (Enumerator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.enumerators[driver]
	if !ok {
		return nil, ErrDriverNotRegistered.WithCause(&unknownDriverError{driver: driver})
	}
	return e, nil
}

// Drivers returns the registered driver names in sorted order.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.enumerators))
	for name := range r.enumerators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type unknownDriverError struct {
	driver string
}

func (e *unknownDriverError) Error() string {
	return "unknown driver " + e.driver
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
