package hal

import "context"

// StaticEnumerator serves a fixed device list. It backs tests and hosts
// where devices are declared rather than discovered.
type StaticEnumerator struct {
	DriverName string
	Devices    []DeviceDescriptor
	Err        error
	Calls      int
}

func (s *StaticEnumerator) Driver() string {
	return s.DriverName
}

func (s *StaticEnumerator) Available(ctx context.Context) bool {
	return s.Err == nil
}

func (s *StaticEnumerator) Enumerate(ctx context.Context) ([]DeviceDescriptor, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]DeviceDescriptor, len(s.Devices))
	for i, d := range s.Devices {
		if d.Driver == "" {
			d.Driver = s.DriverName
		}
		out[i] = d
	}
	return out, nil
}
