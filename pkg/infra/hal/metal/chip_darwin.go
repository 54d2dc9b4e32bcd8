//go:build darwin

package metal

import (
	"strings"

	"golang.org/x/sys/unix"

	"github.com/jguan/sdtank/pkg/infra/hal"
)

// chipName reads the SoC marketing name, e.g. "Apple M1 Pro".
func chipName() (string, error) {
	name, err := unix.Sysctl("machdep.cpu.brand_string")
	if err != nil {
		return "", hal.ErrCommandFailed.WithCause(err)
	}
	name = strings.TrimSpace(name)
	if !strings.HasPrefix(name, "Apple") {
		return "", hal.ErrNotSupported
	}
	return name, nil
}
