//go:build !darwin

package metal

import "github.com/jguan/sdtank/pkg/infra/hal"

func chipName() (string, error) {
	return "", hal.ErrNotSupported
}
