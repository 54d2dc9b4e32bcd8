package device

import "github.com/jguan/sdtank/pkg/errs"

var (
	ErrDriverUnavailable    = errs.NewDomain("device", errs.CodeDriverUnavailable, "driver unavailable")
	ErrUnknownDevice        = errs.NewDomain("device", errs.CodeUnknownDevice, "unknown device")
	ErrUnrecognizedHardware = errs.NewDomain("device", errs.CodeUnrecognizedHardware, "no optimized target for device")
	ErrInvalidPlatform      = errs.NewDomain("device", errs.CodeInvalidInput, "invalid platform")
)
