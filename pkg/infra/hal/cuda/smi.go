package cuda

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/jguan/sdtank/pkg/infra/hal"
)

const (
	defaultSMIPath = "nvidia-smi"
	formatFlag     = "--format=xml"
)

// SMI runs nvidia-smi and decodes its XML report.
type SMI struct {
	path    string
	timeout time.Duration
}

func NewSMI(path string, timeout time.Duration) *SMI {
	if path == "" {
		path = defaultSMIPath
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMI{path: path, timeout: timeout}
}

type smiGPU struct {
	ID           string `xml:"id,attr"`
	ProductName  string `xml:"product_name"`
	ProductBrand string `xml:"product_brand"`
	UUID         string `xml:"uuid"`
	MinorNumber  string `xml:"minor_number"`
}

type smiOutput struct {
	DriverVersion string   `xml:"driver_version"`
	CUDAVersion   string   `xml:"cuda_version"`
	AttachedGPUs  int      `xml:"attached_gpus"`
	GPUs          []smiGPU `xml:"gpu"`
}

func (s *SMI) Available(ctx context.Context) bool {
	if _, err := exec.LookPath(s.path); err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return exec.CommandContext(ctx, s.path, "--version").Run() == nil
}

func (s *SMI) Query(ctx context.Context) (*smiOutput, error) {
	if _, err := exec.LookPath(s.path); err != nil {
		return nil, hal.ErrToolNotFound.WithCause(err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, s.path, "-q", formatFlag).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, hal.ErrCommandFailed.WithCause(
				fmt.Errorf("nvidia-smi exited with code %d: %s", exitErr.ExitCode(), string(exitErr.Stderr)))
		}
		return nil, hal.ErrCommandFailed.WithCause(err)
	}

	return parseSMI(output)
}

func parseSMI(data []byte) (*smiOutput, error) {
	var result smiOutput
	if err := xml.Unmarshal(data, &result); err != nil {
		return nil, hal.ErrParseFailed.WithCause(fmt.Errorf("parse nvidia-smi output: %w", err))
	}
	return &result, nil
}
