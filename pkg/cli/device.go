package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jguan/sdtank/pkg/device"
	"github.com/jguan/sdtank/pkg/errs"
	"github.com/jguan/sdtank/pkg/infra/hal"
	"github.com/jguan/sdtank/pkg/infra/logger"
)

func NewDeviceCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Device discovery commands",
		Long: `Enumerate compute devices and map them to compiler target triples.

Devices are addressed as driver://path, driver://index or a bare
driver name, which selects the driver's first device.`,
	}

	cmd.AddCommand(NewDeviceListCommand(root))
	cmd.AddCommand(NewDeviceMapCommand(root))
	cmd.AddCommand(NewDevicePathCommand(root))
	cmd.AddCommand(NewDeviceNameCommand(root))
	cmd.AddCommand(NewDeviceTripleCommand(root))
	cmd.AddCommand(NewDeviceVulkanArgsCommand(root))

	return cmd
}

type deviceRow struct {
	URI    string `json:"uri" yaml:"uri"`
	Driver string `json:"driver" yaml:"driver"`
	Path   string `json:"path" yaml:"path"`
	Name   string `json:"name" yaml:"name"`
	ID     string `json:"id" yaml:"id"`
	Vendor string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
}

func NewDeviceListCommand(root *RootCommand) *cobra.Command {
	var driver string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List devices",
		Long: `List the devices each driver exposes, ordered by path.

Without --driver every registered driver is queried and drivers that
are unavailable on this host are skipped.`,
		Example: `  # List Vulkan devices
  sdtank device list --driver vulkan

  # All drivers as JSON
  sdtank device list -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeviceList(cmd.Context(), root, driver)
		},
	}

	cmd.Flags().StringVarP(&driver, "driver", "d", "", "Driver to query (vulkan, cuda, local-task, local-sync, metal)")

	return cmd
}

func runDeviceList(ctx context.Context, root *RootCommand, driver string) error {
	resolver := root.Devices()

	drivers := []string{driver}
	if driver == "" {
		drivers = root.drivers.Drivers()
	}

	rows := []deviceRow{}
	for _, d := range drivers {
		devices, err := resolver.ListDevices(ctx, d)
		if err != nil {
			if driver != "" {
				return err
			}
			logger.WithContext(ctx).Debug("skipping driver", "driver", d, "error", err)
			continue
		}
		for _, dev := range devices {
			rows = append(rows, deviceRow{
				URI:    dev.URI(),
				Driver: dev.Driver,
				Path:   dev.Path,
				Name:   dev.Name,
				ID:     dev.ID,
				Vendor: dev.Vendor,
			})
		}
	}

	return PrintOutput(rows, root.OutputOptions())
}

func NewDeviceMapCommand(root *RootCommand) *cobra.Command {
	var (
		driver string
		key    string
	)

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Map device index to one descriptor field",
		Example: `  sdtank device map --driver vulkan --key name`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := root.Devices().DeviceMap(cmd.Context(), driver, device.Key(key))
			if err != nil {
				return err
			}
			return PrintOutput(sortedMap(m), root.OutputOptions())
		},
	}

	cmd.Flags().StringVarP(&driver, "driver", "d", hal.DriverVulkan, "Driver to query")
	cmd.Flags().StringVarP(&key, "key", "k", string(device.KeyPath), "Field to map to (path, name, id)")

	return cmd
}

func NewDevicePathCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:     "path <identifier>",
		Short:   "Resolve a device identifier to driver://path",
		Args:    cobra.ExactArgs(1),
		Example: `  sdtank device path vulkan://0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := root.Devices().ResolvePath(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printValue(root.OutputOptions(), "path", path)
		},
	}
}

func NewDeviceNameCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:     "name <identifier>",
		Short:   "Resolve a device identifier to its marketing name",
		Args:    cobra.ExactArgs(1),
		Example: `  sdtank device name vulkan`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := root.Devices().ResolveName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printValue(root.OutputOptions(), "name", name)
		},
	}
}

type tripleResult struct {
	Device     string `json:"device,omitempty" yaml:"device,omitempty"`
	Name       string `json:"name" yaml:"name"`
	Triple     string `json:"triple" yaml:"triple"`
	Recognized bool   `json:"recognized" yaml:"recognized"`
}

func NewDeviceTripleCommand(root *RootCommand) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "triple [identifier]",
		Short: "Pick the compiler target triple for a device",
		Long: `Pick the compiler target triple for a device, either an enumerated
device or a device name given with --name.

Unrecognized hardware is not an error: the triple is left empty and a
triple can be supplied explicitly instead.`,
		Example: `  sdtank device triple vulkan://0
  sdtank device triple --name "AMD Radeon RX 7900 XTX" --platform linux`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var identifier string
			if len(args) == 1 {
				identifier = args[0]
			}
			return runDeviceTriple(cmd.Context(), root, identifier, name)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Device name to match instead of an enumerated device")

	return cmd
}

func runDeviceTriple(ctx context.Context, root *RootCommand, identifier, name string) error {
	if (identifier == "") == (name == "") {
		return errs.New(errs.CodeInvalidInput, "give exactly one of a device identifier or --name")
	}

	resolver := root.Devices()
	if name == "" {
		n, err := resolver.ResolveName(ctx, identifier)
		if err != nil {
			return err
		}
		name = n
	}

	result := tripleResult{Device: identifier, Name: name}
	triple, err := resolver.TargetTriple(ctx, name)
	switch {
	case errors.Is(err, device.ErrUnrecognizedHardware):
	case err != nil:
		return err
	default:
		result.Triple = triple
		result.Recognized = true
	}

	return PrintOutput(result, root.OutputOptions())
}

func NewDeviceVulkanArgsCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "vulkan-args <identifier> [-- extra-flags...]",
		Short: "Print the target triple flag for a Vulkan device",
		Long: `Print the compiler flags that pin the target triple for a device.

Nothing is printed when the extra flags already pin a triple or the
device is not recognized.`,
		Example: `  sdtank device vulkan-args vulkan://0
  sdtank device vulkan-args vulkan -- -iree-vulkan-target-triple=rdna2-unknown-linux`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := root.Devices().VulkanArgs(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			if flags == nil {
				flags = []string{}
			}
			return PrintOutput(flags, root.OutputOptions())
		},
	}
}

type keyValue struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

func sortedMap(m map[string]string) []keyValue {
	out := make([]keyValue, 0, len(m))
	for k, v := range m {
		out = append(out, keyValue{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// printValue prints a bare value in table mode and a one-key object
// otherwise.
func printValue(opts *OutputOptions, key, value string) error {
	if opts.Format == OutputJSON || opts.Format == OutputYAML {
		return PrintOutput(map[string]string{key: value}, opts)
	}
	if opts.Quiet {
		return nil
	}
	_, err := fmt.Fprintln(opts.Writer, value)
	return err
}
