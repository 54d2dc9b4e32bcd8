package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jguan/sdtank/pkg/artifact"
	"github.com/jguan/sdtank/pkg/config"
	"github.com/jguan/sdtank/pkg/device"
	"github.com/jguan/sdtank/pkg/infra/hal"
	"github.com/jguan/sdtank/pkg/infra/hal/cpu"
	"github.com/jguan/sdtank/pkg/infra/hal/cuda"
	"github.com/jguan/sdtank/pkg/infra/hal/metal"
	"github.com/jguan/sdtank/pkg/infra/hal/vulkan"
	"github.com/jguan/sdtank/pkg/infra/logger"
)

var (
	cliVersion   = "dev"
	cliBuildDate = "unknown"
	cliGitCommit = "unknown"
)

type RootCommand struct {
	cmd       *cobra.Command
	cfg       *config.Config
	drivers   *hal.Registry
	devices   *device.Resolver
	artifacts *artifact.Resolver
	opts      *OutputOptions
	formatStr string
	sessionID string
	logFile   io.Closer
}

type RootOption func(*RootCommand)

// WithDrivers replaces the host driver probes.
func WithDrivers(drivers *hal.Registry) RootOption {
	return func(r *RootCommand) {
		r.drivers = drivers
	}
}

func NewRootCommand(options ...RootOption) *RootCommand {
	root := &RootCommand{
		opts: NewOutputOptions(),
	}
	for _, o := range options {
		o(root)
	}

	cmd := &cobra.Command{
		Use:   "sdtank",
		Short: "sdtank - Stable Diffusion artifact and device resolver",
		Long: `sdtank maps a Stable Diffusion configuration to the precompiled
model artifacts and compiler flags for this machine.

It enumerates compute devices per driver, picks a hardware target
triple from the device name, and resolves the text encoder, denoiser
and decoder artifacts from the model catalog.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  root.persistentPreRunE,
		PersistentPostRunE: root.persistentPostRunE,
	}

	pflags := cmd.PersistentFlags()

	pflags.StringVarP(&root.formatStr, "output", "o", "table", "Output format (table, json, yaml)")
	pflags.BoolVarP(&root.opts.Quiet, "quiet", "q", false, "Suppress output")
	pflags.String("config", "", "Config file path (default: built-in defaults)")
	pflags.String("platform", "", "Override host platform (linux, macos, windows)")
	pflags.String("log-level", "", "Log level (debug, info, warn, error)")

	viper.BindPFlag("output", pflags.Lookup("output"))
	viper.BindPFlag("quiet", pflags.Lookup("quiet"))
	viper.BindPFlag("config", pflags.Lookup("config"))
	viper.BindPFlag("platform", pflags.Lookup("platform"))
	viper.BindPFlag("log-level", pflags.Lookup("log-level"))

	root.cmd = cmd

	root.addSubCommands()

	return root
}

func (r *RootCommand) persistentPreRunE(cmd *cobra.Command, args []string) error {
	r.opts.Format = OutputFormat(r.formatStr)

	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if p := viper.GetString("platform"); p != "" {
		cfg.General.Platform = p
	}
	if l := viper.GetString("log-level"); l != "" {
		cfg.Logging.Level = l
	}
	r.cfg = cfg

	if err := r.initLogging(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, r.sessionID = logger.StartSession(ctx)
	cmd.SetContext(ctx)

	platform, err := cfg.PlatformOrDetect()
	if err != nil {
		return err
	}

	if r.drivers == nil {
		r.drivers = defaultDrivers(cfg)
	}
	r.devices = device.NewResolver(r.drivers, device.WithPlatform(platform))

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	r.artifacts, err = artifact.NewResolver(
		artifact.WithCatalog(catalog),
		artifact.WithTripleSource(r.devices),
		artifact.WithPlatform(platform),
	)
	if err != nil {
		return err
	}

	logger.WithContext(ctx).Debug("session started",
		"command", cmd.CommandPath(),
		"platform", platform,
		"drivers", r.drivers.Drivers())
	return nil
}

func (r *RootCommand) persistentPostRunE(cmd *cobra.Command, args []string) error {
	if r.logFile != nil {
		return r.logFile.Close()
	}
	return nil
}

func (r *RootCommand) initLogging() error {
	lc := logger.Config{
		Level:  r.cfg.Logging.Level,
		Format: r.cfg.Logging.Format,
		Output: os.Stderr,
	}
	if r.cfg.Logging.File != "" {
		f, err := logger.OpenFile(r.cfg.Logging.File)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		r.logFile = f
		lc.Output = f
	}
	logger.Reset()
	logger.Init(lc)
	return nil
}

// defaultDrivers probes the real host tools.
func defaultDrivers(cfg *config.Config) *hal.Registry {
	return hal.NewRegistry(
		vulkan.NewProvider(
			vulkan.WithVulkanInfoPath(cfg.Device.VulkanInfoPath),
			vulkan.WithTimeout(cfg.Device.ProbeTimeoutD),
		),
		cuda.NewProvider(cuda.WithSMIPath(cfg.Device.NvidiaSMIPath, cfg.Device.ProbeTimeoutD)),
		cpu.NewProvider(hal.DriverLocalTask),
		cpu.NewProvider(hal.DriverLocalSync),
		metal.NewProvider(),
	)
}

func loadCatalog(cfg *config.Config) (*artifact.Catalog, error) {
	if cfg.Catalog.File != "" {
		return artifact.LoadCatalogFile(cfg.Catalog.File)
	}
	return artifact.DefaultCatalog()
}

func (r *RootCommand) addSubCommands() {
	r.cmd.AddCommand(NewVersionCommand(r))
	r.cmd.AddCommand(NewDeviceCommand(r))
	r.cmd.AddCommand(NewArtifactCommand(r))
	r.cmd.AddCommand(NewConfigCommand(r))
}

func (r *RootCommand) Command() *cobra.Command {
	return r.cmd
}

func (r *RootCommand) Config() *config.Config {
	return r.cfg
}

func (r *RootCommand) Devices() *device.Resolver {
	return r.devices
}

func (r *RootCommand) Artifacts() *artifact.Resolver {
	return r.artifacts
}

func (r *RootCommand) SessionID() string {
	return r.sessionID
}

func (r *RootCommand) OutputOptions() *OutputOptions {
	return r.opts
}

func (r *RootCommand) SetOutputWriter(w interface{ Write([]byte) (int, error) }) {
	r.opts.Writer = w
}

func (r *RootCommand) Execute() error {
	return r.cmd.Execute()
}

func (r *RootCommand) ExecuteContext(ctx context.Context) error {
	return r.cmd.ExecuteContext(ctx)
}

func Execute() {
	root := NewRootCommand()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := root.ExecuteContext(ctx); err != nil {
		PrintError(err, root.OutputOptions())
		os.Exit(1)
	}
}

func SetVersion(version, buildDate, gitCommit string) {
	cliVersion = version
	cliBuildDate = buildDate
	cliGitCommit = gitCommit
}

func GetVersion() string {
	return cliVersion
}

func GetBuildDate() string {
	return cliBuildDate
}

func GetGitCommit() string {
	return cliGitCommit
}
