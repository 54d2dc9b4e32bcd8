package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jguan/sdtank/pkg/artifact"
	"github.com/jguan/sdtank/pkg/device"
)

type Config struct {
	General GeneralConfig `toml:"general"`
	Target  TargetConfig  `toml:"target"`
	Device  DeviceConfig  `toml:"device"`
	Catalog CatalogConfig `toml:"catalog"`
	Logging LoggingConfig `toml:"logging"`
}

type GeneralConfig struct {
	DataDir string `toml:"data_dir"`
	// Platform overrides host detection: linux, macos or windows.
	// Empty means detect.
	Platform string `toml:"platform"`
}

type TargetConfig struct {
	Variant      string   `toml:"variant"`
	Version      string   `toml:"version"`
	Precision    string   `toml:"precision"`
	MaxLength    int      `toml:"max_length"`
	Device       string   `toml:"device"`
	UseTuned     bool     `toml:"use_tuned"`
	UseBaseVAE   bool     `toml:"use_base_vae"`
	ImportMLIR   bool     `toml:"import_mlir"`
	TargetTriple string   `toml:"target_triple"`
	ExtraFlags   []string `toml:"extra_flags"`
}

type DeviceConfig struct {
	VulkanInfoPath string        `toml:"vulkaninfo_path"`
	NvidiaSMIPath  string        `toml:"nvidia_smi_path"`
	ProbeTimeout   string        `toml:"probe_timeout"`
	ProbeTimeoutD  time.Duration `toml:"-"`
}

type CatalogConfig struct {
	// File replaces the embedded model catalog when set.
	File string `toml:"file"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".sdtank")

	return &Config{
		General: GeneralConfig{
			DataDir:  dataDir,
			Platform: "",
		},
		Target: TargetConfig{
			Variant:   string(artifact.VariantStableDiffusion),
			Version:   string(artifact.VersionV21Base),
			Precision: string(artifact.PrecisionFP16),
			MaxLength: artifact.MaxLength64,
			Device:    "vulkan",
			UseTuned:  true,
		},
		Device: DeviceConfig{
			VulkanInfoPath: "vulkaninfo",
			NvidiaSMIPath:  "nvidia-smi",
			ProbeTimeout:   "10s",
			ProbeTimeoutD:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
	}
}

func LoadFromFile(path string) (*Config, error) {
	expandedPath, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expand path: %w", err)
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("decode TOML: %w", err)
	}

	if err := cfg.postProcess(); err != nil {
		return nil, fmt.Errorf("post process config: %w", err)
	}

	return cfg, nil
}

func (c *Config) postProcess() error {
	var err error

	if c.Device.ProbeTimeoutD, err = time.ParseDuration(c.Device.ProbeTimeout); err != nil {
		return fmt.Errorf("parse device.probe_timeout: %w", err)
	}

	c.General.DataDir, err = expandPath(c.General.DataDir)
	if err != nil {
		return fmt.Errorf("expand general.data_dir: %w", err)
	}

	c.Catalog.File, err = expandPath(c.Catalog.File)
	if err != nil {
		return fmt.Errorf("expand catalog.file: %w", err)
	}

	c.Logging.File, err = expandPath(c.Logging.File)
	if err != nil {
		return fmt.Errorf("expand logging.file: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if _, err := artifact.ParseVariant(c.Target.Variant); err != nil {
		return fmt.Errorf("target.variant: %w", err)
	}
	if _, err := artifact.ParseVersion(c.Target.Version); err != nil {
		return fmt.Errorf("target.version: %w", err)
	}
	if _, err := artifact.ParsePrecision(c.Target.Precision); err != nil {
		return fmt.Errorf("target.precision: %w", err)
	}
	if err := artifact.ValidateMaxLength(c.Target.MaxLength); err != nil {
		return fmt.Errorf("target.max_length: %w", err)
	}
	if strings.TrimSpace(c.Target.Device) == "" {
		return fmt.Errorf("target.device must not be empty")
	}

	if c.General.Platform != "" {
		if _, err := device.ParsePlatform(c.General.Platform); err != nil {
			return fmt.Errorf("general.platform: %w", err)
		}
	}

	if c.Device.ProbeTimeoutD <= 0 {
		return fmt.Errorf("probe_timeout must be positive, got %s", c.Device.ProbeTimeout)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid logging format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}

// Params converts the [target] section into resolver input.
func (c *Config) Params() artifact.Params {
	extra := make([]string, len(c.Target.ExtraFlags))
	copy(extra, c.Target.ExtraFlags)
	return artifact.Params{
		Variant:      c.Target.Variant,
		Version:      c.Target.Version,
		Precision:    c.Target.Precision,
		MaxLength:    c.Target.MaxLength,
		Device:       c.Target.Device,
		UseTuned:     c.Target.UseTuned,
		UseBaseVAE:   c.Target.UseBaseVAE,
		ImportMLIR:   c.Target.ImportMLIR,
		TargetTriple: c.Target.TargetTriple,
		ExtraFlags:   extra,
	}
}

// PlatformOrDetect returns the configured platform, probing the host when unset.
func (c *Config) PlatformOrDetect() (device.Platform, error) {
	return device.ParsePlatform(c.General.Platform)
}

func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SDTANK_DATA_DIR"); v != "" {
		cfg.General.DataDir = v
	}
	if v := os.Getenv("SDTANK_PLATFORM"); v != "" {
		cfg.General.Platform = v
	}
	if v := os.Getenv("SDTANK_VARIANT"); v != "" {
		cfg.Target.Variant = v
	}
	if v := os.Getenv("SDTANK_VERSION"); v != "" {
		cfg.Target.Version = v
	}
	if v := os.Getenv("SDTANK_PRECISION"); v != "" {
		cfg.Target.Precision = v
	}
	if v := os.Getenv("SDTANK_MAX_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Target.MaxLength = n
		}
	}
	if v := os.Getenv("SDTANK_DEVICE"); v != "" {
		cfg.Target.Device = v
	}
	if v := os.Getenv("SDTANK_USE_TUNED"); v != "" {
		cfg.Target.UseTuned = parseBool(v)
	}
	if v := os.Getenv("SDTANK_USE_BASE_VAE"); v != "" {
		cfg.Target.UseBaseVAE = parseBool(v)
	}
	if v := os.Getenv("SDTANK_IMPORT_MLIR"); v != "" {
		cfg.Target.ImportMLIR = parseBool(v)
	}
	if v := os.Getenv("SDTANK_TARGET_TRIPLE"); v != "" {
		cfg.Target.TargetTriple = v
	}
	if v := os.Getenv("SDTANK_VULKANINFO"); v != "" {
		cfg.Device.VulkanInfoPath = v
	}
	if v := os.Getenv("SDTANK_NVIDIA_SMI"); v != "" {
		cfg.Device.NvidiaSMIPath = v
	}
	if v := os.Getenv("SDTANK_CATALOG_FILE"); v != "" {
		cfg.Catalog.File = v
	}
	if v := os.Getenv("SDTANK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SDTANK_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func parseBool(v string) bool {
	return strings.ToLower(v) == "true" || v == "1"
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get user home directory: %w", err)
		}
		return filepath.Join(homeDir, path[2:]), nil
	}

	return path, nil
}

func Load(configPath string) (*Config, error) {
	var cfg *Config
	var err error

	if configPath != "" {
		cfg, err = LoadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", configPath, err)
		}
	} else {
		cfg = Default()
	}

	ApplyEnvOverrides(cfg)

	if err := cfg.postProcess(); err != nil {
		return nil, fmt.Errorf("post process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
