package cli

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

func NewConfigCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(NewConfigShowCommand(root))

	return cmd
}

func NewConfigShowCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Show the configuration after defaults, the config file and
SDTANK_* environment overrides are applied. Table output is TOML and
can be saved as a config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := root.OutputOptions()
			cfg := root.Config()
			if opts.Format == OutputJSON || opts.Format == OutputYAML {
				return PrintOutput(cfg, opts)
			}
			if opts.Quiet {
				return nil
			}
			if err := toml.NewEncoder(opts.Writer).Encode(cfg); err != nil {
				return fmt.Errorf("encode TOML: %w", err)
			}
			return nil
		},
	}
}
