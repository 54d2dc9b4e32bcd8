package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jguan/sdtank/pkg/artifact"
)

func NewArtifactCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Model artifact resolution commands",
		Long: `Resolve precompiled model artifacts for a target configuration.

The target comes from the [target] section of the config file; any
flag given on the command line overrides the corresponding setting.`,
	}

	cmd.AddCommand(NewArtifactResolveCommand(root))
	cmd.AddCommand(NewArtifactKeyCommand(root))
	cmd.AddCommand(NewArtifactListCommand(root))
	cmd.AddCommand(NewArtifactBucketsCommand(root))

	return cmd
}

// targetFlags overlays command-line settings on the config's target.
type targetFlags struct {
	variant      artifact.Variant
	version      artifact.Version
	precision    artifact.Precision
	maxLength    int
	device       string
	useTuned     bool
	useBaseVAE   bool
	importMLIR   bool
	targetTriple string
	extraFlags   []string
}

func (t *targetFlags) register(fs *pflag.FlagSet) {
	fs.Var(&t.variant, "variant", "Model variant (stablediffusion, anythingv3, analogdiffusion)")
	fs.Var(&t.version, "version", "Model version (v1.4, v2.1, v2.1base)")
	fs.Var(&t.precision, "precision", "Precision (fp32, fp16, int8)")
	fs.IntVar(&t.maxLength, "max-length", artifact.MaxLength64, "Max sequence length (64, 77)")
	fs.StringVar(&t.device, "device", "", "Device identifier, e.g. vulkan://0")
	fs.BoolVar(&t.useTuned, "tuned", false, "Use tuned models where the hardware allows")
	fs.BoolVar(&t.useBaseVAE, "base-vae", false, "Use the base decoder")
	fs.BoolVar(&t.importMLIR, "import-mlir", false, "Import from MLIR instead of fetching")
	fs.StringVar(&t.targetTriple, "target-triple", "", "Pin the compiler target triple")
	fs.StringArrayVar(&t.extraFlags, "flag", nil, "Extra compiler flag (repeatable)")
}

func (t *targetFlags) params(root *RootCommand, fs *pflag.FlagSet) artifact.Params {
	p := root.Config().Params()
	if fs.Changed("variant") {
		p.Variant = t.variant.String()
	}
	if fs.Changed("version") {
		p.Version = t.version.String()
	}
	if fs.Changed("precision") {
		p.Precision = t.precision.String()
	}
	if fs.Changed("max-length") {
		p.MaxLength = t.maxLength
	}
	if fs.Changed("device") {
		p.Device = t.device
	}
	if fs.Changed("tuned") {
		p.UseTuned = t.useTuned
	}
	if fs.Changed("base-vae") {
		p.UseBaseVAE = t.useBaseVAE
	}
	if fs.Changed("import-mlir") {
		p.ImportMLIR = t.importMLIR
	}
	if fs.Changed("target-triple") {
		p.TargetTriple = t.targetTriple
	}
	if fs.Changed("flag") {
		p.ExtraFlags = append(p.ExtraFlags, t.extraFlags...)
	}
	return p
}

func resolveArtifacts(ctx context.Context, root *RootCommand, p artifact.Params, comp artifact.Component) ([]artifact.ResolvedArtifact, error) {
	cfg, err := artifact.NewTargetConfig(p)
	if err != nil {
		return nil, err
	}
	if comp == "" {
		return root.Artifacts().ResolveAll(ctx, cfg)
	}
	a, err := root.Artifacts().Resolve(ctx, cfg, comp)
	if err != nil {
		return nil, err
	}
	return []artifact.ResolvedArtifact{a}, nil
}

func NewArtifactResolveCommand(root *RootCommand) *cobra.Command {
	var (
		target    targetFlags
		component artifact.Component
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve artifacts and compiler flags",
		Long: `Resolve the bucket, model name and compiler flags for each
component. Without --component the text encoder, denoiser and
decoder are resolved in that order.`,
		Example: `  # Resolve everything for the configured target
  sdtank artifact resolve

  # Only the denoiser, fp32, as YAML
  sdtank artifact resolve --component unet --precision fp32 --version v1.4 --max-length 77 -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			arts, err := resolveArtifacts(cmd.Context(), root, target.params(root, cmd.Flags()), component)
			if err != nil {
				return err
			}
			return PrintOutput(arts, root.OutputOptions())
		},
	}

	target.register(cmd.Flags())
	cmd.Flags().Var(&component, "component", "Resolve one component (clip, unet, vae)")

	return cmd
}

func NewArtifactKeyCommand(root *RootCommand) *cobra.Command {
	var (
		target    targetFlags
		component artifact.Component
	)

	cmd := &cobra.Command{
		Use:     "key",
		Short:   "Print the catalog key the target resolves to",
		Example: `  sdtank artifact key --component unet --tuned`,
		RunE: func(cmd *cobra.Command, args []string) error {
			arts, err := resolveArtifacts(cmd.Context(), root, target.params(root, cmd.Flags()), component)
			if err != nil {
				return err
			}
			rows := make([]keyValue, 0, len(arts))
			for _, a := range arts {
				rows = append(rows, keyValue{Key: string(a.Component), Value: string(a.Key)})
			}
			return PrintOutput(rows, root.OutputOptions())
		},
	}

	target.register(cmd.Flags())
	cmd.Flags().Var(&component, "component", "Component (clip, unet, vae)")

	return cmd
}

func NewArtifactListCommand(root *RootCommand) *cobra.Command {
	var variant artifact.Variant

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List catalog entries",
		Example: `  sdtank artifact list --variant anythingv3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := root.Artifacts().Catalog().Entries()
			if variant != "" {
				filtered := entries[:0]
				for _, e := range entries {
					if e.Spec.Variant == variant {
						filtered = append(filtered, e)
					}
				}
				entries = filtered
			}
			return PrintOutput(entries, root.OutputOptions())
		},
	}

	cmd.Flags().Var(&variant, "variant", "Only list entries for this variant")

	return cmd
}

func NewArtifactBucketsCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "buckets",
		Short: "Show where artifacts are stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := root.Artifacts().Catalog()
			rows := []keyValue{{Key: "tuned", Value: catalog.Bucket(artifact.VariantStableDiffusion, true)}}
			for _, v := range artifact.Variants {
				rows = append(rows, keyValue{Key: string(v), Value: catalog.Bucket(v, false)})
			}
			return PrintOutput(rows, root.OutputOptions())
		},
	}
}
