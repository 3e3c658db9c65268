package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/connorhough/modelctl/internal/config"
	"github.com/connorhough/modelctl/internal/options"
	"github.com/connorhough/modelctl/internal/providers"
)

// optionFlags collect a runtime Option Set from the command line. Only flags
// the user set become present fields.
type optionFlags struct {
	file        string
	model       string
	temperature float64
	topP        float64
	maxTokens   int
	seed        int
	stop        []string
	headers     map[string]string
	toolChoice  string
}

func (f *optionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "options", "o", "", "YAML or JSON file with runtime options (provider_options for the provider tier)")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "model override")
	cmd.Flags().Float64Var(&f.temperature, "temperature", 0, "sampling temperature")
	cmd.Flags().Float64Var(&f.topP, "top-p", 0, "nucleus sampling probability")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "maximum output tokens")
	cmd.Flags().IntVar(&f.seed, "seed", 0, "random seed")
	cmd.Flags().StringSliceVar(&f.stop, "stop", nil, "stop sequence (repeatable)")
	cmd.Flags().StringToStringVar(&f.headers, "header", nil, "HTTP header override as key=value (repeatable)")
	cmd.Flags().StringVar(&f.toolChoice, "tool-choice", "", "tool choice policy: auto, none, required or a tool name")
}

// runtime builds the runtime Option Set for provider. It returns nil when the
// user set nothing, so provider defaults apply unchanged.
func (f *optionFlags) runtime(cmd *cobra.Command, provider string) (*options.Options, error) {
	var opts *options.Options
	if f.file != "" {
		ext, err := providers.NewExtension(provider)
		if err != nil {
			return nil, err
		}
		opts, err = config.LoadOptionsFile(f.file, ext)
		if err != nil {
			return nil, err
		}
	}

	changed := cmd.Flags().Changed
	set := func() *options.Options {
		if opts == nil {
			opts = &options.Options{}
		}
		return opts
	}
	if changed("model") {
		set().Model = options.Ptr(f.model)
	}
	if changed("temperature") {
		set().Temperature = options.Ptr(f.temperature)
	}
	if changed("top-p") {
		set().TopP = options.Ptr(f.topP)
	}
	if changed("max-tokens") {
		set().MaxTokens = options.Ptr(f.maxTokens)
	}
	if changed("seed") {
		set().Seed = options.Ptr(f.seed)
	}
	if changed("stop") {
		set().Stop = f.stop
	}
	if changed("header") {
		set().HTTPHeaders = f.headers
	}
	if changed("tool-choice") {
		set().ToolChoice = options.Ptr(f.toolChoice)
	}
	return opts, nil
}

func newOptionsCmd() *cobra.Command {
	optionsCmd := &cobra.Command{
		Use:   "options",
		Short: "Inspect model options",
	}
	optionsCmd.AddCommand(newOptionsResolveCmd())
	return optionsCmd
}

func newOptionsResolveCmd() *cobra.Command {
	var (
		providerFlag string
		flags        optionFlags
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the effective options of a call",
		Long: `Merge runtime options from flags and --options over the configured
defaults of a provider and print the result as YAML.

Runtime fields win over defaults. Stop sequences, tools and headers replace
the defaults as a whole; tool_context is merged key by key. Fields a provider
pins (for stability: seed and sampler tuning) always keep their defaults.`,
		Example: `  modelctl options resolve --provider ollama --temperature 0.2
  modelctl options resolve --provider stability --seed 42 -o runtime.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.ResolveProviderConfig("options")
			cfg.ApplyFlags(providerFlag, "")
			if cfg.Provider == "" {
				return fmt.Errorf("no provider configured; use --provider (%s)", strings.Join(providers.Names, ", "))
			}

			defaults, err := providers.ResolveDefaults(cfg)
			if err != nil {
				return err
			}
			runtime, err := flags.runtime(cmd, cfg.Provider)
			if err != nil {
				return err
			}

			eff := options.Merge(runtime, defaults)
			logger.Debug("resolved options", zap.String("provider", cfg.Provider), zap.Bool("runtime", runtime != nil))

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(eff); err != nil {
				return fmt.Errorf("failed to encode options: %w", err)
			}
			return enc.Close()
		},
	}

	cmd.Flags().StringVarP(&providerFlag, "provider", "p", "", "provider whose defaults to use")
	flags.register(cmd)
	return cmd
}
