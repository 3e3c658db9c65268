package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/connorhough/modelctl/internal/providers"
	"github.com/connorhough/modelctl/internal/provision"
)

// pollFlags override the configured provisioning settings
type pollFlags struct {
	interval    time.Duration
	maxAttempts int
	maxDuration time.Duration
}

func (f *pollFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.interval, "interval", 0, "delay after each pull request (default from config, else 5s)")
	cmd.Flags().IntVar(&f.maxAttempts, "max-attempts", 0, "give up after this many pulls (0 = no limit)")
	cmd.Flags().DurationVar(&f.maxDuration, "max-duration", 0, "give up after polling this long (0 = no limit)")
}

// options returns poller options for the flags the user set.
func (f *pollFlags) options(cmd *cobra.Command) []provision.Option {
	var opts []provision.Option
	if cmd.Flags().Changed("interval") {
		opts = append(opts, provision.WithPollInterval(f.interval))
	}
	if cmd.Flags().Changed("max-attempts") {
		opts = append(opts, provision.WithMaxAttempts(f.maxAttempts))
	}
	if cmd.Flags().Changed("max-duration") {
		opts = append(opts, provision.WithMaxDuration(f.maxDuration))
	}
	return opts
}

func newModelsCmd() *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "Manage models on the Ollama server",
		Long:  `List, pull and remove models on the configured Ollama server (providers.ollama.base_url).`,
	}

	modelsCmd.AddCommand(
		newModelsListCmd(),
		newModelsPullCmd(),
		newModelsEnsureCmd(),
		newModelsRmCmd(),
	)

	return modelsCmd
}

func newModelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List local models",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			poller, err := providers.NewFactory(logger).Poller()
			if err != nil {
				return err
			}
			models, err := poller.Models(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDIGEST\tSIZE\tMODIFIED")
			for _, m := range models {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Name, shortDigest(m.Digest), formatSize(m.Size), m.ModifiedAt.Format(time.DateTime))
			}
			return w.Flush()
		},
	}
}

func newModelsPullCmd() *cobra.Command {
	var (
		retry bool
		poll  pollFlags
	)

	cmd := &cobra.Command{
		Use:   "pull <model>",
		Short: "Pull a model and wait for it",
		Long: `Pull a model from the registry. With --retry (the default) the pull is
repeated every --interval until the server reports success. With --retry=false
a single pull is made and its status printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			poller, err := providers.NewFactory(logger).Poller(poll.options(cmd)...)
			if err != nil {
				return err
			}
			status, err := poller.EnsurePresent(cmd.Context(), args[0], retry)
			if err != nil {
				var timeout *provision.ProvisioningTimeoutError
				if errors.As(err, &timeout) {
					logger.Warn("pull did not finish", zap.String("model", timeout.Model), zap.Int("attempts", timeout.Attempts))
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&retry, "retry", true, "keep pulling until the model is ready")
	poll.register(cmd)
	return cmd
}

func newModelsEnsureCmd() *cobra.Command {
	var poll pollFlags

	cmd := &cobra.Command{
		Use:   "ensure <model>...",
		Short: "Pull models that are not present yet",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			poller, err := providers.NewFactory(logger).Poller(poll.options(cmd)...)
			if err != nil {
				return err
			}
			for _, name := range args {
				available, err := poller.IsAvailable(cmd.Context(), name)
				if err != nil {
					return err
				}
				if available {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: present\n", name)
					continue
				}
				status, err := poller.EnsurePresent(cmd.Context(), name, true)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, status)
			}
			return nil
		},
	}

	poll.register(cmd)
	return cmd
}

func newModelsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <model>",
		Aliases: []string{"remove"},
		Short:   "Remove a model",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			poller, err := providers.NewFactory(logger).Poller()
			if err != nil {
				return err
			}
			removed, err := poller.Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("model '%s' not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted '%s'\n", args[0])
			return nil
		},
	}
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func formatSize(n int64) string {
	const unit = 1000
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "kMGTPE"[exp])
}
