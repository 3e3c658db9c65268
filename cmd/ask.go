package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/connorhough/modelctl/internal/config"
	"github.com/connorhough/modelctl/internal/llm"
	"github.com/connorhough/modelctl/internal/providers"
)

func newAskCmd() *cobra.Command {
	var (
		providerFlag string
		system       string
		flags        optionFlags
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Send a prompt to a chat model",
		Long: `Send a prompt to the configured chat provider and print the answer.

The prompt is read from the argument, or from stdin when it is piped.
Option flags override the provider defaults for this call only.`,
		Example: `  modelctl ask "what does keep_alive do"
  git diff | modelctl ask -p openai --temperature 0`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			streams := llm.NewIOStreams()
			streams.Out = cmd.OutOrStdout()
			text, err := streams.ResolvePrompt(args)
			if err != nil {
				return err
			}

			cfg := config.ResolveProviderConfig("ask")
			cfg.ApplyFlags(providerFlag, "")
			if cfg.Provider == "" {
				return fmt.Errorf("no provider configured; use --provider")
			}

			runtime, err := flags.runtime(cmd, cfg.Provider)
			if err != nil {
				return err
			}

			model, err := providers.NewFactory(logger).ChatModel(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			promptOpts := []llm.PromptOption{llm.WithOptions(runtime)}
			if system != "" {
				promptOpts = append(promptOpts, llm.WithSystem(system))
			}

			resp, err := model.Call(cmd.Context(), llm.NewPrompt(text, promptOpts...))
			if err != nil {
				return err
			}
			logger.Info("answer", zap.String("model", resp.Model), zap.Int("prompt_tokens", resp.PromptTokens), zap.Int("output_tokens", resp.OutputTokens))

			fmt.Fprintln(streams.Out, resp.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&providerFlag, "provider", "p", "", "chat provider (ollama, openai, gemini)")
	cmd.Flags().StringVar(&system, "system", "", "system instruction")
	flags.register(cmd)
	return cmd
}
