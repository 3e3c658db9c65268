package cmd

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/connorhough/modelctl/internal/llm"
	"github.com/connorhough/modelctl/internal/llm/stability"
	"github.com/connorhough/modelctl/internal/options"
	"github.com/connorhough/modelctl/internal/providers"
)

func newImageCmd() *cobra.Command {
	var (
		negative string
		out      string
		n        int
		width    int
		height   int
		flags    optionFlags
	)

	cmd := &cobra.Command{
		Use:   "image [prompt]",
		Short: "Generate images with Stability AI",
		Long: `Generate images from a text prompt and write them as PNG files.

Seed and sampler tuning (cfg_scale, sampler, steps, style_preset,
clip_guidance_preset) come from providers.stability.options and cannot be
overridden per call.`,
		Example: `  modelctl image "a lighthouse at dusk" --negative "blurry" -n 2 --out lighthouse`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			streams := llm.NewIOStreams()
			text, err := streams.ResolvePrompt(args)
			if err != nil {
				return err
			}

			runtime, err := flags.runtime(cmd, stability.ProviderStability)
			if err != nil {
				return err
			}
			ext := &stability.Options{}
			if cmd.Flags().Changed("n") {
				ext.N = options.Ptr(n)
			}
			if cmd.Flags().Changed("width") {
				ext.Width = options.Ptr(width)
			}
			if cmd.Flags().Changed("height") {
				ext.Height = options.Ptr(height)
			}
			if *ext != (stability.Options{}) {
				if runtime == nil {
					runtime = &options.Options{}
				}
				if fromFile, ok := runtime.Extension.(*stability.Options); ok {
					ext = fromFile.MergeFrom(ext).(*stability.Options)
				}
				runtime.Extension = ext
			}

			model, err := providers.NewFactory(logger).ImageModel()
			if err != nil {
				return err
			}

			promptOpts := []llm.PromptOption{llm.WithOptions(runtime)}
			if negative != "" {
				promptOpts = append(promptOpts, llm.WithMessages(llm.Message{
					Role:   llm.RoleUser,
					Text:   negative,
					Weight: options.Ptr(-1.0),
				}))
			}

			resp, err := model.Call(cmd.Context(), llm.NewPrompt(text, promptOpts...))
			if err != nil {
				return err
			}

			for i, img := range resp.Images {
				data, err := base64.StdEncoding.DecodeString(img.Base64)
				if err != nil {
					return fmt.Errorf("failed to decode image %d: %w", i, err)
				}
				path := fmt.Sprintf("%s-%d.png", out, i)
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return fmt.Errorf("failed to write image: %w", err)
				}
				logger.Info("image written", zap.String("path", path), zap.Int64("seed", img.Seed), zap.String("finish_reason", img.FinishReason))
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&negative, "negative", "", "negative prompt (weight -1)")
	cmd.Flags().StringVar(&out, "out", "image", "output file prefix")
	cmd.Flags().IntVar(&n, "n", 1, "number of images")
	cmd.Flags().IntVar(&width, "width", 0, "image width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "image height in pixels")
	flags.register(cmd)
	return cmd
}
