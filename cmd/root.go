// Package cmd provides the command-line interface for modelctl.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/connorhough/modelctl/internal/logging"
	"github.com/connorhough/modelctl/internal/version"
)

var (
	cfgFile string
	verbose bool
	debug   bool
	logger  = zap.NewNop()
)

// Execute builds the root command and runs it with ctx.
// This is called by main.go.
func Execute(ctx context.Context) error {
	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	_ = logger.Sync()
	return err
}

// NewRootCmd creates and returns the root command for modelctl
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "modelctl",
		Short: "Resolve model options and provision models",
		Long: `modelctl resolves the options a model call runs with and makes sure
models are present on an Ollama server before they are used.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.String(),
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default locations: $XDG_CONFIG_HOME/modelctl/config.yaml, ~/.config/modelctl/config.yaml, or ~/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug details")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newModelsCmd())
	rootCmd.AddCommand(newOptionsCmd())
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newImageCmd())

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		return initLogger(cmd)
	}

	return rootCmd
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			viper.AddConfigPath(filepath.Join(xdgConfigHome, "modelctl"))
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get user home directory: %w", err)
			}
			viper.AddConfigPath(filepath.Join(home, ".config", "modelctl"))
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("MODELCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	return nil
}

func initLogger(cmd *cobra.Command) error {
	l, err := logging.New(cmd.ErrOrStderr(), logging.Config{
		Level:   viper.GetString("log_level"),
		Verbose: verbose,
		Debug:   debug,
	})
	if err != nil {
		return err
	}
	logger = l
	logger.Debug("config loaded", zap.String("file", viper.ConfigFileUsed()))
	return nil
}
