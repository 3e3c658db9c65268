package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/connorhough/modelctl/internal/config"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage modelctl configuration",
		Long:  `Create, get and set modelctl configuration values.`,
	}

	configCmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Write a commented config file",
			Long:  `Write a commented config file to --config or the default location, unless one exists.`,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := configPath()
				if err != nil {
					return err
				}
				if err := config.EnsureConfigExists(path); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Get a configuration value",
			Long:  `Get a configuration value by key.`,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				value, err := config.GetValue(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set a configuration value",
			Long:  `Set a configuration value by key.`,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return config.SetValue(args[0], args[1])
			},
		},
	)

	return configCmd
}

// configPath returns the file config init writes to.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	return config.DefaultPath()
}
