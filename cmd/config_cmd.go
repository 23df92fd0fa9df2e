package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/gst-analyzer/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a sample configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config/config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteSample(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sample configuration written to %s\n", path)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the loaded configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration valid (env %s, root %s)\n", cfg.Env, cfg.Analysis.RootPAN())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
