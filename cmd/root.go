package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gst-analyzer/internal/config"
)

var (
	cfg     *config.Config
	envName string
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "gst-analyzer",
	Short: "GST purchase-graph analysis",
	Long:  "Builds the purchase graph reachable from a root taxpayer's GST ledger, flags bogus and contaminated entities, and serves the results.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(envName)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "environment preset (default, development, production, testing)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
