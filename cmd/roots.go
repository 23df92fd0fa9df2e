package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sells-group/gst-analyzer/internal/config"
	"github.com/sells-group/gst-analyzer/internal/report"
)

const maxListedRoots = 10

var rootsFromJSON bool

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "Check the configured root against the analyzed data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		load, closeFn, err := newLoader(ctx, cfg, rootsFromJSON)
		if err != nil {
			return err
		}
		defer closeFn()

		nodes, err := load(ctx)
		if err != nil {
			return err
		}
		formatRootCheck(os.Stdout, report.CheckRoots(nodes, cfg.Analysis.RootPAN()), cfg.Analysis)
		return nil
	},
}

func init() {
	rootsCmd.Flags().BoolVar(&rootsFromJSON, "from-json", false, "read the JSON export even when a store is configured")
	rootCmd.AddCommand(rootsCmd)
}

// formatRootCheck writes a human-readable root report to out.
func formatRootCheck(out io.Writer, rc report.RootCheck, a config.AnalysisConfig) {
	fmt.Fprintf(out, "Loaded %d nodes\n\n", rc.TotalNodes)
	fmt.Fprintf(out, "Found %d root nodes (nodes with no parents):\n", len(rc.Roots))
	for i, r := range rc.Roots {
		if i == maxListedRoots {
			fmt.Fprintf(out, "... and %d more root nodes\n", len(rc.Roots)-maxListedRoots)
			break
		}
		fmt.Fprintf(out, "%2d. PAN: %s\n", i+1, r.PAN)
		fmt.Fprintf(out, "    Entity: %s\n", r.EntityName)
		fmt.Fprintf(out, "    Sales: %s\n", report.FormatCurrency(r.TotalSales))
		fmt.Fprintf(out, "    Purchases: %s\n", report.FormatCurrency(r.TotalPurchases))
		fmt.Fprintf(out, "    Children: %d\n", r.ChildrenCount)
	}

	fmt.Fprintf(out, "\nConfigured root node: %s\n", rc.ConfiguredRoot)
	switch {
	case rc.Found && rc.IsRoot:
		fmt.Fprintln(out, "Configured root node is a root node (no parents)")
	case rc.Found:
		fmt.Fprintf(out, "WARNING: configured root node has parents: %v\n", rc.Parents)
	default:
		fmt.Fprintln(out, "Configured root node NOT found in data")
		if _, err := os.Stat(filepath.Join(a.DataDir, a.RootFile)); err == nil {
			fmt.Fprintf(out, "Root file exists: %s; run the analysis to include it\n", a.RootFile)
		} else {
			fmt.Fprintf(out, "Root file not found: %s\n", a.RootFile)
		}
	}
}
