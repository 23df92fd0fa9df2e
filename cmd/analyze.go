package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gst-analyzer/internal/config"
	"github.com/sells-group/gst-analyzer/internal/graph"
	"github.com/sells-group/gst-analyzer/internal/ledger"
	"github.com/sells-group/gst-analyzer/internal/report"
	"github.com/sells-group/gst-analyzer/internal/store"
)

// analyzeFlags holds command-line overrides for one analysis.
type analyzeFlags struct {
	dataDir   string
	outputDir string
	rootFile  string
	threshold float64
	noJSON    bool
	quiet     bool
}

var analyzeOpts analyzeFlags

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the purchase hierarchy of the root ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		analyzeOpts.apply(cfg)

		var out io.Writer = os.Stdout
		if analyzeOpts.quiet {
			out = io.Discard
		}
		_, err := runAnalysis(ctx, cfg, analyzeOpts, out)
		return err
	},
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeOpts.dataDir, "data-dir", "", "ledger directory (default from config)")
	f.StringVar(&analyzeOpts.outputDir, "output-dir", "", "output directory (default from config)")
	f.StringVar(&analyzeOpts.rootFile, "root-file", "", "root ledger file name inside the data directory")
	f.Float64Var(&analyzeOpts.threshold, "threshold", 0, "bogus threshold (0-1, default from config)")
	f.BoolVar(&analyzeOpts.noJSON, "no-json", false, "skip the JSON exports")
	f.BoolVar(&analyzeOpts.quiet, "quiet", false, "do not print the report")
	rootCmd.AddCommand(analyzeCmd)
}

// apply layers non-empty flags over the loaded configuration.
func (f analyzeFlags) apply(c *config.Config) {
	if f.dataDir != "" {
		c.Analysis.DataDir = f.dataDir
	}
	if f.outputDir != "" {
		c.Output.Dir = f.outputDir
	}
	if f.rootFile != "" {
		c.Analysis.RootFile = f.rootFile
	}
	if f.threshold > 0 {
		c.Analysis.BogusThreshold = f.threshold
	}
}

// runAnalysis validates the configuration, analyzes the root ledger, writes
// the report files and persists the run when a store is configured.
func runAnalysis(ctx context.Context, c *config.Config, f analyzeFlags, out io.Writer) (_ *graph.Result, err error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(c.Analysis.RootPath()); err != nil {
		return nil, eris.Wrapf(err, "analyze: root ledger %s", c.Analysis.RootPath())
	}

	log := zap.L().With(zap.String("root_file", c.Analysis.RootFile))
	log.Info("analyze: starting",
		zap.String("data_dir", c.Analysis.DataDir),
		zap.String("output_dir", c.Output.Dir),
		zap.Float64("bogus_threshold", c.Analysis.BogusThreshold),
		zap.String("env", c.Env),
	)

	src, err := ledger.NewDirSupplier(c.Analysis.DataDir, ledger.OptionsFromConfig(c.Analysis))
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, c.Store)
	if err != nil {
		return nil, err
	}
	var runID string
	if st != nil {
		defer st.Close() //nolint:errcheck
		run, cerr := st.CreateRun(ctx, c.Analysis.RootPAN(), c.Analysis.RootFile, c.Analysis.BogusThreshold)
		if cerr != nil {
			return nil, cerr
		}
		runID = run.ID

		// Any failure from here on leaves the run failed, never running.
		defer func() {
			if err == nil {
				return
			}
			if ferr := st.FailRun(context.WithoutCancel(ctx), runID, err); ferr != nil {
				log.Warn("analyze: record failed run", zap.String("run_id", runID), zap.Error(ferr))
			}
		}()
	}

	res, err := graph.AnalyzeHierarchy(ctx, c.Analysis, src)
	if err != nil {
		return nil, err
	}

	in := report.Input{
		Nodes:          res.Nodes,
		Metrics:        res.Metrics,
		BogusThreshold: c.Analysis.BogusThreshold,
		RiskThreshold:  c.Analysis.RiskThreshold,
		GeneratedAt:    time.Now(),
	}
	if err := writeOutputs(c.Output, in, f.noJSON, out); err != nil {
		return nil, err
	}

	if st != nil {
		if _, err := st.SaveNodes(ctx, runID, res.Nodes); err != nil {
			return nil, err
		}
		if err := st.CompleteRun(ctx, runID, res.Metrics); err != nil {
			return nil, err
		}
		log.Info("analyze: run stored", zap.String("run_id", runID))
	}

	log.Info("analyze: complete",
		zap.Int("nodes", res.Metrics.TotalNodes),
		zap.Int("bogus", res.Metrics.BogusNodes),
		zap.String("output_dir", c.Output.Dir),
	)
	return res, nil
}

// writeOutputs writes the text report, the workbook and, unless noJSON, the
// JSON table export with its sidecar indexes.
func writeOutputs(o config.OutputConfig, in report.Input, noJSON bool, out io.Writer) error {
	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		return eris.Wrap(err, "analyze: create output dir")
	}

	text := report.FormatText(in)
	rule := strings.Repeat("=", 80)
	fmt.Fprintf(out, "\n%s\n%s\n%s\n", rule, text, rule)

	if err := os.WriteFile(filepath.Join(o.Dir, o.ReportFilename), []byte(text), 0o644); err != nil {
		return eris.Wrap(err, "analyze: write report")
	}
	if err := report.ExportXLSX(filepath.Join(o.Dir, o.ExcelFilename), in); err != nil {
		return err
	}
	if noJSON {
		return nil
	}

	exports := []struct {
		name  string
		write func(io.Writer) error
	}{
		{o.JSONFilename, func(w io.Writer) error { return report.ExportJSON(w, in.Nodes) }},
		{report.NamesFilename, func(w io.Writer) error { return report.ExportNames(w, in.Nodes) }},
		{report.AvailabilityFilename, func(w io.Writer) error { return report.ExportAvailability(w, in.Nodes) }},
	}
	for _, e := range exports {
		if err := writeFile(filepath.Join(o.Dir, e.name), e.write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "analyze: create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "analyze: close %s", path)
}
