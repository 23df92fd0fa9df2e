package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gst-analyzer/internal/api"
	"github.com/sells-group/gst-analyzer/internal/config"
	"github.com/sells-group/gst-analyzer/internal/store"
)

var (
	servePort     int
	serveFromJSON bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve analysis results over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		load, closeFn, err := newLoader(ctx, cfg, serveFromJSON)
		if err != nil {
			return err
		}
		defer closeFn()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr: fmt.Sprintf("%s:%d", cfg.Server.Host, port),
			Handler: api.NewServer(load, api.Options{
				Analysis:  cfg.Analysis,
				Server:    cfg.Server,
				OutputDir: cfg.Output.Dir,
				Version:   version,
			}).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveFromJSON, "from-json", false, "serve the JSON export even when a store is configured")
	rootCmd.AddCommand(serveCmd)
}

// newLoader picks the result source: the latest stored run when a store is
// configured, otherwise the JSON table export in the output directory.
func newLoader(ctx context.Context, c *config.Config, fromJSON bool) (api.Loader, func(), error) {
	jsonPath := filepath.Join(c.Output.Dir, c.Output.JSONFilename)
	if fromJSON {
		return api.JSONFileLoader(jsonPath), func() {}, nil
	}

	st, err := store.Open(ctx, c.Store)
	if err != nil {
		return nil, nil, err
	}
	if st == nil {
		return api.JSONFileLoader(jsonPath), func() {}, nil
	}
	return api.StoreLoader(st, c.Analysis.RootPAN()), func() { _ = st.Close() }, nil
}
