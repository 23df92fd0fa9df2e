// Package api serves analysis results over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/gst-analyzer/internal/config"
	"github.com/sells-group/gst-analyzer/internal/model"
	"github.com/sells-group/gst-analyzer/internal/report"
)

// Options configures a Server.
type Options struct {
	Analysis  config.AnalysisConfig
	Server    config.ServerConfig
	OutputDir string
	Version   string
}

// Server exposes summaries, search and node lookups over a loaded analysis.
type Server struct {
	load    Loader
	opts    Options
	limiter *rate.Limiter
}

// NewServer creates a Server reading results through load.
func NewServer(load Loader, opts Options) *Server {
	s := &Server{load: load, opts: opts}
	if opts.Server.RateLimit > 0 {
		burst := opts.Server.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.Server.RateLimit), burst)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(countRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(s.limiter))
		r.Get("/config", s.getConfig)
		r.Get("/data/{filename}", s.dataFile)
		r.Get("/analysis/summary", s.summary)
		r.Get("/analysis/high-contamination", s.highContamination)
		r.Get("/analysis/search", s.search)
		r.Get("/nodes/{pan}", s.node)
		r.Get("/roots", s.roots)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Page not found")
	})
	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.opts.Server.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.opts.Server.AllowedOrigins
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "GST Analysis System",
		"version": s.opts.Version,
	})
}

func (s *Server) getConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"root_node_pan":   s.opts.Analysis.RootPAN(),
		"bogus_threshold": s.opts.Analysis.BogusThreshold,
		"risk_threshold":  s.opts.Analysis.RiskThreshold,
	})
}

// dataFile serves an export from the output directory. Only the base name
// of the requested file is honored.
func (s *Server) dataFile(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(chi.URLParam(r, "filename"))
	path := filepath.Join(s.opts.OutputDir, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	nodes, ok := s.nodes(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.Summarize(nodes, s.opts.Analysis.RiskThreshold))
}

func (s *Server) highContamination(w http.ResponseWriter, r *http.Request) {
	nodes, ok := s.nodes(w, r)
	if !ok {
		return
	}
	limit := intParam(r, "limit", report.DefaultHighContaminationLimit)
	writeJSON(w, http.StatusOK, rows(report.HighContamination(nodes, limit)))
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, []report.Row{})
		return
	}
	nodes, ok := s.nodes(w, r)
	if !ok {
		return
	}
	limit := intParam(r, "limit", report.DefaultSearchLimit)
	writeJSON(w, http.StatusOK, rows(report.Search(nodes, q, limit)))
}

func (s *Server) node(w http.ResponseWriter, r *http.Request) {
	nodes, ok := s.nodes(w, r)
	if !ok {
		return
	}
	pan := strings.ToUpper(chi.URLParam(r, "pan"))
	n, found := nodes[pan]
	if !found {
		writeError(w, http.StatusNotFound, "No data found for PAN: "+pan)
		return
	}
	writeJSON(w, http.StatusOK, report.NewRow(n))
}

func (s *Server) roots(w http.ResponseWriter, r *http.Request) {
	nodes, ok := s.nodes(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.CheckRoots(nodes, s.opts.Analysis.RootPAN()))
}

// nodes loads the current analysis, writing the error response itself when
// it fails.
func (s *Server) nodes(w http.ResponseWriter, r *http.Request) (model.NodeSet, bool) {
	nodes, err := s.load(r.Context())
	if errors.Is(err, ErrNoAnalysis) {
		writeError(w, http.StatusNotFound, "Analysis data not found")
		return nil, false
	}
	if err != nil {
		zap.L().Error("api: load analysis", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load analysis data")
		return nil, false
	}
	return nodes, true
}

func rows(nodes []*model.Node) []report.Row {
	out := make([]report.Row, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, report.NewRow(n))
	}
	return out
}

func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
