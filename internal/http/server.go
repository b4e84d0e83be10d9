package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"trueshuffle/internal/core"
	"trueshuffle/internal/i18n"
	"trueshuffle/pkg/text"
)

const shutdownTimeout = 10 * time.Second

// TaskQueue submits tasks and answers polls.
type TaskQueue interface {
	Submit(kind core.TaskKind, auth core.AuthContext, params core.TaskParams) (string, error)
	Poll(id string) (core.TaskStatus, error)
	Running() bool
}

// Library serves the synchronous catalog operations.
type Library interface {
	ListPlaylists(ctx context.Context, auth core.AuthContext, includeStats bool) (*core.PlaylistListing, error)
	DeleteShuffledPlaylists(ctx context.Context, auth core.AuthContext) (*core.DeleteResult, error)
	OverallStatistics(ctx context.Context) (*core.UsageCounters, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Limiter decides whether a caller may submit another task.
type Limiter interface {
	Allow(scope, key string) bool
}

// Deps are the components the HTTP surface serves.
type Deps struct {
	Queue     TaskQueue
	Library   Library
	Store     Pinger
	Limiter   Limiter // nil disables rate limiting
	Localizer *i18n.Localizer
	Metrics   *Metrics
	Registry  *prometheus.Registry
}

type Server struct {
	config *core.ServerConfig
	logger *zap.Logger
	server *http.Server
	deps   Deps
	parser *text.Parser
}

func NewServer(config *core.ServerConfig, deps Deps, logger *zap.Logger) *Server {
	if deps.Localizer == nil {
		deps.Localizer = i18n.NewLocalizer(i18n.DefaultLanguage)
	}

	s := &Server{
		config: config,
		logger: logger,
		deps:   deps,
		parser: text.NewParser(),
	}
	s.server = createHTTPServer(config, s.setupRoutes())

	return s
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	s.handle(mux, "POST /api/playlist/shuffle", "shuffle_submit", s.handleShuffleSubmit)
	s.handle(mux, "GET /api/playlist/shuffle/state/{id}", "shuffle_state", s.handleTaskState(core.TaskKindShuffle))
	s.handle(mux, "POST /api/playlist/liked", "liked_submit", s.handleLikedSubmit)
	s.handle(mux, "GET /api/playlist/liked/state/{id}", "liked_state", s.handleTaskState(core.TaskKindExport))
	s.handle(mux, "GET /api/playlists", "playlists", s.handleListPlaylists)
	s.handle(mux, "DELETE /api/playlist/shuffled", "delete_shuffled", s.handleDeleteShuffled)
	s.handle(mux, "GET /api/statistics/overall", "statistics_overall", s.handleOverallStatistics)

	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("GET /readyz", s.readyHandler)
	if s.deps.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("GET /{$}", s.homeHandler)

	return mux
}

// handle registers h under pattern, timed under the given handler label.
func (s *Server) handle(mux *http.ServeMux, pattern, name string, h http.HandlerFunc) {
	if s.deps.Metrics == nil {
		mux.Handle(pattern, h)
		return
	}
	observer := s.deps.Metrics.RequestDuration.MustCurryWith(prometheus.Labels{"handler": name})
	mux.Handle(pattern, promhttp.InstrumentHandlerDuration(observer, h))
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"trueshuffle"}`))
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Queue == nil || !s.deps.Queue.Running() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "workers not running", "service": "trueshuffle"})
		return
	}
	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(r.Context()); err != nil {
			s.logger.Warn("Readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "store unavailable", "service": "trueshuffle"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "service": "trueshuffle"})
}

func (s *Server) homeHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>True Shuffle</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .header { color: #333; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
        .endpoint a:hover { text-decoration: underline; }
    </style>
</head>
<body>
    <h1 class="header">🔀 True Shuffle</h1>
    <p>Really random copies of your Spotify playlists</p>

    <h2>Endpoints</h2>
    <div class="endpoint">📊 <a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint">💚 <a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint">✅ <a href="/readyz">Ready</a> - Readiness check</div>
    <div class="endpoint">📈 <a href="/api/statistics/overall">Statistics</a> - Overall usage</div>
</body>
</html>`)); err != nil {
		s.logger.Debug("Failed to write home page", zap.Error(err))
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Handler returns the routed handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
