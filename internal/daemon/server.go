package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/coordinator"
	"github.com/inkwell-ai/inkwell/internal/llm/configbuilder"
	"github.com/inkwell-ai/inkwell/internal/observability"
	"github.com/inkwell-ai/inkwell/internal/resilience"
	chatrpc "github.com/inkwell-ai/inkwell/internal/rpc/chat"
	toolrpc "github.com/inkwell-ai/inkwell/internal/rpc/tools"
	"github.com/inkwell-ai/inkwell/internal/tools"
)

// Server hosts the chat stream endpoints plus health, metrics, and the
// performance monitor.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	runner   coordinator.Runner
	executor *resilience.Executor
	monitor  *observability.Monitor
	metrics  *observability.Metrics
	tools    *tools.Registry
	auth     chatrpc.Authenticator
}

// NewServer constructs a daemon instance. auth may be nil to disable
// authentication.
func NewServer(cfg *config.Config, logger *zap.Logger, auth chatrpc.Authenticator) (*Server, error) {
	registry, err := configbuilder.BuildRegistryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	monitor := observability.NewMonitor()
	metrics := observability.NewMetrics()

	breaker := resilience.NewBreaker(cfg.Resilience.Breaker.FailureThreshold, cfg.Resilience.Breaker.ResetTimeout)
	breaker.OnStateChange = func(s resilience.BreakerState) {
		metrics.SetBreakerState("model", float64(s))
		logger.Info("breaker state changed", zap.Stringer("state", s))
	}
	var cache *resilience.Cache
	if cfg.Resilience.Cache.Enabled {
		cache = resilience.NewCache(cfg.Resilience.Cache.TTL)
	}
	retrier := resilience.NewRetrier(cfg.Resilience.Retry.MaxRetries, cfg.Resilience.Retry.BaseBackoff, cfg.Resilience.Retry.MaxBackoff, logger)
	retrier.OnRetry = func(kind resilience.ErrorKind) {
		metrics.RecordRetry(string(kind))
	}
	executor := resilience.NewExecutor(breaker, cache, retrier, monitor, logger)

	var docTool *tools.DocumentTool
	var sugTool *tools.SuggestionsTool
	var weatherTool *tools.WeatherTool
	store := tools.NewDocumentStore()
	if cfg.Tools.EnableDocuments {
		docTool = tools.NewDocumentTool(store, registry, cfg.Chat.DocumentModel, executor, logger)
	}
	if cfg.Tools.EnableSuggestions {
		sugTool = tools.NewSuggestionsTool(store, registry, cfg.Chat.DocumentModel, executor, logger)
	}
	if cfg.Tools.EnableWeather {
		weatherTool = tools.NewWeatherTool(cfg.Tools.WeatherBaseURL, time.Duration(cfg.Tools.WeatherTimeoutSeconds)*time.Second, logger)
	}
	toolRegistry := tools.NewRegistry(docTool, sugTool, weatherTool)

	runner := coordinator.New(registry, executor, toolRegistry, metrics, cfg.Chat, logger)

	return &Server{
		cfg:      cfg,
		logger:   logger,
		runner:   runner,
		executor: executor,
		monitor:  monitor,
		metrics:  metrics,
		tools:    toolRegistry,
		auth:     auth,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.HandleFunc("/monitor", s.monitorHandler)
	mux.HandleFunc("/monitor/reset", s.monitorResetHandler)
	mux.Handle("/tools/schemas", toolrpc.SchemaHandler{Registry: s.tools})
	mux.Handle("/chat", chatrpc.NewHandler(s.runner, s.auth, s.metrics, s.logger))

	transport := strings.ToLower(strings.TrimSpace(s.cfg.Server.Transport))
	if transport != "ndjson" {
		path, handler := chatrpc.NewConnectHandler(s.runner, s.metrics, s.logger)
		mux.Handle(path, handler)
	}

	handler := http.Handler(mux)
	if transport != "ndjson" {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if s.cfg.Resilience.Cache.Enabled {
		go s.executor.RunSweeper(ctx, s.cfg.Resilience.Cache.SweepInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting inkwell daemon", zap.String("addr", s.cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down inkwell daemon")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.MetricsEnabled {
		http.NotFound(w, r)
		return
	}

	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (s *Server) monitorHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.monitor.Snapshot())
}

func (s *Server) monitorResetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.monitor.Reset()
	w.WriteHeader(http.StatusNoContent)
}
