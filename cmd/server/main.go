package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/auth"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/config"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/metrics"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/middleware"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/rpc"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/service"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/storage/sqlstore"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/pkg/logging"
)

const tokenDuration = 12 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("Failed to load timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	store, err := sqlstore.New(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "driver", cfg.DB.Driver)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		slog.Error("Failed to register metrics", "error", err)
		os.Exit(1)
	}
	if err := metrics.RegisterDBGauges(reg, store.DB()); err != nil {
		slog.Error("Failed to register database gauges", "error", err)
		os.Exit(1)
	}

	// All services share one guard so they never touch the same title at once.
	opts := []service.Option{
		service.WithGuard(service.NewGuard()),
		service.WithLocation(loc),
		service.WithMetrics(m),
	}
	srv := rpc.NewServer(rpc.Services{
		Settlements: service.NewSettlementService(store, opts...),
		Notary:      service.NewNotaryService(store, opts...),
		Collection:  service.NewCollectionService(store, opts...),
		Imports:     service.NewImportService(store, opts...),
		Today:       func() time.Time { return models.Date(time.Now().In(loc)) },
	})

	var interceptors []connect.Interceptor
	if cfg.JWTSecret != "" {
		interceptors = append(interceptors, middleware.RequireAuth(auth.NewJWTManager(cfg.JWTSecret, tokenDuration)))
	} else {
		slog.Warn("JWT_SECRET not set, operators are taken from request bodies")
	}
	interceptors = append(interceptors, middleware.LoggingInterceptor(m))

	mux := http.NewServeMux()
	path, handler := rpc.NewHandler(srv, connect.WithInterceptors(interceptors...))
	mux.Handle(path, handler)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.DB().PingContext(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Add logging and CORS middleware
	loggedHandler := loggingMiddleware(corsMiddleware(mux))

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(loggedHandler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Connect server starting", "address", cfg.HTTPAddr, "timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		slog.Debug("Request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		next.ServeHTTP(w, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms, "+rpc.HeaderPartialSettlement+", "+rpc.HeaderPartialStep)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
