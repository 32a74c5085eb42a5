package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"auth-gateway/config"
	"auth-gateway/internal/bootstrap"
	"auth-gateway/middleware/auth"
	"auth-gateway/middleware/cors"
	"auth-gateway/middleware/httpjson"
	"auth-gateway/middleware/ratelimit"
	"auth-gateway/middleware/requestlog"
	"auth-gateway/middleware/stats"
)

// Exemplo: a autorização injetada direto no webserver, sem proxy.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "example-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger := bootstrap.SetupLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rdb, err := bootstrap.OpenRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	mem := stats.NewMemory()
	limiter := bootstrap.NewLimiter(ctx, cfg.RateLimit, rdb)

	h := newHandler(handlerDeps{
		Logger:    logger,
		Wrapper:   bootstrap.NewAuthWrapper(cfg.Auth, mem, logger),
		Stats:     mem,
		RateLimit: bootstrap.RateLimitOptions(cfg.RateLimit, limiter, mem, logger),
		Concurrency: ratelimit.ConcurrencyOptions{
			Max:            cfg.Concurrency.Max,
			AcquireTimeout: cfg.Concurrency.AcquireTimeout,
			Logger:         logger,
		},
		CORS: cors.Options{
			AllowOrigin:  cfg.CORS.AllowOrigin,
			AllowMethods: cfg.CORS.AllowMethods,
			AllowHeaders: cfg.CORS.AllowHeaders,
		},
	})

	logger.Info("example server listening", "addr", cfg.HTTP.Addr(), "auth_server", cfg.Auth.ServerURL)
	return bootstrap.Serve(ctx, bootstrap.NewServer(cfg.HTTP, h), cfg.HTTP.ShutdownTimeout)
}

type handlerDeps struct {
	Logger      *slog.Logger
	Wrapper     *auth.Wrapper
	Stats       *stats.Memory
	RateLimit   ratelimit.Options
	Concurrency ratelimit.ConcurrencyOptions
	CORS        cors.Options
}

func newHandler(d handlerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		requestlog.Recover(d.Logger),
		requestlog.RequestID(),
		requestlog.Logging(d.Logger),
		cors.Headers(d.CORS),
		ratelimit.Middleware(d.RateLimit),
		ratelimit.ConcurrencyMiddleware(d.Concurrency),
		cors.Preflight,
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		_ = httpjson.Error(w, http.StatusNotFound, "not found")
	})

	a := &api{catalog: newCatalog(), stats: d.Stats}
	a.routes(r, d.Wrapper)
	return r
}
