package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"auth-gateway/config"
	"auth-gateway/internal/bootstrap"
	"auth-gateway/middleware/cors"
	"auth-gateway/middleware/ratelimit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
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
	if err := cfg.ValidateGateway(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	policy, _ := cfg.AuthPolicy()

	logger := bootstrap.SetupLogger(cfg.Env)
	slog.SetDefault(logger)

	target, err := url.Parse(cfg.Upstream.URL)
	if err != nil {
		return fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rdb, err := bootstrap.OpenRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := bootstrap.NewStats(cfg.Stats, rdb, reg)
	if err != nil {
		return err
	}

	limiter := bootstrap.NewLimiter(ctx, cfg.RateLimit, rdb)

	h := newRouter(routerDeps{
		Target:    target,
		Logger:    logger,
		Gatherer:  reg,
		Wrapper:   bootstrap.NewAuthWrapper(cfg.Auth, rec, logger),
		Policy:    policy,
		RateLimit: bootstrap.RateLimitOptions(cfg.RateLimit, limiter, rec, logger),
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

	logger.Info("gateway listening",
		"addr", cfg.HTTP.Addr(),
		"upstream", target.String(),
		"auth_server", cfg.Auth.ServerURL,
		"policy", policy.String(),
	)
	logger.Info("rate limit",
		"disabled", cfg.RateLimit.Disabled,
		"limit", cfg.RateLimit.Limit,
		"window", cfg.RateLimit.Window,
		"store", cfg.RateLimit.Store,
		"key_header", cfg.RateLimit.KeyHeader,
		"trust_xff", cfg.RateLimit.TrustXFF,
	)
	logger.Info("concurrency", "max", cfg.Concurrency.Max, "acquire_timeout", cfg.Concurrency.AcquireTimeout)
	logger.Info("cors", "origin", cfg.CORS.AllowOrigin, "methods", strings.Join(cfg.CORS.AllowMethods, ","))

	return bootstrap.Serve(ctx, bootstrap.NewServer(cfg.HTTP, h), cfg.HTTP.ShutdownTimeout)
}
