// Package bootstrap monta as peças comuns aos servidores (gateway e
// example-server) a partir do config: logger, Redis, rate limiter, stats e o
// http.Server com shutdown gracioso.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"auth-gateway/config"
	"auth-gateway/middleware/auth"
	"auth-gateway/middleware/auth/application"
	authinfra "auth-gateway/middleware/auth/infra"
	"auth-gateway/middleware/ratelimit"
	rlapp "auth-gateway/middleware/ratelimit/application"
	"auth-gateway/middleware/ratelimit/domain"
	rlinfra "auth-gateway/middleware/ratelimit/infra"
	"auth-gateway/middleware/stats"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func SetupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

// OpenRedis conecta e faz um ping curto; nil, nil quando nada usa Redis.
func OpenRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if !cfg.UsesRedis() {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	return rdb, nil
}

// NewLimiter devolve nil com rate limit desligado. O janitor do store em
// memória para quando ctx for cancelado.
func NewLimiter(ctx context.Context, cfg config.RateLimitConfig, rdb redis.UniversalClient) *rlapp.Limiter {
	if cfg.Disabled {
		return nil
	}

	var store domain.WindowStore
	if cfg.Store == config.StoreRedis && rdb != nil {
		store = rlinfra.NewRedisStore(rdb, rlinfra.WithKeyPrefix(cfg.RedisPrefix))
	} else {
		mem := rlinfra.NewMemoryStore(rlinfra.WithCleanupEvery(cfg.CleanupEvery))
		mem.StartJanitor(ctx)
		store = mem
	}
	return &rlapp.Limiter{Store: store, Limit: cfg.Limit, Window: cfg.Window}
}

// RateLimitOptions traduz o config para as opções do middleware.
func RateLimitOptions(cfg config.RateLimitConfig, l *rlapp.Limiter, rec stats.Recorder, logger *slog.Logger) ratelimit.Options {
	opts := ratelimit.Options{
		Stats:               rec,
		Logger:              logger,
		KeyHeader:           cfg.KeyHeader,
		TrustXForwardedFor:  cfg.TrustXFF,
		AddRateLimitHeaders: cfg.AddHeaders,
	}
	// nil tipado dentro da interface desligaria a checagem de nil do middleware
	if l != nil {
		opts.Limiter = l
	}
	return opts
}

// NewStats registra o contador Prometheus e, se configurado, o recorder Redis.
func NewStats(cfg config.StatsConfig, rdb redis.UniversalClient, reg prometheus.Registerer) (stats.Recorder, error) {
	prom, err := stats.NewPrometheus(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	rec := stats.Multi{prom}
	if cfg.RedisEnabled && rdb != nil {
		rec = append(rec, stats.NewRedis(rdb,
			stats.WithPrefix(cfg.Prefix),
			stats.WithTTL(cfg.TTL),
			stats.WithBucket(cfg.Bucket),
			stats.WithRedisTrackKeys(cfg.TrackKeys),
		))
	}
	return rec, nil
}

// NewAuthWrapper monta validator -> gate -> wrapper.
func NewAuthWrapper(cfg config.AuthConfig, rec stats.Recorder, logger *slog.Logger) *auth.Wrapper {
	v := authinfra.NewUserInfoValidator(cfg.ServerURL,
		authinfra.WithTimeout(cfg.Timeout),
		authinfra.WithRateLimit(cfg.RPS, cfg.Burst),
		authinfra.WithLogger(logger),
	)
	return auth.NewWrapper(application.NewGate(v),
		auth.WithStats(rec),
		auth.WithLogger(logger),
	)
}

func NewServer(cfg config.HTTPConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Serve roda srv até ctx ser cancelado e então faz shutdown gracioso.
func Serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
