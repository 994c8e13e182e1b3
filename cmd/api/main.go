package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/inkwell/internal/auth"
	"github.com/geocoder89/inkwell/internal/cache"
	"github.com/geocoder89/inkwell/internal/config"
	httpx "github.com/geocoder89/inkwell/internal/http"
	"github.com/geocoder89/inkwell/internal/http/handlers"
	"github.com/geocoder89/inkwell/internal/observability"
	"github.com/geocoder89/inkwell/internal/redisclient"
	"github.com/geocoder89/inkwell/internal/security"
	"github.com/geocoder89/inkwell/internal/uploads"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		ServiceName: "inkwell-api",
		Env:         cfg.Env,
		Endpoint:    cfg.OTELEndpoint,
		SampleRatio: cfg.OTELSampleRatio,
	})
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	// metrics registry
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	st, err := openStores(ctx, cfg, prom, log)
	if err != nil {
		log.Error("store init failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer st.close()

	covers, err := uploads.NewStore(cfg.UploadDir)
	if err != nil {
		log.Error("upload dir init failed", "dir", cfg.UploadDir, "err", err)
		os.Exit(1)
	}

	responseCache, closeCache := newResponseCache(ctx, cfg, log)
	defer closeCache()

	router := httpx.NewRouter(log, cfg, httpx.Deps{
		Users:   st.users,
		Posts:   st.posts,
		Covers:  covers,
		Cache:   responseCache,
		Hasher:  security.NewHasher(cfg.BcryptCost),
		JWT:     auth.NewManager(cfg.JWTSecret, cfg.JWTTTL),
		Prom:    prom,
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Ping:    st.ping,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}

	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", "err", err)
	}

	log.Info("shutdown complete")
}

// newResponseCache uses redis when configured and reachable, otherwise an
// in-process cache.
func newResponseCache(ctx context.Context, cfg config.Config, log *slog.Logger) (handlers.ResponseCache, func()) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cfg.CacheTTL), func() {}
	}

	rc, err := redisclient.Connect(ctx, redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Warn("redis unreachable, using in-memory cache", "err", err)
		return cache.NewMemory(cfg.CacheTTL), func() {}
	}

	log.Info("response cache ready", "backend", "redis", "addr", cfg.RedisAddr)

	return cache.NewRedis(rc, cfg.CacheTTL), func() { _ = rc.Close() }
}
