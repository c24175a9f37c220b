// Command server wires the live transport tracking core: storage, access
// resolver, rate limiter, state machine, websocket gateway, and the HTTP
// surface. Business logic lives in the internal packages; main only builds
// the graph and owns the lifecycle.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"caretrack/internal/access"
	"caretrack/internal/feed"
	"caretrack/internal/httpapi"
	"caretrack/internal/identity"
	"caretrack/internal/platform/config"
	"caretrack/internal/platform/httpserver"
	"caretrack/internal/platform/logger"
	"caretrack/internal/platform/metrics"
	platformredis "caretrack/internal/platform/redis"
	"caretrack/internal/privacy"
	"caretrack/internal/ratelimit"
	"caretrack/internal/ratelimit/store/bucket"
	"caretrack/internal/storage"
	"caretrack/internal/tracking"
	"caretrack/internal/ws"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	mx := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence: PostgreSQL when configured, in-memory otherwise.
	var (
		store      storage.Store
		storeCheck httpapi.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store, storeCheck = pg, pg
	} else {
		log.Warn("no database configured, using in-memory store")
		store = storage.NewInMemoryStore()
	}

	// Rate budgets: shared in Redis when configured, per-process otherwise.
	var budgets bucket.Store = bucket.NewInMemoryStore()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		budgets = bucket.NewRedisStore(redisClient.Client)
	}

	// Accepted-event feed, when brokers are configured.
	var pub feed.Publisher = feed.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := feed.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic,
			feed.WithKafkaLogger(log),
			feed.WithKafkaMetrics(mx),
		)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		pub = kafka
	}

	resolver := access.NewResolver(store, store)
	registry := ws.NewRegistry(resolver, mx)
	transform := privacy.New(privacy.Config{Disabled: cfg.DisablePrivacy})
	if cfg.DisablePrivacy {
		log.Warn("privacy transform disabled for all roles")
	}
	broadcaster := ws.NewBroadcaster(registry, transform, mx)
	machine := tracking.New(store, resolver, broadcaster,
		tracking.WithLogger(log),
		tracking.WithMetrics(mx),
		tracking.WithFeed(pub),
	)
	limiter := ratelimit.New(budgets, ratelimit.WithLogger(log))
	verifier := identity.NewJWTVerifier(cfg.JWTSigningKey, "caretrack", "caretrack-live")
	gateway := ws.NewGateway(verifier, registry, machine, limiter,
		ws.WithLogger(log),
		ws.WithMetrics(mx),
		ws.WithHandshakeTimeout(cfg.HandshakeTimeout),
	)

	handler := httpapi.NewHandler(gateway)
	handler.AddCheck("database", storeCheck)
	if redisClient != nil {
		handler.AddCheck("redis", redisClient)
	}
	srv := httpserver.New(cfg.Addr, httpapi.NewRouter(handler))

	log.Info("starting caretrack live core", "addr", cfg.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
