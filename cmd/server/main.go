package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "treasure-map/docs"
	"treasure-map/internal/client"
	"treasure-map/internal/config"
	"treasure-map/internal/domain/pending"
	"treasure-map/internal/domain/rating"
	api "treasure-map/internal/http"
	"treasure-map/internal/logging"
	"treasure-map/internal/metrics"
	"treasure-map/internal/platform/database"
	jwtpkg "treasure-map/internal/platform/jwt"
	"treasure-map/internal/repository/memory"
	"treasure-map/internal/repository/postgres"
	redisrepo "treasure-map/internal/repository/redis"
	"treasure-map/internal/worker"
)

const memoryStoreSize = 10000

// @title           Treasure Map Rating Gateway
// @version         1.0
// @description     Optimistic star ratings, likes and copies in front of the Treasure Map API
// @BasePath        /api/v1
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	api.SetLogger(logger)
	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	upstream := client.New(cfg.APIURL, cfg.UpstreamTimeout)
	checks := map[string]api.HealthCheck{}

	var (
		store   pending.Store
		janitor *worker.Janitor
	)
	switch cfg.PendingStore {
	case "redis":
		rdb, err := database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connect error: %v", err)
		}
		defer rdb.Close()
		store = redisrepo.NewPendingStore(rdb, cfg.PendingTTL)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	case "postgres":
		db, err := database.NewPostgres(ctx, cfg.DB_DSN)
		if err != nil {
			log.Fatalf("db connect error: %v", err)
		}
		defer db.Close()
		repo := postgres.NewPendingRepo(db, cfg.PendingTTL)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("db schema error: %v", err)
		}
		store = repo
		janitor = worker.NewJanitor(repo, cfg.PendingTTL, logger)
		checks["postgres"] = db.PingContext
	default:
		store = memory.NewPendingStore(memoryStoreSize, cfg.PendingTTL)
	}
	logger.Info("pending action store ready", "store", cfg.PendingStore, "ttl", cfg.PendingTTL)

	events := make(chan rating.Event, 100)
	statsWorker := worker.NewStatsWorker(events, logger)

	ratingSvc := rating.NewService(rating.NewAggregator(cfg.MaxEarliestContributors, cfg.MaxStars), upstream, events)
	pendingSvc := pending.NewService(store, upstream, logger)

	router := api.NewRouter(api.Deps{
		Ratings:      ratingSvc,
		Pending:      pendingSvc,
		Items:        upstream,
		Stats:        statsWorker,
		JWT:          jwtpkg.NewManager(cfg.JWTSecret, cfg.JWTIssuer),
		Checks:       checks,
		LoginPath:    cfg.LoginPath,
		CookieSecure: cfg.CookieSecure,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go statsWorker.Run(ctx)
	if janitor != nil {
		go janitor.Run(ctx)
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr, "api_url", cfg.APIURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown error: %v", err)
	}

	logger.Info("server stopped")
}
