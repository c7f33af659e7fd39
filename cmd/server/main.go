package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/netledger/netledger/internal/api/handlers"
	"github.com/netledger/netledger/internal/api/middleware"
	"github.com/netledger/netledger/internal/api/router"
	"github.com/netledger/netledger/internal/apikey"
	"github.com/netledger/netledger/internal/ledger"
	"github.com/netledger/netledger/internal/ledger/postgres"
	"github.com/netledger/netledger/internal/ledger/rediscache"
	"github.com/netledger/netledger/pkg/config"
	"github.com/netledger/netledger/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewDefault(cfg.Env)
	log.Info("Starting NetLedger API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	pool, err := postgres.NewPool(ctx, postgres.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: int32(cfg.PgMaxConns),
		MinConns: int32(cfg.PgMinConns),
	})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	log.Info("Database connection established")

	repo := postgres.New(pool)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Redis connection established")

	balanceCache := rediscache.New(redisClient, log)

	notifier := ledger.NewNotifier(log)
	rediscache.SubscribeInvalidation(notifier, balanceCache)

	clock := ledger.RealClock{}
	entries := ledger.NewEntryStore(repo.Entries())
	accounts := ledger.NewAccountRegistry(repo.Accounts(), entries, clock)
	core := ledger.NewLedgerCore(repo, accounts, entries, clock, notifier)
	tracedCore := ledger.NewTracedCore(core)

	keySvc := apikey.NewService(repo.ApiKeys(), clock, log)

	if err := bootstrapAdminKey(ctx, keySvc, cfg.BootstrapAdminKeyName, log); err != nil {
		log.Error("Failed to bootstrap admin api key", "error", err)
		os.Exit(1)
	}

	accountHandler := handlers.NewAccountHandler(tracedCore).WithBalanceCache(balanceCache)
	entryHandler := handlers.NewEntryHandler(tracedCore)
	apiKeyHandler := handlers.NewApiKeyHandler(keySvc)
	healthHandler := handlers.NewHealthHandler(pool)

	r := router.New(router.Config{
		Logger:         log,
		AllowedOrigins: cfg.AllowedOrigins,
		AccountHandler: accountHandler,
		EntryHandler:   entryHandler,
		ApiKeyHandler:  apiKeyHandler,
		HealthHandler:  healthHandler,
		ApiKeyAuth:     middleware.ApiKeyAuth(keySvc),
		RequireAdmin:   middleware.RequireAdmin,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped gracefully")
}

// bootstrapAdminKeyNamespace scopes the deterministic guid bootstrapAdminKey
// derives its admin key guid from, so it never collides with a randomly
// issued key's guid space.
var bootstrapAdminKeyNamespace = uuid.MustParse("6f6e1b0a-6e6f-4f6c-9f6d-6e6574706164")

// bootstrapAdminKey mints a single admin api key on first startup so an
// operator always has a credential to issue further keys through the API.
// It is a no-op once that key already exists.
func bootstrapAdminKey(ctx context.Context, svc *apikey.Service, name string, log *logger.Logger) error {
	guid := uuid.NewSHA1(bootstrapAdminKeyNamespace, []byte(name))

	issued, created, err := svc.EnsureAdminKey(ctx, guid, name)
	if err != nil {
		return err
	}
	if !created {
		log.Info("Admin api key already bootstrapped", "guid", guid, "name", name)
		return nil
	}

	log.Info("Bootstrapped admin api key", "guid", issued.Key.Guid, "name", issued.Key.Name)
	log.Info("Admin api key token (save this, it will not be shown again)", "token", issued.Token)
	return nil
}
