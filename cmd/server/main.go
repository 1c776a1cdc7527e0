package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pricetrail/backend/config"
	httpDelivery "github.com/pricetrail/backend/internal/delivery/http"
	"github.com/pricetrail/backend/internal/domain"
	"github.com/pricetrail/backend/internal/infrastructure/cache"
	"github.com/pricetrail/backend/internal/infrastructure/crawler"
	"github.com/pricetrail/backend/internal/infrastructure/memstore"
	"github.com/pricetrail/backend/internal/infrastructure/postgres"
	"github.com/pricetrail/backend/internal/infrastructure/sessiondb"
	"github.com/pricetrail/backend/internal/infrastructure/strapi"
	"github.com/pricetrail/backend/internal/session"
	"github.com/pricetrail/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug := cfg.Server.Environment == "development"

	log.Printf("Starting PriceTrail Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Sites: %v", cfg.Snapshot.Sites)

	// Initialize infrastructure dependencies
	store, closeStore, err := openStore(ctx, cfg, debug)
	if err != nil {
		log.Fatalf("Failed to open price store: %v", err)
	}
	defer closeStore()

	memoryCache := cache.NewMemoryCache()
	defer memoryCache.Close()
	log.Printf("Cache TTL: %s", cfg.Cache.TTL)

	crawlClient := crawler.NewClient(cfg.Crawler.URL, cfg.Crawler.Timeout, cfg.Crawler.RequestsPerSecond)
	log.Printf("Crawler: %s (timeout %s)", cfg.Crawler.URL, cfg.Crawler.Timeout)

	sessionDB, err := sessiondb.Open(cfg.Session.Driver, cfg.Session.DSN)
	if err != nil {
		log.Fatalf("Failed to open session database: %v", err)
	}
	if sqlDB, err := sessionDB.DB(); err == nil {
		defer sqlDB.Close()
	}

	location, err := cfg.Snapshot.Location()
	if err != nil {
		log.Fatalf("Invalid snapshot timezone: %v", err)
	}
	log.Printf("Snapshot day boundary: %s", location)

	// Initialize usecase layer
	executor := usecase.NewSearchExecutor(crawlClient, cfg.Snapshot.Sites, debug)
	reconciler := usecase.NewSnapshotReconciler(store, usecase.ReconcilerConfig{Location: location})
	priceService := usecase.NewPriceService(
		memoryCache,
		executor,
		reconciler,
		usecase.PriceServiceConfig{CacheTTL: cfg.Cache.TTL},
	)
	sessions := session.NewManager(sessiondb.NewRepository(sessionDB))
	go sessions.Run(ctx, cfg.Session.SweepInterval, cfg.Session.IdleTimeout, cfg.Session.Retention)
	log.Printf("Sessions: idle eviction %s, retention %s", cfg.Session.IdleTimeout, cfg.Session.Retention)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(priceService, sessions)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

// openStore builds the configured price store and its cleanup func
func openStore(ctx context.Context, cfg *config.Config, debug bool) (domain.PriceStore, func(), error) {
	switch cfg.Store.Type {
	case "postgres":
		pool, err := postgres.Open(ctx, cfg.Store.PostgresDSN, cfg.Store.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Printf("Store: postgres")
		return store, pool.Close, nil

	case "memory":
		log.Printf("WARNING: Store: memory (records are lost on restart)")
		return memstore.New(), func() {}, nil

	default:
		client := strapi.NewClient(strapi.Config{
			BaseURL:           cfg.Store.BaseURL,
			APIToken:          cfg.Store.APIToken,
			Collection:        cfg.Store.Collection,
			PageSize:          cfg.Store.PageSize,
			Timeout:           cfg.Store.Timeout,
			RequestsPerSecond: cfg.Store.RequestsPerSecond,
		})
		if debug {
			client.SetDebug(true)
			log.Printf("Strapi client debug mode enabled")
		}
		if cfg.Store.APIToken == "" {
			log.Printf("Store: strapi %s/%s (no API token)", cfg.Store.BaseURL, cfg.Store.Collection)
		} else {
			log.Printf("Store: strapi %s/%s", cfg.Store.BaseURL, cfg.Store.Collection)
		}
		return client, func() {}, nil
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
