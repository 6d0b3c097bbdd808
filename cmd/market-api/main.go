package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/bazaar/internal/adapters/cache"
	"github.com/floroz/bazaar/internal/adapters/carts"
	"github.com/floroz/bazaar/internal/adapters/database"
	"github.com/floroz/bazaar/internal/adapters/events"
	"github.com/floroz/bazaar/internal/adapters/metrics"
	"github.com/floroz/bazaar/internal/adapters/payments"
	"github.com/floroz/bazaar/internal/config"
	"github.com/floroz/bazaar/internal/market"
	"github.com/floroz/bazaar/migrations"
	pkgdb "github.com/floroz/bazaar/pkg/database"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply database migrations before starting")
	flag.Parse()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Postgres
	if *migrate {
		if err := pkgdb.Migrate(ctx, cfg.DB.URL, migrations.FS, "."); err != nil {
			logger.Error("Migrations failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Migrations applied")
	}

	pool, err := pkgdb.Connect(ctx, cfg.DB.URL)
	if err != nil {
		logger.Error("Unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Postgres Connected")

	// 2. Redis (optional): carts and receipt cache
	var (
		cartStore    market.CartStore = carts.NewMemoryCartStore()
		receiptCache market.ReceiptCache
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis connection failed, using in-memory carts", "error", err)
		} else {
			logger.Info("Redis Connected")
			cartStore = carts.NewRedisCartStore(rdb)
			receiptCache = cache.NewRedisReceiptCache(rdb, cfg.Redis.ReceiptTTL)
		}
	}

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	registry.MustRegister(metrics.NewOutboxBacklog(outboxRepo, 2*time.Second, logger))

	// 4. Service, restored from storage
	svc := market.NewService(market.Dependencies{
		TxManager: pkgdb.NewPostgresTransactionManager(pool, cfg.DB.LockTimeout),
		Shops:     database.NewPostgresShopRepository(pool),
		Auctions:  database.NewPostgresAuctionRepository(pool),
		Purchases: database.NewPostgresPurchaseRepository(pool),
		Outbox:    outboxRepo,
		Carts:     cartStore,
		Payments:  payments.NewSandboxGateway(),
		Cache:     receiptCache,
		Metrics:   recorder,
		Logger:    logger,
	})
	if err := svc.LoadState(ctx); err != nil {
		logger.Error("Failed to restore market state", "error", err)
		os.Exit(1)
	}

	// 5. Outbox relay
	producer, err := events.NewMarketEventsProducer(pool, cfg.DB, cfg.Events, logger)
	if err != nil {
		logger.Error("Failed to create producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Use h2c for HTTP/2 without TLS
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting Market API", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting Outbox Relay...")
		return producer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Market API stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Market API stopped")
}
