package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-storefront/internal/checkin"
	checkin_api "ms-storefront/internal/checkin/api"
	checkindb "ms-storefront/internal/checkin/db"
	"ms-storefront/internal/checkin/qr"
	"ms-storefront/internal/config"
	"ms-storefront/internal/database/migrations"
	"ms-storefront/internal/events"
	events_api "ms-storefront/internal/events/api"
	eventsdb "ms-storefront/internal/events/db"
	"ms-storefront/internal/inventory"
	"ms-storefront/internal/kafka"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/order"
	orderdb "ms-storefront/internal/order/db"
	"ms-storefront/internal/order/order_api"
	"ms-storefront/internal/payment/barion"
	"ms-storefront/internal/reconcile"
	reconcile_api "ms-storefront/internal/reconcile/api"
	redislock "ms-storefront/internal/reconcile/redis"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	log.Info("DATABASE", "PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Storefront Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	log.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	if cfg.Database.AutoMigrate {
		log.Info("DATABASE", "Running schema migrations")
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: cfg.Database.MigrationsDir,
			AutoMigrate:   true,
		})
		if err := runner.MigrateUp(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
		}
		if err := runner.Close(); err != nil {
			log.Warn("DATABASE", fmt.Sprintf("Failed to close migrator: %v", err))
		}
	}

	var producer *kafka.Producer
	var publisher reconcile.Publisher
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers)
		publisher = producer
		defer producer.Close()
		log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for brokers %v", cfg.Kafka.Brokers))

		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, kafka.AllTopics()); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
	} else {
		log.Warn("KAFKA", "Kafka disabled, domain events will not be published")
	}

	eventService := events.NewEventService(eventsdb.NewDB(bunDB), log)
	orderService := order.NewOrderService(&orderdb.DB{Bun: bunDB}, eventService, log)
	ledger := inventory.NewLedger(bunDB)
	checkinService := checkin.NewCheckinService(checkindb.NewDB(bunDB), publisher, log)
	qrGenerator := qr.NewGenerator(cfg.App.BaseURL)

	var gateway order_api.Gateway
	barionClient := barion.NewClient(cfg.Barion, log)
	if barionClient.Configured() {
		gateway = barionClient
		log.Info("GATEWAY", fmt.Sprintf("Payment gateway configured at %s", cfg.Barion.BaseURL))
	} else {
		log.Warn("GATEWAY", "BARION_POS_KEY not set, checkout will not open payments")
	}

	engine := reconcile.NewEngine(
		orderService,
		barionClient,
		ledger,
		publisher,
		redislock.NewLock(redisClient, cfg.Redis.LockTTL),
		log,
	)

	orderHandler := order_api.NewHandler(orderService, gateway, eventService, publisher, cfg.App, log)
	reconcileHandler := reconcile_api.NewHandler(engine, cfg.Barion, cfg.App.BaseURL, log)
	checkinHandler := checkin_api.NewHandler(checkinService, qrGenerator, log)
	eventHandler := events_api.NewHandler(eventService, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", eventHandler.ListEvents)
		r.Post("/events", eventHandler.CreateEvent)
		r.Get("/events/{eventId}", eventHandler.GetEvent)

		r.Post("/checkout", orderHandler.Checkout)
		r.Get("/orders/{orderId}", orderHandler.GetOrder)

		r.Get("/payment/callback", reconcileHandler.Callback)
		r.Post("/payment/webhook", reconcileHandler.Webhook)

		r.Post("/checkin", checkinHandler.Checkin)
		r.Get("/tickets/{token}", checkinHandler.GetTicket)
		r.Get("/tickets/{token}/qr", checkinHandler.GetTicketQR)
	})
	log.Info("ROUTER", "Storefront routes registered under /api")

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Storefront Service running on %s", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Server shut down cleanly")
	}
}
