package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fjod/go_market/internal/auth"
	cartcache "github.com/fjod/go_market/internal/cart/cache"
	cartrepo "github.com/fjod/go_market/internal/cart/repository"
	cartservice "github.com/fjod/go_market/internal/cart/service"
	catalogrepo "github.com/fjod/go_market/internal/catalog/repository"
	checkoutservice "github.com/fjod/go_market/internal/checkout/service"
	"github.com/fjod/go_market/internal/httpapi"
	orderpublisher "github.com/fjod/go_market/internal/order/publisher"
	orderrepo "github.com/fjod/go_market/internal/order/repository"
	orderservice "github.com/fjod/go_market/internal/order/service"
	pg "github.com/fjod/go_market/internal/postgres"
	userrepo "github.com/fjod/go_market/internal/user/repository"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	HTTPPort        string
	JWTSecret       string
	CatalogDBPath   string
	Mongo           cartrepo.MongoConfig
	RedisAddr       string
	KafkaBrokers    []string
	Postgres        pg.Credentials
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change-me"),
		CatalogDBPath: getEnv("CATALOG_DB_PATH", "catalog.db"),
		Mongo: cartrepo.MongoConfig{
			URI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:    getEnv("MONGO_DATABASE", "market"),
			MaxPoolSize: uint64(getEnvInt("MONGO_MAX_POOL_SIZE", 100)),
			MinPoolSize: uint64(getEnvInt("MONGO_MIN_POOL_SIZE", 10)),
		},
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:  strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		Postgres: pg.Credentials{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			DBName:   getEnv("POSTGRES_DB", "market"),
		},
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catalog (sqlite)
	catalog, err := catalogrepo.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		log.Fatalf("failed to open catalog database: %v", err)
	}
	defer catalog.Close()
	if err := catalog.RunMigrations("internal/catalog/repository/migrations"); err != nil {
		log.Fatalf("failed to run catalog migrations: %v", err)
	}

	// Users and orders (shared Postgres pool)
	db, err := pg.Connect(&cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	users := userrepo.NewRepository(db)
	if err := users.RunMigrations("internal/user/repository/migrations"); err != nil {
		log.Fatalf("failed to run user migrations: %v", err)
	}

	orders := orderrepo.NewRepository(db)
	if err := orders.RunMigrations("internal/order/repository/migrations"); err != nil {
		log.Fatalf("failed to run order migrations: %v", err)
	}

	// Carts (MongoDB)
	mongoClient, mongoDB, err := cartrepo.ConnectMongoDB(ctx, cfg.Mongo)
	if err != nil {
		log.Fatalf("failed to connect to mongodb: %v", err)
	}
	defer func() {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			log.Printf("failed to disconnect mongodb client: %v", err)
		}
	}()
	if err := cartrepo.EnsureIndexes(ctx, mongoDB); err != nil {
		log.Fatalf("failed to ensure cart indexes: %v", err)
	}
	carts := cartrepo.NewMongoRepository(mongoDB)

	// Cart cache (Redis)
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	cache := cartcache.NewRedisCache(redisClient)

	// Services
	issuer := auth.NewTokenIssuer(cfg.JWTSecret)
	locks := cartservice.NewVendorLocks()
	cartSvc := cartservice.NewCartService(carts, cache, catalog, users, locks)
	checkoutSvc := checkoutservice.NewCheckoutService(carts, cache, orders, catalog, locks)
	orderSvc := orderservice.NewOrderService(orders)

	// Outbox poller publishes order events to Kafka.
	poller := orderpublisher.NewOutboxPoller(orders, cfg.KafkaBrokers...)
	go poller.Run(ctx)

	router := httpapi.NewRouter(httpapi.Handlers{
		Auth:     httpapi.NewAuthHandler(users, issuer),
		Products: httpapi.NewProductHandler(catalog),
		Cart:     httpapi.NewCartHandler(cartSvc),
		Checkout: httpapi.NewCheckoutHandler(checkoutSvc),
		Orders:   httpapi.NewOrdersHandler(orderSvc),
	}, issuer, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "go_market"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	cancel() // stops the outbox poller

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
