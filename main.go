package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"ms-venues/internal/auth"
	"ms-venues/internal/config"
	"ms-venues/internal/database"
	"ms-venues/internal/database/migrations"
	"ms-venues/internal/kafka"
	"ms-venues/internal/logger"
	"ms-venues/internal/utils"
	"ms-venues/internal/venues/cache"
	venue_db "ms-venues/internal/venues/db"
	"ms-venues/internal/venues/query"
	"ms-venues/internal/venues/service"
	"ms-venues/internal/venues/venue_api"
)

func newLogger(cfg config.LogConfig) *logger.Logger {
	log, err := logger.New(logger.Options{
		Dir:      cfg.Dir,
		Service:  "venue-service",
		MinLevel: logger.ParseLevel(cfg.Level),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v, falling back to terminal only\n", err)
		log, _ = logger.New(logger.Options{MinLevel: logger.ParseLevel(cfg.Level)})
	}
	return log
}

func runMigrations(bunDB *bun.DB, cfg config.MigrationsConfig, log *logger.Logger) error {
	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: cfg.Dir,
		AutoMigrate:   true,
		SeedData:      cfg.SeedData,
	}, log)
	// The runner is not closed: closing it would close bunDB too.
	return runner.RunMigrations()
}

func newVerifier(ctx context.Context, cfg config.AuthConfig, redisClient *redis.Client, log *logger.Logger) (auth.TokenVerifier, error) {
	var verifier auth.TokenVerifier
	switch {
	case cfg.OIDCIssuer != "":
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
		if err != nil {
			return nil, err
		}
		log.Info("AUTH", fmt.Sprintf("Verifying bearer tokens against OIDC issuer %s", cfg.OIDCIssuer))
		verifier = v
	case cfg.JWTSecret != "":
		log.Info("AUTH", "Verifying HS256 bearer tokens with JWT_SECRET")
		verifier = auth.NewHMACVerifier(cfg.JWTSecret)
	default:
		return nil, errors.New("neither OIDC_ISSUER nor JWT_SECRET is set")
	}

	if redisClient != nil && cfg.TokenCacheTTL > 0 {
		log.Info("AUTH", "Caching verified tokens in Redis")
		verifier = auth.NewCachingVerifier(verifier, redisClient, cfg.TokenCacheTTL, log)
	}
	return verifier, nil
}

type healthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func healthHandler(bunDB *bun.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := bunDB.PingContext(ctx); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, healthStatus{Status: "UNAVAILABLE", Message: "Database is unreachable"})
			return
		}
		utils.WriteJSON(w, http.StatusOK, healthStatus{Status: "OK", Message: "Service is healthy"})
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, ".env file not found, using environment variables")
	}

	cfg := config.Load()
	logger := newLogger(cfg.Log)
	defer logger.Close()

	logger.Info("APP", "Starting Venue Service initialization")

	ctx := context.Background()

	bunDB, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Migrations.AutoMigrate {
		logger.Info("MIGRATION", fmt.Sprintf("Applying migrations from %s", cfg.Migrations.Dir))
		if err := runMigrations(bunDB, cfg.Migrations, logger); err != nil {
			logger.Fatal("MIGRATION", fmt.Sprintf("Migration failed: %v", err))
		}
	}

	opts := []service.Option{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = cache.Connect(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("REDIS", err.Error())
		}
		defer redisClient.Close()
		opts = append(opts,
			service.WithCache(cache.NewCache(redisClient, cfg.Redis.CacheTTL)),
			service.WithLock(cache.NewLock(redisClient, cfg.Redis.LockTTL)),
		)
		logger.Info("REDIS", "Venue cache and mutation lock enabled")
	} else {
		logger.Warn("REDIS", "REDIS_ADDR not set, venue cache and mutation lock disabled")
	}

	if cfg.Kafka.Enabled {
		logger.Info("KAFKA", fmt.Sprintf("Using Kafka brokers %v", cfg.Kafka.Brokers))
		topics := []string{cfg.Kafka.VenuesTopic}
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, topics, logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		if err := kafka.VerifyTopics(ctx, cfg.Kafka.Brokers, topics, logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Venue events may be dropped: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.VenuesTopic, logger)
		defer producer.Close()
		opts = append(opts, service.WithEvents(producer))
		logger.Info("KAFKA", "Kafka producer initialized successfully")
	}

	verifier, err := newVerifier(ctx, cfg.Auth, redisClient, logger)
	if err != nil {
		logger.Fatal("AUTH", err.Error())
	}

	venueService := service.NewVenueService(&venue_db.DB{Bun: bunDB}, logger, opts...)
	venueHandler := venue_api.NewHandler(venueService, query.NewBuilder(query.Options{
		DefaultLimit: cfg.Query.DefaultLimit,
		MaxLimit:     cfg.Query.MaxLimit,
	}), logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(utils.RequestLogger(logger))

	// --- Public Routes ---
	r.Get("/health", healthHandler(bunDB))

	// --- Protected Routes ---
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(verifier, logger))
		venueHandler.RegisterRoutes(r)
	})
	logger.Info("ROUTER", "Venue routes registered under /api/venues")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("Venue Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "Venue Service shutdown complete")
	}
}
