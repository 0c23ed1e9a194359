package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/meta-v/backend/internal/realtime"
	"github.com/anonto42/meta-v/backend/internal/repositories"
	"github.com/anonto42/meta-v/backend/internal/repositories/memory"
	"github.com/anonto42/meta-v/backend/internal/router"
	"github.com/anonto42/meta-v/backend/internal/services"
	"github.com/anonto42/meta-v/backend/pkg/config"
	"github.com/anonto42/meta-v/backend/pkg/firebase"
	"github.com/anonto42/meta-v/backend/pkg/storage"
	"github.com/anonto42/meta-v/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	ctx := context.Background()

	stores := router.MemoryStores()
	if cfg.StorageDriver == config.DriverMongo {
		// Initialize database connections
		db, err := config.InitDB(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize databases: %v", err)
		}
		defer db.CloseDB()

		if stores, err = mongoStores(ctx, db); err != nil {
			log.Fatalf("Failed to prepare collections: %v", err)
		}
	} else {
		log.Println("Using in-memory storage; data is lost on restart.")
	}

	opts := router.Options{
		Tokens: services.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		Saga: services.SagaConfig{
			MaxAttempts:   cfg.SagaMaxAttempts,
			RetryInterval: cfg.SagaRetryInterval,
		},
	}

	// Initialize Firebase
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}
	if firebaseApp != nil {
		opts.Firebase = firebaseApp.AuthClient
	}

	if opts.Images, err = imageStore(ctx, cfg); err != nil {
		log.Fatalf("Failed to initialize image storage: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Successfully connected to Redis!")
	}
	opts.Hub = realtime.NewHub(redisClient)

	// Create Echo instance
	e := echo.New()
	e.Validator = validators.NewValidator()
	e.JSONSerializer = router.JSONSerializer{}

	// Setup global middleware
	config.SetupMiddleware(e)

	// Setup routes and dependencies
	router.SetupRoutes(e, stores, opts)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	opts.Hub.Close()
}

// indexer is implemented by the MongoDB repositories.
type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

func mongoStores(ctx context.Context, db *config.DB) (router.Stores, error) {
	users := repositories.NewMongoUserRepository(db.Database)
	posts := repositories.NewMongoPostRepository(db.Database)
	conversations := repositories.NewMongoConversationRepository(db.Database)
	messages := repositories.NewMongoMessageRepository(db.Database)

	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for _, ix := range []indexer{users, posts, conversations, messages} {
		if err := ix.EnsureIndexes(indexCtx); err != nil {
			return router.Stores{}, err
		}
	}

	stores := router.Stores{
		Users:         users,
		Notifications: repositories.NewMongoNotificationRepository(db.Database),
		Posts:         posts,
		Conversations: conversations,
		Messages:      messages,
	}
	if db.Postgres != nil {
		stores.Repairs = repositories.NewPostgresRepairRepository(db.Postgres)
	} else {
		log.Println("POSTGRES_URL not set, keeping the repair log in memory.")
		stores.Repairs = memory.NewRepairs()
	}
	return stores, nil
}

func imageStore(ctx context.Context, cfg *config.Config) (storage.ImageStore, error) {
	if cfg.MinIOEndpoint == "" {
		log.Println("MINIO_ENDPOINT not set, keeping images in memory.")
		return storage.NewMemoryStore(), nil
	}
	return storage.NewMinIOStore(ctx, storage.MinIOConfig{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		Bucket:    cfg.MinIOBucket,
		UseSSL:    cfg.MinIOUseSSL,
	})
}
