package router

import (
	"log"
	"time"

	"github.com/anonto42/meta-v/backend/internal/events"
	"github.com/anonto42/meta-v/backend/internal/handlers"
	"github.com/anonto42/meta-v/backend/internal/middleware"
	"github.com/anonto42/meta-v/backend/internal/realtime"
	"github.com/anonto42/meta-v/backend/internal/repositories"
	"github.com/anonto42/meta-v/backend/internal/repositories/memory"
	"github.com/anonto42/meta-v/backend/internal/services"
	"github.com/anonto42/meta-v/backend/pkg/storage"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
)

// Stores bundles the persistence collaborators of the services.
type Stores struct {
	Users         repositories.UserRepository
	Notifications repositories.NotificationRepository
	Posts         repositories.PostRepository
	Conversations repositories.ConversationRepository
	Messages      repositories.MessageRepository
	Repairs       repositories.RepairRepository
}

// MemoryStores returns stores backed by the in-memory repositories.
func MemoryStores() Stores {
	users := memory.NewUsers()
	return Stores{
		Users:         users,
		Notifications: users,
		Posts:         memory.NewPosts(),
		Conversations: memory.NewConversations(),
		Messages:      memory.NewMessages(),
		Repairs:       memory.NewRepairs(),
	}
}

// Options carries the infrastructure shared by the handlers.
type Options struct {
	Tokens   *services.TokenManager
	Firebase services.FirebaseVerifier
	Images   storage.ImageStore
	Hub      *realtime.Hub
	Saga     services.SagaConfig
}

// SetupRoutes builds the services over stores and registers every route
// under /api/v1.
func SetupRoutes(e *echo.Echo, stores Stores, opts Options) {
	if opts.Images == nil {
		opts.Images = storage.NewMemoryStore()
	}
	if opts.Hub == nil {
		opts.Hub = realtime.NewHub(nil)
	}

	// --- Services ---
	saga := services.NewSaga(stores.Users, stores.Repairs, opts.Saga)
	relationships := services.NewRelationshipService(stores.Users, saga)
	feed := services.NewFeedService(stores.Posts, stores.Users, opts.Images)
	profiles := services.NewProfileService(stores.Users, feed, opts.Images)
	notifications := services.NewNotificationService(stores.Notifications, stores.Users)
	messaging := services.NewMessagingService(stores.Conversations, stores.Messages, stores.Users)
	accounts := services.NewAccountService(stores.Users, opts.Tokens, opts.Firebase)

	// Notifications are persisted before the live push goes out.
	dispatcher := events.NewDispatcher(notifications, opts.Hub)

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)
	e.GET("/api/v1/health", handlers.HealthCheck)

	// --- Unprotected routes ---
	authGroup := e.Group("/api/v1/auth")
	authGroup.Use(eMiddleware.RateLimiter(eMiddleware.NewRateLimiterMemoryStoreWithConfig(
		eMiddleware.RateLimiterMemoryStoreConfig{Rate: 10, Burst: 20, ExpiresIn: 3 * time.Minute},
	)))
	authHandler := handlers.NewAuthHandler(accounts)
	authHandler.RegisterAuthRoutes(authGroup)
	log.Println("Auth routes configured.")

	public := e.Group("/api/v1")
	handlers.NewImageHandler(opts.Images).RegisterImageRoutes(public)

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1", middleware.JWTAuthMiddleware(opts.Tokens), middleware.ActivityMiddleware(profiles))

	authHandler.RegisterSessionRoutes(api)
	handlers.NewUserHandler(profiles, feed).RegisterProfileRoutes(api)
	handlers.NewFriendshipHandler(relationships, dispatcher).RegisterFriendshipRoutes(api)
	handlers.NewPostHandler(feed, dispatcher).RegisterPostRoutes(api)
	handlers.NewNotificationHandler(notifications).RegisterNotificationRoutes(api)
	handlers.NewConversationHandler(messaging, dispatcher).RegisterConversationRoutes(api)
	handlers.NewLiveHandler(opts.Hub).RegisterLiveRoutes(api)

	log.Println("All routes configured.")
}
