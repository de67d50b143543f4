// Package server contains HTTP and WebSocket handlers for the community feed API.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	_ "quadra/docs" // swagger docs
	"quadra/internal/bootstrap"
	"quadra/internal/cache"
	"quadra/internal/config"
	"quadra/internal/featureflags"
	"quadra/internal/middleware"
	"quadra/internal/models"
	"quadra/internal/notifications"
	"quadra/internal/repository"
	"quadra/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config            *config.Config
	db                *gorm.DB
	redis             *redis.Client
	app               *fiber.App
	promMiddleware    *fiberprometheus.FiberPrometheus
	shutdownCtx       context.Context
	shutdownFn        context.CancelFunc
	viewerAuth        *middleware.ViewerAuth
	limiter           *middleware.RouteLimiter
	profileRepo       repository.ProfileRepository
	postRepo          repository.PostRepository
	commentRepo       repository.CommentRepository
	notifier          *notifications.Notifier
	hub               *notifications.Hub
	featureFlags      *featureflags.Manager
	profileService    *service.ProfileService
	feedService       *service.FeedService
	engagementService *service.EngagementService
	mutationService   *service.MutationService
}

// NewServer creates a new server instance with all dependencies. A missing
// Redis degrades to uncached profiles and in-process events.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{SeedFixture: cfg.SeedFixture})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and
// optionally performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, fmt.Errorf("server requires a database")
	}

	limits, err := middleware.ParseLimits(cfg.RateLimits)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMITS: %w", err)
	}

	ttl := cache.ProfileTTL
	if cfg.ProfileCacheTTL > 0 {
		ttl = time.Duration(cfg.ProfileCacheTTL) * time.Second
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("quadra-api"),
		viewerAuth:     middleware.NewViewerAuth(cfg.JWTSecret, cfg.JWTIssuer),
		limiter:        middleware.NewRouteLimiter(redisClient, limits),
		profileRepo:    repository.NewProfileRepository(db),
		postRepo:       repository.NewPostRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
	}

	server.profileService = service.NewProfileService(server.profileRepo, ttl)
	server.feedService = service.NewFeedService(server.postRepo, server.commentRepo, server.profileService)
	server.engagementService = service.NewEngagementService(server.postRepo, server.commentRepo, server.notifier)
	server.mutationService = service.NewMutationService(server.postRepo, server.commentRepo, server.profileService, server.notifier)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Propagates the request id into the user context for logging
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Muitas requisições. Tente novamente em instantes.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	api.Get("/topics", s.GetTopics)
	api.Get("/feed", s.viewerAuth.OptionalViewer(), s.GetFeed)

	posts := api.Group("/posts")
	posts.Get("/:id", s.viewerAuth.OptionalViewer(), s.GetPost)
	posts.Get("/:id/comments", s.viewerAuth.OptionalViewer(), s.GetComments)
	posts.Post("/", s.viewerAuth.ViewerRequired(),
		s.limiter.For(middleware.LimitCreatePost), s.CreatePost)
	posts.Post("/:id/like", s.viewerAuth.ViewerRequired(),
		s.limiter.For(middleware.LimitLike), s.TogglePostLike)
	posts.Post("/:id/comments", s.viewerAuth.ViewerRequired(),
		s.limiter.For(middleware.LimitCreateComment), s.CreateComment)

	comments := api.Group("/comments")
	comments.Post("/:id/like", s.viewerAuth.ViewerRequired(),
		s.limiter.For(middleware.LimitLike), s.ToggleCommentLike)

	profiles := api.Group("/profiles")
	profiles.Put("/me", s.viewerAuth.ViewerRequired(), s.UpdateMyProfile)
	profiles.Get("/:id", s.GetProfile)

	api.Get("/flags", s.viewerAuth.OptionalViewer(), s.GetFeatureFlags)

	ws := api.Group("/ws")
	ws.Get("/feed", s.viewerAuth.OptionalViewer(), s.WebSocketFeedHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Only the database decides
// readiness; Redis is reported but optional.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "degraded"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"live_sessions": s.hub.Count(),
		"time":          time.Now(),
	})
}

// newApp builds the Fiber app with middleware and routes and wires the live
// feed hub to the notifier.
func (s *Server) newApp(ctx context.Context) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Quadra Community API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	if err := s.hub.StartWiring(ctx, s.notifier); err != nil {
		log.Printf("failed to start %s wiring: %v", s.hub.Name(), err)
	}
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.newApp(ctx)

	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		log.Printf("error shutting down %s: %v", s.hub.Name(), err)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
