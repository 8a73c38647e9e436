package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/noteduco342/chatsync/internal/cache"
	"github.com/noteduco342/chatsync/internal/config"
	"github.com/noteduco342/chatsync/internal/events"
	"github.com/noteduco342/chatsync/internal/handlers"
	"github.com/noteduco342/chatsync/internal/middleware"
	"github.com/noteduco342/chatsync/internal/repository"
	"github.com/noteduco342/chatsync/internal/service"
	"github.com/noteduco342/chatsync/internal/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	migrateOnly := pflag.Bool("migrate-only", false, "run database migrations and exit")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	config.SetupLogger(cfg.LogLevel, cfg.LogPretty)

	// Initialize database connection
	db, err := repository.InitDB(cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := repository.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	if *migrateOnly {
		log.Info().Msg("Migrations applied")
		return
	}

	// Redis backs the caches and, when EVENT_BUS=redis, the event bus.
	redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(); err != nil {
		if cfg.EventBus == config.BusRedis {
			log.Fatal().Err(err).Msg("Redis is required for EVENT_BUS=redis")
		}
		log.Warn().Err(err).Msg("Redis connection failed, running without cache")
		_ = redisCache.Close()
		redisCache = nil
	} else {
		log.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache connected")
	}

	messageCache := cache.NewMessageCache(redisCache)
	userCache := cache.NewUserCache(redisCache)

	var bus events.Bus
	var closeBus func() error
	if cfg.EventBus == config.BusRedis {
		rb := events.NewRedisBus(redisCache.Client(), "chatsync:")
		bus, closeBus = rb, rb.Close
	} else {
		mb := events.NewMemoryBus()
		bus, closeBus = mb, mb.Close
	}
	dispatcher := events.NewDispatcher(bus, events.DispatcherConfig{
		QueueSize:   cfg.PublishQueueSize,
		MaxAttempts: cfg.PublishMaxAttempts,
		RetryDelay:  cfg.PublishRetryDelay,
	})

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)

	// Initialize S3/MinIO storage (best-effort; uploads return 503 if missing)
	var s3Store *storage.S3Storage
	var objectStore service.ObjectStore
	if s3cfg, err := storage.S3ConfigFrom(cfg); err != nil {
		log.Warn().Err(err).Msg("S3 storage not configured")
	} else if st, err := storage.NewS3Storage(context.Background(), s3cfg); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize S3 storage")
	} else {
		s3Store, objectStore = st, st
		log.Info().Str("bucket", s3cfg.Bucket).Msg("S3 storage initialized")
	}

	// Initialize services
	presenceService := service.NewPresenceService(userRepo, userCache, dispatcher)
	authService := service.NewAuthService(userRepo, presenceService, cfg.JWTSecret, cfg.TokenTTL)
	authService.SetDefaultIdleTimeout(cfg.DefaultIdleTimeoutMs)
	userService := service.NewUserService(userRepo, dispatcher)
	conversationService := service.NewConversationService(conversationRepo, groupRepo)
	messageService := service.NewMessageService(messageRepo, conversationRepo, messageCache, dispatcher, cfg.MaxMessageLength)
	readService := service.NewReadService(messageRepo, conversationRepo, receiptRepo, messageCache, dispatcher)
	unreadService := service.NewUnreadService(receiptRepo, conversationRepo)
	groupService := service.NewGroupService(groupRepo, userRepo, conversationService)
	mediaService := service.NewMediaService(objectStore, cfg.PublicMediaBaseURL, cfg.MaxUploadBytes)
	avatarService := service.NewAvatarService(userRepo, mediaService)

	// Initialize handlers
	wsHandler := handlers.NewWebSocketHandler(userService, presenceService, conversationService, readService, dispatcher)
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService, presenceService)
	avatarHandler := handlers.NewAvatarHandler(avatarService)
	conversationHandler := handlers.NewConversationHandler(conversationService, messageService, readService)
	messageHandler := handlers.NewMessageHandler(messageService, readService)
	unreadHandler := handlers.NewUnreadHandler(unreadService)
	groupHandler := handlers.NewGroupHandler(groupService)
	mediaHandler := handlers.NewMediaHandler(mediaService, s3Store)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			if redisCache == nil {
				return nil
			}
			return redisCache.Client().Ping(ctx).Err()
		},
	})

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:   "chatsync",
		BodyLimit: int(cfg.MaxUploadBytes) + 1024*1024,
	})

	origins := cfg.Origins()
	csrfMode, err := middleware.ParseCSRFMode(cfg.CSRFMode)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-CS-CSRF",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		AllowCredentials: cfg.AllowedOrigins != "",
	}))

	// Public routes
	api := app.Group("/api", middleware.OriginAllowed(origins))
	api.Get("/health", healthHandler.GetHealth)
	api.Get("/users/check-username", userHandler.CheckUsername)
	api.Get("/media/attachments/*", mediaHandler.GetAttachment)

	auth := api.Group("/auth", limiter.New(limiter.Config{
		Max:        20,
		Expiration: time.Minute,
	}))
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/logout", middleware.AuthRequired(cfg.JWTSecret), middleware.CSRFRequired(csrfMode, origins), authHandler.Logout)

	// Protected routes
	protected := api.Group("/", middleware.AuthRequired(cfg.JWTSecret), middleware.CSRFRequired(csrfMode, origins))
	protected.Get("/users/me", userHandler.GetCurrentUser)
	protected.Put("/users/me/settings", userHandler.UpdateSettings)
	protected.Put("/users/me/status", userHandler.SetStatus)
	protected.Post(
		"/users/me/avatar",
		limiter.New(limiter.Config{
			Max:        10,
			Expiration: 10 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				if uid, err := middleware.UserID(c); err == nil {
					return "avatar:" + strconv.FormatUint(uint64(uid), 10)
				}
				return c.IP()
			},
		}),
		avatarHandler.UploadMyAvatar,
	)
	protected.Delete("/users/me/avatar", avatarHandler.DeleteMyAvatar)
	protected.Get("/users", userHandler.Roster)
	protected.Get("/users/:id", userHandler.GetUser)

	protected.Post("/conversations/resolve", conversationHandler.Resolve)
	protected.Get("/conversations", conversationHandler.List)
	protected.Get("/conversations/:id", conversationHandler.Get)
	protected.Patch("/conversations/:id", conversationHandler.Rename)
	protected.Get("/conversations/:id/messages", conversationHandler.Messages)
	protected.Post("/conversations/:id/messages", conversationHandler.Send)
	protected.Post("/conversations/:id/read", conversationHandler.MarkRead)

	protected.Patch("/messages/:id", messageHandler.Update)
	protected.Delete("/messages/:id", messageHandler.Delete)
	protected.Post("/messages/:id/read", messageHandler.MarkRead)

	protected.Get("/unread", unreadHandler.Counts)
	protected.Get("/unread/:conversationId", unreadHandler.CountFor)

	// Group routes
	protected.Post("/groups", groupHandler.CreateGroup)
	protected.Get("/groups", groupHandler.GetMyGroups)
	protected.Get("/groups/:id", groupHandler.GetGroup)
	protected.Patch("/groups/:id", groupHandler.UpdateGroup)
	protected.Post("/groups/:id/members", groupHandler.AddMember)
	protected.Delete("/groups/:id/members/:userId", groupHandler.RemoveMember)

	protected.Post(
		"/media",
		limiter.New(limiter.Config{
			Max:        60,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				if uid, err := middleware.UserID(c); err == nil {
					return "media:" + strconv.FormatUint(uint64(uid), 10)
				}
				return c.IP()
			},
		}),
		mediaHandler.Upload,
	)

	// WebSocket route (websocket upgrade needs special handling)
	app.Use("/ws", middleware.OriginAllowed(origins), middleware.AuthRequired(cfg.JWTSecret), wsHandler.Upgrade)
	app.Get("/ws", websocket.New(wsHandler.HandleWebSocket))

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	wsHandler.GetHub().CloseAll()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Event dispatcher did not drain")
	}
	if err := closeBus(); err != nil {
		log.Error().Err(err).Msg("Closing event bus failed")
	}
	if redisCache != nil {
		_ = redisCache.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
