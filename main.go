package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bingo-event-system/cache"
	"bingo-event-system/config"
	"bingo-event-system/handlers"
	"bingo-event-system/identity"
	"bingo-event-system/middleware"
	"bingo-event-system/models"
	"bingo-event-system/notifications"
	"bingo-event-system/services"
	"bingo-event-system/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	views := newViewCache(cfg)

	var sender notifications.Sender
	if cfg.PushEnabled() {
		sender = notifications.NewWebPushSender(notifications.VAPIDConfig{
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			Subject:    cfg.VAPIDSubject,
		})
	} else {
		log.Println("⚠️  VAPID keys not set, push notifications are disabled")
	}
	dispatcher := notifications.NewDispatcher(db, sender, cfg.PushConcurrency)

	var uploader storage.Uploader
	if cfg.AvatarUploadsEnabled() {
		r2, err := storage.NewR2Uploader(ctx, storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			Bucket:          cfg.R2BucketName,
			CDNBaseURL:      cfg.CDNBaseURL,
		})
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		uploader = r2
	} else {
		log.Println("⚠️  R2_BUCKET_NAME not set, avatar uploads are disabled")
	}

	provider, err := newIdentityProvider(cfg)
	if err != nil {
		log.Fatal(err)
	}

	eventService := services.NewEventService(db, dispatcher, views)
	cardService := services.NewCardService(db, dispatcher, views, cfg.AllowOwnerSelfValidation)
	leaderboardService := services.NewLeaderboardService(db, views)
	profileService := services.NewProfileService(db, uploader, views)

	reconciler := services.NewScoreReconciler(db, views, cfg.ScoreReconcileInterval)
	if err := reconciler.Start(); err != nil {
		log.Fatal("failed to start score reconciler:", err)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 4 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(logger.New())

	allowedOrigins := strings.Join(cfg.AllowedOriginsList(), ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	auth := handlers.Auth{
		Required: middleware.RequireUser(provider, profileService),
		Optional: middleware.OptionalIdentity(provider, profileService),
	}
	handlers.SetupSystemRoutes(app)
	handlers.SetupEventRoutes(app, auth, eventService, cardService, leaderboardService)
	handlers.SetupProfileRoutes(app, auth, profileService)
	handlers.SetupNotificationRoutes(app, auth, dispatcher)
	handlers.SetupInternalRoutes(app, middleware.ServiceToken(cfg.ServiceToken), profileService)

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%d", cfg.Port)
	log.Printf("✅ Identity provider: %s", cfg.AuthMode)
	log.Printf("✅ CORS configured for origins: %s", allowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := reconciler.Stop(); err != nil {
		log.Printf("Score reconciler shutdown error: %v", err)
	}
	if closer, ok := views.(*cache.RedisCache); ok {
		_ = closer.Close()
	}
}

func newViewCache(cfg *config.Config) cache.ViewCache {
	if cfg.RedisAddr == "" {
		log.Println("⚠️  REDIS_ADDR not set, view cache is disabled")
		return cache.Noop{}
	}
	rc, err := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.ViewCacheTTL,
	})
	if err != nil {
		log.Printf("⚠️  [CACHE] redis unavailable, continuing without view cache: %v", err)
		return cache.Noop{}
	}
	log.Printf("✅ [CACHE] view cache connected to %s", cfg.RedisAddr)
	return rc
}

func newIdentityProvider(cfg *config.Config) (identity.Provider, error) {
	switch cfg.AuthMode {
	case config.AuthModeJWT:
		return identity.NewJWTVerifier(cfg.AuthJWTSecret, cfg.AuthJWTIssuer), nil
	case config.AuthModeRemote:
		return identity.NewRemoteClient(cfg.AuthServiceURL, cfg.AuthServiceAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown AUTH_MODE %q", cfg.AuthMode)
	}
}
