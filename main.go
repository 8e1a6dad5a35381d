package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social-service/internal/auth"
	"social-service/internal/config"
	"social-service/internal/database"
	"social-service/internal/email"
	"social-service/internal/fcm"
	"social-service/internal/media"
	"social-service/internal/message"
	"social-service/internal/middleware"
	"social-service/internal/notification"
	"social-service/internal/post"
	"social-service/internal/ratelimit"
	"social-service/internal/social"
	"social-service/internal/sse"
	"social-service/internal/token"
	transporthttp "social-service/internal/transport/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

var startTime time.Time

func main() {
	startTime = time.Now()
	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("❌ [DB] Failed to connect: %v", err)
	}
	log.Printf("✅ [DB] Connected to %s/%s", cfg.DBHost, cfg.DBName)

	tokens, err := token.NewManager(token.Config{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		log.Fatalf("❌ [TOKEN] %v", err)
	}

	// Login limiter is optional; without Redis logins are unthrottled.
	var limiter *ratelimit.LoginLimiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		limiter = ratelimit.NewLoginLimiter(rdb, cfg.LoginMaxAttempts, cfg.LoginWindow)
		log.Printf("✅ [REDIS] Login limiter enabled (%s)", cfg.RedisAddr)
	} else {
		log.Println("⚠️ [REDIS] REDIS_ADDR not set, login throttling disabled")
	}

	emailSender := email.NewSender(cfg)

	var fcmClient *fcm.Client
	if cfg.FirebaseCredentialsJSON != "" {
		fcmClient, err = fcm.NewClient(context.Background(), []byte(cfg.FirebaseCredentialsJSON))
		if err != nil {
			log.Fatalf("❌ [FCM] Failed to initialize: %v", err)
		}
		log.Println("✅ [FCM] Push client initialized")
	} else {
		log.Println("⚠️ [FCM] Disabled (no FIREBASE_CREDENTIALS_JSON)")
	}

	broker := sse.NewBroker()

	notifyService := notification.NewService(db, broker, fcmClient, cfg.NotificationTTL)
	authService := auth.NewService(db, tokens, emailSender, limiter, cfg)
	postService := post.NewService(db, notifyService)
	socialService := social.NewService(db, notifyService)
	messageService := message.NewService(db, notifyService)

	// Object storage is optional; without it media uploads are unavailable.
	var mediaService *media.Service
	var mediaWorker *media.Worker
	if cfg.StorageBucket != "" {
		store, err := media.NewObjectStore(context.Background(), media.StorageConfig{
			Endpoint:  cfg.StorageEndpoint,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			Bucket:    cfg.StorageBucket,
			PublicURL: cfg.StoragePublicURL,
			Region:    cfg.StorageRegion,
		})
		if err != nil {
			log.Fatalf("❌ [STORAGE] Failed to initialize: %v", err)
		}
		log.Printf("✅ [STORAGE] Bucket %s ready", cfg.StorageBucket)
		mediaService = media.NewService(db, store, cfg.MaxUploadBytes, cfg.JobMaxAttempts)
		mediaWorker = media.NewWorker(db, store, cfg.WorkerInterval)
	} else {
		log.Println("⚠️ [STORAGE] STORAGE_BUCKET not set, media uploads disabled")
	}

	authHandler := transporthttp.NewAuthHandler(authService)
	postHandler := transporthttp.NewPostHandler(postService)
	socialHandler := transporthttp.NewSocialHandler(socialService)
	messageHandler := transporthttp.NewMessageHandler(messageService)
	notifHandler := transporthttp.NewNotificationHandler(notifyService, broker)

	app := fiber.New(fiber.Config{
		AppName:      "social-service",
		BodyLimit:    int(cfg.MaxUploadBytes) + 1<<20,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Requested-With,Cache-Control",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(logger.New(logger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${ua}\n",
	}))

	requireAuth := middleware.RequireAuth(tokens, authService)

	// 1. Auth routes
	authRoutes := app.Group("/v1/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/refresh", authHandler.Refresh)
	authRoutes.Post("/forgot-password", authHandler.ForgotPassword)
	authRoutes.Post("/reset-password", authHandler.ResetPassword)
	authRoutes.Post("/logout", requireAuth, authHandler.Logout)
	authRoutes.Post("/logout-all", requireAuth, authHandler.LogoutAll)
	authRoutes.Post("/change-password", requireAuth, authHandler.ChangePassword)
	authRoutes.Get("/me", requireAuth, authHandler.Me)
	authRoutes.Get("/sessions", requireAuth, authHandler.Sessions)
	authRoutes.Delete("/sessions/:session_id", requireAuth, authHandler.RevokeSession)
	log.Println("✅ [ROUTES] Registered auth routes: /v1/auth/*")

	// 2. Post routes (feed, threads, likes, shares, comments)
	postRoutes := app.Group("/v1/posts", requireAuth)
	postRoutes.Post("/", postHandler.Create)
	postRoutes.Get("/", postHandler.Feed)
	postRoutes.Get("/:id", postHandler.Get)
	postRoutes.Put("/:id", postHandler.Update)
	postRoutes.Delete("/:id", postHandler.Delete)
	postRoutes.Get("/:id/replies", postHandler.Replies)
	postRoutes.Get("/:id/thread", postHandler.Thread)
	postRoutes.Post("/:id/like", socialHandler.Like)
	postRoutes.Delete("/:id/like", socialHandler.Unlike)
	postRoutes.Get("/:id/likes", socialHandler.LikeCount)
	postRoutes.Post("/:id/share", socialHandler.Share)
	postRoutes.Get("/:id/shares", socialHandler.ShareCount)
	postRoutes.Post("/:id/comments", socialHandler.CreateComment)
	postRoutes.Get("/:id/comments", socialHandler.Comments)
	log.Println("✅ [ROUTES] Registered post routes: /v1/posts/*")

	// 3. Comment edit/delete by comment id
	commentRoutes := app.Group("/v1/comments", requireAuth)
	commentRoutes.Put("/:comment_id", socialHandler.UpdateComment)
	commentRoutes.Delete("/:comment_id", socialHandler.DeleteComment)

	// 4. User graph routes
	userRoutes := app.Group("/v1/users", requireAuth)
	userRoutes.Get("/:user_id/posts", postHandler.ByAuthor)
	userRoutes.Post("/:user_id/follow", socialHandler.Follow)
	userRoutes.Delete("/:user_id/follow", socialHandler.Unfollow)
	userRoutes.Get("/:user_id/followers", socialHandler.Followers)
	userRoutes.Get("/:user_id/following", socialHandler.Following)
	log.Println("✅ [ROUTES] Registered user routes: /v1/users/*")

	// 5. Direct messages
	messageRoutes := app.Group("/v1/messages", requireAuth)
	messageRoutes.Post("/", messageHandler.Send)
	messageRoutes.Get("/unread", messageHandler.UnreadCount)
	messageRoutes.Get("/:user_id", messageHandler.Conversation)
	messageRoutes.Post("/:user_id/read", messageHandler.MarkConversationRead)
	log.Println("✅ [ROUTES] Registered message routes: /v1/messages/*")

	// 6. Notifications (list + realtime stream + push tokens). The stream
	// route takes the query-token variant for EventSource clients.
	app.Get("/v1/notifications/stream", middleware.RequireSSEAuth(tokens, authService), notifHandler.Stream)
	notifRoutes := app.Group("/v1/notifications", requireAuth)
	notifRoutes.Get("/", notifHandler.List)
	notifRoutes.Get("/unread", notifHandler.UnreadCount)
	notifRoutes.Post("/mark-all-read", notifHandler.MarkAllRead)
	notifRoutes.Post("/:id/read", notifHandler.MarkRead)
	notifRoutes.Post("/:id/archive", notifHandler.Archive)
	notifRoutes.Post("/fcm-token", notifHandler.RegisterFCMToken)
	notifRoutes.Delete("/fcm-token", notifHandler.UnregisterFCMToken)
	log.Println("✅ [ROUTES] Registered notification routes: /v1/notifications/*")

	// 7. Media uploads
	if mediaService != nil {
		mediaHandler := transporthttp.NewMediaHandler(mediaService)
		mediaRoutes := app.Group("/v1/media", requireAuth)
		mediaRoutes.Post("/", mediaHandler.Upload)
		mediaRoutes.Get("/", mediaHandler.Mine)
		mediaRoutes.Get("/:id", mediaHandler.Get)
		mediaRoutes.Get("/:id/job", mediaHandler.Job)
		mediaRoutes.Post("/jobs/:job_id/cancel", mediaHandler.CancelJob)
		log.Println("✅ [ROUTES] Registered media routes: /v1/media/*")
	}

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		uptime := time.Since(startTime).Round(time.Second)
		return c.JSON(fiber.Map{
			"status":        "ok",
			"service":       "social-service",
			"uptime":        uptime.String(),
			"timestamp":     time.Now().UTC().Format(time.RFC3339),
			"fcm_enabled":   fcmClient != nil,
			"media_enabled": mediaService != nil,
			"sse_streams":   broker.TotalStreams(),
		})
	})
	log.Println("✅ [ROUTES] Registered /health")

	// Background loops: media processing and expiry sweeps.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if mediaWorker != nil {
		go mediaWorker.Start(ctx)
	}
	go runSweeper(ctx, cfg.SweepInterval, authService, notifyService)

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("🛑 [SHUTDOWN] Graceful shutdown initiated...")
		cancel()
		if err := app.Shutdown(); err != nil {
			log.Printf("❌ [SHUTDOWN] Error: %v", err)
		}
	}()

	log.Printf("🚀 social-service starting...")
	log.Printf("   🔗 Listening on port: %s", cfg.ServerPort)
	log.Printf("   🌐 CORS allowed origins: %s", cfg.AllowedOrigins)
	log.Println("✅ Server ready.")

	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.Fatalf("❌ [STARTUP] Server failed to start: %v", err)
	}
}

// runSweeper periodically expires sessions, tokens and old notifications.
func runSweeper(ctx context.Context, interval time.Duration, authService *auth.Service, notifyService *notification.Service) {
	log.Printf("🧹 [SWEEP] Expiry sweeper started (interval: %v)", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("🛑 [SWEEP] Stopped")
			return
		case <-ticker.C:
			if err := authService.SweepExpired(ctx); err != nil {
				log.Printf("❌ [SWEEP] Auth sweep failed: %v", err)
			}
			if _, err := notifyService.SweepExpired(ctx); err != nil {
				log.Printf("❌ [SWEEP] Notification sweep failed: %v", err)
			}
		}
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var errMsg string
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		errMsg = e.Message
	} else {
		errMsg = err.Error()
	}
	log.Printf("🔥 [ERROR] [%d] %s %s → %v | IP=%s | UA=%s",
		code,
		c.Method(),
		c.Path(),
		errMsg,
		c.IP(),
		c.Get("User-Agent"),
	)
	return c.Status(code).JSON(fiber.Map{
		"error":      "something went wrong",
		"request_id": c.Get("X-Request-ID"),
	})
}
