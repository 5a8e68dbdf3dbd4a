package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/parley/backend/config"
	"github.com/parley/backend/internal/analytics"
	"github.com/parley/backend/internal/auth"
	"github.com/parley/backend/internal/handlers"
	"github.com/parley/backend/internal/logger"
	"github.com/parley/backend/internal/middleware"
	"github.com/parley/backend/internal/moderation"
	"github.com/parley/backend/internal/repository"
	"github.com/parley/backend/internal/store"
	"github.com/parley/backend/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("production")
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(cfg.Server.Env)

	// Record store backend. The redis store doubles as the shared send
	// limiter; the others fall back to the in-process limiter.
	var recordStore store.RecordStore
	var sendLimiter middleware.SendLimiter

	switch cfg.Store.Backend {
	case "redis":
		redisStore, err := store.NewRedisStore(cfg.GetRedisAddr(), cfg.Store.RedisPassword, cfg.Store.RedisDB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect record store")
		}
		recordStore = redisStore
		sendLimiter = redisStore
	case "postgres":
		recordStore, err = store.NewPostgresStore(cfg.GetPostgresDSN())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect record store")
		}
	default:
		log.Warn().Msg("using in-memory record store; data will not survive restarts")
		recordStore = store.NewMemoryStore()
	}
	defer recordStore.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Repositories
	msgRepo := repository.NewMessageRepository(recordStore)
	flagRepo := repository.NewFlagRepository(recordStore, msgRepo)
	userRepo := repository.NewUserRepository(recordStore)
	reportRepo := repository.NewReportRepository(recordStore)
	activityRepo := repository.NewActivityRepository(recordStore)
	ruleRepo := repository.NewRuleRepository(recordStore)

	// Moderation pipeline
	classifier := moderation.NewClassifier(cfg.Moderation.LengthCeiling)
	enforcer := moderation.NewEnforcer(classifier, msgRepo, flagRepo, userRepo, activityRepo, log)
	serverClassifier := moderation.NewClassifier(moderation.ServerLengthCeiling)
	monitorEnforcer := moderation.NewEnforcer(serverClassifier, msgRepo, flagRepo, userRepo, activityRepo, log)
	monitor := moderation.NewMonitor(recordStore, monitorEnforcer, log)
	go monitor.Run(ctx)
	ruleWatcher := moderation.NewRuleWatcher(recordStore, ruleRepo, log, classifier, serverClassifier)
	go ruleWatcher.Run(ctx)

	// Analytics pipeline
	behavior := analytics.NewBehaviorAnalyzer(msgRepo, flagRepo)
	chat := analytics.NewChatAggregator(msgRepo, flagRepo, userRepo)
	generator := analytics.NewReportGenerator(chat, behavior, flagRepo, reportRepo, log)

	// Services and handlers
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)
	authHandler := handlers.NewAuthHandler(userRepo, jwtService)
	msgHandler := handlers.NewMessageHandler(msgRepo, userRepo, enforcer, log)
	modHandler := handlers.NewModerationHandler(flagRepo, msgRepo, userRepo, activityRepo, ruleRepo, log)
	userHandler := handlers.NewUserHandler(userRepo, activityRepo, log)
	analyticsHandler := handlers.NewAnalyticsHandler(
		behavior, chat, generator, reportRepo, userRepo,
		cfg.Analytics.DefaultWindowDays, cfg.Analytics.ReportRetentionDays)

	hub := websocket.NewHub(recordStore, log)
	go hub.Run(ctx)
	wsHandler := websocket.NewHandler(hub, jwtService, cfg.CORS.AllowedOrigins, log)

	rateLimiter := middleware.NewRateLimiter(
		sendLimiter,
		cfg.Moderation.RateLimitSends,
		time.Duration(cfg.Moderation.RateLimitWindowSec)*time.Second)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	router.GET("/ws", wsHandler.HandleWebSocket)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtService))
	{
		api.GET("/me", authHandler.GetMe)
		api.GET("/online-users", wsHandler.GetOnlineUsers)

		// Messages
		api.GET("/messages", msgHandler.GetMessages)
		api.POST("/messages", middleware.RateLimitMiddleware(rateLimiter), msgHandler.SendMessage)
		api.POST("/messages/:id/flag", modHandler.FlagMessage)

		// Moderation review
		api.GET("/flags", modHandler.ListFlags)
		api.GET("/flags/stats", modHandler.FlagStats)
		api.POST("/flags/:id/review", modHandler.ReviewFlag)

		// Custom moderation rules
		api.GET("/rules", modHandler.ListRules)
		api.POST("/rules", modHandler.CreateRule)
		api.DELETE("/rules/:id", modHandler.DeleteRule)

		// User management
		api.GET("/users", userHandler.ListUsers)
		api.GET("/users/:id", userHandler.GetUser)
		api.POST("/users/:id/ban", userHandler.BanUser)
		api.DELETE("/users/:id/ban", userHandler.UnbanUser)
		api.POST("/users/:id/warn", userHandler.WarnUser)
		api.PUT("/users/:id/role", userHandler.SetRole)
		api.POST("/users/:id/suspend", userHandler.SuspendUser)
		api.POST("/users/:id/activate", userHandler.ActivateUser)

		// Analytics
		api.GET("/analytics/users/:id", analyticsHandler.GetUserBehavior)
		api.GET("/analytics/chat", analyticsHandler.GetChatAnalytics)
		api.POST("/analytics/reports", analyticsHandler.GenerateReport)
		api.GET("/analytics/reports", analyticsHandler.ListReports)
		api.DELETE("/analytics/reports/expired", analyticsHandler.CleanupReports)
	}

	addr := ":" + cfg.Server.Port
	log.Info().Str("addr", addr).Str("env", cfg.Server.Env).Msg("starting parley server")

	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server exited")
	}
}
