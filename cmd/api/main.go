package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/jamsheerpanat/madrasatonaa-sub000/api/swagger"
	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/handler"
	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/middleware"
	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/repository"
	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/service"
	"github.com/jamsheerpanat/madrasatonaa-sub000/pkg/cache"
	"github.com/jamsheerpanat/madrasatonaa-sub000/pkg/config"
	"github.com/jamsheerpanat/madrasatonaa-sub000/pkg/database"
	"github.com/jamsheerpanat/madrasatonaa-sub000/pkg/logger"
	corsmiddleware "github.com/jamsheerpanat/madrasatonaa-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/jamsheerpanat/madrasatonaa-sub000/pkg/middleware/requestid"
)

// @title Madrasatonaa Broadcast & Feed API
// @version 1.0.0
// @description Audience-scoped event broadcast and activity feed service
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Membership caching is an optimization; run without it.
		logr.Sugar().Warnw("redis unavailable, membership cache disabled", "error", err)
		redisClient = nil
	}

	metrics := service.NewMetricsService()

	eventsRepo := repository.NewTimelineEventRepository(db)
	broadcastsRepo := repository.NewBroadcastRepository(db)
	acksRepo := repository.NewAcknowledgementRepository(db)
	membershipsRepo := repository.NewMembershipRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Feed.UnitsCacheTTL, logr, redisClient != nil)
	resolver := service.NewAudienceResolver(membershipsRepo, cacheSvc, cfg.Feed.UnitsCacheTTL, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var notifier service.Notifier
	if cfg.Notifications.Enabled {
		queueNotifier := service.NewQueueNotifier(cfg.Notifications, nil, logr)
		queueNotifier.Start(ctx)
		defer queueNotifier.Stop()
		notifier = queueNotifier
	}

	eventSvc := service.NewEventService(eventsRepo, nil, metrics, logr)
	feedSvc := service.NewFeedService(eventsRepo, resolver, cfg.Feed.DefaultPageSize, cfg.Feed.MaxPageSize, metrics, logr)
	broadcastSvc := service.NewBroadcastService(broadcastsRepo, acksRepo, resolver, notifier, nil, cfg.Broadcasts.StrictScope, metrics, logr)
	exportSvc := service.NewExportService(broadcastSvc, cfg.Exports.Enabled, logr)

	if cfg.Broadcasts.SweepEnabled {
		sweeper := service.NewSweeper(broadcastSvc, cfg.Broadcasts.SweepInterval, metrics, logr)
		if err := sweeper.Start(ctx); err != nil {
			logr.Sugar().Fatalw("failed to start publish sweep", "error", err)
		}
		defer sweeper.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	feedHandler := handler.NewFeedHandler(feedSvc)
	eventHandler := handler.NewEventHandler(eventSvc)
	broadcastHandler := handler.NewBroadcastHandler(broadcastSvc, exportSvc)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		api.GET("/feed", feedHandler.List)
		api.POST("/events", middleware.RequireUserTypes(models.UserTypeStaff), eventHandler.Emit)

		api.GET("/announcements", broadcastHandler.ListAnnouncements)
		api.POST("/announcements", middleware.RequireUserTypes(models.UserTypeStaff), broadcastHandler.CreateAnnouncement)

		api.GET("/memos", broadcastHandler.ListMemos)
		api.POST("/memos", middleware.RequireUserTypes(models.UserTypeStaff), broadcastHandler.CreateMemo)
		api.POST("/memos/:id/acknowledge", broadcastHandler.Acknowledge)
		api.GET("/memos/:id/acknowledgements/export", middleware.RequireUserTypes(models.UserTypeStaff), broadcastHandler.ExportAcknowledgements)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
