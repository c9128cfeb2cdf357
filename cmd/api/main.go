package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"socialsync/internal/apperr"
	"socialsync/internal/config"
	"socialsync/internal/consumer"
	"socialsync/internal/database"
	"socialsync/internal/handler"
	"socialsync/internal/middleware"
	"socialsync/internal/model"
	"socialsync/internal/monitor"
	"socialsync/internal/platform"
	"socialsync/internal/redis"
	"socialsync/internal/repository"
	"socialsync/internal/service/catalogsync"
	"socialsync/internal/service/engagement"
	"socialsync/internal/service/oauth"
	"socialsync/internal/service/sharing"
	"socialsync/internal/utils"
	"socialsync/pkg/breaker"
	"socialsync/pkg/killswitch"
	"socialsync/pkg/limiter"
	"socialsync/pkg/lock"
	"socialsync/pkg/log"
	"socialsync/pkg/queue"
)

var defaultPlatformRate = limiter.Rate{PerSecond: 10, Burst: 20}

// app everything the router and shutdown sequence need
type app struct {
	cfg      *config.Config
	db       *gorm.DB
	redis    *goredis.Client
	metrics  *monitor.MetricsCollector
	tracer   *monitor.Tracer
	jwt      *utils.JWTManager
	registry *platform.Registry
	breakers *breaker.Manager
	switches *killswitch.Manager
	queue    *queue.MemoryQueue
	consumer *consumer.SyncConsumer

	ipLimiter  limiter.RateLimiter
	shareQuota limiter.RateLimiter

	syncHandler       *handler.SyncHandler
	shareHandler      *handler.ShareHandler
	engagementHandler *handler.EngagementHandler
	connectionHandler *handler.ConnectionHandler
	adminHandler      *handler.AdminHandler
	webhookHandler    *handler.WebhookHandler
	healthHandler     *handler.HealthHandler
}

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	if err := log.Init(logConfig(cfg.Log)); err != nil {
		log.WithError(err).Fatal("Failed to initialize logger")
	}

	a, err := newApp(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize application")
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	if err := a.consumer.Start(cfg.Sync.Workers); err != nil {
		log.WithError(err).Fatal("Failed to start sync consumer")
	}

	collectCtx, stopCollect := context.WithCancel(context.Background())
	go a.metrics.StartCollection(collectCtx, 15*time.Second, a.queueProbe, a.breakerProbe)

	if err := config.WatchConfig(func(next *config.Config) {
		if err := log.Init(logConfig(next.Log)); err != nil {
			log.WithError(err).Error("Failed to apply reloaded log config")
		}
	}); err != nil {
		log.WithError(err).Warn("Config hot reload disabled")
	}

	server := &http.Server{
		Addr:           cfg.Server.GetAddr(),
		Handler:        setupRouter(a),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderMB << 20,
	}

	go func() {
		log.WithFields(log.Fields{
			"addr":      server.Addr,
			"mode":      cfg.Server.Mode,
			"env":       config.Environment(),
			"platforms": a.registry.Platforms(),
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	stopCollect()
	a.close(ctx)

	log.Info("Server exited")
}

func logConfig(c config.LogConfig) log.Config {
	return log.Config{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		Filename:   c.Filename,
		MaxSize:    c.MaxSize,
		MaxAge:     c.MaxAge,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
	}
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.db = db
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return nil, err
		}
	}

	a.redis, err = redis.New(cfg.Redis)
	if err != nil {
		return nil, err
	}

	a.metrics = monitor.NewMetricsCollector(cfg.Metrics.Namespace)
	a.tracer, err = monitor.NewTracer(cfg.Tracing, config.Environment())
	if err != nil {
		return nil, err
	}
	a.jwt = utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer, cfg.Security.JWT.Expire)

	// outbound platform calls
	overrides := make(map[string]limiter.Rate)
	timeouts := make(map[model.Platform]time.Duration)
	for name, pc := range cfg.Platforms {
		if pc.RPS > 0 {
			overrides[name] = limiter.Rate{PerSecond: pc.RPS, Burst: pc.Burst}
		}
		if pc.Timeout > 0 {
			timeouts[model.Platform(name)] = pc.Timeout
		}
	}
	platformLimiter := limiter.NewKeyedLimiter(defaultPlatformRate, overrides)
	a.registry = platform.BuildRegistry(cfg, platformLimiter, &http.Client{})

	a.breakers = breaker.NewManager(breakerConfig(cfg.CircuitBreak, a.metrics))
	a.switches = killswitch.NewManager(a.redis)

	// inbound limits
	a.ipLimiter = limiter.NewKeyedLimiter(limiter.Rate{
		PerSecond: cfg.RateLimit.PerIP.RPS,
		Burst:     cfg.RateLimit.PerIP.Burst,
	}, nil)
	a.shareQuota = limiter.NewSlidingWindowLimiter(a.redis, "socialsync:quota",
		cfg.RateLimit.ShareQuota.Limit, cfg.RateLimit.ShareQuota.Window)

	// repositories
	catalogRepo := repository.NewCatalogRepository(db)
	shareRepo := repository.NewShareRepository(db)
	metricRepo := repository.NewMetricRepository(db)
	connectionRepo := repository.NewConnectionRepository(db)

	// catalog sync
	var guard catalogsync.Guard
	if cfg.Sync.Guard == "redis" {
		guard = catalogsync.NewRedisGuard(lock.NewLocker(a.redis, "socialsync:sync", cfg.Sync.LockTTL))
	} else {
		guard = catalogsync.NewMemoryGuard()
	}
	coordinator := catalogsync.NewCoordinator(catalogsync.Deps{
		Registry: a.registry,
		Catalog:  catalogRepo,
		Guard:    guard,
		Breakers: a.breakers,
		Switches: a.switches,
		Metrics:  a.metrics,
		Tracer:   a.tracer,
		Timeouts: timeouts,
	})

	a.queue, err = queue.NewMemoryQueue(&queue.MemoryQueueConfig{
		BufferSize: cfg.Sync.QueueBuffer,
		OnError: func(topic string, _ []byte, err error) {
			log.WithError(err).WithField("topic", topic).Warn("Queue handler failed")
		},
	})
	if err != nil {
		return nil, err
	}
	jobStore := catalogsync.NewRedisJobStore(a.redis, cfg.Sync.JobResultTTL)
	jobs := catalogsync.NewJobQueue(a.queue, jobStore, a.metrics)
	a.consumer = consumer.NewSyncConsumer(a.queue, jobStore, coordinator, a.metrics, cfg.Sync.LockTTL)

	// sharing, connections, engagement
	sealer, err := oauth.NewSealerFromHex(cfg.Security.TokenKey)
	if err != nil {
		return nil, err
	}
	oauthService := oauth.NewService(connectionRepo, sealer, a.registry)

	engagementService, err := engagement.NewService(metricRepo, engagement.Config{
		NodeID:        cfg.Engagement.NodeID,
		CacheTTL:      cfg.Engagement.CacheTTL,
		CacheMaxMB:    cfg.Engagement.CacheMaxMB,
		BloomCapacity: cfg.Engagement.BloomCapacity,
		BloomFPRate:   cfg.Engagement.BloomFPRate,
	}, a.metrics)
	if err != nil {
		return nil, err
	}

	sharingService := sharing.NewService(sharing.Deps{
		Config:     cfg.Sharing,
		Shares:     shareRepo,
		Tokens:     oauthService,
		Registry:   a.registry,
		Engagement: engagementService,
		Switches:   a.switches,
		Breakers:   a.breakers,
		Metrics:    a.metrics,
		Tracer:     a.tracer,
	})

	// handlers
	a.syncHandler = handler.NewSyncHandler(coordinator, jobs, catalogRepo)
	a.shareHandler = handler.NewShareHandler(sharingService)
	a.engagementHandler = handler.NewEngagementHandler(engagementService)
	a.connectionHandler = handler.NewConnectionHandler(oauthService)
	a.adminHandler = handler.NewAdminHandler(a.switches, a.breakers)
	a.webhookHandler = handler.NewWebhookHandler(cfg.Platforms, a.metrics)
	a.healthHandler = handler.NewHealthHandler(handler.HealthDeps{
		Registry: a.registry,
		Checks: map[string]handler.HealthCheck{
			"database": func(ctx context.Context) error { return database.Health(ctx, db) },
			"redis":    func(ctx context.Context) error { return redis.Health(ctx, a.redis) },
		},
		Breakers: a.breakers,
		Queue:    a.queue,
		Switches: a.switches,
	})

	return a, nil
}

func breakerConfig(cb config.CircuitBreakConfig, metrics *monitor.MetricsCollector) breaker.Config {
	threshold := cb.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	return breaker.Config{
		MaxRequests: cb.MaxRequests,
		Interval:    cb.Interval,
		Timeout:     cb.Timeout,
		ReadyToTrip: func(counts breaker.Counts) bool {
			return cb.Enabled && counts.ConsecutiveFailures >= threshold
		},
		// a revoked grant or bad input says nothing about platform health
		IsSuccessful: apperr.IsCallerFault,
		OnStateChange: func(name string, from, to breaker.State) {
			log.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
			metrics.UpdateBreakerState(name, int(to))
		},
	}
}

func (a *app) queueProbe(mc *monitor.MetricsCollector) {
	mc.UpdateQueuePending(catalogsync.JobTopic, a.queue.Stats().Pending)
}

func (a *app) breakerProbe(mc *monitor.MetricsCollector) {
	for _, s := range a.breakers.Snapshot() {
		mc.UpdateBreakerState(s.Name, int(a.breakers.Get(s.Name).State()))
	}
}

func (a *app) close(ctx context.Context) {
	a.consumer.Stop()
	if err := a.queue.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Queue shutdown incomplete")
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Tracer shutdown failed")
	}
	if err := database.Close(a.db); err != nil {
		log.WithError(err).Warn("Failed to close database")
	}
	if err := redis.Close(a.redis); err != nil {
		log.WithError(err).Warn("Failed to close redis")
	}
}

func setupRouter(a *app) *gin.Engine {
	cfg := a.cfg
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Tracing(a.tracer))
	router.Use(middleware.Logger())
	if cfg.Metrics.Enabled {
		router.Use(middleware.Metrics(a.metrics))
	}
	if cfg.Security.CORS.Enabled {
		router.Use(middleware.CORS(middleware.CORSOptions{
			AllowOrigins:     cfg.Security.CORS.AllowOrigins,
			AllowCredentials: cfg.Security.CORS.AllowCredentials,
			MaxAge:           time.Duration(cfg.Security.CORS.MaxAge) * time.Second,
		}))
	}
	if cfg.RateLimit.Enabled {
		router.Use(middleware.IPRateLimit(a.ipLimiter))
	}
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	router.GET("/health", a.healthHandler.Health)
	router.GET("/health/details", a.healthHandler.Details)
	router.GET("/ping", a.healthHandler.Ping)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(a.metrics.Handler()))
	}

	// click tracking redirect
	router.GET("/r/:share_id", a.shareHandler.Redirect)

	api := router.Group("/api")
	{
		webhooks := api.Group("/webhooks")
		{
			webhooks.GET("/:platform", a.webhookHandler.Verify)
			webhooks.POST("/:platform", a.webhookHandler.Receive)
		}

		v1 := api.Group("/v1")
		v1.Use(middleware.Auth(middleware.JWTValidator(a.jwt)))
		{
			syncGroup := v1.Group("/sync")
			{
				syncGroup.POST("/publish", a.syncHandler.Publish)
				syncGroup.POST("/delete", a.syncHandler.Delete)
				syncGroup.POST("/jobs", a.syncHandler.EnqueueJob)
				syncGroup.GET("/jobs/:id", a.syncHandler.GetJob)
			}
			v1.GET("/catalog/:sku", a.syncHandler.GetCatalog)

			shareGroup := v1.Group("/share")
			{
				shareGroup.POST("/link", a.shareHandler.GenerateLink)
				if cfg.RateLimit.Enabled && cfg.RateLimit.ShareQuota.Limit > 0 {
					shareGroup.POST("", middleware.ShareQuota(a.shareQuota, cfg.RateLimit.ShareQuota.Limit), a.shareHandler.Share)
				} else {
					shareGroup.POST("", a.shareHandler.Share)
				}
				shareGroup.GET("/stats/:type/:id", a.shareHandler.GetStats)
			}

			engagementGroup := v1.Group("/engagement")
			{
				engagementGroup.POST("", a.engagementHandler.Track)
				engagementGroup.GET("/:type/:id", a.engagementHandler.GetAggregate)
			}

			connections := v1.Group("/connections")
			{
				connections.GET("", a.connectionHandler.List)
				connections.POST("/:platform", a.connectionHandler.Connect)
				connections.DELETE("/:platform", a.connectionHandler.Disconnect)
			}

			admin := v1.Group("/admin")
			admin.Use(middleware.RequireRole(utils.RoleAdmin))
			{
				admin.PUT("/platforms/:platform/switch", a.adminHandler.SetSwitch)
				admin.GET("/switches", a.adminHandler.ListSwitches)
				admin.GET("/breakers", a.adminHandler.ListBreakers)
			}
		}
	}

	return router
}
