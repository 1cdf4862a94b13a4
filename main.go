package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/audit"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/config"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/controller"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/dao"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/db"
	logger "github.com/dev-mohitbeniwal/echo/gatekeeper/logging"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/cache"
	pdp_dao "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/dao"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/engine"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/guard"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/ratelimit"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/verifier"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/router"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/service"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := config.GetConfig()

	// Initialize logger
	logger.InitLogger(cfg.Log.Dir)
	defer logger.Sync()

	// Initialize Neo4j
	if err := db.InitNeo4j(cfg.Neo4j); err != nil {
		logger.Fatal("Failed to initialize Neo4j", zap.Error(err))
	}
	defer db.CloseNeo4j()

	// Redis failures are survivable: every store call degrades per request.
	if err := db.InitRedis(cfg.Redis); err != nil {
		logger.Error("Redis unavailable at startup, continuing degraded", zap.Error(err))
	}
	defer db.CloseRedis()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize EventBus
	eventBus := util.NewEventBus()
	eventBus.Start(ctx)

	sharedStore := db.NewRedisStore(db.RedisClient, cfg.Auth.StoreTimeout)
	localStore := db.NewMemoryStore()
	localStore.StartSweeper(ctx, cfg.Auth.SweepInterval)

	// Audit pipeline
	auditRepository, err := audit.NewElasticsearchRepository(cfg.Elasticsearch.URL, cfg.Audit.Index)
	if err != nil {
		logger.Fatal("Failed to create audit repository", zap.Error(err))
	}
	auditService := audit.NewService(auditRepository)
	auditEmitter := audit.NewEmitter(auditService, cfg.Audit.BufferSize, cfg.Audit.Workers, cfg.Audit.WriteTimeout)
	auditEmitter.Start()

	notificationService := util.NewNotificationService()
	alerter := util.NewDependencyAlerter(notificationService, cfg.Alert.Threshold, cfg.Alert.Window, cfg.Alert.MinInterval)

	// Decision pipeline
	identityStore := pdp_dao.NewGuardedIdentityStore(pdp_dao.NewIdentityStoreDAO(db.Neo4jDriver), cfg.Auth.LookupTimeout, cfg.Auth.Breaker)
	bearerVerifier, err := verifier.NewBearerVerifier(cfg.Auth.Token, sharedStore)
	if err != nil {
		logger.Fatal("Failed to initialize bearer verifier", zap.Error(err))
	}
	replayGuard := verifier.NewReplayGuard(sharedStore, cfg.Auth.ClockSkewTolerance)
	lockout := guard.NewLockout(sharedStore, cfg.Auth.Lockout.MaxAttempts, cfg.Auth.Lockout.Duration)
	blocklist := guard.NewBlocklist(sharedStore)
	apiKeyVerifier := verifier.NewAPIKeyVerifier(identityStore, replayGuard, cfg.Auth.ClockSkewTolerance).
		WithLockout(lockout)
	permissionCache := cache.NewPermissionCache(sharedStore, identityStore, cache.Options{
		TTL:            cfg.Auth.CacheTTL,
		StaleRetention: cfg.Auth.StaleRetention,
		FailOpen:       cfg.Auth.FailOpenOnStoreUnavailable,
	})
	identityLimiter := ratelimit.NewLimiter(ratelimit.ScopeIdentity, cfg.Auth.RateLimitPerWindow, cfg.Auth.WindowDuration, sharedStore, localStore)
	ipLimiter := ratelimit.NewLimiter(ratelimit.ScopeIP, cfg.Auth.IPRateLimitPerWindow, cfg.Auth.WindowDuration, sharedStore, localStore)

	dispatcher := engine.NewDispatcher(
		bearerVerifier,
		apiKeyVerifier,
		permissionCache,
		identityLimiter,
		ipLimiter,
		auditEmitter,
		alerter,
		engine.Options{
			ExcludedPaths:          cfg.Auth.ExcludedPaths,
			CredentialIssuingPaths: cfg.Auth.CredentialIssuingPaths,
		},
	).WithBlocklist(blocklist)

	// Initialize DAOs
	apiKeyDAO := dao.NewAPIKeyDAO(db.Neo4jDriver, auditEmitter)
	permissionDAO := dao.NewPermissionDAO(db.Neo4jDriver, auditEmitter)
	if err := apiKeyDAO.EnsureUniqueConstraint(ctx); err != nil {
		logger.Fatal("Failed to ensure api key constraints", zap.Error(err))
	}
	if err := permissionDAO.EnsureUniqueConstraint(ctx); err != nil {
		logger.Fatal("Failed to ensure permission constraints", zap.Error(err))
	}

	// Initialize services
	services, err := service.InitializeServices(
		bearerVerifier,
		apiKeyVerifier,
		apiKeyDAO,
		permissionDAO,
		permissionCache,
		auditEmitter,
		util.NewValidationUtil(),
		notificationService,
		eventBus,
		lockout,
		blocklist,
		cfg.Auth.Lockout.MaxBlockTTL,
	)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	// Initialize controllers
	breakerCheck := func(context.Context) error {
		if state := identityStore.State(); state == "open" {
			return fmt.Errorf("identity store circuit breaker %s", state)
		}
		return nil
	}
	health := controller.NewHealthController(2*time.Second, map[string]controller.HealthCheck{
		"redis":    sharedStore.Ping,
		"neo4j":    db.Neo4jDriver.VerifyConnectivity,
		"identity": breakerCheck,
	})
	controllers := controller.InitializeControllers(services, dispatcher, cfg.Auth.WindowDuration, auditService, health)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	handler, err := router.SetupRouter(controllers, dispatcher, cfg.Auth.WindowDuration, cfg.Server.TrustedProxies)
	if err != nil {
		logger.Fatal("Failed to set up router", zap.Error(err))
	}

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: handler,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := auditEmitter.Close(shutdownCtx); err != nil {
		logger.Warn("Audit events still queued at shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
