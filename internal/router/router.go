package router

import (
	"time"

	"stocklink/internal/config"
	"stocklink/internal/handler"
	"stocklink/internal/infra"
	"stocklink/internal/middleware"
	"stocklink/internal/platform"
	"stocklink/internal/repository"
	"stocklink/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the shared singletons main constructs once and both the HTTP
// surface and the background workers consume.
type Deps struct {
	Config     *config.Config
	DB         *gorm.DB
	Redis      *redis.Client
	Locker     infra.Locker
	ERPBreaker *infra.CircuitBreaker
	Notifier   service.ScheduleNotifier
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(d Deps) *gin.Engine {
	cfg := d.Config
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Platform clients ─────────────────────────────────────────────────────
	erpFactory := platform.NewERPFactory(cfg.ContificoBaseURL)
	storeFactory := platform.StoreFactory(platform.NewStoreClient)

	// ── Repositories ─────────────────────────────────────────────────────────
	storeRepo := repository.NewStoreRepository(d.DB)
	integrationRepo := repository.NewIntegrationRepository(d.DB)
	linkRepo := repository.NewLinkRepository(d.DB)
	movementRepo := repository.NewMovementRepository(d.DB)
	snapshotRepo := repository.NewSnapshotRepository(d.DB)
	unmappedRepo := repository.NewUnmappedSkuRepository(d.DB)

	// ── Services ─────────────────────────────────────────────────────────────
	pullSvc := service.NewPullService(linkRepo, snapshotRepo, unmappedRepo, erpFactory, storeFactory, d.Locker, cfg.PullDefaultLimit)
	statusSvc := service.NewStatusService(storeRepo, snapshotRepo, unmappedRepo, storeFactory)
	movementSvc := service.NewMovementService(movementRepo, storeRepo, cfg.MovementMaxAttempts)
	integrationSvc := service.NewIntegrationService(integrationRepo, erpFactory)
	linkSvc := service.NewLinkService(linkRepo, storeRepo, integrationRepo, d.Notifier)
	storeSvc := service.NewStoreService(storeRepo, unmappedRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	syncH := handler.NewSyncHandler(pullSvc, statusSvc)
	movementsH := handler.NewMovementsHandler(movementSvc)
	integrationsH := handler.NewIntegrationsHandler(integrationSvc, linkSvc)
	storesH := handler.NewStoresHandler(storeSvc)
	webhooksH := handler.NewWebhooksHandler(storeRepo, movementSvc, d.Redis)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(d.DB, d.Redis, d.ERPBreaker))

	// Webhooks - signature-verified, not JWT-authenticated; tighter limiter
	webhooks := r.Group("/webhooks", middleware.RateLimiter(300, time.Minute))
	{
		webhooks.POST("/:storeId/orders", webhooksH.Orders)
		webhooks.POST("/:storeId/refunds", webhooksH.Refunds)
	}

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	api := r.Group("/api", jwtMW)
	{
		// Sync - operator or admin
		sync := api.Group("/sync", middleware.RequireRole("operator", "admin"))
		{
			sync.POST("/pull/:storeId/:integrationId", syncH.Pull)
			sync.POST("/pull-selective/:storeId/:integrationId", syncH.PullSelective)
		}

		// Movements - operators clear their own queue, so retry is not
		// admin-gated
		movements := api.Group("/movements", middleware.RequireRole("operator", "admin"))
		{
			movements.GET("", movementsH.List)
			movements.GET("/:id", movementsH.Get)
			movements.POST("/:id/retry", movementsH.Retry)
		}

		// Integrations - credentials are admin-only
		api.GET("/integrations", middleware.RequireRole("operator", "admin"), integrationsH.List)
		integrations := api.Group("/integrations", middleware.RequireRole("admin"))
		{
			integrations.POST("", integrationsH.Create)
			integrations.GET("/:id", integrationsH.Get)
			integrations.PUT("/:id", integrationsH.Update)
			integrations.DELETE("/:id", integrationsH.Deactivate)
			integrations.POST("/:id/test", integrationsH.TestConnection)
			integrations.GET("/:id/warehouses", integrationsH.Warehouses)
		}

		// Stores and per-store views
		stores := api.Group("/stores", middleware.RequireRole("operator", "admin"))
		{
			stores.GET("", storesH.List)
			stores.GET("/:storeId", storesH.Get)
			stores.GET("/:storeId/products/sync-status", syncH.SyncStatus)
			stores.GET("/:storeId/unmapped-skus", storesH.ListUnmapped)
			stores.POST("/:storeId/unmapped-skus/resolve", storesH.ResolveUnmapped)
		}

		// Links - binding a store to an integration is admin-only
		links := api.Group("/stores/:storeId/integrations", middleware.RequireRole("admin"))
		{
			links.GET("/:integrationId", integrationsH.GetLink)
			links.PUT("/:integrationId", integrationsH.UpsertLink)
			links.DELETE("/:integrationId", integrationsH.DeleteLink)
		}
	}

	// Swagger UI - only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
