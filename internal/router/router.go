package router

import (
	"time"

	"estancopro/internal/config"
	"estancopro/internal/handler"
	"estancopro/internal/infra"
	"estancopro/internal/middleware"
	"estancopro/internal/model"
	"estancopro/internal/repository"
	"estancopro/internal/service"
	"estancopro/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler <- Service <- Repository <- DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
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

	// Infrastructure
	locker := infra.NewLocker(rdb)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	sessionRepo := repository.NewCashSessionRepository(db)
	stockMovRepo := repository.NewStockMovementRepository(db)

	// Services
	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret, time.Duration(cfg.JWTExpirationHours)*time.Hour)
	productSvc := service.NewProductService(productRepo)
	stockSvc := service.NewStockService(productRepo, stockMovRepo)
	sessionSvc := service.NewCashSessionService(sessionRepo, locker)
	reportSvc := service.NewReportService(saleRepo)

	// Worker dispatcher, injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	saleSvc := service.NewSaleService(saleRepo, productRepo, stockMovRepo, sessionSvc, dispatcher)

	// Handlers
	authH := handler.NewAuthHandler(authSvc)
	productsH := handler.NewProductHandler(productSvc, stockSvc)
	salesH := handler.NewSaleHandler(saleSvc, reportSvc)
	sessionsH := handler.NewCashSessionHandler(sessionSvc)

	// Public
	r.GET("/health", handler.Health(db, rdb))
	priceH := handler.NewPriceCheckHandler(productRepo, rdb)
	r.GET("/v1/price/:barcode", priceH.GetByBarcode)

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
	}

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	anyRole := middleware.RequireRole(model.RoleCashier, model.RoleSupervisor, model.RoleAdmin)
	supervisorUp := middleware.RequireRole(model.RoleSupervisor, model.RoleAdmin)
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	v1 := r.Group("/v1", jwtMW)
	{
		sessions := v1.Group("/cash-sessions")
		{
			sessions.POST("/open", anyRole, sessionsH.Open)
			sessions.GET("/open", anyRole, sessionsH.GetOpen)
			sessions.POST("/:id/close", anyRole, sessionsH.Close)
			sessions.GET("/:id/balance", anyRole, sessionsH.Balance)
			sessions.POST("/:id/movements", anyRole, sessionsH.RecordMovement)
			sessions.GET("", supervisorUp, sessionsH.History)
		}

		sales := v1.Group("/sales")
		{
			sales.POST("", anyRole, salesH.Create)
			sales.GET("", anyRole, salesH.List)
			sales.GET("/report", supervisorUp, salesH.Report)
			sales.GET("/report/export", supervisorUp, salesH.ExportReport)
			sales.GET("/:id", anyRole, salesH.Get)
			sales.POST("/:id/lines", anyRole, salesH.AddLine)
			sales.DELETE("/:id/lines/:productId", anyRole, salesH.RemoveLine)
			sales.POST("/:id/recalculate-totals", anyRole, salesH.Recalculate)
			sales.POST("/:id/finalize", anyRole, salesH.Finalize)
			sales.POST("/:id/cancel", anyRole, salesH.Cancel)
		}

		products := v1.Group("/products")
		{
			products.GET("", anyRole, productsH.List)
			products.GET("/low-stock", supervisorUp, productsH.LowStock)
			products.GET("/barcode/:barcode", anyRole, productsH.GetByBarcode)
			products.GET("/:id", anyRole, productsH.Get)
			products.GET("/:id/stock-movements", supervisorUp, productsH.StockMovements)
			products.POST("/:id/stock", supervisorUp, productsH.AdjustStock)
			products.POST("", adminOnly, productsH.Create)
			products.DELETE("/:id", adminOnly, productsH.Deactivate)
		}
	}

	// Swagger UI, only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
