package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lunora/arcana/config"
	"github.com/lunora/arcana/controllers"
	"github.com/lunora/arcana/middleware"
	"github.com/lunora/arcana/services"
	"github.com/lunora/arcana/tarot"
	"github.com/lunora/arcana/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, catalog *tarot.Catalog, readings *services.ReadingService) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}

	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	readingController := controllers.NewReadingController(db, readings)
	giftController := controllers.NewGiftController(db, services.NewGiftService(db))
	catalogController := controllers.NewCatalogController(db, catalog)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)

	// Public catalog endpoints
	api.GET("/catalog/cards", catalogController.Cards)
	api.GET("/catalog/spreads", catalogController.Spreads)
	api.GET("/moon", catalogController.Moon)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())

	protected.POST("/readings/daily", readingController.CreateDaily)
	protected.POST("/readings/spread", readingController.CreateSpread)
	protected.POST("/readings/question", readingController.CreateQuestion)
	protected.GET("/readings", readingController.List)
	protected.GET("/readings/today", readingController.Today)
	protected.GET("/readings/:id", readingController.Get)
	protected.POST("/readings/:id/clarify", readingController.Clarify)
	protected.POST("/readings/:id/feedback", readingController.SubmitFeedback)

	protected.GET("/gifts", giftController.List)
	protected.POST("/gifts/grant", giftController.Grant)

	protected.GET("/collection", catalogController.Collection)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
