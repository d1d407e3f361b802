package main

import (
	"context"
	"log"
	"time"

	"scholarship-aid-api/config"
	"scholarship-aid-api/metrics"
	"scholarship-aid-api/middleware"
	"scholarship-aid-api/monitor"
	"scholarship-aid-api/routes"
	"scholarship-aid-api/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	logFile, _ := config.InitLogging(cfg.IsProduction())
	if logFile != nil {
		defer logFile.Close()
	}
	logger := config.Logger()

	// Initialize database
	config.InitDB(cfg)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = config.LogWriter
	gin.DefaultErrorWriter = config.LogWriter

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Add security headers middleware
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Register /logs and the monitor page before the API routes
	monitor.RegisterLogsRoute(router)
	monitor.RegisterMonitorPage(router)
	monitor.RegisterSummaryRoute(router)

	routes.SetupRoutes(router)

	// Expired processing locks are swept in the background
	locks := services.NewLockManager(config.DB, cfg.ProcessingLockTTL)
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := scheduler.AddFunc(cfg.LockSweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if removed, err := locks.SweepExpired(ctx); err != nil {
			logger.WithError(err).Error("processing lock sweep failed")
		} else if removed > 0 {
			logger.WithField("removed", removed).Info("expired processing locks removed")
		}
	}); err != nil {
		log.Fatalf("❌ Invalid LOCK_SWEEP_SPEC %q: %v", cfg.LockSweepSpec, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Printf("🚀 Server starting on port %s", cfg.ServerPort)
	if cfg.IsProduction() {
		log.Printf("🏭 Running in production mode")
	} else {
		log.Printf("🔧 Running in development mode")
	}

	if err := router.Run(":" + cfg.ServerPort); err != nil {
		log.Fatal("❌ Failed to start server:", err)
	}
}
