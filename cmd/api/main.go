package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/neovalpox/backupControl/internal/config"
	"github.com/neovalpox/backupControl/internal/handlers"
	"github.com/neovalpox/backupControl/internal/middleware"
	"github.com/neovalpox/backupControl/internal/models"
	"github.com/neovalpox/backupControl/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.New()

	// Initialize database
	db, err := models.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Run migrations
	if err := models.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Redis (optional; rate limits and run progress degrade to
	// in-process fallbacks without it)
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient = models.InitRedis(cfg)
		defer redisClient.Close()
	} else {
		log.Println("Redis disabled by configuration")
	}

	// Initialize services
	authService, err := services.NewAuthService(db, redisClient, cfg)
	if err != nil {
		log.Fatalf("Failed to init auth service: %v", err)
	}
	settingsService := services.NewSettingsService(db, cfg)
	if err := settingsService.EnsureDefaults(); err != nil {
		log.Fatalf("Failed to seed settings: %v", err)
	}
	notificationService := services.NewNotificationService(db, cfg)
	clientService := services.NewClientService(db)
	backupService := services.NewBackupService(db)
	emailService := services.NewEmailService(db)
	eventService := services.NewEventService(db)
	resolverService := services.NewResolverService(db)
	progressStore := services.NewProgressStore(redisClient)
	pipelineService := services.NewPipelineService(db, settingsService, resolverService, eventService, progressStore)
	statusService := services.NewStatusService(db, settingsService, notificationService)
	alertService := services.NewAlertService(db, settingsService, notificationService)
	suggestionService := services.NewSuggestionService(db, settingsService)
	dashboardService := services.NewDashboardService(db)
	reportService := services.NewReportService(db)
	schedulerService := services.NewSchedulerService(cfg, settingsService, pipelineService, statusService, alertService, emailService, suggestionService)

	// Start the recurring jobs
	if err := schedulerService.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Periodic cleanup of expired refresh tokens
	go func() {
		for {
			if err := authService.CleanupExpiredTokens(); err != nil {
				log.Printf("Token cleanup error: %v", err)
			}
			time.Sleep(1 * time.Hour)
		}
	}()

	// Setup Gin router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RateLimiter(redisClient, cfg))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	clientHandler := handlers.NewClientHandler(clientService)
	backupHandler := handlers.NewBackupHandler(backupService)
	emailHandler := handlers.NewEmailHandler(emailService, pipelineService)
	eventHandler := handlers.NewEventHandler(eventService)
	alertHandler := handlers.NewAlertHandler(alertService)
	suggestionHandler := handlers.NewSuggestionHandler(suggestionService)
	settingsHandler := handlers.NewSettingsHandler(settingsService, schedulerService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)
	reportHandler := handlers.NewReportHandler(reportService)
	schedulerHandler := handlers.NewSchedulerHandler(schedulerService, statusService)

	// Health check outside API group (no /api/v1 prefix)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Setup routes
	api := router.Group("/api/v1")
	{
		// Health check also available under /api/v1/health for compatibility
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})

		// Catch-all OPTIONS handler for CORS preflight requests
		api.OPTIONS("/*path", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", middleware.LoginRateLimit(redisClient, cfg.LoginMaxAttempts, cfg.LoginWindow, cfg.LoginBlockDuration), authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", middleware.Auth(authService), authHandler.Logout)
			auth.GET("/me", middleware.Auth(authService), authHandler.Me)
		}

		// Everything else requires authentication
		authed := api.Group("")
		authed.Use(middleware.Auth(authService))
		{
			// Dashboard
			authed.GET("/dashboard", dashboardHandler.Summary)
			authed.GET("/dashboard/attention", dashboardHandler.Attention)

			// Client management
			authed.GET("/clients", clientHandler.List)
			authed.POST("/clients", clientHandler.Create)
			authed.GET("/clients/:id", clientHandler.Get)
			authed.PUT("/clients/:id", clientHandler.Update)
			authed.DELETE("/clients/:id", clientHandler.Delete)

			// Backup management
			authed.GET("/backups", backupHandler.List)
			authed.POST("/backups", backupHandler.Create)
			authed.GET("/backups/:id", backupHandler.Get)
			authed.PUT("/backups/:id", backupHandler.Update)
			authed.DELETE("/backups/:id", backupHandler.Delete)
			authed.POST("/backups/:id/maintenance", backupHandler.SetMaintenance)
			authed.GET("/backups/:id/history", backupHandler.History)
			authed.POST("/backups/:id/resolve-alerts", alertHandler.ResolveAllForBackup)

			// Email archive and analysis
			authed.GET("/emails", emailHandler.List)
			authed.GET("/emails/stats", emailHandler.Stats)
			authed.GET("/emails/:id", emailHandler.Get)
			authed.DELETE("/emails/:id", emailHandler.Delete)
			authed.POST("/emails/analyze", middleware.AnalysisRateLimit(redisClient, cfg.AnalysisMaxPerDay), emailHandler.Analyze)
			authed.GET("/emails/analyze/:run_id", emailHandler.Progress)
			authed.POST("/emails/:id/reprocess", emailHandler.Reprocess)

			// Event history
			authed.GET("/events", eventHandler.List)
			authed.GET("/events/:id", eventHandler.Get)

			// Alert management
			authed.GET("/alerts", alertHandler.List)
			authed.GET("/alerts/unresolved", alertHandler.Unresolved)
			authed.GET("/alerts/:id", alertHandler.Get)
			authed.POST("/alerts/:id/acknowledge", alertHandler.Acknowledge)
			authed.POST("/alerts/:id/resolve", alertHandler.Resolve)
			authed.DELETE("/alerts/:id", alertHandler.Delete)
			authed.POST("/alerts/generate", alertHandler.Generate)

			// Suggestions
			authed.GET("/suggestions", suggestionHandler.List)
			authed.POST("/suggestions/generate", suggestionHandler.Generate)
			authed.POST("/suggestions/:id/dismiss", suggestionHandler.Dismiss)
			authed.POST("/suggestions/:id/implement", suggestionHandler.Implement)

			// Settings
			authed.GET("/settings", settingsHandler.List)
			authed.PUT("/settings", settingsHandler.Update)
			authed.POST("/settings/test-ai", settingsHandler.TestAI)
			authed.POST("/settings/test-email", settingsHandler.TestEmail)

			// Reports
			authed.GET("/reports/backups.csv", reportHandler.BackupsCSV)
			authed.GET("/reports/fleet.pdf", reportHandler.FleetPDF)

			// Scheduler
			authed.GET("/scheduler/jobs", schedulerHandler.Jobs)
			authed.POST("/scheduler/recompute-statuses", schedulerHandler.RecomputeStatuses)
		}
	}

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second, // PDF generation over a large fleet takes a while
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
