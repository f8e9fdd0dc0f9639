package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/beamup-io/beamup/internal/auth"
	"github.com/beamup-io/beamup/internal/common"
	"github.com/beamup-io/beamup/internal/platform"
	"github.com/beamup-io/beamup/internal/storage"
	"github.com/beamup-io/beamup/internal/uploader"
	"github.com/beamup-io/beamup/internal/videos"
	"github.com/beamup-io/beamup/pkg/config"
)

func main() {
	// Load configuration
	cfg := config.LoadFromEnv()

	// Setup logging
	cfg.Logging.SetupLogging()

	log.Info().Msg("starting beamup server")

	// Initialize database
	db, err := common.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Initialize cache
	cache, err := common.NewCache(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer cache.Close()

	// Initialize storage
	storageFactory := storage.NewStorageFactory(&cfg.Storage)
	blobStorage, err := storageFactory.CreateStorage(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	// Initialize services
	platformClient := platform.NewClient(&cfg.Platform)
	uploadService := uploader.NewService(blobStorage, platformClient, &cfg.Platform)
	authService := auth.NewService(db, cache, platformClient, &cfg.Auth)
	videoService := videos.NewService(db, blobStorage, uploadService, platformClient, &cfg.Storage)

	// Setup HTTP server
	router := setupRouter(authService, videoService, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	} else {
		log.Info().Msg("server shutdown complete")
	}
}

func setupRouter(authService *auth.Service, videoService *videos.Service, cfg *config.Config) *gin.Engine {
	// Set Gin mode based on log level
	if zerolog.GlobalLevel() == zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "beamup-server",
			"time":    time.Now().UTC(),
		})
	})

	// Static web UI
	router.Static("/app", cfg.Server.StaticDir)

	// API routes
	api := router.Group("/api/v1")
	{
		// OAuth connect flow
		authRoutes := api.Group("/auth")
		{
			authRoutes.GET("/connect", handleConnect(authService))
			authRoutes.GET("/callback", handleCallback(authService))
		}

		// Source object uploads
		uploads := api.Group("/uploads")
		uploads.Use(authMiddleware(authService))
		{
			uploads.POST("/presign", handlePresign(videoService))
		}

		// Publishing and listing
		videoRoutes := api.Group("/videos")
		videoRoutes.Use(authMiddleware(authService))
		{
			videoRoutes.POST("/publish", handlePublish(videoService))
			videoRoutes.GET("", handleListRemote(videoService))
			videoRoutes.GET("/published", handleListPublished(videoService))
		}
	}

	return router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
