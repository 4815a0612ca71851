package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	v1 "ai-receptionist/user-portal/user-portal-backend/api/v1"
	"ai-receptionist/user-portal/user-portal-backend/internal/auth"
	"ai-receptionist/user-portal/user-portal-backend/internal/config"
	"ai-receptionist/user-portal/user-portal-backend/internal/onboarding"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize logger
	logger := newLogger(cfg.Logging)
	defer logger.Sync()

	if cfg.Security.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	// Connect to database
	var db *sqlx.DB
	if cfg.Database.Driver == config.DriverPostgres {
		logger.Info("Connecting to database",
			zap.String("host", cfg.Database.Host),
			zap.String("db_name", cfg.Database.DBName))
		db, err = sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		db.SetMaxOpenConns(cfg.Database.MaxConnections)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

		if cfg.Database.AutoMigrate {
			if err := onboarding.Migrate(db.DB); err != nil {
				logger.Fatal("Failed to migrate database", zap.Error(err))
			}
		}
	}

	// Initialize Onboarding Module
	onboardingAPI, err := v1.SetupOnboardingAPI(db, logger, cfg.Server.AllowedOrigins)
	if err != nil {
		logger.Fatal("Failed to set up onboarding API", zap.Error(err))
	}
	defer onboardingAPI.Close()
	tokens := auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.TokenTTL)

	// Setup Router
	if cfg.Logging.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowOrigin(cfg.Server.AllowedOrigins, c.GetHeader("Origin")))
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register Routes
	api := router.Group("/api/v1")
	{
		v1.RegisterOnboardingRoutes(api, onboardingAPI, tokens)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		if db != nil {
			if err := db.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(200, gin.H{
			"status":    status,
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr), zap.String("database", cfg.Database.Driver))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func allowOrigin(allowed []string, origin string) string {
	if slices.Contains(allowed, "*") {
		return "*"
	}
	if slices.Contains(allowed, origin) {
		return origin
	}
	return ""
}

func newLogger(cfg config.LoggingConfig) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.Level); err == nil {
		zcfg.Level = level
	}
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("user_id", auth.UserID(c)))
	}
}
