package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/mozilla/clouseau/docs"
	"github.com/mozilla/clouseau/internal/config"
	"github.com/mozilla/clouseau/internal/handler"
	"github.com/mozilla/clouseau/internal/middleware"
	"github.com/mozilla/clouseau/internal/navigation"
	"github.com/mozilla/clouseau/internal/render"
	"github.com/mozilla/clouseau/internal/repository"
	"github.com/mozilla/clouseau/internal/routes"
	"github.com/mozilla/clouseau/internal/service"
	"github.com/mozilla/clouseau/internal/ws"
	"github.com/mozilla/clouseau/pkg/cache"
	pkglogger "github.com/mozilla/clouseau/pkg/logger"
	"github.com/mozilla/clouseau/pkg/patchlink"
	pkgredis "github.com/mozilla/clouseau/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
)

// @title           Clouseau Dashboard API
// @version         1.0
// @description     Crash signatures, backtraces and guilty patches per product, channel and date
//
// @license.name    MPL-2.0
//
// @host            localhost:8080
// @BasePath        /api/v1

func main() {
	dotenvFiles := config.LoadDotEnv()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	log := pkglogger.GetLogger()
	pkglogger.Info("APP_ENV=%s, loaded env files: %v", env, dotenvFiles)

	configPath := config.ConfigPath(env)
	pkglogger.Info("Loading config from: %s", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg.Env = env
	pkglogger.SetLevel(cfg.LogLevel)
	config.LogResolved(cfg)

	// Redis is optional: without it every fetch goes to the upstream
	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(context.Background(), pkgredis.Options{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			pkglogger.Warn("Failed to connect to Redis: %v (continuing without Redis)", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			pkglogger.Info("Redis connected at %s:%d", cfg.Redis.Host, cfg.Redis.Port)
		}
	}
	cacheService := cache.NewService(redisClient)
	if cfg.Cache.FlushOnStart && cacheService.IsAvailable() {
		if err := cacheService.InvalidateDatasets(context.Background()); err != nil {
			pkglogger.Warn("Failed to flush cached datasets: %v", err)
		}
	}

	// Upstream -> cache -> sessions -> service
	upstream := repository.NewHTTPDatasetRepository(repository.UpstreamConfig{
		BaseURL:         cfg.Upstream.BaseURL,
		CatalogPath:     cfg.Upstream.CatalogPath,
		DatasetPath:     cfg.Upstream.DatasetPath,
		Timeout:         cfg.Upstream.Timeout,
		DefaultProducts: cfg.Deployment.Products,
	}, nil)
	datasets := repository.NewCachedDatasetRepository(upstream, cacheService, &repository.CacheConfig{
		CatalogTTL: cfg.Cache.CatalogTTL,
		DatasetTTL: cfg.Cache.DatasetTTL,
	})

	hub := ws.NewHub(redisClient)
	go hub.Run()
	defer hub.Stop()

	sessions := navigation.NewManager(datasets, cfg.Session.IdleTTL, navigation.WithNotifier(hub))
	defer sessions.Close()

	renderer := render.NewRenderer(patchlink.New(cfg.Links.Repository, cfg.Links.CrashStats))
	dashboardService := service.NewDashboardService(sessions, renderer, cfg.Deployment.Channel, cfg.Server.RenderWait)

	var pinger handler.Pinger
	if cacheService.IsAvailable() {
		pinger = cacheService
	}
	dashboardHandler := handler.NewDashboardHandler(dashboardService, 2*time.Second)
	healthHandler := handler.NewHealthHandler(pinger, sessions.Len)
	wsHandler := handler.NewWSHandler(hub, cfg.Server.AllowOrigins)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID"},
		MaxAge:           12 * time.Hour,
	}
	if origins := config.SplitAndTrim(cfg.Server.AllowOrigins, ","); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	routes.Setup(router, dashboardHandler, healthHandler, wsHandler, middleware.SessionConfig{
		CookieName: cfg.Session.CookieName,
		MaxAge:     cfg.Session.IdleTTL,
		Secure:     !cfg.IsDevelopment(),
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		pkglogger.Info("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	pkglogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
}
