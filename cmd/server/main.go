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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/retrofails/backend/internal/config"
	"github.com/retrofails/backend/internal/controllers"
	"github.com/retrofails/backend/internal/database"
	"github.com/retrofails/backend/internal/logger"
	"github.com/retrofails/backend/internal/middleware"
	"github.com/retrofails/backend/internal/routes"
	"github.com/retrofails/backend/internal/services"
	"gorm.io/gorm"
)

const version = "1.0.0"

// app is the wired server plus what /health needs to probe.
type app struct {
	deps      routes.Dependencies
	db        *gorm.DB
	redis     *services.RedisNavigationStore
	imageDir  string
	closeFunc func()
}

func main() {
	cfg, dotenvFound, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	logger.Initialize(cfg.LogLevel, cfg.LogDir)
	if !dotenvFound {
		logger.Warn("No .env file found, using environment variables", nil)
	}

	if cfg.GinMode == gin.ReleaseMode || cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := wire(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer a.closeFunc()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics(registry)

	// Create router without default middleware
	r := gin.New()

	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.AllowedOrigins()...))
	r.Use(metrics.Handler())
	r.Use(gin.Recovery())

	r.GET("/health", a.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	if a.imageDir != "" {
		r.Static("/images", a.imageDir)
	}

	routes.SetupRoutes(r, a.deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Starting incident catalog server", map[string]interface{}{
		"port":          cfg.Port,
		"gin_mode":      gin.Mode(),
		"data_backend":  cfg.DataBackend,
		"auth_provider": cfg.AuthProvider,
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server gracefully...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		logger.Info("Server exited gracefully", nil)
	}
}

// wire builds the incident source, auth provider, image store and navigation
// store for the configured backend mode.
func wire(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{closeFunc: func() {}}

	if cfg.NeedsDatabase() {
		db, err := database.Connect(cfg.DatabaseURL, cfg.LogLevel == "DEBUG")
		if err != nil {
			return nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, err
		}
		a.db = db

		if cfg.Env == "development" {
			seedDevelopmentData(cfg, db)
		}
	}

	var hosted *services.HostedClient
	if cfg.NeedsHostedBackend() {
		hosted = services.NewHostedClient(services.HostedClientConfig{
			BaseURL:    cfg.BackendURL,
			AnonKey:    cfg.BackendAnonKey,
			ServiceKey: cfg.BackendServiceKey,
			Table:      cfg.IncidentsTable,
			Bucket:     cfg.ImageBucket,
			SiteURL:    cfg.SiteURL,
			Timeout:    cfg.BackendTimeout,
		})
	}

	switch cfg.DataBackend {
	case config.DataBackendPostgres:
		a.deps.Incidents = services.NewIncidentRepository(a.db)
		disk := services.NewDiskImageStore(cfg.ImageDir, "/images")
		a.deps.Images = disk
		a.imageDir = disk.Dir()
	default:
		a.deps.Incidents = hosted
		a.deps.Images = hosted
	}

	switch cfg.AuthProvider {
	case config.AuthProviderLocal:
		local := services.NewLocalAuthService(a.db, services.LocalAuthConfig{
			Secret:     cfg.JWTSecret,
			AccessTTL:  cfg.AccessTokenTTL,
			RefreshTTL: cfg.RefreshTokenTTL,
			ResetTTL:   cfg.ResetTokenTTL,
		})
		a.deps.Users = a.db
		a.deps.Auth = local
		// roles are reloaded from the users table on every request
		a.deps.Verifier = local
	default:
		a.deps.Auth = hosted
		// With no secret, tokens are checked by asking the provider
		a.deps.Verifier = services.NewJWTVerifier(cfg.JWTSecret, hosted)
	}

	var store services.NavigationStore
	if cfg.RedisURL != "" {
		redisStore, err := services.NewRedisNavigationStore(ctx, cfg.RedisURL, cfg.NavigationTTL)
		if err != nil {
			return nil, err
		}
		a.redis = redisStore
		a.closeFunc = func() {
			if err := redisStore.Close(); err != nil {
				logger.Warn("Failed to close redis connection", map[string]interface{}{"error": err.Error()})
			}
		}
		store = redisStore
		logger.Info("Navigation sessions stored in redis", nil)
	} else {
		store = services.NewMemoryNavigationStore(cfg.NavigationTTL, 0)
		logger.Info("Navigation sessions stored in memory", nil)
	}

	a.deps.Catalog = services.NewCatalogService(a.deps.Incidents, nil)
	a.deps.Navigation = services.NewNavigationService(a.deps.Catalog, store)
	a.deps.Cookies = controllers.CookieSettings{
		Secure:     cfg.IsProduction(),
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}
	a.deps.NavigationTTL = cfg.NavigationTTL
	return a, nil
}

func seedDevelopmentData(cfg *config.Config, db *gorm.DB) {
	logger.Info("Seeding database with initial data...", nil)

	if cfg.AuthProvider == config.AuthProviderLocal {
		if path, err := database.FindDataFile("initial-users.json"); err == nil {
			if _, err := database.SeedUsers(db, path); err != nil {
				logger.Warn("Failed to seed users", map[string]interface{}{"error": err.Error()})
			}
		}
	}
	if cfg.DataBackend == config.DataBackendPostgres {
		if path, err := database.FindDataFile("initial-incidents.json"); err == nil {
			if _, err := database.SeedIncidents(db, path); err != nil {
				logger.Warn("Failed to seed incidents", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

type componentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func check(err error) componentHealth {
	if err != nil {
		return componentHealth{Status: "error", Error: err.Error()}
	}
	return componentHealth{Status: "ok"}
}

func (a *app) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]componentHealth{
		"backend": check(a.deps.Incidents.Ping(ctx)),
	}
	if a.db != nil {
		checks["database"] = check(database.Ping(ctx, a.db))
	}
	if a.redis != nil {
		checks["navigation_store"] = check(a.redis.Ping(ctx))
	}

	overallStatus := "ok"
	statusCode := http.StatusOK
	for _, h := range checks {
		if h.Status != "ok" {
			overallStatus = "error"
			statusCode = http.StatusServiceUnavailable
		}
	}

	hostname, _ := os.Hostname()
	c.JSON(statusCode, gin.H{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   version,
		"host":      hostname,
		"services":  checks,
	})
}
