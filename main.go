package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/access"
	"github.com/opsline-io/opsline-engine/pkg/audit"
	"github.com/opsline-io/opsline-engine/pkg/auth"
	"github.com/opsline-io/opsline-engine/pkg/central"
	"github.com/opsline-io/opsline-engine/pkg/config"
	"github.com/opsline-io/opsline-engine/pkg/database"
	"github.com/opsline-io/opsline-engine/pkg/handlers"
	"github.com/opsline-io/opsline-engine/pkg/logging"
	"github.com/opsline-io/opsline-engine/pkg/middleware"
	"github.com/opsline-io/opsline-engine/pkg/repositories"
	"github.com/opsline-io/opsline-engine/pkg/retry"
	"github.com/opsline-io/opsline-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.SessionSecret == "" {
		log.Fatalf("SESSION_SECRET is required")
	}

	// Resolve localhost to host.docker.internal when running inside a container
	cfg.Database.Host = config.ResolveHostForDocker(cfg.Database.Host)
	if cfg.Redis.Host != "" {
		cfg.Redis.Host = config.ResolveHostForDocker(cfg.Redis.Host)
	}

	// Log startup configuration
	log.Printf("Configuration loaded:")
	log.Printf("  Environment: %s", cfg.Env)
	log.Printf("  Base URL: %s", cfg.BaseURL)
	log.Printf("  Auth verification: %v", cfg.Auth.EnableVerification)
	log.Printf("  Database: %s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	if cfg.Redis.Host != "" {
		log.Printf("  Redis: %s:%d", cfg.Redis.Host, cfg.Redis.Port)
	} else {
		log.Printf("  Redis: disabled")
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run migrations through database/sql before opening the pgx pool
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open database for migrations", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, "migrations", logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.String("error", logging.SanitizeError(err)))
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	// Connection pool with retry: the database may still be starting up
	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.ConnectionString(),
			MaxConnections: cfg.Database.MaxConnections,
			MinConnections: cfg.Database.MinConnections,
		})
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	// Redis is optional; dashboard summaries are computed on demand without it
	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.String("error", logging.SanitizeError(err)))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Authentication
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	defer jwksClient.Close()

	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)
	auth.InitSessionStore(cfg.SessionSecret)

	scopeMiddleware := handlers.ScopeMiddleware(access.WithScope(logger))
	auditor := audit.NewSecurityAuditor(logger)

	// Repositories
	clientRepo := repositories.NewClientRepository(db)
	userRepo := repositories.NewUserRepository(db)
	shiftRepo := repositories.NewShiftRepository(db)
	productionRepo := repositories.NewProductionRepository(db)
	qualityRepo := repositories.NewQualityRepository(db)
	attendanceRepo := repositories.NewAttendanceRepository(db)
	downtimeRepo := repositories.NewDowntimeRepository(db)
	workOrderRepo := repositories.NewWorkOrderRepository(db)
	holdRepo := repositories.NewHoldRepository(db)

	// Scope change notifications are best effort and only sent when central
	// is configured
	var centralClient *central.Client
	if cfg.AuthServerURL != "" && cfg.CentralServiceToken != "" {
		centralClient = central.NewClient(cfg.AuthServerURL, cfg.CentralServiceToken, logger)
	}

	// Services
	estimator := services.NewMovingAverageEstimator(productionRepo, cfg.KPI.InferenceWindow)
	clientService := services.NewClientService(clientRepo, logger)
	userService := services.NewUserService(userRepo, centralClient, logger)
	shiftService := services.NewShiftService(shiftRepo, logger)
	productionService := services.NewProductionService(productionRepo, shiftRepo, estimator, logger)
	qualityService := services.NewQualityService(qualityRepo, logger)
	attendanceService := services.NewAttendanceService(attendanceRepo, logger)
	downtimeService := services.NewDowntimeService(downtimeRepo, shiftRepo, logger)
	workOrderService := services.NewWorkOrderService(workOrderRepo, logger)
	holdService := services.NewHoldService(holdRepo, workOrderRepo, logger)
	kpiService := services.NewKPIService(
		productionRepo,
		qualityRepo,
		attendanceRepo,
		downtimeRepo,
		holdRepo,
		workOrderRepo,
		shiftRepo,
		clientRepo,
		estimator,
		logger,
	)
	dashboardService := services.NewDashboardService(kpiService, redisClient, cfg.KPI.DashboardCacheTTL(), logger)
	oauthService := services.NewOAuthService(&services.OAuthConfig{
		BaseURL:       cfg.BaseURL,
		ClientID:      cfg.OAuth.ClientID,
		AuthServerURL: cfg.AuthServerURL,
		JWKSEndpoints: cfg.Auth.JWKSEndpoints,
	}, logger)

	// Background hold aging sweep
	holdAgingService := services.NewHoldAgingService(holdRepo, clientRepo, cfg.KPI.HoldAgingThresholdDays, logger)
	holdAgingService.RunScheduler(ctx, cfg.KPI.HoldAgingSweepInterval())

	mux := http.NewServeMux()

	// Register handlers
	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	wellKnownHandler := handlers.NewWellKnownHandler(cfg, logger)
	wellKnownHandler.RegisterRoutes(mux)

	authHandler := handlers.NewAuthHandler(oauthService, cfg, logger)
	authHandler.RegisterRoutes(mux, authMiddleware)

	centralHandler := handlers.NewCentralHandler(clientService, userService, logger)
	centralHandler.RegisterRoutes(mux, authMiddleware)

	clientHandler := handlers.NewClientHandler(clientService, auditor, logger)
	clientHandler.RegisterRoutes(mux, authMiddleware, scopeMiddleware)

	userHandler := handlers.NewUserHandler(userService, auditor, logger)
	userHandler.RegisterRoutes(mux, authMiddleware, scopeMiddleware)

	shiftHandler := handlers.NewShiftHandler(shiftService, auditor, logger)
	shiftHandler.RegisterRoutes(mux, authMiddleware, scopeMiddleware)

	productionHandler := handlers.NewProductionHandler(productionService, auditor, logger)
	productionHandler.RegisterRoutes(mux, authMiddleware, scopeMiddleware)

	qualityHandler := handlers.NewQualityHandler(qualityService, auditor, logger)
	qualityHandler.RegisterRoutes(mux, authMiddleware, scopeMiddleware)

	attendanceHandler := handlers.NewAttendanceHandler(attendanceService, auditor, logger)
	attendanceHandler.RegisterRoutes(mux, authMiddleware, scopeMiddleware)

	downtimeHandler := handlers.NewDowntimeHandler(downtimeService, auditor, logger)
	downtimeHandler.RegisterRoutes(mux, authMiddleware, scopeMiddleware)

	workOrderHandler := handlers.NewWorkOrderHandler(workOrderService, auditor, logger)
	workOrderHandler.RegisterRoutes(mux, authMiddleware, scopeMiddleware)

	holdHandler := handlers.NewHoldHandler(holdService, auditor, logger)
	holdHandler.RegisterRoutes(mux, authMiddleware, scopeMiddleware)

	kpiHandler := handlers.NewKPIHandler(kpiService, auditor, logger)
	kpiHandler.RegisterRoutes(mux, authMiddleware, scopeMiddleware)

	dashboardHandler := handlers.NewDashboardHandler(dashboardService, auditor, logger)
	dashboardHandler.RegisterRoutes(mux, authMiddleware, scopeMiddleware)

	// Serve static UI files from ui/dist
	fs := http.FileServer(http.Dir("./ui/dist"))
	mux.Handle("/", fs)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Starting opsline-engine",
		zap.String("addr", server.Addr),
		zap.String("version", cfg.Version),
		zap.Bool("tls", cfg.TLSCertPath != ""))

	if cfg.TLSCertPath != "" && cfg.TLSKeyPath != "" {
		err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}
