package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lifeline-plus/config"
	deliveryHttp "lifeline-plus/internal/delivery/http"
	"lifeline-plus/internal/delivery/http/handler"
	"lifeline-plus/internal/delivery/http/middleware"
	"lifeline-plus/internal/infrastructure/cache"
	"lifeline-plus/internal/infrastructure/database"
	"lifeline-plus/internal/infrastructure/geocoder"
	"lifeline-plus/internal/infrastructure/sms"
	"lifeline-plus/internal/repository"
	"lifeline-plus/internal/service"
	"lifeline-plus/internal/service/alertfeed"
	"lifeline-plus/internal/service/location"
	"lifeline-plus/internal/usecase"
	"lifeline-plus/pkg/jwt"
	"lifeline-plus/pkg/metrics"
	"lifeline-plus/pkg/validator"

	"github.com/natefinch/lumberjack"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"gorm.io/gorm"
)

// App holds all dependencies for the application
type App struct {
	Config      *config.Config
	DB          *gorm.DB
	RedisClient *redis.Client
	Server      *http.Server
	closers     []io.Closer
}

// New creates a new App instance with all dependencies initialized
func New(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	// Setup logger
	log, logFile := setupLogger(cfg.Log)
	if logFile != nil {
		app.closers = append(app.closers, logFile)
	}

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.DB, cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = db
	log.Info("Database connected successfully")

	if cfg.DB.MigrationsRun {
		if err := database.RunMigrations(db); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	if err := repository.NewRoleRepository().EnsureDefaults(db); err != nil {
		return nil, fmt.Errorf("failed to seed roles: %w", err)
	}

	// Initialize Redis
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	app.RedisClient = redisClient
	log.Info("Redis connected successfully")

	// Initialize all layers
	server, err := app.initializeServer(cfg, log, db, redisClient)
	if err != nil {
		return nil, err
	}
	app.Server = server

	return app, nil
}

// setupLogger configures the logrus standard logger. When LOG_FILE is set
// the output is also written to a rotating file.
func setupLogger(cfg config.LogConfig) (*logrus.Logger, io.Closer) {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.File == "" {
		log.SetOutput(os.Stdout)
		return log, nil
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	return log, file
}

// initializeServer creates and configures the HTTP server
func (app *App) initializeServer(cfg *config.Config, log *logrus.Logger, db *gorm.DB, redisClient *redis.Client) (*http.Server, error) {
	// Initialize JWT service
	jwtService := jwt.NewJWTService(cfg.JWT)

	// Initialize validator
	customValidator := validator.NewValidator()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(registry)

	// Initialize repositories
	userRepo := repository.NewUserRepository()
	doctorProfileRepo := repository.NewDoctorProfileRepository()
	patientProfileRepo := repository.NewPatientProfileRepository()
	alertRepo := repository.NewEmergencyAlertRepository()
	appointmentRepo := repository.NewAppointmentRepository()
	auditLogRepo := repository.NewAuditLogRepository()

	// External services
	dispatcher := sms.NewTwilioDispatcher(cfg.Twilio, log)
	reverseGeocoder := geocoder.NewOpenCageGeocoder(cfg.Geocoder, log)
	feed := alertfeed.NewFeed(redisClient, alertfeed.DefaultChannel, log)

	positionCache := location.NewPositionCache(redisClient, cfg.Location.MaxAge)
	locators := []location.Locator{location.NewDeviceLocator(cfg.Location.MaxAge), positionCache}
	if cfg.Location.GeoIPPath != "" {
		geoIP, err := location.OpenGeoIPLocator(cfg.Location.GeoIPPath)
		if err != nil {
			log.Warnf("GeoIP fallback disabled: %v", err)
		} else {
			locators = append(locators, geoIP)
			app.closers = append(app.closers, geoIP)
		}
	}
	acquirer := location.NewAcquirer(cfg.Location.Timeout, positionCache, log, locators...)

	// Initialize services
	auditService := service.NewAuditService(db, log, auditLogRepo)

	// Initialize usecases
	authUsecase := usecase.NewAuthUsecase(db, log, userRepo, doctorProfileRepo, patientProfileRepo, auditService, jwtService, redisClient)
	emergencyUsecase := usecase.NewEmergencyUsecase(db, log, alertRepo, doctorProfileRepo, auditService,
		acquirer, dispatcher, reverseGeocoder, feed, appMetrics, cfg.Twilio.ReceiverPhone)
	appointmentUsecase := usecase.NewAppointmentUsecase(db, log, appointmentRepo, doctorProfileRepo, auditService)
	doctorProfileUsecase := usecase.NewDoctorProfileUsecase(db, log, doctorProfileRepo, auditService)
	patientProfileUsecase := usecase.NewPatientProfileUsecase(db, log, patientProfileRepo, auditService)
	auditLogUsecase := usecase.NewAuditLogUsecase(db, log, auditLogRepo)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authUsecase, customValidator)
	emergencyHandler := handler.NewEmergencyHandler(emergencyUsecase, feed, customValidator, log)
	sosHandler := handler.NewSOSHandler(emergencyUsecase, customValidator)
	appointmentHandler := handler.NewAppointmentHandler(appointmentUsecase, customValidator)
	doctorHandler := handler.NewDoctorHandler(doctorProfileUsecase, customValidator)
	patientHandler := handler.NewPatientHandler(patientProfileUsecase, customValidator)
	auditLogHandler := handler.NewAuditLogHandler(auditLogUsecase)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService, redisClient)
	corsMiddleware := middleware.NewCORSMiddleware("")
	requestLogger := middleware.NewRequestLogger(log, appMetrics)

	limiterStore, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "limiter_login"})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter store: %w", err)
	}
	loginLimit, err := middleware.NewRateLimit(limiterStore, cfg.Limiter.LoginRate, appMetrics)
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_RATE_LIMIT %q: %w", cfg.Limiter.LoginRate, err)
	}

	// Initialize router
	router := deliveryHttp.NewRouter(
		authHandler, emergencyHandler, sosHandler, appointmentHandler,
		doctorHandler, patientHandler, auditLogHandler,
		authMiddleware, corsMiddleware, requestLogger,
		loginLimit, appMetrics.Handler(),
	)

	// Create server
	serverAddr := fmt.Sprintf(":%s", cfg.App.Port)
	return &http.Server{
		Addr:              serverAddr,
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// Run starts the HTTP server and handles graceful shutdown
func (app *App) Run() {
	// Start server in goroutine
	go func() {
		logrus.Infof("Server starting on port %s", app.Config.App.Port)
		logrus.Infof("Environment: %s", app.Config.App.Env)
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	app.waitForShutdown()
}

// waitForShutdown blocks until an interrupt signal is received
func (app *App) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server gracefully
	if err := app.Server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	// Close connections
	app.Close()

	logrus.Info("Server shutdown complete")
}

// Close closes all connections (database, redis, geoip reader, log file)
func (app *App) Close() {
	// Close database connection
	if app.DB != nil {
		sqlDB, err := app.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	// Close Redis connection
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}

	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i].Close()
	}
}
