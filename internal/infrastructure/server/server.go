package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	httpHandlers "github.com/taskpilot/core/internal/adapters/http"
	"github.com/taskpilot/core/internal/adapters/notify"
	"github.com/taskpilot/core/internal/adapters/repository"
	"github.com/taskpilot/core/internal/application/services"
	"github.com/taskpilot/core/internal/infrastructure/config"
	"github.com/taskpilot/core/internal/infrastructure/database"
	"github.com/taskpilot/core/internal/infrastructure/logger"
	"github.com/taskpilot/core/internal/infrastructure/metrics"
	"github.com/taskpilot/core/internal/infrastructure/scheduler"
	"github.com/taskpilot/core/internal/ports"
)

// Server represents the HTTP server and the in-process reminder loop
type Server struct {
	echo      *echo.Echo
	config    *config.Config
	logger    *logger.Logger
	db        *database.DB
	scheduler *scheduler.Scheduler
	reminders *services.ReminderService
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New creates a new server instance
func New(cfg *config.Config, db *database.DB, appLogger *logger.Logger) (*Server, error) {
	e := echo.New()

	// Set custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true

	// Custom error handler
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	registry := prometheus.NewRegistry()
	domainMetrics := metrics.New(registry)

	// Initialize repositories
	taskRepo := repository.NewTaskRepository(db)
	ledgerRepo := repository.NewNotificationLogRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// Notification sinks are optional: an unset credential leaves the
	// channel nil and the dispatcher skips it.
	var emailSender ports.EmailSender
	if cfg.Notifications.ResendAPIKey != "" {
		emailSender = notify.NewResendEmailSender(cfg.Notifications.ResendAPIKey, cfg.Notifications.EmailFrom)
	} else {
		appLogger.Warn("RESEND_API_KEY not set, email notifications disabled")
	}

	var smsSender ports.SMSSender
	if cfg.Notifications.TwilioAccountSID != "" {
		smsSender = notify.NewTwilioSMSSender(
			cfg.Notifications.TwilioAccountSID,
			cfg.Notifications.TwilioAuthToken,
			cfg.Notifications.TwilioFromNumber,
		)
	} else {
		appLogger.Warn("TWILIO_ACCOUNT_SID not set, SMS notifications disabled")
	}

	// Initialize services
	recurrenceService := services.NewRecurrenceService(taskRepo, appLogger, domainMetrics)
	dispatchService := services.NewDispatchService(emailSender, smsSender, cfg.Notifications, appLogger, domainMetrics)
	reminderService := services.NewReminderService(
		taskRepo, ledgerRepo, settingsRepo,
		recurrenceService, dispatchService,
		cfg.Notifications, nil, appLogger, domainMetrics,
	)
	taskService := services.NewTaskService(taskRepo, recurrenceService, appLogger)
	settingsService := services.NewSettingsService(settingsRepo, cfg.Notifications, appLogger)

	// Initialize handlers
	taskHandler := httpHandlers.NewTaskHandler(taskService, appLogger)
	settingsHandler := httpHandlers.NewSettingsHandler(settingsService, appLogger)
	notificationHandler := httpHandlers.NewNotificationHandler(reminderService, appLogger)

	server := &Server{
		echo:      e,
		config:    cfg,
		logger:    appLogger,
		db:        db,
		scheduler: scheduler.New(time.UTC),
		reminders: reminderService,
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup routes
	server.setupRoutes(taskHandler, settingsHandler, notificationHandler)

	// Setup metrics
	if cfg.Metrics.Enabled {
		server.setupMetrics(registry)
	}

	return server, nil
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Logger middleware
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", values.Method,
				"uri", values.URI,
				"status", values.Status,
				"latency_ms", float64(values.Latency.Nanoseconds()) / 1000000,
				"remote_ip", values.RemoteIP,
				"user_agent", values.UserAgent,
			}

			if values.Error != nil {
				fields = append(fields, "error", values.Error.Error())
				s.logger.Errorw("HTTP request failed", fields...)
			} else {
				s.logger.Infow("HTTP request", fields...)
			}

			return nil
		},
	}))

	// CORS middleware
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(s.config.Security.CORSAllowedOrigins, ","),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.PATCH, echo.POST, echo.DELETE},
	}))

	// Rate limiting middleware
	s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{Rate: rate.Limit(s.config.Security.RateLimitRequests), Burst: s.config.Security.RateLimitRequests, ExpiresIn: s.config.Security.RateLimitWindow},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			id := ctx.RealIP()
			return id, nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return context.JSON(http.StatusForbidden, map[string]string{"message": "rate limit exceeded"})
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return context.JSON(http.StatusTooManyRequests, map[string]string{"message": "rate limit exceeded"})
		},
	}))

	// Security headers
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
	}))

	// Request ID middleware
	s.echo.Use(middleware.RequestID())

	// Timeout middleware
	s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 30 * time.Second,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(taskHandler *httpHandlers.TaskHandler, settingsHandler *httpHandlers.SettingsHandler, notificationHandler *httpHandlers.NotificationHandler) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Task routes
	taskGroup := v1.Group("/tasks")
	taskGroup.GET("", taskHandler.ListTasks)
	taskGroup.POST("", taskHandler.CreateTask)
	taskGroup.GET("/:id", taskHandler.GetTask)
	taskGroup.PUT("/:id", taskHandler.UpdateTask)
	taskGroup.DELETE("/:id", taskHandler.DeleteTask)
	taskGroup.POST("/:id/complete", taskHandler.ToggleStatus)
	taskGroup.POST("/:id/notifications", taskHandler.ToggleNotifications)

	// Settings routes
	settingsGroup := v1.Group("/settings")
	settingsGroup.GET("", settingsHandler.GetSettings)
	settingsGroup.PUT("", settingsHandler.UpdateSettings)

	// Notification trigger routes. GET exists for external cron services
	// that can only issue plain requests.
	notificationGroup := v1.Group("/notifications")
	notificationGroup.POST("", notificationHandler.Trigger)
	notificationGroup.GET("", notificationHandler.TriggerCron)
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics(registry *prometheus.Registry) {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	registry.MustRegister(requestsTotal, requestDuration)

	// Custom metrics middleware
	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start)
			status := c.Response().Status

			requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(duration.Seconds())

			return err
		}
	})

	// Metrics endpoint
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	status := "ok"
	checks := make(map[string]interface{})

	// Database health check
	if err := s.db.HealthCheck(); err != nil {
		status = "error"
		checks["database"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	} else {
		checks["database"] = map[string]interface{}{
			"status": "ok",
			"stats":  s.db.GetConnectionInfo(),
		}
	}

	checks["scheduler"] = map[string]interface{}{
		"enabled":        s.config.Notifications.SchedulerEnabled,
		"check_interval": s.config.Notifications.CheckInterval.String(),
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
			"go":  "1.21",
		},
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	// Check if server is ready to accept requests
	if err := s.db.Ping(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "database_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server and, when enabled, the reminder loop
func (s *Server) Start(address string) error {
	if s.config.Notifications.SchedulerEnabled {
		if err := s.startReminderLoop(); err != nil {
			return fmt.Errorf("start reminder loop: %w", err)
		}
	}

	s.logger.Infow("Starting server", "address", address)
	return s.echo.Start(address)
}

// startReminderLoop schedules the periodic reminder tick.
func (s *Server) startReminderLoop() error {
	interval := s.config.Notifications.CheckInterval

	_, err := s.scheduler.ScheduleInterval(interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()

		if _, err := s.reminders.RunTick(ctx, ports.TriggerRequest{}); err != nil {
			// ErrNoContactConfigured is the idle state on a fresh
			// deployment, worth a debug line at most.
			s.logger.Debugw("Reminder tick skipped", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.Start()
	s.logger.Infow("Reminder scheduler started", "check_interval", interval)
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	s.scheduler.Stop()
	return s.echo.Shutdown(ctx)
}

// customErrorHandler handles HTTP errors
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			msg = he.Message
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		} else if e, ok := err.(*validator.ValidationErrors); ok {
			code = http.StatusBadRequest
			msg = map[string]string{"message": "validation failed", "details": e.Error()}
		} else {
			msg = map[string]string{"message": http.StatusText(code)}
		}

		if code == http.StatusInternalServerError {
			logger.Errorw("Internal server error", "error", err, "path", c.Request().URL.Path)
		}

		// Send response
		if !c.Response().Committed {
			if c.Request().Method == echo.HEAD {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, msg)
			}
			if err != nil {
				logger.Errorw("Error sending response", "error", err)
			}
		}
	}
}
