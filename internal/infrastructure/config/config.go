package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Logger        LoggerConfig        `mapstructure:"logger"`
	Security      SecurityConfig      `mapstructure:"security"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORSAllowedOrigins string        `mapstructure:"cors_allowed_origins"`
	RateLimitRequests  int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// NotificationsConfig holds the reminder engine configuration. The
// default contact targets are the fallback when no settings row exists
// and the trigger request carries no override.
type NotificationsConfig struct {
	SchedulerEnabled   bool          `mapstructure:"scheduler_enabled"`
	CheckInterval      time.Duration `mapstructure:"check_interval"`
	WindowMinutes      int           `mapstructure:"window_minutes"`
	ReminderTimes      []int         `mapstructure:"reminder_times"`
	DefaultEmail       string        `mapstructure:"default_email"`
	DefaultPhone       string        `mapstructure:"default_phone"`
	DefaultCountryCode string        `mapstructure:"default_country_code"`
	EmailFrom          string        `mapstructure:"email_from"`
	ResendAPIKey       string        `mapstructure:"resend_api_key"`
	TwilioAccountSID   string        `mapstructure:"twilio_account_sid"`
	TwilioAuthToken    string        `mapstructure:"twilio_auth_token"`
	TwilioFromNumber   string        `mapstructure:"twilio_from_number"`
}

// Load loads configuration from various sources
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()

	// Configure viper
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	setDefaults()

	// Bind environment variables
	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "TaskPilot")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "taskpilot")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.conn_max_idle_time", "30s")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "json")
	viper.SetDefault("logger.output", "stdout")

	// Security defaults
	viper.SetDefault("security.cors_allowed_origins", "*")
	viper.SetDefault("security.rate_limit_requests", 100)
	viper.SetDefault("security.rate_limit_window", "1m")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	// Notifications defaults
	viper.SetDefault("notifications.scheduler_enabled", true)
	viper.SetDefault("notifications.check_interval", "5m")
	viper.SetDefault("notifications.window_minutes", 15)
	viper.SetDefault("notifications.reminder_times", []int{1440, 60})
	viper.SetDefault("notifications.default_email", "")
	viper.SetDefault("notifications.default_phone", "")
	viper.SetDefault("notifications.default_country_code", "+1")
	viper.SetDefault("notifications.email_from", "TaskPilot <reminders@taskpilot.dev>")
	viper.SetDefault("notifications.resend_api_key", "")
	viper.SetDefault("notifications.twilio_account_sid", "")
	viper.SetDefault("notifications.twilio_auth_token", "")
	viper.SetDefault("notifications.twilio_from_number", "")
}

func bindEnvVars() {
	// App
	viper.BindEnv("app.name", "APP_NAME")
	viper.BindEnv("app.version", "APP_VERSION")
	viper.BindEnv("app.environment", "APP_ENVIRONMENT")
	viper.BindEnv("app.debug", "APP_DEBUG")

	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.idle_timeout", "SERVER_IDLE_TIMEOUT")

	// Database
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.name", "DB_NAME")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.ssl_mode", "DB_SSL_MODE")
	viper.BindEnv("database.max_open_conns", "DB_MAX_OPEN_CONNS")
	viper.BindEnv("database.max_idle_conns", "DB_MAX_IDLE_CONNS")
	viper.BindEnv("database.conn_max_lifetime", "DB_CONN_MAX_LIFETIME")
	viper.BindEnv("database.conn_max_idle_time", "DB_CONN_MAX_IDLE_TIME")

	// Logger
	viper.BindEnv("logger.level", "LOG_LEVEL")
	viper.BindEnv("logger.format", "LOG_FORMAT")
	viper.BindEnv("logger.output", "LOG_OUTPUT")

	// Security
	viper.BindEnv("security.cors_allowed_origins", "CORS_ALLOWED_ORIGINS")
	viper.BindEnv("security.rate_limit_requests", "RATE_LIMIT_REQUESTS")
	viper.BindEnv("security.rate_limit_window", "RATE_LIMIT_WINDOW")

	// Metrics
	viper.BindEnv("metrics.enabled", "ENABLE_METRICS")
	viper.BindEnv("metrics.port", "METRICS_PORT")

	// Notifications
	viper.BindEnv("notifications.scheduler_enabled", "NOTIFY_SCHEDULER_ENABLED")
	viper.BindEnv("notifications.check_interval", "NOTIFY_CHECK_INTERVAL")
	viper.BindEnv("notifications.window_minutes", "NOTIFY_WINDOW_MINUTES")
	viper.BindEnv("notifications.default_email", "NOTIFY_DEFAULT_EMAIL")
	viper.BindEnv("notifications.default_phone", "NOTIFY_DEFAULT_PHONE")
	viper.BindEnv("notifications.default_country_code", "NOTIFY_DEFAULT_COUNTRY_CODE")
	viper.BindEnv("notifications.email_from", "NOTIFY_EMAIL_FROM")
	viper.BindEnv("notifications.resend_api_key", "RESEND_API_KEY")
	viper.BindEnv("notifications.twilio_account_sid", "TWILIO_ACCOUNT_SID")
	viper.BindEnv("notifications.twilio_auth_token", "TWILIO_AUTH_TOKEN")
	viper.BindEnv("notifications.twilio_from_number", "TWILIO_FROM_NUMBER")
}

func validateConfig(cfg *Config) error {
	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if cfg.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if cfg.Notifications.WindowMinutes <= 0 {
		return fmt.Errorf("notification window must be positive")
	}

	if cfg.Notifications.CheckInterval <= 0 {
		return fmt.Errorf("notification check interval must be positive")
	}

	// A window narrower than the check interval leaves gaps where a
	// lead time can slip between two ticks unnoticed.
	if time.Duration(cfg.Notifications.WindowMinutes)*time.Minute*2 < cfg.Notifications.CheckInterval {
		return fmt.Errorf("notification window must cover the check interval")
	}

	for _, minutes := range cfg.Notifications.ReminderTimes {
		if minutes < 0 {
			return fmt.Errorf("reminder times must be non-negative")
		}
	}

	return nil
}

// GetDSN returns the database connection string
func (cfg *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// IsDevelopment returns true if the environment is development
func (cfg *AppConfig) IsDevelopment() bool {
	return cfg.Environment == "development"
}

// IsProduction returns true if the environment is production
func (cfg *AppConfig) IsProduction() bool {
	return cfg.Environment == "production"
}
