package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"wellbeing-server/pkg/errors"
)

// Config represents the complete application configuration
type Config struct {
	HTTP      HTTPConfig      `json:"http"`
	Logging   LoggingConfig   `json:"logging"`
	Database  DatabaseConfig  `json:"database"`
	Messaging MessagingConfig `json:"messaging"`
	Insights  InsightsConfig  `json:"insights"`
	Analytics AnalyticsConfig `json:"analytics"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port          int           `json:"port" env:"HTTP_PORT" default:"8080"`
	Enabled       bool          `json:"enabled" env:"HTTP_ENABLED" default:"true"`
	EnableMetrics bool          `json:"enable_metrics" env:"HTTP_ENABLE_METRICS" default:"true"`
	ReadTimeout   time.Duration `json:"read_timeout" env:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout  time.Duration `json:"write_timeout" env:"HTTP_WRITE_TIMEOUT" default:"30s"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL" default:"info"`
	Format     string `json:"format" env:"LOG_FORMAT" default:"json"`
	OutputFile string `json:"output_file" env:"LOG_OUTPUT_FILE"`
}

// DatabaseConfig controls the persistence backend
type DatabaseConfig struct {
	// Driver selects the backend: sqlite or memory
	Driver string `json:"driver" env:"DATABASE_DRIVER" default:"memory"`
	Path   string `json:"path" env:"DATABASE_PATH" default:"./wellbeing.db"`

	// RetentionDays bounds how far back event queries reach
	RetentionDays int `json:"retention_days" env:"DATABASE_RETENTION_DAYS" default:"30"`
}

// MessagingConfig holds AMQP publishing configuration
type MessagingConfig struct {
	AMQPUrl      string        `json:"amqp_url" env:"AMQP_URL"`
	Exchange     string        `json:"exchange" env:"AMQP_EXCHANGE" default:"wellbeing.analysis"`
	RoutingKey   string        `json:"routing_key" env:"AMQP_ROUTING_KEY" default:"analysis.completed"`
	ConsumeQueue string        `json:"consume_queue" env:"AMQP_CONSUME_QUEUE"`
	MaxRetries   int           `json:"max_retries" env:"AMQP_MAX_RETRIES" default:"5"`
	RetryBackoff time.Duration `json:"retry_backoff" env:"AMQP_RETRY_BACKOFF" default:"2s"`
}

// Enabled reports whether AMQP publishing is configured at all.
func (c *MessagingConfig) Enabled() bool {
	return c.AMQPUrl != ""
}

// InsightsConfig holds the generative insight service configuration
type InsightsConfig struct {
	GeminiAPIKey string        `json:"-" env:"GEMINI_API_KEY"`
	GeminiModel  string        `json:"gemini_model" env:"GEMINI_MODEL" default:"gemini-1.5-flash"`
	Timeout      time.Duration `json:"timeout" env:"INSIGHTS_TIMEOUT" default:"10s"`
}

// Enabled reports whether the generative backend is configured.
func (c *InsightsConfig) Enabled() bool {
	return c.GeminiAPIKey != ""
}

// AnalyticsConfig holds the analysis pipeline tunables
type AnalyticsConfig struct {
	// WindowDays is the trailing aggregation window for risk scoring
	WindowDays int `json:"window_days" env:"ANALYTICS_WINDOW_DAYS" default:"3"`

	// HistoryDays bounds how many days of events feed behavioral analysis
	HistoryDays int `json:"history_days" env:"ANALYTICS_HISTORY_DAYS" default:"30"`

	BingeThresholdMinutes float64       `json:"binge_threshold_minutes" env:"ANALYTICS_BINGE_THRESHOLD" default:"45"`
	ContinuityGap         time.Duration `json:"continuity_gap" env:"ANALYTICS_CONTINUITY_GAP" default:"5m"`
}

// Load reads configuration from the environment, optionally seeded from
// a .env file, and applies defaults section by section.
func Load(logger *logrus.Logger) (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		logger.WithError(err).Warn("Failed to get current working directory")
		wd = "unknown"
	}

	possibleEnvFiles := []string{
		".env",
		"../.env",
		filepath.Join(wd, ".env"),
	}

	var loadedFrom string
	for _, envFile := range possibleEnvFiles {
		if _, statErr := os.Stat(envFile); statErr == nil {
			absPath, _ := filepath.Abs(envFile)
			if loadErr := godotenv.Load(envFile); loadErr == nil {
				loadedFrom = absPath
				break
			}
		}
	}

	if loadedFrom != "" {
		logger.WithFields(logrus.Fields{
			"working_dir": wd,
			"path":        loadedFrom,
		}).Info("Successfully loaded .env file")
	} else {
		logger.WithField("working_dir", wd).Debug("No .env file found, using environment variables only")
	}

	config := &Config{}

	if err := loadHTTPConfig(logger, &config.HTTP); err != nil {
		return nil, errors.Wrap(err, "failed to load HTTP configuration")
	}
	if err := loadLoggingConfig(logger, &config.Logging); err != nil {
		return nil, errors.Wrap(err, "failed to load logging configuration")
	}
	if err := loadDatabaseConfig(logger, &config.Database); err != nil {
		return nil, errors.Wrap(err, "failed to load database configuration")
	}
	if err := loadMessagingConfig(logger, &config.Messaging); err != nil {
		return nil, errors.Wrap(err, "failed to load messaging configuration")
	}
	if err := loadInsightsConfig(logger, &config.Insights); err != nil {
		return nil, errors.Wrap(err, "failed to load insights configuration")
	}
	if err := loadAnalyticsConfig(logger, &config.Analytics); err != nil {
		return nil, errors.Wrap(err, "failed to load analytics configuration")
	}

	return config, nil
}

func loadHTTPConfig(logger *logrus.Logger, config *HTTPConfig) error {
	httpPortStr := getEnv("HTTP_PORT", "8080")
	httpPort, err := strconv.Atoi(httpPortStr)
	if err != nil || httpPort < 1 || httpPort > 65535 {
		logger.Warn("Invalid HTTP_PORT value, using default: 8080")
		config.Port = 8080
	} else {
		config.Port = httpPort
	}

	config.Enabled = getEnvBool("HTTP_ENABLED", true)
	config.EnableMetrics = getEnvBool("HTTP_ENABLE_METRICS", true)
	config.ReadTimeout = getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second)
	config.WriteTimeout = getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second)

	return nil
}

func loadLoggingConfig(logger *logrus.Logger, config *LoggingConfig) error {
	config.Level = getEnv("LOG_LEVEL", "info")

	_, err := logrus.ParseLevel(config.Level)
	if err != nil {
		logger.Warnf("Invalid LOG_LEVEL '%s', defaulting to 'info'", config.Level)
		config.Level = "info"
	}

	config.Format = getEnv("LOG_FORMAT", "json")
	if config.Format != "json" && config.Format != "text" {
		logger.Warn("Invalid LOG_FORMAT, must be 'json' or 'text', defaulting to 'json'")
		config.Format = "json"
	}

	config.OutputFile = getEnv("LOG_OUTPUT_FILE", "")

	return nil
}

func loadDatabaseConfig(logger *logrus.Logger, config *DatabaseConfig) error {
	config.Driver = strings.ToLower(getEnv("DATABASE_DRIVER", "memory"))
	if config.Driver != "memory" && config.Driver != "sqlite" {
		logger.Warnf("Invalid DATABASE_DRIVER '%s', defaulting to 'memory'", config.Driver)
		config.Driver = "memory"
	}

	config.Path = getEnv("DATABASE_PATH", "./wellbeing.db")

	config.RetentionDays = getEnvInt("DATABASE_RETENTION_DAYS", 30)
	if config.RetentionDays < 1 {
		logger.Warn("Invalid DATABASE_RETENTION_DAYS value, using default: 30")
		config.RetentionDays = 30
	}

	return nil
}

func loadMessagingConfig(logger *logrus.Logger, config *MessagingConfig) error {
	config.AMQPUrl = getEnv("AMQP_URL", "")
	config.Exchange = getEnv("AMQP_EXCHANGE", "wellbeing.analysis")
	config.RoutingKey = getEnv("AMQP_ROUTING_KEY", "analysis.completed")
	config.ConsumeQueue = getEnv("AMQP_CONSUME_QUEUE", "")
	config.MaxRetries = getEnvInt("AMQP_MAX_RETRIES", 5)
	config.RetryBackoff = getEnvDuration("AMQP_RETRY_BACKOFF", 2*time.Second)

	if config.AMQPUrl == "" {
		logger.Debug("AMQP_URL not set, analysis publishing disabled")
	}

	return nil
}

func loadInsightsConfig(logger *logrus.Logger, config *InsightsConfig) error {
	config.GeminiAPIKey = getEnv("GEMINI_API_KEY", "")
	config.GeminiModel = getEnv("GEMINI_MODEL", "gemini-1.5-flash")
	config.Timeout = getEnvDuration("INSIGHTS_TIMEOUT", 10*time.Second)

	if config.GeminiAPIKey == "" {
		logger.Debug("GEMINI_API_KEY not set, using local insight fallback only")
	}

	return nil
}

func loadAnalyticsConfig(logger *logrus.Logger, config *AnalyticsConfig) error {
	config.WindowDays = getEnvInt("ANALYTICS_WINDOW_DAYS", 3)
	if config.WindowDays < 1 {
		logger.Warn("Invalid ANALYTICS_WINDOW_DAYS value, using default: 3")
		config.WindowDays = 3
	}

	config.HistoryDays = getEnvInt("ANALYTICS_HISTORY_DAYS", 30)
	if config.HistoryDays < config.WindowDays {
		logger.Warn("ANALYTICS_HISTORY_DAYS below window size, using default: 30")
		config.HistoryDays = 30
	}

	config.BingeThresholdMinutes = getEnvFloat("ANALYTICS_BINGE_THRESHOLD", 45)
	if config.BingeThresholdMinutes <= 0 {
		logger.Warn("Invalid ANALYTICS_BINGE_THRESHOLD value, using default: 45")
		config.BingeThresholdMinutes = 45
	}

	config.ContinuityGap = getEnvDuration("ANALYTICS_CONTINUITY_GAP", 5*time.Minute)

	return nil
}

// Helper function to get an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Helper function to get a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(value) {
	case "true", "yes", "1", "on":
		return true
	case "false", "no", "0", "off":
		return false
	default:
		return defaultValue
	}
}

// Helper function to get an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// Helper function to get a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

// getEnvFloat retrieves an environment variable and converts it to float64
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatValue
}
