package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Storage drivers accepted by STORAGE_DRIVER
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Config holds all configuration for the insights service
type Config struct {
	// HTTP
	Port               int      `yaml:"port" validate:"gt=0,lt=65536"`
	CORSAllowedOrigins []string `yaml:"corsAllowedOrigins"`

	// Upstream feeds
	VehiclePositionsURL  string `yaml:"vehiclePositionsURL" validate:"required,url"`
	AlertsURL            string `yaml:"alertsURL" validate:"required,url"`
	FeedTimeoutSeconds   int    `yaml:"feedTimeoutSeconds" validate:"gte=0"`
	DeriveRouteFromLabel bool   `yaml:"deriveRouteFromLabel"`

	// Insights
	Timezone string `yaml:"timezone" validate:"required"`

	// Capture scheduling
	SchedulerEnabled       bool `yaml:"schedulerEnabled"`
	CaptureIntervalMinutes int  `yaml:"captureIntervalMinutes" validate:"gt=0"`
	RetentionDays          int  `yaml:"retentionDays" validate:"gt=0"`
	SummarySampleSize      int  `yaml:"summarySampleSize" validate:"gte=0"`

	// History storage
	StorageDriver  string `yaml:"storageDriver" validate:"oneof=sqlite postgres redis memory"`
	SQLitePath     string `yaml:"sqlitePath" validate:"required_if=StorageDriver sqlite"`
	DatabaseURL    string `yaml:"databaseURL" validate:"required_if=StorageDriver postgres"`
	RedisAddr      string `yaml:"redisAddr" validate:"required_if=StorageDriver redis"`
	RedisPassword  string `yaml:"redisPassword"`
	RedisDB        int    `yaml:"redisDB" validate:"gte=0"`
	RedisKeyPrefix string `yaml:"redisKeyPrefix"`

	// Capture notifications (optional)
	KafkaBrokers []string `yaml:"kafkaBrokers"`
	KafkaTopic   string   `yaml:"kafkaTopic" validate:"required_with=KafkaBrokers"`
}

// Defaults returns the configuration used when nothing is overridden
func Defaults() *Config {
	return &Config{
		Port:               8081,
		CORSAllowedOrigins: []string{"http://localhost:5173"},

		VehiclePositionsURL: "https://gtfsrt.renfe.com/vehicle_positions.json",
		AlertsURL:           "https://gtfsrt.renfe.com/alerts.json",

		Timezone: "Europe/Madrid",

		SchedulerEnabled:       true,
		CaptureIntervalMinutes: 60,
		RetentionDays:          30,
		SummarySampleSize:      20,

		StorageDriver:  DriverSQLite,
		SQLitePath:     "/data/history.db",
		RedisAddr:      "localhost:6379",
		RedisKeyPrefix: "trenes:history",

		KafkaTopic: "history.captured",
	}
}

// Load reads configuration from defaults, the optional CONFIG_FILE and
// environment variables (in that order of precedence), then validates it.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvInt("PORT", c.Port)
	c.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", c.CORSAllowedOrigins)

	c.VehiclePositionsURL = getEnv("FEED_VEHICLE_POSITIONS_URL", c.VehiclePositionsURL)
	c.AlertsURL = getEnv("FEED_ALERTS_URL", c.AlertsURL)
	c.FeedTimeoutSeconds = getEnvInt("FEED_TIMEOUT_SECONDS", c.FeedTimeoutSeconds)
	c.DeriveRouteFromLabel = getEnvBool("FEED_DERIVE_ROUTE_FROM_LABEL", c.DeriveRouteFromLabel)

	c.Timezone = getEnv("TIMEZONE", c.Timezone)

	c.SchedulerEnabled = getEnvBool("SCHEDULER_ENABLED", c.SchedulerEnabled)
	c.CaptureIntervalMinutes = getEnvInt("CAPTURE_INTERVAL_MINUTES", c.CaptureIntervalMinutes)
	c.RetentionDays = getEnvInt("RETENTION_DAYS", c.RetentionDays)
	c.SummarySampleSize = getEnvInt("SUMMARY_SAMPLE_SIZE", c.SummarySampleSize)

	c.StorageDriver = strings.ToLower(getEnv("STORAGE_DRIVER", c.StorageDriver))
	c.SQLitePath = getEnv("SQLITE_DATABASE", c.SQLitePath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.RedisKeyPrefix = getEnv("REDIS_KEY_PREFIX", c.RedisKeyPrefix)

	c.KafkaBrokers = getEnvList("KAFKA_BROKERS", c.KafkaBrokers)
	c.KafkaTopic = getEnv("KAFKA_TOPIC", c.KafkaTopic)
}

// Validate checks field constraints and that the timezone is loadable
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid config: unknown timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the timezone used for hour-of-day labels.
// Validate guarantees it loads; UTC is returned otherwise.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FeedTimeout is zero when the HTTP client default (no timeout) applies
func (c *Config) FeedTimeout() time.Duration {
	return time.Duration(c.FeedTimeoutSeconds) * time.Second
}

// CaptureInterval is the scheduler cadence
func (c *Config) CaptureInterval() time.Duration {
	return time.Duration(c.CaptureIntervalMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty parts
func getEnvList(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
