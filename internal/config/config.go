// Package config loads larder settings from LARDER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server ServerConfig
	Logger LoggerConfig
	Recipe RecipeConfig
	S3     S3Config
	Push   PushConfig
	Alerts AlertConfig
	Backup BackupConfig
}

type ServerConfig struct {
	Port   int
	DBPath string
}

type LoggerConfig struct {
	Level  string
	Format string // "text" or "json"
}

type RecipeConfig struct {
	BaseURL string
	AppID   string
	AppKey  string
}

// S3Config locates the bucket for item images. Storage stays disabled unless
// the bucket and both keys are set.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	PublicURL string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
}

// AlertConfig holds the default projection thresholds.
type AlertConfig struct {
	ExpiringDays      int
	LowStockThreshold decimal.Decimal
}

// BackupConfig enables encrypted snapshots to the S3 bucket when a
// passphrase is set.
type BackupConfig struct {
	Passphrase    string
	IntervalHours int
	RetentionDays int
}

// ClientConfig is what the CLI needs to reach a server.
type ClientConfig struct {
	URL   string
	Token string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	threshold, err := getEnvAsDecimal("LARDER_LOW_STOCK_THRESHOLD", decimal.NewFromInt(1))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:   getEnvAsInt("LARDER_PORT", 8080),
			DBPath: getEnv("LARDER_DB_PATH", "larder.db"),
		},
		Logger: LoggerConfig{
			Level:  strings.ToLower(getEnv("LARDER_LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LARDER_LOG_FORMAT", "text")),
		},
		Recipe: RecipeConfig{
			BaseURL: getEnv("LARDER_RECIPE_API_URL", ""),
			AppID:   getEnv("LARDER_RECIPE_APP_ID", ""),
			AppKey:  getEnv("LARDER_RECIPE_APP_KEY", ""),
		},
		S3: S3Config{
			Endpoint:  getEnv("LARDER_S3_ENDPOINT", ""),
			Bucket:    getEnv("LARDER_S3_BUCKET", ""),
			Region:    getEnv("LARDER_S3_REGION", "us-east-1"),
			AccessKey: getEnv("LARDER_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("LARDER_S3_SECRET_KEY", ""),
			PublicURL: getEnv("LARDER_S3_PUBLIC_URL", ""),
		},
		Push: PushConfig{
			VAPIDPublicKey:  getEnv("LARDER_VAPID_PUBLIC_KEY", ""),
			VAPIDPrivateKey: getEnv("LARDER_VAPID_PRIVATE_KEY", ""),
		},
		Alerts: AlertConfig{
			ExpiringDays:      getEnvAsInt("LARDER_EXPIRING_DAYS", 3),
			LowStockThreshold: threshold,
		},
		Backup: BackupConfig{
			Passphrase:    getEnv("LARDER_BACKUP_PASSPHRASE", ""),
			IntervalHours: getEnvAsInt("LARDER_BACKUP_INTERVAL_HOURS", 24),
			RetentionDays: getEnvAsInt("LARDER_BACKUP_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.DBPath == "" {
		return fmt.Errorf("database path is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}
	if c.Logger.Format != "text" && c.Logger.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logger.Format)
	}

	if c.Recipe.BaseURL != "" && (c.Recipe.AppID == "" || c.Recipe.AppKey == "") {
		return fmt.Errorf("recipe app id and key are required when the recipe API is set")
	}

	if c.S3.Bucket != "" && (c.S3.AccessKey == "" || c.S3.SecretKey == "") {
		return fmt.Errorf("S3 access key and secret key are required when a bucket is set")
	}

	if (c.Push.VAPIDPublicKey == "") != (c.Push.VAPIDPrivateKey == "") {
		return fmt.Errorf("both VAPID keys must be set together")
	}

	if c.Alerts.ExpiringDays < 0 {
		return fmt.Errorf("expiring days cannot be negative: %d", c.Alerts.ExpiringDays)
	}
	if c.Alerts.LowStockThreshold.IsNegative() {
		return fmt.Errorf("low stock threshold cannot be negative: %s", c.Alerts.LowStockThreshold)
	}

	if c.Backup.Passphrase != "" && !c.S3.Enabled() {
		return fmt.Errorf("backups need an S3 bucket and credentials")
	}
	if c.Backup.IntervalHours < 1 {
		return fmt.Errorf("backup interval must be at least 1 hour: %d", c.Backup.IntervalHours)
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("backup retention cannot be negative: %d", c.Backup.RetentionDays)
	}
	return nil
}

// Address returns the listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// LoadClient reads the CLI connection settings.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{
		URL:   strings.TrimRight(getEnv("LARDER_URL", "http://localhost:8080"), "/"),
		Token: getEnv("LARDER_TOKEN", ""),
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("LARDER_TOKEN is required (mint one with `larder token create`)")
	}
	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: %q", key, value)
	}
	return d, nil
}
