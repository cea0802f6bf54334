package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	MongoDB     MongoDBConfig
	JWT         JWTConfig
	OTP         OTPConfig
	SMS         SMSConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	Jobs        JobsConfig
	LogLevel    string
	Environment string
	Version     string
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URI          string
	Database     string
	Timeout      time.Duration
	Transactions bool
	InMemory     bool
}

// JWTConfig holds JWT-specific configuration
type JWTConfig struct {
	Secret    string
	Issuer    string
	ExpiresIn time.Duration
}

// OTPConfig holds one-time code settings
type OTPConfig struct {
	Length    int
	TTL       time.Duration
	HashCost  int
	BrandName string
}

// SMSConfig holds SMS gateway-specific configuration
type SMSConfig struct {
	Provider   string
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
}

// RedisConfig holds Redis connection settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig holds the OTP send throttle
type RateLimitConfig struct {
	Enabled     bool
	Window      time.Duration
	MaxInWindow int
	Cooldown    time.Duration
	BlockFor    time.Duration
}

// JobsConfig holds background job schedules in cron syntax
type JobsConfig struct {
	Enabled        bool
	ExpirySchedule string
	OTPCleanup     string
	RunTimeout     time.Duration
}

// Load loads configuration from .env, an optional config file and environment
// variables, in increasing order of precedence. Nested keys map to variables
// with underscores, e.g. MONGODB_URI for MongoDB.URI.
func Load(paths ...string) (*Config, error) {
	if err := LoadEnvFile(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file is not found, we'll use environment variables
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot run with
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT.Secret is required")
	}
	if c.JWT.ExpiresIn <= 0 {
		return errors.New("JWT.ExpiresIn must be positive")
	}
	if !c.MongoDB.InMemory && c.MongoDB.URI == "" {
		return errors.New("MongoDB.URI is required unless MongoDB.InMemory is set")
	}
	if c.OTP.Length <= 0 || c.OTP.TTL <= 0 {
		return errors.New("OTP.Length and OTP.TTL must be positive")
	}
	if c.RateLimit.Enabled && c.Redis.Addr == "" {
		return errors.New("RateLimit.Enabled requires Redis.Addr")
	}
	return nil
}

// IsProduction reports whether the environment is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "5000")
	v.SetDefault("Server.AllowedOrigins", []string{"*"})
	v.SetDefault("Server.ReadTimeout", 15*time.Second)
	v.SetDefault("Server.WriteTimeout", 15*time.Second)
	v.SetDefault("Server.ShutdownTimeout", 10*time.Second)

	v.SetDefault("MongoDB.URI", "mongodb://localhost:27017")
	v.SetDefault("MongoDB.Database", "clinic_membership")
	v.SetDefault("MongoDB.Timeout", 10*time.Second)
	v.SetDefault("MongoDB.Transactions", false)
	v.SetDefault("MongoDB.InMemory", false)

	v.SetDefault("JWT.Secret", "")
	v.SetDefault("JWT.Issuer", "clinic-membership")
	v.SetDefault("JWT.ExpiresIn", 24*time.Hour)

	v.SetDefault("OTP.Length", 5)
	v.SetDefault("OTP.TTL", 5*time.Minute)
	v.SetDefault("OTP.HashCost", 10)
	v.SetDefault("OTP.BrandName", "Kuwait Medical Clinic")

	v.SetDefault("SMS.Provider", "")
	v.SetDefault("SMS.AccountSID", "")
	v.SetDefault("SMS.AuthToken", "")
	v.SetDefault("SMS.FromNumber", "")
	v.SetDefault("SMS.BaseURL", "")
	v.SetDefault("SMS.APIKey", "")
	v.SetDefault("SMS.Timeout", 30*time.Second)

	v.SetDefault("Redis.Addr", "")
	v.SetDefault("Redis.Password", "")
	v.SetDefault("Redis.DB", 0)

	v.SetDefault("RateLimit.Enabled", false)
	v.SetDefault("RateLimit.Window", time.Hour)
	v.SetDefault("RateLimit.MaxInWindow", 5)
	v.SetDefault("RateLimit.Cooldown", time.Minute)
	v.SetDefault("RateLimit.BlockFor", 3*time.Hour)

	v.SetDefault("Jobs.Enabled", true)
	v.SetDefault("Jobs.ExpirySchedule", "@every 1h")
	v.SetDefault("Jobs.OTPCleanup", "@every 15m")
	v.SetDefault("Jobs.RunTimeout", time.Minute)

	v.SetDefault("LogLevel", "info")
	v.SetDefault("Environment", "development")
	v.SetDefault("Version", "1.0.0")
}
