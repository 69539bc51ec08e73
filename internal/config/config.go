// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	Port     string `mapstructure:"PORT"`
	WSPort   string `mapstructure:"WS_PORT"`
	RedisURL string `mapstructure:"REDIS_URL"`

	JWTSecret    string        `mapstructure:"JWT_SECRET"`
	JWTExpiry    time.Duration `mapstructure:"JWT_EXPIRY"`
	AllowedOrigins string      `mapstructure:"ALLOWED_ORIGINS"`
	EnableProxyHeader bool     `mapstructure:"ENABLE_PROXY_HEADER"`
	LocalhostOriginAllow bool  `mapstructure:"LOCALHOST_ORIGIN_ALLOW"`

	OAuthGoogleClientID     string `mapstructure:"OAUTH_GOOGLE_CLIENT_ID"`
	OAuthGoogleClientSecret string `mapstructure:"OAUTH_GOOGLE_CLIENT_SECRET"`
	PublicBaseURL           string `mapstructure:"PUBLIC_BASE_URL"`

	EmailProviderAPIKey string `mapstructure:"EMAIL_PROVIDER_API_KEY"`
	SMSProviderAPIKey   string `mapstructure:"SMS_PROVIDER_API_KEY"`

	TurnstileSecret string `mapstructure:"TURNSTILE_SECRET"`

	ModerationEndpoint string `mapstructure:"MODERATION_ENDPOINT"`
	ModerationModel    string `mapstructure:"MODERATION_MODEL"`

	MaxCommentLength int `mapstructure:"MAX_COMMENT_LENGTH"`

	RateLimitDefaultPerMinute int `mapstructure:"RATE_LIMIT_DEFAULT_PER_MINUTE"`

	BatcherFlushIntervalMs int `mapstructure:"BATCHER_FLUSH_INTERVAL_MS"`

	PresenceOfflineGraceSeconds int `mapstructure:"PRESENCE_OFFLINE_GRACE_SECONDS"`

	ActionLogPath string `mapstructure:"ACTION_LOG_PATH"`
}

// Load loads application configuration from file and environment variables,
// merging in a profile-specific file (config.<APP_ENV>.yml) over the base
// config when APP_ENV names a non-development profile.
func Load() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The config file is optional; environment variables and defaults carry
	// a bare-metal deployment on their own.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("config: loaded profile-specific configuration config.%s.yml", env)
	}

	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("WS_PORT", "8081")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", "change-me-in-production")
	viper.SetDefault("JWT_EXPIRY", 24*time.Hour)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("ENABLE_PROXY_HEADER", false)
	viper.SetDefault("LOCALHOST_ORIGIN_ALLOW", true)
	viper.SetDefault("MAX_COMMENT_LENGTH", 10000)
	viper.SetDefault("RATE_LIMIT_DEFAULT_PER_MINUTE", 60)
	viper.SetDefault("BATCHER_FLUSH_INTERVAL_MS", 20)
	viper.SetDefault("PRESENCE_OFFLINE_GRACE_SECONDS", 30)
	viper.SetDefault("ACTION_LOG_PATH", "")
	viper.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	viper.SetDefault("OAUTH_GOOGLE_CLIENT_ID", "")
	viper.SetDefault("OAUTH_GOOGLE_CLIENT_SECRET", "")
	viper.SetDefault("EMAIL_PROVIDER_API_KEY", "")
	viper.SetDefault("SMS_PROVIDER_API_KEY", "")
	viper.SetDefault("TURNSTILE_SECRET", "")
	viper.SetDefault("MODERATION_ENDPOINT", "")
	viper.SetDefault("MODERATION_MODEL", "")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate ensures required configuration values are present.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTExpiry <= 0 {
		c.JWTExpiry = 24 * time.Hour
	}
	if c.MaxCommentLength <= 0 {
		c.MaxCommentLength = 10000
	}
	if c.BatcherFlushIntervalMs <= 0 {
		c.BatcherFlushIntervalMs = 20
	}
	if c.PresenceOfflineGraceSeconds <= 0 {
		c.PresenceOfflineGraceSeconds = 30
	}
	return nil
}
