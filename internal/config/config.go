package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "DIETOPS"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "dietops.db"
	defaultLogLevel      = "info"
	defaultLogFormat     = "json"
	defaultCookieName    = "app_session"
	defaultIssuer        = "dietops-auth"
	defaultRateLimitRPS  = 20
	defaultPresignTTLSec = 900
	defaultS3Region      = "us-east-1"
)

// S3Config describes the optional S3-compatible bucket used for export artifacts.
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

// IsConfigured reports whether every value needed to reach the bucket is present.
func (c S3Config) IsConfigured() bool {
	return len(c.MissingRequired()) == 0
}

// MissingRequired lists the configuration keys that are still empty.
func (c S3Config) MissingRequired() []string {
	var missing []string
	if strings.TrimSpace(c.Bucket) == "" {
		missing = append(missing, "export.s3.bucket")
	}
	if strings.TrimSpace(c.AccessKeyID) == "" {
		missing = append(missing, "export.s3.access_key_id")
	}
	if strings.TrimSpace(c.SecretAccessKey) == "" {
		missing = append(missing, "export.s3.secret_access_key")
	}
	return missing
}

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabasePath      string
	LogLevel          string
	LogFormat         string
	SessionSigningKey string
	SessionIssuer     string
	SessionCookieName string
	AllowedOrigins    []string
	RateLimitRPS      int
	RateLimitBurst    int
	ExportS3          S3Config
	ExportPresignTTL  time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.issuer", defaultIssuer)
	configViper.SetDefault("cors.allowed_origins", "*")
	configViper.SetDefault("ratelimit.rps", defaultRateLimitRPS)
	configViper.SetDefault("ratelimit.burst", 0)
	configViper.SetDefault("export.s3.region", defaultS3Region)
	configViper.SetDefault("export.presign_ttl_seconds", defaultPresignTTLSec)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabasePath:      configViper.GetString("database.path"),
		LogLevel:          configViper.GetString("log.level"),
		LogFormat:         configViper.GetString("log.format"),
		SessionSigningKey: configViper.GetString("session.signing_secret"),
		SessionIssuer:     configViper.GetString("session.issuer"),
		SessionCookieName: configViper.GetString("session.cookie_name"),
		AllowedOrigins:    splitList(configViper.GetStringSlice("cors.allowed_origins")),
		RateLimitRPS:      configViper.GetInt("ratelimit.rps"),
		RateLimitBurst:    configViper.GetInt("ratelimit.burst"),
		ExportS3: S3Config{
			Endpoint:        configViper.GetString("export.s3.endpoint"),
			Region:          configViper.GetString("export.s3.region"),
			Bucket:          configViper.GetString("export.s3.bucket"),
			AccessKeyID:     configViper.GetString("export.s3.access_key_id"),
			SecretAccessKey: configViper.GetString("export.s3.secret_access_key"),
		},
		ExportPresignTTL: time.Duration(configViper.GetInt("export.presign_ttl_seconds")) * time.Second,
	}

	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = cfg.RateLimitRPS
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningKey) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if strings.TrimSpace(c.SessionIssuer) == "" {
		return fmt.Errorf("session.issuer is required")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("ratelimit.rps must not be negative")
	}
	if c.ExportPresignTTL <= 0 {
		return fmt.Errorf("export.presign_ttl_seconds must be positive")
	}
	return nil
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(values []string) []string {
	var result []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}
