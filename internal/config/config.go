package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-playground/validator"
	"github.com/gofiber/storage/s3/v2"
	"github.com/spf13/viper"

	"accounts/pkg/utils"
)

// Validate is shared by the config loader and the request handlers.
var Validate = validator.New()

type Config struct {
	ServerPort int    `mapstructure:"SERVER_PORT" validate:"min=1,max=65535"`
	APIVersion string `mapstructure:"API_VERSION" validate:"required"`
	PublicURL  string `mapstructure:"PUBLIC_URL" validate:"required"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	DatabaseURL  string `mapstructure:"DATABASE_URL" validate:"required"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`

	JWTSecret  string        `mapstructure:"JWT_SECRET" validate:"required"`
	SessionTTL time.Duration `mapstructure:"SESSION_TTL" validate:"gt=0"`

	// SaltRounds is the bcrypt cost. The upper bound keeps a single hash from
	// tying up a worker for seconds.
	SaltRounds  int `mapstructure:"SALT_ROUNDS" validate:"min=4,max=14"`
	HashWorkers int `mapstructure:"HASH_WORKERS" validate:"min=1"`

	ResetTTL               time.Duration `mapstructure:"RESET_TTL" validate:"gt=0"`
	AllowGeneratedPassword bool          `mapstructure:"ALLOW_GENERATED_PASSWORD"`

	MailFrom               string        `mapstructure:"MAIL_FROM"`
	MailTimeout            time.Duration `mapstructure:"MAIL_TIMEOUT"`
	MailWelcomeAttachments []string      `mapstructure:"MAIL_WELCOME_ATTACHMENTS"`
	MailgunAPIKey          string        `mapstructure:"MAILGUN_API_KEY"`
	MailgunDomain          string        `mapstructure:"MAILGUN_DOMAIN"`
	MailgunAPIBase         string        `mapstructure:"MAILGUN_API_BASE"`

	S3Endpoint  string `mapstructure:"S3_ENDPOINT"`
	S3Region    string `mapstructure:"S3_REGION"`
	S3Bucket    string `mapstructure:"S3_BUCKET"`
	S3AccessKey string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey string `mapstructure:"S3_SECRET_KEY"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", 3_000)
	v.SetDefault("API_VERSION", "1")
	v.SetDefault("PUBLIC_URL", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	v.SetDefault("DATABASE_NAME", "accounts")

	v.SetDefault("JWT_SECRET", utils.GenerateRandomString(32))
	v.SetDefault("SESSION_TTL", 30*24*time.Hour)

	v.SetDefault("SALT_ROUNDS", 10)
	v.SetDefault("HASH_WORKERS", runtime.NumCPU())

	v.SetDefault("RESET_TTL", time.Hour)
	v.SetDefault("ALLOW_GENERATED_PASSWORD", true)

	v.SetDefault("MAIL_FROM", "Accounts <no-reply@localhost>")
	v.SetDefault("MAIL_TIMEOUT", 10*time.Second)
	v.SetDefault("MAIL_WELCOME_ATTACHMENTS", []string{})
	v.SetDefault("MAILGUN_API_KEY", "")
	v.SetDefault("MAILGUN_DOMAIN", "")
	v.SetDefault("MAILGUN_API_BASE", "https://api.mailgun.net/v3")

	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_REGION", "")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
}

// Load reads the configuration from defaults, an optional config.yaml and
// ACCOUNTS_* environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("ACCOUNTS")
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/accounts/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// APIPrefix is the mount point of the REST routes.
func (cfg *Config) APIPrefix() string {
	return fmt.Sprintf("/api/v%s", cfg.APIVersion)
}

// MailgunEnabled reports whether enough is configured to deliver mail.
func (cfg *Config) MailgunEnabled() bool {
	return cfg.MailgunDomain != "" && cfg.MailgunAPIKey != ""
}

// Storage returns the object storage holding mail attachments, or nil when
// no bucket is configured.
func (cfg *Config) Storage() *s3.Storage {
	if cfg.S3Bucket == "" {
		return nil
	}

	return s3.New(s3.Config{
		Bucket:   cfg.S3Bucket,
		Endpoint: cfg.S3Endpoint,
		Region:   cfg.S3Region,
		Reset:    false,
		Credentials: s3.Credentials{
			AccessKey:       cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
		},
	})
}
