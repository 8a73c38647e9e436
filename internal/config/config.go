package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	BusMemory = "memory"
	BusRedis  = "redis"
)

type Config struct {
	Port           string `env:"PORT,default=8080"`
	JWTSecret      string `env:"JWT_SECRET"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
	CSRFMode       string `env:"CSRF_MODE,default=origin"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	LogPretty      bool   `env:"LOG_PRETTY,default=false"`

	DBHost     string `env:"DB_HOST,default=localhost"`
	DBUser     string `env:"DB_USER,default=postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME,default=chatsync"`
	DBPort     string `env:"DB_PORT,default=5432"`
	DBSSLMode  string `env:"DB_SSLMODE,default=disable"`

	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	// EventBus selects in-process fan-out or redis pub/sub shared between instances.
	EventBus           string        `env:"EVENT_BUS,default=memory"`
	PublishQueueSize   int           `env:"PUBLISH_QUEUE_SIZE,default=1024"`
	PublishMaxAttempts int           `env:"PUBLISH_MAX_ATTEMPTS,default=3"`
	PublishRetryDelay  time.Duration `env:"PUBLISH_RETRY_DELAY,default=200ms"`

	S3Endpoint         string `env:"S3_ENDPOINT"`
	S3Region           string `env:"S3_REGION"`
	S3Bucket           string `env:"S3_BUCKET"`
	S3AccessKey        string `env:"S3_ACCESS_KEY"`
	S3SecretKey        string `env:"S3_SECRET_KEY"`
	S3UseSSL           bool   `env:"S3_USE_SSL,default=false"`
	PublicMediaBaseURL string `env:"PUBLIC_MEDIA_BASE_URL,default=/api/media"`

	MaxMessageLength     int           `env:"MAX_MESSAGE_LENGTH,default=4000"`
	MaxUploadBytes       int64         `env:"MAX_UPLOAD_BYTES,default=26214400"`
	DefaultIdleTimeoutMs int           `env:"DEFAULT_IDLE_TIMEOUT_MS,default=15000"`
	TokenTTL             time.Duration `env:"TOKEN_TTL,default=168h"`
}

// Load reads an optional dotenv file and decodes the environment into Config.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Info().Str("file", envFile).Msg("No .env file found, using system environment variables")
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DefaultIdleTimeoutMs <= 0 {
		return fmt.Errorf("DEFAULT_IDLE_TIMEOUT_MS must be positive, got %d", c.DefaultIdleTimeoutMs)
	}
	switch c.EventBus {
	case BusMemory, BusRedis:
	default:
		return fmt.Errorf("EVENT_BUS must be %q or %q, got %q", BusMemory, BusRedis, c.EventBus)
	}
	if c.PublishQueueSize <= 0 {
		return fmt.Errorf("PUBLISH_QUEUE_SIZE must be positive, got %d", c.PublishQueueSize)
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be positive, got %d", c.MaxMessageLength)
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}

// S3Configured reports whether every setting the media store needs is present.
func (c *Config) S3Configured() bool {
	return c.S3Endpoint != "" && c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) Origins() []string {
	var out []string
	for _, p := range strings.Split(c.AllowedOrigins, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SetupLogger configures the global zerolog logger.
func SetupLogger(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
