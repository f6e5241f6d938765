package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// minSecretLength is the shortest signing secret accepted at startup.
const minSecretLength = 32

type Config struct {
	Server   ServerConfig
	Worker   WorkerConfig
	Database DatabaseConfig
	MinIO    MinIOConfig
	Storage  StorageConfig
	Signing  SigningConfig
	RabbitMQ RabbitMQConfig
	Redis    RedisConfig
}

// ServerConfig configures the API process. Only headers are bounded by
// default; uploads and streamed objects can run for as long as they need.
type ServerConfig struct {
	Port              int           `envconfig:"API_PORT" default:"8080"`
	ReadHeaderTimeout time.Duration `envconfig:"API_READ_HEADER_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"0s"`
	ShutdownTimeout   time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`
	APIKey            string        `envconfig:"API_KEY"`
	MaxUploadBytes    int64         `envconfig:"API_MAX_UPLOAD_BYTES" default:"4294967296"`
	UpstreamTimeout   time.Duration `envconfig:"API_UPSTREAM_HEADER_TIMEOUT" default:"15s"`
	StatusCacheTTL    time.Duration `envconfig:"API_STATUS_CACHE_TTL" default:"5s"`
	PresignedTTL      time.Duration `envconfig:"API_PROXY_PRESIGN_TTL" default:"5m"`
}

type WorkerConfig struct {
	TempDir          string        `envconfig:"WORKER_TEMP_DIR" default:"/tmp/fileonline"`
	Concurrency      int           `envconfig:"WORKER_CONCURRENCY" default:"2"`
	TranscodeTimeout time.Duration `envconfig:"WORKER_TRANSCODE_TIMEOUT" default:"4h"`
	TransferTimeout  time.Duration `envconfig:"WORKER_TRANSFER_TIMEOUT" default:"30m"`
	StaleGrace       time.Duration `envconfig:"WORKER_STALE_GRACE" default:"15m"`
	ShutdownTimeout  time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
	MetricsPort      int           `envconfig:"WORKER_METRICS_PORT" default:"9091"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"fileonline"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"fileonline"`
	DBName   string `envconfig:"POSTGRES_DB" default:"fileonline"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// MinIOConfig is the default remote backend descriptor used when no
// operator-managed settings row exists.
type MinIOConfig struct {
	Endpoint     string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	Region       string `envconfig:"MINIO_REGION" default:"us-east-1"`
	AccessKey    string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey    string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	Bucket       string `envconfig:"MINIO_BUCKET" default:"files"`
	UseSSL       bool   `envconfig:"MINIO_USE_SSL" default:"false"`
	PublicDomain string `envconfig:"MINIO_PUBLIC_DOMAIN"`
}

// StorageConfig holds the local backend settings and the default backend kind
// ("local" or "remote"). SettingsSource is "env" or "postgres".
type StorageConfig struct {
	Backend        string        `envconfig:"STORAGE_BACKEND" default:"local"`
	LocalRoot      string        `envconfig:"STORAGE_LOCAL_ROOT" default:"./data/objects"`
	PublicBaseURL  string        `envconfig:"STORAGE_PUBLIC_BASE_URL" default:"http://localhost:8080"`
	SettingsSource string        `envconfig:"STORAGE_SETTINGS_SOURCE" default:"postgres"`
	SettingsTTL    time.Duration `envconfig:"STORAGE_SETTINGS_TTL" default:"5s"`
}

type SigningConfig struct {
	Secret     string        `envconfig:"SIGNING_SECRET" required:"true"`
	DefaultTTL time.Duration `envconfig:"SIGNING_DEFAULT_TTL" default:"1h"`
	MaxTTL     time.Duration `envconfig:"SIGNING_MAX_TTL" default:"24h"`
}

type RabbitMQConfig struct {
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"fileonline"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"fileonline"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

var (
	ErrWeakSecret      = errors.New("SIGNING_SECRET must be at least 32 bytes")
	ErrInvalidTTLRange = errors.New("SIGNING_DEFAULT_TTL must be positive and not exceed SIGNING_MAX_TTL")
)

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if len(c.Signing.Secret) < minSecretLength {
		return ErrWeakSecret
	}
	if c.Signing.DefaultTTL <= 0 || c.Signing.DefaultTTL > c.Signing.MaxTTL {
		return ErrInvalidTTLRange
	}
	if c.Worker.Concurrency < 1 {
		c.Worker.Concurrency = 1
	}
	return nil
}
