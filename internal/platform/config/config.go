package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	platformstrings "warish/pkg/platform/strings"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	minSecretKeyLength = 32
	devSecretKey       = "dev-secret-key-change-in-production"
)

// DefaultEnvFiles are read, when present, before the process environment.
var DefaultEnvFiles = []string{".env", ".env.local"}

// ErrNotInitialized is returned by Use before Init has run.
var ErrNotInitialized = errors.New("config: Use called before Init")

// The process configuration is written once by Init and read-only afterwards.
var (
	initOnce sync.Once
	initDone atomic.Bool
	current  *Config
	initErr  error
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"WARISH_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
}

// Database selects PostgreSQL when URL is set, in-memory stores otherwise.
type Database struct {
	URL          string        `env:"DATABASE_URL"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLife  time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	TxTimeout    time.Duration `env:"TX_TIMEOUT" envDefault:"5s"`
}

type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
	LeaseTTL     time.Duration `env:"ISSUANCE_LEASE_TTL" envDefault:"30s"`
}

// Kafka selects the Kafka notifier when Brokers is set.
type Kafka struct {
	Brokers           []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic             string   `env:"KAFKA_TOPIC" envDefault:"warish.notifications"`
	Partitions        int32    `env:"KAFKA_TOPIC_PARTITIONS" envDefault:"3"`
	ReplicationFactor int16    `env:"KAFKA_TOPIC_REPLICATION" envDefault:"1"`
}

type Storage struct {
	Dir     string        `env:"STORAGE_DIR" envDefault:"./data/files"`
	BaseURL string        `env:"STORAGE_BASE_URL" envDefault:"http://localhost:8080/files"`
	Timeout time.Duration `env:"STORAGE_TIMEOUT" envDefault:"10s"`
}

// RateLimit throttles the public routes per client address. Zero Requests
// disables it.
type RateLimit struct {
	Requests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"60"`
	Window   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	Disabled bool          `env:"RATE_LIMIT_DISABLED" envDefault:"false"`
}

// Workflow holds the tunable guards of the application lifecycle.
type Workflow struct {
	LineageMaxDepth       int           `env:"LINEAGE_MAX_DEPTH" envDefault:"0"`
	RejectRemarkMinLength int           `env:"REJECT_REMARK_MIN_LENGTH" envDefault:"10"`
	RenewalWindow         time.Duration `env:"RENEWAL_WINDOW" envDefault:"8760h"`
	CertificateVerifyURL  string        `env:"CERTIFICATE_VERIFY_URL" envDefault:"http://localhost:8080/applications/ack/"`
	CertificateAuthority  string        `env:"CERTIFICATE_AUTHORITY"`
}

type Config struct {
	Server    Server
	Database  Database
	Redis     RedisConfig
	Kafka     Kafka
	Storage   Storage
	Workflow  Workflow
	RateLimit RateLimit

	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	SecretKey   string `env:"SECRET_KEY"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// Init loads the process configuration. Only the first call reads the
// environment; later calls return the same value and error.
func Init(envFiles ...string) (*Config, error) {
	initOnce.Do(func() {
		current, initErr = Load(envFiles...)
		initDone.Store(true)
	})
	return current, initErr
}

// Use returns the configuration loaded by Init.
func Use() (*Config, error) {
	if !initDone.Load() {
		return nil, ErrNotInitialized
	}
	return current, initErr
}

// Load reads the given .env files (missing files are skipped), parses the
// environment and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Kafka.Brokers = platformstrings.DedupeAndTrim(cfg.Kafka.Brokers)
	if cfg.SecretKey == "" && cfg.IsDevelopment() {
		cfg.SecretKey = devSecretKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, EnvDevelopment)
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.SecretKey) < minSecretKeyLength && !c.IsDevelopment() {
		errs = append(errs, fmt.Errorf("SECRET_KEY must be at least %d bytes outside development", minSecretKeyLength))
	}
	if c.Storage.Timeout <= 0 {
		errs = append(errs, errors.New("STORAGE_TIMEOUT must be positive"))
	}
	if c.Database.TxTimeout <= 0 {
		errs = append(errs, errors.New("TX_TIMEOUT must be positive"))
	}
	if c.Workflow.LineageMaxDepth < 0 {
		errs = append(errs, errors.New("LINEAGE_MAX_DEPTH must be zero (unlimited) or positive"))
	}
	if c.Workflow.RejectRemarkMinLength < 1 {
		errs = append(errs, errors.New("REJECT_REMARK_MIN_LENGTH must be at least 1"))
	}
	if c.Workflow.RenewalWindow <= 0 {
		errs = append(errs, errors.New("RENEWAL_WINDOW must be positive"))
	}
	if c.RateLimit.Requests < 0 || c.RateLimit.Window < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must not be negative"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}
	return errors.Join(errs...)
}
