package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pkgstrings "credreg/pkg/platform/strings"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Server captures process-level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string
	LogFormat   string

	Storage Storage
	Redis   RedisConfig
	Kafka   KafkaConfig
	Auth    AuthConfig

	// AuthRateLimit caps /auth requests per client IP per minute; 0 disables it.
	AuthRateLimit int

	// BootstrapAdmin is seeded as an active Admin on startup when set.
	BootstrapAdmin     string
	BootstrapAdminName string

	CORSAllowedOrigins []string
}

type Storage struct {
	Backend     string
	SQLitePath  string
	PostgresURL string
}

// RedisConfig is optional; an empty URL keeps login challenges in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig is optional; no brokers disables the audit sink.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
	ClientID   string
}

type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	ChallengeTTL  time.Duration
	// TrustPrincipalHeader accepts X-Principal without a token. Development only.
	TrustPrincipalHeader bool
}

func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// FromEnv builds a Server config from environment variables, loading an
// optional .env file first so main stays lean.
func FromEnv() (Server, error) {
	_ = godotenv.Load()

	var errs []error
	cfg := Server{
		Addr:        getEnv("CREDREG_ADDR", ":8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		Storage: Storage{
			Backend:     strings.ToLower(getEnv("STORAGE_BACKEND", BackendMemory)),
			SQLitePath:  getEnv("SQLITE_PATH", "credreg.db"),
			PostgresURL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10, &errs),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2, &errs),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second, &errs),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second, &errs),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second, &errs),
		},
		Kafka: KafkaConfig{
			Brokers:    pkgstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "credreg.audit"),
			ClientID:   getEnv("KAFKA_CLIENT_ID", "credreg"),
		},
		Auth: AuthConfig{
			JWTSigningKey:        getEnv("JWT_SIGNING_KEY", devSigningKey),
			Issuer:               getEnv("JWT_ISSUER", "credreg"),
			Audience:             getEnv("JWT_AUDIENCE", "credreg-api"),
			TokenTTL:             getDuration("TOKEN_TTL", time.Hour, &errs),
			ChallengeTTL:         getDuration("CHALLENGE_TTL", 5*time.Minute, &errs),
			TrustPrincipalHeader: getBool("TRUST_PRINCIPAL_HEADER", false, &errs),
		},
		AuthRateLimit:      getInt("AUTH_RATE_LIMIT_PER_MINUTE", 30, &errs),
		BootstrapAdmin:     os.Getenv("BOOTSTRAP_ADMIN"),
		BootstrapAdminName: getEnv("BOOTSTRAP_ADMIN_NAME", "Registry Admin"),
		CORSAllowedOrigins: pkgstrings.SplitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	if err := cfg.validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Server{}, errors.Join(errs...)
	}
	return cfg, nil
}

func (s Server) validate() error {
	switch s.Storage.Backend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if s.Storage.PostgresURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", s.Storage.Backend)
	}
	if s.IsProduction() {
		if s.Auth.JWTSigningKey == devSigningKey {
			return errors.New("JWT_SIGNING_KEY must be set in production")
		}
		if s.Auth.TrustPrincipalHeader {
			return errors.New("TRUST_PRINCIPAL_HEADER cannot be enabled in production")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func getBool(key string, fallback bool, errs *[]error) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}
