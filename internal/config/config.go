package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Remote execution transports
const (
	RemoteHTTP   = "http"
	RemoteDocker = "docker"
	RemoteOff    = "off"
)

// Question sources
const (
	QuestionsYAML     = "yaml"
	QuestionsPostgres = "postgres"
)

// Config holds all configuration for practice-engine
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Questions QuestionsConfig
	Execution ExecutionConfig
	Session   SessionConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL configuration. An empty DSN keeps
// sessions in memory.
type DatabaseConfig struct {
	DSN           string
	MaxConns      int
	MigrateOnBoot bool
}

// RedisConfig holds Redis configuration. An empty address disables the
// snapshot cache.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// QuestionsConfig selects where questions come from
type QuestionsConfig struct {
	Source string
	Dir    string
	// Seed imports the YAML bank from Dir into PostgreSQL on boot
	Seed bool
}

// ExecutionConfig holds code execution configuration
type ExecutionConfig struct {
	Remote        string
	RemoteURL     string
	RemoteTimeout time.Duration
	DockerHost    string
	DockerImage   string
	PullImage     bool
	PidsLimit     int
	MemoryLimitMB int
	LocalTimeout  time.Duration
	LocalFallback bool
}

// SessionConfig holds session lifecycle configuration
type SessionConfig struct {
	TickInterval    time.Duration
	PersistTimeout  time.Duration
	CleanupInterval time.Duration
	Retention       time.Duration
	MaxIdle         time.Duration
	RunRate         float64 // executions per second per session
	RunBurst        int
}

// TelemetryConfig holds tracing configuration
type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	Insecure    bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("DATABASE_DSN", ""),
			MaxConns:      getEnvAsInt("DATABASE_MAX_CONNS", 25),
			MigrateOnBoot: getEnvAsBool("DATABASE_MIGRATE", true),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("REDIS_SNAPSHOT_TTL", 24*time.Hour),
		},
		Questions: QuestionsConfig{
			Source: getEnv("QUESTIONS_SOURCE", QuestionsYAML),
			Dir:    getEnv("QUESTIONS_DIR", "./questions"),
			Seed:   getEnvAsBool("QUESTIONS_SEED", false),
		},
		Execution: ExecutionConfig{
			Remote:        getEnv("EXECUTION_REMOTE", RemoteOff),
			RemoteURL:     getEnv("EXECUTION_REMOTE_URL", "http://localhost:8081"),
			RemoteTimeout: getEnvAsDuration("EXECUTION_REMOTE_TIMEOUT", 10*time.Second),
			DockerHost:    getEnv("DOCKER_HOST", "unix:///var/run/docker.sock"),
			DockerImage:   getEnv("EXECUTION_DOCKER_IMAGE", "node:20-alpine"),
			PullImage:     getEnvAsBool("EXECUTION_DOCKER_PULL", true),
			PidsLimit:     getEnvAsInt("EXECUTION_DOCKER_PIDS_LIMIT", 64),
			MemoryLimitMB: getEnvAsInt("EXECUTION_MEMORY_LIMIT_MB", 128),
			LocalTimeout:  getEnvAsDuration("EXECUTION_LOCAL_TIMEOUT", 5*time.Second),
			LocalFallback: getEnvAsBool("EXECUTION_LOCAL_FALLBACK", true),
		},
		Session: SessionConfig{
			TickInterval:    getEnvAsDuration("SESSION_TICK_INTERVAL", time.Second),
			PersistTimeout:  getEnvAsDuration("SESSION_PERSIST_TIMEOUT", 10*time.Second),
			CleanupInterval: getEnvAsDuration("SESSION_CLEANUP_INTERVAL", time.Minute),
			Retention:       getEnvAsDuration("SESSION_RETENTION", 30*time.Minute),
			MaxIdle:         getEnvAsDuration("SESSION_MAX_IDLE", 2*time.Hour),
			RunRate:         getEnvAsFloat("SESSION_RUN_RATE", 1),
			RunBurst:        getEnvAsInt("SESSION_RUN_BURST", 5),
		},
		Telemetry: TelemetryConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "practice-engine"),
			Insecure:    getEnvAsBool("OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Questions.Source {
	case QuestionsYAML:
		if c.Questions.Dir == "" {
			return fmt.Errorf("questions dir is required for yaml source")
		}
	case QuestionsPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for postgres question source")
		}
		if c.Questions.Seed && c.Questions.Dir == "" {
			return fmt.Errorf("questions dir is required for seeding")
		}
	default:
		return fmt.Errorf("invalid questions source: %q", c.Questions.Source)
	}

	switch c.Execution.Remote {
	case RemoteHTTP:
		if c.Execution.RemoteURL == "" {
			return fmt.Errorf("remote execution URL is required")
		}
	case RemoteDocker:
		if c.Execution.DockerImage == "" {
			return fmt.Errorf("docker image is required")
		}
	case RemoteOff:
		if !c.Execution.LocalFallback {
			return fmt.Errorf("no execution strategy enabled")
		}
	default:
		return fmt.Errorf("invalid remote execution mode: %q", c.Execution.Remote)
	}

	if c.Execution.RemoteTimeout <= 0 || c.Execution.LocalTimeout <= 0 {
		return fmt.Errorf("execution timeouts must be positive")
	}

	if c.Session.TickInterval <= 0 {
		return fmt.Errorf("invalid tick interval: %s", c.Session.TickInterval)
	}

	if c.Session.RunRate <= 0 || c.Session.RunBurst < 1 {
		return fmt.Errorf("invalid run rate limit: %v/%d", c.Session.RunRate, c.Session.RunBurst)
	}

	return nil
}

// Address returns the host:port the HTTP server listens on
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	if len(list) == 0 {
		return defaultValue
	}
	return list
}
