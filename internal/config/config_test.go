package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Questions.Source != QuestionsYAML {
		t.Errorf("questions source = %q, want yaml", cfg.Questions.Source)
	}
	if cfg.Execution.Remote != RemoteOff || !cfg.Execution.LocalFallback {
		t.Errorf("unexpected execution defaults: %+v", cfg.Execution)
	}
	if cfg.Session.TickInterval != time.Second {
		t.Errorf("tick interval = %v, want 1s", cfg.Session.TickInterval)
	}
	if cfg.Address() != "0.0.0.0:8080" {
		t.Errorf("address = %q", cfg.Address())
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("EXECUTION_REMOTE", "http")
	t.Setenv("EXECUTION_REMOTE_URL", "http://executor:8080")
	t.Setenv("EXECUTION_REMOTE_TIMEOUT", "3s")
	t.Setenv("SESSION_RUN_RATE", "0.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Execution.Remote != RemoteHTTP || cfg.Execution.RemoteURL != "http://executor:8080" {
		t.Errorf("unexpected remote config: %+v", cfg.Execution)
	}
	if cfg.Execution.RemoteTimeout != 3*time.Second {
		t.Errorf("remote timeout = %v, want 3s", cfg.Execution.RemoteTimeout)
	}
	if cfg.Session.RunRate != 0.5 {
		t.Errorf("run rate = %v, want 0.5", cfg.Session.RunRate)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("allowed origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.Redis.DB)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: 8080},
			Questions: QuestionsConfig{Source: QuestionsYAML, Dir: "./questions"},
			Execution: ExecutionConfig{
				Remote:        RemoteOff,
				LocalFallback: true,
				RemoteTimeout: time.Second,
				LocalTimeout:  time.Second,
			},
			Session: SessionConfig{TickInterval: time.Second, RunRate: 1, RunBurst: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"unknown source", func(c *Config) { c.Questions.Source = "csv" }, "invalid questions source"},
		{"postgres without dsn", func(c *Config) { c.Questions.Source = QuestionsPostgres }, "database DSN is required"},
		{"unknown remote", func(c *Config) { c.Execution.Remote = "grpc" }, "invalid remote execution mode"},
		{"nothing enabled", func(c *Config) { c.Execution.LocalFallback = false }, "no execution strategy enabled"},
		{"http without url", func(c *Config) { c.Execution.Remote = RemoteHTTP }, "remote execution URL is required"},
		{"zero timeout", func(c *Config) { c.Execution.LocalTimeout = 0 }, "timeouts must be positive"},
		{"zero tick", func(c *Config) { c.Session.TickInterval = 0 }, "invalid tick interval"},
		{"zero burst", func(c *Config) { c.Session.RunBurst = 0 }, "invalid run rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
