package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}

	if cfg.Server.HandlerTimeout() != 15*time.Second {
		t.Errorf("expected 15s handler timeout, got %v", cfg.Server.HandlerTimeout())
	}
	if cfg.Reports.SubprocessTimeout() >= cfg.Server.HandlerTimeout() {
		t.Errorf("default subprocess timeout %v must be below handler timeout %v",
			cfg.Reports.SubprocessTimeout(), cfg.Server.HandlerTimeout())
	}
	if cfg.Recordings.Backend != "memory" {
		t.Errorf("expected memory backend, got %s", cfg.Recordings.Backend)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  handler_timeout_ms: 20000
reports:
  subprocess_timeout_ms: 5000
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Reports.SubprocessTimeout() != 5*time.Second {
		t.Errorf("expected 5s subprocess timeout, got %v", cfg.Reports.SubprocessTimeout())
	}
	// Untouched sections keep their defaults
	if cfg.Server.WorkerPoolSize != 16 {
		t.Errorf("expected default worker pool size, got %d", cfg.Server.WorkerPoolSize)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JFR_SERVER_PORT", "7000")
	t.Setenv("JFR_REPORTS_WORKER_BINARY", "/opt/jfr/report-worker")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("expected port 7000, got %d", cfg.Server.Port)
	}
	if cfg.Reports.WorkerBinary != "/opt/jfr/report-worker" {
		t.Errorf("unexpected worker binary %q", cfg.Reports.WorkerBinary)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			"Defaults are valid",
			func(c *Config) {},
			"",
		},
		{
			"Inner timeout equal to handler timeout",
			func(c *Config) { c.Reports.SubprocessTimeoutMS = c.Server.HandlerTimeoutMS },
			"must be less than",
		},
		{
			"Inner timeout above handler timeout",
			func(c *Config) { c.Reports.SubprocessTimeoutMS = c.Server.HandlerTimeoutMS + 1 },
			"must be less than",
		},
		{
			"Unknown auth manager",
			func(c *Config) { c.Auth.Manager = "ldap" },
			"Manager",
		},
		{
			"JWT manager without secret",
			func(c *Config) { c.Auth.Manager = "jwt" },
			"jwt_secret",
		},
		{
			"Basic manager without users file",
			func(c *Config) { c.Auth.Manager = "basic" },
			"users_file",
		},
		{
			"Unknown strategy",
			func(c *Config) { c.Platform.Strategies = []string{"default", "nomad"} },
			"Strategies",
		},
		{
			"Postgres without database",
			func(c *Config) { c.Recordings.Backend = "postgres" },
			"database host",
		},
		{
			"Bad log level",
			func(c *Config) { c.Logging.Level = "verbose" },
			"invalid log level",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()

			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got none", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestConnString(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "jfr",
		Password: "secret",
		DBName:   "recordings",
		SSLMode:  "disable",
	}
	want := "postgres://jfr:secret@db:5432/recordings?sslmode=disable"
	if got := d.ConnString(); got != want {
		t.Errorf("ConnString() = %q, want %q", got, want)
	}
}
