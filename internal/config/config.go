// Package config
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	CORS          CORSConfig          `yaml:"cors"`
	Auth          AuthConfig          `yaml:"auth"`
	Platform      PlatformConfig      `yaml:"platform"`
	Discovery     DiscoveryConfig     `yaml:"discovery"`
	Reports       ReportsConfig       `yaml:"reports"`
	Recordings    RecordingsConfig    `yaml:"recordings"`
	Database      DatabaseConfig      `yaml:"database"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port" validate:"min=0,max=65535"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms" validate:"min=0"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms" validate:"min=0"`
	// HandlerTimeoutMS bounds how long a blocking handler waits for its result.
	HandlerTimeoutMS int `yaml:"handler_timeout_ms" validate:"min=1"`
	// WorkerPoolSize caps concurrently running blocking handlers.
	WorkerPoolSize int `yaml:"worker_pool_size" validate:"min=1"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAgeSeconds  int      `yaml:"max_age_seconds"`
}

type AuthConfig struct {
	// Manager overrides the auth manager chosen by the platform strategy.
	// Empty keeps the strategy's manager.
	Manager        string `yaml:"manager" validate:"omitempty,oneof=noop basic jwt tokenreview"`
	AdminUsername  string `yaml:"admin_username"`
	AdminPassword  string `yaml:"admin_password"`
	JWTSecret      string `yaml:"jwt_secret"`
	JWTExpiryHours int    `yaml:"jwt_expiry_hours" validate:"min=0"`
	// UsersFile holds "username=bcrypt-hash" lines for the basic manager.
	UsersFile string `yaml:"users_file"`
}

type PlatformConfig struct {
	// Strategies restricts which strategies are registered, in registration order.
	// Empty registers all of them.
	Strategies []string `yaml:"strategies" validate:"dive,oneof=kubeapi kubeenv default"`
}

type DiscoveryConfig struct {
	// StaticTargets accepts "host:port", "address@port" or bare address entries,
	// where address may be an IP, hostname, IP range or CIDR block.
	StaticTargets     []string `yaml:"static_targets"`
	HsperfdataRoot    string   `yaml:"hsperfdata_root"`
	AgentPort         int      `yaml:"agent_port" validate:"min=0,max=65535"`
	KubeEnvPort       int      `yaml:"kube_env_port" validate:"min=0,max=65535"`
	KubeAPIPortName   string   `yaml:"kube_api_port_name"`
	RefreshIntervalMS int      `yaml:"refresh_interval_ms" validate:"min=0"`
}

type ReportsConfig struct {
	WorkerBinary string `yaml:"worker_binary"`
	// SubprocessTimeoutMS must stay below Server.HandlerTimeoutMS.
	SubprocessTimeoutMS int `yaml:"subprocess_timeout_ms" validate:"min=1"`
	MaxHeapMB           int `yaml:"max_heap_mb" validate:"min=0"`
}

type RecordingsConfig struct {
	Backend           string `yaml:"backend" validate:"omitempty,oneof=memory postgres"`
	SyncIntervalMS    int    `yaml:"sync_interval_ms" validate:"min=0"`
	AgentTimeoutMS    int    `yaml:"agent_timeout_ms" validate:"min=0"`
	SyncWorkerCount   int    `yaml:"sync_worker_count" validate:"min=0"`
	DisableBackground bool   `yaml:"disable_background"`
}

// PoolConfig defines connection pool settings
type PoolConfig struct {
	MaxConns                 int `yaml:"max_conns"`
	MinConns                 int `yaml:"min_conns"`
	MaxConnLifetimeMinutes   int `yaml:"max_conn_lifetime_minutes"`
	MaxConnIdleTimeMinutes   int `yaml:"max_conn_idle_time_minutes"`
	HealthCheckPeriodSeconds int `yaml:"health_check_period_seconds"`
}

type DatabaseConfig struct {
	Host     string     `yaml:"host"`
	Port     int        `yaml:"port"`
	User     string     `yaml:"user"`
	Password string     `yaml:"password"`
	DBName   string     `yaml:"dbname"`
	SSLMode  string     `yaml:"ssl_mode"`
	Pool     PoolConfig `yaml:"pool"`
}

type NotificationsConfig struct {
	TargetBufferSize int `yaml:"target_buffer_size"`
	ReportBufferSize int `yaml:"report_buffer_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var validate = validator.New()

// Default returns a configuration usable without a config file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8181,
			ReadTimeoutMS:    30000,
			WriteTimeoutMS:   30000,
			HandlerTimeoutMS: 15000,
			WorkerPoolSize:   16,
		},
		Discovery: DiscoveryConfig{
			HsperfdataRoot:    os.TempDir(),
			AgentPort:         9977,
			KubeEnvPort:       9977,
			KubeAPIPortName:   "jfr-agent",
			RefreshIntervalMS: 10000,
		},
		Reports: ReportsConfig{
			WorkerBinary:        "report-worker",
			SubprocessTimeoutMS: 10000,
			MaxHeapMB:           256,
		},
		Recordings: RecordingsConfig{
			Backend:         "memory",
			SyncIntervalMS:  30000,
			AgentTimeoutMS:  5000,
			SyncWorkerCount: 4,
		},
		Notifications: NotificationsConfig{
			TargetBufferSize: 64,
			ReportBufferSize: 64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from file and applies environment variable overrides.
// An empty path skips the file and starts from Default.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate ensures all required configuration values are set
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Reports.SubprocessTimeoutMS >= c.Server.HandlerTimeoutMS {
		return fmt.Errorf("reports.subprocess_timeout_ms (%d) must be less than server.handler_timeout_ms (%d)",
			c.Reports.SubprocessTimeoutMS, c.Server.HandlerTimeoutMS)
	}

	if c.Auth.Manager == "jwt" && len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 characters when auth.manager is jwt")
	}
	if c.Auth.Manager == "basic" && c.Auth.UsersFile == "" {
		return errors.New("auth.users_file is required when auth.manager is basic")
	}

	if c.Recordings.Backend == "postgres" && (c.Database.Host == "" || c.Database.DBName == "") {
		return errors.New("database host and dbname are required for the postgres recordings backend")
	}

	if !c.Logging.IsLogLevelValid() {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides checks for environment variables with JFR_ prefix
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JFR_SERVER_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Server.Port)
	}

	// Auth overrides
	if v := os.Getenv("JFR_AUTH_MANAGER"); v != "" {
		cfg.Auth.Manager = v
	}
	if v := os.Getenv("JFR_AUTH_ADMIN_PASSWORD"); v != "" {
		cfg.Auth.AdminPassword = v
	}
	if v := os.Getenv("JFR_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	// Report overrides
	if v := os.Getenv("JFR_REPORTS_WORKER_BINARY"); v != "" {
		cfg.Reports.WorkerBinary = v
	}
	if v := os.Getenv("JFR_REPORTS_SUBPROCESS_TIMEOUT_MS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Reports.SubprocessTimeoutMS)
	}
	if v := os.Getenv("JFR_REPORTS_MAX_HEAP_MB"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Reports.MaxHeapMB)
	}

	// Database overrides
	if v := os.Getenv("JFR_DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("JFR_DATABASE_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Database.Port)
	}
	if v := os.Getenv("JFR_DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}

	if v := os.Getenv("JFR_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// ReadTimeout returns the read timeout as a duration
func (s *ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

// WriteTimeout returns the write timeout as a duration
func (s *ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

// HandlerTimeout returns the blocking handler wait budget as a duration
func (s *ServerConfig) HandlerTimeout() time.Duration {
	return time.Duration(s.HandlerTimeoutMS) * time.Millisecond
}

// SubprocessTimeout returns the report subprocess budget as a duration
func (r *ReportsConfig) SubprocessTimeout() time.Duration {
	return time.Duration(r.SubprocessTimeoutMS) * time.Millisecond
}

func (d *DiscoveryConfig) RefreshInterval() time.Duration {
	return time.Duration(d.RefreshIntervalMS) * time.Millisecond
}

func (r *RecordingsConfig) SyncInterval() time.Duration {
	return time.Duration(r.SyncIntervalMS) * time.Millisecond
}

func (r *RecordingsConfig) AgentTimeout() time.Duration {
	return time.Duration(r.AgentTimeoutMS) * time.Millisecond
}

// JWTExpiry returns JWT expiry as duration
func (a *AuthConfig) JWTExpiry() time.Duration {
	return time.Duration(a.JWTExpiryHours) * time.Hour
}

// ConnString returns the PostgreSQL connection string in postgres:// URL format
func (d *DatabaseConfig) ConnString() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}

	query := url.Values{}
	if d.SSLMode != "" {
		query.Set("sslmode", d.SSLMode)
	}
	u.RawQuery = query.Encode()

	return u.String()
}

// ApplyDefaults sets default values for pool configuration
func (p *PoolConfig) ApplyDefaults() {
	if p.MaxConns == 0 {
		p.MaxConns = 10
	}
	if p.MinConns == 0 {
		p.MinConns = 1
	}
	if p.MaxConnLifetimeMinutes == 0 {
		p.MaxConnLifetimeMinutes = 60
	}
	if p.MaxConnIdleTimeMinutes == 0 {
		p.MaxConnIdleTimeMinutes = 15
	}
	if p.HealthCheckPeriodSeconds == 0 {
		p.HealthCheckPeriodSeconds = 30
	}
}

// MaxConnLifetime returns the max connection lifetime as a duration
func (p *PoolConfig) MaxConnLifetime() time.Duration {
	return time.Duration(p.MaxConnLifetimeMinutes) * time.Minute
}

// MaxConnIdleTime returns the max connection idle time as a duration
func (p *PoolConfig) MaxConnIdleTime() time.Duration {
	return time.Duration(p.MaxConnIdleTimeMinutes) * time.Minute
}

// HealthCheckPeriod returns the health check period as a duration
func (p *PoolConfig) HealthCheckPeriod() time.Duration {
	return time.Duration(p.HealthCheckPeriodSeconds) * time.Second
}

// IsLogLevelValid checks if the log level is valid
func (l *LoggingConfig) IsLogLevelValid() bool {
	validLevels := []string{"debug", "info", "warn", "error"}
	return slices.Contains(validLevels, strings.ToLower(l.Level))
}
