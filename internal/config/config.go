// Package config loads Relay's runtime configuration from environment
// variables, following the same getEnv helpers / typed Config struct shape
// as the teacher's common/config package.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all server configuration.
type Config struct {
	Service  ServiceConfig
	Git      GitConfig
	Hook     HookConfig
	Blob     BlobConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Peer     PeerConfig
}

// ServiceConfig holds HTTP bind and logging settings.
type ServiceConfig struct {
	HTTPPort  int
	Bind      string
	LogLevel  string
	LogFormat string
	TLSCert   string // accepted, unused: TLS termination is out of scope
	TLSKey    string
	ACMEDir   string
}

// GitConfig locates the repository root and optional static directories.
type GitConfig struct {
	RepoPath    string
	StaticDirs  []string
	MasterRepos []string
}

// HookConfig configures the hook runtime's child process.
type HookConfig struct {
	InterpreterPath string
	TimeoutSeconds  int
}

// BlobConfig locates the content-addressed global blob tier.
type BlobConfig struct {
	GlobalDir string
}

// PostgresConfig configures the optional hook-invocation audit log.
type PostgresConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Database string
	User     string
	Password string
	MaxConns int
}

// RedisConfig configures the optional cross-process reconciliation lock,
// write-rate limiter, and peer-sync queue backing store.
type RedisConfig struct {
	Enabled bool
	Addr    string
}

// PeerConfig configures the peer auto-push loop's debounce and retry.
type PeerConfig struct {
	DebounceSeconds int
}

// Load reads configuration from the environment, matching the variable
// names in SPEC_FULL.md section 6.
func Load() (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			HTTPPort:  getEnvInt("RELAY_HTTP_PORT", 8080),
			Bind:      getEnv("RELAY_BIND", ""),
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "text"),
			TLSCert:   getEnv("RELAY_TLS_CERT", ""),
			TLSKey:    getEnv("RELAY_TLS_KEY", ""),
			ACMEDir:   getEnv("RELAY_ACME_DIR", "/var/www/certbot"),
		},
		Git: GitConfig{
			RepoPath:    getEnv("RELAY_REPO_PATH", "data"),
			StaticDirs:  getEnvSlice("RELAY_STATIC_DIR", nil),
			MasterRepos: getEnvSlice("RELAY_MASTER_REPO_LIST", getEnvSlice("DEFAULT_REPOS", nil)),
		},
		Hook: HookConfig{
			InterpreterPath: getEnv("RELAY_HOOK_INTERPRETER", "relay-hook-runner"),
			TimeoutSeconds:  getEnvInt("RELAY_HOOK_TIMEOUT_SECONDS", 30),
		},
		Blob: BlobConfig{
			GlobalDir: getEnv("RELAY_GLOBAL_BLOBS_DIR", "global_blobs"),
		},
		Postgres: PostgresConfig{
			Enabled:  getEnvBool("RELAY_POSTGRES_ENABLED", false),
			Host:     getEnv("RELAY_POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("RELAY_POSTGRES_PORT", 5432),
			Database: getEnv("RELAY_POSTGRES_DB", "relay"),
			User:     getEnv("RELAY_POSTGRES_USER", "relay"),
			Password: getEnv("RELAY_POSTGRES_PASSWORD", ""),
			MaxConns: getEnvInt("RELAY_POSTGRES_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Enabled: getEnvBool("RELAY_REDIS_ENABLED", false),
			Addr:    getEnv("RELAY_REDIS_ADDR", "localhost:6379"),
		},
		Peer: PeerConfig{
			DebounceSeconds: getEnvInt("RELAY_PEER_DEBOUNCE_SECONDS", 2),
		},
	}

	return cfg, cfg.Validate()
}

// Validate rejects configuration that can never produce a working server.
func (c *Config) Validate() error {
	if c.Service.HTTPPort < 1 || c.Service.HTTPPort > 65535 {
		return fmt.Errorf("invalid RELAY_HTTP_PORT: %d", c.Service.HTTPPort)
	}
	if c.Git.RepoPath == "" {
		return fmt.Errorf("RELAY_REPO_PATH must not be empty")
	}
	if c.Hook.TimeoutSeconds <= 0 {
		return fmt.Errorf("RELAY_HOOK_TIMEOUT_SECONDS must be positive")
	}
	if c.Peer.DebounceSeconds < 0 {
		return fmt.Errorf("RELAY_PEER_DEBOUNCE_SECONDS must not be negative")
	}
	return nil
}

// DatabaseURL returns the Postgres connection string for the audit log pool.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.Database,
	)
}

// Addr returns the HTTP listen address, preferring an explicit bind string.
func (c *Config) Addr() string {
	if c.Service.Bind != "" {
		return c.Service.Bind
	}
	return fmt.Sprintf(":%d", c.Service.HTTPPort)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
