package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported backend drivers.
const (
	DriverMemory  = "memory"
	DriverCouchDB = "couchdb"
	DriverRedis   = "redis"
	DriverSQLite  = "sqlite"
	DriverMongoDB = "mongodb"
)

// Config holds the backsync configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Backend   BackendConfig   `yaml:"backend"`
	Search    SearchConfig    `yaml:"search"`
	Documents DocumentsConfig `yaml:"documents"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// BackendConfig selects and configures the page-returning store.
type BackendConfig struct {
	Driver           string        `yaml:"driver"` // memory, couchdb, redis, sqlite, mongodb (default: memory)
	ReadinessTimeout int           `yaml:"readiness_timeout_sec"`
	CouchDB          CouchDBConfig `yaml:"couchdb"`
	Redis            RedisConfig   `yaml:"redis"`
	SQLite           SQLiteConfig  `yaml:"sqlite"`
	MongoDB          MongoDBConfig `yaml:"mongodb"`
}

// CouchDBConfig holds CouchDB connection settings.
type CouchDBConfig struct {
	URL               string  `yaml:"url"`
	Username          string  `yaml:"username"`
	Password          string  `yaml:"password"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unpaced
	Burst             int     `yaml:"burst"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	CreateDB          bool    `yaml:"create_db"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addrs     []string `yaml:"addrs"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	KeyPrefix string   `yaml:"key_prefix"`
}

// SQLiteConfig holds SQLite settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// MongoDBConfig holds MongoDB connection settings.
type MongoDBConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	TimeoutSec int    `yaml:"timeout_sec"`
	// UseUUID generates hashed UUID ids instead of ObjectID-shaped ones.
	UseUUID bool `yaml:"use_uuid"`
}

// SearchConfig holds engine limits.
type SearchConfig struct {
	HardLimit    int `yaml:"hard_limit"`    // 0 = default, -1 = unbounded
	MaxRequests  int `yaml:"max_requests"`  // 0 = unlimited
	RequestLimit int `yaml:"request_limit"` // page size per backend request
}

// DocumentsConfig holds write settings.
type DocumentsConfig struct {
	MaxConflictRetries *int `yaml:"max_conflict_retries"` // nil = default (1)
	MaxBatchSize       int  `yaml:"max_batch_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML with ${VAR} substitution, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Backend.Driver == "" {
		c.Backend.Driver = DriverMemory
	}
	if c.Backend.ReadinessTimeout <= 0 {
		c.Backend.ReadinessTimeout = 10
	}
	if c.Backend.CouchDB.TimeoutSec <= 0 {
		c.Backend.CouchDB.TimeoutSec = 30
	}
	if c.Backend.Redis.KeyPrefix == "" {
		c.Backend.Redis.KeyPrefix = "backsync:"
	}
	if c.Backend.SQLite.Path == "" {
		c.Backend.SQLite.Path = "backsync.db"
	}
	if c.Backend.MongoDB.Database == "" {
		c.Backend.MongoDB.Database = "backsync"
	}
	if c.Backend.MongoDB.TimeoutSec <= 0 {
		c.Backend.MongoDB.TimeoutSec = 10
	}
	if c.Search.RequestLimit <= 0 {
		c.Search.RequestLimit = 1000
	}
	if c.Documents.MaxBatchSize <= 0 {
		c.Documents.MaxBatchSize = 100
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return c.ValidateEngine()
}

// ValidateEngine checks the backend, search and document sections only.
// Embedded clients have no HTTP section.
func (c *Config) ValidateEngine() error {
	switch c.Backend.Driver {
	case DriverMemory, DriverSQLite:
	case DriverCouchDB:
		if c.Backend.CouchDB.URL == "" {
			return fmt.Errorf("backend.couchdb.url is required")
		}
		if c.Backend.CouchDB.RequestsPerSecond < 0 {
			return fmt.Errorf("backend.couchdb.requests_per_second must not be negative")
		}
	case DriverRedis:
		if len(c.Backend.Redis.Addrs) == 0 {
			return fmt.Errorf("backend.redis.addrs is required")
		}
	case DriverMongoDB:
		if c.Backend.MongoDB.URI == "" {
			return fmt.Errorf("backend.mongodb.uri is required")
		}
	default:
		return fmt.Errorf(
			"backend.driver must be one of memory, couchdb, redis, sqlite, mongodb, got %q", c.Backend.Driver,
		)
	}
	if c.Search.HardLimit < -1 {
		return fmt.Errorf("search.hard_limit must be -1 (unbounded), 0 (default) or positive, got %d", c.Search.HardLimit)
	}
	if c.Search.MaxRequests < 0 {
		return fmt.Errorf("search.max_requests must not be negative, got %d", c.Search.MaxRequests)
	}
	if r := c.Documents.MaxConflictRetries; r != nil && *r < 0 {
		return fmt.Errorf("documents.max_conflict_retries must not be negative, got %d", *r)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
