package backsync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/backsync/internal/config"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	cfg        config.Config
	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		cfg: config.Config{
			Backend: config.BackendConfig{Driver: config.DriverMemory},
		},
		logger: zap.NewNop(),
	}
}

// WithMemory keeps all collections in process memory. This is the default.
func WithMemory() Option {
	return func(c *clientConfig) {
		c.cfg.Backend.Driver = config.DriverMemory
	}
}

// WithCouchDB connects to a CouchDB server. Collections map to databases.
func WithCouchDB(url, username, password string) Option {
	return func(c *clientConfig) {
		c.cfg.Backend.Driver = config.DriverCouchDB
		c.cfg.Backend.CouchDB.URL = url
		c.cfg.Backend.CouchDB.Username = username
		c.cfg.Backend.CouchDB.Password = password
	}
}

// WithCouchDBRateLimit paces CouchDB requests. rps <= 0 disables pacing.
func WithCouchDBRateLimit(rps float64, burst int) Option {
	return func(c *clientConfig) {
		c.cfg.Backend.CouchDB.RequestsPerSecond = rps
		c.cfg.Backend.CouchDB.Burst = burst
	}
}

// WithCreateDB creates a missing CouchDB database on the first write.
func WithCreateDB() Option {
	return func(c *clientConfig) {
		c.cfg.Backend.CouchDB.CreateDB = true
	}
}

// WithRedis connects to Redis. Several addresses enable cluster mode.
func WithRedis(addrs ...string) Option {
	return func(c *clientConfig) {
		c.cfg.Backend.Driver = config.DriverRedis
		c.cfg.Backend.Redis.Addrs = addrs
	}
}

// WithRedisAuth sets the Redis ACL credentials.
func WithRedisAuth(username, password string) Option {
	return func(c *clientConfig) {
		c.cfg.Backend.Redis.Username = username
		c.cfg.Backend.Redis.Password = password
	}
}

// WithRedisKeyPrefix namespaces every Redis key. Defaults to "backsync:".
func WithRedisKeyPrefix(prefix string) Option {
	return func(c *clientConfig) {
		c.cfg.Backend.Redis.KeyPrefix = prefix
	}
}

// WithSQLite stores collections in a SQLite file. ":memory:" is accepted.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.cfg.Backend.Driver = config.DriverSQLite
		c.cfg.Backend.SQLite.Path = path
	}
}

// WithMongoDB connects to MongoDB. An empty database selects "backsync".
// New ids are ObjectID-shaped unless WithMongoUUIDs is also given.
func WithMongoDB(uri, database string) Option {
	return func(c *clientConfig) {
		c.cfg.Backend.Driver = config.DriverMongoDB
		c.cfg.Backend.MongoDB.URI = uri
		c.cfg.Backend.MongoDB.Database = database
	}
}

// WithMongoUUIDs makes MongoDB collections use hashed UUID ids.
func WithMongoUUIDs() Option {
	return func(c *clientConfig) {
		c.cfg.Backend.MongoDB.UseUUID = true
	}
}

// WithReadinessTimeout bounds the wait for the backend in New.
func WithReadinessTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.cfg.Backend.ReadinessTimeout = max(int(d/time.Second), 1)
	}
}

// WithHardLimit caps the records one search may accumulate.
// 0 keeps the default of 10000, -1 disables the cap.
func WithHardLimit(n int) Option {
	return func(c *clientConfig) {
		c.cfg.Search.HardLimit = n
	}
}

// WithMaxRequests caps the backend requests of one search. 0 means unlimited.
func WithMaxRequests(n int) Option {
	return func(c *clientConfig) {
		c.cfg.Search.MaxRequests = n
	}
}

// WithPageSize sets the rows requested per backend page.
func WithPageSize(n int) Option {
	return func(c *clientConfig) {
		c.cfg.Search.RequestLimit = n
	}
}

// WithMaxConflictRetries sets how often a conflicting Update or Patch is
// re-read and retried. 0 surfaces the first conflict.
func WithMaxConflictRetries(n int) Option {
	return func(c *clientConfig) {
		c.cfg.Documents.MaxConflictRetries = &n
	}
}

// WithMaxBatchSize caps the documents of one UpsertMany or DeleteMany call.
func WithMaxBatchSize(n int) Option {
	return func(c *clientConfig) {
		c.cfg.Documents.MaxBatchSize = n
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics registers the scan and write metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *clientConfig) {
		c.metricsReg = reg
	}
}
