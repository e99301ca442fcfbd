package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"atomic_server/pkg/atomicid"
)

// LeaseNodeID asks the server to lease a free node id from Redis.
const LeaseNodeID = -1

// generateInstanceID creates an instance name from hostname and PID
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "atomicid"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	InstanceID  string

	// Topology
	NodeID  int
	ShardID int
	EpochMS int64

	// Engine
	SpinLimit       int
	SessionPoolSize int

	// Redis node lease
	RedisURL         string
	NodeLeaseTTL     time.Duration
	NodeLeasePrefix  string
	// LeaseEventStream receives lease changes; empty disables publishing.
	LeaseEventStream string
	LeaseEventMaxLen int64

	// API
	MaxBatch        int
	DefaultEncoding string
	RateLimitPerMin int
	AdminJWTSecret  string
	AllowedOrigins  []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		InstanceID:  getEnv("INSTANCE_ID", generateInstanceID()),

		// Topology
		NodeID:  getEnvInt("NODE_ID", atomicid.DefaultNodeID),
		ShardID: getEnvInt("SHARD_ID", atomicid.DefaultShardID),
		EpochMS: getEnvInt64("EPOCH_MS", 0),

		// Engine
		SpinLimit:       getEnvInt("SPIN_LIMIT", atomicid.DefaultSpinLimit),
		SessionPoolSize: getEnvInt("SESSION_POOL_SIZE", 0),

		// Redis node lease
		RedisURL:         getEnv("REDIS_URL", ""),
		NodeLeaseTTL:     time.Duration(getEnvInt("NODE_LEASE_TTL_SEC", 30)) * time.Second,
		NodeLeasePrefix:  getEnv("NODE_LEASE_PREFIX", "atomicid"),
		LeaseEventStream: getEnv("LEASE_EVENT_STREAM", "atomicid:lease-events"),
		LeaseEventMaxLen: getEnvInt64("LEASE_EVENT_MAXLEN", 10000),

		// API
		MaxBatch:        getEnvInt("MAX_BATCH", 10000),
		DefaultEncoding: getEnv("DEFAULT_ENCODING", "base36"),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MIN", 600),
		AdminJWTSecret:  getEnv("ADMIN_JWT_SECRET", ""),
		AllowedOrigins:  getEnvSlice("ALLOWED_ORIGINS", []string{"*"}),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the generator cannot run with.
func (c *Config) Validate() error {
	if c.NodeID != LeaseNodeID && (c.NodeID < 0 || c.NodeID > atomicid.MaxNodeID) {
		return fmt.Errorf("NODE_ID %d: %w", c.NodeID, atomicid.ErrInvalidNodeID)
	}
	if c.NodeID == LeaseNodeID && c.RedisURL == "" {
		return fmt.Errorf("NODE_ID=%d requires REDIS_URL", LeaseNodeID)
	}
	if c.ShardID < 0 || c.ShardID > atomicid.MaxShardID {
		return fmt.Errorf("SHARD_ID %d: %w", c.ShardID, atomicid.ErrInvalidShardID)
	}
	if _, err := atomicid.ParseEncoding(c.DefaultEncoding); err != nil {
		return fmt.Errorf("DEFAULT_ENCODING: %w", err)
	}
	if c.MaxBatch < 1 {
		return fmt.Errorf("MAX_BATCH must be positive, got %d", c.MaxBatch)
	}
	if c.NodeLeaseTTL < time.Second {
		return fmt.Errorf("NODE_LEASE_TTL_SEC must be at least 1")
	}
	return nil
}

// LeaseNode reports whether the node id comes from a Redis lease.
func (c *Config) LeaseNode() bool {
	return c.NodeID == LeaseNodeID
}

// Encoding returns the parsed default encoding.
func (c *Config) Encoding() atomicid.Encoding {
	enc, _ := atomicid.ParseEncoding(c.DefaultEncoding)
	return enc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
