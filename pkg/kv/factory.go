package kv

import (
	"fmt"
	"time"
)

// Backend identifies a storage backend.
type Backend string

const (
	// BackendMemory uses the in-process store.
	BackendMemory Backend = "memory"
	// BackendRedis uses Redis.
	BackendRedis Backend = "redis"
)

// Config holds configuration for creating a Store instance.
type Config struct {
	// Backend specifies which storage backend to use.
	Backend Backend

	// RedisAddr is the host:port of the Redis server (required when Backend
	// is "redis").
	RedisAddr string

	// JanitorInterval controls how often the in-memory store removes expired
	// keys. Zero uses the backend default.
	JanitorInterval time.Duration
}

// StoreFactory creates a Store instance from a Config.
type StoreFactory func(cfg Config) (Store, error)

var factories = make(map[Backend]StoreFactory)

// RegisterBackend registers a store factory for a backend. Backends register
// themselves from an init function; importing the backend package is enough.
func RegisterBackend(backend Backend, factory StoreFactory) {
	factories[backend] = factory
}

// NewStore creates a Store for the configured backend.
func NewStore(cfg Config) (Store, error) {
	if cfg.Backend == "" {
		cfg.Backend = BackendMemory
	}

	factory, ok := factories[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("kv: backend %q is not registered", cfg.Backend)
	}
	return factory(cfg)
}
