package db

import (
	"context"
	"fmt"
	"os"

	"github.com/inkwell/inkwell-backend/internal/db/backends/memory"
	"github.com/inkwell/inkwell-backend/internal/db/backends/postgres"
	"github.com/inkwell/inkwell-backend/internal/db/interfaces"
)

// Config selects and configures a storage backend.
type Config struct {
	Type string // "memory" or "postgres"
	DSN  string // connection string for SQL backends
}

// NewDatabase creates a database instance for the given configuration.
// Missing fields fall back to the DB_TYPE and DB_DSN environment variables.
func NewDatabase(config *Config) (interfaces.Database, error) {
	if config == nil {
		config = &Config{}
	}
	if config.Type == "" {
		config.Type = getEnvOrDefault("DB_TYPE", "memory")
	}
	if config.DSN == "" {
		config.DSN = os.Getenv("DB_DSN")
	}

	switch config.Type {
	case "memory":
		return memory.NewDatabase(), nil
	case "postgres":
		if config.DSN == "" {
			return nil, fmt.Errorf("postgres backend requires a DSN")
		}
		return postgres.NewDatabase(config.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}
}

// MustNewDatabase creates a database instance and panics on error.
func MustNewDatabase(config *Config) interfaces.Database {
	database, err := NewDatabase(config)
	if err != nil {
		panic(fmt.Sprintf("failed to create database: %v", err))
	}
	return database
}

// NewInMemoryDatabase creates an in-memory database instance.
func NewInMemoryDatabase() interfaces.Database {
	return memory.NewDatabase()
}

// ConnectAndMigrate connects to the database and applies the schemas.
func ConnectAndMigrate(ctx context.Context, database interfaces.Database, schemas []*interfaces.Schema) error {
	if err := database.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if !database.IsHealthy(ctx) {
		return fmt.Errorf("database health check failed")
	}

	if err := database.Migrate(ctx, schemas); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
