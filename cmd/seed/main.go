package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/inkwell/inkwell-backend/internal/config"
	gdb "github.com/inkwell/inkwell-backend/internal/db"
	"github.com/inkwell/inkwell-backend/internal/db/entities"
	"github.com/inkwell/inkwell-backend/internal/db/interfaces"
	"github.com/inkwell/inkwell-backend/internal/log"
	"github.com/inkwell/inkwell-backend/internal/posts"
)

// Seeds sample users and posts. Re-running is safe: records that already
// exist are skipped.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewSugar(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db := gdb.MustNewDatabase(&gdb.Config{
		Type: cfg.Database.Type,
		DSN:  cfg.Database.PostgresDSN,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := gdb.ConnectAndMigrate(ctx, db, gdb.AllSchemas()); err != nil {
		logger.Fatalw("Failed to initialize database", "error", err)
	}
	defer db.Disconnect(ctx)

	userRepo := db.Repository(entities.UserSchema)
	postRepo := db.Repository(entities.PostSchema)

	var authorIDs []string
	for _, fixture := range gdb.UserFixtures {
		record, err := userRepo.Create(ctx, fixture)
		if errors.Is(err, interfaces.ErrUniqueConstraint) {
			existing, err := userRepo.FindOne(ctx, &interfaces.Query{
				Where: &interfaces.Filters{
					Conditions: []interfaces.Filter{{Field: "username", Value: fixture["username"]}},
				},
			})
			if err != nil {
				logger.Fatalw("Failed to look up existing user", "username", fixture["username"], "error", err)
			}
			logger.Infow("User already seeded", "username", fixture["username"])
			authorIDs = append(authorIDs, entities.UserFromRecord(existing).ID)
			continue
		}
		if err != nil {
			logger.Fatalw("Failed to seed user", "username", fixture["username"], "error", err)
		}
		authorIDs = append(authorIDs, entities.UserFromRecord(record).ID)
		logger.Infow("Seeded user", "username", fixture["username"])
	}

	for _, fixture := range gdb.PostFixtures(authorIDs) {
		fixture["id"] = posts.NewID()
		_, err := postRepo.Create(ctx, fixture)
		if errors.Is(err, interfaces.ErrUniqueConstraint) {
			logger.Infow("Post already seeded", "slug", fixture["slug"])
			continue
		}
		if err != nil {
			logger.Fatalw("Failed to seed post", "slug", fixture["slug"], "error", err)
		}
		logger.Infow("Seeded post", "slug", fixture["slug"])
	}

	logger.Infow("Seeding complete", "users", len(authorIDs))
}
