package main

// Run database migrations:
//   go run ./cmd/migrate            # apply pending migrations
//   go run ./cmd/migrate -cmd status

import (
	"context"
	"flag"
	"log"
	"os"

	"iprisk-backend/internal/shared/config"
	"iprisk-backend/internal/shared/storage/db"
	"iprisk-backend/internal/shared/telemetry"
)

func main() {
	command := flag.String("cmd", string(db.MigrateUp), "Migration command: up, down, status or version")
	flag.Parse()

	cfg := config.Load()
	telemetry.Init(cfg.Env)
	defer telemetry.Sync()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.Migrate(ctx, sqlDB, db.MigrateCommand(*command)); err != nil {
		log.Printf("failed to run migrations: %v", err)
		os.Exit(1)
	}
}
