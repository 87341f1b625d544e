// Command migrate manages the analyses schema.
//
//	go run ./cmd/migrate [up|down|version]
package main

import (
	"context"
	"log"
	"os"

	"markupcheck-backend/internal/shared/config"
	"markupcheck-backend/internal/shared/storage/db"
)

func main() {
	action := "up"
	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	cfg := config.Load()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	switch action {
	case "up":
		err = db.RunMigrations(ctx, sqlDB)
	case "down":
		err = db.RollbackMigration(ctx, sqlDB)
	case "version":
		var version int64
		version, err = db.MigrationVersion(ctx, sqlDB)
		if err == nil {
			total, _ := db.MigrationCount()
			log.Printf("schema version %d (%d migrations embedded)", version, total)
		}
	default:
		log.Printf("unknown action %q (want up, down or version)", action)
		os.Exit(2)
	}
	if err != nil {
		log.Printf("migrate %s failed: %v", action, err)
		os.Exit(1)
	}
}
