package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-storefront/internal/config"
	"ms-storefront/internal/database/migrations"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

func main() {
	down := flag.Bool("down", false, "roll back all migrations")
	seed := flag.Bool("seed", false, "insert demo catalog data after migrating")
	flag.Parse()

	log := logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: cfg.Database.MigrationsDir,
	})
	defer runner.Close()

	if *down {
		if err := runner.MigrateDown(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migration down failed: %v", err))
		}
		log.Info("DATABASE", "Rolled back all migrations")
		return
	}

	if err := runner.MigrateUp(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migration up failed: %v", err))
	}
	version, dirty, err := runner.Version()
	if err != nil {
		log.Warn("DATABASE", fmt.Sprintf("Could not read schema version: %v", err))
	} else {
		log.Info("DATABASE", fmt.Sprintf("Schema at version %d (dirty=%t)", version, dirty))
	}

	if *seed {
		if err := seedCatalog(context.Background(), bunDB); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Seed failed: %v", err))
		}
		log.Info("DATABASE", "Demo catalog seeded")
	}
}

// seedCatalog inserts one demo event with two tiers for local development.
func seedCatalog(ctx context.Context, bunDB *bun.DB) error {
	return bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		event := models.Event{
			ID:          uuid.NewString(),
			Title:       "Budapest Jazz Night",
			Description: "An evening of live jazz on two stages.",
			EventDate:   now.AddDate(0, 2, 0),
			Location:    "Akvarium Klub, Budapest",
			CreatedAt:   now,
		}
		if _, err := tx.NewInsert().Model(&event).Exec(ctx); err != nil {
			return err
		}

		tickets := []models.Ticket{
			{
				ID: uuid.NewString(), EventID: event.ID, Name: "General Admission",
				Price: 5000, Quantity: 200, QuantityAvailable: 200, CreatedAt: now,
			},
			{
				ID: uuid.NewString(), EventID: event.ID, Name: "VIP",
				Price: 15000, Quantity: 30, QuantityAvailable: 30, CreatedAt: now,
			},
		}
		_, err := tx.NewInsert().Model(&tickets).Exec(ctx)
		return err
	})
}
