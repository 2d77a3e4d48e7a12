// ==============================================================================
// MIGRATION RUNNER - cmd/migrate/main.go
// ==============================================================================
package main

import (
	"flag"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"tracknow/pkg/config"
	"tracknow/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	var (
		direction = flag.String("direction", "up", "migration direction: up or down")
		steps     = flag.Int("steps", 0, "number of steps (0 = all)")
		source    = flag.String("source", "file://migrations", "migration source")
	)
	flag.Parse()

	cfg := config.Load()
	log := logger.New("tracknow-migrate")

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required", nil)
	}

	m, err := migrate.New(*source, cfg.Database.URL)
	if err != nil {
		log.Fatal("failed to initialize migrations", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer m.Close()

	switch *direction {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	default:
		log.Error("unknown direction", map[string]interface{}{
			"direction": *direction,
		})
		os.Exit(1)
	}

	if err != nil && err != migrate.ErrNoChange {
		log.Fatal("migration failed", map[string]interface{}{
			"direction": *direction,
			"error":     err.Error(),
		})
	}

	log.Info("migrations applied", map[string]interface{}{
		"direction": *direction,
	})
}
