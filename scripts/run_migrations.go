package main

import (
	"log"
	"os"

	"github.com/safar/marketplace-orders/internal/config"
	"github.com/safar/marketplace-orders/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down]")
	}

	direction := database.Direction(os.Args[1])
	if direction != database.DirectionUp && direction != database.DirectionDown {
		log.Fatal("Direction must be 'up' or 'down'")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	version, err := database.Migrate(db, direction)
	if err != nil {
		log.Fatalf("Run migrations: %v", err)
	}

	log.Printf("Migrations %s complete, schema version %d", direction, version)
}
