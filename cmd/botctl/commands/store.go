package commands

import (
	"fmt"

	"github.com/Tih000/max/internal/config"
	"github.com/Tih000/max/internal/database"
)

// openStore connects to the database using the process environment
func openStore() (*database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}
