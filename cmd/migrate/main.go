package main

import (
	"github.com/retrofails/backend/internal/config"
	"github.com/retrofails/backend/internal/database"
	"github.com/retrofails/backend/internal/logger"
)

func main() {
	cfg, dotenvFound, err := config.LoadDatabase()
	if err != nil {
		logger.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}
	logger.Initialize(cfg.LogLevel, cfg.LogDir)
	if !dotenvFound {
		logger.Warn("No .env file found, using system environment variables", nil)
	}

	db, err := database.Connect(cfg.DatabaseURL, true)
	if err != nil {
		logger.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}

	logger.Info("Running database migrations...", nil)
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Migration failed", map[string]interface{}{"error": err.Error()})
	}

	logger.Info("Database migrations completed successfully", nil)
}
