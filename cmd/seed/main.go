package main

import (
	"flag"

	"github.com/retrofails/backend/internal/config"
	"github.com/retrofails/backend/internal/database"
	"github.com/retrofails/backend/internal/logger"
)

func main() {
	usersFile := flag.String("users", "", "path to the users JSON file (default data/initial-users.json)")
	incidentsFile := flag.String("incidents", "", "path to the incidents JSON file (default data/initial-incidents.json)")
	skipUsers := flag.Bool("skip-users", false, "do not seed users")
	flag.Parse()

	cfg, dotenvFound, err := config.LoadDatabase()
	if err != nil {
		logger.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}
	logger.Initialize(cfg.LogLevel, cfg.LogDir)
	if !dotenvFound {
		logger.Warn("No .env file found, using system environment variables", nil)
	}

	db, err := database.Connect(cfg.DatabaseURL, false)
	if err != nil {
		logger.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}

	// Run migrations first
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Migration failed", map[string]interface{}{"error": err.Error()})
	}

	if !*skipUsers {
		path := resolve(*usersFile, "initial-users.json")
		created, err := database.SeedUsers(db, path)
		if err != nil {
			logger.Error("Error seeding users", map[string]interface{}{"error": err.Error(), "file": path})
		} else {
			logger.Info("Seeded users", map[string]interface{}{"created": created, "file": path})
		}
	}

	path := resolve(*incidentsFile, "initial-incidents.json")
	if _, err := database.SeedIncidents(db, path); err != nil {
		logger.Error("Error seeding incidents", map[string]interface{}{"error": err.Error(), "file": path})
	}

	logger.Info("Database seeding completed", nil)
}

func resolve(flagValue, name string) string {
	if flagValue != "" {
		return flagValue
	}
	path, err := database.FindDataFile(name)
	if err != nil {
		logger.Fatal("Seed file not found", map[string]interface{}{"error": err.Error()})
	}
	return path
}
