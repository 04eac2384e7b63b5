package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/retrofails/backend/internal/logger"
	"github.com/retrofails/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserSeed is one entry of data/initial-users.json
type UserSeed struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type usersFile struct {
	Users []UserSeed `json:"users"`
}

type incidentsFile struct {
	Incidents []models.Incident `json:"incidents"`
}

// FindDataFile looks for name under data/, relative to the working
// directory or to a cmd/<name> directory.
func FindDataFile(name string) (string, error) {
	for _, dir := range []string{"data", filepath.Join("..", "..", "data")} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("data file %s not found", name)
}

// SeedUsers creates the users listed in path, skipping existing addresses.
// It returns how many were created.
func SeedUsers(db *gorm.DB, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read users file: %w", err)
	}
	var file usersFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return 0, fmt.Errorf("failed to parse users file: %w", err)
	}

	created := 0
	for _, seed := range file.Users {
		email := strings.ToLower(strings.TrimSpace(seed.Email))
		var existing models.User
		err := db.Where("email = ?", email).First(&existing).Error
		if err == nil {
			logger.Debug("User already exists", map[string]interface{}{"email": email})
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, fmt.Errorf("failed to look up user %s: %w", email, err)
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
		if err != nil {
			return created, fmt.Errorf("failed to hash password for %s: %w", email, err)
		}

		role := models.RoleViewer
		if seed.Role != "" {
			if role, err = models.ParseRole(seed.Role); err != nil {
				return created, fmt.Errorf("user %s: %w", email, err)
			}
		}

		user := models.User{Email: email, Password: string(hashed), Role: role}
		if err := db.Create(&user).Error; err != nil {
			return created, fmt.Errorf("failed to create user %s: %w", email, err)
		}
		created++
		logger.Info("Created user", map[string]interface{}{"email": email, "role": role})
	}
	return created, nil
}

// SeedIncidents inserts the incidents listed in path that are not present yet.
func SeedIncidents(db *gorm.DB, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read incidents file: %w", err)
	}
	var file incidentsFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return 0, fmt.Errorf("failed to parse incidents file: %w", err)
	}

	created := 0
	for _, inc := range file.Incidents {
		if inc.ID == "" {
			inc.ID = models.IncidentID(uuid.NewString())
		} else {
			var count int64
			if err := db.Model(&models.Incident{}).Where("id = ?", inc.ID).Count(&count).Error; err != nil {
				return created, fmt.Errorf("failed to look up incident %s: %w", inc.ID, err)
			}
			if count > 0 {
				continue
			}
		}
		if err := db.Create(&inc).Error; err != nil {
			return created, fmt.Errorf("failed to create incident %s: %w", inc.Name, err)
		}
		created++
	}

	logger.Info("Seeded incidents", map[string]interface{}{"created": created, "listed": len(file.Incidents)})
	return created, nil
}
