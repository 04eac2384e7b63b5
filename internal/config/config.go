package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DataBackendHosted   = "hosted"
	DataBackendPostgres = "postgres"

	AuthProviderHosted = "hosted"
	AuthProviderLocal  = "local"
)

// Config holds everything the server and the maintenance commands read from the environment.
type Config struct {
	Env      string `env:"ENV" env-default:"development"`
	Port     string `env:"PORT" env-default:"8080"`
	GinMode  string `env:"GIN_MODE" env-default:"debug"`
	LogLevel string `env:"LOG_LEVEL" env-default:"INFO"`
	LogDir   string `env:"LOG_DIR" env-default:"logs"`

	DataBackend  string `env:"DATA_BACKEND" env-default:"hosted"`
	AuthProvider string `env:"AUTH_PROVIDER" env-default:"hosted"`

	BackendURL        string        `env:"BACKEND_URL"`
	BackendAnonKey    string        `env:"BACKEND_ANON_KEY"`
	BackendServiceKey string        `env:"BACKEND_SERVICE_KEY"`
	BackendTimeout    time.Duration `env:"BACKEND_TIMEOUT" env-default:"15s"`
	IncidentsTable    string        `env:"INCIDENTS_TABLE" env-default:"incidents"`
	ImageBucket       string        `env:"IMAGE_BUCKET" env-default:"incident-images"`
	ImageDir          string        `env:"IMAGE_DIR" env-default:"data/images"`
	SiteURL           string        `env:"SITE_URL" env-default:"http://localhost:3000"`

	// CORSOrigins may send credentialed requests, in addition to SiteURL
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-separator:","`

	DatabaseURL string `env:"DATABASE_URL"`

	JWTSecret       string        `env:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" env-default:"1h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" env-default:"720h"`
	ResetTokenTTL   time.Duration `env:"RESET_TOKEN_TTL" env-default:"1h"`

	RedisURL      string        `env:"REDIS_URL"`
	NavigationTTL time.Duration `env:"NAVIGATION_TTL" env-default:"24h"`
}

// Load reads .env (if present) and then the process environment, validated
// for running the server. The returned bool is false when no .env file was found.
func Load() (*Config, bool, error) {
	return load((*Config).Validate)
}

// LoadDatabase is Load for the maintenance commands, which only talk to the
// database and so only need DATABASE_URL.
func LoadDatabase() (*Config, bool, error) {
	return load((*Config).ValidateDatabase)
}

func load(validate func(*Config) error) (*Config, bool, error) {
	dotenv := godotenv.Load() == nil

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, dotenv, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, dotenv, err
	}
	return &cfg, dotenv, nil
}

func (c *Config) Validate() error {
	if err := c.validateModes(); err != nil {
		return err
	}

	// The hosted data API only accepts tokens issued by the hosted auth service
	if c.AuthProvider == AuthProviderLocal && c.DataBackend == DataBackendHosted {
		return fmt.Errorf("AUTH_PROVIDER=local requires DATA_BACKEND=postgres")
	}
	if c.NeedsHostedBackend() && c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required when the hosted backend is used")
	}
	if c.NeedsDatabase() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when DATA_BACKEND=postgres or AUTH_PROVIDER=local")
	}
	if c.AuthProvider == AuthProviderLocal && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when AUTH_PROVIDER=local")
	}
	c.BackendURL = strings.TrimRight(c.BackendURL, "/")
	return nil
}

// ValidateDatabase checks only what migrate and seed need.
func (c *Config) ValidateDatabase() error {
	if err := c.validateModes(); err != nil {
		return err
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

func (c *Config) validateModes() error {
	c.DataBackend = strings.ToLower(c.DataBackend)
	c.AuthProvider = strings.ToLower(c.AuthProvider)

	switch c.DataBackend {
	case DataBackendHosted, DataBackendPostgres:
	default:
		return fmt.Errorf("DATA_BACKEND must be %q or %q, got %q", DataBackendHosted, DataBackendPostgres, c.DataBackend)
	}
	switch c.AuthProvider {
	case AuthProviderHosted, AuthProviderLocal:
	default:
		return fmt.Errorf("AUTH_PROVIDER must be %q or %q, got %q", AuthProviderHosted, AuthProviderLocal, c.AuthProvider)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AllowedOrigins lists the browser origins the session cookies are shared with.
func (c *Config) AllowedOrigins() []string {
	return append([]string{c.SiteURL}, c.CORSOrigins...)
}

func (c *Config) NeedsHostedBackend() bool {
	return c.DataBackend == DataBackendHosted || c.AuthProvider == AuthProviderHosted
}

func (c *Config) NeedsDatabase() bool {
	return c.DataBackend == DataBackendPostgres || c.AuthProvider == AuthProviderLocal
}
