package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Security   SecurityConfig   `json:"security"`
	Logging    LoggingConfig    `json:"logging"`
	Onboarding OnboardingConfig `json:"onboarding"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`

	// AllowedOrigins feeds CORS and the websocket origin check. "*" allows all.
	AllowedOrigins []string `json:"allowed_origins"`
}

// DatabaseConfig represents database configuration. Driver "memory" keeps
// records in process for local runs.
type DatabaseConfig struct {
	Driver         string        `json:"driver"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	AutoMigrate    bool          `json:"auto_migrate"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string        `json:"jwt_secret"`
	JWTIssuer string        `json:"jwt_issuer"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// OnboardingConfig configures the wizard client.
type OnboardingConfig struct {
	APIBaseURL         string        `json:"api_base_url"`
	APIToken           string        `json:"api_token"`
	RequestTimeout     time.Duration `json:"request_timeout"`
	Debounce           time.Duration `json:"debounce"`
	TargetSectionTTL   time.Duration `json:"target_section_ttl"`
	MainAppURL         string        `json:"main_app_url"`
	PendingApprovalURL string        `json:"pending_approval_url"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Default returns the configuration used when no file or environment is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:         DriverPostgres,
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "receptionist_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    5 * time.Minute,
			AutoMigrate:    true,
		},
		Security: SecurityConfig{
			JWTIssuer: "user-portal",
			TokenTTL:  24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Onboarding: OnboardingConfig{
			APIBaseURL:         "http://localhost:8080/api/v1",
			RequestTimeout:     10 * time.Second,
			Debounce:           150 * time.Millisecond,
			TargetSectionTTL:   5 * time.Second,
			MainAppURL:         "/dashboard",
			PendingApprovalURL: "/pending-approval",
		},
	}
}

// LoadConfig loads configuration from .env, the JSON file and environment
// variables, in increasing order of precedence. A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func overrideWithEnv(config *Config) {
	config.Server.Host = getEnv("SERVER_HOST", config.Server.Host)
	config.Server.Port = getEnvInt("SERVER_PORT", config.Server.Port)
	if origins := getEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		config.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	config.Database.Driver = getEnv("DATABASE_DRIVER", config.Database.Driver)
	config.Database.Host = getEnv("DATABASE_HOST", config.Database.Host)
	config.Database.Port = getEnvInt("DATABASE_PORT", config.Database.Port)
	config.Database.User = getEnv("DATABASE_USER", config.Database.User)
	config.Database.Password = getEnv("DATABASE_PASSWORD", config.Database.Password)
	config.Database.DBName = getEnv("DATABASE_DBNAME", config.Database.DBName)
	config.Database.SSLMode = getEnv("DATABASE_SSLMODE", config.Database.SSLMode)
	config.Database.AutoMigrate = getEnvBool("DATABASE_AUTO_MIGRATE", config.Database.AutoMigrate)

	config.Security.JWTSecret = getEnv("JWT_SECRET", config.Security.JWTSecret)
	config.Security.JWTIssuer = getEnv("JWT_ISSUER", config.Security.JWTIssuer)
	config.Security.TokenTTL = getEnvDuration("JWT_TOKEN_TTL", config.Security.TokenTTL)

	config.Logging.Level = getEnv("LOG_LEVEL", config.Logging.Level)
	config.Logging.Development = getEnvBool("LOG_DEVELOPMENT", config.Logging.Development)

	config.Onboarding.APIBaseURL = getEnv("ONBOARDING_API_BASE_URL", config.Onboarding.APIBaseURL)
	config.Onboarding.APIToken = getEnv("ONBOARDING_API_TOKEN", config.Onboarding.APIToken)
	config.Onboarding.RequestTimeout = getEnvDuration("ONBOARDING_REQUEST_TIMEOUT", config.Onboarding.RequestTimeout)
	config.Onboarding.Debounce = getEnvDuration("ONBOARDING_DEBOUNCE", config.Onboarding.Debounce)
	config.Onboarding.TargetSectionTTL = getEnvDuration("ONBOARDING_TARGET_SECTION_TTL", config.Onboarding.TargetSectionTTL)
	config.Onboarding.MainAppURL = getEnv("ONBOARDING_MAIN_APP_URL", config.Onboarding.MainAppURL)
	config.Onboarding.PendingApprovalURL = getEnv("ONBOARDING_PENDING_APPROVAL_URL", config.Onboarding.PendingApprovalURL)
}

// Validate checks the settings every entry point relies on.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("DATABASE_HOST and DATABASE_DBNAME are required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown DATABASE_DRIVER %q", c.Database.Driver)
	}
	if c.Onboarding.RequestTimeout <= 0 {
		return fmt.Errorf("ONBOARDING_REQUEST_TIMEOUT must be > 0")
	}
	if c.Onboarding.Debounce <= 0 {
		return fmt.Errorf("ONBOARDING_DEBOUNCE must be > 0")
	}
	if c.Onboarding.TargetSectionTTL <= 0 {
		return fmt.Errorf("ONBOARDING_TARGET_SECTION_TTL must be > 0")
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
