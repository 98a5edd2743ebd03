// Package config reads the process configuration from the environment.
// A .env file next to the binary or in a parent directory is loaded first;
// variables already present in the environment win.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/clinicq/backend/pkg/constants"
)

// Config holds every setting shared by the server and the management CLI
type Config struct {
	Port  string
	Debug bool

	DBDriver   string
	SQLitePath string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret     string
	TokenTTL      time.Duration
	AdminUsername string
	AdminEmail    string
	AdminPassword string

	TimeZone *time.Location

	StaticRoot      string
	StaticURL       string
	StaticFilesDirs []string
	FixtureDirs     []string

	CORSAllowedOrigins []string
	PublicBaseURL      string

	ReminderSchedule string
	OutboxInterval   time.Duration
	ArrivalRadiusKm  float64
	OTPTTL           time.Duration
}

// LoadDotEnv loads the first .env found in the given candidate paths.
// It returns the path that was loaded, or "" when none exists.
func LoadDotEnv(paths ...string) string {
	if len(paths) == 0 {
		paths = []string{".env", "../.env", "../../.env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			return p
		}
	}
	return ""
}

// Load builds a Config from the environment
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8000"),
		Debug:         getBool("DEBUG", false),
		DBDriver:      strings.ToLower(getEnv("DB_DRIVER", constants.DriverSQLite)),
		SQLitePath:    getEnv("SQLITE_PATH", "db.sqlite3"),
		DBHost:        getEnv("DB_HOST", "127.0.0.1"),
		DBPort:        getEnv("DB_PORT", "3306"),
		DBUser:        getEnv("DB_USER", "root"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        getEnv("DB_NAME", "clinic"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		StaticRoot:    getEnv("STATIC_ROOT", "staticfiles"),
		StaticURL:     getEnv("STATIC_URL", "/static/"),
		PublicBaseURL: strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),

		StaticFilesDirs:    getList("STATICFILES_DIRS", []string{filepath.Join("frontend", "build", "static")}),
		FixtureDirs:        getList("FIXTURE_DIRS", []string{"fixtures"}),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		ReminderSchedule:   getEnv("REMINDER_SCHEDULE", "@every 30s"),
	}

	var err error
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.OutboxInterval, err = getDuration("OUTBOX_POLL", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.OTPTTL, err = getDuration("OTP_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ArrivalRadiusKm, err = getFloat("ARRIVAL_RADIUS_KM", constants.DefaultArrivalKm); err != nil {
		return nil, err
	}

	tz := getEnv("TIME_ZONE", "UTC")
	if cfg.TimeZone, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE %q: %w", tz, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.DBDriver {
	case constants.DriverSQLite, constants.DriverMySQL:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want %s or %s)", c.DBDriver, constants.DriverSQLite, constants.DriverMySQL)
	}
	if c.JWTSecret == "" {
		if !c.Debug {
			return fmt.Errorf("JWT_SECRET must be set when DEBUG is off")
		}
		c.JWTSecret = "insecure-development-secret"
	}
	if c.ArrivalRadiusKm <= 0 {
		return fmt.Errorf("ARRIVAL_RADIUS_KM must be positive")
	}
	if !strings.HasSuffix(c.StaticURL, "/") {
		c.StaticURL += "/"
	}
	return nil
}

// MySQLDSN renders the go-sql-driver DSN
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getList(key string, fallback []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
