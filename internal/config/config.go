package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

type Config struct {
	AppEnv    string
	AppName   string
	AppURL    string
	ClientURL string
	LogLevel  string

	ServerPort string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	JWTSecret      string
	JWTExpiryHours int
	JWTIssuer      string

	CookieName   string
	CookieSecure bool

	// Rate limiting configuration for the auth endpoints
	AuthRateLimit   int           // requests per window
	AuthRateWindow  time.Duration // time window
	AuthRateCleanup time.Duration // cleanup interval

	// Cache configuration. The token revocation list always uses CacheType,
	// CacheEnabled only toggles note caching.
	CacheEnabled  bool
	CacheType     string
	CacheTTL      time.Duration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// SMTP Email configuration
	SMTPEnabled  bool
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPUseTLS   bool
}

// LoadConfig reads an optional .env file and the process environment.
// An empty envFile means ".env" in the working directory.
func LoadConfig(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Debug(".env file not loaded", "file", envFile, "error", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		AppEnv:    strings.ToLower(v.GetString("APP_ENV")),
		AppName:   v.GetString("APP_NAME"),
		AppURL:    v.GetString("APP_URL"),
		ClientURL: v.GetString("CLIENT_URL"),
		LogLevel:  v.GetString("LOG_LEVEL"),

		ServerPort: v.GetString("SERVER_PORT"),

		DBDriver:   strings.ToLower(v.GetString("DB_DRIVER")),
		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),
		SQLitePath: v.GetString("SQLITE_PATH"),

		JWTSecret:      v.GetString("JWT_SECRET"),
		JWTExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		JWTIssuer:      v.GetString("JWT_ISSUER"),

		CookieName:   v.GetString("COOKIE_NAME"),
		CookieSecure: v.GetBool("COOKIE_SECURE"),

		AuthRateLimit:   v.GetInt("AUTH_RATE_LIMIT"),
		AuthRateWindow:  time.Duration(v.GetInt("AUTH_RATE_WINDOW_MINUTES")) * time.Minute,
		AuthRateCleanup: time.Duration(v.GetInt("AUTH_RATE_CLEANUP_MINUTES")) * time.Minute,

		CacheEnabled:  v.GetBool("CACHE_ENABLED"),
		CacheType:     strings.ToLower(v.GetString("CACHE_TYPE")),
		CacheTTL:      time.Duration(v.GetInt("CACHE_TTL_MINUTES")) * time.Minute,
		RedisHost:     v.GetString("REDIS_HOST"),
		RedisPort:     v.GetString("REDIS_PORT"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		SMTPEnabled:  v.GetBool("SMTP_ENABLED"),
		SMTPHost:     v.GetString("SMTP_HOST"),
		SMTPPort:     v.GetInt("SMTP_PORT"),
		SMTPUsername: v.GetString("SMTP_USERNAME"),
		SMTPPassword: v.GetString("SMTP_PASSWORD"),
		SMTPFrom:     v.GetString("SMTP_FROM"),
		SMTPUseTLS:   v.GetBool("SMTP_USE_TLS"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("APP_NAME", "Notes")
	v.SetDefault("APP_URL", "http://localhost:3000")
	v.SetDefault("CLIENT_URL", "http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("SERVER_PORT", "5001")

	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_USER", "root")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "notes")
	v.SetDefault("SQLITE_PATH", "./data/notes.db")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("JWT_ISSUER", "notes-api")

	v.SetDefault("COOKIE_NAME", "token")
	v.SetDefault("COOKIE_SECURE", false)

	// Allow 5 login/register attempts per 15 minutes per IP
	v.SetDefault("AUTH_RATE_LIMIT", 5)
	v.SetDefault("AUTH_RATE_WINDOW_MINUTES", 15)
	v.SetDefault("AUTH_RATE_CLEANUP_MINUTES", 30)

	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_TYPE", CacheTypeMemory)
	v.SetDefault("CACHE_TTL_MINUTES", 30)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SMTP_ENABLED", false)
	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("SMTP_USE_TLS", true)
}

// devSecret is only accepted outside production.
const devSecret = "default-secret-change-this"

// Validate checks the loaded values and fills the development JWT secret.
func (c *Config) Validate() error {
	switch c.AppEnv {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("invalid APP_ENV %q: must be one of development, production, test", c.AppEnv)
	}

	switch c.DBDriver {
	case DriverMySQL:
		if c.DBName == "" {
			return fmt.Errorf("DB_NAME is required for the mysql driver")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: must be mysql or sqlite", c.DBDriver)
	}

	switch c.CacheType {
	case CacheTypeMemory, CacheTypeRedis:
	default:
		return fmt.Errorf("invalid CACHE_TYPE %q: must be memory or redis", c.CacheType)
	}

	if c.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		log.Warn("JWT_SECRET is not set, using an insecure development secret")
		c.JWTSecret = devSecret
	}
	if c.JWTExpiryHours <= 0 {
		return fmt.Errorf("JWT_EXPIRY_HOURS must be positive, got %d", c.JWTExpiryHours)
	}
	if c.AuthRateLimit <= 0 || c.AuthRateWindow <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT and AUTH_RATE_WINDOW_MINUTES must be positive")
	}
	if c.AuthRateCleanup <= 0 {
		c.AuthRateCleanup = 2 * c.AuthRateWindow
	}
	if c.SMTPEnabled && (c.SMTPHost == "" || c.SMTPFrom == "") {
		return fmt.Errorf("SMTP_HOST and SMTP_FROM are required when SMTP_ENABLED is true")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

func (c *Config) JWTExpiry() time.Duration {
	return time.Duration(c.JWTExpiryHours) * time.Hour
}

// MySQLDSN builds the go-sql-driver DSN. multiStatements is needed by the migrations.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC&multiStatements=true",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
