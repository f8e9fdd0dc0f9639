package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for all services
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Platform PlatformConfig `yaml:"platform"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	StaticDir    string        `yaml:"static_dir"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig holds blob storage configuration
type StorageConfig struct {
	Type           string        `yaml:"type"` // s3, local
	Bucket         string        `yaml:"bucket"`
	Region         string        `yaml:"region"`
	Endpoint       string        `yaml:"endpoint"`
	AccessKey      string        `yaml:"access_key"`
	SecretKey      string        `yaml:"secret_key"`
	ForcePathStyle bool          `yaml:"force_path_style"`
	LocalPath      string        `yaml:"local_path"`
	PresignExpiry  time.Duration `yaml:"presign_expiry"`
}

// PlatformConfig holds the video platform API and upload driver settings.
// The chunk ceiling and timeouts feed straight into the upload driver; they
// are deliberately configuration, not constants.
type PlatformConfig struct {
	BaseURL          string        `yaml:"base_url"`
	AppID            string        `yaml:"app_id"`
	AppSecret        string        `yaml:"app_secret"`
	RedirectURL      string        `yaml:"redirect_url"`
	ChunkCeiling     int64         `yaml:"chunk_ceiling"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	TransferTimeout  time.Duration `yaml:"transfer_timeout"`
	TransferAttempts int           `yaml:"transfer_attempts"`
	TransferBackoff  time.Duration `yaml:"transfer_backoff"`
}

// AuthConfig holds session settings
type AuthConfig struct {
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	StateTTL      time.Duration `yaml:"state_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// SetupLogging configures the global zerolog logger
func (l *LoggingConfig) SetupLogging() {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if l.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			StaticDir:    getEnv("SERVER_STATIC_DIR", "./web"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "beamup"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "beamup"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Type:           getEnv("STORAGE_TYPE", "local"),
			Bucket:         getEnv("STORAGE_BUCKET", "beamup-videos"),
			Region:         getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:       getEnv("STORAGE_ENDPOINT", ""),
			AccessKey:      getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:      getEnv("STORAGE_SECRET_KEY", ""),
			ForcePathStyle: getEnvBool("STORAGE_FORCE_PATH_STYLE", false),
			LocalPath:      getEnv("STORAGE_LOCAL_PATH", "./videos"),
			PresignExpiry:  getEnvDuration("STORAGE_PRESIGN_EXPIRY", 15*time.Minute),
		},
		Platform: PlatformConfig{
			BaseURL:          getEnv("PLATFORM_BASE_URL", "https://graph-video.example.com/v19.0"),
			AppID:            getEnv("PLATFORM_APP_ID", ""),
			AppSecret:        getEnv("PLATFORM_APP_SECRET", ""),
			RedirectURL:      getEnv("PLATFORM_REDIRECT_URL", "http://localhost:8080/api/v1/auth/callback"),
			ChunkCeiling:     getEnvSize("PLATFORM_CHUNK_CEILING", 8*units.MiB),
			RequestTimeout:   getEnvDuration("PLATFORM_REQUEST_TIMEOUT", 30*time.Second),
			TransferTimeout:  getEnvDuration("PLATFORM_TRANSFER_TIMEOUT", 5*time.Minute),
			TransferAttempts: getEnvInt("PLATFORM_TRANSFER_ATTEMPTS", 3),
			TransferBackoff:  getEnvDuration("PLATFORM_TRANSFER_BACKOFF", 2*time.Second),
		},
		Auth: AuthConfig{
			SessionSecret: getEnv("SESSION_SECRET", "your-secret-key"),
			SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),
			StateTTL:      getEnvDuration("OAUTH_STATE_TTL", 10*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// DatabaseURL returns a PostgreSQL connection string
func (d *DatabaseConfig) DatabaseURL() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RedisAddr returns the Redis address
func (r *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvSize accepts values like "8MiB" or plain byte counts
func getEnvSize(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if size, err := units.RAMInBytes(value); err == nil {
			return size
		}
	}
	return defaultValue
}
