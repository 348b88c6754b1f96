package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the process configuration loaded from environment variables.
type Config struct {
	// AppEnv is the running environment (development/production).
	AppEnv string
	// ServerPort is the HTTP port to listen on.
	ServerPort string
	// AllowedOrigins is a list of CORS allowed domains.
	AllowedOrigins []string
	// ConfDir holds app_config.json, db_config.json and common_sql.json.
	ConfDir string
	// SecretKey is the base64 AES-256 key sealing profile secrets.
	// When empty the key is read from (or created in) the OS keychain.
	SecretKey string
	// KeyringService names the keychain entry holding the sealing key.
	KeyringService string
	// SessionSecret signs session tokens. Defaults to a random value per process.
	SessionSecret string
	// RateLimitPerMinute caps protected requests per client IP.
	RateLimitPerMinute int
	// SweepInterval is how often expired results and archives are removed.
	SweepInterval time.Duration

	// StorageType selects the export archive: "none", "local" or "s3".
	StorageType string
	// LocalStoragePath is the directory for local archives.
	LocalStoragePath string
	// ArchiveRetention is how long local archives are kept.
	ArchiveRetention time.Duration
	// AWSRegion is the AWS region for S3 uploads.
	AWSRegion string
	// S3Bucket is the target S3 bucket name.
	S3Bucket string
	// S3Endpoint is an optional custom endpoint (for non-AWS S3 providers like MinIO).
	S3Endpoint string
	// S3PathStyle enables path-style addressing (required for some S3 providers).
	S3PathStyle bool
}

func Load() *Config {
	return &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		ServerPort:         getEnv("SERVER_PORT", "5000"),
		AllowedOrigins:     getEnvSlice("ALLOWED_ORIGINS", []string{"*"}),
		ConfDir:            getEnv("CONF_DIR", "./conf"),
		SecretKey:          getEnv("SECRET_KEY", ""),
		KeyringService:     getEnv("KEYRING_SERVICE", "sql-console"),
		SessionSecret:      getEnv("SESSION_SECRET", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 100),
		SweepInterval:      getEnvDuration("SWEEP_INTERVAL", time.Minute),
		StorageType:        getEnv("STORAGE_TYPE", "none"),
		LocalStoragePath:   getEnv("LOCAL_STORAGE_PATH", filepath.Join(os.TempDir(), "sql-console-exports")),
		ArchiveRetention:   getEnvDuration("ARCHIVE_RETENTION", 2*time.Hour),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3PathStyle:        getEnvBool("S3_PATH_STYLE", false),
	}
}

// SettingsPath is the application settings file.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.ConfDir, "app_config.json")
}

// ProfilesPath is the database profile file.
func (c *Config) ProfilesPath() string {
	return filepath.Join(c.ConfDir, "db_config.json")
}

// SnippetsPath is the saved SQL file.
func (c *Config) SnippetsPath() string {
	return filepath.Join(c.ConfDir, "common_sql.json")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		var result []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
		return result
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
