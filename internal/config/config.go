package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// DocumentsConfig holds the document policy knobs: upload ceilings, the MIME
// allow-list enforced before upload, signed-link issuance and the purge policy.
type DocumentsConfig struct {
	MaxUploadBytes   int64
	AllowedMimeTypes []string
	SignedLinkTTL    time.Duration
	SignedLinkSecret string
	OwnerCanPurge    bool
}

// AuthConfig holds settings for bearer-token actor authentication.
type AuthConfig struct {
	TokenSecret string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost   string
	Port      string
	Database  DatabaseConfig
	MinIO     MinIOConfig
	Documents DocumentsConfig
	Auth      AuthConfig
}

// MimeAllowed reports whether the given content type is on the allow-list.
// An empty allow-list permits everything.
func (c DocumentsConfig) MimeAllowed(mime string) bool {
	if len(c.AllowedMimeTypes) == 0 {
		return true
	}
	mime = strings.ToLower(strings.TrimSpace(mime))
	for _, allowed := range c.AllowedMimeTypes {
		if mime == allowed {
			return true
		}
	}
	return false
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"), // default only for non-sensitive value
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Documents: DocumentsConfig{
			MaxUploadBytes: getEnvInt64("DOCS_MAX_UPLOAD_BYTES", 20*1024*1024),
			AllowedMimeTypes: getEnvList("DOCS_ALLOWED_MIME_TYPES", []string{
				"application/pdf",
				"image/png",
				"image/jpeg",
				"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
				"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
				"text/plain",
				"text/csv",
			}),
			SignedLinkTTL:    time.Duration(getEnvInt("DOCS_SIGNED_LINK_TTL_SEC", 900)) * time.Second,
			SignedLinkSecret: getEnv("DOCS_SIGNED_LINK_SECRET", ""),
			OwnerCanPurge:    getEnvBool("DOCS_OWNER_CAN_PURGE", false),
		},
		Auth: AuthConfig{
			TokenSecret: getEnv("AUTH_TOKEN_SECRET", ""),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvList parses a comma-separated environment value. Entries are trimmed
// and lower-cased; empty entries are skipped.
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
