package config

import "time"

// APIConfig holds runtime configuration for the release engine API.
type APIConfig struct {
	Environment         string
	LogLevel            string
	Addr                string
	DatabaseURL         string
	MigrationsDir       string
	BlobRoot            string
	BlobBaseURL         string
	MaxPackageSizeMB    int
	ReportBuffer        int
	RateLimitRedisAddr  string
	RateLimitRedisPass  string
	RateLimitRedisDB    int
	AuditRetentionDays  int
	ShutdownGracePeriod time.Duration
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:         GetString("APP_ENV", "development"),
		LogLevel:            GetString("LOG_LEVEL", "info"),
		Addr:                GetString("API_ADDR", ":3000"),
		DatabaseURL:         GetString("DATABASE_URL", "postgres://codepush:codepush@db:5432/codepush?sslmode=disable"),
		MigrationsDir:       GetString("DB_MIGRATIONS_DIR", "./db/migrations"),
		BlobRoot:            GetString("BLOB_ROOT", "/var/lib/codepush/blobs"),
		BlobBaseURL:         GetString("BLOB_BASE_URL", "http://localhost:3000/blobs"),
		MaxPackageSizeMB:    GetInt("MAX_PACKAGE_SIZE_MB", 200),
		ReportBuffer:        GetInt("REPORT_BUFFER", 256),
		RateLimitRedisAddr:  GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass:  GetString("RATE_LIMIT_REDIS_PASS", ""),
		RateLimitRedisDB:    GetInt("RATE_LIMIT_REDIS_DB", 0),
		AuditRetentionDays:  GetInt("AUDIT_RETENTION_DAYS", 90),
		ShutdownGracePeriod: GetDuration("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}
