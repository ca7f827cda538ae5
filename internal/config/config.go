package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	LogLevel   string

	DatabaseURL string

	JWTSecret     []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	AllowedOrigins []string

	MaxUploadMB int
	UploadDir   string

	// Login attempts per minute per client IP.
	LoginRateLimit int

	KafkaBrokers []string

	ESURL      string
	ESUser     string
	ESPassword string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found, using system environment variables")
	}

	cfg := &Config{
		ServerPort: envIntDefault("SERVER_PORT", 8080),
		LogLevel:   envDefault("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTSecret:     []byte(os.Getenv("JWT_SECRET")),
		RefreshSecret: []byte(os.Getenv("REFRESH_SECRET")),
		AccessTTL:     time.Duration(envIntDefault("ACCESS_TOKEN_TTL_MINUTES", 15)) * time.Minute,
		RefreshTTL:    time.Duration(envIntDefault("REFRESH_TOKEN_TTL_DAYS", 7)) * 24 * time.Hour,

		AllowedOrigins: csv(envDefault("ALLOWED_ORIGINS", "*")),

		MaxUploadMB: envIntDefault("MAX_UPLOAD_MB", 10),
		UploadDir:   envDefault("UPLOAD_DIR", "uploads"),

		LoginRateLimit: envIntDefault("LOGIN_RATE_LIMIT", 5),

		KafkaBrokers: csv(os.Getenv("KAFKA_BROKERS")),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),

		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3Region:    envDefault("S3_REGION", "us-east-1"),
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on configuration that would only break at runtime.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("config: JWT_SECRET must be at least 32 characters")
	}
	if len(c.RefreshSecret) < 32 {
		return fmt.Errorf("config: REFRESH_SECRET must be at least 32 characters")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("config: token TTLs must be positive")
	}
	if c.AccessTTL >= c.RefreshTTL {
		return fmt.Errorf("config: access token TTL must be shorter than refresh token TTL")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("config: MAX_UPLOAD_MB must be positive")
	}
	if c.LoginRateLimit <= 0 {
		return fmt.Errorf("config: LOGIN_RATE_LIMIT must be positive")
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("config: ALLOWED_ORIGINS must not be empty")
	}
	return nil
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func csv(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
