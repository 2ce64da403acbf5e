package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Strategy selects the ownership model for uploaded files. Exactly one
// strategy is active per deployment; it is chosen at startup and never
// switched at runtime.
type Strategy string

const (
	// StrategyToken hands each uploader a one-time delete secret.
	StrategyToken Strategy = "token"
	// StrategySession ties uploads to the logged-in user.
	StrategySession Strategy = "session"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr  string
	PublicDir string // Root directory for the web UI files

	UploadDir    string // Base directory for all uploads
	CoverDir     string // Subdirectory for cover art: UploadDir/covers
	LyricsDir    string // Subdirectory for lyrics: UploadDir/lyrics
	MetadataFile string // JSON metadata store path (file backend)

	AuthStrategy  Strategy
	MetadataStore string // "file" or "mysql"
	SessionStore  string // "memory" or "redis"
	BlobStore     string // "fs" or "minio"

	SessionMaxAge time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	LogPath string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// Attempt to load .env file. godotenv.Load() will not override existing env vars.
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	uploadBase := getEnv("UPLOAD_DIR", "uploads")

	return &Config{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		PublicDir: getEnv("PUBLIC_DIR", "public"),

		UploadDir:    uploadBase,
		CoverDir:     filepath.Join(uploadBase, "covers"),
		LyricsDir:    filepath.Join(uploadBase, "lyrics"),
		MetadataFile: getEnv("METADATA_FILE", filepath.Join(uploadBase, "metadata.json")),

		AuthStrategy:  Strategy(getEnv("AUTH_STRATEGY", string(StrategyToken))),
		MetadataStore: getEnv("METADATA_STORE", "file"),
		SessionStore:  getEnv("SESSION_STORE", "memory"),
		BlobStore:     getEnv("BLOB_STORE", "fs"),

		SessionMaxAge: time.Duration(getEnvInt("SESSION_MAX_AGE_MINUTES", 24*60)) * time.Minute,

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // For password, better not to have a hardcoded default
		DBName:     getEnv("DB_NAME", "musicpro"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "musicpro"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		LogPath: getEnv("LOG_PATH", ""),
	}
}
