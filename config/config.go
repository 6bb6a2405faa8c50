package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr string

	// Download / transcode
	YtDlpPath    string
	FFmpegPath   string
	DownloadDir  string // where fetched artifacts live; never cleared automatically
	AudioBitrate string // e.g. "192k"
	DownloadTimeout time.Duration

	// Search provider
	SearchAPIURL string
	SearchAPIKey string

	// Delivery
	DeliveryWorkers int
	MaxSendBytes    int64 // platform upload ceiling, 0 disables the check

	// Cache behaviour. FlushCacheOnStart drops every cache record at boot
	// without touching the backing files; see cmd/cache.go.
	FlushCacheOnStart bool
	IndexTTL          time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string // empty disables the Redis hot layer
	RedisPort     string
	RedisPassword string
	RedisDB       int

	MinioEnabled   bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	LogLevel string
	LogPath  string
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
	// godotenv.Load() will not override variables already set in the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		YtDlpPath:       getEnv("YTDLP_PATH", "yt-dlp"),
		FFmpegPath:      getEnv("FFMPEG_PATH", "ffmpeg"),
		DownloadDir:     getEnv("DOWNLOAD_DIR", "downloads"),
		AudioBitrate:    getEnv("AUDIO_BITRATE", "192k"),
		DownloadTimeout: time.Duration(getEnvInt("DOWNLOAD_TIMEOUT_SECONDS", 600)) * time.Second,

		SearchAPIURL: getEnv("SEARCH_API_URL", "https://www.googleapis.com/youtube/v3"),
		SearchAPIKey: os.Getenv("SEARCH_API_KEY"),

		DeliveryWorkers: getEnvInt("DELIVERY_WORKERS", 4),
		MaxSendBytes:    int64(getEnvInt("MAX_SEND_MB", 50)) * 1024 * 1024,

		FlushCacheOnStart: getEnvBool("FLUSH_CACHE_ON_START", false),
		IndexTTL:          time.Duration(getEnvInt("INDEX_TTL_SECONDS", 3600)) * time.Second,

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "tunevault"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEnabled:   getEnvBool("MINIO_ENABLED", false),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "tunevault"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  getEnv("LOG_PATH", ""),
	}
}
