package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Worker   WorkerConfig
	Ai       AIConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

// UploadConfig bounds the chunked upload pipeline.
type UploadConfig struct {
	StagingDir       string
	BlobDir          string
	MaxChunkSize     int64
	MaxChunks        int
	MaxSessions      int
	ChunkTTL         time.Duration
	CacheTTL         time.Duration
	SettleDelay      time.Duration
	StalledThreshold time.Duration
	MaxRetries       int
}

type WorkerConfig struct {
	HeartbeatInterval time.Duration
	LockTTL           time.Duration
	Language          string
}

type AIConfig struct {
	OllamaBaseURL string
	OllamaModel   string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Upload: UploadConfig{
			StagingDir:       getEnv("UPLOAD_STAGING_DIR", "uploads/chunks"),
			BlobDir:          getEnv("UPLOAD_BLOB_DIR", "uploads/blobs"),
			MaxChunkSize:     getEnvAsInt64("UPLOAD_MAX_CHUNK_SIZE", 5*1024*1024),
			MaxChunks:        getEnvAsInt("UPLOAD_MAX_CHUNKS", 200),
			MaxSessions:      getEnvAsInt("UPLOAD_MAX_SESSIONS_PER_OWNER", 5),
			ChunkTTL:         getEnvAsDuration("UPLOAD_CHUNK_TTL", 24*time.Hour),
			CacheTTL:         getEnvAsDuration("UPLOAD_CACHE_TTL", 36*time.Hour),
			SettleDelay:      getEnvAsDuration("UPLOAD_SETTLE_DELAY", 2*time.Second),
			StalledThreshold: getEnvAsDuration("UPLOAD_STALLED_THRESHOLD", 300*time.Second),
			MaxRetries:       getEnvAsInt("UPLOAD_MAX_RETRIES", 3),
		},
		Worker: WorkerConfig{
			HeartbeatInterval: getEnvAsDuration("WORKER_HEARTBEAT_INTERVAL", 10*time.Second),
			LockTTL:           getEnvAsDuration("WORKER_LOCK_TTL", 10*time.Minute),
			Language:          getEnv("WORKER_DEFAULT_LANGUAGE", "en"),
		},
		Ai: AIConfig{
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:   getEnv("LLM_MODEL", "llama3"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseInt(strValue, 10, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
