package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	LockDriverRedis = "redis"
	LockDriverLocal = "local"

	ProblemSourceDB      = "db"
	ProblemSourceCatalog = "catalog"
)

type Config struct {
	APIPort string
	JWTKey  []byte
	JWTExp  time.Duration

	StorageDriver string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSslMode     string
	DBConnStr     string

	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	LockDriver          string
	MatchLockTTL        time.Duration
	NotifyChannelPrefix string

	SandboxURL          string
	SandboxClientID     string
	SandboxClientSecret string
	SandboxTimeout      time.Duration

	WorkerPoolSize int
	MatchTimeLimit time.Duration

	ProblemSource      string
	ProblemCatalogPath string

	PairingRetryAttempts int
	PairingRetryBackoff  time.Duration

	LogLevel  string
	LogFormat string
}

var AppConfig *Config

// Load reads .env (when present) and the process environment into AppConfig.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort: getEnv("API_PORT", "8080"),
		JWTKey:  []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:  time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "user"),
		DBPassword:    getEnv("DB_PASSWORD", "password"),
		DBName:        getEnv("DB_NAME", "code_duel_db"),
		DBSslMode:     getEnv("DB_SSLMODE", "disable"),

		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvAsInt("REDIS_DB", 0),
		LockDriver:          strings.ToLower(getEnv("LOCK_DRIVER", LockDriverRedis)),
		MatchLockTTL:        getEnvAsSeconds("MATCH_LOCK_TTL_SECONDS", 30),
		NotifyChannelPrefix: getEnv("NOTIFY_CHANNEL_PREFIX", "duel:"),

		SandboxURL:          getEnv("SANDBOX_URL", "https://api.jdoodle.com/v1/execute"),
		SandboxClientID:     getEnv("SANDBOX_CLIENT_ID", ""),
		SandboxClientSecret: getEnv("SANDBOX_CLIENT_SECRET", ""),
		SandboxTimeout:      getEnvAsSeconds("SANDBOX_TIMEOUT_SECONDS", 30),

		WorkerPoolSize: getEnvAsInt("WORKER_POOL_SIZE", 8),
		MatchTimeLimit: getEnvAsSeconds("MATCH_TIME_LIMIT_SECONDS", 900),

		ProblemSource:      strings.ToLower(getEnv("PROBLEM_SOURCE", ProblemSourceDB)),
		ProblemCatalogPath: getEnv("PROBLEM_CATALOG_PATH", ""),

		PairingRetryAttempts: getEnvAsInt("PAIRING_RETRY_ATTEMPTS", 3),
		PairingRetryBackoff:  time.Duration(getEnvAsInt("PAIRING_RETRY_BACKOFF_MS", 200)) * time.Millisecond,

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode

	if AppConfig.WorkerPoolSize <= 0 {
		AppConfig.WorkerPoolSize = 1
	}
	if AppConfig.PairingRetryAttempts <= 0 {
		AppConfig.PairingRetryAttempts = 1
	}
	return AppConfig
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback)) * time.Second
}
