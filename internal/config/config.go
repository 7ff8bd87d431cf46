// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Storage backends
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Config holds process configuration
type Config struct {
	DataDir     string `validate:"required"` // Base directory for local stores (always absolute)
	AnalysisDir string `validate:"required"` // Directory holding analysis YAML files
	WorkerID    string `validate:"required"` // Identity matched by block assignment rules
	LogLevel    string `validate:"oneof=trace debug info warn error"`
	MaxParallel int    `validate:"min=1"`
	StatusPort  int    `validate:"min=0,max=65535"`

	LogPretty bool
	Timeout   time.Duration // Zero disables the deadline
	Storage   StorageConfig
}

// StorageConfig selects and configures the record store
type StorageConfig struct {
	Backend      string `validate:"oneof=sqlite file badger s3 memory"`
	SQLiteDriver string `validate:"oneof=sqlite sqlite3"`
	S3           S3Config
}

// S3Config holds the remote object store settings (AWS S3 or a compatible
// service such as Cloudflare R2 or MinIO)
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Configured reports whether enough settings are present to reach a bucket.
func (c S3Config) Configured() bool {
	return c.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := ensureDir(getEnv("LOTTOSCAN_DATA_DIR", "data"))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}

	analysisDir, err := filepath.Abs(getEnv("ANALYSIS_DIR", "analyses"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve analysis directory path: %w", err)
	}

	cfg := &Config{
		DataDir:     dataDir,
		AnalysisDir: analysisDir,
		WorkerID:    getEnv("WORKER_ID", hostname()),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogPretty:   getEnvAsBool("LOG_PRETTY", false),
		MaxParallel: getEnvAsInt("TASKS_MAX_PARALLEL", DefaultMaxParallel()),
		Timeout:     time.Duration(getEnvAsInt("TIMEOUT", 0)) * time.Second,
		StatusPort:  getEnvAsInt("STATUS_PORT", 0),
		Storage: StorageConfig{
			Backend:      strings.ToLower(getEnv("STORAGE_BACKEND", BackendSQLite)),
			SQLiteDriver: getEnv("SQLITE_DRIVER", "sqlite"),
			S3: S3Config{
				Bucket:          getEnv("S3_BUCKET", ""),
				Prefix:          getEnv("S3_PREFIX", "integral-system-stats"),
				Region:          getEnv("S3_REGION", "auto"),
				Endpoint:        getEnv("S3_ENDPOINT", ""),
				AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DefaultMaxParallel returns half the logical CPUs minus one, at least 1.
func DefaultMaxParallel() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return 1
	}
	if p := n/2 - 1; p > 1 {
		return p
	}
	return 1
}

func ensureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", abs, err)
	}
	return abs, nil
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "local"
	}
	return name
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
