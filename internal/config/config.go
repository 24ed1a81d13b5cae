// backend-go/internal/config/config.go
package config

import (
	"log"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Drive    DriveConfig
	Forecast ForecastConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	LogLevel       string
	LogJSON        bool
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AppConfig struct {
	UploadDir string
	DataDir   string
}

type CacheConfig struct {
	Enabled            bool
	RedisURL           string
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	AnalysisTTLSeconds int
	// Dashboards and simulations are cheaper to rebuild and expire sooner.
	DashboardTTLSeconds  int
	SimulationTTLSeconds int
}

// StorageConfig points at an S3-compatible bucket holding source files and exports.
type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
}

// PipelineConfig controls batch ingestion runs. InboxDir is the local source;
// S3Prefix selects source files in the storage bucket.
type PipelineConfig struct {
	Workers       int
	BatchSize     int
	BatchRows     int
	RetryAttempts int
	InboxDir      string
	S3Prefix      string
}

// ForecastConfig carries the per-run defaults for the reorder engine.
type ForecastConfig struct {
	LeadTimeDays          int
	SafetyStockDays       int
	SeasonalPeriodDays    int
	ProjectionHorizonDays int
	Workers               int
	FitTimeoutMs          int
}

// Params converts the configured defaults into analysis parameters.
func (f ForecastConfig) Params() domain.AnalysisParams {
	return domain.AnalysisParams{
		LeadTimeDays:       f.LeadTimeDays,
		SafetyStockDays:    f.SafetyStockDays,
		SeasonalPeriodDays: f.SeasonalPeriodDays,
	}
}

func (f ForecastConfig) FitTimeout() time.Duration {
	return time.Duration(f.FitTimeoutMs) * time.Millisecond
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults()

		// Read from environment variables
		viper.AutomaticEnv()

		// Ensure upload and data directories exist
		ensureDir(viper.GetString("APP_UPLOAD_DIR"))
		ensureDir(viper.GetString("APP_DATA_DIR"))

		instance = fromViper()
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_JSON", false)
	viper.SetDefault("SERVER_READ_TIMEOUT", 30)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "stockzero")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
	viper.SetDefault("APP_DATA_DIR", "./data/output")
	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_ANALYSIS_TTL_SECONDS", 300)
	viper.SetDefault("CACHE_DASHBOARD_TTL_SECONDS", 120)
	viper.SetDefault("CACHE_SIMULATION_TTL_SECONDS", 60)
	viper.SetDefault("STORAGE_ENABLED", false)
	viper.SetDefault("STORAGE_REGION", "us-east-1")
	viper.SetDefault("STORAGE_USE_SSL", true)
	viper.SetDefault("LEAD_TIME_DAYS", domain.DefaultLeadTimeDays)
	viper.SetDefault("SAFETY_STOCK_DAYS", domain.DefaultSafetyStockDays)
	viper.SetDefault("SEASONAL_PERIOD_DAYS", domain.DefaultSeasonalPeriodDays)
	viper.SetDefault("PROJECTION_HORIZON_DAYS", domain.DefaultProjectionHorizonDays)
	viper.SetDefault("ANALYSIS_WORKERS", runtime.NumCPU())
	viper.SetDefault("FORECAST_FIT_TIMEOUT_MS", 2000)
	viper.SetDefault("PIPELINE_WORKERS", 4)
	viper.SetDefault("PIPELINE_BATCH_SIZE", 5)
	viper.SetDefault("PIPELINE_BATCH_ROWS", 50000)
	viper.SetDefault("PIPELINE_RETRY_ATTEMPTS", 3)
	viper.SetDefault("PIPELINE_INBOX_DIR", "./data/inbox")
	viper.SetDefault("PIPELINE_S3_PREFIX", "imports/")
}

func fromViper() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Mode:           viper.GetString("SERVER_MODE"),
			LogLevel:       viper.GetString("LOG_LEVEL"),
			LogJSON:        viper.GetBool("LOG_JSON"),
			ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		App: AppConfig{
			UploadDir: viper.GetString("APP_UPLOAD_DIR"),
			DataDir:   viper.GetString("APP_DATA_DIR"),
		},
		Cache: CacheConfig{
			Enabled:            viper.GetBool("CACHE_ENABLED"),
			RedisURL:           viper.GetString("REDIS_URL"),
			RedisHost:          viper.GetString("REDIS_HOST"),
			RedisPort:          viper.GetString("REDIS_PORT"),
			RedisPassword:      viper.GetString("REDIS_PASSWORD"),
			RedisDB:            viper.GetInt("REDIS_DB"),
			AnalysisTTLSeconds: viper.GetInt("CACHE_ANALYSIS_TTL_SECONDS"),

			DashboardTTLSeconds:  viper.GetInt("CACHE_DASHBOARD_TTL_SECONDS"),
			SimulationTTLSeconds: viper.GetInt("CACHE_SIMULATION_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Enabled:   viper.GetBool("STORAGE_ENABLED"),
			Endpoint:  viper.GetString("STORAGE_ENDPOINT"),
			AccessKey: viper.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: viper.GetString("STORAGE_SECRET_KEY"),
			Bucket:    viper.GetString("STORAGE_BUCKET"),
			Region:    viper.GetString("STORAGE_REGION"),
			UseSSL:    viper.GetBool("STORAGE_USE_SSL"),
		},
		Drive: DriveConfig{
			CredentialsJSON: viper.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			FolderID:        viper.GetString("DRIVE_FOLDER_ID"),
		},
		Forecast: ForecastConfig{
			LeadTimeDays:          viper.GetInt("LEAD_TIME_DAYS"),
			SafetyStockDays:       viper.GetInt("SAFETY_STOCK_DAYS"),
			SeasonalPeriodDays:    viper.GetInt("SEASONAL_PERIOD_DAYS"),
			ProjectionHorizonDays: viper.GetInt("PROJECTION_HORIZON_DAYS"),
			Workers:               viper.GetInt("ANALYSIS_WORKERS"),
			FitTimeoutMs:          viper.GetInt("FORECAST_FIT_TIMEOUT_MS"),
		},
		Pipeline: PipelineConfig{
			Workers:       viper.GetInt("PIPELINE_WORKERS"),
			BatchSize:     viper.GetInt("PIPELINE_BATCH_SIZE"),
			BatchRows:     viper.GetInt("PIPELINE_BATCH_ROWS"),
			RetryAttempts: viper.GetInt("PIPELINE_RETRY_ATTEMPTS"),
			InboxDir:      viper.GetString("PIPELINE_INBOX_DIR"),
			S3Prefix:      viper.GetString("PIPELINE_S3_PREFIX"),
		},
	}
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
