package config

import (
	"testing"
	"time"

	"github.com/andresuchdata/stockzero/backend-go/internal/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func loadFresh(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults()
	viper.AutomaticEnv()
	return fromViper()
}

func TestDefaults(t *testing.T) {
	cfg := loadFresh(t)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "stockzero", cfg.Database.DBName)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 300, cfg.Cache.AnalysisTTLSeconds)
	assert.Equal(t, 120, cfg.Cache.DashboardTTLSeconds)
	assert.Equal(t, 60, cfg.Cache.SimulationTTLSeconds)
	assert.Equal(t, domain.DefaultAnalysisParams(), cfg.Forecast.Params())
	assert.Equal(t, domain.DefaultProjectionHorizonDays, cfg.Forecast.ProjectionHorizonDays)
	assert.Equal(t, 2*time.Second, cfg.Forecast.FitTimeout())
	assert.Positive(t, cfg.Forecast.Workers)
	assert.Equal(t, 3, cfg.Pipeline.RetryAttempts)
	assert.Equal(t, "imports/", cfg.Pipeline.S3Prefix)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("LEAD_TIME_DAYS", "10")
	t.Setenv("SAFETY_STOCK_DAYS", "0")
	t.Setenv("SEASONAL_PERIOD_DAYS", "14")
	t.Setenv("FORECAST_FIT_TIMEOUT_MS", "250")
	t.Setenv("STORAGE_ENABLED", "true")
	t.Setenv("STORAGE_BUCKET", "stock-files")
	t.Setenv("LOG_JSON", "true")
	t.Setenv("PIPELINE_WORKERS", "8")

	cfg := loadFresh(t)

	assert.Equal(t, domain.AnalysisParams{LeadTimeDays: 10, SafetyStockDays: 0, SeasonalPeriodDays: 14}, cfg.Forecast.Params())
	assert.Equal(t, 250*time.Millisecond, cfg.Forecast.FitTimeout())
	assert.True(t, cfg.Storage.Enabled)
	assert.Equal(t, "stock-files", cfg.Storage.Bucket)
	assert.True(t, cfg.Server.LogJSON)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
}
