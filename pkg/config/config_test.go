package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg := FromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 0.5, cfg.Grading.ExamWeight)
	assert.Equal(t, 0.3, cfg.Grading.QuizWeight)
	assert.Equal(t, 0.2, cfg.Grading.HomeworkWeight)
	assert.Equal(t, 70.0, cfg.Grading.PassThreshold)
	assert.Equal(t, "strict", cfg.Grading.OverallComparison)
	assert.Equal(t, "inclusive", cfg.Grading.ClassComparison)
	assert.Equal(t, "error", cfg.Validation.Action)
	assert.Equal(t, int64(300), cfg.Validation.ClassIDMax)
	assert.Equal(t, 10*time.Minute, cfg.Analytics.CacheTTL)
	assert.Nil(t, cfg.Events.KafkaBrokers)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("DB_DRIVER", "SQLite")
	v.Set("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	v.Set("ANALYTICS_CACHE_TTL", "not-a-duration")
	v.Set("RECORD_VALIDATION_ACTION", "WARN")

	cfg := FromViper(v)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, 10*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, "warn", cfg.Validation.Action)
}
