package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedPosition struct {
	ID       uint `gorm:"primaryKey"`
	Reserved int64
}

func setupTracedDB(t *testing.T, cfg DBTracingConfig) (*gorm.DB, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := NewTracerProviderWithExporter(config.TelemetryConfig{SamplingRatio: 1}, exporter, nil)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedPosition{}))
	require.NoError(t, RegisterDBTracing(db, cfg, nil))
	exporter.Reset()
	return db, exporter
}

func spanAttr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestDBTracingConfigFrom(t *testing.T) {
	cfg := DBTracingConfigFrom(config.TelemetryConfig{DBTraceEnabled: true})
	assert.False(t, cfg.Enabled, "requires telemetry to be enabled")
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)

	cfg = DBTracingConfigFrom(config.TelemetryConfig{Enabled: true, DBTraceEnabled: true, DBSlowQueryThresh: time.Second})
	assert.True(t, cfg.Enabled)
	assert.Equal(t, time.Second, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db, exporter := setupTracedDB(t, DBTracingConfig{Enabled: false})

	require.NoError(t, db.Create(&tracedPosition{Reserved: 1}).Error)
	assert.Empty(t, exporter.GetSpans())
}

func TestRegisterDBTracing_AnnotatesSpans(t *testing.T) {
	db, exporter := setupTracedDB(t, DBTracingConfig{Enabled: true, SlowQueryThresh: time.Hour, DBSystem: "sqlite"})
	ctx := context.Background()

	require.NoError(t, db.WithContext(ctx).Create(&tracedPosition{Reserved: 2}).Error)
	var missing tracedPosition
	err := db.WithContext(ctx).First(&missing, 999).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	spans := exporter.GetSpans()
	require.GreaterOrEqual(t, len(spans), 2)

	rows, ok := spanAttr(spans[0].Attributes, "db.rows_affected")
	require.True(t, ok)
	assert.Equal(t, int64(1), rows.AsInt64())
	_, slow := spanAttr(spans[0].Attributes, "db.slow_query")
	assert.False(t, slow)

	assert.NotEqual(t, codes.Error, spans[len(spans)-1].Status.Code, "not found is not a span error")
}

func TestRegisterDBTracing_FlagsSlowQueries(t *testing.T) {
	db, exporter := setupTracedDB(t, DBTracingConfig{Enabled: true, SlowQueryThresh: -time.Nanosecond, DBSystem: "sqlite"})

	require.NoError(t, db.WithContext(context.Background()).Create(&tracedPosition{Reserved: 3}).Error)

	spans := exporter.GetSpans()
	require.NotEmpty(t, spans)
	slow, ok := spanAttr(spans[0].Attributes, "db.slow_query")
	require.True(t, ok)
	assert.True(t, slow.AsBool())
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "slow_query_warning", spans[0].Events[0].Name)
}
