package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), logs
}

func sqlFunc(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_LogModeClones(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info)
	warn := gl.LogMode(gormlogger.Warn)

	assert.Equal(t, gormlogger.Info, gl.logLevel)
	assert.Equal(t, gormlogger.Warn, warn.(*GormLogger).logLevel)
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := WithActorID(WithRequestID(context.Background(), "req-9"), "job:ledger-reconcile")
	const stmt = `SELECT * FROM "inventory_positions" WHERE warehouse_id = 'wh-1' FOR UPDATE`

	t.Run("query at info level logs debug entry", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Info)
		gl.Trace(ctx, time.Now(), sqlFunc(stmt, 1), nil)

		entries := logs.FilterMessage("SQL query").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
		assert.Equal(t, "gorm", entries[0].LoggerName)
		fields := entries[0].ContextMap()
		assert.Equal(t, stmt, fields["sql"])
		assert.EqualValues(t, 1, fields["rows"])
		assert.Equal(t, "req-9", fields["request_id"])
		assert.Equal(t, "job:ledger-reconcile", fields["actor_id"])
	})

	t.Run("slow statement warns", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(10*time.Millisecond))
		gl.Trace(ctx, time.Now().Add(-time.Second), sqlFunc(stmt, 1), nil)

		entries := logs.FilterMessage("Slow SQL").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	})

	t.Run("zero threshold disables slow warnings", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(0))
		gl.Trace(ctx, time.Now().Add(-time.Second), sqlFunc(stmt, 1), nil)
		assert.Zero(t, logs.Len())
	})

	t.Run("errors log at error level", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Error)
		gl.Trace(ctx, time.Now(), sqlFunc(stmt, 0), errors.New("canceling statement due to lock timeout"))

		entries := logs.FilterMessage("SQL error").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "canceling statement due to lock timeout", entries[0].ContextMap()["error"])
	})

	t.Run("record not found ignored by default", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Error)
		gl.Trace(ctx, time.Now(), sqlFunc(stmt, 0), gormlogger.ErrRecordNotFound)
		assert.Zero(t, logs.Len())

		gl, logs = newObservedGormLogger(gormlogger.Error, WithIgnoreRecordNotFoundError(false))
		gl.Trace(ctx, time.Now(), sqlFunc(stmt, 0), gormlogger.ErrRecordNotFound)
		assert.Equal(t, 1, logs.Len())
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Silent)
		gl.Trace(ctx, time.Now(), sqlFunc(stmt, 1), errors.New("boom"))
		assert.Zero(t, logs.Len())
	})
}

func TestGormLogger_Messages(t *testing.T) {
	gl, logs := newObservedGormLogger(gormlogger.Warn)
	ctx := context.Background()

	gl.Info(ctx, "migrated %d tables", 7)
	gl.Warn(ctx, "replica lag %s", "2s")
	gl.Error(ctx, "connection reset")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "replica lag 2s", logs.All()[0].Message)
	assert.Equal(t, "connection reset", logs.All()[1].Message)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}
