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

func newObserved(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, recorded := observer.New(level)
	return zap.New(core), recorded
}

func query() (string, int64) {
	return "SELECT * FROM tracked_orders", 1
}

func TestGormLogger_LogMode(t *testing.T) {
	l, _ := newObserved(zapcore.DebugLevel)
	gl := NewGormLogger(l, gormlogger.Info, 0)

	warn, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)

	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, warn.level)
	assert.Equal(t, gormlogger.Info, gl.level)
}

func TestGormLogger_Trace(t *testing.T) {
	t.Run("error carries the tick id", func(t *testing.T) {
		l, recorded := newObserved(zapcore.DebugLevel)
		gl := NewGormLogger(l, gormlogger.Warn, 0)
		ctx, _ := WithTickID(context.Background(), zap.NewNop(), "order_sync", "tick-1")

		gl.Trace(ctx, time.Now(), query, errors.New("disk I/O error"))

		entries := recorded.FilterMessage("SQL error").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "tick-1", entries[0].ContextMap()["tick_id"])
		assert.Equal(t, "SELECT * FROM tracked_orders", entries[0].ContextMap()["sql"])
	})

	t.Run("record not found is not an error", func(t *testing.T) {
		l, recorded := newObserved(zapcore.DebugLevel)
		gl := NewGormLogger(l, gormlogger.Warn, 0)

		gl.Trace(context.Background(), time.Now(), query, gormlogger.ErrRecordNotFound)

		assert.Zero(t, recorded.Len())
	})

	t.Run("slow query warns", func(t *testing.T) {
		l, recorded := newObserved(zapcore.DebugLevel)
		gl := NewGormLogger(l, gormlogger.Warn, time.Millisecond)

		gl.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)

		assert.Equal(t, 1, recorded.FilterMessage("Slow SQL").Len())
	})

	t.Run("statements only at info level", func(t *testing.T) {
		l, recorded := newObserved(zapcore.DebugLevel)

		NewGormLogger(l, gormlogger.Warn, 0).Trace(context.Background(), time.Now(), query, nil)
		assert.Zero(t, recorded.Len())

		NewGormLogger(l, gormlogger.Info, 0).Trace(context.Background(), time.Now(), query, nil)
		assert.Equal(t, 1, recorded.FilterMessage("SQL").Len())
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		l, recorded := newObserved(zapcore.DebugLevel)
		gl := NewGormLogger(l, gormlogger.Silent, 0)

		gl.Trace(context.Background(), time.Now(), query, errors.New("boom"))
		gl.Error(context.Background(), "boom")

		assert.Zero(t, recorded.Len())
	})
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("info"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
}
