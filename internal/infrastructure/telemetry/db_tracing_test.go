package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Triple-C-BE/wimood/internal/infrastructure/telemetry"
)

func openMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db := openMemoryDB(t)
	plugin := telemetry.NewDBTracingPlugin(telemetry.DefaultDBTracingConfig(), zaptest.NewLogger(t))

	require.NoError(t, plugin.Register(db))
	assert.Nil(t, db.Callback().Query().Get("otel_timing:after_query"))
}

func TestDBTracingPlugin_RecordsQuerySpans(t *testing.T) {
	recorder := installRecorder(t)
	db := openMemoryDB(t)

	cfg := telemetry.DefaultDBTracingConfig()
	cfg.Enabled = true
	plugin := telemetry.NewDBTracingPlugin(cfg, zaptest.NewLogger(t))
	require.NoError(t, plugin.Register(db))
	assert.NotNil(t, db.Callback().Query().Get("otel_timing:after_query"))

	var one int
	require.NoError(t, db.WithContext(context.Background()).Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)

	assert.NotEmpty(t, recorder.Ended())
}
