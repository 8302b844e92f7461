//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Triple-C-BE/wimood/internal/domain/fulfillment"
	"github.com/Triple-C-BE/wimood/internal/domain/integration"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/persistence"
)

func TestMain(m *testing.M) {
	code := m.Run()
	CleanupSharedContainer()
	os.Exit(code)
}

func TestTrackedOrderRepository_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewSharedTestDB(t)
	testDB.CleanTables()
	repo := persistence.NewGormTrackedOrderRepository(testDB.DB)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("insert if absent keeps the first row", func(t *testing.T) {
		inserted, err := repo.InsertIfAbsent(ctx, fulfillment.NewTrackedOrder("5001", "#5001", now))
		require.NoError(t, err)
		assert.True(t, inserted)

		again := fulfillment.NewTrackedOrder("5001", "#changed", now.Add(time.Hour))
		inserted, err = repo.InsertIfAbsent(ctx, again)
		require.NoError(t, err)
		assert.False(t, inserted)

		stored, err := repo.FindByID(ctx, "5001")
		require.NoError(t, err)
		assert.Equal(t, "#5001", stored.OrderNumber)
		assert.Equal(t, fulfillment.StatusUnfulfilled, stored.Status)
	})

	t.Run("forward transition and tracking survive reload", func(t *testing.T) {
		order, err := repo.FindByID(ctx, "5001")
		require.NoError(t, err)

		out := order.ApplyObservation(fulfillment.Observation{
			Status:         fulfillment.StatusFulfilled,
			TrackingNumber: "3SXYZ987",
		}, now.Add(time.Minute))
		require.True(t, out.Transitioned)
		require.NoError(t, repo.Save(ctx, order))

		reloaded, err := repo.FindByID(ctx, "5001")
		require.NoError(t, err)
		assert.Equal(t, fulfillment.StatusFulfilled, reloaded.Status)
		assert.Equal(t, "3SXYZ987", reloaded.TrackingNumber)
	})

	t.Run("pollable orders only", func(t *testing.T) {
		_, err := repo.InsertIfAbsent(ctx, fulfillment.NewTrackedOrder("5002", "#5002", now))
		require.NoError(t, err)

		open, err := repo.FindPollable(ctx, now.Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, "5002", open[0].ID)

		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[fulfillment.StatusFulfilled])
		assert.Equal(t, int64(1), counts[fulfillment.StatusUnfulfilled])
	})

	t.Run("dropship state round trip", func(t *testing.T) {
		order, err := repo.FindByID(ctx, "5002")
		require.NoError(t, err)
		order.MarkSubmitted(8001, now)
		order.AcknowledgeSupplierStatus(fulfillment.SupplierPending, now)
		require.NoError(t, repo.Save(ctx, order))

		open, err := repo.FindDropshipOpen(ctx)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, int64(8001), open[0].SupplierOrderID)
		assert.Equal(t, fulfillment.SupplierPending, open[0].SupplierStatus)
	})

	t.Run("status constraint rejects unknown values", func(t *testing.T) {
		err := testDB.DB.Exec(
			`INSERT INTO tracked_orders (id, order_number, fulfillment_status, created_at, updated_at, last_checked_at)
			 VALUES ('bad', '#bad', 'lost', NOW(), NOW(), NOW())`).Error
		assert.Error(t, err)
	})

	t.Run("save of unknown order", func(t *testing.T) {
		err := repo.Save(ctx, fulfillment.NewTrackedOrder("missing", "#0", now))
		assert.True(t, errors.Is(err, fulfillment.ErrOrderNotFound))
	})
}

func TestSyncRunRepository_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewSharedTestDB(t)
	testDB.CleanTables()
	repo := persistence.NewGormSyncRunRepository(testDB.DB)
	ctx := context.Background()
	start := time.Now().UTC().Truncate(time.Second)

	older := integration.NewSyncRun(integration.SyncKindProducts, start)
	older.Counters.Created = 3
	older.Finish(start.Add(time.Minute), nil)
	require.NoError(t, repo.Save(ctx, older))

	newer := integration.NewSyncRun(integration.SyncKindProducts, start.Add(time.Hour))
	newer.RecordFailure("SKU-1", "update", errors.New("503"))
	newer.Finish(start.Add(time.Hour+time.Minute), nil)
	require.NoError(t, repo.Save(ctx, newer))

	latest, err := repo.Latest(ctx, integration.SyncKindProducts)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)
	assert.Equal(t, integration.SyncStatusPartial, latest.Status)
	require.Len(t, latest.Failures, 1)
	assert.Equal(t, "SKU-1", latest.Failures[0].Key)

	recent, err := repo.ListRecent(ctx, integration.SyncKindProducts, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 3, recent[1].Counters.Created)

	_, err = repo.Latest(ctx, integration.SyncKindOrders)
	assert.ErrorIs(t, err, integration.ErrSyncRunNotFound)
}
