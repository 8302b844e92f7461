package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Triple-C-BE/wimood/internal/domain/fulfillment"
	"github.com/Triple-C-BE/wimood/internal/domain/integration"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func finishedRun(kind integration.SyncKind, start time.Time, d time.Duration) *integration.SyncRun {
	run := integration.NewSyncRun(kind, start)
	run.Counters.Created = 3
	run.Finish(start.Add(d), nil)
	return run
}

func TestStatusStore_Snapshot(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	store := NewStatusStore(clock.Now)

	snap := store.Snapshot()
	assert.False(t, snap.Running)
	assert.Nil(t, snap.LastProductSync)
	assert.Nil(t, snap.LastOrderSync)
	assert.Zero(t, snap.UptimeSeconds)
	assert.Nil(t, snap.OrdersByStatus)

	store.SetRunning(true)
	store.UpdateStatus(finishedRun(integration.SyncKindProducts, clock.now, 1500*time.Millisecond))
	store.SetNextRun(integration.SyncKindProducts, clock.now.Add(time.Hour))
	store.SetNextRun(integration.SyncKindOrders, clock.now.Add(-time.Minute))
	store.SetOrderCounts(map[fulfillment.Status]int64{
		fulfillment.StatusUnfulfilled: 4,
		fulfillment.StatusFulfilled:   9,
	})
	clock.Advance(90*time.Second + 240*time.Millisecond)

	snap = store.Snapshot()
	assert.True(t, snap.Running)
	assert.Equal(t, 90.2, snap.UptimeSeconds)
	require.NotNil(t, snap.LastProductSync)
	assert.Equal(t, integration.SyncStatusSucceeded, snap.LastProductSync.Status)
	assert.Equal(t, 1.5, snap.LastProductSync.DurationSeconds)
	assert.Equal(t, 3, snap.LastProductSync.Results.Created)
	assert.Nil(t, snap.LastOrderSync)
	assert.Equal(t, float64(3510), snap.NextProductSyncInSeconds)
	assert.Zero(t, snap.NextOrderSyncInSeconds, "past deadlines report zero")
	assert.Equal(t, map[string]int64{"unfulfilled": 4, "fulfilled": 9}, snap.OrdersByStatus)
}

func TestStatusStore_UpdateStatusCopiesRun(t *testing.T) {
	store := NewStatusStore(nil)
	run := integration.NewSyncRun(integration.SyncKindOrders, time.Now())
	run.RecordFailure("5001", OpPoll, errors.New("boom"))
	run.Finish(time.Now(), nil)

	store.UpdateStatus(run)
	run.Counters.Failed = 99
	run.Failures[0].Key = "mutated"

	snap := store.Snapshot()
	require.NotNil(t, snap.LastOrderSync)
	assert.Equal(t, integration.SyncStatusPartial, snap.LastOrderSync.Status)
	assert.Equal(t, 1, snap.LastOrderSync.Results.Failed)
	assert.Equal(t, "5001", snap.LastOrderSync.Failures[0].Key)

	store.UpdateStatus(nil)
	assert.NotNil(t, store.Snapshot().LastOrderSync)
}

func TestStatusStore_SetOrderCountsCopiesMap(t *testing.T) {
	store := NewStatusStore(nil)
	counts := map[fulfillment.Status]int64{fulfillment.StatusPartial: 1}
	store.SetOrderCounts(counts)
	counts[fulfillment.StatusPartial] = 50

	assert.Equal(t, int64(1), store.Snapshot().OrdersByStatus["partial"])
}

func TestStatusStore_Restore(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

	t.Run("loads the latest finished run per kind", func(t *testing.T) {
		runs := new(MockSyncRunRepository)
		runs.On("Latest", mock.Anything, integration.SyncKindProducts).
			Return(finishedRun(integration.SyncKindProducts, start, time.Minute), nil)
		runs.On("Latest", mock.Anything, integration.SyncKindOrders).
			Return(nil, integration.ErrSyncRunNotFound)

		store := NewStatusStore(nil)
		require.NoError(t, store.Restore(ctx, runs))

		snap := store.Snapshot()
		require.NotNil(t, snap.LastProductSync)
		assert.Equal(t, start, snap.LastProductSync.StartedAt)
		assert.Nil(t, snap.LastOrderSync)
		runs.AssertExpectations(t)
	})

	t.Run("unfinished runs are not shown", func(t *testing.T) {
		runs := new(MockSyncRunRepository)
		runs.On("Latest", mock.Anything, integration.SyncKindProducts).
			Return(integration.NewSyncRun(integration.SyncKindProducts, start), nil)
		runs.On("Latest", mock.Anything, integration.SyncKindOrders).
			Return(nil, integration.ErrSyncRunNotFound)

		store := NewStatusStore(nil)
		require.NoError(t, store.Restore(ctx, runs))
		assert.Nil(t, store.Snapshot().LastProductSync)
	})

	t.Run("repository errors are returned", func(t *testing.T) {
		runs := new(MockSyncRunRepository)
		runs.On("Latest", mock.Anything, integration.SyncKindProducts).
			Return(nil, errors.New("database is locked"))

		store := NewStatusStore(nil)
		assert.Error(t, store.Restore(ctx, runs))
	})
}
