package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Triple-C-BE/wimood/internal/domain/fulfillment"
)

func TestGormTrackedOrderRepository_InsertIfAbsent(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormTrackedOrderRepository(db.DB)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	inserted, err := repo.InsertIfAbsent(ctx, fulfillment.NewTrackedOrder("1001", "#1001", now))
	require.NoError(t, err)
	assert.True(t, inserted)

	again := fulfillment.NewTrackedOrder("1001", "#changed", now.Add(time.Hour))
	inserted, err = repo.InsertIfAbsent(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)

	stored, err := repo.FindByID(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "#1001", stored.OrderNumber)
	assert.Equal(t, fulfillment.StatusUnfulfilled, stored.Status)
	assert.True(t, now.Equal(stored.CreatedAt))

	_, err = repo.InsertIfAbsent(ctx, &fulfillment.TrackedOrder{})
	assert.ErrorIs(t, err, fulfillment.ErrInvalidOrder)
}

func TestGormTrackedOrderRepository_Save(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormTrackedOrderRepository(db.DB)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	order := fulfillment.NewTrackedOrder("1001", "#1001", now)
	_, err := repo.InsertIfAbsent(ctx, order)
	require.NoError(t, err)

	later := now.Add(15 * time.Minute)
	outcome := order.ApplyObservation(fulfillment.Observation{
		Status:         fulfillment.StatusFulfilled,
		TrackingNumber: "3SABC123",
		TrackingURL:    "https://track.example/3SABC123",
	}, later)
	require.True(t, outcome.Changed())
	require.NoError(t, repo.Save(ctx, order))

	stored, err := repo.FindByID(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, fulfillment.StatusFulfilled, stored.Status)
	assert.Equal(t, "3SABC123", stored.TrackingNumber)
	assert.Equal(t, "https://track.example/3SABC123", stored.TrackingURL)
	assert.True(t, later.Equal(stored.LastCheckedAt))

	err = repo.Save(ctx, fulfillment.NewTrackedOrder("missing", "#0", now))
	assert.ErrorIs(t, err, fulfillment.ErrOrderNotFound)
}

func TestGormTrackedOrderRepository_FindByIDNotFound(t *testing.T) {
	repo := NewGormTrackedOrderRepository(newTestDatabase(t).DB)

	_, err := repo.FindByID(context.Background(), "nope")

	assert.ErrorIs(t, err, fulfillment.ErrOrderNotFound)
}

func TestGormTrackedOrderRepository_FindPollableAndCount(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormTrackedOrderRepository(db.DB)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	statuses := map[string]fulfillment.Status{
		"1": fulfillment.StatusUnfulfilled,
		"2": fulfillment.StatusPartial,
		"3": fulfillment.StatusFulfilled,
		"4": fulfillment.StatusCancelled,
		"5": fulfillment.StatusUnfulfilled,
	}
	for i, id := range []string{"1", "2", "3", "4", "5"} {
		order := fulfillment.NewTrackedOrder(id, "#"+id, base.Add(time.Duration(i)*time.Minute))
		order.Status = statuses[id]
		_, err := repo.InsertIfAbsent(ctx, order)
		require.NoError(t, err)
	}

	open, err := repo.FindPollable(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "5"}, orderIDs(open))

	// The fulfilled order has no tracking yet and is inside the window.
	open, err = repo.FindPollable(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "5"}, orderIDs(open))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[fulfillment.Status]int64{
		fulfillment.StatusUnfulfilled: 2,
		fulfillment.StatusPartial:     1,
		fulfillment.StatusFulfilled:   1,
		fulfillment.StatusCancelled:   1,
	}, counts)
}

func TestGormTrackedOrderRepository_FindPollableSkipsTrackedFulfillments(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormTrackedOrderRepository(db.DB)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	order := fulfillment.NewTrackedOrder("1", "#1", now)
	_, err := repo.InsertIfAbsent(ctx, order)
	require.NoError(t, err)
	order.ApplyObservation(fulfillment.Observation{Status: fulfillment.StatusFulfilled, TrackingNumber: "3S1"}, now)
	require.NoError(t, repo.Save(ctx, order))

	open, err := repo.FindPollable(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestGormTrackedOrderRepository_DropshipState(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormTrackedOrderRepository(db.DB)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	orders := map[string]*fulfillment.TrackedOrder{}
	for i, id := range []string{"new", "no-items", "pending", "delivered", "cancelled", "closed"} {
		o := fulfillment.NewTrackedOrder(id, "#"+id, now.Add(time.Duration(i)*time.Minute))
		_, err := repo.InsertIfAbsent(ctx, o)
		require.NoError(t, err)
		orders[id] = o
	}

	orders["no-items"].MarkSubmitted(0, now)
	orders["pending"].MarkSubmitted(501, now)
	orders["pending"].AcknowledgeSupplierStatus(fulfillment.SupplierPending, now)
	orders["delivered"].MarkSubmitted(502, now)
	orders["delivered"].AcknowledgeSupplierStatus(fulfillment.SupplierDelivered, now)
	orders["cancelled"].MarkSubmitted(503, now)
	orders["cancelled"].ApplyObservation(fulfillment.Observation{Status: fulfillment.StatusCancelled}, now)
	orders["closed"].ApplyObservation(fulfillment.Observation{Status: fulfillment.StatusFulfilled}, now)
	for _, o := range orders {
		require.NoError(t, repo.Save(ctx, o))
	}

	stored, err := repo.FindByID(ctx, "pending")
	require.NoError(t, err)
	assert.True(t, stored.DropshipSubmitted)
	assert.Equal(t, int64(501), stored.SupplierOrderID)
	assert.Equal(t, fulfillment.SupplierPending, stored.SupplierStatus)

	open, err := repo.FindDropshipOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "pending"}, orderIDs(open))
}

func orderIDs(orders []*fulfillment.TrackedOrder) []string {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}

func TestGormTrackedOrderRepository_InsertIfAbsentSQL(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormTrackedOrderRepository(db.DB)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "tracked_orders"`) + `.*` +
		regexp.QuoteMeta(`ON CONFLICT ("id") DO NOTHING`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.InsertIfAbsent(context.Background(), fulfillment.NewTrackedOrder("1001", "#1001", time.Now()))

	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
