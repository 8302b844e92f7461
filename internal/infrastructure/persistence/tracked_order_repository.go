package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Triple-C-BE/wimood/internal/domain/fulfillment"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/persistence/models"
)

// GormTrackedOrderRepository implements fulfillment.Repository using GORM
type GormTrackedOrderRepository struct {
	db *gorm.DB
}

var _ fulfillment.Repository = (*GormTrackedOrderRepository)(nil)

// NewGormTrackedOrderRepository creates a new GormTrackedOrderRepository
func NewGormTrackedOrderRepository(db *gorm.DB) *GormTrackedOrderRepository {
	return &GormTrackedOrderRepository{db: db}
}

// FindByID finds an order by its storefront id
func (r *GormTrackedOrderRepository) FindByID(ctx context.Context, id string) (*fulfillment.TrackedOrder, error) {
	var model models.TrackedOrderModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fulfillment.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// InsertIfAbsent inserts the order unless the id is already stored
func (r *GormTrackedOrderRepository) InsertIfAbsent(ctx context.Context, order *fulfillment.TrackedOrder) (bool, error) {
	if order == nil || order.ID == "" {
		return false, fmt.Errorf("%w: missing id", fulfillment.ErrInvalidOrder)
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(models.TrackedOrderModelFromDomain(order))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Save writes the mutable fields of an existing order
func (r *GormTrackedOrderRepository) Save(ctx context.Context, order *fulfillment.TrackedOrder) error {
	result := r.db.WithContext(ctx).
		Model(&models.TrackedOrderModel{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{
			"fulfillment_status": order.Status.String(),
			"tracking_number":    order.TrackingNumber,
			"tracking_url":       order.TrackingURL,
			"dropship_submitted": order.DropshipSubmitted,
			"wimood_order_id":    order.SupplierOrderID,
			"wimood_status":      order.SupplierStatus.String(),
			"updated_at":         order.UpdatedAt,
			"last_checked_at":    order.LastCheckedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fulfillment.ErrOrderNotFound
	}
	return nil
}

// FindPollable returns non-terminal orders and fulfilled orders still
// waiting for a tracking number since fulfilledSince
func (r *GormTrackedOrderRepository) FindPollable(ctx context.Context, fulfilledSince time.Time) ([]*fulfillment.TrackedOrder, error) {
	statuses := make([]string, 0, 2)
	for _, s := range fulfillment.NonTerminalStatuses() {
		statuses = append(statuses, s.String())
	}

	return r.find(ctx, r.db.WithContext(ctx).
		Where("fulfillment_status IN ?", statuses).
		Or(r.db.Where("fulfillment_status = ?", fulfillment.StatusFulfilled.String()).
			Where("(tracking_number IS NULL OR tracking_number = '')").
			Where("updated_at >= ?", fulfilledSince)))
}

// FindDropshipOpen returns orders not yet submitted to the supplier and
// submitted orders the supplier has not delivered or cancelled
func (r *GormTrackedOrderRepository) FindDropshipOpen(ctx context.Context) ([]*fulfillment.TrackedOrder, error) {
	open := make([]string, 0, 2)
	for _, s := range fulfillment.NonTerminalStatuses() {
		open = append(open, s.String())
	}
	final := []string{fulfillment.SupplierDelivered.String(), fulfillment.SupplierCancelled.String()}

	return r.find(ctx, r.db.WithContext(ctx).
		Where(r.db.Where("dropship_submitted = ?", false).
			Where("fulfillment_status IN ?", open)).
		Or(r.db.Where("dropship_submitted = ?", true).
			Where("wimood_order_id > 0").
			Where("wimood_status NOT IN ?", final).
			Where("fulfillment_status <> ?", fulfillment.StatusCancelled.String())))
}

func (r *GormTrackedOrderRepository) find(ctx context.Context, query *gorm.DB) ([]*fulfillment.TrackedOrder, error) {
	var rows []models.TrackedOrderModel
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	orders := make([]*fulfillment.TrackedOrder, len(rows))
	for i := range rows {
		orders[i] = rows[i].ToDomain()
	}
	return orders, nil
}

// CountByStatus returns the number of stored orders per status
func (r *GormTrackedOrderRepository) CountByStatus(ctx context.Context) (map[fulfillment.Status]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.TrackedOrderModel{}).
		Select("fulfillment_status AS status, COUNT(*) AS total").
		Group("fulfillment_status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[fulfillment.Status]int64, len(rows))
	for _, row := range rows {
		counts[fulfillment.Status(row.Status)] = row.Total
	}
	return counts, nil
}
