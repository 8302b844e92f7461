package models

import (
	"time"

	"github.com/Triple-C-BE/wimood/internal/domain/fulfillment"
)

// TrackedOrderModel is the persistence model for fulfillment.TrackedOrder
type TrackedOrderModel struct {
	ID                string    `gorm:"type:varchar(64);primaryKey"`
	OrderNumber       string    `gorm:"type:varchar(64);not null"`
	FulfillmentStatus string    `gorm:"type:varchar(20);not null;index"`
	TrackingNumber    string    `gorm:"type:varchar(128)"`
	TrackingURL       string    `gorm:"type:text"`
	DropshipSubmitted bool      `gorm:"not null;default:false"`
	WimoodOrderID     int64     `gorm:"column:wimood_order_id;not null;default:0"`
	WimoodStatus      string    `gorm:"column:wimood_status;type:varchar(32);not null;default:''"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
	LastCheckedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TrackedOrderModel) TableName() string {
	return "tracked_orders"
}

// ToDomain converts the model to a domain order
func (m *TrackedOrderModel) ToDomain() *fulfillment.TrackedOrder {
	status, ok := fulfillment.ParseStatus(m.FulfillmentStatus)
	if !ok {
		status = fulfillment.Status(m.FulfillmentStatus)
	}
	return &fulfillment.TrackedOrder{
		ID:                m.ID,
		OrderNumber:       m.OrderNumber,
		Status:            status,
		TrackingNumber:    m.TrackingNumber,
		TrackingURL:       m.TrackingURL,
		DropshipSubmitted: m.DropshipSubmitted,
		SupplierOrderID:   m.WimoodOrderID,
		SupplierStatus:    fulfillment.SupplierStatus(m.WimoodStatus),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		LastCheckedAt:     m.LastCheckedAt,
	}
}

// TrackedOrderModelFromDomain converts a domain order to its model
func TrackedOrderModelFromDomain(o *fulfillment.TrackedOrder) *TrackedOrderModel {
	return &TrackedOrderModel{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		FulfillmentStatus: o.Status.String(),
		TrackingNumber:    o.TrackingNumber,
		TrackingURL:       o.TrackingURL,
		DropshipSubmitted: o.DropshipSubmitted,
		WimoodOrderID:     o.SupplierOrderID,
		WimoodStatus:      o.SupplierStatus.String(),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		LastCheckedAt:     o.LastCheckedAt,
	}
}
