package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/domain/integration"
)

var modelLogger = zap.L().Named("persistence.models")

// SyncRunModel is the persistence model for integration.SyncRun
type SyncRunModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Kind            string     `gorm:"type:varchar(20);not null;index:idx_sync_runs_kind_started,priority:1"`
	Status          string     `gorm:"type:varchar(20);not null"`
	StartedAt       time.Time  `gorm:"not null;index:idx_sync_runs_kind_started,priority:2"`
	FinishedAt      *time.Time
	Created         int        `gorm:"not null"`
	Updated         int        `gorm:"not null"`
	Deactivated     int        `gorm:"not null"`
	Unchanged       int        `gorm:"not null"`
	StockUpdated    int        `gorm:"not null"`
	Enriched        int        `gorm:"not null"`
	Skipped         int        `gorm:"not null"`
	Failed          int        `gorm:"not null"`
	Anomalies       int        `gorm:"not null"`
	Ingested        int        `gorm:"not null"`
	Polled          int        `gorm:"not null"`
	Transitions     int        `gorm:"not null"`
	Submitted       int        `gorm:"not null;default:0"`
	SupplierActions int        `gorm:"not null;default:0"`
	FailuresJSON    string     `gorm:"column:failures;type:text"`
	Error           string     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// ToDomain converts the model to a domain run. Unreadable failure details
// are logged and dropped; the counters stay authoritative.
func (m *SyncRunModel) ToDomain() *integration.SyncRun {
	run := &integration.SyncRun{
		ID:         m.ID,
		Kind:       integration.SyncKind(m.Kind),
		Status:     integration.SyncStatus(m.Status),
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		Counters: integration.Counters{
			Created:         m.Created,
			Updated:         m.Updated,
			Deactivated:     m.Deactivated,
			Unchanged:       m.Unchanged,
			StockUpdated:    m.StockUpdated,
			Enriched:        m.Enriched,
			Skipped:         m.Skipped,
			Failed:          m.Failed,
			Anomalies:       m.Anomalies,
			Ingested:        m.Ingested,
			Polled:          m.Polled,
			Transitions:     m.Transitions,
			Submitted:       m.Submitted,
			SupplierActions: m.SupplierActions,
		},
		Error: m.Error,
	}
	if m.FailuresJSON != "" {
		if err := json.Unmarshal([]byte(m.FailuresJSON), &run.Failures); err != nil {
			modelLogger.Warn("Failed to decode sync run failures",
				zap.String("run_id", m.ID.String()),
				zap.Error(err),
			)
			run.Failures = nil
		}
	}
	return run
}

// SyncRunModelFromDomain converts a domain run to its model
func SyncRunModelFromDomain(r *integration.SyncRun) *SyncRunModel {
	m := &SyncRunModel{
		ID:              r.ID,
		Kind:            string(r.Kind),
		Status:          string(r.Status),
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		Created:         r.Counters.Created,
		Updated:         r.Counters.Updated,
		Deactivated:     r.Counters.Deactivated,
		Unchanged:       r.Counters.Unchanged,
		StockUpdated:    r.Counters.StockUpdated,
		Enriched:        r.Counters.Enriched,
		Skipped:         r.Counters.Skipped,
		Failed:          r.Counters.Failed,
		Anomalies:       r.Counters.Anomalies,
		Ingested:        r.Counters.Ingested,
		Polled:          r.Counters.Polled,
		Transitions:     r.Counters.Transitions,
		Submitted:       r.Counters.Submitted,
		SupplierActions: r.Counters.SupplierActions,
		Error:           r.Error,
	}
	if len(r.Failures) > 0 {
		if data, err := json.Marshal(r.Failures); err == nil {
			m.FailuresJSON = string(data)
		}
	}
	return m
}
