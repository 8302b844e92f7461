package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSyncRunNotFound is returned when no run of the requested kind exists
var ErrSyncRunNotFound = errors.New("integration: sync run not found")

// MaxRecordedFailures bounds the failures kept on one run
const MaxRecordedFailures = 100

// SyncKind identifies which ticker produced a run
type SyncKind string

const (
	SyncKindProducts SyncKind = "product_sync"
	SyncKindOrders   SyncKind = "order_sync"
)

// IsValid returns true if the kind is known
func (k SyncKind) IsValid() bool {
	return k == SyncKindProducts || k == SyncKindOrders
}

// SyncStatus is the overall outcome of a run
type SyncStatus string

const (
	SyncStatusRunning SyncStatus = "running"
	// SyncStatusSucceeded: every item was processed
	SyncStatusSucceeded SyncStatus = "succeeded"
	// SyncStatusPartial: the tick completed but some items failed
	SyncStatusPartial SyncStatus = "partial"
	// SyncStatusAborted: the authoritative list could not be fetched
	SyncStatusAborted SyncStatus = "aborted"
)

// Counters are the per-item outcomes of a run. Product and order ticks use
// disjoint subsets.
type Counters struct {
	Created         int `json:"created"`
	Updated         int `json:"updated"`
	Deactivated     int `json:"deactivated"`
	Unchanged       int `json:"unchanged"`
	StockUpdated    int `json:"stock_updated"`
	Enriched        int `json:"enriched"`
	Skipped         int `json:"skipped"`
	Failed          int `json:"failed"`
	Anomalies       int `json:"anomalies"`
	Ingested        int `json:"ingested"`
	Polled          int `json:"polled"`
	Transitions     int `json:"transitions"`
	Submitted       int `json:"submitted"`
	SupplierActions int `json:"supplier_actions"`
}

// ItemFailure is one product or order that could not be synchronized
type ItemFailure struct {
	Key       string `json:"key"`
	Operation string `json:"operation"`
	Error     string `json:"error"`
}

// SyncRun is the record of one tick
type SyncRun struct {
	ID         uuid.UUID
	Kind       SyncKind
	Status     SyncStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	Counters   Counters
	Failures   []ItemFailure
	Error      string
}

// NewSyncRun opens a run
func NewSyncRun(kind SyncKind, now time.Time) *SyncRun {
	return &SyncRun{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    SyncStatusRunning,
		StartedAt: now,
	}
}

// RecordFailure counts a failed item and keeps its details while there is room
func (r *SyncRun) RecordFailure(key, operation string, err error) {
	r.Counters.Failed++
	if len(r.Failures) >= MaxRecordedFailures {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.Failures = append(r.Failures, ItemFailure{Key: key, Operation: operation, Error: msg})
}

// Finish closes the run. A non-nil err means the tick was aborted.
func (r *SyncRun) Finish(now time.Time, err error) {
	r.FinishedAt = &now
	switch {
	case err != nil:
		r.Status = SyncStatusAborted
		r.Error = err.Error()
	case r.Counters.Failed > 0:
		r.Status = SyncStatusPartial
	default:
		r.Status = SyncStatusSucceeded
	}
}

// IsFinished reports whether Finish was called
func (r *SyncRun) IsFinished() bool {
	return r.FinishedAt != nil
}

// Duration is the run time, or zero for a running tick
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// SyncRunRepository persists runs
type SyncRunRepository interface {
	// Save inserts or replaces the run
	Save(ctx context.Context, run *SyncRun) error
	// Latest returns the most recently started run of kind, or ErrSyncRunNotFound
	Latest(ctx context.Context, kind SyncKind) (*SyncRun, error)
	// ListRecent returns up to limit runs of kind, newest first
	ListRecent(ctx context.Context, kind SyncKind, limit int) ([]*SyncRun, error)
}
