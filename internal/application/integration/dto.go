package integration

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Triple-C-BE/wimood/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Status DTOs
// ---------------------------------------------------------------------------

// SyncReport is the last finished run of one ticker as shown by the status endpoint
type SyncReport struct {
	RunID           uuid.UUID                 `json:"run_id"`
	Status          integration.SyncStatus    `json:"status"`
	StartedAt       time.Time                 `json:"started_at"`
	FinishedAt      *time.Time                `json:"finished_at,omitempty"`
	DurationSeconds float64                   `json:"duration_seconds"`
	Results         integration.Counters      `json:"results"`
	Failures        []integration.ItemFailure `json:"failures,omitempty"`
	Error           string                    `json:"error,omitempty"`
}

// StatusSnapshot is the read-only view served by the status endpoint
type StatusSnapshot struct {
	Running                  bool             `json:"running"`
	StartedAt                time.Time        `json:"started_at"`
	UptimeSeconds            float64          `json:"uptime_seconds"`
	LastProductSync          *SyncReport      `json:"last_product_sync"`
	LastOrderSync            *SyncReport      `json:"last_order_sync"`
	NextProductSyncInSeconds float64          `json:"next_product_sync_in_seconds"`
	NextOrderSyncInSeconds   float64          `json:"next_order_sync_in_seconds"`
	OrdersByStatus           map[string]int64 `json:"orders_by_status,omitempty"`
}

// NewSyncReport converts a run into its status representation
func NewSyncReport(run *integration.SyncRun) *SyncReport {
	if run == nil {
		return nil
	}
	report := &SyncReport{
		RunID:           run.ID,
		Status:          run.Status,
		StartedAt:       run.StartedAt,
		DurationSeconds: roundTo(run.Duration().Seconds(), 2),
		Results:         run.Counters,
		Error:           run.Error,
	}
	if run.FinishedAt != nil {
		finished := *run.FinishedAt
		report.FinishedAt = &finished
	}
	if len(run.Failures) > 0 {
		report.Failures = append([]integration.ItemFailure(nil), run.Failures...)
	}
	return report
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
