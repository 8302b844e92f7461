package integration

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Triple-C-BE/wimood/internal/domain/fulfillment"
	"github.com/Triple-C-BE/wimood/internal/domain/integration"
)

// StatusStore holds the snapshot published to the status endpoint.
// Writers are the sync ticks; the endpoint only reads copies.
type StatusStore struct {
	mu          sync.RWMutex
	startedAt   time.Time
	running     bool
	lastProduct *integration.SyncRun
	lastOrder   *integration.SyncRun
	nextProduct time.Time
	nextOrder   time.Time
	orders      map[fulfillment.Status]int64
	now         func() time.Time
}

// NewStatusStore creates a store whose uptime counts from now
func NewStatusStore(now func() time.Time) *StatusStore {
	if now == nil {
		now = time.Now
	}
	return &StatusStore{
		startedAt: now(),
		now:       now,
	}
}

// SetRunning marks whether the process is serving ticks
func (s *StatusStore) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

// UpdateStatus publishes a finished run
func (s *StatusStore) UpdateStatus(run *integration.SyncRun) {
	if run == nil {
		return
	}
	cp := *run
	cp.Failures = append([]integration.ItemFailure(nil), run.Failures...)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch run.Kind {
	case integration.SyncKindProducts:
		s.lastProduct = &cp
	case integration.SyncKindOrders:
		s.lastOrder = &cp
	}
}

// SetNextRun records when the ticker of kind fires next
func (s *StatusStore) SetNextRun(kind integration.SyncKind, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case integration.SyncKindProducts:
		s.nextProduct = at
	case integration.SyncKindOrders:
		s.nextOrder = at
	}
}

// SetOrderCounts publishes the number of tracked orders per status
func (s *StatusStore) SetOrderCounts(counts map[fulfillment.Status]int64) {
	cp := make(map[fulfillment.Status]int64, len(counts))
	for k, v := range counts {
		cp[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = cp
}

// Restore seeds the last runs from history so a restart does not report
// "never synced".
func (s *StatusStore) Restore(ctx context.Context, runs integration.SyncRunRepository) error {
	for _, kind := range []integration.SyncKind{integration.SyncKindProducts, integration.SyncKindOrders} {
		run, err := runs.Latest(ctx, kind)
		if errors.Is(err, integration.ErrSyncRunNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if run.IsFinished() {
			s.UpdateStatus(run)
		}
	}
	return nil
}

// Snapshot returns a copy of the current status
func (s *StatusStore) Snapshot() StatusSnapshot {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatusSnapshot{
		Running:                  s.running,
		StartedAt:                s.startedAt,
		UptimeSeconds:            roundTo(now.Sub(s.startedAt).Seconds(), 1),
		LastProductSync:          NewSyncReport(s.lastProduct),
		LastOrderSync:            NewSyncReport(s.lastOrder),
		NextProductSyncInSeconds: secondsUntil(now, s.nextProduct),
		NextOrderSyncInSeconds:   secondsUntil(now, s.nextOrder),
	}
	if len(s.orders) > 0 {
		snap.OrdersByStatus = make(map[string]int64, len(s.orders))
		for k, v := range s.orders {
			snap.OrdersByStatus[k.String()] = v
		}
	}
	return snap
}

func secondsUntil(now, at time.Time) float64 {
	if at.IsZero() || !at.After(now) {
		return 0
	}
	return roundTo(at.Sub(now).Seconds(), 0)
}
