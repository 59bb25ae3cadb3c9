package memory

import (
	"context"
	"sync"

	"netqos/internal/core/domain"
	"netqos/internal/core/ports"
)

const maxStoredAlerts = 1000

// MemoryAlertRepository keeps the most recent alerts in insertion order,
// bounded so a noisy deployment cannot grow memory without limit.
type MemoryAlertRepository struct {
	mu     sync.RWMutex
	alerts []domain.Alert
	byID   map[domain.AlertID]int
}

func NewMemoryAlertRepository() ports.AlertRepository {
	return &MemoryAlertRepository{
		byID: make(map[domain.AlertID]int),
	}
}

func (r *MemoryAlertRepository) Save(_ context.Context, alert domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.byID[alert.ID]; ok {
		r.alerts[i] = alert
		return nil
	}

	r.alerts = append(r.alerts, alert)
	r.byID[alert.ID] = len(r.alerts) - 1

	if len(r.alerts) > maxStoredAlerts {
		evicted := r.alerts[0]
		r.alerts = append([]domain.Alert(nil), r.alerts[1:]...)
		delete(r.byID, evicted.ID)
		for i, a := range r.alerts {
			r.byID[a.ID] = i
		}
	}
	return nil
}

func (r *MemoryAlertRepository) Recent(_ context.Context, limit int) ([]domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.alerts) {
		limit = len(r.alerts)
	}

	out := make([]domain.Alert, 0, limit)
	for i := len(r.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.alerts[i])
	}
	return out, nil
}

func (r *MemoryAlertRepository) Resolve(_ context.Context, id domain.AlertID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byID[id]
	if !ok {
		return domain.ErrAlertNotFound
	}
	r.alerts[i].Resolved = true
	return nil
}
