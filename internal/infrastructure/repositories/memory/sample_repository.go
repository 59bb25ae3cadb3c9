package memory

import (
	"context"
	"sync"
	"time"

	"netqos/internal/core/domain"
	"netqos/internal/core/ports"
)

const defaultRetention = 5 * time.Minute

// MemorySampleRepository is an in-process sample buffer. Samples older than
// the retention window are pruned on append so the buffer stays bounded.
type MemorySampleRepository struct {
	mu        sync.RWMutex
	samples   []domain.TrafficSample
	retention time.Duration
}

func NewMemorySampleRepository() ports.SampleRepository {
	return &MemorySampleRepository{retention: defaultRetention}
}

func (r *MemorySampleRepository) Append(_ context.Context, samples ...domain.TrafficSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples = append(r.samples, samples...)

	if len(r.samples) > 0 {
		cutoff := time.Now().Add(-r.retention)
		i := 0
		for i < len(r.samples) && r.samples[i].Timestamp.Before(cutoff) {
			i++
		}
		if i > 0 {
			r.samples = append([]domain.TrafficSample(nil), r.samples[i:]...)
		}
	}
	return nil
}

func (r *MemorySampleRepository) SamplesSince(_ context.Context, cursor time.Time) ([]domain.TrafficSample, time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	newCursor := cursor
	var out []domain.TrafficSample
	for _, s := range r.samples {
		if !s.Timestamp.After(cursor) {
			continue
		}
		out = append(out, s)
		if s.Timestamp.After(newCursor) {
			newCursor = s.Timestamp
		}
	}
	return out, newCursor, nil
}
