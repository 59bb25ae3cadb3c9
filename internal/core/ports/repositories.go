package ports

import (
	"context"
	"time"

	"netqos/internal/core/domain"
)

// SampleRepository is the persistence collaborator the aggregator reads
// from. The store is the source of truth; the engine never caches beyond one
// tick interval.
type SampleRepository interface {
	// Append records samples. Used by producers and tests; the engine only reads.
	Append(ctx context.Context, samples ...domain.TrafficSample) error
	// SamplesSince returns samples recorded after the cursor timestamp along
	// with the new cursor. Gaps and duplicates are tolerated by callers.
	SamplesSince(ctx context.Context, cursor time.Time) ([]domain.TrafficSample, time.Time, error)
}

type RuleRepository interface {
	// Upsert stores a rule keyed by traffic class.
	Upsert(ctx context.Context, rule domain.QosRule) error
	// List returns all rules ordered by priority descending, canonical class
	// order within a priority.
	List(ctx context.Context) ([]domain.QosRule, error)
	Get(ctx context.Context, class domain.TrafficClass) (domain.QosRule, error)
}

type AlertRepository interface {
	Save(ctx context.Context, alert domain.Alert) error
	// Recent returns up to limit alerts, newest first.
	Recent(ctx context.Context, limit int) ([]domain.Alert, error)
	Resolve(ctx context.Context, id domain.AlertID) error
}
