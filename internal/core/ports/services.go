package ports

import (
	"context"
	"time"

	"netqos/internal/core/domain"
)

// Predictor is the external bandwidth predictor, consumed as an opaque
// function. Implementations must bound the request with a timeout and
// return domain.ErrNoPrediction on any failure.
type Predictor interface {
	Predict(ctx context.Context, class domain.TrafficClass, history []float64) (domain.Prediction, error)
}

// Broadcaster fans one tick's output to subscribers. Implementations must
// never block the caller on a slow subscriber.
type Broadcaster interface {
	Broadcast(channel string, message any)
}

// RuleService manages the QoS rule table. Updates take effect atomically on
// the next tick boundary.
type RuleService interface {
	SetRule(ctx context.Context, rule domain.QosRule) error
	GetRules(ctx context.Context) ([]domain.QosRule, error)
}

// TickObserver receives per-tick measurements for operational metrics.
type TickObserver interface {
	ObserveTick(d time.Duration, degraded bool)
	RecordFlows(active, expired int)
	RecordAllocations(results []domain.AllocationResult, summary domain.AllocationSummary)
	RecordAlerts(alerts []domain.Alert)
}
