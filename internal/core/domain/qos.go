package domain

import "time"

// QosRule bounds and prioritizes bandwidth for one traffic class. One rule
// per class; MinBandwidthMbps must not exceed MaxBandwidthMbps.
type QosRule struct {
	TrafficClass     TrafficClass `json:"trafficClass"`
	Priority         int          `json:"priority"`
	MinBandwidthMbps float64      `json:"minBandwidthMbps"`
	MaxBandwidthMbps float64      `json:"maxBandwidthMbps"`
	DSCP             int          `json:"dscp,omitempty"`
	Enabled          bool         `json:"enabled"`
}

// Validate checks rule consistency. Invalid rules are rejected at setRule
// time and never reach the allocator.
func (r QosRule) Validate() error {
	if r.TrafficClass == "" || r.TrafficClass == ClassUnknown {
		return ErrInvalidRule
	}
	if r.Priority < 0 || r.Priority > 3 {
		return ErrInvalidRule
	}
	if r.MinBandwidthMbps < 0 || r.MaxBandwidthMbps < 0 {
		return ErrInvalidRule
	}
	if r.MinBandwidthMbps > r.MaxBandwidthMbps {
		return ErrInvalidRule
	}
	return nil
}

// DefaultRules is the rule set seeded at startup.
func DefaultRules() []QosRule {
	return []QosRule{
		{TrafficClass: ClassVideo, Priority: 3, MinBandwidthMbps: 5.0, MaxBandwidthMbps: 50.0, DSCP: 46, Enabled: true},
		{TrafficClass: ClassVoice, Priority: 3, MinBandwidthMbps: 0.1, MaxBandwidthMbps: 10.0, DSCP: 46, Enabled: true},
		{TrafficClass: ClassFile, Priority: 1, MinBandwidthMbps: 0.5, MaxBandwidthMbps: 30.0, DSCP: 10, Enabled: true},
		{TrafficClass: ClassBackground, Priority: 0, MinBandwidthMbps: 0, MaxBandwidthMbps: 20.0, DSCP: 0, Enabled: true},
	}
}

// Prediction is a point estimate from the external bandwidth predictor with
// a trust weight in [0,100].
type Prediction struct {
	TrafficClass           TrafficClass `json:"trafficClass"`
	PredictedBandwidthMbps float64      `json:"predictedBandwidthMbps"`
	Confidence             float64      `json:"confidence"`
	ProducedAt             time.Time    `json:"producedAt"`
}

// AllocationResult is the per-class outcome of one allocation pass,
// recomputed every tick.
type AllocationResult struct {
	TrafficClass  TrafficClass `json:"trafficClass"`
	RequestedMbps float64      `json:"requestedMbps"`
	AllocatedMbps float64      `json:"allocatedMbps"`
	SatisfiedMin  bool         `json:"satisfiedMin"`
	ThrottledMbps float64      `json:"throttledMbps,omitempty"`
}

// AllocationSummary aggregates one tick's allocation outcome.
type AllocationSummary struct {
	TotalBudgetMbps    float64 `json:"totalBudgetMbps"`
	TotalAllocatedMbps float64 `json:"totalAllocatedMbps"`
	RemainingMbps      float64 `json:"remainingMbps"`
	UtilizationPercent float64 `json:"utilizationPercent"`
}

// QosActionType describes what should happen to a flow relative to its rule.
type QosActionType string

const (
	ActionThrottle   QosActionType = "throttle"
	ActionPrioritize QosActionType = "prioritize"
	ActionMaintain   QosActionType = "maintain"
	ActionNone       QosActionType = "none"
)

// QosAction is the advisory shaping decision for one flow. The engine only
// computes decisions; it never touches the wire.
type QosAction struct {
	FlowID     FlowID        `json:"flowId"`
	Action     QosActionType `json:"action"`
	TargetMbps float64       `json:"targetMbps"`
	Reason     string        `json:"reason"`
	DSCP       int           `json:"dscp"`
}
