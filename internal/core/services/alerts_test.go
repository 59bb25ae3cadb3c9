package services

import (
	"errors"
	"testing"
	"time"

	"netqos/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEvaluateMinimumShortfalls(t *testing.T) {
	ev := NewAlertEvaluator(time.Minute, zaptest.NewLogger(t).Sugar())
	now := time.Now()

	// Scarce-budget outcome: video got its (clamped) minimum, voice and file
	// did not, background has a zero minimum.
	results := []domain.AllocationResult{
		{TrafficClass: domain.ClassVideo, RequestedMbps: 40, AllocatedMbps: 3, SatisfiedMin: true},
		{TrafficClass: domain.ClassVoice, RequestedMbps: 2, AllocatedMbps: 0, SatisfiedMin: false},
		{TrafficClass: domain.ClassFile, RequestedMbps: 25, AllocatedMbps: 0, SatisfiedMin: false},
		{TrafficClass: domain.ClassBackground, RequestedMbps: 30, AllocatedMbps: 0, SatisfiedMin: true},
	}

	alerts := ev.Evaluate(results, testRules(), nil, now)
	require.Len(t, alerts, 2)

	bySeverity := map[domain.Severity]int{}
	for _, a := range alerts {
		bySeverity[a.Severity]++
		assert.NotEmpty(t, a.ID)
		assert.False(t, a.Resolved)
	}
	assert.Equal(t, 1, bySeverity[domain.SeverityCritical]) // voice, priority 3
	assert.Equal(t, 1, bySeverity[domain.SeverityWarning])  // file, priority 1
}

func TestEvaluateCooldownSuppressesRepeats(t *testing.T) {
	ev := NewAlertEvaluator(time.Minute, zaptest.NewLogger(t).Sugar())
	now := time.Now()

	results := []domain.AllocationResult{
		{TrafficClass: domain.ClassVoice, RequestedMbps: 2, AllocatedMbps: 0, SatisfiedMin: false},
	}

	first := ev.Evaluate(results, testRules(), nil, now)
	require.Len(t, first, 1)

	// Same violation one tick later stays silent.
	assert.Empty(t, ev.Evaluate(results, testRules(), nil, now.Add(time.Second)))

	// After the window it fires again.
	again := ev.Evaluate(results, testRules(), nil, now.Add(61*time.Second))
	require.Len(t, again, 1)
	assert.NotEqual(t, first[0].ID, again[0].ID)
}

func TestEvaluateSustainedOverload(t *testing.T) {
	ev := NewAlertEvaluator(time.Minute, zaptest.NewLogger(t).Sugar())
	now := time.Now()

	overloaded := []domain.AllocationResult{
		{TrafficClass: domain.ClassFile, RequestedMbps: 50, AllocatedMbps: 10, SatisfiedMin: true},
	}

	// Two ticks of overload are not enough.
	assert.Empty(t, ev.Evaluate(overloaded, testRules(), nil, now))
	assert.Empty(t, ev.Evaluate(overloaded, testRules(), nil, now.Add(time.Second)))

	// The third consecutive tick raises a warning.
	alerts := ev.Evaluate(overloaded, testRules(), nil, now.Add(2*time.Second))
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.SeverityWarning, alerts[0].Severity)
}

func TestEvaluateOverloadStreakResets(t *testing.T) {
	ev := NewAlertEvaluator(time.Minute, zaptest.NewLogger(t).Sugar())
	now := time.Now()

	overloaded := []domain.AllocationResult{
		{TrafficClass: domain.ClassFile, RequestedMbps: 50, AllocatedMbps: 10, SatisfiedMin: true},
	}
	calm := []domain.AllocationResult{
		{TrafficClass: domain.ClassFile, RequestedMbps: 10, AllocatedMbps: 10, SatisfiedMin: true},
	}

	ev.Evaluate(overloaded, testRules(), nil, now)
	ev.Evaluate(overloaded, testRules(), nil, now.Add(time.Second))
	ev.Evaluate(calm, testRules(), nil, now.Add(2*time.Second))

	// The streak restarted; two more overloaded ticks stay silent.
	assert.Empty(t, ev.Evaluate(overloaded, testRules(), nil, now.Add(3*time.Second)))
	assert.Empty(t, ev.Evaluate(overloaded, testRules(), nil, now.Add(4*time.Second)))
}

func TestEvaluateNewFlowWithoutRule(t *testing.T) {
	ev := NewAlertEvaluator(time.Minute, zaptest.NewLogger(t).Sugar())
	now := time.Now()

	flows := []domain.Flow{
		{ID: "flow-1", SourceEndpoint: "10.0.0.1", DestEndpoint: "10.0.0.2", TrafficClass: domain.ClassVoice},
	}
	rules := []domain.QosRule{
		{TrafficClass: domain.ClassVideo, Priority: 3, MinBandwidthMbps: 5, MaxBandwidthMbps: 50, Enabled: true},
	}

	alerts := ev.Evaluate(nil, rules, flows, now)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.SeverityInfo, alerts[0].Severity)
	assert.Equal(t, domain.FlowID("flow-1"), alerts[0].RelatedFlowID)
}

func TestDegradedReadAlert(t *testing.T) {
	ev := NewAlertEvaluator(time.Minute, zaptest.NewLogger(t).Sugar())
	now := time.Now()

	alert, fresh := ev.DegradedReadAlert(errors.New("read timeout"), now)
	require.True(t, fresh)
	assert.Equal(t, domain.SeverityWarning, alert.Severity)
	assert.NotEmpty(t, alert.ID)

	// Deduplicated within the cooldown window.
	_, fresh = ev.DegradedReadAlert(errors.New("read timeout"), now.Add(time.Second))
	assert.False(t, fresh)
}
