package services

import (
	"testing"
	"time"

	"netqos/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestAggregator(t *testing.T) *Aggregator {
	return NewAggregator(30*time.Second, time.Second, zaptest.NewLogger(t).Sugar())
}

func videoSample(src, dst string, bw float64) domain.TrafficSample {
	return domain.TrafficSample{
		Timestamp:      time.Now(),
		SourceEndpoint: src,
		DestEndpoint:   dst,
		Protocol:       domain.ProtocolTCP,
		DestPort:       1935,
		PacketSize:     1200,
		ThroughputMbps: bw,
	}
}

func TestIngestCreatesFlows(t *testing.T) {
	agg := newTestAggregator(t)
	now := time.Now()

	created := agg.Ingest([]domain.TrafficSample{
		videoSample("10.0.0.1", "10.0.0.2", 4.0),
		videoSample("10.0.0.1", "10.0.0.2", 2.0),
		videoSample("10.0.0.3", "10.0.0.2", 1.0),
	}, now)

	// Same (src, dst, class) triple is one flow.
	require.Len(t, created, 2)

	flows := agg.Flows()
	require.Len(t, flows, 2)
	for _, f := range flows {
		assert.Equal(t, domain.ClassVideo, f.TrafficClass)
		assert.NotEmpty(t, f.ID)
		assert.Equal(t, now, f.LastSeenAt)
	}
}

func TestIngestRollsClassStats(t *testing.T) {
	agg := newTestAggregator(t)

	agg.Ingest([]domain.TrafficSample{
		videoSample("10.0.0.1", "10.0.0.2", 4.0),
		videoSample("10.0.0.3", "10.0.0.2", 2.0),
	}, time.Now())

	stats := agg.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, domain.ClassVideo, stats[0].TrafficClass)
	assert.Equal(t, 2, stats[0].Count)
	assert.InDelta(t, 3.0, stats[0].AvgThroughputMbps, 1e-9)
	assert.Equal(t, int64(2), stats[0].PacketCount)
	assert.Equal(t, int64(2400), stats[0].ByteCount)
}

func TestIngestUnknownTrafficVisibleButUntracked(t *testing.T) {
	agg := newTestAggregator(t)

	agg.Ingest([]domain.TrafficSample{
		{
			SourceEndpoint: "10.0.0.1",
			DestEndpoint:   "10.0.0.2",
			Protocol:       domain.ProtocolOther,
			PacketSize:     100,
		},
	}, time.Now())

	// Unknown shows up in statistics but never becomes a flow.
	assert.Empty(t, agg.Flows())
	stats := agg.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, domain.ClassUnknown, stats[0].TrafficClass)
}

func TestIngestMissingThroughputCountsAsZero(t *testing.T) {
	agg := newTestAggregator(t)

	s := videoSample("10.0.0.1", "10.0.0.2", 0)
	agg.Ingest([]domain.TrafficSample{s}, time.Now())

	stats := agg.Stats()
	require.Len(t, stats, 1)
	assert.Zero(t, stats[0].AvgThroughputMbps)
}

func TestExpireIdle(t *testing.T) {
	agg := newTestAggregator(t)
	start := time.Now()

	agg.Ingest([]domain.TrafficSample{videoSample("10.0.0.1", "10.0.0.2", 4.0)}, start)
	agg.Ingest([]domain.TrafficSample{videoSample("10.0.0.3", "10.0.0.2", 1.0)}, start.Add(20*time.Second))

	// 31s after the first flow's last sample, 11s after the second's.
	expired := agg.ExpireIdle(start.Add(31 * time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, "10.0.0.1", expired[0].SourceEndpoint)
	assert.Len(t, agg.Flows(), 1)
}

func TestExpireIdleExactBoundaryKept(t *testing.T) {
	agg := newTestAggregator(t)
	start := time.Now()

	agg.Ingest([]domain.TrafficSample{videoSample("10.0.0.1", "10.0.0.2", 4.0)}, start)

	// Exactly the silence interval is not "longer than".
	expired := agg.ExpireIdle(start.Add(30 * time.Second))
	assert.Empty(t, expired)
	assert.Len(t, agg.Flows(), 1)
}

func TestApplyAllocationsProportional(t *testing.T) {
	agg := newTestAggregator(t)
	now := time.Now()

	agg.Ingest([]domain.TrafficSample{
		videoSample("10.0.0.1", "10.0.0.2", 6.0),
		videoSample("10.0.0.3", "10.0.0.2", 2.0),
	}, now)

	agg.ApplyAllocations([]domain.AllocationResult{
		{TrafficClass: domain.ClassVideo, AllocatedMbps: 4.0},
	})

	flows := agg.Flows()
	require.Len(t, flows, 2)
	byBw := map[string]float64{}
	for _, f := range flows {
		byBw[f.SourceEndpoint] = f.AllocatedBandwidthMbps
	}
	assert.InDelta(t, 3.0, byBw["10.0.0.1"], 1e-9)
	assert.InDelta(t, 1.0, byBw["10.0.0.3"], 1e-9)
}

func TestObservedBandwidth(t *testing.T) {
	agg := newTestAggregator(t)

	agg.Ingest([]domain.TrafficSample{
		videoSample("10.0.0.1", "10.0.0.2", 6.0),
		videoSample("10.0.0.3", "10.0.0.2", 2.0),
	}, time.Now())

	assert.InDelta(t, 8.0, agg.ObservedBandwidth(domain.ClassVideo), 1e-9)
	assert.Zero(t, agg.ObservedBandwidth(domain.ClassVoice))
}

func TestHistoryBounded(t *testing.T) {
	agg := newTestAggregator(t)
	now := time.Now()

	for i := 0; i < historySize+20; i++ {
		agg.Ingest([]domain.TrafficSample{videoSample("10.0.0.1", "10.0.0.2", float64(i))}, now)
		now = now.Add(time.Second)
	}

	h := agg.History(domain.ClassVideo)
	require.Len(t, h, historySize)
	// Newest entry last.
	assert.InDelta(t, float64(historySize+19), h[len(h)-1], 1e-9)
}

func TestPacketProfile(t *testing.T) {
	agg := newTestAggregator(t)

	agg.Ingest([]domain.TrafficSample{
		videoSample("10.0.0.1", "10.0.0.2", 4.0),
		videoSample("10.0.0.1", "10.0.0.2", 4.0),
	}, time.Now())

	rate, avgSize := agg.PacketProfile(domain.ClassVideo)
	assert.InDelta(t, 2.0, rate, 1e-9)
	assert.InDelta(t, 1200.0, avgSize, 1e-9)

	rate, avgSize = agg.PacketProfile(domain.ClassVoice)
	assert.Zero(t, rate)
	assert.Zero(t, avgSize)
}
