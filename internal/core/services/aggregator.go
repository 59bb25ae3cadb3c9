package services

import (
	"sort"
	"sync"
	"time"

	"netqos/internal/core/domain"
	"netqos/pkg/utils"

	"go.uber.org/zap"
)

const historySize = 100

// Aggregator rolls ticks of samples into per-class statistics and maintains
// the active flow table. All state is owned by the tick driver; the mutex
// only guards concurrent read access from the management API.
type Aggregator struct {
	mu sync.RWMutex

	silence time.Duration

	flows   map[flowKey]*domain.Flow
	stats   map[domain.TrafficClass]*domain.ClassStats
	history map[domain.TrafficClass][]float64

	tickSeconds float64

	logger *zap.SugaredLogger
}

type flowKey struct {
	src, dst string
	class    domain.TrafficClass
}

func NewAggregator(silence, tickInterval time.Duration, logger *zap.SugaredLogger) *Aggregator {
	return &Aggregator{
		silence:     silence,
		flows:       make(map[flowKey]*domain.Flow),
		stats:       make(map[domain.TrafficClass]*domain.ClassStats),
		history:     make(map[domain.TrafficClass][]float64),
		tickSeconds: tickInterval.Seconds(),
		logger:      logger,
	}
}

// Ingest folds one tick's samples into the flow table and recomputes the
// per-class statistics. Missing throughput values count as zero, never as
// null. Returns the flows first observed during this tick.
func (a *Aggregator) Ingest(samples []domain.TrafficSample, now time.Time) []domain.Flow {
	a.mu.Lock()
	defer a.mu.Unlock()

	type rollup struct {
		count       int
		throughput  float64
		packetCount int64
		byteCount   int64
	}
	perClass := make(map[domain.TrafficClass]*rollup)
	perFlowBw := make(map[flowKey]float64)
	var created []domain.Flow

	for _, s := range samples {
		s = ClassifySample(s)
		r := perClass[s.TrafficClass]
		if r == nil {
			r = &rollup{}
			perClass[s.TrafficClass] = r
		}
		r.count++
		r.throughput += s.ThroughputMbps
		r.packetCount++
		r.byteCount += int64(s.PacketSize)

		if s.TrafficClass == domain.ClassUnknown {
			// Unknown traffic stays out of QoS accounting but is still visible.
			a.logger.Debugw("unclassified sample",
				"source", s.SourceEndpoint,
				"dest", s.DestEndpoint,
				"protocol", s.Protocol,
			)
			continue
		}

		key := flowKey{src: s.SourceEndpoint, dst: s.DestEndpoint, class: s.TrafficClass}
		flow, exists := a.flows[key]
		if !exists {
			flow = &domain.Flow{
				ID:             domain.FlowID(utils.GenerateFlowID()),
				SourceEndpoint: s.SourceEndpoint,
				DestEndpoint:   s.DestEndpoint,
				TrafficClass:   s.TrafficClass,
				StartedAt:      now,
			}
			a.flows[key] = flow
			created = append(created, *flow)
		}
		flow.PacketCount++
		flow.ByteCount += int64(s.PacketSize)
		flow.LastSeenAt = now
		perFlowBw[key] += s.ThroughputMbps
	}

	for key, bw := range perFlowBw {
		a.flows[key].CurrentBandwidthMbps = bw
	}

	for class, r := range perClass {
		avg := 0.0
		if r.count > 0 {
			avg = r.throughput / float64(r.count)
		}
		stat, ok := a.stats[class]
		if !ok {
			stat = &domain.ClassStats{TrafficClass: class}
			a.stats[class] = stat
		}
		stat.Count = r.count
		stat.AvgThroughputMbps = avg
		stat.PacketCount = r.packetCount
		stat.ByteCount = r.byteCount

		if class != domain.ClassUnknown {
			h := append(a.history[class], avg)
			if len(h) > historySize {
				h = h[len(h)-historySize:]
			}
			a.history[class] = h
		}
	}

	return created
}

// ExpireIdle removes flows silent for longer than the silence interval and
// returns them as closure events.
func (a *Aggregator) ExpireIdle(now time.Time) []domain.Flow {
	a.mu.Lock()
	defer a.mu.Unlock()

	var expired []domain.Flow
	for key, flow := range a.flows {
		if now.Sub(flow.LastSeenAt) > a.silence {
			expired = append(expired, *flow)
			delete(a.flows, key)
		}
	}
	if len(expired) > 0 {
		sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
		a.logger.Infow("expired idle flows", "count", len(expired))
	}
	return expired
}

// ApplyAllocations writes the allocation engine's per-class decisions back
// onto flows, dividing each class allocation across its flows in proportion
// to observed bandwidth (evenly when nothing was observed).
func (a *Aggregator) ApplyAllocations(results []domain.AllocationResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	byClass := make(map[domain.TrafficClass][]*domain.Flow)
	classBw := make(map[domain.TrafficClass]float64)
	for _, flow := range a.flows {
		byClass[flow.TrafficClass] = append(byClass[flow.TrafficClass], flow)
		classBw[flow.TrafficClass] += flow.CurrentBandwidthMbps
	}

	for _, res := range results {
		flows := byClass[res.TrafficClass]
		if len(flows) == 0 {
			continue
		}
		total := classBw[res.TrafficClass]
		for _, flow := range flows {
			if total > 0 {
				flow.AllocatedBandwidthMbps = res.AllocatedMbps * flow.CurrentBandwidthMbps / total
			} else {
				flow.AllocatedBandwidthMbps = res.AllocatedMbps / float64(len(flows))
			}
		}
	}
}

// Flows returns the active flow set ordered by ID.
func (a *Aggregator) Flows() []domain.Flow {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]domain.Flow, 0, len(a.flows))
	for _, flow := range a.flows {
		out = append(out, *flow)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats returns the latest per-class statistics in canonical class order,
// unknown last.
func (a *Aggregator) Stats() []domain.ClassStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]domain.ClassStats, 0, len(a.stats))
	for _, stat := range a.stats {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := domain.ClassRank(out[i].TrafficClass), domain.ClassRank(out[j].TrafficClass)
		if ri != rj {
			return ri < rj
		}
		return out[i].TrafficClass < out[j].TrafficClass
	})
	return out
}

// ObservedBandwidth returns the summed current bandwidth of a class's
// active flows, used as allocation demand when no trusted prediction exists.
func (a *Aggregator) ObservedBandwidth(class domain.TrafficClass) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var total float64
	for _, flow := range a.flows {
		if flow.TrafficClass == class {
			total += flow.CurrentBandwidthMbps
		}
	}
	return total
}

// History returns the recent mean-throughput series for a class (newest
// last), fed to the bandwidth predictor.
func (a *Aggregator) History(class domain.TrafficClass) []float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	h := a.history[class]
	out := make([]float64, len(h))
	copy(out, h)
	return out
}

// PacketProfile returns the packet rate (per second) and mean packet size
// observed for a class during the last tick.
func (a *Aggregator) PacketProfile(class domain.TrafficClass) (rate, avgSize float64) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stat, ok := a.stats[class]
	if !ok || stat.PacketCount == 0 {
		return 0, 0
	}
	if a.tickSeconds > 0 {
		rate = float64(stat.PacketCount) / a.tickSeconds
	}
	avgSize = float64(stat.ByteCount) / float64(stat.PacketCount)
	return rate, avgSize
}

// FlowCount reports active flows and cumulative packets for the overall
// update message.
func (a *Aggregator) FlowCount() (flows int, packets int64) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, flow := range a.flows {
		flows++
		packets += flow.PacketCount
	}
	return flows, packets
}
