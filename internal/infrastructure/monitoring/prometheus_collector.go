package monitoring

import (
	"time"

	"netqos/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector records per-tick engine measurements. It satisfies
// ports.TickObserver so the engine core never imports this package.
type PrometheusCollector struct {
	tickDuration   prometheus.Histogram
	degradedTicks  prometheus.Counter
	ticksTotal     prometheus.Counter
	flowsActive    prometheus.Gauge
	flowsExpired   prometheus.Counter
	subscribers    prometheus.Gauge
	droppedTotal   prometheus.Counter
	alertsTotal    *prometheus.CounterVec
	allocatedMbps  *prometheus.GaugeVec
	requestedMbps  *prometheus.GaugeVec
	budgetMbps     prometheus.Gauge
	utilizationPct prometheus.Gauge
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		tickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "netqos_tick_duration_seconds",
			Help:    "Duration of one aggregation and allocation tick",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		degradedTicks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "netqos_degraded_ticks_total",
			Help: "Ticks that fell back to rebroadcasting stale output",
		}),

		ticksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "netqos_ticks_total",
			Help: "Total ticks processed",
		}),

		flowsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "netqos_flows_active",
			Help: "Flows currently tracked by the aggregator",
		}),

		flowsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "netqos_flows_expired_total",
			Help: "Flows evicted after the silence interval",
		}),

		subscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "netqos_broadcast_subscribers",
			Help: "Currently connected broadcast subscribers",
		}),

		droppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "netqos_broadcast_dropped_messages_total",
			Help: "Messages overwritten in full subscriber queues",
		}),

		alertsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "netqos_alerts_total",
			Help: "Alerts raised, by severity",
		}, []string{"severity"}),

		allocatedMbps: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netqos_allocated_mbps",
			Help: "Bandwidth allocated per traffic class",
		}, []string{"class"}),

		requestedMbps: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netqos_requested_mbps",
			Help: "Bandwidth demanded per traffic class",
		}, []string{"class"}),

		budgetMbps: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "netqos_budget_mbps",
			Help: "Total bandwidth budget",
		}),

		utilizationPct: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "netqos_budget_utilization_percent",
			Help: "Share of the budget allocated this tick",
		}),
	}
}

func (p *PrometheusCollector) ObserveTick(d time.Duration, degraded bool) {
	p.tickDuration.Observe(d.Seconds())
	p.ticksTotal.Inc()
	if degraded {
		p.degradedTicks.Inc()
	}
}

func (p *PrometheusCollector) RecordFlows(active, expired int) {
	p.flowsActive.Set(float64(active))
	if expired > 0 {
		p.flowsExpired.Add(float64(expired))
	}
}

func (p *PrometheusCollector) RecordAllocations(results []domain.AllocationResult, summary domain.AllocationSummary) {
	for _, res := range results {
		p.allocatedMbps.WithLabelValues(string(res.TrafficClass)).Set(res.AllocatedMbps)
		p.requestedMbps.WithLabelValues(string(res.TrafficClass)).Set(res.RequestedMbps)
	}
	p.budgetMbps.Set(summary.TotalBudgetMbps)
	p.utilizationPct.Set(summary.UtilizationPercent)
}

func (p *PrometheusCollector) RecordAlerts(alerts []domain.Alert) {
	for _, a := range alerts {
		p.alertsTotal.WithLabelValues(string(a.Severity)).Inc()
	}
}

// RecordSubscriberCount tracks the broadcast hub's live subscriber set.
func (p *PrometheusCollector) RecordSubscriberCount(n int) {
	p.subscribers.Set(float64(n))
}

// RecordDroppedMessage counts one queue overwrite; wired as the hub's OnDrop
// hook.
func (p *PrometheusCollector) RecordDroppedMessage(subscriberID, channel string) {
	p.droppedTotal.Inc()
}
