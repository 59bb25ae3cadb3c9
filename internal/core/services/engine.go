package services

import (
	"context"
	"sync"
	"time"

	"netqos/internal/core/domain"
	"netqos/internal/core/ports"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// EngineConfig carries the tick driver's steady-state parameters. It is
// validated at startup; a non-positive tick interval is fatal.
type EngineConfig struct {
	TickInterval        time.Duration
	UpstreamTimeout     time.Duration
	SilenceInterval     time.Duration
	AlertCooldown       time.Duration
	TotalBandwidthMbps  float64
	ConfidenceThreshold float64
	HeadroomFactor      float64
}

// Engine is the tick driver: it runs the classify -> aggregate -> predict ->
// allocate -> alert -> broadcast pipeline on a fixed cadence. All pipeline
// stages execute sequentially on the tick goroutine; only the upstream reads
// may block, bounded by UpstreamTimeout.
type Engine struct {
	cfg EngineConfig

	samples   ports.SampleRepository
	alertRepo ports.AlertRepository
	predictor ports.Predictor
	hub       ports.Broadcaster
	observer  ports.TickObserver

	rules      *RuleService
	aggregator *Aggregator
	allocator  *Allocator
	evaluator  *AlertEvaluator

	tracer trace.Tracer
	logger *zap.SugaredLogger

	cursor time.Time

	mu          sync.RWMutex
	ticked      bool
	lastTraffic domain.TrafficUpdate
	lastByType  domain.TrafficByType
	lastAlloc   domain.AllocationUpdate
}

func NewEngine(
	cfg EngineConfig,
	samples ports.SampleRepository,
	alertRepo ports.AlertRepository,
	predictor ports.Predictor,
	hub ports.Broadcaster,
	observer ports.TickObserver,
	rules *RuleService,
	aggregator *Aggregator,
	allocator *Allocator,
	evaluator *AlertEvaluator,
	tracer trace.Tracer,
	logger *zap.SugaredLogger,
) *Engine {
	return &Engine{
		cfg:        cfg,
		samples:    samples,
		alertRepo:  alertRepo,
		predictor:  predictor,
		hub:        hub,
		observer:   observer,
		rules:      rules,
		aggregator: aggregator,
		allocator:  allocator,
		evaluator:  evaluator,
		tracer:     tracer,
		logger:     logger,
	}
}

// Run drives ticks until ctx is cancelled, then drains one final cycle of
// unresolved alerts before returning.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	e.logger.Infow("engine started",
		"tick_interval", e.cfg.TickInterval,
		"budget_mbps", e.cfg.TotalBandwidthMbps,
	)

	for {
		select {
		case <-ctx.Done():
			e.drainFinal()
			return ctx.Err()
		case now := <-ticker.C:
			e.Tick(context.Background(), now.UTC())
		}
	}
}

// Tick executes one pipeline cycle. Exported so tests and the composition
// root can drive the engine without the ticker.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	start := time.Now()
	degraded := false
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "engine.tick")
		defer span.End()
		defer func() {
			span.SetAttributes(attribute.Bool("degraded", degraded))
		}()
	}

	readCtx, cancel := context.WithTimeout(ctx, e.cfg.UpstreamTimeout)
	defer cancel()

	rules := e.rules.Snapshot(readCtx)
	samples, newCursor, err := e.samples.SamplesSince(readCtx, e.cursor)
	if err != nil {
		degraded = true
		e.logger.Warnw("upstream read failed, reusing previous tick", "error", err)
		e.broadcastDegraded(ctx, now, err)
		if e.observer != nil {
			e.observer.ObserveTick(time.Since(start), true)
		}
		return
	}
	e.cursor = newCursor

	newFlows := e.aggregator.Ingest(samples, now)
	expired := e.aggregator.ExpireIdle(now)

	demand := e.demand(ctx, rules)
	results, summary := e.allocator.Allocate(demand, rules, e.cfg.TotalBandwidthMbps)
	e.aggregator.ApplyAllocations(results)

	alerts := e.evaluator.Evaluate(results, rules, newFlows, now)
	e.persistAlerts(ctx, alerts)

	flows := e.aggregator.Flows()
	stats := e.aggregator.Stats()
	actions := e.qosActions(rules, flows)
	activeFlows, totalPackets := e.aggregator.FlowCount()

	traffic := domain.TrafficUpdate{
		Type:      "traffic-update",
		Timestamp: now,
		Flows:     flows,
		Alerts:    alerts,
		Stats: domain.OverallStats{
			TotalFlows:   activeFlows,
			TotalPackets: totalPackets,
			ActiveAlerts: e.activeAlertCount(ctx),
		},
	}
	byType := domain.TrafficByType{
		Type:      "traffic-by-type",
		Timestamp: now,
		PerClass:  make(map[domain.TrafficClass]domain.ClassBreakdown, len(stats)),
	}
	for _, s := range stats {
		byType.PerClass[s.TrafficClass] = domain.ClassBreakdown{
			Count:             s.Count,
			AvgThroughputMbps: s.AvgThroughputMbps,
		}
	}
	alloc := domain.AllocationUpdate{
		Type:        "allocation-update",
		Timestamp:   now,
		Allocations: results,
		Summary:     summary,
		Actions:     actions,
	}

	e.hub.Broadcast(domain.ChannelTraffic, traffic)
	e.hub.Broadcast(domain.ChannelByType, byType)
	e.hub.Broadcast(domain.ChannelAllocation, alloc)
	if len(alerts) > 0 {
		e.hub.Broadcast(domain.ChannelAlerts, domain.AlertsUpdate{
			Type:      "alerts",
			Timestamp: now,
			Alerts:    alerts,
		})
	}

	e.mu.Lock()
	e.ticked = true
	e.lastTraffic = traffic
	e.lastByType = byType
	e.lastAlloc = alloc
	e.mu.Unlock()

	if e.observer != nil {
		e.observer.ObserveTick(time.Since(start), false)
		e.observer.RecordFlows(activeFlows, len(expired))
		e.observer.RecordAllocations(results, summary)
		e.observer.RecordAlerts(alerts)
	}
}

// demand picks each class's demand source: a trusted prediction first, then
// observed bandwidth, then the rule minimum.
func (e *Engine) demand(ctx context.Context, rules []domain.QosRule) map[domain.TrafficClass]float64 {
	demand := make(map[domain.TrafficClass]float64, len(rules))
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		class := rule.TrafficClass

		predCtx, cancel := context.WithTimeout(ctx, e.cfg.UpstreamTimeout)
		pred, err := e.predictor.Predict(predCtx, class, e.aggregator.History(class))
		cancel()
		if err == nil && pred.Confidence >= e.cfg.ConfidenceThreshold {
			demand[class] = pred.PredictedBandwidthMbps
			continue
		}

		if observed := e.aggregator.ObservedBandwidth(class); observed > 0 {
			demand[class] = observed
			continue
		}
		demand[class] = rule.MinBandwidthMbps
	}
	return demand
}

func (e *Engine) qosActions(rules []domain.QosRule, flows []domain.Flow) []domain.QosAction {
	ruleByClass := make(map[domain.TrafficClass]domain.QosRule, len(rules))
	for _, r := range rules {
		if r.Enabled {
			ruleByClass[r.TrafficClass] = r
		}
	}
	var actions []domain.QosAction
	for _, flow := range flows {
		rule, ok := ruleByClass[flow.TrafficClass]
		if !ok {
			continue
		}
		actions = append(actions, QosActionFor(rule, flow))
	}
	return actions
}

// broadcastDegraded re-emits the previous tick's messages unchanged except
// for the added degraded-mode alert. Before the first healthy tick there is
// nothing to re-emit, so only the alert goes out.
func (e *Engine) broadcastDegraded(ctx context.Context, now time.Time, cause error) {
	alert, fresh := e.evaluator.DegradedReadAlert(cause, now)

	e.mu.Lock()
	ticked := e.ticked
	traffic := e.lastTraffic
	byType := e.lastByType
	alloc := e.lastAlloc
	if fresh && ticked {
		traffic.Alerts = append(append([]domain.Alert(nil), traffic.Alerts...), alert)
		e.lastTraffic = traffic
	}
	e.mu.Unlock()

	if fresh {
		e.persistAlerts(ctx, []domain.Alert{alert})
	}

	if ticked {
		e.hub.Broadcast(domain.ChannelTraffic, traffic)
		e.hub.Broadcast(domain.ChannelByType, byType)
		e.hub.Broadcast(domain.ChannelAllocation, alloc)
	}
	if fresh {
		e.hub.Broadcast(domain.ChannelAlerts, domain.AlertsUpdate{
			Type:      "alerts",
			Timestamp: now,
			Alerts:    []domain.Alert{alert},
		})
	}
}

func (e *Engine) persistAlerts(ctx context.Context, alerts []domain.Alert) {
	for _, alert := range alerts {
		if err := e.alertRepo.Save(ctx, alert); err != nil {
			e.logger.Warnw("failed to persist alert", "title", alert.Title, "error", err)
		}
	}
}

func (e *Engine) activeAlertCount(ctx context.Context) int {
	recent, err := e.alertRepo.Recent(ctx, 200)
	if err != nil {
		return 0
	}
	count := 0
	for _, a := range recent {
		if !a.Resolved {
			count++
		}
	}
	return count
}

// drainFinal pushes outstanding unresolved alerts one last time so shutdown
// never silently drops them.
func (e *Engine) drainFinal() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.UpstreamTimeout)
	defer cancel()

	recent, err := e.alertRepo.Recent(ctx, 200)
	if err != nil {
		e.logger.Warnw("final alert drain failed", "error", err)
		return
	}
	var unresolved []domain.Alert
	for _, a := range recent {
		if !a.Resolved {
			unresolved = append(unresolved, a)
		}
	}
	if len(unresolved) == 0 {
		return
	}
	e.hub.Broadcast(domain.ChannelAlerts, domain.AlertsUpdate{
		Type:      "alerts",
		Timestamp: time.Now().UTC(),
		Alerts:    unresolved,
	})
	e.logger.Infow("drained unresolved alerts on shutdown", "count", len(unresolved))
}

// LastAllocation returns the most recent allocation update for the
// management API.
func (e *Engine) LastAllocation() domain.AllocationUpdate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastAlloc
}

// LastTraffic returns the most recent overall update for the management API.
func (e *Engine) LastTraffic() domain.TrafficUpdate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastTraffic
}
