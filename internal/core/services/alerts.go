package services

import (
	"fmt"
	"time"

	"netqos/internal/core/domain"
	"netqos/pkg/utils"

	"go.uber.org/zap"
)

const (
	// sustainedDemandFactor and sustainedDemandTicks define the sustained
	// overload rule: demand above factor x allocated for this many
	// consecutive ticks raises a warning.
	sustainedDemandFactor = 2.0
	sustainedDemandTicks  = 3
)

// AlertEvaluator derives alerts from allocation results and flow state. It
// is stateless apart from the overload streak counters and the cooldown
// window used for deduplication.
type AlertEvaluator struct {
	cooldown     *Cooldown
	window       time.Duration
	demandStreak map[domain.TrafficClass]int
	logger       *zap.SugaredLogger
}

func NewAlertEvaluator(cooldownWindow time.Duration, logger *zap.SugaredLogger) *AlertEvaluator {
	return &AlertEvaluator{
		cooldown:     NewCooldown(),
		window:       cooldownWindow,
		demandStreak: make(map[domain.TrafficClass]int),
		logger:       logger,
	}
}

// Evaluate produces this tick's alerts: critical for unhonored minimums at
// priority 3, warning for lower-priority shortfalls and sustained overload,
// info for flows of classes with no configured rule. Duplicate alerts
// within the cooldown window are suppressed.
func (e *AlertEvaluator) Evaluate(results []domain.AllocationResult, rules []domain.QosRule, newFlows []domain.Flow, now time.Time) []domain.Alert {
	ruleByClass := make(map[domain.TrafficClass]domain.QosRule, len(rules))
	for _, r := range rules {
		ruleByClass[r.TrafficClass] = r
	}

	var out []domain.Alert

	for _, res := range results {
		rule, hasRule := ruleByClass[res.TrafficClass]
		if hasRule && !res.SatisfiedMin {
			severity := domain.SeverityWarning
			if rule.Priority >= highPriority {
				severity = domain.SeverityCritical
			}
			out = e.emit(out, domain.Alert{
				Severity:  severity,
				Title:     fmt.Sprintf("minimum bandwidth not honored for %s", res.TrafficClass),
				Message:   fmt.Sprintf("allocated %.2f Mbps of %.2f Mbps minimum", res.AllocatedMbps, rule.MinBandwidthMbps),
				CreatedAt: now,
			}, now)
		}

		if res.RequestedMbps > sustainedDemandFactor*res.AllocatedMbps && res.RequestedMbps > 0 {
			e.demandStreak[res.TrafficClass]++
		} else {
			e.demandStreak[res.TrafficClass] = 0
		}
		if e.demandStreak[res.TrafficClass] >= sustainedDemandTicks {
			out = e.emit(out, domain.Alert{
				Severity:  domain.SeverityWarning,
				Title:     fmt.Sprintf("sustained demand overload for %s", res.TrafficClass),
				Message:   fmt.Sprintf("demand %.2f Mbps exceeds 2x allocation %.2f Mbps for %d ticks", res.RequestedMbps, res.AllocatedMbps, e.demandStreak[res.TrafficClass]),
				CreatedAt: now,
			}, now)
		}
	}

	for _, flow := range newFlows {
		if _, ok := ruleByClass[flow.TrafficClass]; ok {
			continue
		}
		out = e.emit(out, domain.Alert{
			Severity:      domain.SeverityInfo,
			Title:         fmt.Sprintf("flow observed for unconfigured class %s", flow.TrafficClass),
			Message:       fmt.Sprintf("%s -> %s has no qos rule", flow.SourceEndpoint, flow.DestEndpoint),
			RelatedFlowID: flow.ID,
			CreatedAt:     now,
		}, now)
	}

	return out
}

// DegradedReadAlert is raised when the upstream read fails and the previous
// tick's statistics are reused.
func (e *AlertEvaluator) DegradedReadAlert(cause error, now time.Time) (domain.Alert, bool) {
	alert := domain.Alert{
		Severity:  domain.SeverityWarning,
		Title:     "degraded upstream read",
		Message:   fmt.Sprintf("reusing previous tick statistics: %v", cause),
		CreatedAt: now,
	}
	if !e.cooldown.Allow(alert.DedupeKey(), now, e.window) {
		return domain.Alert{}, false
	}
	alert.ID = domain.AlertID(utils.GenerateAlertID())
	return alert, true
}

func (e *AlertEvaluator) emit(out []domain.Alert, alert domain.Alert, now time.Time) []domain.Alert {
	if !e.cooldown.Allow(alert.DedupeKey(), now, e.window) {
		return out
	}
	alert.ID = domain.AlertID(utils.GenerateAlertID())
	log := e.logger.Warnw
	if alert.Severity == domain.SeverityInfo {
		log = e.logger.Infow
	}
	log("alert raised",
		"severity", alert.Severity,
		"title", alert.Title,
		"flow_id", alert.RelatedFlowID,
	)
	return append(out, alert)
}
