package services

import (
	"context"
	"sync/atomic"

	"netqos/internal/core/domain"
	"netqos/internal/core/ports"
	apperrors "netqos/pkg/errors"

	"go.uber.org/zap"
)

// RuleService validates and persists QoS rules. The tick driver reads the
// table through Snapshot once per tick, so updates become visible atomically
// at the next tick boundary and never mid-computation. The last successful
// snapshot is kept for degraded reads.
type RuleService struct {
	repo      ports.RuleRepository
	lastKnown atomic.Value // []domain.QosRule
	logger    *zap.SugaredLogger
}

func NewRuleService(repo ports.RuleRepository, logger *zap.SugaredLogger) *RuleService {
	s := &RuleService{repo: repo, logger: logger}
	s.lastKnown.Store([]domain.QosRule(nil))
	return s
}

// Seed installs rules that do not exist yet. Used at startup for the
// default table; existing rules are left untouched.
func (s *RuleService) Seed(ctx context.Context, rules []domain.QosRule) error {
	for _, rule := range rules {
		if _, err := s.repo.Get(ctx, rule.TrafficClass); err == nil {
			continue
		}
		if err := s.SetRule(ctx, rule); err != nil {
			return err
		}
	}
	return nil
}

// SetRule upserts a rule keyed by traffic class. Invalid rules are rejected
// and the prior table stays in effect.
func (s *RuleService) SetRule(ctx context.Context, rule domain.QosRule) error {
	if err := rule.Validate(); err != nil {
		return apperrors.NewInvalidRuleError(string(rule.TrafficClass))
	}
	if err := s.repo.Upsert(ctx, rule); err != nil {
		return err
	}
	s.logger.Infow("qos rule set",
		"class", rule.TrafficClass,
		"priority", rule.Priority,
		"min_mbps", rule.MinBandwidthMbps,
		"max_mbps", rule.MaxBandwidthMbps,
		"enabled", rule.Enabled,
	)
	return nil
}

// GetRules returns all rules ordered by priority descending.
func (s *RuleService) GetRules(ctx context.Context) ([]domain.QosRule, error) {
	return s.repo.List(ctx)
}

// Snapshot loads the rule table for one tick. On repository failure the
// last successfully loaded table is returned so a flaky store never stalls
// allocation.
func (s *RuleService) Snapshot(ctx context.Context) []domain.QosRule {
	rules, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Warnw("rule snapshot failed, using last known table", "error", err)
		return s.lastKnown.Load().([]domain.QosRule)
	}
	s.lastKnown.Store(rules)
	return rules
}

// QosActionFor is the advisory per-flow shaping decision: throttle above the
// rule maximum, prioritize below the minimum, otherwise maintain.
func QosActionFor(rule domain.QosRule, flow domain.Flow) domain.QosAction {
	action := domain.QosAction{FlowID: flow.ID, DSCP: rule.DSCP}
	switch {
	case flow.CurrentBandwidthMbps > rule.MaxBandwidthMbps:
		action.Action = domain.ActionThrottle
		action.TargetMbps = rule.MaxBandwidthMbps
		action.Reason = "exceeds_max"
	case flow.CurrentBandwidthMbps < rule.MinBandwidthMbps:
		action.Action = domain.ActionPrioritize
		action.TargetMbps = rule.MinBandwidthMbps
		action.Reason = "below_min"
	default:
		action.Action = domain.ActionMaintain
		action.TargetMbps = flow.CurrentBandwidthMbps
		action.Reason = "within_limits"
	}
	return action
}
