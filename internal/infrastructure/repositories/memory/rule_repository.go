package memory

import (
	"context"
	"sort"
	"sync"

	"netqos/internal/core/domain"
	"netqos/internal/core/ports"
)

type MemoryRuleRepository struct {
	mu    sync.RWMutex
	rules map[domain.TrafficClass]domain.QosRule
}

func NewMemoryRuleRepository() ports.RuleRepository {
	return &MemoryRuleRepository{
		rules: make(map[domain.TrafficClass]domain.QosRule),
	}
}

func (r *MemoryRuleRepository) Upsert(_ context.Context, rule domain.QosRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.TrafficClass] = rule
	return nil
}

func (r *MemoryRuleRepository) List(_ context.Context) ([]domain.QosRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.QosRule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sortRules(out)
	return out, nil
}

func (r *MemoryRuleRepository) Get(_ context.Context, class domain.TrafficClass) (domain.QosRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[class]
	if !ok {
		return domain.QosRule{}, domain.ErrRuleNotFound
	}
	return rule, nil
}

// sortRules orders by priority descending, canonical class order within a
// priority.
func sortRules(rules []domain.QosRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return domain.ClassRank(rules[i].TrafficClass) < domain.ClassRank(rules[j].TrafficClass)
	})
}
