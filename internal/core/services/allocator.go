package services

import (
	"fmt"
	"math"
	"sort"

	"netqos/internal/core/domain"

	"go.uber.org/zap"
)

// DefaultHeadroomFactor is the growth margin granted to high-priority
// demand to absorb burstiness.
const DefaultHeadroomFactor = 1.2

const highPriority = 3

// Allocator divides a finite bandwidth budget across traffic classes using
// priority tiers with guaranteed minimums. Allocate is deterministic: for
// identical inputs it produces identical output.
type Allocator struct {
	headroom float64
	logger   *zap.SugaredLogger
}

func NewAllocator(headroom float64, logger *zap.SugaredLogger) *Allocator {
	if headroom <= 0 {
		headroom = DefaultHeadroomFactor
	}
	return &Allocator{headroom: headroom, logger: logger}
}

// Allocate runs the four allocation passes over the enabled rules.
//
// Pass 1 reserves each class's minimum in priority order, partially when the
// budget runs out. Pass 2 grows priority-3 classes toward demand with the
// headroom factor. Pass 3 gives priority-1 classes exactly
// min(demand, max, remaining). Pass 4 divides what is left among priority-0
// classes up to their maximum; demand beyond that is reported as throttled.
//
// A negative budget is a programming error and panics. Classes present in
// demand without a matching enabled rule are returned with a zero
// allocation so the alert evaluator can flag them.
func (al *Allocator) Allocate(demand map[domain.TrafficClass]float64, rules []domain.QosRule, totalBudget float64) ([]domain.AllocationResult, domain.AllocationSummary) {
	if totalBudget < 0 {
		panic(fmt.Sprintf("allocator: negative budget %v", totalBudget))
	}

	enabled := make([]domain.QosRule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	sortRules(enabled)

	alloc := make(map[domain.TrafficClass]float64, len(enabled))
	satisfied := make(map[domain.TrafficClass]bool, len(enabled))
	remaining := totalBudget

	// Pass 1: guarantee minimums. A class whose full minimum cannot be
	// reserved keeps whatever fits and is marked unsatisfied, unless the
	// budget itself is smaller than the minimum and was granted in full
	// (the invariant is allocated >= min(rule minimum, total budget)).
	for _, r := range enabled {
		reserve := math.Min(r.MinBandwidthMbps, remaining)
		alloc[r.TrafficClass] = reserve
		remaining -= reserve
		owed := math.Min(r.MinBandwidthMbps, totalBudget)
		satisfied[r.TrafficClass] = reserve >= owed
		if !satisfied[r.TrafficClass] && al.logger != nil {
			al.logger.Warnw("minimum bandwidth not reserved",
				"class", r.TrafficClass,
				"min_mbps", r.MinBandwidthMbps,
				"reserved_mbps", reserve,
			)
		}
	}

	// Pass 2: demand-based growth for priority-3 classes with headroom.
	for _, r := range enabled {
		if r.Priority < highPriority {
			continue
		}
		target := math.Min(demand[r.TrafficClass]*al.headroom, r.MaxBandwidthMbps)
		grow := math.Min(target-alloc[r.TrafficClass], remaining)
		if grow > 0 {
			alloc[r.TrafficClass] += grow
			remaining -= grow
		}
	}

	// Pass 3: medium priority gets exactly min(demand, max, remaining) on
	// top of its guaranteed floor.
	for _, r := range enabled {
		if r.Priority >= highPriority || r.Priority == 0 {
			continue
		}
		target := math.Min(demand[r.TrafficClass], r.MaxBandwidthMbps)
		grow := math.Min(target-alloc[r.TrafficClass], remaining)
		if grow > 0 {
			alloc[r.TrafficClass] += grow
			remaining -= grow
		}
	}

	// Pass 4: leftover budget is split across priority-0 classes up to
	// their maximum. Two rounds: an even share first, then any slack in
	// rule order.
	var leftover []domain.QosRule
	for _, r := range enabled {
		if r.Priority == 0 {
			leftover = append(leftover, r)
		}
	}
	if len(leftover) > 0 && remaining > 0 {
		share := remaining / float64(len(leftover))
		for _, r := range leftover {
			grow := math.Min(share, r.MaxBandwidthMbps-alloc[r.TrafficClass])
			if grow > 0 {
				alloc[r.TrafficClass] += grow
				remaining -= grow
			}
		}
		for _, r := range leftover {
			if remaining <= 0 {
				break
			}
			grow := math.Min(remaining, r.MaxBandwidthMbps-alloc[r.TrafficClass])
			if grow > 0 {
				alloc[r.TrafficClass] += grow
				remaining -= grow
			}
		}
	}

	results := make([]domain.AllocationResult, 0, len(enabled))
	for _, r := range enabled {
		allocated := alloc[r.TrafficClass]
		results = append(results, domain.AllocationResult{
			TrafficClass:  r.TrafficClass,
			RequestedMbps: demand[r.TrafficClass],
			AllocatedMbps: allocated,
			SatisfiedMin:  satisfied[r.TrafficClass],
			ThrottledMbps: math.Max(0, demand[r.TrafficClass]-allocated),
		})
	}

	// Demand for classes without an enabled rule is never allocated but is
	// surfaced rather than silently dropped.
	var unruled []domain.TrafficClass
	for class := range demand {
		if _, ok := alloc[class]; !ok && class != domain.ClassUnknown {
			unruled = append(unruled, class)
		}
	}
	sort.Slice(unruled, func(i, j int) bool {
		ri, rj := domain.ClassRank(unruled[i]), domain.ClassRank(unruled[j])
		if ri != rj {
			return ri < rj
		}
		return unruled[i] < unruled[j]
	})
	for _, class := range unruled {
		results = append(results, domain.AllocationResult{
			TrafficClass:  class,
			RequestedMbps: demand[class],
			SatisfiedMin:  true,
			ThrottledMbps: demand[class],
		})
	}

	totalAllocated := totalBudget - remaining
	summary := domain.AllocationSummary{
		TotalBudgetMbps:    totalBudget,
		TotalAllocatedMbps: totalAllocated,
		RemainingMbps:      remaining,
	}
	if totalBudget > 0 {
		summary.UtilizationPercent = math.Round(totalAllocated/totalBudget*1000) / 10
	}
	return results, summary
}

// sortRules orders by priority descending with the canonical class order as
// tie-break, so iteration never depends on map ordering.
func sortRules(rules []domain.QosRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		ri, rj := domain.ClassRank(rules[i].TrafficClass), domain.ClassRank(rules[j].TrafficClass)
		if ri != rj {
			return ri < rj
		}
		return rules[i].TrafficClass < rules[j].TrafficClass
	})
}
