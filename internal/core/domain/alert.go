package domain

import "time"

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type AlertID string

// Alert is raised by the evaluator on policy violations. Only Resolved is
// ever mutated after creation.
type Alert struct {
	ID            AlertID   `json:"id"`
	Severity      Severity  `json:"severity"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	RelatedFlowID FlowID    `json:"relatedFlowId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	Resolved      bool      `json:"resolved"`
}

// DedupeKey identifies alerts that are the same violation repeating across
// ticks; used with the cooldown window.
func (a Alert) DedupeKey() string {
	return string(a.Severity) + "|" + a.Title + "|" + string(a.RelatedFlowID)
}
