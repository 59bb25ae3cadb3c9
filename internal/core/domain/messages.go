package domain

import "time"

// Broadcast channel names for filtered subscriptions.
const (
	ChannelTraffic    = "traffic"
	ChannelByType     = "traffic-by-type"
	ChannelAllocation = "allocation"
	ChannelAlerts     = "alerts"
)

// OverallStats summarizes the engine state inside a TrafficUpdate.
type OverallStats struct {
	TotalFlows   int   `json:"totalFlows"`
	TotalPackets int64 `json:"totalPackets"`
	ActiveAlerts int   `json:"activeAlerts"`
}

// TrafficUpdate is the overall per-tick message on the traffic channel.
type TrafficUpdate struct {
	Type      string       `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Flows     []Flow       `json:"flows"`
	Alerts    []Alert      `json:"alerts"`
	Stats     OverallStats `json:"stats"`
}

// ClassBreakdown is one class's entry in a TrafficByType message.
type ClassBreakdown struct {
	Count             int     `json:"count"`
	AvgThroughputMbps float64 `json:"avgThroughputMbps"`
}

// TrafficByType carries the per-class statistics breakdown.
type TrafficByType struct {
	Type      string                          `json:"type"`
	Timestamp time.Time                       `json:"timestamp"`
	PerClass  map[TrafficClass]ClassBreakdown `json:"perClass"`
}

// AllocationUpdate carries one tick's allocation decisions.
type AllocationUpdate struct {
	Type        string             `json:"type"`
	Timestamp   time.Time          `json:"timestamp"`
	Allocations []AllocationResult `json:"allocations"`
	Summary     AllocationSummary  `json:"summary"`
	Actions     []QosAction        `json:"actions,omitempty"`
}

// AlertsUpdate carries alerts raised during a tick.
type AlertsUpdate struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Alerts    []Alert   `json:"alerts"`
}
