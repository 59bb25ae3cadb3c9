package domain

import "time"

// TrafficClass identifies the category a flow or sample belongs to.
type TrafficClass string

const (
	ClassVideo      TrafficClass = "video"
	ClassVoice      TrafficClass = "voice"
	ClassFile       TrafficClass = "file"
	ClassBackground TrafficClass = "background"
	ClassUnknown    TrafficClass = "unknown"
)

// ClassOrder is the canonical declaration order. Allocation ties within the
// same priority are broken by this order.
var ClassOrder = []TrafficClass{ClassVideo, ClassVoice, ClassFile, ClassBackground}

// CanonicalPriority returns the static priority for a traffic class
// (video/voice 3, file 1, background/unknown 0).
func CanonicalPriority(class TrafficClass) int {
	switch class {
	case ClassVideo, ClassVoice:
		return 3
	case ClassFile:
		return 1
	default:
		return 0
	}
}

// ClassRank returns the position of class within ClassOrder, with unknown
// classes ranked last. Lower rank wins ties.
func ClassRank(class TrafficClass) int {
	for i, c := range ClassOrder {
		if c == class {
			return i
		}
	}
	return len(ClassOrder)
}

// Protocol is the transport protocol of a sample.
type Protocol string

const (
	ProtocolTCP   Protocol = "tcp"
	ProtocolUDP   Protocol = "udp"
	ProtocolOther Protocol = "other"
)

// TrafficSample is one observed packet group, produced externally and
// immutable once recorded.
type TrafficSample struct {
	Timestamp      time.Time    `json:"timestamp"`
	SourceEndpoint string       `json:"sourceEndpoint"`
	DestEndpoint   string       `json:"destEndpoint"`
	Protocol       Protocol     `json:"protocol"`
	SourcePort     uint16       `json:"sourcePort"`
	DestPort       uint16       `json:"destPort"`
	TrafficClass   TrafficClass `json:"trafficClass"`
	PacketSize     int          `json:"packetSize"`
	ThroughputMbps float64      `json:"throughputMbps,omitempty"`
	Priority       int          `json:"priority"`
}

type FlowID string

// Flow is a tracked (source, destination, class) traffic stream.
// CurrentBandwidthMbps and LastSeenAt are written by the aggregator each
// tick; AllocatedBandwidthMbps only by the allocation engine.
type Flow struct {
	ID                     FlowID       `json:"id"`
	SourceEndpoint         string       `json:"sourceEndpoint"`
	DestEndpoint           string       `json:"destEndpoint"`
	TrafficClass           TrafficClass `json:"trafficClass"`
	CurrentBandwidthMbps   float64      `json:"currentBandwidthMbps"`
	AllocatedBandwidthMbps float64      `json:"allocatedBandwidthMbps,omitempty"`
	PacketCount            int64        `json:"packetCount"`
	ByteCount              int64        `json:"byteCount"`
	StartedAt              time.Time    `json:"startedAt"`
	LastSeenAt             time.Time    `json:"lastSeenAt"`
}

// ClassStats is the per-class rollup computed every tick.
type ClassStats struct {
	TrafficClass      TrafficClass `json:"trafficClass"`
	Count             int          `json:"count"`
	AvgThroughputMbps float64      `json:"avgThroughputMbps"`
	PacketCount       int64        `json:"packetCount"`
	ByteCount         int64        `json:"byteCount"`
}
