package services

import (
	"testing"

	"netqos/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		proto    domain.Protocol
		srcPort  uint16
		dstPort  uint16
		class    domain.TrafficClass
		priority int
	}{
		{"rtmp dest port", domain.ProtocolTCP, 50000, 1935, domain.ClassVideo, 3},
		{"stun dest port", domain.ProtocolUDP, 50000, 3478, domain.ClassVideo, 3},
		{"rtp range upper bound", domain.ProtocolUDP, 50000, 6979, domain.ClassVideo, 3},
		{"sip dest port", domain.ProtocolUDP, 50000, 5060, domain.ClassVoice, 3},
		{"rtp voice range", domain.ProtocolUDP, 50000, 16390, domain.ClassVoice, 3},
		{"ssh dest port", domain.ProtocolTCP, 50000, 22, domain.ClassFile, 1},
		{"https alt dest port", domain.ProtocolTCP, 50000, 8443, domain.ClassFile, 1},
		{"dns dest port", domain.ProtocolUDP, 50000, 53, domain.ClassBackground, 0},
		{"mysql dest port", domain.ProtocolTCP, 50000, 3306, domain.ClassBackground, 0},
		{"source port matches when dest does not", domain.ProtocolTCP, 1935, 50000, domain.ClassVideo, 3},
		{"plain tcp falls back to file", domain.ProtocolTCP, 50000, 50001, domain.ClassFile, 1},
		{"plain udp falls back to voice", domain.ProtocolUDP, 50000, 50001, domain.ClassVoice, 2},
		{"other protocol is unknown", domain.ProtocolOther, 50000, 50001, domain.ClassUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, priority := Classify(tt.proto, tt.srcPort, tt.dstPort)
			assert.Equal(t, tt.class, class)
			assert.Equal(t, tt.priority, priority)
		})
	}
}

func TestClassifyDestPortWinsOverSourcePort(t *testing.T) {
	// 5060 (voice) as destination beats 1935 (video) as source: the whole
	// table is scanned for the destination port first.
	class, _ := Classify(domain.ProtocolUDP, 1935, 5060)
	assert.Equal(t, domain.ClassVoice, class)
}

func TestClassifySample(t *testing.T) {
	s := ClassifySample(domain.TrafficSample{
		Protocol: domain.ProtocolTCP,
		DestPort: 8080,
	})
	assert.Equal(t, domain.ClassFile, s.TrafficClass)
	assert.Equal(t, 1, s.Priority)

	// A producer-set class is never overridden.
	s = ClassifySample(domain.TrafficSample{
		Protocol:     domain.ProtocolTCP,
		DestPort:     8080,
		TrafficClass: domain.ClassVideo,
		Priority:     3,
	})
	assert.Equal(t, domain.ClassVideo, s.TrafficClass)
}

func TestClassifyZeroPortNeverMatches(t *testing.T) {
	class, _ := Classify(domain.ProtocolOther, 0, 0)
	assert.Equal(t, domain.ClassUnknown, class)
}
