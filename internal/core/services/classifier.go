package services

import "netqos/internal/core/domain"

type portRange struct {
	lo, hi uint16
}

func (r portRange) contains(p uint16) bool {
	return p >= r.lo && p <= r.hi
}

type classEntry struct {
	class domain.TrafficClass
	ports []portRange
}

// classTable is the ordered classification table. First match wins, so the
// declaration order here is the tie-break: the table is disjoint by
// construction and must stay that way when ports are added.
var classTable = []classEntry{
	{
		class: domain.ClassVideo,
		ports: []portRange{
			{1935, 1935}, {3478, 3479}, {5004, 5005}, {8554, 8554},
			{1755, 1755}, {6970, 6979},
		},
	},
	{
		class: domain.ClassVoice,
		ports: []portRange{
			{5060, 5062}, {16384, 16396},
		},
	},
	{
		class: domain.ClassFile,
		ports: []portRange{
			{20, 22}, {25, 25}, {110, 110}, {143, 143}, {445, 445},
			{3389, 3389}, {8080, 8080}, {8443, 8443},
		},
	},
	{
		class: domain.ClassBackground,
		ports: []portRange{
			{53, 53}, {123, 123}, {161, 162}, {389, 389}, {636, 636},
			{3306, 3306}, {5432, 5432},
		},
	},
}

// Classify tags traffic with a class and its static priority. Pure and
// deterministic: the destination port is checked first across the whole
// table, then the source port, then the protocol fallback (plain TCP is
// treated as file transfer, plain UDP as voice-like media).
func Classify(proto domain.Protocol, srcPort, dstPort uint16) (domain.TrafficClass, int) {
	if class, ok := classifyPort(dstPort); ok {
		return class, domain.CanonicalPriority(class)
	}
	if class, ok := classifyPort(srcPort); ok {
		return class, domain.CanonicalPriority(class)
	}
	switch proto {
	case domain.ProtocolTCP:
		return domain.ClassFile, 1
	case domain.ProtocolUDP:
		return domain.ClassVoice, 2
	default:
		return domain.ClassUnknown, 0
	}
}

func classifyPort(port uint16) (domain.TrafficClass, bool) {
	if port == 0 {
		return domain.ClassUnknown, false
	}
	for _, entry := range classTable {
		for _, r := range entry.ports {
			if r.contains(port) {
				return entry.class, true
			}
		}
	}
	return domain.ClassUnknown, false
}

// ClassifySample fills in the class and priority of a sample when the
// producer left them unset.
func ClassifySample(s domain.TrafficSample) domain.TrafficSample {
	if s.TrafficClass != "" {
		return s
	}
	s.TrafficClass, s.Priority = Classify(s.Protocol, s.SourcePort, s.DestPort)
	return s
}
