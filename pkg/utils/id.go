package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateFlowID generates a unique flow ID.
func GenerateFlowID() string {
	return GenerateID("flow")
}

// GenerateSubscriberID generates a unique subscriber ID.
func GenerateSubscriberID() string {
	return GenerateID("sub")
}

// GenerateAlertID generates a unique alert ID.
func GenerateAlertID() string {
	return GenerateID("alert")
}

// GenerateID generates a prefixed unique ID.
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// GenerateRequestID generates a unique request ID for API tracing.
func GenerateRequestID() string {
	return fmt.Sprintf("req_%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}
