package core

import "time"

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Device linking
	RecordDeviceCodeGenerated(result string)
	RecordDeviceCodeAuthorized(authorizationTime time.Duration)
	RecordDeviceCodeValidation(result string)
	RecordPoll(result string)
	RecordDeviceUnlinked()

	// Tokens
	RecordTokenIssued(grantType string)
	RecordTokenRefresh(result string)
	RecordTokensRevoked(reason string, count int)

	// Throttling
	RecordRateLimitExceeded(scope string)

	// Identity provider
	RecordIdentityProviderCall(result string, duration time.Duration)

	// Gauges, refreshed periodically
	SetDeviceCodeCounts(active, pending int)
	SetLinkedDevicesCount(count int)
	RecordDatabaseQueryError(operation string)
}
