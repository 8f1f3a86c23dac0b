package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPMetricsMiddleware creates a Gin middleware that records HTTP metrics
func HTTPMetricsMiddleware(m Recorder) gin.HandlerFunc {
	metrics, ok := m.(*Metrics)
	if !ok {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		// Skip metrics endpoint to avoid self-recording
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		c.Next()

		method := c.Request.Method
		path := normalizePath(c.FullPath()) // route pattern keeps label cardinality bounded
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).
			Observe(time.Since(start).Seconds())
	}
}

// normalizePath returns the route pattern (e.g. "/auth/devices/:id"), or
// "unknown" for requests that matched no route.
func normalizePath(fullPath string) string {
	if fullPath == "" {
		return "unknown"
	}
	return fullPath
}

// RecordDeviceCodeGenerated records a device code request.
func (m *Metrics) RecordDeviceCodeGenerated(result string) {
	m.DeviceCodesTotal.WithLabelValues(result).Inc()
}

// RecordDeviceCodeAuthorized records a successful authorization and how long
// the user took to enter the code.
func (m *Metrics) RecordDeviceCodeAuthorized(authorizationTime time.Duration) {
	m.DeviceCodesAuthorizedTotal.Inc()
	m.DeviceCodeAuthorizationDuration.Observe(authorizationTime.Seconds())
}

// RecordDeviceCodeValidation records the outcome of a user code lookup.
func (m *Metrics) RecordDeviceCodeValidation(result string) {
	m.DeviceCodeValidationTotal.WithLabelValues(result).Inc()
}

// RecordPoll records the outcome of a token poll.
func (m *Metrics) RecordPoll(result string) {
	m.PollsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordDeviceUnlinked() {
	m.DevicesUnlinkedTotal.Inc()
	m.DevicesLinked.Dec()
}

// RecordTokenIssued records a token pair issued for grantType.
func (m *Metrics) RecordTokenIssued(grantType string) {
	m.TokensIssuedTotal.WithLabelValues(grantType).Inc()
}

func (m *Metrics) RecordTokenRefresh(result string) {
	m.TokensRefreshedTotal.WithLabelValues(result).Inc()
}

// RecordTokensRevoked adds count revoked refresh tokens. Zero is ignored.
func (m *Metrics) RecordTokensRevoked(reason string, count int) {
	if count <= 0 {
		return
	}
	m.TokensRevokedTotal.WithLabelValues(reason).Add(float64(count))
}

func (m *Metrics) RecordRateLimitExceeded(scope string) {
	m.RateLimitExceededTotal.WithLabelValues(scope).Inc()
}

func (m *Metrics) RecordIdentityProviderCall(result string, duration time.Duration) {
	m.IdentityProviderCallsTotal.WithLabelValues(result).Inc()
	m.IdentityProviderCallDuration.Observe(duration.Seconds())
}

// SetDeviceCodeCounts sets the device-code gauges (for periodic updates)
func (m *Metrics) SetDeviceCodeCounts(active, pending int) {
	m.DeviceCodesActive.Set(float64(active))
	m.DeviceCodesPendingAuthorization.Set(float64(pending))
}

// SetLinkedDevicesCount sets the linked-devices gauge (for periodic updates)
func (m *Metrics) SetLinkedDevicesCount(count int) {
	m.DevicesLinked.Set(float64(count))
}

// RecordDatabaseQueryError records a database query error during metric collection
func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}
