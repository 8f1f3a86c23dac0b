package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder, used when
// metrics are disabled.
type NoopMetrics struct{}

var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordDeviceCodeGenerated(result string)                    {}
func (n *NoopMetrics) RecordDeviceCodeAuthorized(authorizationTime time.Duration) {}
func (n *NoopMetrics) RecordDeviceCodeValidation(result string)                   {}
func (n *NoopMetrics) RecordPoll(result string)                                   {}
func (n *NoopMetrics) RecordDeviceUnlinked()                                      {}

func (n *NoopMetrics) RecordTokenIssued(grantType string)           {}
func (n *NoopMetrics) RecordTokenRefresh(result string)             {}
func (n *NoopMetrics) RecordTokensRevoked(reason string, count int) {}

func (n *NoopMetrics) RecordRateLimitExceeded(scope string) {}

func (n *NoopMetrics) RecordIdentityProviderCall(result string, duration time.Duration) {}

func (n *NoopMetrics) SetDeviceCodeCounts(active, pending int)   {}
func (n *NoopMetrics) SetLinkedDevicesCount(count int)           {}
func (n *NoopMetrics) RecordDatabaseQueryError(operation string) {}
