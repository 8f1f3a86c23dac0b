package metrics

import (
	"sync"

	"github.com/pedalsync/linkgate/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics surface the services depend on.
type Recorder = core.Recorder

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Device linking
	DeviceCodesTotal                *prometheus.CounterVec
	DeviceCodesAuthorizedTotal      prometheus.Counter
	DeviceCodeValidationTotal       *prometheus.CounterVec
	DeviceCodeAuthorizationDuration prometheus.Histogram
	DeviceCodesActive               prometheus.Gauge
	DeviceCodesPendingAuthorization prometheus.Gauge
	PollsTotal                      *prometheus.CounterVec
	DevicesLinked                   prometheus.Gauge
	DevicesUnlinkedTotal            prometheus.Counter

	// Tokens
	TokensIssuedTotal    *prometheus.CounterVec
	TokensRefreshedTotal *prometheus.CounterVec
	TokensRevokedTotal   *prometheus.CounterVec

	// Throttling
	RateLimitExceededTotal *prometheus.CounterVec

	// Identity provider
	IdentityProviderCallsTotal   *prometheus.CounterVec
	IdentityProviderCallDuration prometheus.Histogram

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Database Query Metrics
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag.
// If enabled=false, returns NoopMetrics.
// Prometheus collectors are registered only once per process.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

func initMetrics() *Metrics {
	return &Metrics{
		DeviceCodesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkgate_device_codes_total",
				Help: "Total number of device code requests",
			},
			[]string{"result"}, // created, reused, error
		),
		DeviceCodesAuthorizedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "linkgate_device_codes_authorized_total",
				Help: "Total number of device codes authorized by users",
			},
		),
		DeviceCodeValidationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkgate_device_code_validation_total",
				Help: "Total number of user code verifications",
			},
			[]string{"result"}, // valid, invalid, already_used, rate_limited
		),
		DeviceCodeAuthorizationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linkgate_device_code_authorization_duration_seconds",
				Help:    "Time between code issuance and user authorization",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
			},
		),
		DeviceCodesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "linkgate_device_codes_active",
				Help: "Current number of unexpired device codes",
			},
		),
		DeviceCodesPendingAuthorization: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "linkgate_device_codes_pending_authorization",
				Help: "Current number of device codes waiting for the user",
			},
		),
		PollsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkgate_device_polls_total",
				Help: "Total number of token polls by outcome",
			},
			[]string{"result"}, // success, authorization_pending, slow_down, expired_token, invalid_request, error
		),
		DevicesLinked: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "linkgate_devices_linked",
				Help: "Current number of linked devices",
			},
		),
		DevicesUnlinkedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "linkgate_devices_unlinked_total",
				Help: "Total number of devices unlinked by their owner",
			},
		),

		TokensIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkgate_tokens_issued_total",
				Help: "Total number of token pairs issued",
			},
			[]string{"grant_type"}, // device_code, mobile
		),
		TokensRefreshedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkgate_tokens_refreshed_total",
				Help: "Total number of refresh attempts",
			},
			[]string{"result"}, // success, invalid, device_revoked, error
		),
		TokensRevokedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkgate_tokens_revoked_total",
				Help: "Total number of refresh tokens revoked",
			},
			[]string{"reason"}, // logout, logout_all, device_unlinked, device_revoked
		),

		RateLimitExceededTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkgate_rate_limit_exceeded_total",
				Help: "Total number of requests rejected by a rate limit",
			},
			[]string{"scope"}, // verify, poll, ip
		),

		IdentityProviderCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkgate_identity_provider_calls_total",
				Help: "Total number of ID token verifications sent to the identity provider",
			},
			[]string{"result"}, // success, rejected, error
		),
		IdentityProviderCallDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linkgate_identity_provider_call_duration_seconds",
				Help:    "Latency of identity provider calls",
				Buckets: prometheus.DefBuckets,
			},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request latency in seconds",
				Buckets: []float64{
					0.001,
					0.005,
					0.010,
					0.025,
					0.050,
					0.100,
					0.250,
					0.500,
					1.0,
					2.5,
					5.0,
				},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),

		DatabaseQueryErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkgate_database_query_errors_total",
				Help: "Total number of database query errors during metric collection",
			},
			[]string{"operation"},
		),
	}
}
