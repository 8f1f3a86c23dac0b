package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// GaugeUpdater periodically copies cached counts into the gauges.
type GaugeUpdater struct {
	counts   *CacheWrapper
	recorder Recorder
	interval time.Duration
	clock    clockwork.Clock
	log      zerolog.Logger

	mu             sync.Mutex
	lastErrorTimes map[string]time.Time
	errorWindow    time.Duration
}

// NewGaugeUpdater creates an updater. The cache TTL equals interval so each
// tick sees at most one database query per count across all instances.
func NewGaugeUpdater(
	counts *CacheWrapper,
	recorder Recorder,
	interval time.Duration,
	clock clockwork.Clock,
	log zerolog.Logger,
) *GaugeUpdater {
	return &GaugeUpdater{
		counts:         counts,
		recorder:       recorder,
		interval:       interval,
		clock:          clock,
		log:            log,
		lastErrorTimes: make(map[string]time.Time),
		errorWindow:    5 * time.Minute,
	}
}

// Update refreshes every gauge once.
func (u *GaugeUpdater) Update(ctx context.Context) {
	active, err := u.counts.GetActiveDeviceCodesCount(ctx, u.interval)
	if err != nil {
		u.queryFailed("count_active_device_codes", err)
		active = 0
	}
	pending, err := u.counts.GetPendingDeviceCodesCount(ctx, u.interval)
	if err != nil {
		u.queryFailed("count_pending_device_codes", err)
		pending = 0
	}
	u.recorder.SetDeviceCodeCounts(int(active), int(pending))

	linked, err := u.counts.GetLinkedDevicesCount(ctx, u.interval)
	if err != nil {
		u.queryFailed("count_devices", err)
		return
	}
	u.recorder.SetLinkedDevicesCount(int(linked))
}

// Run updates the gauges immediately and then on every tick until ctx is done.
func (u *GaugeUpdater) Run(ctx context.Context) {
	u.Update(ctx)

	ticker := u.clock.NewTicker(u.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			u.Update(ctx)
		}
	}
}

// queryFailed logs at most once per errorWindow per operation; a database
// outage would otherwise log on every tick.
func (u *GaugeUpdater) queryFailed(operation string, err error) {
	u.recorder.RecordDatabaseQueryError(operation)

	now := u.clock.Now()
	u.mu.Lock()
	last, seen := u.lastErrorTimes[operation]
	if seen && now.Sub(last) < u.errorWindow {
		u.mu.Unlock()
		return
	}
	u.lastErrorTimes[operation] = now
	u.mu.Unlock()

	u.log.Warn().
		Err(err).
		Str("operation", operation).
		Dur("suppressed_for", u.errorWindow).
		Msg("gauge query failed")
}
