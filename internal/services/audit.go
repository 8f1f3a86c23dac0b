package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pedalsync/linkgate/internal/models"
	"github.com/pedalsync/linkgate/internal/store"
	"github.com/pedalsync/linkgate/internal/util"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const auditBatchSize = 100

// AuditLogEntry represents the data needed to create an audit log entry
type AuditLogEntry struct {
	EventType    models.EventType
	Severity     models.EventSeverity
	ActorUserID  string
	ResourceType models.ResourceType
	ResourceID   string
	ResourceName string
	Action       string
	Details      models.AuditDetails
	Success      bool
	ErrorMessage string
}

// AuditService writes audit events in batches from a background worker.
// A nil *AuditService is valid and records nothing.
type AuditService struct {
	store   *store.Store
	enabled bool
	clock   clockwork.Clock
	log     zerolog.Logger

	logChan chan *models.AuditLog

	batchBuffer []*models.AuditLog
	batchMutex  sync.Mutex
	batchTicker clockwork.Ticker

	wg         sync.WaitGroup
	shutdownCh chan struct{}
	closeOnce  sync.Once
}

// NewAuditService creates a new audit service and starts its worker when enabled.
func NewAuditService(
	s *store.Store,
	enabled bool,
	bufferSize int,
	clock clockwork.Clock,
	log zerolog.Logger,
) *AuditService {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	service := &AuditService{
		store:       s,
		enabled:     enabled,
		clock:       clock,
		log:         log,
		logChan:     make(chan *models.AuditLog, bufferSize),
		batchBuffer: make([]*models.AuditLog, 0, auditBatchSize),
		shutdownCh:  make(chan struct{}),
	}

	if enabled {
		service.batchTicker = clock.NewTicker(time.Second)
		service.wg.Add(1)
		go service.worker()
		log.Info().Int("buffer_size", bufferSize).Msg("audit service started")
	} else {
		log.Info().Msg("audit service is disabled")
	}

	return service
}

func (s *AuditService) worker() {
	defer s.wg.Done()

	for {
		select {
		case entry := <-s.logChan:
			s.addToBatch(entry)

		case <-s.batchTicker.Chan():
			s.flushBatch()

		case <-s.shutdownCh:
			// Drain whatever is still queued before the final flush.
			for {
				select {
				case entry := <-s.logChan:
					s.addToBatch(entry)
				default:
					s.flushBatch()
					return
				}
			}
		}
	}
}

func (s *AuditService) addToBatch(entry *models.AuditLog) {
	s.batchMutex.Lock()
	defer s.batchMutex.Unlock()

	s.batchBuffer = append(s.batchBuffer, entry)
	if len(s.batchBuffer) >= auditBatchSize {
		s.flushBatchUnsafe()
	}
}

func (s *AuditService) flushBatch() {
	s.batchMutex.Lock()
	defer s.batchMutex.Unlock()
	s.flushBatchUnsafe()
}

// flushBatchUnsafe writes the buffer; the caller must hold batchMutex.
func (s *AuditService) flushBatchUnsafe() {
	if len(s.batchBuffer) == 0 {
		return
	}

	toWrite := make([]*models.AuditLog, len(s.batchBuffer))
	copy(toWrite, s.batchBuffer)
	s.batchBuffer = s.batchBuffer[:0]

	if err := s.store.CreateAuditLogBatch(context.Background(), toWrite); err != nil {
		s.log.Error().Err(err).Int("count", len(toWrite)).Msg("failed to write audit log batch")
	}
}

func (s *AuditService) build(ctx context.Context, entry AuditLogEntry) *models.AuditLog {
	if entry.Severity == "" {
		entry.Severity = models.SeverityInfo
	}
	now := s.clock.Now().UTC()

	return &models.AuditLog{
		ID:            uuid.New().String(),
		EventType:     entry.EventType,
		EventTime:     now,
		Severity:      entry.Severity,
		ActorUserID:   entry.ActorUserID,
		ActorIP:       util.GetIPFromContext(ctx),
		ResourceType:  entry.ResourceType,
		ResourceID:    entry.ResourceID,
		ResourceName:  entry.ResourceName,
		Action:        entry.Action,
		Details:       maskSensitiveDetails(entry.Details),
		Success:       entry.Success,
		ErrorMessage:  entry.ErrorMessage,
		UserAgent:     util.GetUserAgentFromContext(ctx),
		RequestPath:   util.GetRequestPathFromContext(ctx),
		RequestMethod: util.GetRequestMethodFromContext(ctx),
		CreatedAt:     now,
	}
}

// Log records an audit log entry asynchronously. When the buffer is full
// the event is dropped with a warning rather than blocking the request.
func (s *AuditService) Log(ctx context.Context, entry AuditLogEntry) {
	if s == nil || !s.enabled {
		return
	}

	select {
	case s.logChan <- s.build(ctx, entry):
	default:
		s.log.Warn().
			Str("event_type", string(entry.EventType)).
			Str("action", entry.Action).
			Msg("audit log buffer full, dropping event")
	}
}

// LogSync writes an audit log entry immediately.
func (s *AuditService) LogSync(ctx context.Context, entry AuditLogEntry) error {
	if s == nil || !s.enabled {
		return nil
	}
	return s.store.CreateAuditLog(ctx, s.build(ctx, entry))
}

// CleanupOldLogs deletes audit logs older than the retention period
func (s *AuditService) CleanupOldLogs(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.clock.Now().UTC().Add(-retention)
	return s.store.DeleteOldAuditLogs(ctx, cutoff)
}

// Shutdown flushes pending events and stops the worker.
func (s *AuditService) Shutdown(ctx context.Context) error {
	if s == nil || !s.enabled {
		return nil
	}

	s.closeOnce.Do(func() {
		s.batchTicker.Stop()
		close(s.shutdownCh)
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("audit service shut down gracefully")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit service shutdown timeout: %w", ctx.Err())
	}
}

// maskSensitiveDetails masks sensitive information in audit log details
func maskSensitiveDetails(details models.AuditDetails) models.AuditDetails {
	if details == nil {
		return details
	}

	masked := make(models.AuditDetails, len(details))
	for key, value := range details {
		if isSensitiveField(key) {
			masked[key] = "***REDACTED***"
			continue
		}

		if isPartialMaskField(key) {
			if str, ok := value.(string); ok && len(str) > 12 {
				masked[key] = str[:8] + "..." + str[len(str)-4:]
				continue
			}
		}

		masked[key] = value
	}

	return masked
}

func isSensitiveField(key string) bool {
	key = strings.ToLower(key)
	for _, field := range []string{"token", "secret", "password"} {
		if strings.Contains(key, field) {
			return true
		}
	}
	return false
}

func isPartialMaskField(key string) bool {
	key = strings.ToLower(key)
	return strings.Contains(key, "device_code")
}
