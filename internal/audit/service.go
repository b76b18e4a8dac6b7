package audit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ecoaudit/internal/audit/metrics"
	dErrors "ecoaudit/pkg/domain-errors"
	"ecoaudit/pkg/platform/sentinel"
	"ecoaudit/pkg/requestcontext"
)

// Ledger is the storage the service writes to and reads from. It is
// satisfied by the memory and postgres stores; tests swap in whichever sink
// they need.
type Ledger interface {
	Append(ctx context.Context, event *Event) error
	Query(ctx context.Context, filter Filter, page Page) ([]Event, error)
}

// Mirror fans persisted events out to a side channel (Kafka). Publish must
// not block; it reports whether the event was accepted.
type Mirror interface {
	Publish(ctx context.Context, event Event) bool
}

// RecentCache holds the unfiltered first page for the dashboard hot path.
// GetRecent returns sentinel.ErrNotFound on a miss.
type RecentCache interface {
	GetRecent(ctx context.Context, limit int) ([]Event, error)
	SetRecent(ctx context.Context, limit int, events []Event) error
	Invalidate(ctx context.Context) error
}

// Service is the single entry point calling code uses to record and query
// administrative activity. It is stateless and safe for concurrent use; the
// vocabularies it enforces are package-level read-only data.
type Service struct {
	ledger  Ledger
	logger  *slog.Logger
	metrics *metrics.Metrics
	mirror  Mirror
	cache   RecentCache
	tracer  trace.Tracer

	defaultLimit int
	maxLimit     int
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMirror attaches a fan-out sink for persisted events.
func WithMirror(m Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

// WithRecentCache attaches the dashboard first-page cache.
func WithRecentCache(c RecentCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithPageLimits overrides the default and maximum query page sizes.
func WithPageLimits(def, max int) Option {
	return func(s *Service) {
		if def > 0 {
			s.defaultLimit = def
		}
		if max > 0 {
			s.maxLimit = max
		}
	}
}

// NewService constructs the audit service over a ledger.
func NewService(ledger Ledger, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		ledger:       ledger,
		logger:       logger,
		tracer:       otel.Tracer("ecoaudit"),
		defaultLimit: 50,
		maxLimit:     500,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordRequest describes one administrative action to be appended to the
// ledger. An empty AdminID records a system-initiated action. IPAddress and
// UserAgent fall back to the request context when unset.
type RecordRequest struct {
	AdminID    string
	Action     Action
	TargetType string
	TargetID   string
	TargetName string
	Result     Result
	Details    string
	Reason     string
	IPAddress  string
	UserAgent  string
}

// Record validates, normalizes, and durably appends exactly one event,
// returning the persisted record with its assigned id. A failed append is
// always surfaced to the caller: an audit write that silently fails would
// defeat the point of the ledger. Retry and backpressure stay with the
// caller; this is a logging primitive, not a delivery bus.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*Event, error) {
	ctx, span := s.tracer.Start(ctx, "audit.record",
		trace.WithAttributes(
			attribute.String("audit.action", string(req.Action)),
			attribute.String("audit.target_type", req.TargetType),
		))
	defer span.End()

	event, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Append(ctx, event); err != nil {
		if s.metrics != nil {
			s.metrics.AppendFailures.Inc()
		}
		s.logger.ErrorContext(ctx, "CRITICAL: audit append failed",
			"action", event.Action,
			"target_type", event.TargetType,
			"target_id", event.TargetID,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "append audit event")
	}

	if s.metrics != nil {
		s.metrics.IncRecorded(string(event.Result))
	}
	s.invalidateCache(ctx)
	s.publishToMirror(ctx, *event)

	s.logger.InfoContext(ctx, "audit event recorded",
		"event_id", event.ID,
		"action", event.Action,
		"target_type", event.TargetType,
		"target_id", event.TargetID,
		"result", event.Result,
		"admin_id", adminOrSystem(event.AdminID),
		"request_id", requestcontext.RequestID(ctx),
	)
	return event, nil
}

// validate enforces the data-model invariants and builds the event to
// persist. Timestamp comes from the request-scoped clock so tests can pin it.
func (s *Service) validate(ctx context.Context, req RecordRequest) (*Event, error) {
	if !req.Action.Valid() {
		s.reject("action")
		return nil, dErrors.New(dErrors.CodeInvalidAction,
			"unknown action "+quote(req.Action)+"; use \"other\" with details for unlisted kinds")
	}

	required := []struct {
		field string
		value string
	}{
		{"target_type", req.TargetType},
		{"target_id", req.TargetID},
		{"target_name", req.TargetName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			s.reject("input")
			return nil, dErrors.New(dErrors.CodeInvalidInput, r.field+" is required")
		}
	}

	result := req.Result
	if result == "" {
		result = ResultSuccess
	}
	if !result.Valid() {
		s.reject("input")
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown result "+quote(result))
	}

	ip := req.IPAddress
	if ip == "" {
		ip = requestcontext.ClientIP(ctx)
	}
	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = requestcontext.UserAgent(ctx)
	}

	return &Event{
		AdminID:    req.AdminID,
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		TargetName: req.TargetName,
		Result:     result,
		Details:    req.Details,
		Reason:     req.Reason,
		IPAddress:  ip,
		UserAgent:  userAgent,
		Timestamp:  requestcontext.Now(ctx),
	}, nil
}

// Query translates the filter into a ledger query with the default ordering
// (timestamp descending, id descending). An empty result is a normal
// outcome, never an error.
func (s *Service) Query(ctx context.Context, filter Filter, page Page) ([]Event, error) {
	ctx, span := s.tracer.Start(ctx, "audit.query")
	defer span.End()

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.QueryDuration.Observe(time.Since(start).Seconds())
		}
	}()
	if s.metrics != nil {
		s.metrics.QueriesTotal.Inc()
	}

	if page.Limit <= 0 {
		page.Limit = s.defaultLimit
	}
	if page.Limit > s.maxLimit {
		page.Limit = s.maxLimit
	}

	cacheable := s.cache != nil && filter.IsZero() && page.Cursor == nil
	if cacheable {
		if events, err := s.cache.GetRecent(ctx, page.Limit); err == nil {
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
			}
			return events, nil
		} else if errors.Is(err, sentinel.ErrNotFound) {
			if s.metrics != nil {
				s.metrics.CacheMisses.Inc()
			}
		} else {
			s.logger.WarnContext(ctx, "recent cache read failed", "error", err)
		}
	}

	events, err := s.ledger.Query(ctx, filter, page)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "audit query timed out")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "query audit events")
	}
	if events == nil {
		events = []Event{}
	}

	if cacheable {
		if err := s.cache.SetRecent(ctx, page.Limit, events); err != nil {
			s.logger.WarnContext(ctx, "recent cache write failed", "error", err)
		}
	}
	return events, nil
}

func (s *Service) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "recent cache invalidation failed", "error", err)
	}
}

func (s *Service) publishToMirror(ctx context.Context, event Event) {
	if s.mirror == nil {
		return
	}
	if s.mirror.Publish(ctx, event) {
		if s.metrics != nil {
			s.metrics.MirrorPublished.Inc()
		}
	} else if s.metrics != nil {
		s.metrics.MirrorDropped.Inc()
	}
}

func (s *Service) reject(reason string) {
	if s.metrics != nil {
		s.metrics.IncRejected(reason)
	}
}

func adminOrSystem(adminID string) string {
	if adminID == "" {
		return "system"
	}
	return adminID
}

// quote wraps a vocabulary value in quotes for error messages.
func quote[T ~string](v T) string {
	return `"` + string(v) + `"`
}
