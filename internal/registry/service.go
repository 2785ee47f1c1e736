package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"taxid/internal/platform/metrics"
	"taxid/pkg/afm"
	dErrors "taxid/pkg/domain-errors"
	"taxid/pkg/platform/circuit"
	"taxid/pkg/requestcontext"
)

const defaultLookupTimeout = 10 * time.Second

// Lookup outcomes, used as metric labels.
const (
	outcomeOK           = "ok"
	outcomeValidation   = "validation_error"
	outcomeServiceError = "service_error"
	outcomeTimeout      = "timeout"
	outcomeUnavailable  = "unavailable"
	outcomeCircuitOpen  = "circuit_open"
	outcomeCancelled    = "cancelled"
	outcomeError        = "error"
)

// Service validates both identifiers and then queries the registry, applying
// the caller-side policy: per-call timeout, circuit breaker, metrics and
// optional minimisation.
type Service struct {
	client    Client
	breaker   *circuit.Breaker
	metrics   *metrics.Metrics
	logger    *slog.Logger
	timeout   time.Duration
	regulated bool
}

// Option configures a Service.
type Option func(*Service)

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) { s.breaker = b }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRegulatedMode strips personal details from returned records.
func WithRegulatedMode(regulated bool) Option {
	return func(s *Service) { s.regulated = regulated }
}

// NewService builds a Service. A nil client disables lookups; validation
// still works.
func NewService(client Client, opts ...Option) *Service {
	s := &Service{
		client:  client,
		breaker: circuit.New("gsis"),
		logger:  slog.Default(),
		timeout: defaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateNumber validates a single raw number and records the outcome.
func (s *Service) ValidateNumber(raw string) (afm.AFM, error) {
	number, err := afm.Parse(raw)
	if err != nil {
		var verr *afm.ValidationError
		if errors.As(err, &verr) {
			s.metrics.IncrementValidation(string(verr.Kind))
		}
		return "", err
	}
	s.metrics.IncrementValidation("valid")
	return number, nil
}

// Lookup validates calledFor and calledBy and, when both are valid, fetches
// the registration record of calledFor. Validation failures are returned as
// CodeValidation errors wrapping the *afm.ValidationError and the registry is
// not contacted.
func (s *Service) Lookup(ctx context.Context, calledFor, calledBy string) (*Registration, error) {
	requestID := requestcontext.RequestID(ctx)

	forNumber, err := s.ValidateNumber(calledFor)
	if err != nil {
		s.metrics.IncrementLookup(outcomeValidation)
		return nil, validationError("called_for", err)
	}
	byNumber, err := s.ValidateNumber(calledBy)
	if err != nil {
		s.metrics.IncrementLookup(outcomeValidation)
		return nil, validationError("called_by", err)
	}

	if s.client == nil {
		s.metrics.IncrementLookup(outcomeUnavailable)
		return nil, notConfigured()
	}
	if !s.breaker.Allow() {
		s.metrics.IncrementLookup(outcomeCircuitOpen)
		s.logger.WarnContext(ctx, "registry lookup rejected, circuit open",
			"request_id", requestID,
			"breaker", s.breaker.Name(),
		)
		return nil, dErrors.Wrap(ErrCircuitOpen, dErrors.CodeUnavailable, "registry temporarily unavailable")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	record, err := s.client.Lookup(callCtx, LookupRequest{CalledFor: forNumber, CalledBy: byNumber})
	elapsed := time.Since(start)
	s.metrics.ObserveLookupLatency(elapsed)

	if err != nil {
		return nil, s.handleLookupError(ctx, forNumber, err, elapsed)
	}
	s.recordSuccess(ctx)
	s.metrics.IncrementLookup(outcomeOK)

	s.logger.InfoContext(ctx, "registry lookup completed",
		"request_id", requestID,
		"called_for", forNumber,
		"active", record.IsActive(),
		"call_seq_id", record.CallSeqID,
		"duration_ms", elapsed.Milliseconds(),
	)

	if s.regulated {
		minimized := record.Minimized()
		return &minimized, nil
	}
	return record, nil
}

// Version returns the registry service version.
func (s *Service) Version(ctx context.Context) (string, error) {
	if s.client == nil {
		return "", notConfigured()
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	version, err := s.client.Version(callCtx)
	if err != nil {
		return "", translateProviderError(err)
	}
	return version, nil
}

func (s *Service) handleLookupError(ctx context.Context, number afm.AFM, err error, elapsed time.Duration) error {
	requestID := requestcontext.RequestID(ctx)

	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		// the registry answered; the transport is healthy
		s.recordSuccess(ctx)
		s.metrics.IncrementLookup(outcomeServiceError)
		s.logger.InfoContext(ctx, "registry reported an error",
			"request_id", requestID,
			"called_for", number,
			"service_code", svcErr.Code,
			"duration_ms", elapsed.Milliseconds(),
		)
		return dErrors.Wrap(svcErr, dErrors.CodeRegistry, svcErr.Description)
	}

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		// the caller hung up; says nothing about registry health
		s.breaker.Release()
		s.metrics.IncrementLookup(outcomeCancelled)
		s.logger.InfoContext(ctx, "registry lookup cancelled by caller",
			"request_id", requestID,
			"called_for", number,
			"duration_ms", elapsed.Milliseconds(),
		)
		return dErrors.Wrap(err, dErrors.CodeCancelled, "request cancelled")
	}

	s.recordFailure(ctx)
	translated := translateProviderError(err)
	switch {
	case dErrors.HasCode(translated, dErrors.CodeTimeout):
		s.metrics.IncrementLookup(outcomeTimeout)
	case dErrors.HasCode(translated, dErrors.CodeUnavailable):
		s.metrics.IncrementLookup(outcomeUnavailable)
	default:
		s.metrics.IncrementLookup(outcomeError)
	}
	s.logger.ErrorContext(ctx, "registry lookup failed",
		"request_id", requestID,
		"called_for", number,
		"category", GetCategory(err),
		"retryable", IsRetryable(err),
		"duration_ms", elapsed.Milliseconds(),
		"error", err,
	)
	return translated
}

func (s *Service) recordSuccess(ctx context.Context) {
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "registry circuit closed", "breaker", s.breaker.Name())
	}
	s.metrics.SetBreakerOpen(s.breaker.IsOpen())
}

func (s *Service) recordFailure(ctx context.Context) {
	if _, change := s.breaker.RecordFailure(); change.Opened {
		s.logger.WarnContext(ctx, "registry circuit opened", "breaker", s.breaker.Name())
	}
	s.metrics.SetBreakerOpen(s.breaker.IsOpen())
}

func notConfigured() error {
	return dErrors.Wrap(ErrNotConfigured, dErrors.CodeUnavailable, "registry lookups are not configured")
}

func validationError(field string, err error) error {
	reason := "invalid"
	var verr *afm.ValidationError
	if errors.As(err, &verr) {
		reason = string(verr.Kind)
	}
	return dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("%s: %s", field, reason))
}

func translateProviderError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "registry did not respond in time")
	}
	switch GetCategory(err) {
	case ErrorTimeout:
		return dErrors.Wrap(err, dErrors.CodeTimeout, "registry did not respond in time")
	case ErrorProviderOutage:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "registry unavailable")
	case ErrorAuthentication, ErrorBadData, ErrorContractMismatch:
		return dErrors.Wrap(err, dErrors.CodeRegistry, "registry call failed")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "registry lookup failed")
	}
}
