package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"

	"triage/internal/models"
)

// RetryStrategy decides how long to wait after a failed attempt.
// A negative duration means stop.
type RetryStrategy interface {
	NextBackoff(attempt int) time.Duration
}

// ExponentialJitter waits a random duration between BaseDelay and
// min(MaxDelay, BaseDelay*2^(attempt-1)). attempt is 1-based.
type ExponentialJitter struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (s *ExponentialJitter) NextBackoff(attempt int) time.Duration {
	if s.MaxAttempts <= 0 || attempt >= s.MaxAttempts {
		return -1
	}
	ceiling := s.BaseDelay << (attempt - 1)
	if ceiling > s.MaxDelay || ceiling < s.BaseDelay {
		ceiling = s.MaxDelay
	}
	if ceiling <= s.BaseDelay {
		return s.BaseDelay
	}
	return s.BaseDelay + rand.N(ceiling-s.BaseDelay+1)
}

// RetryingService retries transient failures of the wrapped provider.
type RetryingService struct {
	next     CompletionService
	strategy RetryStrategy
}

// NewRetryingService wraps next. A nil strategy uses 3 attempts between
// 1s and 10s.
func NewRetryingService(next CompletionService, strategy RetryStrategy) *RetryingService {
	if strategy == nil {
		strategy = &ExponentialJitter{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
	}
	return &RetryingService{next: next, strategy: strategy}
}

func (s *RetryingService) Name() string           { return s.next.Name() }
func (s *RetryingService) ModelName() string      { return s.next.ModelName() }
func (s *RetryingService) Status() ProviderStatus { return s.next.Status() }

// Complete calls the wrapped provider until it succeeds, returns a
// non-transient error or the strategy gives up. Failures are returned as
// *models.ExternalServiceError.
func (s *RetryingService) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	attempt := 0
	for {
		attempt++
		out, err := s.next.Complete(ctx, req)
		if err == nil {
			return out, nil
		}
		fail := &models.ExternalServiceError{Provider: s.next.Name(), Attempts: attempt, Err: err}

		if ctx.Err() != nil || !IsRetriable(err) {
			return Completion{}, fail
		}
		wait := s.strategy.NextBackoff(attempt)
		if wait < 0 {
			return Completion{}, fail
		}

		log.Warnf("%s %s call failed (attempt %d), retrying in %s: %v", s.next.Name(), req.Operation, attempt, wait, err)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			fail.Err = fmt.Errorf("%w (retry wait aborted: %w)", err, ctx.Err())
			return Completion{}, fail
		}
	}
}

var transientMarkers = []string{
	"503", "429", "UNAVAILABLE", "RESOURCE_EXHAUSTED", "overloaded", "timeout",
	"code = Unavailable", "code = ResourceExhausted", "code = DeadlineExceeded",
}

// IsRetriable reports whether err looks like a transient failure of the
// remote service: rate limiting, 5xx responses or network timeouts.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrProviderDisabled) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return transientStatus(reqErr.HTTPStatusCode)
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return transientStatus(gErr.Code)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	msg := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func transientStatus(code int) bool {
	return code == 429 || code >= 500
}

var _ CompletionService = (*RetryingService)(nil)
