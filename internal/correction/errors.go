package correction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackzampolin/redline/internal/providers"
)

// ServiceError means the correction service answered but not successfully.
type ServiceError struct {
	Provider   string
	StatusCode int // 0 when the service answered without usable content
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("correction service error: %v", e.Err)
	}
	return fmt.Sprintf("correction service returned status %d: %v", e.StatusCode, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// TimeoutError means no answer arrived within the service timeout.
type TimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("correction service timed out after %s", e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// TransportError means the service could not be reached.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("correction service unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// classifyError maps a provider failure onto the correction error taxonomy.
func classifyError(err error, timeout time.Duration) error {
	var httpErr *providers.HTTPError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &TimeoutError{Timeout: timeout, Err: err}
	case errors.As(err, &httpErr):
		return &ServiceError{Provider: httpErr.Provider, StatusCode: httpErr.StatusCode, Err: err}
	case errors.Is(err, providers.ErrEmptyResponse):
		return &ServiceError{Err: err}
	default:
		return &TransportError{Err: err}
	}
}

// ErrorKind names the taxonomy bucket of err for logs and metrics.
func ErrorKind(err error) string {
	var (
		svc *ServiceError
		to  *TimeoutError
		tr  *TransportError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &to):
		return "timeout"
	case errors.As(err, &svc):
		return "service"
	case errors.As(err, &tr):
		return "transport"
	default:
		return "unknown"
	}
}
