package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("session expired")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrRateLimited        = fmt.Errorf("rate limited")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrSensorUnavailable  = fmt.Errorf("sensor unavailable")
	ErrUnexpectedFormat   = fmt.Errorf("unexpected response format")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// Kind tags an [Error] so callers can match failures structurally.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindUnauthenticated
	KindSessionExpired
	KindRateLimited
	KindAPI
	KindSensorUnavailable
	KindFormat
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindSessionExpired:
		return "session_expired"
	case KindRateLimited:
		return "rate_limited"
	case KindAPI:
		return "api"
	case KindSensorUnavailable:
		return "sensor_unavailable"
	case KindFormat:
		return "format"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// sentinel maps each kind onto the sentinel it satisfies for [errors.Is].
func (k Kind) sentinel() error {
	switch k {
	case KindAuth:
		return ErrAuthFailed
	case KindUnauthenticated:
		return ErrNotAuthenticated
	case KindSessionExpired:
		return ErrTokenExpired
	case KindRateLimited:
		return ErrRateLimited
	case KindAPI, KindNetwork:
		return ErrAPIRequest
	case KindSensorUnavailable:
		return ErrSensorUnavailable
	case KindFormat:
		return ErrUnexpectedFormat
	default:
		return nil
	}
}

// Error is a tagged failure. Status is the HTTP status for [KindAPI] errors.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

// NewError creates an [Error] of kind k for operation op wrapping err (which may be nil).
func NewError(k Kind, op string, err error) *Error {
	return &Error{Kind: k, Op: op, Err: err}
}

// APIError creates a [KindAPI] error for a non-success HTTP status.
func APIError(op string, status int) *Error {
	return &Error{Kind: KindAPI, Op: op, Status: status}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the [Kind] of the first [Error] in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// IsAuthKind reports whether err must propagate to the caller so the user can log in again.
func IsAuthKind(err error) bool {
	switch KindOf(err) {
	case KindAuth, KindUnauthenticated, KindSessionExpired:
		return true
	default:
		return false
	}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
