package serrors

import (
	"errors"
	"fmt"
	"time"
)

// Kind partitions the closed set of error categories the core surfaces.
type Kind string

const (
	KindUnauthenticated     Kind = "UNAUTHENTICATED"
	KindPermissionDenied    Kind = "AUTHZ_FORBIDDEN"
	KindNotFound            Kind = "NOT_FOUND"
	KindInvariantViolated   Kind = "INVARIANT_VIOLATED"
	KindConflictDuplicate   Kind = "CONFLICT_DUPLICATE_EXTERNAL"
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindThrottled           Kind = "THROTTLED"
)

// BaseError is the structured error carried across module boundaries.
type BaseError struct {
	Code         string
	Kind         Kind
	Message      string
	LocaleKey    string
	TemplateData map[string]string

	// ExistingID is set on duplicate-external conflicts so the caller can
	// fetch the already-stored row.
	ExistingID int64
	// RetryAfter is set on throttled errors.
	RetryAfter time.Duration

	cause error
}

func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BaseError) Unwrap() error { return e.cause }

// Is matches on kind so sentinel comparison works across wrapped chains.
func (e *BaseError) Is(target error) bool {
	var other *BaseError
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind && (other.Code == "" || e.Code == other.Code)
}

func (e *BaseError) WithTemplateData(data map[string]string) *BaseError {
	e.TemplateData = data
	return e
}

func (e *BaseError) WithCause(err error) *BaseError {
	e.cause = err
	return e
}

// NewError builds a BaseError with an explicit code, message and locale key.
func NewError(code, message, localeKey string) *BaseError {
	return &BaseError{Code: code, Kind: kindForCode(code), Message: message, LocaleKey: localeKey}
}

func kindForCode(code string) Kind {
	switch code {
	case string(KindUnauthenticated), string(KindPermissionDenied), string(KindNotFound),
		string(KindInvariantViolated), string(KindConflictDuplicate),
		string(KindUpstreamUnavailable), string(KindThrottled):
		return Kind(code)
	default:
		return KindInvariantViolated
	}
}

func Unauthenticated(message string) *BaseError {
	return NewError(string(KindUnauthenticated), message, "Auth.Unauthenticated")
}

func PermissionDenied(message string) *BaseError {
	return NewError(string(KindPermissionDenied), message, "Authorization.PermissionDenied")
}

func NotFound(message string) *BaseError {
	return NewError(string(KindNotFound), message, "Common.NotFound")
}

func InvariantViolated(format string, args ...any) *BaseError {
	return NewError(string(KindInvariantViolated), fmt.Sprintf(format, args...), "Common.InvariantViolated")
}

// ConflictDuplicateExternal reports that (lahdejarjestelma, tunniste) is
// already bound to existingID.
func ConflictDuplicateExternal(existingID int64) *BaseError {
	e := NewError(string(KindConflictDuplicate), "external identifier already in use", "Common.DuplicateExternal")
	e.ExistingID = existingID
	return e
}

func UpstreamUnavailable(service string, cause error) *BaseError {
	e := NewError(string(KindUpstreamUnavailable), fmt.Sprintf("upstream %s unavailable", service), "Common.UpstreamUnavailable")
	e.cause = cause
	return e
}

func Throttled(retryAfter time.Duration) *BaseError {
	e := NewError(string(KindThrottled), "rate limit exceeded", "Common.Throttled")
	e.RetryAfter = retryAfter
	return e
}

// IsKind reports whether err (or anything it wraps) carries the given kind.
func IsKind(err error, kind Kind) bool {
	var be *BaseError
	if !errors.As(err, &be) {
		return false
	}
	return be.Kind == kind
}
