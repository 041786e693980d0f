package admission

import (
	"errors"
	"fmt"
)

// Kind classifies an engine outcome. Every kind except KindUpstream is caused by the caller's
// input or by the current state of the event and is safe to show to the caller.
type Kind string

const (
	KindValidation            Kind = "ValidationError"
	KindDuplicateRegistration Kind = "DuplicateRegistration"
	KindEventFull             Kind = "EventFull"
	KindVolunteerSlotsFull    Kind = "VolunteerSlotsFull"
	KindTimeConflict          Kind = "TimeConflict"
	KindWeeklyQuotaExceeded   Kind = "WeeklyQuotaExceeded"
	KindEventNotFound         Kind = "EventNotFound"
	KindRegistrationNotFound  Kind = "RegistrationNotFound"
	KindInvalidTransition     Kind = "InvalidTransition"
	KindRateLimited           Kind = "RateLimited"
	KindUpstream              Kind = "UpstreamFailure"
)

// Error is returned for every rejected operation.
type Error struct {
	Kind    Kind
	Msg     string
	Details map[string]any
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// NewError builds an Error for rules enforced outside the engine, such as catalog edits.
func NewError(kind Kind, format string, args ...any) Error {
	return newError(kind, format, args...)
}

func newError(kind Kind, format string, args ...any) Error {
	return Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func (e Error) with(key string, value any) Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

// CanonicalKind returns the Kind of err. Errors that did not originate from the engine's
// rules, such as row store failures, are KindUpstream. A nil error has no kind.
func CanonicalKind(err error) Kind {
	if err == nil {
		return ""
	}
	var e Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// IsNotFound reports whether the kind describes a missing record.
func (k Kind) IsNotFound() bool {
	return k == KindEventNotFound || k == KindRegistrationNotFound
}
