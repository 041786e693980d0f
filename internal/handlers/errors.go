package handlers

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/gdg-garage/community-events-api/internal/admission"
)

// APIError is the body of every failed response.
type APIError struct {
	Status  int            `json:"status"`
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string  { return e.Message }
func (e *APIError) GetStatus() int { return e.Status }

// newHumaError replaces huma's default error constructor so framework errors (bad JSON,
// schema violations, auth failures) share the APIError shape. Schema violations are
// reported as 400 ValidationError.
func newHumaError(status int, msg string, errs ...error) huma.StatusError {
	kind := kindForStatus(status)
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}
	e := &APIError{Status: status, Kind: kind, Message: msg}
	if len(errs) > 0 {
		problems := make([]string, 0, len(errs))
		for _, err := range errs {
			if err != nil {
				problems = append(problems, err.Error())
			}
		}
		e.Details = map[string]any{"errors": problems}
	}
	return e
}

func kindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return string(admission.KindValidation)
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "NotFound"
	case http.StatusTooManyRequests:
		return string(admission.KindRateLimited)
	}
	if status >= 500 {
		return string(admission.KindUpstream)
	}
	return http.StatusText(status)
}

// statusFor maps an engine kind onto an HTTP status.
func statusFor(kind admission.Kind) int {
	switch {
	case kind == admission.KindUpstream:
		return http.StatusInternalServerError
	case kind == admission.KindRateLimited:
		return http.StatusTooManyRequests
	case kind.IsNotFound():
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

// toHTTPError converts an operation error into a response. Errors already carrying a status
// pass through. Upstream failures are logged and hidden behind an opaque message.
func toHTTPError(log *zap.Logger, op string, err error) error {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var ae admission.Error
	if !errors.As(err, &ae) {
		log.Error("request failed", zap.String("operation", op), zap.Error(err))
		return &APIError{
			Status:  http.StatusInternalServerError,
			Kind:    string(admission.KindUpstream),
			Message: "internal error, please try again later",
		}
	}
	return &APIError{
		Status:  statusFor(ae.Kind),
		Kind:    string(ae.Kind),
		Message: ae.Msg,
		Details: ae.Details,
	}
}
