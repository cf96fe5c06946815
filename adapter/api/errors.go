package api

import (
	"errors"
	"log/slog"
	"net/http"

	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
)

var (
	errBadBody       = sharedDomain.ErrInvalidInput.WithMessage("request body is not valid JSON for this endpoint")
	errUnknownAction = sharedDomain.NewError(sharedDomain.KindInvalidInput, "unknown_action", "action must be one of create, invite, accept_invitation, remove_member, cancel, revoke_invitation")
	errInternal      = sharedDomain.NewError("", "internal_error", "internal server error")
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Details map[string]int64 `json:"details,omitempty"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind sharedDomain.Kind) int {
	switch kind {
	case sharedDomain.KindInvalidInput:
		return http.StatusBadRequest
	case sharedDomain.KindNotFound:
		return http.StatusNotFound
	case sharedDomain.KindConflict:
		return http.StatusConflict
	case sharedDomain.KindNotAuthorized:
		return http.StatusForbidden
	case sharedDomain.KindTransientStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Errors without a domain kind are logged and
// reported as internal errors without their text.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var domainErr *sharedDomain.Error
	if !errors.As(err, &domainErr) || domainErr.Kind == "" {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		domainErr = errInternal
	}

	status := statusFor(domainErr.Kind)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, ErrorResponse{
		Code:    domainErr.Code,
		Message: domainErr.Message,
		Details: domainErr.Details,
	})
}
