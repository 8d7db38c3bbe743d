package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sitepass/subscription-whitelist/internal/pkg/apperror"
	"github.com/sitepass/subscription-whitelist/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses by kind. Persistence and
// unrecognised errors are logged and answered with a generic message.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch apperror.KindOf(err) {
	case apperror.ErrValidation:
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", apperror.Message(err), nil)
	case apperror.ErrNotFound:
		NotFound(w, apperror.Message(err))
	case apperror.ErrConflict:
		Conflict(w, apperror.Message(err))
	case apperror.ErrState:
		InvalidState(w, apperror.Message(err))
	default:
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		InternalServerError(w, "An unexpected error occurred")
	}
}
