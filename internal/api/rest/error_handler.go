package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	domainErrors "github.com/accessforge/erp-access-advisor/internal/domain/errors"
)

// writeError maps an application error onto the JSON error envelope and the
// matching HTTP status
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := domainErrors.GetStatusCode(err)

	body := ErrorBody{
		Type:      string(domainErrors.ErrorTypeInternal),
		Code:      "INTERNAL_ERROR",
		Message:   "internal error",
		Retryable: domainErrors.IsRetryable(err),
	}

	var appErr *domainErrors.AppError
	if errors.As(err, &appErr) {
		body.Type = string(appErr.Type)
		body.Code = appErr.Code
		body.Message = appErr.Message
		body.Details = appErr.Details
	}

	if status >= 500 {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}

	writeJSON(w, status, ErrorResponse{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// badRequest writes a validation error for malformed request bodies
func badRequest(w http.ResponseWriter, logger *zap.Logger, message string) {
	writeError(w, logger, domainErrors.NewValidationError("INVALID_REQUEST", message))
}
