package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/case-events/services"
	"github.com/upb/case-events/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	code := services.GetErrorCode(err)
	var writeErr error

	switch {
	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, code, validationMessage(err), services.GetErrorDetails(err))

	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, err.Error())

	case services.IsUnauthorizedError(err):
		writeErr = utils.WriteUnauthorized(w, "")

	case services.IsForbiddenError(err):
		writeErr = utils.WriteForbidden(w, "")

	case services.IsUnavailableError(err):
		logger.Warn("service unavailable", zap.String("code", code), zap.Error(err))
		writeErr = utils.WriteServiceUnavailable(w, code, "Event store is not available")

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// validationMessage returns the bare message of a domain error, without the
// "validation:" prefix Error() adds.
func validationMessage(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

// HandleValidationError handles errors from request decoding and DTO validation
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var details map[string]interface{}
	message := err.Error()

	if utils.IsValidationError(err) {
		details = make(map[string]interface{})
		for k, v := range utils.GetValidationFields(err) {
			details[k] = v
		}
	}

	if err := utils.WriteBadRequest(w, "invalid_request", message, details); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
