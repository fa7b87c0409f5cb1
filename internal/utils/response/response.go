package response

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/go-playground/validator/v10"
)

type APIResponse struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

type ErrorResponse struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
	Meta    any      `json:"meta,omitempty"`
}

func WriteJson(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	return json.NewEncoder(w).Encode(data)
}

func Success(w http.ResponseWriter, statusCode int, data any) {
	WriteJson(w, statusCode, APIResponse{Success: true, Data: data})
}

// Error renders an AppError with its own status; anything else is a 500 that
// hides the underlying message.
func Error(w http.ResponseWriter, err error) {
	appErr, ok := errors.IsAppError(err)
	if !ok {
		WriteJson(w, http.StatusInternalServerError, APIResponse{
			Error: &ErrorResponse{Code: errors.ErrCodeInternal, Message: "An unexpected error occurred"},
		})
		return
	}

	errorResponse := &ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Meta:    appErr.Meta,
	}
	if appErr.Detail != "" {
		errorResponse.Details = append(errorResponse.Details, appErr.Detail)
	}
	errorResponse.Details = append(errorResponse.Details, appErr.Details...)

	if appErr.Code == errors.ErrCodeTooManyRequests || appErr.Code == errors.ErrCodeTransientNetwork {
		if seconds, ok := appErr.Meta.(int); ok && seconds > 0 {
			w.Header().Set("Retry-After", fmt.Sprint(seconds))
		}
	}

	WriteJson(w, appErr.StatusCode, APIResponse{Error: errorResponse})
}

// ValidationError renders one message per failed field.
func ValidationError(w http.ResponseWriter, errs validator.ValidationErrors) {
	errMsgs := make([]string, 0, len(errs))

	for _, err := range errs {
		var message string

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("Field %s is required", err.Field())
		case "email":
			message = fmt.Sprintf("Field %s must be a valid email address", err.Field())
		case "min":
			message = fmt.Sprintf("Field %s must be at least %s characters", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("Field %s must be at most %s characters", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("Field %s must be one of: %s", err.Field(), err.Param())
		case "iso3166_1_alpha2":
			message = fmt.Sprintf("Field %s must be a two-letter country code", err.Field())
		default:
			message = fmt.Sprintf("Field %s is invalid: %s=%s", err.Field(), err.Tag(), err.Param())
		}

		errMsgs = append(errMsgs, message)
	}

	WriteJson(w, http.StatusBadRequest, APIResponse{
		Error: &ErrorResponse{
			Code:    errors.ErrCodeValidation,
			Message: "Validation failed",
			Details: errMsgs,
		},
	})
}
