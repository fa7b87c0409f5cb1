package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/middleware"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

func DecodeJSONBody(r *http.Request, dest any) error {
	logger := middleware.LoggerFromContext(r.Context())

	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		logger.Error("Failed to read request body", slog.String("error", err.Error()))
		return fmt.Errorf("failed to read request body: %w", err)
	}

	if len(body) == 0 {
		return errors.New("request body cannot be empty")
	}

	if err := json.Unmarshal(body, dest); err != nil {
		logger.Warn("Failed to parse request JSON", slog.String("error", err.Error()))
		return fmt.Errorf("invalid JSON format: %w", err)
	}

	return nil
}

// ValidateStruct returns validator.ValidationErrors unwrapped so callers can
// render one message per field.
func ValidateStruct(validate *validator.Validate, data any) error {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return validationErrs
	}

	return fmt.Errorf("unexpected validation error: %w", err)
}
