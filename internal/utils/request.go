package utils

import (
	"errors"
	"net/http"
	"strings"

	appErrors "github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils/response"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ParseAndValidate decodes the body into dest and validates it, writing the
// error response itself when either step fails.
func ParseAndValidate(r *http.Request, w http.ResponseWriter, dest any, validate *validator.Validate) bool {
	if err := DecodeJSONBody(r, dest); err != nil {
		response.Error(w, appErrors.BadRequestError("Invalid request body").WithDetail(err.Error()))
		return false
	}

	if err := ValidateStruct(validate, dest); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			response.ValidationError(w, validationErrs)
			return false
		}

		response.Error(w, appErrors.ValidationError("Invalid input data"))
		return false
	}

	return true
}

func ParseID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.PathValue(name))
	if raw == "" {
		return uuid.Nil, appErrors.BadRequestError("Missing " + name)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, appErrors.BadRequestError("Invalid " + name + " format").WithDetail(raw)
	}

	return id, nil
}
