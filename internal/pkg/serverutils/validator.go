package serverutils

import (
	"fmt"
	"strings"

	"ai-studykit-be/internal/apperr"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateRequest checks struct tags and folds violations into one
// client-facing error.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.Wrap(apperr.KindInvalidInput, "invalid request", err)
	}

	var problems []string
	for _, fieldError := range validationErrors {
		problems = append(problems, fmt.Sprintf("%s failed on %s", fieldError.Field(), fieldError.Tag()))
	}
	return apperr.InvalidInput("validation failed: %s", strings.Join(problems, ", "))
}
