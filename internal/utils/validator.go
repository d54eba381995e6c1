// internal/utils/validator.go
package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("charset", validateCharset)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// validateCharset rejects charsets with repeated characters, which
// would skew the uniform draw toward the duplicates.
func validateCharset(fl validator.FieldLevel) bool {
	charset := fl.Field().String()
	if charset == "" {
		return false
	}

	seen := make(map[rune]struct{}, len(charset))
	for _, r := range charset {
		if _, dup := seen[r]; dup {
			return false
		}
		seen[r] = struct{}{}
	}
	return true
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "gt":
		return e.Field() + " must be greater than " + e.Param()
	case "min":
		return e.Field() + " must have at least " + e.Param() + " items"
	case "max":
		return e.Field() + " must be at most " + e.Param() + " characters"
	case "charset":
		return e.Field() + " must be non-empty with no repeated characters"
	default:
		return e.Field() + " is invalid"
	}
}
