package errs

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate holds the settings and caches for validating request struct values.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Check validates the provided model against its declared validate tags.
// Request bodies are explicit tagged structures; any missing or malformed
// field is rejected at the boundary before side effects occur.
func Check(val any) error {
	if err := validate.Struct(val); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}

		var fields FieldErrors
		for _, verr := range verrs {
			field := FieldError{
				Field: verr.Field(),
				Err:   fmt.Sprintf("failed on the '%s' rule", verr.Tag()),
			}
			fields = append(fields, field)
		}

		return fields
	}

	return nil
}

// FieldError is used to indicate an error with a specific request field.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors represents a collection of field errors.
type FieldErrors []FieldError

// Error implements the error interface.
func (fe FieldErrors) Error() string {
	var s string
	for i, field := range fe {
		if i > 0 {
			s += "; "
		}
		s += fmt.Sprintf("%s: %s", field.Field, field.Err)
	}
	return s
}
