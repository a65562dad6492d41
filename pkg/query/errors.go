package query

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// InputError is a missing or invalid query. It is raised before any network
// call and ends the run.
type InputError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *InputError) Error() string {
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *InputError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err is or wraps an *InputError.
func IsInputError(err error) bool {
	var inputErr *InputError
	return errors.As(err, &inputErr)
}

// fromValidation converts validator output into an *InputError naming every
// failed field.
func fromValidation(err error) *InputError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return &InputError{Message: err.Error(), Err: err}
	}

	messages := make([]string, 0, len(validationErrors))
	seen := make(map[string]bool)
	for _, fe := range validationErrors {
		msg := fieldMessage(fe)
		if seen[msg] {
			continue
		}
		seen[msg] = true
		messages = append(messages, msg)
	}

	return &InputError{
		Field:   validationErrors[0].Field(),
		Message: strings.Join(messages, "; "),
		Err:     err,
	}
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required_without":
		// both identifier fields report the same pair
		return "searchText or seriesId must be provided"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date formatted as YYYY-MM-DD", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
