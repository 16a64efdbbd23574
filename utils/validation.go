package utils

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ValidationDetails flattens ozzo field errors into a map keyed by JSON
// field name. It returns nil for any other error.
func ValidationDetails(err error) map[string]interface{} {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return nil
	}
	details := make(map[string]interface{}, len(errs))
	for field, fieldErr := range errs {
		if fieldErr != nil {
			details[field] = fieldErr.Error()
		}
	}
	return details
}
