package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

func DefaultMessage(field, tag, param string) string {
	if field != "" {
		field = strings.ToLower(field[:1]) + field[1:]
	}

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "hexadecimal":
		return fmt.Sprintf("%s must be hexadecimal", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// Messages turns a binding error into client-facing messages. Errors that are
// not validation errors (bad JSON, wrong types) yield a single generic entry.
func Messages(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{"request body must be valid JSON"}
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		if fieldMessages := CustomMessage(e.Field()); fieldMessages != nil {
			if msg, ok := fieldMessages[e.Tag()]; ok {
				messages = append(messages, msg)
				continue
			}
		}
		messages = append(messages, DefaultMessage(e.Field(), e.Tag(), e.Param()))
	}
	return messages
}
