// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/zeroalloc/internal/errors"
)

var (
	// metricNameRegex matches a Prometheus metric name prefix
	metricNameRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// MetricName validates that a string can prefix a Prometheus metric name
var MetricName = validation.NewStringRuleWithError(
	func(s string) bool {
		return metricNameRegex.MatchString(s)
	},
	validation.NewError("validation_metric_name", "must start with a letter or underscore and contain only letters, digits and underscores"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// PowerOfTwo validates that an int is a positive power of two
var PowerOfTwo = validation.By(func(value interface{}) error {
	n, ok := value.(int)
	if !ok {
		return validation.NewError("validation_power_of_two", "must be an integer")
	}
	if n <= 0 || n&(n-1) != 0 {
		return validation.NewError("validation_power_of_two", "must be a power of two")
	}
	return nil
})
