package loadtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/giantswarm/microerror"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("k6duration", func(fl validator.FieldLevel) bool {
			d, err := ParseDuration(fl.Field().String())
			return err == nil && d > 0
		})

		_ = v.RegisterValidation("jsonobject", func(fl validator.FieldLevel) bool {
			var obj map[string]interface{}
			return json.Unmarshal([]byte(fl.Field().String()), &obj) == nil && obj != nil
		})

		validate = v
	})

	return validate
}

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Message
}

// FieldErrors is a collection of field errors
type FieldErrors []FieldError

func (f FieldErrors) Error() string {
	msgs := make([]string, 0, len(f))
	for _, e := range f {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration. It should be called on a normalized
// config.
func (c Config) Validate() error {
	var fieldErrors FieldErrors

	if err := getValidator().Struct(c); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return microerror.Mask(err)
		}
		for _, e := range validationErrs {
			fieldErrors = append(fieldErrors, FieldError{
				Field:   e.Field(),
				Message: fieldMessage(e),
			})
		}
	}

	if c.CallType == CallTypeGradual && c.RampUp == "" {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   "rampUp",
			Message: "rampUp is required for the gradual call type",
		})
	}

	if len(fieldErrors) > 0 {
		return microerror.Maskf(validationError, "%s", fieldErrors.Error())
	}

	return nil
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
	case "http_url":
		return fmt.Sprintf("%s must be an absolute http or https URL", e.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", e.Field(), strings.ReplaceAll(e.Param(), " ", ", "))
	case "k6duration":
		return fmt.Sprintf("%s must be a positive duration such as 30s, 1m or 5m30s", e.Field())
	case "jsonobject":
		return fmt.Sprintf("%s must be a JSON object, e.g. {\"Content-Type\": \"application/json\"}", e.Field())
	case "json":
		return fmt.Sprintf("%s must be valid JSON", e.Field())
	default:
		return fmt.Sprintf("%s is invalid", e.Field())
	}
}
