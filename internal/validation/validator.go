// Package validation validates request structs with go-playground/validator
// and reports the first failure as an apperror validation error.
//
// Example usage:
//
//	type RegisterRequest struct {
//	    Name     string `json:"name"     validate:"required,min=2,max=100"`
//	    Email    string `json:"email"    validate:"required,email"`
//	    Password string `json:"password" validate:"required,min=6,max=72"`
//	}
//
//	if err := validation.Validate(&req); err != nil {
//	    writeError(w, err) // 400 validation_error
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/teamterrain/internal/apperror"
	"github.com/sakif/teamterrain/internal/geo"
)

// singleton validator instance; validator caches struct metadata so one
// shared instance is both faster and safe for concurrent use.
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the shared validator, configured on first use.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report JSON names ("user_id") instead of Go field names ("UserIDLegacy").
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		// coordinates: "<lng>, <lat>" within range. Empty strings pass so
		// the tag composes with omitempty-style clearing.
		_ = validate.RegisterValidation("coordinates", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if s == "" {
				return true
			}
			_, err := geo.Parse(s)
			return err == nil
		})
	})

	return validate
}

// Validate checks s against its `validate` tags. It returns nil, or an
// *apperror.AppError wrapping apperror.ErrValidation naming the first
// offending field.
func Validate(s any) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.ValidationFailed("", err.Error())
	}

	fe := fieldErrs[0]
	return apperror.ValidationFailed(fe.Field(), translateError(fe))
}

// errorMessageTemplates maps validation tags to message templates.
var errorMessageTemplates = map[string]string{
	"required":    "%s is required",
	"email":       "%s must be a valid email address",
	"coordinates": "%s must be \"longitude, latitude\" with longitude in [-180, 180] and latitude in [-90, 90]",
}

// errorMessageWithParam maps validation tags to templates that include param.
var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

// translateError converts a validator.FieldError to a human-readable message.
func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()
	param := fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
