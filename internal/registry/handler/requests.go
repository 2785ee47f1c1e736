package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"taxid/pkg/afm"
	dErrors "taxid/pkg/domain-errors"
)

// maxNumberLength bounds raw input before normalization.
const maxNumberLength = 64

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("afm", validateAFM); err != nil {
		panic(fmt.Sprintf("register afm validator: %v", err))
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateAFM(fl validator.FieldLevel) bool {
	return afm.IsValid(fl.Field().String())
}

// ValidateRequest is the HTTP request body for POST /afm/validate.
type ValidateRequest struct {
	Number string `json:"number" validate:"required,max=64"`
}

// Validate implements httputil.Validatable.
func (r *ValidateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return structError(validate.Struct(r))
}

// LookupRequest is the HTTP request body for POST /afm/lookup.
type LookupRequest struct {
	CalledFor string `json:"called_for" validate:"required,max=64,afm"`
	CalledBy  string `json:"called_by" validate:"required,max=64,afm"`
}

// Validate implements httputil.Validatable.
func (r *LookupRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.CalledFor = strings.TrimSpace(r.CalledFor)
	r.CalledBy = strings.TrimSpace(r.CalledBy)
	return structError(validate.Struct(r))
}

// structError converts validator output into a CodeValidation error naming
// the first failing field. AFM failures carry the rejection kind and wrap
// the *afm.ValidationError.
func structError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request")
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s is required", fe.Field()))
	case "max":
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be at most %d characters", fe.Field(), maxNumberLength))
	case "afm":
		_, verr := afm.Validate(fmt.Sprint(fe.Value()))
		var ve *afm.ValidationError
		if errors.As(verr, &ve) {
			return dErrors.Wrap(verr, dErrors.CodeValidation, fmt.Sprintf("%s: %s", fe.Field(), ve.Kind))
		}
	}
	return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s is invalid", fe.Field()))
}
