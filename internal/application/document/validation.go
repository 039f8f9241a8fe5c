package document

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/labdocs/backend/internal/domain/document"
)

// newValidator returns a validator that reports JSON field names and
// understands the "flag" tag.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("flag", func(fl validator.FieldLevel) bool {
		return document.Flag(fl.Field().String()).IsValid()
	})
	return v
}

// validateRequest checks the request model and converts validator errors
// into an INVALID_REQUEST error listing the offending fields.
func (s *Service) validateRequest(req *document.ReportRequest) error {
	if req == nil {
		return document.NewInvalidRequestError("document request is empty", nil)
	}
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return document.NewInvalidRequestError("request validation failed", err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fieldPath(fe)+" "+validationMessage(fe))
	}
	return document.NewInvalidRequestError("invalid request: "+strings.Join(problems, "; "), err)
}

// fieldPath drops the root struct name: "ReportRequest.tests[2].flag"
// becomes "tests[2].flag".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "flag":
		return "must be one of normal, high, low, critical_high, critical_low"
	default:
		return "is invalid"
	}
}
