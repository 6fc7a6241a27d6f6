// Package inputval validates decoded request payloads with
// go-playground/validator and turns failures into user-facing messages.
//
// Struct tags:
//
//	validate:"required,notblank,max=80"  rules
//	json:"name"                          field name reported to clients
//	label:"Group name"                   subject of the message
package inputval

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(jsonName)

	_ = validate.RegisterValidation("notblank", notBlank)
	_ = validate.RegisterValidation("guid", isGUIDField)
	_ = validate.RegisterValidation("httpurl", isHTTPURLField)
}

// FieldError is one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result collects the failures of one Validate call.
type Result struct {
	Errors []FieldError `json:"errors,omitempty"`
}

// HasErrors reports whether any rule failed.
func (r *Result) HasErrors() bool {
	return r != nil && len(r.Errors) > 0
}

// First returns the first message, or "".
func (r *Result) First() string {
	if !r.HasErrors() {
		return ""
	}
	return r.Errors[0].Message
}

// All joins every message with "; ".
func (r *Result) All() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// Validate checks v (a struct or pointer to struct) against its
// validate tags. It never returns nil.
func Validate(v any) *Result {
	res := &Result{}
	err := validate.Struct(v)
	if err == nil {
		return res
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		res.Errors = append(res.Errors, FieldError{Message: "Invalid input."})
		return res
	}
	labels := labelsOf(v)
	for _, fe := range verrs {
		label := labels[fe.StructField()]
		if label == "" {
			label = fe.Field()
		}
		res.Errors = append(res.Errors, FieldError{
			Field:   fe.Field(),
			Message: message(fe, label),
		})
	}
	return res
}

func message(fe validator.FieldError, label string) string {
	switch fe.Tag() {
	case "required", "notblank":
		return label + " is required."
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters.", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s.", label, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters.", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s.", label, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or more.", label, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be %s or less.", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "guid":
		return label + " must be a valid id."
	case "httpurl":
		return label + " must be a valid http or https URL."
	}
	return fe.Translate(translator)
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// labelsOf maps Go field names of the top-level struct to their label tag.
func labelsOf(v any) map[string]string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := map[string]string{}
	if t == nil || t.Kind() != reflect.Struct {
		return out
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if l := f.Tag.Get("label"); l != "" {
			out[f.Name] = l
		}
	}
	return out
}

func notBlank(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return false
}

func isGUIDField(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	return ok && IsValidGUID(s)
}

func isHTTPURLField(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	return ok && IsValidHTTPURL(s)
}

// IsValidGUID reports whether s (trimmed) parses as a UUID.
func IsValidGUID(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// IsValidHTTPURL reports whether s (trimmed) is an absolute http or https
// URL with a host.
func IsValidHTTPURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
