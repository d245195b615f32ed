package validator

import (
	stderrors "errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	apperr "taskboard/internal/pkg/errors"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("platform_role", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "user", "admin", "super_admin":
			return true
		}
		return false
	})
	v.RegisterValidation("member_role", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "member" || s == "admin"
	})
	return v
}

// FieldError is reported in the details of an invalid-input response.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Struct validates s against its `validate` tags and returns an Invalid error
// listing the failing fields.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return err
	}

	fields := make([]FieldError, 0, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		fields = append(fields, FieldError{Field: name, Rule: fe.Tag()})
		names = append(names, name)
	}

	e := apperr.Invalid("Invalid %s", strings.Join(names, ", "))
	e.Details = fields
	return e
}

// Var validates a single value against a tag such as "required,max=255".
func Var(field string, value interface{}, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		e := apperr.Invalid("Invalid %s", field)
		e.Details = []FieldError{{Field: field, Rule: tag}}
		return e
	}
	return nil
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// TrimmedNonEmpty reports an Invalid error when s is blank after trimming.
func TrimmedNonEmpty(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperr.Invalid("%s is required", capitalize(field))
	}
	return s, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
