package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON name.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// FieldViolation is one failed rule on one field.
type FieldViolation struct {
	Field string
	Tag   string
	Param string
	Value interface{}
}

// Message renders the violation for clients.
func (v FieldViolation) Message() string {
	switch v.Tag {
	case "required":
		return fmt.Sprintf("%s is required", v.Field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", v.Field, v.Param)
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid UUID", v.Field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", v.Field, v.Param)
	}
	return fmt.Sprintf("%s failed validation: %s", v.Field, v.Tag)
}

// Error is returned when a struct fails validation.
type Error struct {
	Violations []FieldViolation
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message())
	}
	return strings.Join(msgs, "; ")
}

// ValidateStruct validates a struct using go-playground/validator
func ValidateStruct(s interface{}) error {
	if s == nil {
		return nil
	}

	// Check if it's a pointer to a struct
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return fmt.Errorf("validator: expected a struct, got %T", s)
	}

	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := &Error{Violations: make([]FieldViolation, 0, len(ve))}
		for _, fe := range ve {
			out.Violations = append(out.Violations, FieldViolation{
				Field: fe.Field(),
				Tag:   fe.Tag(),
				Param: fe.Param(),
				Value: fe.Value(),
			})
		}
		return out
	}
	return fmt.Errorf("validation failed: %w", err)
}
