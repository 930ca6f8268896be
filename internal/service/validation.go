package service

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"project-tracker-api/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrValidation matches every *ValidationError through errors.Is
var ErrValidation = errors.New("validation failed")

// FieldError describes one rejected input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field problem found in one request
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	sort.SliceStable(e.Fields, func(i, j int) bool { return e.Fields[i].Field < e.Fields[j].Field })
	return e
}

// Invalid builds a single-field validation error
func Invalid(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// NewValidator returns a validator that reports json field names and knows
// the project enum tags.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// registration only fails on an empty tag or nil func
	_ = v.RegisterValidation("project_status", func(fl validator.FieldLevel) bool {
		return models.ProjectStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("project_priority", func(fl validator.FieldLevel) bool {
		return models.ProjectPriority(fl.Field().String()).Valid()
	})
	return v
}

// collect converts validator output into a ValidationError, skipping the
// named struct fields.
func collect(err error, into *ValidationError, skip ...string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
outer:
	for _, fe := range verrs {
		for _, s := range skip {
			if fe.StructField() == s {
				continue outer
			}
		}
		into.add(fe.Field(), describe(fe))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "project_status":
		return fmt.Sprintf("must be one of %v", models.ValidStatuses)
	case "project_priority":
		return fmt.Sprintf("must be one of %v", models.ValidPriorities)
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}

var maxMoney = decimal.New(1, 13)

// money checks a NUMERIC(15,2) amount and rounds it to cents
func money(field string, d decimal.NullDecimal, into *ValidationError) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	if d.Decimal.IsNegative() {
		into.add(field, "must not be negative")
		return d
	}
	rounded := d.Decimal.Round(2)
	if rounded.GreaterThanOrEqual(maxMoney) {
		into.add(field, "must be less than 10000000000000")
		return d
	}
	return decimal.NewNullDecimal(rounded)
}
