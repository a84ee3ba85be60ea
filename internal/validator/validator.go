// Package validator wraps go-playground/validator with the service's request
// DTOs and the business rules that go beyond struct tags.
package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a single field failure.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

// ValidationErrors is the error type returned by all validation entry points.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// ToValidationErrors converts go-playground validation output.
func ToValidationErrors(err error) ValidationErrors {
	var out ValidationErrors
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrs {
			out = append(out, ValidationError{
				Field:   strings.ToLower(fe.Field()),
				Message: errorMessage(fe),
				Value:   fe.Value(),
				Rule:    fe.Tag(),
			})
		}
	}
	return out
}

// Validator validates request structs with the custom rules registered.
type Validator struct {
	validate *validator.Validate
}

// New creates the shared validator instance.
func New() *Validator {
	validate := validator.New()
	registerCustomRules(validate)
	return &Validator{validate: validate}
}

// Validate validates a struct against its tags. Returns nil when valid.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

func registerCustomRules(validate *validator.Validate) {
	// Title validation (1-200 characters after trimming)
	validate.RegisterValidation("exam_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 200
	})

	// Duration validation (1-300 minutes)
	validate.RegisterValidation("exam_duration", func(fl validator.FieldLevel) bool {
		duration := fl.Field().Int()
		return duration >= 1 && duration <= 300
	})

	// Passing score validation (0-100)
	validate.RegisterValidation("passing_score", func(fl validator.FieldLevel) bool {
		score := fl.Field().Int()
		return score >= 0 && score <= 100
	})

	// Question points validation (1-100)
	validate.RegisterValidation("points_range", func(fl validator.FieldLevel) bool {
		points := fl.Field().Int()
		return points >= 1 && points <= 100
	})

	// Difficulty level validation
	validate.RegisterValidation("difficulty_level", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "easy", "medium", "hard":
			return true
		}
		return false
	})

	// Visibility validation
	validate.RegisterValidation("exam_visibility", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "private", "public":
			return true
		}
		return false
	})
}

func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "exam_title":
		return "must be between 1 and 200 characters"
	case "exam_duration":
		return "must be between 1 and 300 minutes"
	case "passing_score":
		return "must be between 0 and 100"
	case "points_range":
		return "must be between 1 and 100"
	case "difficulty_level":
		return "must be easy, medium, or hard"
	case "exam_visibility":
		return "must be private or public"
	default:
		return fmt.Sprintf("validation failed for rule '%s'", fe.Tag())
	}
}
