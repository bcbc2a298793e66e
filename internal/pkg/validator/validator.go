package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Content type validation
	validate.RegisterValidation("content_type", func(fl validator.FieldLevel) bool {
		contentType := fl.Field().String()
		validTypes := []string{"post", "comment", "chat_message", ""}
		for _, t := range validTypes {
			if contentType == t {
				return true
			}
		}
		return false
	})

	// Severity validation
	validate.RegisterValidation("severity", func(fl validator.FieldLevel) bool {
		severity := fl.Field().String()
		validSeverities := []string{"low", "medium", "high", "critical", ""}
		for _, s := range validSeverities {
			if severity == s {
				return true
			}
		}
		return false
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "oneof":
			errors[field] = "Must be one of: " + err.Param()
		case "uuid":
			errors[field] = "Invalid UUID format"
		case "content_type":
			errors[field] = "Invalid content type. Must be: post, comment, or chat_message"
		case "severity":
			errors[field] = "Invalid severity. Must be: low, medium, high, or critical"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
