package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	// Retailer SKU: alphanumeric start, then letters, digits, dot, dash or underscore
	skuRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)
	// ISO 4217 currency code
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

	registerOnce sync.Once
)

// ValidateStruct validates struct
func ValidateStruct(obj interface{}) error {
	RegisterCustomValidators()
	if err := binding.Validator.ValidateStruct(obj); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError formats validation error
func formatValidationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, fieldError := range validationErrors {
			messages = append(messages, getFieldErrorMessage(fieldError))
		}
		return NewError(CodeInvalidParam, strings.Join(messages, "; "))
	}
	return WrapError(err, CodeInvalidParam, "validation failed")
}

// BindError converts a gin binding failure into an invalid-parameter error
func BindError(err error) *AppError {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, fieldError := range validationErrors {
			messages = append(messages, getFieldErrorMessage(fieldError))
		}
		return NewError(CodeInvalidParam, strings.Join(messages, "; "))
	}
	return WrapError(err, CodeInvalidParam, "invalid request body")
}

// getFieldErrorMessage gets field error message
func getFieldErrorMessage(fieldError validator.FieldError) string {
	field := camelToSnake(fieldError.Field())
	param := fieldError.Param()

	switch fieldError.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "sku":
		return fmt.Sprintf("%s must be a valid SKU", field)
	case "currency":
		return fmt.Sprintf("%s must be a three-letter currency code", field)
	case "nonnegative":
		return fmt.Sprintf("%s must be non-negative", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "dive":
		return fmt.Sprintf("%s contains an invalid element", field)
	default:
		return fmt.Sprintf("%s validation failed", field)
	}
}

// camelToSnake converts camelCase to snake_case
func camelToSnake(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			// Consecutive uppercase letters stay in one word until a lowercase letter follows
			if i > 1 && s[i-1] >= 'A' && s[i-1] <= 'Z' {
				if i == len(s)-1 {
					result.WriteRune('_')
				} else if s[i+1] >= 'a' && s[i+1] <= 'z' {
					result.WriteRune('_')
				}
			} else {
				result.WriteRune('_')
			}
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

// RegisterCustomValidators registers custom validators on gin's validator engine
func RegisterCustomValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("sku", validateSKU)
		_ = v.RegisterValidation("currency", validateCurrency)
		_ = v.RegisterValidation("nonnegative", validateNonNegative)

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

func validateSKU(fl validator.FieldLevel) bool {
	return skuRegex.MatchString(fl.Field().String())
}

func validateCurrency(fl validator.FieldLevel) bool {
	return currencyRegex.MatchString(fl.Field().String())
}

// validateNonNegative validates non-negative number
func validateNonNegative(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fl.Field().Int() >= 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	case reflect.Float32, reflect.Float64:
		return fl.Field().Float() >= 0
	default:
		return false
	}
}

// ValidateSKU validates a retailer SKU passed outside a request body
func ValidateSKU(sku string) error {
	if sku == "" {
		return NewError(CodeInvalidParam, "sku cannot be empty")
	}
	if !skuRegex.MatchString(sku) {
		return NewError(CodeInvalidParam, "sku must be a valid SKU")
	}
	return nil
}
