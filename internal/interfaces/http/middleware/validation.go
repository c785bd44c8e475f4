package middleware

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

var setupValidatorOnce sync.Once

// SetupValidator configures gin's validator: field names in errors come
// from json or form tags, and the "money" and "isodate" tags are
// registered. Safe to call more than once.
func SetupValidator() {
	setupValidatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(fieldName)
		_ = v.RegisterValidation("money", validateMoney)
		_ = v.RegisterValidation("isodate", validateISODate)
	})
}

func fieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
	}
	return name
}

// validateMoney accepts a positive decimal amount in major units, e.g. "1500.00"
func validateMoney(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && d.IsPositive()
}

func validateISODate(fl validator.FieldLevel) bool {
	_, err := time.Parse(dto.DateLayout, fl.Field().String())
	return err == nil
}

// ValidationDetails turns binding errors into per-field details. Errors
// that are not validation failures, such as malformed JSON, yield nil.
func ValidationDetails(err error) []dto.ValidationDetail {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]dto.ValidationDetail, 0, len(validationErrors))
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: validationMessage(e),
			})
		}
		return details
	}
	var fieldErr *dto.FieldError
	if errors.As(err, &fieldErr) {
		return []dto.ValidationDetail{fieldErr.Detail()}
	}
	return nil
}

// IsValidationError reports whether err came from struct validation or
// request field parsing rather than from decoding the body
func IsValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	var fieldErr *dto.FieldError
	return errors.As(err, &validationErrors) || errors.As(err, &fieldErr)
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "money":
		return "Must be a positive decimal amount"
	case "isodate":
		return "Must be a date in YYYY-MM-DD format"
	default:
		return "Invalid value"
	}
}
