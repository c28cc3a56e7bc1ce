package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"dealer-portal/internal/store"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidTransition    = errors.New("order is not pending")
	ErrMissingDealer        = errors.New("dealer_id is required")
	ErrMalformedMetadata    = errors.New("notification metadata is malformed")
	ErrNoOrderID            = errors.New("no order id in request or notification")
	ErrOrderNotReferenced   = errors.New("order is not referenced by the notification")
	ErrConflict             = errors.New("already exists")
	ErrInvalidCredentials   = errors.New("invalid email or password")
)

// ValidationError lists the problems found in a request.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Details, "; ")
}

func invalid(details ...string) error {
	return &ValidationError{Details: details}
}

// translate maps store sentinels onto service errors. notFound replaces
// store.ErrNotFound when given.
func translate(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		if notFound == nil {
			notFound = ErrNotFound
		}
		return fmt.Errorf("%w: %v", notFound, err)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, store.ErrStatusConflict):
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	return err
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the validate tags of req and reports every failure.
func validateStruct(req interface{}, extra ...string) error {
	details := append([]string(nil), extra...)
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			details = append(details, describe(fe))
		}
	}
	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
