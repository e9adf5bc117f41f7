package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"urut/pkg/logger"
	"urut/pkg/model"
	"urut/pkg/sanitizer"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// BookingValidator is the validation gate in front of booking creation. It
// either returns a normalized request or a list of field errors; it performs
// no I/O and never panics on expected bad input.
type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
	now      func() time.Time
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	return &BookingValidator{
		validate: validator.New(),
		logger:   log,
		now:      time.Now,
	}
}

// ValidateRequest normalizes the request in place and checks it. The
// returned request is the only payload the transaction orchestrator accepts.
func (v *BookingValidator) ValidateRequest(req *model.BookingRequest) error {
	v.normalize(req)

	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if req.CustomerPhone == "" {
		return ValidationErrors{
			ValidationError{
				Field:   "CustomerPhone",
				Message: "contact number could not be parsed as a valid phone number",
			},
		}
	}

	if req.ScheduledAt != nil && !req.ScheduledAt.After(v.now()) {
		return ValidationErrors{
			ValidationError{
				Field:   "ScheduledAt",
				Message: "scheduled time must be in the future",
			},
		}
	}

	if req.BookingKind == model.Scheduled && req.ScheduledAt == nil {
		return ValidationErrors{
			ValidationError{
				Field:   "ScheduledAt",
				Message: "scheduled bookings require a scheduled time",
			},
		}
	}

	return nil
}

func (v *BookingValidator) normalize(req *model.BookingRequest) {
	req.CustomerName = sanitizer.TrimAndNormalize(req.CustomerName)
	req.ProviderName = sanitizer.TrimAndNormalize(req.ProviderName)
	req.Address = sanitizer.TrimAndNormalize(req.Address)
	req.Notes = sanitizer.TrimAndNormalize(req.Notes)
	req.LocationZone = sanitizer.SanitizeZoneOrLabel(req.LocationZone)

	// Canonical contact form is digits-only E.164 without the plus.
	req.CustomerPhone = sanitizer.DigitsOnly(sanitizer.NormalizePhone(req.CustomerPhone))

	if req.BookingKind == "" {
		if req.ScheduledAt != nil {
			req.BookingKind = model.Scheduled
		} else {
			req.BookingKind = model.BookNow
		}
	}
	if req.ServiceType == "" {
		req.ServiceType = "Traditional Massage"
	}
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
