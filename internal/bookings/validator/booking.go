package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"smartparking/internal/timeslot"
	"smartparking/pkg/logger"
	"smartparking/pkg/model"

	"github.com/go-playground/validator/v10"
)

var (
	bookingIDRegex = regexp.MustCompile(`^BK\d{6}$`)
	plateRegex     = regexp.MustCompile(`^[0-9\p{Lu}]+(-[0-9\p{Lu}]+)*$`)
)

const maxPlateLength = 16

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

// Details flattens the errors into the map carried by an AppError.
func (v ValidationErrors) Details() map[string]any {
	details := make(map[string]any, len(v))
	for _, err := range v {
		details[err.Field] = err.Message
	}
	return details
}

type BookingValidator struct {
	validate  *validator.Validate
	logger    *logger.Logger
	slotCount int
}

func NewBookingValidator(log *logger.Logger, slotCount int) *BookingValidator {
	v := validator.New()

	registrations := map[string]validator.Func{
		"timeslot":   validateTimeSlot,
		"booking_id": validateBookingID,
		"plate":      validatePlate,
	}
	for tag, fn := range registrations {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Fatal("Failed to register validator", "tag", tag, "error", err)
		}
	}

	log.Debug("Booking validator initialized successfully")

	return &BookingValidator{
		validate:  v,
		logger:    log,
		slotCount: slotCount,
	}
}

func validateTimeSlot(fl validator.FieldLevel) bool {
	return timeslot.Valid(fl.Field().String())
}

func validateBookingID(fl validator.FieldLevel) bool {
	return IsBookingID(fl.Field().String())
}

func validatePlate(fl validator.FieldLevel) bool {
	plate := fl.Field().String()
	return len(plate) <= maxPlateLength && plateRegex.MatchString(plate)
}

// IsBookingID reports whether id has the BK + 6 digits shape.
func IsBookingID(id string) bool {
	return bookingIDRegex.MatchString(id)
}

func (v *BookingValidator) Validate(booking *model.Booking) error {
	if err := v.validate.Struct(booking); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if booking.SlotNumber > v.slotCount {
		return ValidationErrors{
			ValidationError{
				Field:   "SlotNumber",
				Message: fmt.Sprintf("SlotNumber must be between 1 and %d", v.slotCount),
			},
		}
	}

	return nil
}

func (v *BookingValidator) ValidateUpdate(update *model.BookingUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if update.SlotNumber != nil && *update.SlotNumber > v.slotCount {
		return ValidationErrors{
			ValidationError{
				Field:   "SlotNumber",
				Message: fmt.Sprintf("SlotNumber must be between 1 and %d", v.slotCount),
			},
		}
	}

	return nil
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
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "timeslot":
			message = fmt.Sprintf("%s must look like '9:00 AM-11:00 AM' or be 'Whole Day'", err.Field())
		case "booking_id":
			message = fmt.Sprintf("%s must be 'BK' followed by 6 digits", err.Field())
		case "plate":
			message = fmt.Sprintf("%s must be letters and digits, optionally separated by dashes (max %d)", err.Field(), maxPlateLength)
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
