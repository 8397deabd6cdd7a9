package validator

import (
	"errors"
	"fmt"
	"strings"

	"ecovolt/pkg/model"

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

type StationValidator struct {
	validate *validator.Validate
}

func NewStationValidator() *StationValidator {
	return &StationValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (v *StationValidator) Validate(station *model.Station) error {
	if err := v.validate.Struct(station); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(station.ID, validationErrs)
		}
		return err
	}
	return nil
}

// ValidateAll checks every station and rejects duplicate ids across the set.
func (v *StationValidator) ValidateAll(stations []*model.Station) error {
	var all ValidationErrors
	seen := make(map[string]struct{}, len(stations))

	for _, s := range stations {
		if err := v.Validate(s); err != nil {
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				return err
			}
			all = append(all, verrs...)
		}
		if _, dup := seen[s.ID]; dup {
			all = append(all, ValidationError{
				Field:   "ID",
				Message: fmt.Sprintf("station %q is declared more than once", s.ID),
			})
		}
		seen[s.ID] = struct{}{}
	}

	if len(all) > 0 {
		return all
	}
	return nil
}

func (v *StationValidator) translateValidationErrors(id string, errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "gte":
			message = fmt.Sprintf("%s must be >= %s", err.Field(), err.Param())
		case "lte":
			message = fmt.Sprintf("%s must be <= %s", err.Field(), err.Param())
		case "ltefield":
			message = fmt.Sprintf("%s cannot exceed %s", err.Field(), err.Param())
		}

		if id != "" {
			message = fmt.Sprintf("station %s: %s", id, message)
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
