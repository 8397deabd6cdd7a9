package validator

import (
	"errors"
	"fmt"
	"strings"

	"ecovolt/pkg/sanitizer"

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
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// CredentialsRequest is the body of both register and login. Passwords are
// capped at 72 bytes, the most bcrypt will hash.
type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type AuthValidator struct {
	validate *validator.Validate
}

func NewAuthValidator() *AuthValidator {
	return &AuthValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Validate normalizes the email in place and checks both fields.
func (v *AuthValidator) Validate(req *CredentialsRequest) error {
	req.Email = sanitizer.SanitizeEmail(req.Email)

	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translate(validationErrs)
		}
		return err
	}
	return nil
}

func translate(errs validator.ValidationErrors) ValidationErrors {
	out := make(ValidationErrors, 0, len(errs))
	for _, err := range errs {
		field := strings.ToLower(err.Field())
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "email":
			message = "email must be a valid email address"
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", field, err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", field, err.Param())
		}

		out = append(out, ValidationError{Field: field, Message: message})
	}
	return out
}
