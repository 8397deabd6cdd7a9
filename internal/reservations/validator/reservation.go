package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ecovolt/internal/qrcode"
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

// StationRef is a station id that older clients send as a JSON number.
type StationRef string

func (s *StationRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = StationRef(str)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("stationId must be a string or an integer")
	}
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("stationId must be a string or an integer")
	}
	*s = StationRef(n.String())
	return nil
}

type ReserveRequest struct {
	StationID StationRef `json:"stationId" validate:"required,max=64"`
}

// CodeRequest carries a scanned QR code.
type CodeRequest struct {
	QRCode string `json:"qrCode" validate:"required,max=512"`
}

type ReservationValidator struct {
	validate *validator.Validate
}

func NewReservationValidator() *ReservationValidator {
	return &ReservationValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateReserve checks req and normalizes its station id in place.
func (v *ReservationValidator) ValidateReserve(req *ReserveRequest) error {
	req.StationID = StationRef(sanitizer.SanitizeStationID(string(req.StationID)))
	return v.check(req)
}

func (v *ReservationValidator) ValidateCode(req *CodeRequest) error {
	req.QRCode = strings.TrimSpace(req.QRCode)
	if err := v.check(req); err != nil {
		return err
	}
	if !strings.HasPrefix(req.QRCode, qrcode.Prefix) {
		return ValidationErrors{{Field: "qrCode", Message: "qrCode is not a reservation code"}}
	}
	return nil
}

func (v *ReservationValidator) check(req any) error {
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
		field := jsonName(err.Field())
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", field, err.Param())
		}

		out = append(out, ValidationError{Field: field, Message: message})
	}
	return out
}

func jsonName(field string) string {
	switch field {
	case "StationID":
		return "stationId"
	case "QRCode":
		return "qrCode"
	default:
		return field
	}
}
