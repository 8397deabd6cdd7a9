package validator

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	v := NewAuthValidator()

	tests := []struct {
		name      string
		req       CredentialsRequest
		wantField string
	}{
		{"valid", CredentialsRequest{Email: "rider@example.com", Password: "secret1"}, ""},
		{"missing email", CredentialsRequest{Password: "secret1"}, "email"},
		{"bad email", CredentialsRequest{Email: "not-an-email", Password: "secret1"}, "email"},
		{"short password", CredentialsRequest{Email: "rider@example.com", Password: "123"}, "password"},
		{"long password", CredentialsRequest{Email: "rider@example.com", Password: strings.Repeat("x", 73)}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := v.Validate(&req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if verrs[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verrs[0].Field, tt.wantField)
			}
		})
	}
}

func TestValidate_NormalizesEmail(t *testing.T) {
	req := CredentialsRequest{Email: "  Rider@Example.COM ", Password: "secret1"}
	if err := NewAuthValidator().Validate(&req); err != nil {
		t.Fatal(err)
	}
	if req.Email != "rider@example.com" {
		t.Errorf("Email = %q", req.Email)
	}
}
