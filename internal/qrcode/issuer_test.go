package qrcode

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	reservationserrors "ecovolt/internal/reservations/errors"
	"ecovolt/pkg/model"
	"ecovolt/pkg/sealer"
)

type fakeFinder struct {
	reservations map[string]*model.Reservation
	err          error
}

func (f *fakeFinder) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.reservations[id]
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}
	return r, nil
}

func newIssuer(t *testing.T, finder ReservationFinder) *Issuer {
	t.Helper()
	s, err := sealer.New(bytes.Repeat([]byte{3}, 32))
	if err != nil {
		t.Fatalf("sealer.New: %v", err)
	}
	return NewIssuer(s, finder)
}

func TestIssue_UniqueAndPrefixed(t *testing.T) {
	issuer := newIssuer(t, &fakeFinder{})

	seen := map[string]bool{}
	for range 100 {
		code, err := issuer.Issue("r-1")
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if !strings.HasPrefix(code, Prefix) {
			t.Fatalf("code %q lacks prefix", code)
		}
		if seen[code] {
			t.Fatalf("duplicate code issued: %s", code)
		}
		seen[code] = true
	}
}

func TestVerify_RoundTripWhileActive(t *testing.T) {
	finder := &fakeFinder{reservations: map[string]*model.Reservation{}}
	issuer := newIssuer(t, finder)

	code, _ := issuer.Issue("r-1")
	finder.reservations["r-1"] = &model.Reservation{ID: "r-1", Status: model.StatusActive, Code: code}

	id, err := issuer.Verify(context.Background(), code)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id != "r-1" {
		t.Errorf("Verify() = %q, want r-1", id)
	}
}

func TestVerify_FailsOnceTerminal(t *testing.T) {
	for _, status := range []model.ReservationStatus{model.StatusCancelled, model.StatusCompleted, model.StatusExpired, model.StatusPending} {
		t.Run(string(status), func(t *testing.T) {
			finder := &fakeFinder{reservations: map[string]*model.Reservation{}}
			issuer := newIssuer(t, finder)

			code, _ := issuer.Issue("r-1")
			finder.reservations["r-1"] = &model.Reservation{ID: "r-1", Status: status, Code: code}

			if _, err := issuer.Verify(context.Background(), code); !errors.Is(err, reservationserrors.ErrInvalidCode) {
				t.Errorf("expected ErrInvalidCode for %s, got %v", status, err)
			}
		})
	}
}

func TestVerify_Rejects(t *testing.T) {
	finder := &fakeFinder{reservations: map[string]*model.Reservation{}}
	issuer := newIssuer(t, finder)

	stored, _ := issuer.Issue("r-1")
	finder.reservations["r-1"] = &model.Reservation{ID: "r-1", Status: model.StatusActive, Code: stored}
	superseded, _ := issuer.Issue("r-1")
	orphan, _ := issuer.Issue("r-404")

	tests := []struct {
		name string
		code string
	}{
		{"empty", ""},
		{"missing prefix", strings.TrimPrefix(stored, Prefix)},
		{"garbage", Prefix + "not-a-token"},
		{"sequential guess", Prefix + "r-2"},
		{"valid seal but not the stored code", superseded},
		{"unknown reservation", orphan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issuer.Verify(context.Background(), tt.code); !errors.Is(err, reservationserrors.ErrInvalidCode) {
				t.Errorf("expected ErrInvalidCode, got %v", err)
			}
		})
	}
}

func TestVerify_PropagatesLedgerFailure(t *testing.T) {
	boom := errors.New("ledger down")
	issuer := newIssuer(t, &fakeFinder{err: boom})

	code, _ := issuer.Issue("r-1")
	if _, err := issuer.Verify(context.Background(), code); !errors.Is(err, boom) {
		t.Errorf("expected ledger error, got %v", err)
	}
}

func TestPNG(t *testing.T) {
	issuer := newIssuer(t, &fakeFinder{})
	code, _ := issuer.Issue("r-1")

	png, err := issuer.PNG(code, 0)
	if err != nil {
		t.Fatalf("PNG: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Errorf("output is not a PNG")
	}
}
