// Package qrcode mints and checks the codes a rider scans to unlock a
// scooter. A code is the reservation id sealed with AES-GCM, so it cannot be
// guessed or forged, and it is only honoured while the reservation it names
// is active and still carries that exact code.
package qrcode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	reservationserrors "ecovolt/internal/reservations/errors"
	"ecovolt/pkg/model"
	"ecovolt/pkg/sealer"

	goqrcode "github.com/skip2/go-qrcode"
)

const (
	Prefix = "ECV1."

	DefaultPNGSize = 256
	maxPNGSize     = 1024
	minPNGSize     = 64
)

type ReservationFinder interface {
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
}

type Issuer struct {
	sealer *sealer.Sealer
	finder ReservationFinder
}

func NewIssuer(s *sealer.Sealer, finder ReservationFinder) *Issuer {
	return &Issuer{sealer: s, finder: finder}
}

func (i *Issuer) Issue(reservationID string) (string, error) {
	if reservationID == "" {
		return "", fmt.Errorf("reservation id is required")
	}
	token, err := i.sealer.Seal([]byte(reservationID))
	if err != nil {
		return "", fmt.Errorf("seal reservation code: %w", err)
	}
	return Prefix + token, nil
}

// Open recovers the reservation id without consulting the ledger.
func (i *Issuer) Open(code string) (string, error) {
	token, ok := strings.CutPrefix(strings.TrimSpace(code), Prefix)
	if !ok || token == "" {
		return "", reservationserrors.ErrInvalidCode
	}
	id, err := i.sealer.Open(token)
	if err != nil {
		return "", reservationserrors.ErrInvalidCode
	}
	return string(id), nil
}

// Verify returns the reservation id for an active reservation whose stored
// code is exactly code. Codes of terminal reservations fail.
func (i *Issuer) Verify(ctx context.Context, code string) (string, error) {
	id, err := i.Open(code)
	if err != nil {
		return "", err
	}

	r, err := i.finder.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			return "", reservationserrors.ErrInvalidCode
		}
		return "", err
	}

	if r.Status != model.StatusActive || r.Code != strings.TrimSpace(code) {
		return "", reservationserrors.ErrInvalidCode
	}
	return r.ID, nil
}

// PNG renders code as a QR image of size×size pixels.
func (i *Issuer) PNG(code string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultPNGSize
	}
	size = min(max(size, minPNGSize), maxPNGSize)
	return goqrcode.Encode(code, goqrcode.Medium, size)
}
