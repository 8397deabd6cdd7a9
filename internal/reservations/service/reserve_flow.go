package service

import (
	"context"
	"errors"
	"time"

	"ecovolt/internal/inventory/allocator"
	inventoryerrors "ecovolt/internal/inventory/errors"
	reservationserrors "ecovolt/internal/reservations/errors"
	"ecovolt/internal/reservations/repository"
	apperrors "ecovolt/pkg/errors"
	"ecovolt/pkg/flow"
	"ecovolt/pkg/metrics"
	"ecovolt/pkg/model"

	"github.com/google/uuid"
)

type reserveState struct {
	stationID string
	userID    string
	id        string

	claim       *allocator.ClaimHandle
	recorded    bool
	withdrawn   bool
	code        string
	reservation *model.Reservation
}

type reserveFlow = flow.Flow[reserveState]

func newReservationID() string {
	return uuid.NewString()
}

func newReserveFlow(s *reservationService) *reserveFlow {
	return flow.New(
		"reserve",
		s.cfg.Log,
		flow.Step[reserveState]{
			Name:    "check_open",
			Execute: s.checkOpen,
		},
		flow.Step[reserveState]{
			Name:       "claim",
			Execute:    s.claim,
			Compensate: s.unclaim,
		},
		flow.Step[reserveState]{
			Name:       "record",
			Execute:    s.record,
			Compensate: s.withdraw,
			Attempts:   s.cfg.ReservationCommitRetries,
			Retryable:  isTransient,
		},
		flow.Step[reserveState]{
			Name:    "issue_code",
			Execute: s.issueCode,
		},
		flow.Step[reserveState]{
			Name:      "activate",
			Execute:   s.activate,
			Attempts:  s.cfg.ReservationCommitRetries,
			Retryable: isTransient,
		},
	)
}

func (s *reservationService) checkOpen(ctx context.Context, st *reserveState) error {
	if !s.cfg.OneReservationPerUser {
		return nil
	}
	open, err := s.repo.FindOpenByUser(ctx, st.userID)
	if err != nil {
		return err
	}
	if open != nil {
		return apperrors.AlreadyReserved(open.ID)
	}
	return nil
}

func (s *reservationService) claim(ctx context.Context, st *reserveState) error {
	handle, err := s.allocator.TryClaim(ctx, st.stationID, st.id)
	switch {
	case err == nil:
		st.claim = handle
		return nil
	case errors.Is(err, inventoryerrors.ErrNoAvailability):
		return apperrors.NoAvailability(st.stationID)
	case errors.Is(err, inventoryerrors.ErrStationNotFound):
		return apperrors.NotFoundWithID("Station", st.stationID)
	default:
		return err
	}
}

// unclaim gives the unit back unless a reservation record that could not be
// withdrawn still points at it. The sweeper closes that record and releases
// the claim when it expires.
func (s *reservationService) unclaim(ctx context.Context, st *reserveState) error {
	if st.claim == nil {
		return nil
	}
	if st.recorded && !st.withdrawn {
		s.cfg.Log.Warn("Keeping claim of unwithdrawn reservation for the sweeper",
			"reservation_id", st.id,
			"station_id", st.stationID,
		)
		return nil
	}
	if err := s.allocator.Release(ctx, *st.claim); err != nil {
		metrics.IncCompensation(metrics.ResultError)
		return err
	}
	metrics.IncCompensation(metrics.ResultSuccess)
	return nil
}

func (s *reservationService) record(ctx context.Context, st *reserveState) error {
	now := s.now().UTC().Truncate(time.Millisecond)
	r := &model.Reservation{
		ID:        st.id,
		StationID: st.stationID,
		UserID:    st.userID,
		Status:    model.StatusPending,
		Open:      true,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.cfg.ReservationTTL),
	}
	if station, err := s.stations.FindByID(ctx, st.stationID); err == nil {
		r.StationName = station.Name
	}

	err := s.repo.Create(ctx, r)
	if err == nil {
		st.recorded = true
		st.reservation = r
		return nil
	}

	// A retried insert may collide with its own earlier attempt that
	// committed before the error surfaced.
	if errors.Is(err, reservationserrors.ErrDuplicateID) || errors.Is(err, reservationserrors.ErrAlreadyReserved) {
		if existing, ferr := s.repo.FindByID(ctx, st.id); ferr == nil && existing.UserID == st.userID {
			st.recorded = true
			st.reservation = existing
			return nil
		}
	}
	if errors.Is(err, reservationserrors.ErrAlreadyReserved) {
		return apperrors.AlreadyReserved("")
	}
	return err
}

func (s *reservationService) withdraw(ctx context.Context, st *reserveState) error {
	if !st.recorded {
		return nil
	}

	_, err := s.repo.Transition(ctx, st.id, model.StatusPending, model.StatusCancelled, repository.TransitionUpdate{})
	var terr *reservationserrors.TransitionError
	if errors.As(err, &terr) && terr.Actual == string(model.StatusActive) {
		_, err = s.repo.Transition(ctx, st.id, model.StatusActive, model.StatusCancelled, repository.TransitionUpdate{})
	}
	if err != nil && !errors.As(err, &terr) {
		metrics.IncCompensation(metrics.ResultError)
		return err
	}

	st.withdrawn = true
	metrics.IncCompensation(metrics.ResultSuccess)
	return nil
}

func (s *reservationService) issueCode(_ context.Context, st *reserveState) error {
	code, err := s.issuer.Issue(st.id)
	if err != nil {
		return err
	}
	st.code = code
	return nil
}

func (s *reservationService) activate(ctx context.Context, st *reserveState) error {
	updated, err := s.repo.Transition(ctx, st.id, model.StatusPending, model.StatusActive, repository.TransitionUpdate{Code: st.code})
	if err == nil {
		st.reservation = updated
		return nil
	}

	var terr *reservationserrors.TransitionError
	if errors.As(err, &terr) && terr.Actual == string(model.StatusActive) {
		current, ferr := s.repo.FindByID(ctx, st.id)
		if ferr == nil && current.Code == st.code {
			st.reservation = current
			return nil
		}
	}
	return err
}
