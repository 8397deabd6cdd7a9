package service

import (
	"context"
	"errors"
	"time"

	"ecovolt/internal/inventory/allocator"
	inventoryerrors "ecovolt/internal/inventory/errors"
	reservationserrors "ecovolt/internal/reservations/errors"
	"ecovolt/internal/reservations/repository"
	stationsrepo "ecovolt/internal/stations/repository"
	"ecovolt/pkg/config"
	mongotx "ecovolt/pkg/db/mongo"
	apperrors "ecovolt/pkg/errors"
	"ecovolt/pkg/metrics"
	"ecovolt/pkg/model"
)

const expireBatchSize = 100

type ReservationService interface {
	Reserve(ctx context.Context, stationID, userID string) (*model.Reservation, error)
	Cancel(ctx context.Context, id, userID string) (*model.Reservation, error)
	// Complete closes the reservation whose code was scanned at a dock.
	Complete(ctx context.Context, code string) (*model.Reservation, error)
	Get(ctx context.Context, id, userID string) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error)
	Verify(ctx context.Context, code string) (string, error)
	QRCode(ctx context.Context, id, userID string, size int) ([]byte, error)
	// ExpireDue closes every open reservation past its expiry. Running it
	// twice leaves the same state as running it once.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
	ReconcileClaims(ctx context.Context) (int, error)
}

type CodeIssuer interface {
	Issue(reservationID string) (string, error)
	Verify(ctx context.Context, code string) (string, error)
	PNG(code string, size int) ([]byte, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event model.ReservationEvent) error
}

type reservationService struct {
	repo      repository.ReservationRepository
	stations  stationsrepo.StationRepository
	allocator allocator.Allocator
	issuer    CodeIssuer
	publisher EventPublisher
	cfg       *config.Config
	reserve   *reserveFlow
	now       func() time.Time
	newID     func() string
}

func NewReservationService(
	repo repository.ReservationRepository,
	stations stationsrepo.StationRepository,
	alloc allocator.Allocator,
	issuer CodeIssuer,
	publisher EventPublisher,
	cfg *config.Config,
) ReservationService {
	s := &reservationService{
		repo:      repo,
		stations:  stations,
		allocator: alloc,
		issuer:    issuer,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		newID:     newReservationID,
	}
	s.reserve = newReserveFlow(s)
	return s
}

func (s *reservationService) Reserve(ctx context.Context, stationID, userID string) (*model.Reservation, error) {
	start := time.Now()
	if userID == "" {
		return nil, apperrors.Unauthorized("Missing principal")
	}
	if stationID == "" {
		return nil, apperrors.InvalidInput("stationId is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReservationTimeout)
	defer cancel()

	state := &reserveState{
		stationID: stationID,
		userID:    userID,
		id:        s.newID(),
	}

	if err := s.reserve.Run(ctx, state); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !apperrors.IsAppError(err) {
			err = apperrors.Timeout("Reservation did not complete in time")
		}
		appErr := s.toAppError(err, "Failed to create reservation")
		metrics.ObserveReserve(outcomeOf(appErr), time.Since(start))
		if appErr.StatusCode() >= 500 {
			s.cfg.Log.Error("Reservation failed",
				"station_id", stationID,
				"user_id", userID,
				"reservation_id", state.id,
				"error", err,
			)
		} else {
			s.cfg.Log.Info("Reservation rejected",
				"station_id", stationID,
				"user_id", userID,
				"code", appErr.Code,
			)
		}
		return nil, appErr
	}

	metrics.ObserveReserve("created", time.Since(start))
	metrics.IncTransition(string(model.StatusActive))
	s.publish(ctx, model.EventReservationCreated, state.reservation)

	s.cfg.Log.Info("Reservation created",
		"id", state.reservation.ID,
		"station_id", stationID,
		"user_id", userID,
		"expires_at", state.reservation.ExpiresAt,
	)
	return state.reservation, nil
}

func (s *reservationService) Cancel(ctx context.Context, id, userID string) (*model.Reservation, error) {
	current, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if current.Status != model.StatusActive {
		return nil, apperrors.InvalidTransition(string(current.Status), string(model.StatusCancelled))
	}

	updated, err := s.repo.Transition(ctx, id, model.StatusActive, model.StatusCancelled, repository.TransitionUpdate{})
	if err != nil {
		return nil, s.toAppError(err, "Failed to cancel reservation")
	}

	s.release(ctx, updated)
	metrics.IncTransition(string(model.StatusCancelled))
	s.publish(ctx, model.EventReservationCancelled, updated)
	s.cfg.Log.Info("Reservation cancelled", "id", id, "user_id", userID)
	return updated, nil
}

func (s *reservationService) Complete(ctx context.Context, code string) (*model.Reservation, error) {
	id, err := s.issuer.Verify(ctx, code)
	if err != nil {
		return nil, s.toAppError(err, "Failed to verify code")
	}

	updated, err := s.repo.Transition(ctx, id, model.StatusActive, model.StatusCompleted, repository.TransitionUpdate{})
	if err != nil {
		return nil, s.toAppError(err, "Failed to complete reservation")
	}

	s.release(ctx, updated)
	metrics.IncTransition(string(model.StatusCompleted))
	s.publish(ctx, model.EventReservationCompleted, updated)
	s.cfg.Log.Info("Reservation completed", "id", id, "station_id", updated.StationID)
	return updated, nil
}

func (s *reservationService) Get(ctx context.Context, id, userID string) (*model.Reservation, error) {
	return s.owned(ctx, id, userID)
}

func (s *reservationService) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("Missing principal")
	}
	reservations, err := s.repo.FindByUser(ctx, userID, config.NormalizePaginationLimit(limit), config.NormalizeOffset(offset))
	if err != nil {
		s.cfg.Log.Error("Failed to list reservations", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservations", err)
	}
	return reservations, nil
}

func (s *reservationService) Verify(ctx context.Context, code string) (string, error) {
	id, err := s.issuer.Verify(ctx, code)
	if err != nil {
		return "", s.toAppError(err, "Failed to verify code")
	}
	return id, nil
}

func (s *reservationService) QRCode(ctx context.Context, id, userID string, size int) ([]byte, error) {
	r, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if r.Status != model.StatusActive || r.Code == "" {
		return nil, apperrors.InvalidCode()
	}

	png, err := s.issuer.PNG(r.Code, size)
	if err != nil {
		return nil, apperrors.Internal("Failed to render QR code", err)
	}
	return png, nil
}

func (s *reservationService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for {
		due, err := s.repo.FindExpired(ctx, now, expireBatchSize)
		if err != nil {
			return total, apperrors.Internal("Failed to list expired reservations", err)
		}

		progressed := 0
		for _, r := range due {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			if s.expire(ctx, r) {
				total++
				progressed++
			}
		}

		if len(due) < expireBatchSize || progressed == 0 {
			return total, nil
		}
	}
}

// expire closes one overdue reservation. Active ones become Expired; a
// Pending one past its expiry was abandoned mid-reserve and is cancelled.
// Losing the compare-and-set to a user action is not an error.
func (s *reservationService) expire(ctx context.Context, r *model.Reservation) bool {
	to := model.StatusExpired
	event := model.EventReservationExpired
	if r.Status == model.StatusPending {
		to = model.StatusCancelled
		event = model.EventReservationCancelled
	}

	updated, err := s.repo.Transition(ctx, r.ID, r.Status, to, repository.TransitionUpdate{})
	if err != nil {
		if !errors.Is(err, reservationserrors.ErrInvalidTransition) && !errors.Is(err, reservationserrors.ErrNotFound) {
			s.cfg.Log.Error("Failed to expire reservation", "id", r.ID, "error", err)
		}
		return false
	}

	s.release(ctx, updated)
	metrics.IncTransition(string(to))
	s.publish(ctx, event, updated)
	s.cfg.Log.Info("Reservation expired", "id", r.ID, "status", to, "expires_at", r.ExpiresAt)
	return true
}

func (s *reservationService) ReconcileClaims(ctx context.Context) (int, error) {
	return s.allocator.Reconcile(ctx, s.cfg.ClaimGracePeriod, func(ctx context.Context, claim *model.Claim) (bool, error) {
		r, err := s.repo.FindByID(ctx, claim.ID)
		if errors.Is(err, reservationserrors.ErrNotFound) {
			// No record yet: a reserve may still be running or compensating.
			return s.now().Sub(claim.CreatedAt) < s.cfg.ReserveInFlightBound(), nil
		}
		if err != nil {
			return false, err
		}
		return r.Status.IsOpen(), nil
	})
}

func (s *reservationService) owned(ctx context.Context, id, userID string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		s.cfg.Log.Error("Failed to get reservation", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}
	if r.UserID != userID {
		return nil, apperrors.Forbidden("Reservation belongs to another user")
	}
	return r, nil
}

// release hands the unit back. A failure here is left to the claim
// reconciler; the reservation itself is already terminal.
func (s *reservationService) release(ctx context.Context, r *model.Reservation) {
	handle := allocator.ClaimHandle{ID: r.ID, StationID: r.StationID}
	if err := s.allocator.Release(context.WithoutCancel(ctx), handle); err != nil {
		s.cfg.Log.Error("Failed to release claim; reconciler will retry",
			"reservation_id", r.ID,
			"station_id", r.StationID,
			"error", err,
		)
	}
}

func (s *reservationService) publish(ctx context.Context, eventType string, r *model.Reservation) {
	if s.publisher == nil || r == nil {
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), model.NewReservationEvent(eventType, r)); err != nil {
		s.cfg.Log.Warn("Failed to publish reservation event",
			"type", eventType,
			"reservation_id", r.ID,
			"error", err,
		)
	}
}

func (s *reservationService) toAppError(err error, message string) *apperrors.AppError {
	if apperrors.IsAppError(err) {
		return apperrors.AsAppError(err)
	}

	var terr *reservationserrors.TransitionError
	switch {
	case errors.As(err, &terr):
		return apperrors.InvalidTransition(terr.Actual, terr.Target)
	case errors.Is(err, reservationserrors.ErrNotFound):
		return apperrors.NotFound("Reservation")
	case errors.Is(err, reservationserrors.ErrInvalidCode):
		return apperrors.InvalidCode()
	case errors.Is(err, reservationserrors.ErrAlreadyReserved):
		return apperrors.AlreadyReserved("")
	case errors.Is(err, inventoryerrors.ErrNoAvailability):
		return apperrors.NoAvailability("")
	case errors.Is(err, inventoryerrors.ErrStationNotFound):
		return apperrors.NotFound("Station")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Reservation did not complete in time")
	default:
		return apperrors.Internal(message, err)
	}
}

func isTransient(err error) bool {
	return errors.Is(err, reservationserrors.ErrTransient) || mongotx.IsTransient(err)
}

func outcomeOf(err *apperrors.AppError) string {
	switch err.Code {
	case apperrors.CodeNoAvailability:
		return "no_availability"
	case apperrors.CodeAlreadyReserved:
		return "already_reserved"
	case apperrors.CodeNotFound:
		return "station_not_found"
	case apperrors.CodeTimeout:
		return "timeout"
	default:
		return metrics.ResultError
	}
}
