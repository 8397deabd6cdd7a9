package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	reservationserrors "ecovolt/internal/reservations/errors"
	"ecovolt/pkg/model"
)

// memoryReservationRepository serializes every write on one mutex. The hot
// per-station counters live in the station registry, not here.
type memoryReservationRepository struct {
	mu           sync.RWMutex
	reservations map[string]*model.Reservation
	onePerUser   bool
}

func NewMemoryReservationRepository(onePerUser bool) ReservationRepository {
	return &memoryReservationRepository{
		reservations: make(map[string]*model.Reservation),
		onePerUser:   onePerUser,
	}
}

func clone(r *model.Reservation) *model.Reservation {
	c := *r
	return &c
}

func (m *memoryReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reservations[reservation.ID]; exists {
		return reservationserrors.ErrDuplicateID
	}
	if m.onePerUser && reservation.Status.IsOpen() {
		for _, r := range m.reservations {
			if r.UserID == reservation.UserID && r.Open {
				return reservationserrors.ErrAlreadyReserved
			}
		}
	}

	now := time.Now().UTC()
	reservation.CreatedAt = now
	reservation.UpdatedAt = now
	reservation.Open = reservation.Status.IsOpen()
	m.reservations[reservation.ID] = clone(reservation)
	return nil
}

func (m *memoryReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reservations[id]
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}
	return clone(r), nil
}

func (m *memoryReservationRepository) FindByCode(ctx context.Context, code string) (*model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.reservations {
		if code != "" && r.Code == code {
			return clone(r), nil
		}
	}
	return nil, reservationserrors.ErrNotFound
}

func (m *memoryReservationRepository) FindOpenByUser(ctx context.Context, userID string) (*model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.reservations {
		if r.UserID == userID && r.Open {
			return clone(r), nil
		}
	}
	return nil, nil
}

func (m *memoryReservationRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error) {
	m.mu.RLock()
	var out []*model.Reservation
	for _, r := range m.reservations {
		if r.UserID == userID {
			out = append(out, clone(r))
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if offset >= int64(len(out)) {
		return []*model.Reservation{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryReservationRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	m.mu.RLock()
	out := []*model.Reservation{}
	for _, r := range m.reservations {
		if r.Open && !now.Before(r.ExpiresAt) {
			out = append(out, clone(r))
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryReservationRepository) Transition(
	ctx context.Context,
	id string,
	from, to model.ReservationStatus,
	update TransitionUpdate,
) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}
	if r.Status != from || !from.CanTransitionTo(to) {
		return nil, &reservationserrors.TransitionError{ID: id, Actual: string(r.Status), Target: string(to)}
	}

	r.Status = to
	r.Open = to.IsOpen()
	r.UpdatedAt = time.Now().UTC()
	if update.Code != "" {
		r.Code = update.Code
	}
	return clone(r), nil
}
