package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	reservationserrors "ecovolt/internal/reservations/errors"
	"ecovolt/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pending(id, user string, expires time.Time) *model.Reservation {
	return &model.Reservation{ID: id, StationID: "st-1", UserID: user, Status: model.StatusPending, ExpiresAt: expires}
}

func TestCreate_OnePerUser(t *testing.T) {
	repo := NewMemoryReservationRepository(true)
	ctx := context.Background()
	later := time.Now().Add(time.Hour)

	require.NoError(t, repo.Create(ctx, pending("r-1", "u-1", later)))
	assert.ErrorIs(t, repo.Create(ctx, pending("r-2", "u-1", later)), reservationserrors.ErrAlreadyReserved)
	assert.NoError(t, repo.Create(ctx, pending("r-3", "u-2", later)))
	assert.ErrorIs(t, repo.Create(ctx, pending("r-1", "u-9", later)), reservationserrors.ErrDuplicateID)

	_, err := repo.Transition(ctx, "r-1", model.StatusPending, model.StatusCancelled, TransitionUpdate{})
	require.NoError(t, err)
	assert.NoError(t, repo.Create(ctx, pending("r-4", "u-1", later)), "terminal reservations free the user")
}

func TestCreate_PolicyOff(t *testing.T) {
	repo := NewMemoryReservationRepository(false)
	later := time.Now().Add(time.Hour)

	require.NoError(t, repo.Create(context.Background(), pending("r-1", "u-1", later)))
	assert.NoError(t, repo.Create(context.Background(), pending("r-2", "u-1", later)))
}

func TestCreate_ConcurrentSameUser(t *testing.T) {
	repo := NewMemoryReservationRepository(true)
	later := time.Now().Add(time.Hour)

	var created atomic.Int32
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Create(context.Background(), pending(fmt.Sprintf("r-%d", i), "u-1", later)); err == nil {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
}

func TestTransition_CompareAndSet(t *testing.T) {
	repo := NewMemoryReservationRepository(true)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, pending("r-1", "u-1", time.Now().Add(time.Hour))))

	r, err := repo.Transition(ctx, "r-1", model.StatusPending, model.StatusActive, TransitionUpdate{Code: "ECV1.abc"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, r.Status)
	assert.Equal(t, "ECV1.abc", r.Code)
	assert.True(t, r.Open)

	_, err = repo.Transition(ctx, "r-1", model.StatusPending, model.StatusCancelled, TransitionUpdate{})
	var terr *reservationserrors.TransitionError
	require.True(t, errors.As(err, &terr), "expected TransitionError, got %v", err)
	assert.Equal(t, string(model.StatusActive), terr.Actual)
	assert.ErrorIs(t, err, reservationserrors.ErrInvalidTransition)

	_, err = repo.Transition(ctx, "missing", model.StatusActive, model.StatusExpired, TransitionUpdate{})
	assert.ErrorIs(t, err, reservationserrors.ErrNotFound)
}

func TestTransition_ConcurrentTerminalTransitionsOnlyOneWins(t *testing.T) {
	repo := NewMemoryReservationRepository(true)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, pending("r-1", "u-1", time.Now().Add(time.Hour))))
	_, err := repo.Transition(ctx, "r-1", model.StatusPending, model.StatusActive, TransitionUpdate{Code: "c"})
	require.NoError(t, err)

	targets := []model.ReservationStatus{model.StatusCompleted, model.StatusCancelled, model.StatusExpired}
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Transition(ctx, "r-1", model.StatusActive, targets[i%3], TransitionUpdate{}); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	r, _ := repo.FindByID(ctx, "r-1")
	assert.True(t, r.Status.IsTerminal())
	assert.False(t, r.Open)
}

func TestFindExpiredAndByUser(t *testing.T) {
	repo := NewMemoryReservationRepository(false)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, pending("old", "u-1", now.Add(-time.Minute))))
	require.NoError(t, repo.Create(ctx, pending("new", "u-1", now.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, pending("done", "u-2", now.Add(-time.Hour))))
	_, err := repo.Transition(ctx, "done", model.StatusPending, model.StatusCancelled, TransitionUpdate{})
	require.NoError(t, err)

	expired, err := repo.FindExpired(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].ID)

	mine, err := repo.FindByUser(ctx, "u-1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	page, err := repo.FindByUser(ctx, "u-1", 1, 5)
	require.NoError(t, err)
	assert.Empty(t, page)

	open, err := repo.FindOpenByUser(ctx, "u-2")
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestFindByID_ReturnsCopy(t *testing.T) {
	repo := NewMemoryReservationRepository(true)
	require.NoError(t, repo.Create(context.Background(), pending("r-1", "u-1", time.Now().Add(time.Hour))))

	r, _ := repo.FindByID(context.Background(), "r-1")
	r.Status = model.StatusCompleted

	again, _ := repo.FindByID(context.Background(), "r-1")
	assert.Equal(t, model.StatusPending, again.Status)
}
