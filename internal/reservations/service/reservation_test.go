package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ecovolt/internal/inventory/allocator"
	inventoryrepo "ecovolt/internal/inventory/repository"
	"ecovolt/internal/qrcode"
	reservationserrors "ecovolt/internal/reservations/errors"
	"ecovolt/internal/reservations/repository"
	stationsrepo "ecovolt/internal/stations/repository"
	"ecovolt/pkg/config"
	apperrors "ecovolt/pkg/errors"
	"ecovolt/pkg/logger"
	"ecovolt/pkg/model"
	"ecovolt/pkg/sealer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ────────────────────────────────────────────────
// Fixtures
// ────────────────────────────────────────────────

// flakyRepository wraps a real repository and lets a test inject failures.
type flakyRepository struct {
	repository.ReservationRepository

	createFunc     func(ctx context.Context, r *model.Reservation) error
	transitionFunc func(ctx context.Context, id string, from, to model.ReservationStatus) error
}

func (f *flakyRepository) Create(ctx context.Context, r *model.Reservation) error {
	if f.createFunc != nil {
		if err := f.createFunc(ctx, r); err != nil {
			return err
		}
	}
	return f.ReservationRepository.Create(ctx, r)
}

func (f *flakyRepository) Transition(ctx context.Context, id string, from, to model.ReservationStatus, update repository.TransitionUpdate) (*model.Reservation, error) {
	if f.transitionFunc != nil {
		if err := f.transitionFunc(ctx, id, from, to); err != nil {
			return nil, err
		}
	}
	return f.ReservationRepository.Transition(ctx, id, from, to, update)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ReservationEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e model.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc       *reservationService
	repo      *flakyRepository
	stations  stationsrepo.StationRepository
	publisher *recordingPublisher
}

func testConfig() *config.Config {
	return &config.Config{
		ReservationTTL:           15 * time.Minute,
		ReservationTimeout:       2 * time.Second,
		ReservationCommitRetries: 3,
		OneReservationPerUser:    true,
		ClaimGracePeriod:         time.Minute,
		Log:                      logger.Discard(),
	}
}

func newFixture(t *testing.T, stations ...*model.Station) *fixture {
	t.Helper()

	cfg := testConfig()
	stationRepo := stationsrepo.NewMemoryStationRepository(stations...)
	repo := &flakyRepository{ReservationRepository: repository.NewMemoryReservationRepository(cfg.OneReservationPerUser)}
	alloc := allocator.New(inventoryrepo.NewMemoryClaimRepository(stationRepo), cfg.Log)

	s, err := sealer.New(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	publisher := &recordingPublisher{}

	svc := NewReservationService(repo, stationRepo, alloc, qrcode.NewIssuer(s, repo), publisher, cfg).(*reservationService)
	return &fixture{svc: svc, repo: repo, stations: stationRepo, publisher: publisher}
}

func station(id string, units int) *model.Station {
	return &model.Station{ID: id, Name: "Station " + id, TotalUnits: units, AvailableUnits: units}
}

func (f *fixture) available(t *testing.T, id string) int {
	t.Helper()
	s, err := f.stations.FindByID(context.Background(), id)
	require.NoError(t, err)
	return s.AvailableUnits
}

// ────────────────────────────────────────────────
// Reserve
// ────────────────────────────────────────────────

func TestReserve_Success(t *testing.T) {
	f := newFixture(t, station("st-1", 2))

	r, err := f.svc.Reserve(context.Background(), "st-1", "user-1")
	require.NoError(t, err)

	assert.Equal(t, model.StatusActive, r.Status)
	assert.Equal(t, "Station st-1", r.StationName)
	assert.True(t, len(r.Code) > len(qrcode.Prefix))
	assert.WithinDuration(t, r.CreatedAt.Add(15*time.Minute), r.ExpiresAt, time.Second)
	assert.Equal(t, 1, f.available(t, "st-1"))
	assert.Equal(t, []string{model.EventReservationCreated}, f.publisher.types())

	id, err := f.svc.Verify(context.Background(), r.Code)
	require.NoError(t, err)
	assert.Equal(t, r.ID, id)
}

func TestReserve_NoAvailability(t *testing.T) {
	f := newFixture(t, station("st-1", 1))

	_, err := f.svc.Reserve(context.Background(), "st-1", "user-1")
	require.NoError(t, err)

	_, err = f.svc.Reserve(context.Background(), "st-1", "user-2")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNoAvailability))
	assert.Equal(t, 0, f.available(t, "st-1"))
}

func TestReserve_UnknownStation(t *testing.T) {
	f := newFixture(t, station("st-1", 1))

	_, err := f.svc.Reserve(context.Background(), "missing", "user-1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestReserve_AlreadyReservedUntilTerminal(t *testing.T) {
	f := newFixture(t, station("st-1", 5))
	ctx := context.Background()

	first, err := f.svc.Reserve(ctx, "st-1", "user-1")
	require.NoError(t, err)

	_, err = f.svc.Reserve(ctx, "st-1", "user-1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyReserved))
	assert.Equal(t, 4, f.available(t, "st-1"))

	_, err = f.svc.Cancel(ctx, first.ID, "user-1")
	require.NoError(t, err)

	_, err = f.svc.Reserve(ctx, "st-1", "user-1")
	assert.NoError(t, err)
}

func TestReserve_ConcurrentNeverOverbooks(t *testing.T) {
	const units, riders = 3, 20
	f := newFixture(t, station("st-1", units))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := range riders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.svc.Reserve(context.Background(), "st-1", "user-"+string(rune('a'+i))); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, units, created)
	assert.Equal(t, 0, f.available(t, "st-1"))
}

func TestReserve_CompensatesWhenRecordFails(t *testing.T) {
	f := newFixture(t, station("st-1", 1))
	f.repo.createFunc = func(context.Context, *model.Reservation) error {
		return errors.New("disk on fire")
	}

	_, err := f.svc.Reserve(context.Background(), "st-1", "user-1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
	assert.Equal(t, 1, f.available(t, "st-1"), "claim must be released")
}

func TestReserve_CompensatesWhenActivateFails(t *testing.T) {
	f := newFixture(t, station("st-1", 1))
	f.repo.transitionFunc = func(_ context.Context, _ string, _, to model.ReservationStatus) error {
		if to == model.StatusActive {
			return errors.New("write refused")
		}
		return nil
	}

	_, err := f.svc.Reserve(context.Background(), "st-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, 1, f.available(t, "st-1"))

	open, err := f.repo.FindOpenByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, open, "pending record must be withdrawn")
}

func TestReserve_RetriesTransientRecord(t *testing.T) {
	f := newFixture(t, station("st-1", 1))
	calls := 0
	f.repo.createFunc = func(context.Context, *model.Reservation) error {
		calls++
		if calls == 1 {
			return reservationserrors.ErrTransient
		}
		return nil
	}

	r, err := f.svc.Reserve(context.Background(), "st-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, r.Status)
	assert.Equal(t, 2, calls)
}

func TestReserve_TimeoutCompensates(t *testing.T) {
	f := newFixture(t, station("st-1", 1))
	f.svc.cfg.ReservationTimeout = 20 * time.Millisecond
	f.repo.createFunc = func(ctx context.Context, _ *model.Reservation) error {
		<-ctx.Done()
		return ctx.Err()
	}

	_, err := f.svc.Reserve(context.Background(), "st-1", "user-1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTimeout))
	assert.Equal(t, 1, f.available(t, "st-1"))
}

// ────────────────────────────────────────────────
// Cancel / Complete
// ────────────────────────────────────────────────

func TestCancel(t *testing.T) {
	f := newFixture(t, station("st-1", 1))
	ctx := context.Background()
	r, err := f.svc.Reserve(ctx, "st-1", "user-1")
	require.NoError(t, err)

	t.Run("other user is forbidden", func(t *testing.T) {
		_, err := f.svc.Cancel(ctx, r.ID, "user-2")
		assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	})

	t.Run("owner cancels and unit returns", func(t *testing.T) {
		got, err := f.svc.Cancel(ctx, r.ID, "user-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, got.Status)
		assert.Equal(t, 1, f.available(t, "st-1"))
	})

	t.Run("second cancel is an invalid transition", func(t *testing.T) {
		_, err := f.svc.Cancel(ctx, r.ID, "user-1")
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
		assert.Equal(t, 1, f.available(t, "st-1"))
	})

	t.Run("code is dead after cancel", func(t *testing.T) {
		_, err := f.svc.Verify(ctx, r.Code)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidCode))
	})
}

func TestComplete(t *testing.T) {
	f := newFixture(t, station("st-1", 1))
	ctx := context.Background()
	r, err := f.svc.Reserve(ctx, "st-1", "user-1")
	require.NoError(t, err)

	got, err := f.svc.Complete(ctx, r.Code)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, 1, f.available(t, "st-1"))

	_, err = f.svc.Complete(ctx, r.Code)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidCode))

	_, err = f.svc.Complete(ctx, "ECV1.garbage")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidCode))

	assert.Equal(t, []string{model.EventReservationCreated, model.EventReservationCompleted}, f.publisher.types())
}

func TestGet_And_QRCode(t *testing.T) {
	f := newFixture(t, station("st-1", 1))
	ctx := context.Background()
	r, err := f.svc.Reserve(ctx, "st-1", "user-1")
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, r.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, r.Code, got.Code)

	_, err = f.svc.Get(ctx, "nope", "user-1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	png, err := f.svc.QRCode(ctx, r.ID, "user-1", 128)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	list, err := f.svc.ListByUser(ctx, "user-1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// ────────────────────────────────────────────────
// Expiry and reconciliation
// ────────────────────────────────────────────────

func TestExpireDue_Idempotent(t *testing.T) {
	f := newFixture(t, station("st-1", 2))
	ctx := context.Background()

	r, err := f.svc.Reserve(ctx, "st-1", "user-1")
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, "st-1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, 0, f.available(t, "st-1"))

	later := r.ExpiresAt.Add(time.Second)

	n, err := f.svc.ExpireDue(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, f.available(t, "st-1"))

	n, err = f.svc.ExpireDue(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 2, f.available(t, "st-1"))

	got, err := f.svc.Get(ctx, r.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, got.Status)

	_, err = f.svc.Complete(ctx, r.Code)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidCode))
}

func TestExpireDue_SkipsUnexpired(t *testing.T) {
	f := newFixture(t, station("st-1", 1))
	ctx := context.Background()
	r, err := f.svc.Reserve(ctx, "st-1", "user-1")
	require.NoError(t, err)

	n, err := f.svc.ExpireDue(ctx, r.ExpiresAt.Add(-time.Second))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 0, f.available(t, "st-1"))
}

func TestReconcileClaims_ReleasesOrphans(t *testing.T) {
	f := newFixture(t, station("st-1", 2))
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, "st-1", "user-1")
	require.NoError(t, err)

	// A claim with no reservation behind it, as left by a crash mid-reserve.
	_, err = f.svc.allocator.TryClaim(ctx, "st-1", "orphan")
	require.NoError(t, err)
	assert.Equal(t, 0, f.available(t, "st-1"))

	f.svc.cfg.ClaimGracePeriod = -time.Hour
	f.svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	n, err := f.svc.ReconcileClaims(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.available(t, "st-1"))
}

func TestReconcileClaims_LeavesInFlightReserveAlone(t *testing.T) {
	f := newFixture(t, station("st-1", 1))
	ctx := context.Background()

	// Grace shorter than a reserve can take; only the in-flight guard keeps
	// the claim.
	f.svc.cfg.ClaimGracePeriod = 10 * time.Millisecond

	recording := make(chan struct{})
	resume := make(chan struct{})
	var once sync.Once
	f.repo.createFunc = func(context.Context, *model.Reservation) error {
		once.Do(func() {
			close(recording)
			<-resume
		})
		return nil
	}

	type result struct {
		r   *model.Reservation
		err error
	}
	done := make(chan result, 1)
	go func() {
		r, err := f.svc.Reserve(ctx, "st-1", "user-1")
		done <- result{r, err}
	}()

	<-recording
	time.Sleep(20 * time.Millisecond)
	n, err := f.svc.ReconcileClaims(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "claim of a running reserve must not be released")
	assert.Equal(t, 0, f.available(t, "st-1"))

	close(resume)
	first := <-done
	require.NoError(t, first.err)
	assert.Equal(t, model.StatusActive, first.r.Status)

	_, err = f.svc.Reserve(ctx, "st-1", "user-2")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNoAvailability))
	assert.Equal(t, 0, f.available(t, "st-1"))
}
