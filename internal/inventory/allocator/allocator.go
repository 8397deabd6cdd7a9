package allocator

import (
	"context"
	"errors"
	"fmt"
	"time"

	inventoryerrors "ecovolt/internal/inventory/errors"
	"ecovolt/internal/inventory/repository"
	stationserrors "ecovolt/internal/stations/errors"
	"ecovolt/pkg/logger"
	"ecovolt/pkg/metrics"
	"ecovolt/pkg/model"
)

const reconcileBatchSize = 100

// ClaimHandle identifies a held unit. ID is the reservation id.
type ClaimHandle struct {
	ID        string
	StationID string
}

// HeldFunc reports whether the reservation behind a claim still needs its
// unit.
type HeldFunc func(ctx context.Context, claim *model.Claim) (bool, error)

type Allocator interface {
	// TryClaim takes exactly one unit from the station or fails with
	// ErrNoAvailability / ErrStationNotFound. Never retried internally.
	TryClaim(ctx context.Context, stationID, claimID string) (*ClaimHandle, error)
	// Release returns the unit. Releasing twice is a no-op.
	Release(ctx context.Context, handle ClaimHandle) error
	// Reconcile releases unreleased claims older than olderThan whose
	// reservation no longer holds them.
	Reconcile(ctx context.Context, olderThan time.Duration, held HeldFunc) (int, error)
}

type allocator struct {
	claims    repository.ClaimRepository
	log       *logger.Logger
	now       func() time.Time
	batchSize int
}

func New(claims repository.ClaimRepository, log *logger.Logger) Allocator {
	return &allocator{
		claims:    claims,
		log:       log,
		now:       time.Now,
		batchSize: reconcileBatchSize,
	}
}

func (a *allocator) TryClaim(ctx context.Context, stationID, claimID string) (*ClaimHandle, error) {
	claim := &model.Claim{
		ID:        claimID,
		StationID: stationID,
		CreatedAt: a.now().UTC().Truncate(time.Millisecond),
	}

	err := a.claims.Claim(ctx, claim)
	switch {
	case err == nil:
		metrics.IncClaim("granted")
		return &ClaimHandle{ID: claimID, StationID: stationID}, nil
	case errors.Is(err, stationserrors.ErrCapacityViolation):
		metrics.IncClaim("no_availability")
		return nil, inventoryerrors.ErrNoAvailability
	case errors.Is(err, stationserrors.ErrNotFound):
		metrics.IncClaim("station_not_found")
		return nil, inventoryerrors.ErrStationNotFound
	case errors.Is(err, inventoryerrors.ErrDuplicateClaim):
		metrics.IncClaim("duplicate")
		return nil, err
	default:
		metrics.IncClaim(metrics.ResultError)
		return nil, fmt.Errorf("claim station %s: %w", stationID, err)
	}
}

func (a *allocator) Release(ctx context.Context, handle ClaimHandle) error {
	outcome, err := a.claims.Release(ctx, handle.ID)
	if err != nil {
		if errors.Is(err, inventoryerrors.ErrClaimNotFound) {
			metrics.IncRelease("not_found")
			return nil
		}
		metrics.IncRelease(metrics.ResultError)
		return fmt.Errorf("release claim %s: %w", handle.ID, err)
	}

	switch outcome {
	case repository.Released:
		metrics.IncRelease("released")
	case repository.ReleaseNoop:
		metrics.IncRelease("noop")
	case repository.ReleasedCapped:
		metrics.IncRelease("capped")
		metrics.IncCapacityViolation()
		a.log.Error("Capacity violation: released unit would exceed station capacity",
			"claim_id", handle.ID,
			"station_id", handle.StationID,
		)
	}
	return nil
}

func (a *allocator) Reconcile(ctx context.Context, olderThan time.Duration, held HeldFunc) (int, error) {
	cutoff := a.now().UTC().Add(-olderThan)

	released := 0
	var after *repository.ClaimCursor
	for {
		claims, err := a.claims.FindUnreleasedBefore(ctx, cutoff, after, a.batchSize)
		if err != nil {
			return released, fmt.Errorf("list dangling claims: %w", err)
		}

		for _, claim := range claims {
			if err := ctx.Err(); err != nil {
				return released, err
			}
			if a.reconcileOne(ctx, claim, held) {
				released++
			}
		}

		if len(claims) < a.batchSize {
			return released, nil
		}
		after = repository.CursorAfter(claims[len(claims)-1])
	}
}

func (a *allocator) reconcileOne(ctx context.Context, claim *model.Claim, held HeldFunc) bool {
	stillHeld, err := held(ctx, claim)
	if err != nil {
		a.log.Warn("Skipping claim during reconcile", "claim_id", claim.ID, "error", err)
		return false
	}
	if stillHeld {
		return false
	}

	if err := a.Release(ctx, ClaimHandle{ID: claim.ID, StationID: claim.StationID}); err != nil {
		a.log.Error("Failed to release dangling claim", "claim_id", claim.ID, "station_id", claim.StationID, "error", err)
		return false
	}
	a.log.Warn("Released dangling claim", "claim_id", claim.ID, "station_id", claim.StationID, "created_at", claim.CreatedAt)
	return true
}
