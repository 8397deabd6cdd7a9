package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	inventoryerrors "ecovolt/internal/inventory/errors"
	stationserrors "ecovolt/internal/stations/errors"
	stationsrepo "ecovolt/internal/stations/repository"
	"ecovolt/pkg/model"
)

// memoryClaimRepository keeps claims in a map. Station counters stay in the
// station registry's per-station entries; mu only guards the claim map.
type memoryClaimRepository struct {
	mu       sync.Mutex
	claims   map[string]*model.Claim
	stations stationsrepo.StationRepository
}

func NewMemoryClaimRepository(stations stationsrepo.StationRepository) ClaimRepository {
	return &memoryClaimRepository{
		claims:   make(map[string]*model.Claim),
		stations: stations,
	}
}

func (r *memoryClaimRepository) Claim(ctx context.Context, claim *model.Claim) error {
	if err := r.stations.AdjustAvailability(ctx, claim.StationID, -1); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.claims[claim.ID]; exists {
		r.mu.Unlock()
		_ = r.stations.AdjustAvailability(context.WithoutCancel(ctx), claim.StationID, 1)
		return inventoryerrors.ErrDuplicateClaim
	}
	stored := *claim
	r.claims[claim.ID] = &stored
	r.mu.Unlock()
	return nil
}

func (r *memoryClaimRepository) Release(ctx context.Context, id string) (ReleaseOutcome, error) {
	r.mu.Lock()
	claim, ok := r.claims[id]
	if !ok {
		r.mu.Unlock()
		return ReleaseNoop, inventoryerrors.ErrClaimNotFound
	}
	if claim.Released {
		r.mu.Unlock()
		return ReleaseNoop, nil
	}
	now := time.Now().UTC()
	claim.Released = true
	claim.ReleasedAt = &now
	stationID := claim.StationID
	r.mu.Unlock()

	err := r.stations.AdjustAvailability(ctx, stationID, 1)
	switch {
	case err == nil, errors.Is(err, stationserrors.ErrNotFound):
		return Released, nil
	case errors.Is(err, stationserrors.ErrCapacityViolation):
		return ReleasedCapped, nil
	default:
		r.mu.Lock()
		claim.Released = false
		claim.ReleasedAt = nil
		r.mu.Unlock()
		return ReleaseNoop, err
	}
}

func (r *memoryClaimRepository) FindByID(ctx context.Context, id string) (*model.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	claim, ok := r.claims[id]
	if !ok {
		return nil, inventoryerrors.ErrClaimNotFound
	}
	c := *claim
	return &c, nil
}

func (r *memoryClaimRepository) FindUnreleasedBefore(ctx context.Context, before time.Time, after *ClaimCursor, limit int) ([]*model.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	claims := []*model.Claim{}
	for _, claim := range r.claims {
		if claim.Released || !claim.CreatedAt.Before(before) {
			continue
		}
		if after != nil && !claimAfter(claim, after) {
			continue
		}
		c := *claim
		claims = append(claims, &c)
	}

	sort.Slice(claims, func(i, j int) bool {
		if !claims[i].CreatedAt.Equal(claims[j].CreatedAt) {
			return claims[i].CreatedAt.Before(claims[j].CreatedAt)
		}
		return claims[i].ID < claims[j].ID
	})
	if limit > 0 && len(claims) > limit {
		claims = claims[:limit]
	}
	return claims, nil
}

func claimAfter(claim *model.Claim, cursor *ClaimCursor) bool {
	if claim.CreatedAt.Equal(cursor.CreatedAt) {
		return claim.ID > cursor.ID
	}
	return claim.CreatedAt.After(cursor.CreatedAt)
}
