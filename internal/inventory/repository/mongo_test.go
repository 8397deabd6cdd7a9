package repository_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ecovolt/internal/inventory/allocator"
	inventoryerrors "ecovolt/internal/inventory/errors"
	"ecovolt/internal/inventory/repository"
	stationsrepo "ecovolt/internal/stations/repository"
	"ecovolt/internal/testutil/mongotest"
	"ecovolt/pkg/logger"
	"ecovolt/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mongoInventory struct {
	claims   repository.ClaimRepository
	stations stationsrepo.StationRepository
}

func newMongoInventory(t *testing.T, stations ...*model.Station) *mongoInventory {
	t.Helper()
	cfg := mongotest.Config(t, mongotest.Options{Transactions: true})

	registry := stationsrepo.NewMongoStationRepository(cfg)
	for _, s := range stations {
		require.NoError(t, registry.Upsert(context.Background(), s))
	}
	return &mongoInventory{
		claims:   repository.NewMongoClaimRepository(cfg, registry),
		stations: registry,
	}
}

func (m *mongoInventory) available(t *testing.T, id string) int {
	t.Helper()
	s, err := m.stations.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.True(t, s.WithinBounds(), "station %s out of bounds: %+v", id, s)
	return s.AvailableUnits
}

func claim(id, station string) *model.Claim {
	return &model.Claim{ID: id, StationID: station, CreatedAt: time.Now().UTC().Truncate(time.Millisecond)}
}

func TestMongoClaims_ConcurrentClaimsNeverOverbook(t *testing.T) {
	const units, callers = 3, 16
	inv := newMongoInventory(t, &model.Station{ID: "hot", Name: "Hot", TotalUnits: units, AvailableUnits: units})
	alloc := allocator.New(inv.claims, logger.Discard())

	var granted, denied atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := alloc.TryClaim(context.Background(), "hot", fmt.Sprintf("c-%02d", i))
			switch {
			case err == nil:
				granted.Add(1)
			case assert.ErrorIs(t, err, inventoryerrors.ErrNoAvailability):
				denied.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(units), granted.Load())
	assert.Equal(t, int32(callers-units), denied.Load())
	assert.Equal(t, 0, inv.available(t, "hot"))
}

func TestMongoClaims_DoubleReleaseReturnsOneUnit(t *testing.T) {
	inv := newMongoInventory(t, &model.Station{ID: "st-1", Name: "Central", TotalUnits: 2, AvailableUnits: 2})
	ctx := context.Background()

	require.NoError(t, inv.claims.Claim(ctx, claim("r-1", "st-1")))
	require.Equal(t, 1, inv.available(t, "st-1"))

	var wg sync.WaitGroup
	outcomes := make([]repository.ReleaseOutcome, 4)
	for i := range outcomes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := inv.claims.Release(ctx, "r-1")
			assert.NoError(t, err)
			outcomes[i] = out
		}()
	}
	wg.Wait()

	released := 0
	for _, out := range outcomes {
		if out == repository.Released {
			released++
		}
	}
	assert.Equal(t, 1, released, "exactly one release increments")
	assert.Equal(t, 2, inv.available(t, "st-1"))

	_, err := inv.claims.Release(ctx, "never")
	assert.ErrorIs(t, err, inventoryerrors.ErrClaimNotFound)
}

func TestMongoClaims_DuplicateClaimRollsBack(t *testing.T) {
	inv := newMongoInventory(t, &model.Station{ID: "st-1", Name: "Central", TotalUnits: 2, AvailableUnits: 2})
	ctx := context.Background()

	require.NoError(t, inv.claims.Claim(ctx, claim("r-1", "st-1")))
	assert.ErrorIs(t, inv.claims.Claim(ctx, claim("r-1", "st-1")), inventoryerrors.ErrDuplicateClaim)
	assert.Equal(t, 1, inv.available(t, "st-1"), "failed insert must undo the decrement")
}

func TestMongoClaims_FindUnreleasedBeforePages(t *testing.T) {
	inv := newMongoInventory(t, &model.Station{ID: "st-1", Name: "Central", TotalUnits: 5, AvailableUnits: 5})
	ctx := context.Background()

	at := time.Now().Add(-time.Hour).UTC().Truncate(time.Millisecond)
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, inv.claims.Claim(ctx, &model.Claim{ID: id, StationID: "st-1", CreatedAt: at}))
	}

	var seen []string
	var after *repository.ClaimCursor
	for {
		page, err := inv.claims.FindUnreleasedBefore(ctx, time.Now(), after, 3)
		require.NoError(t, err)
		for _, c := range page {
			seen = append(seen, c.ID)
		}
		if len(page) < 3 {
			break
		}
		after = repository.CursorAfter(page[len(page)-1])
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, seen)
}
