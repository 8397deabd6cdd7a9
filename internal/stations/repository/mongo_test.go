package repository_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	stationserrors "ecovolt/internal/stations/errors"
	"ecovolt/internal/stations/repository"
	"ecovolt/internal/testutil/mongotest"
	"ecovolt/pkg/config"
	"ecovolt/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mongoStations(t *testing.T, stations ...*model.Station) repository.StationRepository {
	t.Helper()
	repo := repository.NewMongoStationRepository(mongotest.Config(t, mongotest.Options{}))
	for _, s := range stations {
		require.NoError(t, repo.Upsert(context.Background(), s))
	}
	return repo
}

func TestMongoStationRepository_AdjustAvailabilityBounds(t *testing.T) {
	repo := mongoStations(t, &model.Station{ID: "st-1", Name: "Central", TotalUnits: 2, AvailableUnits: 1})
	ctx := context.Background()

	require.NoError(t, repo.AdjustAvailability(ctx, "st-1", -1))
	assert.ErrorIs(t, repo.AdjustAvailability(ctx, "st-1", -1), stationserrors.ErrCapacityViolation)

	require.NoError(t, repo.AdjustAvailability(ctx, "st-1", 2))
	assert.ErrorIs(t, repo.AdjustAvailability(ctx, "st-1", 1), stationserrors.ErrCapacityViolation)

	assert.ErrorIs(t, repo.AdjustAvailability(ctx, "missing", -1), stationserrors.ErrNotFound)

	s, err := repo.FindByID(ctx, "st-1")
	require.NoError(t, err)
	assert.Equal(t, 2, s.AvailableUnits)
}

func TestMongoStationRepository_ConcurrentDecrements(t *testing.T) {
	repo := mongoStations(t, &model.Station{ID: "hot", Name: "Hot", TotalUnits: 5, AvailableUnits: 5})

	var granted atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if repo.AdjustAvailability(context.Background(), "hot", -1) == nil {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), granted.Load())
	s, err := repo.FindByID(context.Background(), "hot")
	require.NoError(t, err)
	assert.Equal(t, 0, s.AvailableUnits)
}

func TestMongoStationRepository_UpsertKeepsHeldUnits(t *testing.T) {
	repo := mongoStations(t, &model.Station{ID: "st-1", Name: "Central", TotalUnits: 4, AvailableUnits: 4})
	ctx := context.Background()

	require.NoError(t, repo.AdjustAvailability(ctx, "st-1", -3))
	require.NoError(t, repo.Upsert(ctx, &model.Station{ID: "st-1", Name: "Central Renamed", TotalUnits: 6, AvailableUnits: 6}))

	s, err := repo.FindByID(ctx, "st-1")
	require.NoError(t, err)
	assert.Equal(t, "Central Renamed", s.Name)
	assert.Equal(t, 6, s.TotalUnits)
	assert.Equal(t, 3, s.AvailableUnits, "three units are still held")
}

func TestMongoStationRepository_FindAllOrder(t *testing.T) {
	repo := mongoStations(t,
		&model.Station{ID: "st-2", Name: "Alpha", TotalUnits: 1, AvailableUnits: 1},
		&model.Station{ID: "st-1", Name: "Zulu", TotalUnits: 1, AvailableUnits: 1},
	)

	byID, err := repo.FindAll(context.Background(), config.OrderByID)
	require.NoError(t, err)
	require.Len(t, byID, 2)
	assert.Equal(t, "st-1", byID[0].ID)

	byName, err := repo.FindAll(context.Background(), config.OrderByName)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", byName[0].Name)
}
