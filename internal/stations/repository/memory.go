package repository

import (
	"context"
	"sort"
	"sync"

	stationserrors "ecovolt/internal/stations/errors"
	"ecovolt/pkg/config"
	"ecovolt/pkg/model"
)

// stationEntry is one slot of the in-memory arena. Its mutex guards the
// counters of this station only.
type stationEntry struct {
	mu      sync.Mutex
	station model.Station
}

type memoryStationRepository struct {
	mu      sync.RWMutex
	entries map[string]*stationEntry
}

func NewMemoryStationRepository(stations ...*model.Station) StationRepository {
	r := &memoryStationRepository{entries: make(map[string]*stationEntry, len(stations))}
	for _, s := range stations {
		r.entries[s.ID] = &stationEntry{station: *s}
	}
	return r
}

func (r *memoryStationRepository) entry(id string) (*stationEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

func (r *memoryStationRepository) FindByID(ctx context.Context, id string) (*model.Station, error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, stationserrors.ErrNotFound
	}

	e.mu.Lock()
	station := e.station
	e.mu.Unlock()
	return &station, nil
}

func (r *memoryStationRepository) FindAll(ctx context.Context, orderBy string) ([]*model.Station, error) {
	r.mu.RLock()
	entries := make([]*stationEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	stations := make([]*model.Station, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		station := e.station
		e.mu.Unlock()
		stations = append(stations, &station)
	}

	sort.Slice(stations, func(i, j int) bool {
		if orderBy == config.OrderByName && stations[i].Name != stations[j].Name {
			return stations[i].Name < stations[j].Name
		}
		return stations[i].ID < stations[j].ID
	})
	return stations, nil
}

func (r *memoryStationRepository) AdjustAvailability(ctx context.Context, id string, delta int) error {
	e, ok := r.entry(id)
	if !ok {
		return stationserrors.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.station.AvailableUnits + delta
	if next < 0 || next > e.station.TotalUnits {
		return stationserrors.ErrCapacityViolation
	}
	e.station.AvailableUnits = next
	return nil
}

func (r *memoryStationRepository) Upsert(ctx context.Context, station *model.Station) error {
	r.mu.Lock()
	e, ok := r.entries[station.ID]
	if !ok {
		r.entries[station.ID] = &stationEntry{station: *station}
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	held := e.station.TotalUnits - e.station.AvailableUnits
	e.station.Name = station.Name
	e.station.Latitude = station.Latitude
	e.station.Longitude = station.Longitude
	e.station.TotalUnits = station.TotalUnits
	e.station.AvailableUnits = min(station.TotalUnits, max(0, station.TotalUnits-held))
	return nil
}
