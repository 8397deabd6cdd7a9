package service

import (
	"context"
	"errors"

	stationserrors "ecovolt/internal/stations/errors"
	"ecovolt/internal/stations/repository"
	"ecovolt/internal/stations/validator"
	"ecovolt/pkg/config"
	apperrors "ecovolt/pkg/errors"
	"ecovolt/pkg/model"
	"ecovolt/pkg/sanitizer"
)

type StationService interface {
	List(ctx context.Context) ([]*model.Station, error)
	Get(ctx context.Context, id string) (*model.Station, error)
	// Provision upserts reference data. Held units survive a re-seed.
	Provision(ctx context.Context, stations []*model.Station) (int, error)
}

type stationService struct {
	repo      repository.StationRepository
	validator *validator.StationValidator
	cfg       *config.Config
}

func NewStationService(
	repo repository.StationRepository,
	validator *validator.StationValidator,
	cfg *config.Config,
) StationService {
	return &stationService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *stationService) List(ctx context.Context) ([]*model.Station, error) {
	stations, err := s.repo.FindAll(ctx, s.cfg.StationsOrderBy)
	if err != nil {
		s.cfg.Log.Error("Failed to list stations", "error", err)
		return nil, apperrors.Internal("Failed to retrieve stations", err)
	}
	return stations, nil
}

func (s *stationService) Get(ctx context.Context, id string) (*model.Station, error) {
	id = sanitizer.SanitizeStationID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Station ID cannot be empty")
	}

	station, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, stationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Station", id)
		}
		s.cfg.Log.Error("Failed to get station", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve station", err)
	}
	return station, nil
}

func (s *stationService) Provision(ctx context.Context, stations []*model.Station) (int, error) {
	for _, st := range stations {
		s.sanitize(st)
	}

	if err := s.validator.ValidateAll(stations); err != nil {
		s.cfg.Log.Warn("Station seed validation failed", "error", err)
		return 0, apperrors.Validation("Station seed validation failed", map[string]any{"error": err.Error()})
	}

	for i, st := range stations {
		if err := s.repo.Upsert(ctx, st); err != nil {
			s.cfg.Log.Error("Failed to provision station", "id", st.ID, "error", err)
			return i, apperrors.Internal("Failed to provision station", err)
		}
	}

	s.cfg.Log.Info("Stations provisioned", "count", len(stations))
	return len(stations), nil
}

func (s *stationService) sanitize(st *model.Station) {
	st.ID = sanitizer.SanitizeStationID(st.ID)
	st.Name = sanitizer.SanitizeStationName(st.Name)
}
