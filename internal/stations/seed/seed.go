package seed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"ecovolt/pkg/model"

	"gopkg.in/yaml.v3"
)

type File struct {
	Stations []Entry `yaml:"stations"`
}

// Entry is one station in the seed file. A missing available_scooters means
// the station starts full.
type Entry struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Total     int     `yaml:"total_scooters"`
	Available *int    `yaml:"available_scooters"`
}

func LoadFile(path string) ([]*model.Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}
	stations, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return stations, nil
}

// Parse decodes a seed document, rejecting unknown keys so typos in field
// names do not silently provision empty stations.
func Parse(r io.Reader) ([]*model.Station, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]struct{}, len(file.Stations))
	stations := make([]*model.Station, 0, len(file.Stations))
	for i, e := range file.Stations {
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("stations[%d]: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = struct{}{}

		available := e.Total
		if e.Available != nil {
			available = *e.Available
		}
		stations = append(stations, &model.Station{
			ID:             e.ID,
			Name:           e.Name,
			Latitude:       e.Latitude,
			Longitude:      e.Longitude,
			TotalUnits:     e.Total,
			AvailableUnits: available,
		})
	}
	return stations, nil
}
