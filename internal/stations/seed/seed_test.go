package seed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ecovolt/internal/stations/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
stations:
  - id: central
    name: Central Station
    latitude: 48.8566
    longitude: 2.3522
    total_scooters: 10
  - id: harbor
    name: Harbor Front
    latitude: 43.2965
    longitude: 5.3698
    total_scooters: 4
    available_scooters: 1
`

func TestParse(t *testing.T) {
	stations, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, stations, 2)

	assert.Equal(t, "central", stations[0].ID)
	assert.Equal(t, 10, stations[0].AvailableUnits, "missing availability starts full")
	assert.Equal(t, 1, stations[1].AvailableUnits)
	assert.InDelta(t, 5.3698, stations[1].Longitude, 1e-9)

	assert.NoError(t, validator.NewStationValidator().ValidateAll(stations))
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown field": "stations:\n  - id: a\n    nmae: typo\n",
		"duplicate id":  "stations:\n  - id: a\n    name: One\n  - id: a\n    name: Two\n",
		"bad type":      "stations:\n  - id: a\n    total_scooters: many\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestParse_OutOfRangeCoordinatesFailValidation(t *testing.T) {
	doc := "stations:\n  - id: pole\n    name: Beyond\n    latitude: 91\n    longitude: 181\n    total_scooters: 1\n"

	stations, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Error(t, validator.NewStationValidator().ValidateAll(stations))
}

func TestParse_Empty(t *testing.T) {
	stations, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, stations)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	stations, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, stations, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
