package model

type Station struct {
	ID             string  `json:"id" bson:"_id" yaml:"id" validate:"required,max=64"`
	Name           string  `json:"name" bson:"name" yaml:"name" validate:"required,min=2,max=100"`
	Latitude       float64 `json:"latitude" bson:"latitude" yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude      float64 `json:"longitude" bson:"longitude" yaml:"longitude" validate:"gte=-180,lte=180"`
	TotalUnits     int     `json:"total_scooters" bson:"total_units" yaml:"total_scooters" validate:"gte=0,lte=10000"`
	AvailableUnits int     `json:"available_scooters" bson:"available_units" yaml:"available_scooters" validate:"gte=0,ltefield=TotalUnits"`
}

// WithinBounds reports whether the availability counter respects capacity.
func (s *Station) WithinBounds() bool {
	return s.AvailableUnits >= 0 && s.AvailableUnits <= s.TotalUnits
}
