package model

import "time"

// Claim records one unit held against a station. Its ID is the ID of the
// reservation it backs.
type Claim struct {
	ID         string     `json:"id" bson:"_id"`
	StationID  string     `json:"station_id" bson:"station_id"`
	Released   bool       `json:"released" bson:"released"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty" bson:"released_at,omitempty"`
}
