package model

import "time"

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusActive    ReservationStatus = "active"
	StatusCompleted ReservationStatus = "completed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusExpired   ReservationStatus = "expired"
)

var transitions = map[ReservationStatus][]ReservationStatus{
	StatusPending: {StatusActive, StatusCancelled},
	StatusActive:  {StatusCompleted, StatusCancelled, StatusExpired},
}

func (s ReservationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// IsOpen reports whether the reservation still holds a scooter.
func (s ReservationStatus) IsOpen() bool {
	return s == StatusPending || s == StatusActive
}

func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Reservation struct {
	ID          string            `json:"id" bson:"_id"`
	StationID   string            `json:"station_id" bson:"station_id"`
	StationName string            `json:"station_name,omitempty" bson:"station_name,omitempty"`
	UserID      string            `json:"user_id" bson:"user_id"`
	Code        string            `json:"qr_code,omitempty" bson:"code,omitempty"`
	Status      ReservationStatus `json:"status" bson:"status"`
	Open        bool              `json:"-" bson:"open"`
	CreatedAt   time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" bson:"updated_at"`
	ExpiresAt   time.Time         `json:"expires_at" bson:"expires_at"`
}

// Expired reports whether an active reservation has outlived its pickup window.
func (r *Reservation) Expired(now time.Time) bool {
	return r.Status.IsOpen() && !now.Before(r.ExpiresAt)
}
