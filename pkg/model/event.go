package model

import "time"

const (
	EventReservationCreated   = "reservation.created"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationCompleted = "reservation.completed"
	EventReservationExpired   = "reservation.expired"
)

type ReservationEvent struct {
	Type          string            `json:"type"`
	ReservationID string            `json:"reservation_id"`
	StationID     string            `json:"station_id"`
	UserID        string            `json:"user_id"`
	Status        ReservationStatus `json:"status"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

func NewReservationEvent(eventType string, r *Reservation) ReservationEvent {
	return ReservationEvent{
		Type:          eventType,
		ReservationID: r.ID,
		StationID:     r.StationID,
		UserID:        r.UserID,
		Status:        r.Status,
		OccurredAt:    time.Now().UTC(),
	}
}
