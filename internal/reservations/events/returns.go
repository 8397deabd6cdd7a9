package events

import (
	"context"
	"errors"
	"strings"

	apperrors "ecovolt/pkg/errors"
	"ecovolt/pkg/kafka"
	"ecovolt/pkg/logger"
	"ecovolt/pkg/middleware"
	"ecovolt/pkg/model"
)

// ReturnEvent is published by a dock when a scooter is put back.
type ReturnEvent struct {
	QRCode    string `json:"qrCode"`
	StationID string `json:"stationId,omitempty"`
	DockID    string `json:"dockId,omitempty"`
}

type Completer interface {
	Complete(ctx context.Context, code string) (*model.Reservation, error)
}

// ReturnsHandler completes reservations from dock return events. Bad codes
// and finished reservations are permanent failures; anything else is retried.
func ReturnsHandler(completer Completer, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event ReturnEvent
		if err := msg.DecodeValue(&event); err != nil {
			return kafka.NewPermanentError("decode return event", err)
		}
		event.QRCode = strings.TrimSpace(event.QRCode)
		if event.QRCode == "" {
			return kafka.NewPermanentError("return event without qrCode", nil)
		}

		if id := msg.GetCorrelationID(); id != "" {
			ctx = context.WithValue(ctx, middleware.RequestIDKey, id)
		}

		r, err := completer.Complete(ctx, event.QRCode)
		if err != nil {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) && appErr.StatusCode() < 500 {
				return kafka.NewPermanentError("reject return event", err)
			}
			return kafka.NewTransientError("complete reservation", err)
		}

		log.Info("Scooter returned",
			"reservation_id", r.ID,
			"station_id", r.StationID,
			"dock_id", event.DockID,
		)
		return nil
	}
}

func correlationID(ctx context.Context) string {
	if id, ok := ctx.Value(middleware.RequestIDKey).(string); ok {
		return id
	}
	return ""
}
