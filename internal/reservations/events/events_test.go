package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	apperrors "ecovolt/pkg/errors"
	"ecovolt/pkg/kafka"
	"ecovolt/pkg/logger"
	"ecovolt/pkg/middleware"
	"ecovolt/pkg/model"
)

type capturePublisher struct {
	msgs []kafka.Message
}

func (c *capturePublisher) Publish(_ context.Context, msg kafka.Message) error {
	c.msgs = append(c.msgs, msg)
	return nil
}

type completerFunc func(ctx context.Context, code string) (*model.Reservation, error)

func (f completerFunc) Complete(ctx context.Context, code string) (*model.Reservation, error) {
	return f(ctx, code)
}

func TestKafkaPublisher_KeysByReservation(t *testing.T) {
	producer := &capturePublisher{}
	p := NewKafkaPublisher(producer)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-9")
	event := model.NewReservationEvent(model.EventReservationCreated, &model.Reservation{
		ID: "r-1", StationID: "st-1", UserID: "u-1", Status: model.StatusActive,
	})

	if err := p.Publish(ctx, event); err != nil {
		t.Fatal(err)
	}
	if len(producer.msgs) != 1 {
		t.Fatalf("published %d messages", len(producer.msgs))
	}

	msg := producer.msgs[0]
	if msg.Key != "r-1" {
		t.Errorf("key = %q", msg.Key)
	}
	if msg.GetEventType() != model.EventReservationCreated || msg.GetCorrelationID() != "req-9" {
		t.Errorf("headers = %v", msg.Headers)
	}

	var decoded model.ReservationEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil || decoded.StationID != "st-1" {
		t.Errorf("value = %s (%v)", msg.Value, err)
	}
}

func returnMessage(t *testing.T, body any) kafka.Message {
	t.Helper()
	msg, err := kafka.NewMessage().WithKey("dock-1").WithValue(body).Build()
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestReturnsHandler(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		err      error
		wantType kafka.ErrorType
	}{
		{"completes", ReturnEvent{QRCode: "ECV1.ok"}, nil, kafka.ErrorTypeUnknown},
		{"missing code", ReturnEvent{}, nil, kafka.ErrorTypePermanent},
		{"invalid code", ReturnEvent{QRCode: "ECV1.bad"}, apperrors.InvalidCode(), kafka.ErrorTypePermanent},
		{"storage down", ReturnEvent{QRCode: "ECV1.ok"}, apperrors.Internal("db", errors.New("down")), kafka.ErrorTypeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := ReturnsHandler(completerFunc(func(_ context.Context, code string) (*model.Reservation, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return &model.Reservation{ID: "r-1", Status: model.StatusCompleted}, nil
			}), logger.Discard())

			err := handler(context.Background(), returnMessage(t, tt.body))
			if got := kafka.ClassifyError(err); got != tt.wantType {
				t.Errorf("error %v classified %v, want %v", err, got, tt.wantType)
			}
		})
	}
}

func TestReturnsHandler_UndecodableIsPermanent(t *testing.T) {
	handler := ReturnsHandler(completerFunc(func(context.Context, string) (*model.Reservation, error) {
		t.Fatal("should not be called")
		return nil, nil
	}), logger.Discard())

	err := handler(context.Background(), kafka.Message{Key: "k", Value: []byte("not json")})
	if kafka.ClassifyError(err) != kafka.ErrorTypePermanent {
		t.Errorf("got %v", err)
	}
}
