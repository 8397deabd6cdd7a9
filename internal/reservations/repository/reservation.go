package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	reservationserrors "ecovolt/internal/reservations/errors"
	"ecovolt/pkg/config"
	mongotx "ecovolt/pkg/db/mongo"
	"ecovolt/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Reservations"

	// OpenPerUserIndex is the partial unique index on user_id over open
	// reservations. Its name is matched in duplicate-key errors.
	OpenPerUserIndex = "uniq_open_reservation_per_user"
	CodeIndex        = "uniq_reservation_code"
)

// TransitionUpdate carries fields written together with a status change.
type TransitionUpdate struct {
	Code string
}

type ReservationRepository interface {
	// Create inserts a reservation. With the one-per-user policy on it fails
	// with ErrAlreadyReserved if the user already has an open reservation.
	Create(ctx context.Context, reservation *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindByCode(ctx context.Context, code string) (*model.Reservation, error)
	// FindOpenByUser returns nil, nil when the user holds nothing.
	FindOpenByUser(ctx context.Context, userID string) (*model.Reservation, error)
	FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error)
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error)
	// Transition moves a reservation from one status to another only if it
	// is still in from. Losing the race yields a TransitionError.
	Transition(ctx context.Context, id string, from, to model.ReservationStatus, update TransitionUpdate) (*model.Reservation, error)
}

type mongoReservationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func classify(err error, op string) error {
	if mongotx.IsTransient(err) {
		return fmt.Errorf("%s: %w: %w", op, reservationserrors.ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	reservation.CreatedAt = now
	reservation.UpdatedAt = now
	reservation.Open = reservation.Status.IsOpen()

	if _, err := r.collection.InsertOne(ctx, reservation); err != nil {
		if mongotx.IsDuplicateKey(err) {
			if strings.Contains(err.Error(), OpenPerUserIndex) {
				return reservationserrors.ErrAlreadyReserved
			}
			return reservationserrors.ErrDuplicateID
		}
		return classify(err, "failed to create reservation")
	}
	return nil
}

func (r *mongoReservationRepository) findOne(ctx context.Context, filter bson.M) (*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var reservation model.Reservation
	if err := r.collection.FindOne(ctx, filter).Decode(&reservation); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, classify(err, "failed to find reservation")
	}
	return &reservation, nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoReservationRepository) FindByCode(ctx context.Context, code string) (*model.Reservation, error) {
	return r.findOne(ctx, bson.M{"code": code})
}

func (r *mongoReservationRepository) FindOpenByUser(ctx context.Context, userID string) (*model.Reservation, error) {
	reservation, err := r.findOne(ctx, bson.M{"user_id": userID, "open": true})
	if errors.Is(err, reservationserrors.ErrNotFound) {
		return nil, nil
	}
	return reservation, err
}

func (r *mongoReservationRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify(err, "failed to find reservations")
	}
	defer cursor.Close(ctx)

	reservations := []*model.Reservation{}
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return reservations, nil
}

func (r *mongoReservationRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
	return r.find(ctx, bson.M{"user_id": userID}, opts)
}

func (r *mongoReservationRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "expires_at", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, bson.M{"open": true, "expires_at": bson.M{"$lte": now}}, opts)
}

func (r *mongoReservationRepository) Transition(
	ctx context.Context,
	id string,
	from, to model.ReservationStatus,
	update TransitionUpdate,
) (*model.Reservation, error) {
	if !from.CanTransitionTo(to) {
		return nil, &reservationserrors.TransitionError{ID: id, Actual: string(from), Target: string(to)}
	}

	wctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	set := bson.M{
		"status":     to,
		"open":       to.IsOpen(),
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}
	if update.Code != "" {
		set["code"] = update.Code
	}

	var updated model.Reservation
	err := r.collection.FindOneAndUpdate(wctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		if mongotx.IsDuplicateKey(err) {
			return nil, fmt.Errorf("reservation code collision: %w", err)
		}
		return nil, classify(err, "failed to transition reservation")
	}

	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, &reservationserrors.TransitionError{ID: id, Actual: string(current.Status), Target: string(to)}
}
