package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	inventoryerrors "ecovolt/internal/inventory/errors"
	stationserrors "ecovolt/internal/stations/errors"
	stationsrepo "ecovolt/internal/stations/repository"
	"ecovolt/pkg/config"
	mongotx "ecovolt/pkg/db/mongo"
	"ecovolt/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Claims"
)

type ReleaseOutcome int

const (
	// ReleaseNoop means the claim was already released.
	ReleaseNoop ReleaseOutcome = iota
	Released
	// ReleasedCapped means the claim was released but the station was
	// already at capacity, so the counter was left untouched.
	ReleasedCapped
)

type ClaimRepository interface {
	// Claim decrements the station's availability and records the claim as
	// one atomic unit.
	Claim(ctx context.Context, claim *model.Claim) error
	// Release flips the claim to released and returns the unit to its
	// station. Only the caller that performs the flip increments.
	Release(ctx context.Context, id string) (ReleaseOutcome, error)
	FindByID(ctx context.Context, id string) (*model.Claim, error)
	// FindUnreleasedBefore pages through unreleased claims created before
	// the cutoff, oldest first. A nil cursor starts from the beginning.
	FindUnreleasedBefore(ctx context.Context, before time.Time, after *ClaimCursor, limit int) ([]*model.Claim, error)
}

// ClaimCursor resumes a scan after the claim it names. Claims are ordered by
// creation time, then id.
type ClaimCursor struct {
	CreatedAt time.Time
	ID        string
}

func CursorAfter(claim *model.Claim) *ClaimCursor {
	return &ClaimCursor{CreatedAt: claim.CreatedAt, ID: claim.ID}
}

type mongoClaimRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	stations   stationsrepo.StationRepository
	txManager  mongotx.TransactionManager
}

func NewMongoClaimRepository(cfg *config.Config, stations stationsrepo.StationRepository) ClaimRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoClaimRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		stations:   stations,
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoClaimRepository) Claim(ctx context.Context, claim *model.Claim) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return r.txManager.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := r.stations.AdjustAvailability(txCtx, claim.StationID, -1); err != nil {
			return err
		}
		if _, err := r.collection.InsertOne(txCtx, claim); err != nil {
			if mongotx.IsDuplicateKey(err) {
				return inventoryerrors.ErrDuplicateClaim
			}
			return fmt.Errorf("failed to insert claim: %w", err)
		}
		return nil
	})
}

func (r *mongoClaimRepository) Release(ctx context.Context, id string) (ReleaseOutcome, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	outcome := ReleaseNoop
	err := r.txManager.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		outcome = ReleaseNoop

		now := time.Now().UTC().Truncate(time.Millisecond)
		var claim model.Claim
		err := r.collection.FindOneAndUpdate(txCtx,
			bson.M{"_id": id, "released": false},
			bson.M{"$set": bson.M{"released": true, "released_at": now}},
		).Decode(&claim)
		if err != nil {
			if !errors.Is(err, mongo.ErrNoDocuments) {
				return fmt.Errorf("failed to release claim: %w", err)
			}
			n, err := r.collection.CountDocuments(txCtx, bson.M{"_id": id})
			if err != nil {
				return fmt.Errorf("failed to check claim existence: %w", err)
			}
			if n == 0 {
				return inventoryerrors.ErrClaimNotFound
			}
			return nil
		}

		outcome = Released
		return r.returnUnit(txCtx, claim.StationID, &outcome)
	})
	if err != nil {
		return ReleaseNoop, err
	}
	return outcome, nil
}

func (r *mongoClaimRepository) returnUnit(ctx context.Context, stationID string, outcome *ReleaseOutcome) error {
	err := r.stations.AdjustAvailability(ctx, stationID, 1)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stationserrors.ErrCapacityViolation):
		*outcome = ReleasedCapped
		return nil
	case errors.Is(err, stationserrors.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (r *mongoClaimRepository) FindByID(ctx context.Context, id string) (*model.Claim, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var claim model.Claim
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&claim); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, inventoryerrors.ErrClaimNotFound
		}
		return nil, fmt.Errorf("failed to find claim: %w", err)
	}
	return &claim, nil
}

func (r *mongoClaimRepository) FindUnreleasedBefore(ctx context.Context, before time.Time, after *ClaimCursor, limit int) ([]*model.Claim, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"released": false, "created_at": bson.M{"$lt": before}}
	if after != nil {
		filter["$or"] = bson.A{
			bson.M{"created_at": bson.M{"$gt": after.CreatedAt}},
			bson.M{"created_at": after.CreatedAt, "_id": bson.M{"$gt": after.ID}},
		}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find unreleased claims: %w", err)
	}
	defer cursor.Close(ctx)

	claims := []*model.Claim{}
	if err = cursor.All(ctx, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode claims: %w", err)
	}
	return claims, nil
}
