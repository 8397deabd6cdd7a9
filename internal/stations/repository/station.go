package repository

import (
	"context"
	"errors"
	"fmt"

	stationserrors "ecovolt/internal/stations/errors"
	"ecovolt/pkg/config"
	mongotx "ecovolt/pkg/db/mongo"
	"ecovolt/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Stations"
)

type StationRepository interface {
	FindByID(ctx context.Context, id string) (*model.Station, error)
	FindAll(ctx context.Context, orderBy string) ([]*model.Station, error)
	// AdjustAvailability applies delta to available_units only if the result
	// stays within [0, total_units]. Updates to one station are serialized;
	// different stations never contend.
	AdjustAvailability(ctx context.Context, id string, delta int) error
	Upsert(ctx context.Context, station *model.Station) error
}

type mongoStationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoStationRepository(cfg *config.Config) StationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoStationRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoStationRepository) FindByID(ctx context.Context, id string) (*model.Station, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var station model.Station
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&station)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, stationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find station: %w", err)
	}
	return &station, nil
}

func (r *mongoStationRepository) FindAll(ctx context.Context, orderBy string) ([]*model.Station, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	sort := bson.D{{Key: "_id", Value: 1}}
	if orderBy == config.OrderByName {
		sort = bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to find stations: %w", err)
	}
	defer cursor.Close(ctx)

	stations := []*model.Station{}
	if err = cursor.All(ctx, &stations); err != nil {
		return nil, fmt.Errorf("failed to decode stations: %w", err)
	}
	return stations, nil
}

// AdjustAvailability is a single conditional $inc: the bounds check lives in
// the filter, so the document-level write lock serializes concurrent callers.
func (r *mongoStationRepository) AdjustAvailability(ctx context.Context, id string, delta int) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	next := bson.M{"$add": bson.A{"$available_units", delta}}
	filter := bson.M{
		"_id": id,
		"$expr": bson.M{"$and": bson.A{
			bson.M{"$gte": bson.A{next, 0}},
			bson.M{"$lte": bson.A{next, "$total_units"}},
		}},
	}
	update := bson.M{"$inc": bson.M{"available_units": delta}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to adjust station availability: %w", err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check station existence: %w", err)
	}
	if n == 0 {
		return stationserrors.ErrNotFound
	}
	return stationserrors.ErrCapacityViolation
}

// Upsert writes reference data. Units currently held by claims stay held:
// available is recomputed as new total minus held, clamped to [0, total].
func (r *mongoStationRepository) Upsert(ctx context.Context, station *model.Station) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	held := bson.D{{Key: "$subtract", Value: bson.A{
		bson.D{{Key: "$ifNull", Value: bson.A{"$total_units", station.TotalUnits}}},
		bson.D{{Key: "$ifNull", Value: bson.A{"$available_units", station.AvailableUnits}}},
	}}}
	available := bson.D{{Key: "$min", Value: bson.A{
		station.TotalUnits,
		bson.D{{Key: "$max", Value: bson.A{
			0,
			bson.D{{Key: "$subtract", Value: bson.A{station.TotalUnits, held}}},
		}}},
	}}}

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "name", Value: station.Name},
			{Key: "latitude", Value: station.Latitude},
			{Key: "longitude", Value: station.Longitude},
			{Key: "available_units", Value: available},
			{Key: "total_units", Value: station.TotalUnits},
		}}},
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": station.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert station: %w", err)
	}
	return nil
}
