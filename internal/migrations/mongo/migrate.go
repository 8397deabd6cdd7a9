package mongo

import (
	"context"
	"errors"
	"fmt"

	authrepo "ecovolt/internal/auth/repository"
	inventoryrepo "ecovolt/internal/inventory/repository"
	"ecovolt/internal/migrations/mongo/validators"
	reservationrepo "ecovolt/internal/reservations/repository"
	stationrepo "ecovolt/internal/stations/repository"
	"ecovolt/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const indexNotFoundCode = 27

type Options struct {
	Database string
	// OneReservationPerUser adds the partial unique index that makes the
	// database reject a second open reservation for the same user.
	OneReservationPerUser bool
}

type collectionDef struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

var (
	StationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
	}

	ClaimsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "released", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "station_id", Value: 1}}},
	}

	UsersIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(authrepo.EmailIndex).SetUnique(true),
		},
	}
)

func reservationsIndexes(onePerUser bool) []mongo.IndexModel {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "code", Value: 1}},
			Options: options.Index().
				SetName(reservationrepo.CodeIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"code": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "open", Value: 1}, {Key: "expires_at", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if onePerUser {
		indexes = append(indexes, mongo.IndexModel{
			Keys: bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().
				SetName(reservationrepo.OpenPerUserIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"open": true}),
		})
	}
	return indexes
}

func collections(opts Options) []collectionDef {
	return []collectionDef{
		{Name: stationrepo.CollectionName, Indexes: StationsIndexes, Validator: validators.StationValidator},
		{Name: inventoryrepo.CollectionName, Indexes: ClaimsIndexes, Validator: validators.ClaimValidator},
		{Name: reservationrepo.CollectionName, Indexes: reservationsIndexes(opts.OneReservationPerUser), Validator: validators.ReservationValidator},
		{Name: authrepo.CollectionName, Indexes: UsersIndexes, Validator: validators.UserValidator},
	}
}

func RunMigration(ctx context.Context, client *mongo.Client, opts Options, log *logger.Logger) error {
	db := client.Database(opts.Database)
	log.Info("Running Mongo migrations", "database", opts.Database)

	for _, def := range collections(opts) {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	if !opts.OneReservationPerUser {
		dropIndexIfExists(ctx, db.Collection(reservationrepo.CollectionName), reservationrepo.OpenPerUserIndex, log)
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}

func dropIndexIfExists(ctx context.Context, coll *mongo.Collection, name string, log *logger.Logger) {
	if _, err := coll.Indexes().DropOne(ctx, name); err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Code == indexNotFoundCode {
			return
		}
		log.Warn("Failed dropping index", "collection", coll.Name(), "index", name, "error", err)
		return
	}
	log.Info("Dropped index", "collection", coll.Name(), "index", name)
}
