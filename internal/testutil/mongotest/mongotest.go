// Package mongotest gives repository tests a migrated, throwaway MongoDB
// database. Tests using it are skipped unless MONGO_URI is set.
package mongotest

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	migrations "ecovolt/internal/migrations/mongo"
	"ecovolt/pkg/client"
	"ecovolt/pkg/config"
	"ecovolt/pkg/logger"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

type Options struct {
	OneReservationPerUser bool
	// Transactions skips the test when the server is a standalone node.
	Transactions bool
}

// Config connects to MONGO_URI, migrates a fresh database and returns a
// config pointing at it. The database is dropped when the test ends.
func Config(t *testing.T, opts Options) *config.Config {
	t.Helper()

	uri := os.Getenv(config.EnvMongoURI)
	if uri == "" {
		t.Skip("MONGO_URI not set; skipping MongoDB test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := mc.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	dbName := "ecovolt_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := mc.Database(dbName).Drop(ctx); err != nil {
			t.Logf("warning: failed to drop %s: %v", dbName, err)
		}
		_ = mc.Disconnect(ctx)
	})

	if opts.Transactions && !replicaSet(ctx, mc) {
		t.Skip("MongoDB is standalone; transactions need a replica set")
	}

	log := logger.Discard()
	migrationOpts := migrations.Options{Database: dbName, OneReservationPerUser: opts.OneReservationPerUser}
	if err := migrations.RunMigration(ctx, mc, migrationOpts, log); err != nil {
		t.Fatalf("failed to migrate %s: %v", dbName, err)
	}

	return &config.Config{
		MongoURI:              uri,
		MongoDatabaseName:     dbName,
		StorageBackend:        config.StorageMongo,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		OneReservationPerUser: opts.OneReservationPerUser,
		Log:                   log,
		Client:                &client.Client{Mongo: mc},
	}
}

func replicaSet(ctx context.Context, mc *mongo.Client) bool {
	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	err := mc.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello)
	if err != nil {
		return false
	}
	return hello.SetName != "" || hello.Msg == "isdbgrid"
}
