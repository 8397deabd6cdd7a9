package main

import (
	"context"
	"flag"
	"time"

	mongoMigration "ecovolt/internal/migrations/mongo"
	stationrepo "ecovolt/internal/stations/repository"
	"ecovolt/internal/stations/seed"
	stationservice "ecovolt/internal/stations/service"
	stationvalidator "ecovolt/internal/stations/validator"
	"ecovolt/pkg/config"
)

const JobName = "mongo-migration"

func main() {
	seedFile := flag.String("seed", "", "station seed file (defaults to STATIONS_SEED_FILE)")
	skipSeed := flag.Bool("skip-seed", false, "apply schema migrations only")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetMongo()
	cfg.Log.Info("Starting Mongo migration job")
	defer cfg.GracefulShutdown()

	migrateMongo(ctx, cfg)
	if !*skipSeed {
		path := *seedFile
		if path == "" {
			path = cfg.StationsSeedFile
		}
		seedStations(ctx, cfg, path)
	}
	cfg.Log.Info("Migration completed successfully")
}

func migrateMongo(ctx context.Context, cfg *config.Config) {
	opts := mongoMigration.Options{
		Database:              cfg.MongoDatabaseName,
		OneReservationPerUser: cfg.OneReservationPerUser,
	}
	if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, opts, cfg.Log); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}
}

// seedStations upserts the seed file. Re-running it keeps units that are
// currently reserved out, clamped to the new total.
func seedStations(ctx context.Context, cfg *config.Config, path string) {
	if path == "" {
		cfg.Log.Info("No station seed file configured, skipping seed")
		return
	}

	stations, err := seed.LoadFile(path)
	if err != nil {
		cfg.Log.Fatal("Failed to load station seed", "path", path, "error", err)
	}

	svc := stationservice.NewStationService(
		stationrepo.NewMongoStationRepository(cfg),
		stationvalidator.NewStationValidator(),
		cfg,
	)
	n, err := svc.Provision(ctx, stations)
	if err != nil {
		cfg.Log.Fatal("Failed to provision stations", "provisioned", n, "error", err)
	}
	cfg.Log.Info("Stations seeded", "path", path, "count", n)
}
