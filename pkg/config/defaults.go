package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "ecovolt"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultStorageBackend    = StorageMongo

	DefaultPort     = "3000"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 120
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Development-only secrets. Validate warns when they are left in place.
	DefaultJWTSecret = "secret_key_ecovolt_development"
	DefaultJWTTTL    = 24 * time.Hour
	DefaultQRSecret  = "ZWNvdm9sdC1kZXZlbG9wbWVudC1xci1rZXktMzJieXQ="

	DefaultReservationTTL           = 15 * time.Minute
	DefaultReservationTimeout       = 10 * time.Second
	DefaultReservationCommitRetries = 3
	DefaultReservationOnePerUser    = true

	DefaultSweepInterval    = 30 * time.Second
	DefaultClaimGracePeriod = 2 * time.Minute

	DefaultStationsOrderBy  = OrderByID
	DefaultStationsSeedFile = "stations.yaml"

	DefaultKafkaEnabled           = false
	DefaultKafkaReservationsTopic = "ecovolt.reservations"
	DefaultKafkaReturnsTopic      = "ecovolt.scooter-returns"
	DefaultKafkaReturnsDLQTopic   = "ecovolt.scooter-returns.dlq"
	DefaultKafkaGroupID           = "ecovolt-reservations"

	DefaultPaginationLimit = 100
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"

	OrderByID   = "id"
	OrderByName = "name"
)
