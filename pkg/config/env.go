package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvStorageBackend    = "STORAGE_BACKEND"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"
	EnvTrustedProxies    = "TRUSTED_PROXIES"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvJWTSecret = "JWT_SECRET"
	EnvJWTTTL    = "JWT_TTL"
	EnvQRSecret  = "QR_SECRET"

	EnvReservationTTL           = "RESERVATION_TTL"
	EnvReservationTimeout       = "RESERVATION_TIMEOUT"
	EnvReservationCommitRetries = "RESERVATION_COMMIT_RETRIES"
	EnvReservationOnePerUser    = "RESERVATION_ONE_PER_USER"

	EnvSweepInterval    = "SWEEP_INTERVAL"
	EnvClaimGracePeriod = "CLAIM_GRACE_PERIOD"

	EnvStationsOrderBy  = "STATIONS_ORDER_BY"
	EnvStationsSeedFile = "STATIONS_SEED_FILE"

	EnvKafkaEnabled           = "KAFKA_ENABLED"
	EnvKafkaReservationsTopic = "KAFKA_RESERVATIONS_TOPIC"
	EnvKafkaReturnsTopic      = "KAFKA_RETURNS_TOPIC"
	EnvKafkaReturnsDLQTopic   = "KAFKA_RETURNS_DLQ_TOPIC"
	EnvKafkaGroupID           = "KAFKA_GROUP_ID"
)
