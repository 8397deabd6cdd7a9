package config

import (
	"encoding/base64"
	"fmt"
	"net/netip"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ecovolt/pkg/client"
	"ecovolt/pkg/flow"
	"ecovolt/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration
	StorageBackend    string

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	// TrustedProxies lists CIDRs whose X-Forwarded-For hops are believed.
	TrustedProxies []string

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	JWTSecret string
	JWTTTL    time.Duration
	QRSecret  string

	ReservationTTL           time.Duration
	ReservationTimeout       time.Duration
	ReservationCommitRetries int
	OneReservationPerUser    bool

	SweepInterval    time.Duration
	ClaimGracePeriod time.Duration

	StationsOrderBy  string
	StationsSeedFile string

	KafkaEnabled           bool
	KafkaReservationsTopic string
	KafkaReturnsTopic      string
	KafkaReturnsDLQTopic   string
	KafkaGroupID           string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		StorageBackend:    strings.ToLower(getEnvStr(EnvStorageBackend, DefaultStorageBackend)),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),
		TrustedProxies:    getEnvList(EnvTrustedProxies),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		JWTSecret: getEnvStr(EnvJWTSecret, DefaultJWTSecret),
		JWTTTL:    getEnvDuration(EnvJWTTTL, DefaultJWTTTL),
		QRSecret:  getEnvStr(EnvQRSecret, DefaultQRSecret),

		ReservationTTL:           getEnvDuration(EnvReservationTTL, DefaultReservationTTL),
		ReservationTimeout:       getEnvDuration(EnvReservationTimeout, DefaultReservationTimeout),
		ReservationCommitRetries: getEnvNum(EnvReservationCommitRetries, DefaultReservationCommitRetries),
		OneReservationPerUser:    getEnvBool(EnvReservationOnePerUser, DefaultReservationOnePerUser),

		SweepInterval:    getEnvDuration(EnvSweepInterval, DefaultSweepInterval),
		ClaimGracePeriod: getEnvDuration(EnvClaimGracePeriod, DefaultClaimGracePeriod),

		StationsOrderBy:  strings.ToLower(getEnvStr(EnvStationsOrderBy, DefaultStationsOrderBy)),
		StationsSeedFile: getEnvStr(EnvStationsSeedFile, DefaultStationsSeedFile),

		KafkaEnabled:           getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		KafkaReservationsTopic: getEnvStr(EnvKafkaReservationsTopic, DefaultKafkaReservationsTopic),
		KafkaReturnsTopic:      getEnvStr(EnvKafkaReturnsTopic, DefaultKafkaReturnsTopic),
		KafkaReturnsDLQTopic:   getEnvStr(EnvKafkaReturnsDLQTopic, DefaultKafkaReturnsDLQTopic),
		KafkaGroupID:           getEnvStr(EnvKafkaGroupID, DefaultKafkaGroupID),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// UsesMongo reports whether repositories should be backed by MongoDB.
func (cfg *Config) UsesMongo() bool {
	return cfg.StorageBackend != StorageMemory
}

// QRKey decodes QRSecret into the raw AES-256 key.
func (cfg *Config) QRKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(cfg.QRSecret)
	if err != nil {
		return nil, fmt.Errorf("QR secret is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("QR secret must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// TrustedProxyPrefixes parses TrustedProxies. Bare addresses become
// single-host prefixes.
func (cfg *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(cfg.TrustedProxies))
	for _, raw := range cfg.TrustedProxies {
		if prefix, err := netip.ParsePrefix(raw); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q is neither an address nor a CIDR", raw)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// ReserveInFlightBound is the longest a reserve can hold a claim before its
// ledger record exists or its compensation has run.
func (cfg *Config) ReserveInFlightBound() time.Duration {
	return cfg.ReservationTimeout + flow.DefaultCompensationTimeout
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StorageBackend {
	case StorageMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	case StorageMemory:
	default:
		errors = append(errors, fmt.Sprintf("StorageBackend must be one of [mongo, memory], got: %s", cfg.StorageBackend))
	}

	positiveDurations := []struct {
		name  string
		value time.Duration
	}{
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"JWTTTL", cfg.JWTTTL},
		{"ReservationTTL", cfg.ReservationTTL},
		{"ReservationTimeout", cfg.ReservationTimeout},
		{"SweepInterval", cfg.SweepInterval},
		{"ClaimGracePeriod", cfg.ClaimGracePeriod},
	}
	for _, d := range positiveDurations {
		if d.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", d.name, d.value))
		}
	}

	if cfg.ReservationTimeout > cfg.RequestTimeout {
		errors = append(errors, fmt.Sprintf("ReservationTimeout (%s) must not exceed RequestTimeout (%s)", cfg.ReservationTimeout, cfg.RequestTimeout))
	}

	if cfg.ClaimGracePeriod > 0 && cfg.ClaimGracePeriod <= cfg.ReserveInFlightBound() {
		errors = append(errors, fmt.Sprintf("ClaimGracePeriod (%s) must exceed ReservationTimeout plus compensation timeout (%s)", cfg.ClaimGracePeriod, cfg.ReserveInFlightBound()))
	}

	if _, err := cfg.TrustedProxyPrefixes(); err != nil {
		errors = append(errors, err.Error())
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReservationCommitRetries < 1 {
		errors = append(errors, fmt.Sprintf("ReservationCommitRetries must be at least 1, got: %d", cfg.ReservationCommitRetries))
	}

	if cfg.JWTSecret == "" {
		errors = append(errors, "JWTSecret cannot be empty")
	}
	if _, err := cfg.QRKey(); err != nil {
		errors = append(errors, err.Error())
	}

	if cfg.StationsOrderBy != OrderByID && cfg.StationsOrderBy != OrderByName {
		errors = append(errors, fmt.Sprintf("StationsOrderBy must be one of [id, name], got: %s", cfg.StationsOrderBy))
	}

	if cfg.KafkaEnabled {
		if cfg.KafkaReservationsTopic == "" {
			errors = append(errors, "KafkaReservationsTopic cannot be empty when Kafka is enabled")
		}
		if cfg.KafkaReturnsTopic != "" && cfg.KafkaGroupID == "" {
			errors = append(errors, "KafkaGroupID cannot be empty when a returns topic is consumed")
		}
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"storage_backend", cfg.StorageBackend,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"trusted_proxies", cfg.TrustedProxies,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"jwt_secret_default", cfg.JWTSecret == DefaultJWTSecret,
		"jwt_ttl", cfg.JWTTTL,
		"qr_secret_default", cfg.QRSecret == DefaultQRSecret,
		"reservation_ttl", cfg.ReservationTTL,
		"reservation_timeout", cfg.ReservationTimeout,
		"reservation_commit_retries", cfg.ReservationCommitRetries,
		"one_reservation_per_user", cfg.OneReservationPerUser,
		"sweep_interval", cfg.SweepInterval,
		"claim_grace_period", cfg.ClaimGracePeriod,
		"stations_order_by", cfg.StationsOrderBy,
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_reservations_topic", cfg.KafkaReservationsTopic,
		"kafka_returns_topic", cfg.KafkaReturnsTopic,
	)

	if cfg.JWTSecret == DefaultJWTSecret || cfg.QRSecret == DefaultQRSecret {
		cfg.Log.Warn("Development secrets in use; set JWT_SECRET and QR_SECRET before deploying")
	}
	if !cfg.UsesMongo() {
		cfg.Log.Warn("In-memory storage selected; stations and reservations will not survive a restart")
	}
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
