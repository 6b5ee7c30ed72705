package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultPersistenceBackend   = PersistenceFirestore
	defaultEventSink            = EventSinkLog
	defaultPubSubTopic          = "order-events"
	defaultKafkaTopic           = "order-events"
	defaultOutboxInterval       = 15 * time.Second
	defaultOutboxBatchSize      = 100
	defaultOutboxMaxAttempts    = 8
	defaultOutboxBaseBackoff    = 30 * time.Second
	defaultOutboxMaxBackoff     = time.Hour
	defaultDedupWindow          = 30 * time.Second
	defaultDedupBackend         = DedupMemory
	defaultRateLimitDefault     = 120
	defaultRateLimitAuth        = 240
	defaultSecurityEnvironment  = "local"
	defaultOIDCJWKSURL          = "https://www.googleapis.com/oauth2/v3/certs"
	defaultSecurityIssuer       = "https://accounts.google.com"
	defaultSecurityIAPIssuer    = "https://cloud.google.com/iap"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
)

// Persistence backends.
const (
	PersistenceFirestore = "firestore"
	PersistenceMemory    = "memory"
)

// Event sinks the outbox dispatcher can publish to.
const (
	EventSinkPubSub = "pubsub"
	EventSinkKafka  = "kafka"
	EventSinkLog    = "log"
)

// Claim store backends for duplicate submission detection.
const (
	DedupMemory = "memory"
	DedupRedis  = "redis"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Persistence PersistenceConfig
	Events      EventsConfig
	Outbox      OutboxConfig
	Dedup       DedupConfig
	RateLimits  RateLimitConfig
	Security    SecurityConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	DatabaseID   string
	EmulatorHost string
}

// PersistenceConfig selects where repositories keep their state.
type PersistenceConfig struct {
	Backend string
}

// EventsConfig selects and configures the order event sink.
type EventsConfig struct {
	Sink            string
	PubSubProjectID string
	PubSubTopic     string
	KafkaBrokers    []string
	KafkaTopic      string
}

// OutboxConfig controls the background outbox dispatcher.
type OutboxConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DedupConfig controls duplicate order submission detection.
type DedupConfig struct {
	Window        time.Duration
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	DefaultPerMinute       int
	AuthenticatedPerMinute int
}

// SecurityConfig groups server-to-server authentication settings.
type SecurityConfig struct {
	Environment string
	OIDC        OIDCConfig
}

// OIDCConfig controls Google-signed token verification for internal endpoints.
type OIDCConfig struct {
	JWKSURL   string
	Audience  string
	Audiences map[string]string
	Issuers   []string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	if options.secret == nil {
		options.secret = SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		})
	}

	lookup, err := options.lookup()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			DatabaseID:   stringWithDefault(lookup, "API_FIRESTORE_DATABASE_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Persistence: PersistenceConfig{
			Backend: strings.ToLower(stringWithDefault(lookup, "API_PERSISTENCE_BACKEND", defaultPersistenceBackend)),
		},
		Events: EventsConfig{
			Sink:            strings.ToLower(stringWithDefault(lookup, "API_EVENTS_SINK", defaultEventSink)),
			PubSubProjectID: stringWithDefault(lookup, "API_EVENTS_PUBSUB_PROJECT_ID", ""),
			PubSubTopic:     stringWithDefault(lookup, "API_EVENTS_PUBSUB_TOPIC", defaultPubSubTopic),
			KafkaBrokers:    csvWithDefault(lookup, "API_EVENTS_KAFKA_BROKERS"),
			KafkaTopic:      stringWithDefault(lookup, "API_EVENTS_KAFKA_TOPIC", defaultKafkaTopic),
		},
		Outbox: OutboxConfig{
			Interval:    durationWithDefault(lookup, "API_OUTBOX_INTERVAL", defaultOutboxInterval),
			BatchSize:   intWithDefault(lookup, "API_OUTBOX_BATCH_SIZE", defaultOutboxBatchSize),
			MaxAttempts: intWithDefault(lookup, "API_OUTBOX_MAX_ATTEMPTS", defaultOutboxMaxAttempts),
			BaseBackoff: durationWithDefault(lookup, "API_OUTBOX_BASE_BACKOFF", defaultOutboxBaseBackoff),
			MaxBackoff:  durationWithDefault(lookup, "API_OUTBOX_MAX_BACKOFF", defaultOutboxMaxBackoff),
		},
		Dedup: DedupConfig{
			Window:        durationWithDefault(lookup, "API_DEDUP_WINDOW", defaultDedupWindow),
			Backend:       strings.ToLower(stringWithDefault(lookup, "API_DEDUP_BACKEND", defaultDedupBackend)),
			RedisAddr:     stringWithDefault(lookup, "API_DEDUP_REDIS_ADDR", ""),
			RedisPassword: stringWithDefault(lookup, "API_DEDUP_REDIS_PASSWORD", ""),
			RedisDB:       intWithDefault(lookup, "API_DEDUP_REDIS_DB", 0),
		},
		RateLimits: RateLimitConfig{
			DefaultPerMinute:       intWithDefault(lookup, "API_RATELIMIT_DEFAULT_PER_MIN", defaultRateLimitDefault),
			AuthenticatedPerMinute: intWithDefault(lookup, "API_RATELIMIT_AUTH_PER_MIN", defaultRateLimitAuth),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(stringWithDefault(lookup, "API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			OIDC: OIDCConfig{
				JWKSURL:   stringWithDefault(lookup, "API_SECURITY_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience:  stringWithDefault(lookup, "API_SECURITY_OIDC_AUDIENCE", ""),
				Audiences: mapWithDefault(lookup, "API_SECURITY_OIDC_AUDIENCES"),
				Issuers:   csvWithDefault(lookup, "API_SECURITY_OIDC_ISSUERS"),
			},
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  durationWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: intWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Events.PubSubProjectID == "" {
		cfg.Events.PubSubProjectID = cfg.Firebase.ProjectID
	}
	if len(cfg.Security.OIDC.Issuers) == 0 {
		cfg.Security.OIDC.Issuers = []string{defaultSecurityIssuer, defaultSecurityIAPIssuer}
	}
	if cfg.Security.OIDC.Audience == "" {
		if audience, ok := cfg.Security.OIDC.Audiences[cfg.Security.Environment]; ok {
			cfg.Security.OIDC.Audience = audience
		}
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Dedup.RedisPassword", &cfg.Dedup.RedisPassword},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		if options.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string
	require := func(ok bool, field string) {
		if !ok {
			missing = append(missing, field)
		}
	}

	require(cfg.Server.Port != "", "Server.Port")
	require(cfg.Firebase.ProjectID != "", "Firebase.ProjectID")

	switch cfg.Persistence.Backend {
	case PersistenceFirestore:
		require(cfg.Firestore.ProjectID != "", "Firestore.ProjectID")
	case PersistenceMemory:
	default:
		missing = append(missing, "Persistence.Backend")
	}

	switch cfg.Events.Sink {
	case EventSinkPubSub:
		require(cfg.Events.PubSubProjectID != "", "Events.PubSubProjectID")
		require(strings.TrimSpace(cfg.Events.PubSubTopic) != "", "Events.PubSubTopic")
	case EventSinkKafka:
		require(len(cfg.Events.KafkaBrokers) > 0, "Events.KafkaBrokers")
		require(strings.TrimSpace(cfg.Events.KafkaTopic) != "", "Events.KafkaTopic")
	case EventSinkLog:
	default:
		missing = append(missing, "Events.Sink")
	}

	require(cfg.Outbox.Interval > 0, "Outbox.Interval")
	require(cfg.Outbox.BatchSize > 0, "Outbox.BatchSize")
	require(cfg.Outbox.MaxAttempts > 0, "Outbox.MaxAttempts")
	require(cfg.Outbox.BaseBackoff > 0 && cfg.Outbox.MaxBackoff >= cfg.Outbox.BaseBackoff, "Outbox.Backoff")

	require(cfg.Dedup.Window > 0, "Dedup.Window")
	switch cfg.Dedup.Backend {
	case DedupRedis:
		require(strings.TrimSpace(cfg.Dedup.RedisAddr) != "", "Dedup.RedisAddr")
	case DedupMemory:
	default:
		missing = append(missing, "Dedup.Backend")
	}

	require(strings.TrimSpace(cfg.Idempotency.Header) != "", "Idempotency.Header")
	require(cfg.Idempotency.TTL > 0, "Idempotency.TTL")
	require(cfg.Idempotency.CleanupInterval > 0, "Idempotency.CleanupInterval")
	require(cfg.Idempotency.CleanupBatchSize > 0, "Idempotency.CleanupBatchSize")

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}
