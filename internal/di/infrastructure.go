package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/codfleet/api/internal/platform/config"
	"github.com/codfleet/api/internal/platform/dedup"
	pfirestore "github.com/codfleet/api/internal/platform/firestore"
	"github.com/codfleet/api/internal/platform/jobs"
	"github.com/codfleet/api/internal/repositories"
	firestoreRepo "github.com/codfleet/api/internal/repositories/firestore"
	"github.com/codfleet/api/internal/repositories/memory"
	"github.com/codfleet/api/internal/services"
)

const (
	dependencyProbeTimeout = time.Second
	firestoreDialTimeout   = 10 * time.Second
)

// Closer releases a resource opened while wiring the container.
type Closer func(ctx context.Context) error

// ClaimStore bundles the submission claim backend with its readiness probe.
type ClaimStore struct {
	Store services.ClaimStore
	Check *repositories.DependencyCheck
	Close Closer
}

// OpenClaimStore connects the configured claim backend. The memory store needs no probe.
func OpenClaimStore(ctx context.Context, cfg config.DedupConfig) (ClaimStore, error) {
	switch cfg.Backend {
	case config.DedupRedis:
		client, err := dedup.Connect(ctx, dedup.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return ClaimStore{}, err
		}
		store, err := dedup.NewRedisClaimStore(client)
		if err != nil {
			_ = client.Close()
			return ClaimStore{}, err
		}
		return ClaimStore{
			Store: store,
			Check: &repositories.DependencyCheck{
				Name:    "redis",
				Timeout: dependencyProbeTimeout,
				Check: func(ctx context.Context) error {
					return client.Ping(ctx).Err()
				},
			},
			Close: func(context.Context) error { return client.Close() },
		}, nil
	case config.DedupMemory, "":
		return ClaimStore{Store: dedup.NewMemoryClaimStore()}, nil
	default:
		return ClaimStore{}, fmt.Errorf("di: unsupported dedup backend %q", cfg.Backend)
	}
}

// OpenRegistry builds the repository registry for the configured persistence backend.
func OpenRegistry(ctx context.Context, cfg config.Config, checks ...repositories.DependencyCheck) (repositories.Registry, error) {
	switch cfg.Persistence.Backend {
	case config.PersistenceMemory:
		return memory.NewRegistry(checks...), nil
	case config.PersistenceFirestore, "":
		provider := pfirestore.NewProvider(cfg.Firestore, pfirestore.WithDialTimeout(firestoreDialTimeout))
		if _, err := provider.Client(ctx); err != nil {
			return nil, fmt.Errorf("di: firestore client: %w", err)
		}
		reg, err := firestoreRepo.NewRegistry(provider, checks...)
		if err != nil {
			_ = provider.Close(ctx)
			return nil, err
		}
		return reg, nil
	default:
		return nil, fmt.Errorf("di: unsupported persistence backend %q", cfg.Persistence.Backend)
	}
}

// Publisher bundles the order event sink with its shutdown hook.
type Publisher struct {
	Publisher services.OrderEventPublisher
	Close     Closer
}

// OpenPublisher connects the configured order event sink.
func OpenPublisher(ctx context.Context, cfg config.EventsConfig, logger *zap.Logger) (Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Sink {
	case config.EventSinkPubSub:
		client, err := pubsub.NewClient(ctx, cfg.PubSubProjectID)
		if err != nil {
			return Publisher{}, fmt.Errorf("di: pubsub client: %w", err)
		}
		topic := client.Topic(strings.TrimSpace(cfg.PubSubTopic))
		pub, err := jobs.NewPubSubEventPublisher(topic)
		if err != nil {
			_ = client.Close()
			return Publisher{}, err
		}
		return Publisher{
			Publisher: pub,
			Close: func(context.Context) error {
				topic.Stop()
				return client.Close()
			},
		}, nil
	case config.EventSinkKafka:
		writer, err := jobs.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return Publisher{}, err
		}
		pub, err := jobs.NewKafkaEventPublisher(writer)
		if err != nil {
			_ = writer.Close()
			return Publisher{}, err
		}
		return Publisher{
			Publisher: pub,
			Close:     func(context.Context) error { return pub.Close() },
		}, nil
	case config.EventSinkLog, "":
		pub, err := jobs.NewLogEventPublisher(logger.Named("events"))
		if err != nil {
			return Publisher{}, err
		}
		return Publisher{Publisher: pub}, nil
	default:
		return Publisher{}, errors.New("di: unsupported event sink " + cfg.Sink)
	}
}
