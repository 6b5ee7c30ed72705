package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/codfleet/api/internal/platform/config"
	"github.com/codfleet/api/internal/platform/observability"
	"github.com/codfleet/api/internal/repositories"
	"github.com/codfleet/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Orders       services.OrderLifecycle
	Inventory    services.ProductInventory
	Invoices     services.InvoiceCounter
	Deduplicator services.SubmissionDeduplicator
	Finance      services.FinancialReconciler
	Remittances  services.RemittanceLedger
	Warehouse    services.WarehouseSummary
	Outbox       services.OutboxDispatcher
	System       services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services

	closers []Closer
}

// Option customises container wiring.
type Option func(*options)

type options struct {
	claims    services.ClaimStore
	publisher services.OrderEventPublisher
	logger    *zap.Logger
	clock     func() time.Time
	meter     metric.Meter
	build     services.BuildInfo
	closers   []Closer
}

// WithClaimStore sets the submission claim backend. Defaults to an in-process store.
func WithClaimStore(store services.ClaimStore) Option {
	return func(o *options) { o.claims = store }
}

// WithPublisher sets the order event sink the outbox dispatcher publishes to.
func WithPublisher(pub services.OrderEventPublisher) Option {
	return func(o *options) { o.publisher = pub }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

func WithMeter(meter metric.Meter) Option {
	return func(o *options) { o.meter = meter }
}

func WithBuildInfo(build services.BuildInfo) Option {
	return func(o *options) { o.build = build }
}

// WithCloser registers a hook that Close runs after the registry shuts down.
func WithCloser(closer Closer) Option {
	return func(o *options) {
		if closer != nil {
			o.closers = append(o.closers, closer)
		}
	}
}

// NewContainer constructs the runtime dependencies on top of reg.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	o := options{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.claims == nil {
		return nil, errors.New("claim store is required")
	}
	if o.publisher == nil {
		return nil, errors.New("order event publisher is required")
	}

	svc, err := buildServices(ctx, reg, cfg, o)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
		closers:      o.closers,
	}, nil
}

// Close releases the registry first, then every registered closer. All errors are joined.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Repositories != nil {
		if err := c.Repositories.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, closer := range c.closers {
		if err := closer(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, o options) (Services, error) {
	var svc Services
	named := func(name string) func(context.Context, string, map[string]any) {
		return observability.ServiceLogger(o.logger.Named(name))
	}

	var err error
	svc.Invoices, err = services.NewInvoiceCounter(services.InvoiceCounterDeps{Sequences: reg.Sequences()})
	if err != nil {
		return Services{}, fmt.Errorf("build invoice counter: %w", err)
	}

	svc.Inventory, err = services.NewProductInventory(services.ProductInventoryDeps{
		Products:   reg.Products(),
		Actors:     reg.Actors(),
		UnitOfWork: reg,
		Clock:      o.clock,
		Logger:     named("inventory"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build product inventory: %w", err)
	}

	svc.Deduplicator, err = services.NewSubmissionDeduplicator(services.SubmissionDeduplicatorDeps{
		Orders: reg.Orders(),
		Claims: o.claims,
		Window: cfg.Dedup.Window,
		Clock:  o.clock,
		Logger: named("dedup"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build submission deduplicator: %w", err)
	}

	svc.Orders, err = services.NewOrderLifecycle(services.OrderLifecycleDeps{
		Orders:       reg.Orders(),
		Products:     reg.Products(),
		Actors:       reg.Actors(),
		Outbox:       reg.Outbox(),
		Invoices:     svc.Invoices,
		Inventory:    svc.Inventory,
		Deduplicator: svc.Deduplicator,
		UnitOfWork:   reg,
		Clock:        o.clock,
		Logger:       named("orders"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order lifecycle: %w", err)
	}

	svc.Finance, err = services.NewFinancialReconciler(services.FinancialReconcilerDeps{
		Orders:   reg.Orders(),
		Expenses: reg.Expenses(),
		Actors:   reg.Actors(),
		Clock:    o.clock,
		Logger:   named("finance"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build financial reconciler: %w", err)
	}

	svc.Remittances, err = services.NewRemittanceLedger(services.RemittanceLedgerDeps{
		Remittances: reg.Remittances(),
		Orders:      reg.Orders(),
		Actors:      reg.Actors(),
		UnitOfWork:  reg,
		Clock:       o.clock,
		Logger:      named("remittances"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build remittance ledger: %w", err)
	}

	svc.Warehouse, err = services.NewWarehouseSummary(services.WarehouseSummaryDeps{
		Products: reg.Products(),
		Orders:   reg.Orders(),
		Actors:   reg.Actors(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build warehouse summary: %w", err)
	}

	svc.Outbox, err = services.NewOutboxDispatcher(services.OutboxDispatcherDeps{
		Outbox:      reg.Outbox(),
		Publisher:   o.publisher,
		BatchSize:   cfg.Outbox.BatchSize,
		MaxAttempts: cfg.Outbox.MaxAttempts,
		BaseBackoff: cfg.Outbox.BaseBackoff,
		MaxBackoff:  cfg.Outbox.MaxBackoff,
		Meter:       o.meter,
		Clock:       o.clock,
		Logger:      named("outbox"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build outbox dispatcher: %w", err)
	}

	svc.System, err = services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Outbox:           reg.Outbox(),
		OutboxLag:        cfg.Outbox.MaxBackoff,
		Clock:            o.clock,
		Build:            o.build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}

	return svc, nil
}
