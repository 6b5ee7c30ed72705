package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/codfleet/api/internal/di"
	"github.com/codfleet/api/internal/handlers"
	"github.com/codfleet/api/internal/platform/auth"
	"github.com/codfleet/api/internal/platform/config"
	"github.com/codfleet/api/internal/platform/dedup"
	"github.com/codfleet/api/internal/platform/idempotency"
	"github.com/codfleet/api/internal/platform/observability"
	"github.com/codfleet/api/internal/platform/secrets"
	"github.com/codfleet/api/internal/repositories"
	firestoreRepo "github.com/codfleet/api/internal/repositories/firestore"
	"github.com/codfleet/api/internal/services"
)

const meterName = "github.com/codfleet/api"

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(envValues["API_LOG_LEVEL"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	claims, err := di.OpenClaimStore(ctx, cfg.Dedup)
	if err != nil {
		logger.Fatal("failed to initialise claim store", zap.Error(err))
	}
	checks := []repositories.DependencyCheck{secretManagerCheck(fetcher)}
	if claims.Check != nil {
		checks = append(checks, *claims.Check)
	}

	registry, err := di.OpenRegistry(ctx, cfg, checks...)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	publisher, err := di.OpenPublisher(ctx, cfg.Events, logger)
	if err != nil {
		logger.Fatal("failed to initialise event publisher", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, registry,
		di.WithClaimStore(claims.Store),
		di.WithPublisher(publisher.Publisher),
		di.WithLogger(logger),
		di.WithMeter(otel.GetMeterProvider().Meter(meterName)),
		di.WithBuildInfo(buildInfo),
		di.WithCloser(claims.Close),
		di.WithCloser(publisher.Close),
	)
	if err != nil {
		logger.Fatal("failed to initialise services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	idempotencyStore, err := newIdempotencyStore(ctx, registry)
	if err != nil {
		logger.Fatal("failed to initialise idempotency store", zap.Error(err))
	}
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(logger.Named("idempotency")),
	)

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase, 0)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)
	serviceTokenMiddleware := buildServiceTokenMiddleware(logger.Named("auth"), cfg)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	var bgWG sync.WaitGroup
	runEvery(bgCtx, &bgWG, cfg.Outbox.Interval, func(ctx context.Context) {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		result, err := container.Services.Outbox.Dispatch(runCtx, cfg.Outbox.BatchSize)
		if err != nil {
			logger.Named("outbox").Error("outbox dispatch error", zap.Error(err))
			return
		}
		if result.Published+result.Retried+result.Failed > 0 {
			logger.Named("outbox").Info("outbox dispatch pass",
				zap.Int("published", result.Published),
				zap.Int("retried", result.Retried),
				zap.Int("failed", result.Failed),
			)
		}
	})
	runEvery(bgCtx, &bgWG, cfg.Idempotency.CleanupInterval, func(ctx context.Context) {
		cleanupLogger := logger.Named("idempotency")
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
		if err != nil {
			cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
			return
		}
		if removed > 0 {
			cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
		}
	})
	if memClaims, ok := claims.Store.(*dedup.MemoryClaimStore); ok {
		runEvery(bgCtx, &bgWG, cfg.Dedup.Window, func(context.Context) {
			memClaims.Sweep()
		})
	}

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(container.Services.System),
	)

	svc := container.Services
	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithAuthenticatedMiddlewares(
			authenticator.RequireFirebaseAuth(),
			handlers.RateLimitMiddleware(cfg.RateLimits.AuthenticatedPerMinute, cfg.RateLimits.DefaultPerMinute, nil),
			idempotencyMiddleware,
		),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(svc.Orders).Routes),
		handlers.WithProductRoutes(handlers.NewProductHandlers(svc.Inventory).Routes),
		handlers.WithRemittanceRoutes(handlers.NewRemittanceHandlers(svc.Remittances).Routes),
		handlers.WithFinanceRoutes(handlers.NewFinanceHandlers(svc.Finance).Routes),
		handlers.WithWarehouseRoutes(handlers.NewWarehouseHandlers(svc.Warehouse).Routes),
		handlers.WithInternalRoutes(handlers.NewInternalHandlers(svc.Outbox).Routes),
	}
	if serviceTokenMiddleware != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(serviceTokenMiddleware))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("codfleet api listening",
			zap.String("persistence", cfg.Persistence.Backend),
			zap.String("events", cfg.Events.Sink),
			zap.String("dedup", cfg.Dedup.Backend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	bgCancel()
	bgWG.Wait()
}

// runEvery calls fn on every tick until ctx is cancelled. A non-positive interval disables the loop.
func runEvery(ctx context.Context, wg *sync.WaitGroup, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

type idempotencyStore interface {
	idempotency.Store
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

func newIdempotencyStore(ctx context.Context, reg repositories.Registry) (idempotencyStore, error) {
	fsReg, ok := reg.(*firestoreRepo.Registry)
	if !ok {
		return idempotency.NewMemoryStore(), nil
	}
	client, err := fsReg.Provider().Client(ctx)
	if err != nil {
		return nil, err
	}
	return idempotency.NewFirestoreStore(client), nil
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

// secretManagerCheck probes Secret Manager with a reference that need not exist; NotFound still
// proves the API answered.
func secretManagerCheck(fetcher *secrets.Fetcher) repositories.DependencyCheck {
	const secretHealthReference = "secret://system/healthz?version=latest"
	return repositories.DependencyCheck{
		Name:     "secretManager",
		Timeout:  time.Second,
		Optional: true,
		Check: func(ctx context.Context) error {
			_, err := fetcher.Resolve(ctx, secretHealthReference)
			if err == nil || status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		},
	}
}

func buildServiceTokenMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}
	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	keys := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL, &http.Client{Timeout: 5 * time.Second}, time.Now)
	verifier := auth.NewServiceTokenVerifier(keys, audience, cfg.Security.OIDC.Issuers, logger)
	return verifier.RequireServiceToken()
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	project := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIREBASE_PROJECT_ID")
	}
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(project),
		secrets.WithMeter(otel.GetMeterProvider().Meter(meterName)),
	}
	if path := lookup("API_SECRET_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if ttl, err := time.ParseDuration(lookup("API_SECRET_CACHE_TTL")); err == nil {
		opts = append(opts, secrets.WithCacheTTL(ttl))
	}
	if credentials := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentials != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentials)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists secrets that must resolve to a value. The Redis password only
// matters when Redis backs the claim store and a reference was configured.
func requiredSecretNames(env map[string]string) []string {
	var required []string
	if strings.EqualFold(strings.TrimSpace(env["API_DEDUP_BACKEND"]), config.DedupRedis) &&
		strings.TrimSpace(env["API_DEDUP_REDIS_PASSWORD"]) != "" {
		required = append(required, "Dedup.RedisPassword")
	}
	return required
}
