package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/codfleet/api/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routeGroup int

const (
	groupOrders routeGroup = iota
	groupProducts
	groupRemittances
	groupFinance
	groupWarehouse
	groupInternal
)

// Mount order is fixed. /internal sits behind service tokens, every other group behind actor auth.
var groupPaths = [...]string{
	groupOrders:      "/orders",
	groupProducts:    "/products",
	groupRemittances: "/remittances",
	groupFinance:     "/finance",
	groupWarehouse:   "/warehouse",
	groupInternal:    "/internal",
}

type routerConfig struct {
	basePath    string
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers
	groups      map[routeGroup]RouteRegistrar

	actorChain    []func(http.Handler) http.Handler
	internalChain []func(http.Handler) http.Handler
}

type Option func(*routerConfig)

const (
	defaultAPIPrefix = "/api/v1"
	defaultTimeout   = 60 * time.Second
)

// NewRouter builds the chi router. Groups without a registrar are left unmounted and answer 404.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath: defaultAPIPrefix,
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(defaultTimeout),
		},
		groups: make(map[routeGroup]RouteRegistrar),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	useAll(r, cfg.middlewares)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("%s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(cfg.basePath, func(api chi.Router) {
		for group, path := range groupPaths {
			registrar, ok := cfg.groups[routeGroup(group)]
			if !ok || registrar == nil {
				continue
			}
			chain := cfg.actorChain
			if routeGroup(group) == groupInternal {
				chain = cfg.internalChain
			}
			api.Route(path, func(sub chi.Router) {
				useAll(sub, chain)
				registrar(sub)
			})
		}
	})
	return r
}

func useAll(r chi.Router, mws []func(http.Handler) http.Handler) {
	for _, mw := range mws {
		if mw != nil {
			r.Use(mw)
		}
	}
}

func withGroup(group routeGroup, reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.groups[group] = reg }
}

// WithMiddlewares appends global middleware. Probes run behind it too.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.middlewares = append(cfg.middlewares, mw...) }
}

func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

// WithAuthenticatedMiddlewares sets the chain for actor-facing groups. The authenticator
// must come first so later middleware can read the actor.
func WithAuthenticatedMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.actorChain = append(cfg.actorChain, mw...) }
}

// WithInternalMiddlewares sets the chain for the /internal group.
func WithInternalMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.internalChain = append(cfg.internalChain, mw...) }
}

func WithOrderRoutes(reg RouteRegistrar) Option      { return withGroup(groupOrders, reg) }
func WithProductRoutes(reg RouteRegistrar) Option    { return withGroup(groupProducts, reg) }
func WithRemittanceRoutes(reg RouteRegistrar) Option { return withGroup(groupRemittances, reg) }
func WithFinanceRoutes(reg RouteRegistrar) Option    { return withGroup(groupFinance, reg) }
func WithWarehouseRoutes(reg RouteRegistrar) Option  { return withGroup(groupWarehouse, reg) }
func WithInternalRoutes(reg RouteRegistrar) Option   { return withGroup(groupInternal, reg) }
