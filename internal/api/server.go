package api

import (
    "context"
    "net/http"
    "sync/atomic"

    "github.com/go-chi/chi/v5"
    "github.com/go-chi/chi/v5/middleware"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/sirupsen/logrus"
    "golang.org/x/time/rate"

    "chainsim/internal/config"
    "chainsim/internal/logging"
    "chainsim/internal/metrics"
    "chainsim/internal/sim"
    "chainsim/internal/store"
)

// Server exposes one Simulation over HTTP, SSE and WebSocket. It is also the
// simulation's renderer, display, chart and observer collaborator: every
// callback becomes a broker event.
type Server struct {
    Sim     *sim.Simulation
    Network *config.Network
    Store   store.Store
    Broker  EventBroker
    Config  config.Config
    Log     logrus.FieldLogger

    limiter    *rate.Limiter
    frames     atomic.Uint64
    forceFrame atomic.Bool
}

// NewServer creates a Server. Sim is attached by the caller once the
// simulation has been built with the server as its collaborator.
func NewServer(cfg config.Config, net *config.Network, st store.Store, broker EventBroker, log logrus.FieldLogger) *Server {
    if broker == nil { broker = NewBroker() }
    if st == nil { st = store.NewMemory() }
    if cfg.DisplayEvery <= 0 { cfg.DisplayEvery = 1 }
    return &Server{
        Network: net,
        Store:   st,
        Broker:  broker,
        Config:  cfg,
        Log:     logging.Component(log, "api"),
        limiter: rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst),
    }
}

// OpenStore picks the ledger backend: Postgres when DATABASE_URL is set,
// SQLite when SQLITE_PATH is set, memory otherwise. SQL stores are migrated.
func OpenStore(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (store.Store, error) {
    var (
        sp  *store.SQL
        err error
    )
    switch {
    case cfg.DatabaseURL != "":
        sp, err = store.NewPostgres(cfg.DatabaseURL)
    case cfg.SQLitePath != "":
        sp, err = store.NewSQLite(cfg.SQLitePath)
    default:
        log.Info("ledger store: memory")
        return store.NewMemory(), nil
    }
    if err != nil { return nil, err }
    if err := sp.Migrate(ctx); err != nil {
        _ = sp.Close()
        return nil, err
    }
    log.WithField("driver", sp.Driver()).Info("ledger store: sql")
    return sp, nil
}

// OpenBroker uses Redis when REDIS_URL is set and reachable, the in-memory broker otherwise.
func OpenBroker(cfg config.Config, log logrus.FieldLogger) EventBroker {
    if cfg.RedisURL != "" {
        rb, err := NewRedisBroker(cfg.RedisURL, log)
        if err == nil { return rb }
        log.WithError(err).Warn("redis unavailable, using in-memory broker")
    }
    return NewBroker()
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
    r := chi.NewRouter()
    r.Use(middleware.RequestID)
    r.Use(middleware.Recoverer)
    r.Use(s.logMiddleware)
    r.Use(metricsMiddleware)
    r.Use(corsMiddleware(s.Config.AllowOrigins))

    r.Get("/healthz", s.HealthHandler)
    r.Get("/readyz", s.ReadyHandler)
    r.Get("/debug", s.DebugJSON)
    r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    r.Route("/v1", func(r chi.Router) {
        r.Get("/state", s.StateHandler)
        r.Get("/network", s.NetworkHandler)
        r.Get("/network.geojson", s.NetworkGeoJSONHandler)
        r.Get("/nodes/{nodeID}", s.NodeHandler)
        r.Get("/emissions", s.EmissionsHandler)

        r.Group(func(r chi.Router) {
            r.Use(s.rateLimit)
            r.Post("/sim/toggle", s.ToggleHandler)
            r.Post("/sim/play", s.PlayHandler)
            r.Post("/sim/pause", s.PauseHandler)
            r.Post("/sim/reset", s.ResetHandler)
            r.Post("/sim/step", s.StepHandler)
            r.Put("/sim/speed", s.SpeedHandler)
            r.Put("/sim/scenario", s.ScenarioHandler)
            r.Post("/routes/{routeID}/dispatch", s.DispatchHandler)
        })

        r.Get("/events/stream", s.EventsStreamHandler)
        r.Get("/routes/{routeID}/events/stream", s.RouteEventsStreamHandler)
        r.Get("/ws", s.WSHandler)

        r.Get("/runs", s.RunsHandler)
        r.Get("/runs/{runID}", s.RunHandler)
    })
    return r
}
