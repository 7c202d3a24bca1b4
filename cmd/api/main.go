package main

import (
    "context"
    "errors"
    "flag"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/sirupsen/logrus"

    "chainsim/internal/api"
    "chainsim/internal/buildinfo"
    "chainsim/internal/config"
    "chainsim/internal/eventlog"
    "chainsim/internal/ledger"
    "chainsim/internal/logging"
    "chainsim/internal/metrics"
    "chainsim/internal/routing"
    "chainsim/internal/sim"
)

func main() {
    version := flag.Bool("version", false, "print version and exit")
    flag.Parse()
    if *version {
        fmt.Println(buildinfo.String())
        return
    }

    log := logging.FromEnv()
    cfg := config.FromEnv()
    if err := run(cfg, log); err != nil {
        log.WithError(err).Fatal("chainsim api failed")
    }
}

func run(cfg config.Config, log *logrus.Logger) error {
    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()
    metrics.RegisterDefault()

    net, err := loadNetwork(cfg.NetworkFile)
    if err != nil { return err }
    resolver := routing.NewResolver(cfg.OSRMURL, cfg.OSRMRPS, log)
    resolveCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
    resolver.ResolveAll(resolveCtx, net.Routes, net.Nodes)
    cancel()

    st, err := api.OpenStore(ctx, cfg, log)
    if err != nil { return fmt.Errorf("open store: %w", err) }
    defer func() { _ = st.Close() }()
    broker := api.OpenBroker(cfg, log)
    if rb, ok := broker.(*api.RedisBroker); ok { defer func() { _ = rb.Close() }() }

    var sink ledger.Sink
    if cfg.EventLogDir != "" {
        w := eventlog.NewJSONLZstdWriter(cfg.EventLogDir)
        defer func() { _ = w.Close() }()
        sink = w
    }
    rec := ledger.NewRecorder(0)
    worker := ledger.NewWorker(rec, st, sink, cfg.LedgerFlush, log)
    worker.Start()

    srv := api.NewServer(cfg, net, st, broker, log)
    simulation := sim.New(net,
        sim.WithRenderer(srv), sim.WithDisplay(srv), sim.WithCharts(srv),
        sim.WithObserver(srv), sim.WithObserver(rec),
        sim.WithLogger(log), sim.WithSeed(cfg.Seed))
    srv.Sim = simulation
    simulation.Init()
    if cfg.Autoplay { simulation.Play() }

    driver := sim.NewDriver(simulation, cfg.FrameHz)
    driver.Start(ctx)

    httpSrv := &http.Server{
        Addr:              ":" + cfg.Port,
        Handler:           srv.Routes(),
        ReadHeaderTimeout: 5 * time.Second,
    }
    errc := make(chan error, 1)
    go func() {
        log.WithFields(logrus.Fields{"addr": httpSrv.Addr, "seed": cfg.Seed, "frameHz": cfg.FrameHz}).Info("API listening")
        if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) { errc <- err }
        close(errc)
    }()

    select {
    case <-ctx.Done():
        log.Info("shutting down")
    case err := <-errc:
        if err != nil { log.WithError(err).Error("server error") }
    }

    shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancelShutdown()
    if err := httpSrv.Shutdown(shutdownCtx); err != nil { log.WithError(err).Warn("http shutdown") }
    driver.Stop()
    simulation.Stop()
    worker.Shutdown()
    return nil
}

func loadNetwork(path string) (*config.Network, error) {
    if path == "" { return config.DefaultNetwork() }
    return config.LoadNetwork(path)
}
