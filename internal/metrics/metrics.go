package metrics

import (
    "sync"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the service
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, route pattern, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )
    // HTTPRateLimited counts control requests rejected by the limiter
    HTTPRateLimited = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "http_rate_limited_total", Help: "Requests rejected by the rate limiter."},
    )

    SimTicks = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "sim_ticks_total", Help: "Simulation frames stepped."},
    )
    StepDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "sim_step_duration_seconds", Help: "Wall time spent in one simulation step.", Buckets: []float64{.0001, .0005, .001, .005, .01, .05}},
    )
    StepFailures = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "sim_step_failures_total", Help: "Steps that failed and paused the simulation."},
    )
    // Shipments counts dispatched shipments by route and vehicle type
    Shipments = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "sim_shipments_total", Help: "Shipments dispatched."},
        []string{"route", "vehicle"},
    )
    // EmissionsKg accumulates kg CO2 by scenario and vehicle type
    EmissionsKg = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "sim_emissions_kg_total", Help: "CO2 emissions in kg."},
        []string{"scenario", "vehicle"},
    )
    NodeStock = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{Name: "sim_node_stock", Help: "Current stock per node."},
        []string{"node"},
    )
    PendingEffects = prometheus.NewGauge(
        prometheus.GaugeOpts{Name: "sim_pending_effects", Help: "Scheduled arrivals not yet applied."},
    )
    VehiclesMoving = prometheus.NewGauge(
        prometheus.GaugeOpts{Name: "sim_vehicles_moving", Help: "Vehicle markers currently moving."},
    )

    // StreamClients tracks connected SSE and WebSocket clients
    StreamClients = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{Name: "stream_clients", Help: "Connected streaming clients."},
        []string{"transport"},
    )
    LedgerDropped = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "ledger_dropped_total", Help: "Ledger records dropped because the queue was full."},
    )
    LedgerFlushFailures = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "ledger_flush_failures_total", Help: "Ledger flushes that failed and were retried."},
    )
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests, HTTPDuration, HTTPRateLimited)
        Registry.MustRegister(SimTicks, StepDuration, StepFailures, Shipments, EmissionsKg, NodeStock, PendingEffects, VehiclesMoving)
        Registry.MustRegister(StreamClients, LedgerDropped, LedgerFlushFailures)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
