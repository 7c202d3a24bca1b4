package store

import (
    "context"
    "errors"
    "time"

    "chainsim/internal/model"
)

// Store is the run ledger: an append-mostly record of simulation runs, the
// shipments they dispatched and the daily scenario comparison points.
// It is never read back into a running simulation.
type Store interface {
    CreateRun(ctx context.Context, runID string, startedAt time.Time) error
    FinishRun(ctx context.Context, runID string, finishedAt time.Time) error

    InsertShipments(ctx context.Context, items []model.Shipment) error
    MarkArrivals(ctx context.Context, shipmentIDs []string) error
    InsertSnapshots(ctx context.Context, runID string, simSeconds float64, pts []model.ScenarioPoint) error

    ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error)
    GetRun(ctx context.Context, runID string) (model.RunReport, error)

    Ping(ctx context.Context) error
    Close() error
}

var ErrNotFound = errors.New("not found")

const defaultLimit = 100

func clampLimit(limit int) int {
    if limit <= 0 || limit > 1000 { return defaultLimit }
    return limit
}

func newReport(r model.Run) model.RunReport {
    return model.RunReport{
        Run:        r,
        ByRoute:    map[string]model.RouteSummary{},
        Comparison: map[model.Scenario][]model.ComparisonPoint{},
    }
}
