package sim

import (
    "time"

    "chainsim/internal/model"
)

// Renderer places and moves vehicle markers. Calls are fire-and-forget.
type Renderer interface {
    CreateMarker(routeID string, vehicle model.VehicleType, at model.Coord) error
    MoveMarker(routeID string, at model.Coord) error
}

// Frame carries the formatted values shown to the user after each step.
type Frame struct {
    RunID      string            `json:"runId"`
    Date       string            `json:"date"`
    Elapsed    string            `json:"elapsed"`
    Season     string            `json:"season"`
    SimSeconds float64           `json:"simSeconds"`
    Stocks     map[string]string `json:"stocks"`
}

// Status is published whenever play state, speed, scenario or run changes.
type Status struct {
    RunID    string         `json:"runId"`
    Playing  bool           `json:"playing"`
    Speed    float64        `json:"speed"`
    Scenario model.Scenario `json:"scenario"`
    Reason   string         `json:"reason"`
    Error    string         `json:"error,omitempty"`
}

type Display interface {
    ShowFrame(Frame)
    ShowStatus(Status)
}

// ChartUpdate is the full chart payload: the active scenario's per-vehicle
// breakdown and every scenario's totals and comparison series.
type ChartUpdate struct {
    Active     model.Scenario                             `json:"active"`
    ByVehicle  map[model.VehicleType]float64              `json:"byVehicle"`
    Totals     map[model.Scenario]float64                 `json:"totals"`
    Comparison map[model.Scenario][]model.ComparisonPoint `json:"comparison"`
}

type Charts interface {
    UpdateCharts(ChartUpdate)
}

// Observer receives domain events for recording. Implementations must not
// block and must not call back into the Simulation.
type Observer interface {
    RunStarted(runID string, at time.Time)
    RunFinished(runID string, at time.Time)
    ShipmentDispatched(model.Shipment)
    ShipmentArrived(model.Shipment)
    Snapshot(runID string, simSeconds float64, pts []model.ScenarioPoint)
}

type nopDisplay struct{}

func (nopDisplay) ShowFrame(Frame)   {}
func (nopDisplay) ShowStatus(Status) {}

type nopCharts struct{}

func (nopCharts) UpdateCharts(ChartUpdate) {}

type nopRenderer struct{}

func (nopRenderer) CreateMarker(string, model.VehicleType, model.Coord) error { return nil }
func (nopRenderer) MoveMarker(string, model.Coord) error                      { return nil }

type observers []Observer

func (o observers) RunStarted(id string, at time.Time) {
    for _, x := range o { x.RunStarted(id, at) }
}
func (o observers) RunFinished(id string, at time.Time) {
    for _, x := range o { x.RunFinished(id, at) }
}
func (o observers) ShipmentDispatched(sh model.Shipment) {
    for _, x := range o { x.ShipmentDispatched(sh) }
}
func (o observers) ShipmentArrived(sh model.Shipment) {
    for _, x := range o { x.ShipmentArrived(sh) }
}
func (o observers) Snapshot(id string, t float64, pts []model.ScenarioPoint) {
    for _, x := range o { x.Snapshot(id, t, pts) }
}
