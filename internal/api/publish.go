package api

import (
    "time"

    "chainsim/internal/model"
    "chainsim/internal/sim"
)

// Event types published on the broker.
const (
    EventMarkerCreated      = "marker.created"
    EventMarkerMoved        = "marker.moved"
    EventDisplayFrame       = "display.frame"
    EventChartUpdated       = "chart.updated"
    EventShipmentDispatched = "shipment.dispatched"
    EventShipmentArrived    = "shipment.arrived"
    EventSimState           = "sim.state"
    EventSimError           = "sim.error"
    EventRunStarted         = "run.started"
    EventRunFinished        = "run.finished"
)

type markerEvent struct {
    RouteID  string            `json:"routeId"`
    Vehicle  model.VehicleType `json:"vehicle,omitempty"`
    Position model.Coord       `json:"position"`
}

type runEvent struct {
    RunID string    `json:"runId"`
    At    time.Time `json:"at"`
}

func (s *Server) publish(typ string, data any, routeID string) {
    evt := SSEEvent{Type: typ, Data: data}
    s.Broker.Publish(TopicSim, evt)
    if routeID != "" { s.Broker.Publish(RouteTopic(routeID), evt) }
}

// CreateMarker implements sim.Renderer.
func (s *Server) CreateMarker(routeID string, vehicle model.VehicleType, at model.Coord) error {
    s.publish(EventMarkerCreated, markerEvent{RouteID: routeID, Vehicle: vehicle, Position: at}, routeID)
    return nil
}

// MoveMarker implements sim.Renderer.
func (s *Server) MoveMarker(routeID string, at model.Coord) error {
    s.publish(EventMarkerMoved, markerEvent{RouteID: routeID, Position: at}, routeID)
    return nil
}

// ShowFrame implements sim.Display. Frames are published every DisplayEvery
// calls, and always right after a status change.
func (s *Server) ShowFrame(f sim.Frame) {
    n := s.frames.Add(1)
    if !s.forceFrame.Swap(false) && n%uint64(s.Config.DisplayEvery) != 0 { return }
    s.publish(EventDisplayFrame, f, "")
}

// ShowStatus implements sim.Display.
func (s *Server) ShowStatus(st sim.Status) {
    s.forceFrame.Store(true)
    s.publish(EventSimState, st, "")
    if st.Error != "" {
        s.publish(EventSimError, st, "")
        s.Log.WithField("run", st.RunID).WithField("error", st.Error).Warn("simulation paused after step failure")
    }
}

// UpdateCharts implements sim.Charts.
func (s *Server) UpdateCharts(c sim.ChartUpdate) {
    s.publish(EventChartUpdated, c, "")
}

// The sim.Observer methods forward domain events to stream clients.

func (s *Server) RunStarted(runID string, at time.Time) {
    s.publish(EventRunStarted, runEvent{RunID: runID, At: at}, "")
}

func (s *Server) RunFinished(runID string, at time.Time) {
    s.publish(EventRunFinished, runEvent{RunID: runID, At: at}, "")
}

func (s *Server) ShipmentDispatched(sh model.Shipment) {
    s.publish(EventShipmentDispatched, sh, sh.RouteID)
}

func (s *Server) ShipmentArrived(sh model.Shipment) {
    s.publish(EventShipmentArrived, sh, sh.RouteID)
}

func (s *Server) Snapshot(string, float64, []model.ScenarioPoint) {}

var (
    _ sim.Renderer = (*Server)(nil)
    _ sim.Display  = (*Server)(nil)
    _ sim.Charts   = (*Server)(nil)
    _ sim.Observer = (*Server)(nil)
)
