package sim

import (
    "fmt"

    "chainsim/internal/model"
)

// State is a consistent copy of the whole simulation.
type State struct {
    RunID           string                                           `json:"runId"`
    Clock           model.Clock                                      `json:"clock"`
    Elapsed         string                                           `json:"elapsed"`
    Frames          uint64                                           `json:"frames"`
    Playing         bool                                             `json:"playing"`
    Speed           float64                                          `json:"speed"`
    Scenario        model.Scenario                                   `json:"scenario"`
    Season          float64                                          `json:"season"`
    Nodes           map[string]model.NodeState                       `json:"nodes"`
    Markers         []model.Marker                                   `json:"markers"`
    Emissions       map[model.Scenario]map[model.VehicleType]float64 `json:"emissions"`
    Comparison      map[model.Scenario][]model.ComparisonPoint       `json:"comparison"`
    PendingArrivals int                                              `json:"pendingArrivals"`
}

func (s *Simulation) State() State {
    s.mu.Lock()
    defer s.mu.Unlock()
    date := s.dateLocked()
    nodes := make(map[string]model.NodeState, len(s.states))
    for id, st := range s.states { nodes[id] = *st }
    return State{
        RunID:           s.runID,
        Clock:           model.Clock{SimSeconds: s.simTime, Date: date},
        Elapsed:         FormatElapsed(s.simTime),
        Frames:          s.frames,
        Playing:         s.playing,
        Speed:           s.speed,
        Scenario:        s.scenario,
        Season:          SeasonalityMultiplier(date.Month()),
        Nodes:           nodes,
        Markers:         s.animator.Markers(),
        Emissions:       s.emissions.Totals(),
        Comparison:      s.emissions.Series(),
        PendingArrivals: s.effects.CountKind(kindArrival),
    }
}

// Inspect returns the inspector view of one node.
func (s *Simulation) Inspect(nodeID string) (model.Inspection, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    n, ok := s.nodes[nodeID]
    st := s.states[nodeID]
    if !ok || st == nil { return model.Inspection{}, fmt.Errorf("%w: %s", ErrUnknownNode, nodeID) }
    util := 0.0
    if st.Capacity > 0 { util = st.Stock / st.Capacity * 100 }
    return model.Inspection{Node: n, NodeState: *st, Utilization: util}, nil
}

// Charts returns the current chart payload.
func (s *Simulation) Charts() ChartUpdate {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.emissions.chartUpdate(s.scenario)
}

// Nodes lists the static node definitions in configuration order.
func (s *Simulation) Nodes() []model.Node {
    return append([]model.Node(nil), s.net.Nodes...)
}

// Routes lists the routes with their resolved waypoints.
func (s *Simulation) Routes() []model.Route {
    return append([]model.Route(nil), s.routes...)
}

func (s *Simulation) RunID() string {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.runID
}
