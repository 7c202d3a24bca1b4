package api

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/go-chi/chi/v5"

    "chainsim/internal/geo"
    "chainsim/internal/model"
    "chainsim/internal/sim"
    "chainsim/internal/store"
)

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    type pinger interface{ Ping(ctx context.Context) error }
    ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
    defer cancel()
    if err := s.Store.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", "store: "+err.Error(), r.URL.Path); return }
    if p, ok := s.Broker.(pinger); ok {
        if err := p.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", "broker: "+err.Error(), r.URL.Path); return }
    }
    if s.Sim == nil { writeProblem(w, 503, "Not Ready", "simulation not attached", r.URL.Path); return }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}

func (s *Server) StateHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, s.Sim.State())
}

type networkView struct {
    StartDate time.Time     `json:"startDate"`
    Nodes     []model.Node  `json:"nodes"`
    Routes    []model.Route `json:"routes"`
}

func (s *Server) NetworkHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, networkView{StartDate: s.Network.StartDate, Nodes: s.Sim.Nodes(), Routes: s.Sim.Routes()})
}

func (s *Server) NetworkGeoJSONHandler(w http.ResponseWriter, r *http.Request) {
    fc := geo.NetworkFeatureCollection(s.Sim.Nodes(), s.Sim.Routes())
    b, err := fc.MarshalJSON()
    if err != nil { writeProblem(w, 500, "Encoding failed", err.Error(), r.URL.Path); return }
    w.Header().Set("Content-Type", "application/geo+json")
    _, _ = w.Write(b)
}

func (s *Server) NodeHandler(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "nodeID")
    insp, err := s.Sim.Inspect(id)
    if err != nil {
        if errors.Is(err, sim.ErrUnknownNode) { writeProblem(w, 404, "Node not found", err.Error(), r.URL.Path); return }
        writeProblem(w, 500, "Inspect failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, 200, insp)
}

func (s *Server) EmissionsHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, s.Sim.Charts())
}

// controlView is returned by every control endpoint.
type controlView struct {
    RunID    string         `json:"runId"`
    Playing  bool           `json:"playing"`
    Speed    float64        `json:"speed"`
    Scenario model.Scenario `json:"scenario"`
    Clock    model.Clock    `json:"clock"`
}

func (s *Server) control() controlView {
    st := s.Sim.State()
    return controlView{RunID: st.RunID, Playing: st.Playing, Speed: st.Speed, Scenario: st.Scenario, Clock: st.Clock}
}

func (s *Server) ToggleHandler(w http.ResponseWriter, r *http.Request) {
    s.Sim.Toggle()
    writeJSON(w, 200, s.control())
}

func (s *Server) PlayHandler(w http.ResponseWriter, r *http.Request) {
    s.Sim.Play()
    writeJSON(w, 200, s.control())
}

func (s *Server) PauseHandler(w http.ResponseWriter, r *http.Request) {
    s.Sim.Pause()
    writeJSON(w, 200, s.control())
}

func (s *Server) ResetHandler(w http.ResponseWriter, r *http.Request) {
    s.Sim.Reset()
    writeJSON(w, 200, s.control())
}

// StepHandler advances N frames regardless of play state.
func (s *Server) StepHandler(w http.ResponseWriter, r *http.Request) {
    n, err := parseFrames(r.URL.Query().Get("frames"))
    if err != nil { writeProblem(w, 400, "Invalid frames", err.Error(), r.URL.Path); return }
    for i := 0; i < n; i++ {
        if err := s.Sim.Step(); err != nil {
            writeProblem(w, 500, "Step failed", "frame "+strconv.Itoa(i+1)+": "+err.Error(), r.URL.Path)
            return
        }
    }
    writeJSON(w, 200, s.control())
}

func (s *Server) SpeedHandler(w http.ResponseWriter, r *http.Request) {
    var req speedRequest
    if err := decodeJSON(r, &req); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
    if err := validateSpeedRequest(&req); err != nil { writeProblem(w, 400, "Invalid request", err.Error(), r.URL.Path); return }
    if err := s.Sim.SetSpeed(*req.Speed); err != nil {
        writeProblem(w, http.StatusUnprocessableEntity, "Speed rejected", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, 200, s.control())
}

func (s *Server) ScenarioHandler(w http.ResponseWriter, r *http.Request) {
    var req scenarioRequest
    if err := decodeJSON(r, &req); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
    if err := validateScenarioRequest(&req); err != nil { writeProblem(w, 400, "Invalid request", err.Error(), r.URL.Path); return }
    if err := s.Sim.SetScenario(model.Scenario(req.Scenario)); err != nil {
        writeProblem(w, http.StatusUnprocessableEntity, "Scenario rejected", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, 200, s.control())
}

func (s *Server) DispatchHandler(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "routeID")
    if err := s.Sim.Dispatch(id); err != nil {
        status, title := dispatchProblem(err)
        writeProblem(w, status, title, err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusAccepted, map[string]string{"routeId": id, "status": "moving"})
}

func dispatchProblem(err error) (int, string) {
    switch {
    case errors.Is(err, sim.ErrUnknownRoute):
        return 404, "Route not found"
    case errors.Is(err, sim.ErrVehicleBusy):
        return 409, "Vehicle already moving"
    case errors.Is(err, sim.ErrInvalidGeometry):
        return 422, "Route has no drawable geometry"
    }
    return 500, "Dispatch failed"
}

func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
    q := r.URL.Query()
    limit := 50
    if v := q.Get("limit"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n < 1 || n > 1000 { writeProblem(w, 400, "Invalid limit", "limit must be in [1, 1000]", r.URL.Path); return }
        limit = n
    }
    items, next, err := s.Store.ListRuns(r.Context(), q.Get("cursor"), limit)
    if err != nil { writeProblem(w, 500, "List failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) RunHandler(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "runID")
    rep, err := s.Store.GetRun(r.Context(), id)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Run not found", id, r.URL.Path); return }
        writeProblem(w, 500, "Get failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, 200, rep)
}
