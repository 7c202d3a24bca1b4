package store

import (
    "context"
    "sort"
    "sync"
    "time"

    "chainsim/internal/model"
)

// Memory is the in-process ledger used when no database is configured.
type Memory struct {
    mu        sync.Mutex
    runs      map[string]*model.Run                  // id -> run
    order     []string                               // run ids in creation order
    shipments map[string]*model.Shipment             // id -> shipment
    byRun     map[string][]string                    // run -> shipment ids
    snaps     map[string]map[model.Scenario][]model.ComparisonPoint // run -> scenario -> points
}

func NewMemory() *Memory {
    return &Memory{
        runs: map[string]*model.Run{},
        shipments: map[string]*model.Shipment{},
        byRun: map[string][]string{},
        snaps: map[string]map[model.Scenario][]model.ComparisonPoint{},
    }
}

func (m *Memory) CreateRun(ctx context.Context, runID string, startedAt time.Time) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, ok := m.runs[runID]; ok { return nil }
    m.runs[runID] = &model.Run{ID: runID, StartedAt: startedAt.UTC()}
    m.order = append(m.order, runID)
    return nil
}

func (m *Memory) FinishRun(ctx context.Context, runID string, finishedAt time.Time) error {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[runID]
    if !ok { return ErrNotFound }
    t := finishedAt.UTC()
    r.FinishedAt = &t
    return nil
}

func (m *Memory) InsertShipments(ctx context.Context, items []model.Shipment) error {
    m.mu.Lock(); defer m.mu.Unlock()
    for _, sh := range items {
        if _, dup := m.shipments[sh.ID]; dup { continue }
        cp := sh
        m.shipments[sh.ID] = &cp
        m.byRun[sh.RunID] = append(m.byRun[sh.RunID], sh.ID)
    }
    return nil
}

func (m *Memory) MarkArrivals(ctx context.Context, shipmentIDs []string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    for _, id := range shipmentIDs {
        if sh, ok := m.shipments[id]; ok { sh.Arrived = true }
    }
    return nil
}

func (m *Memory) InsertSnapshots(ctx context.Context, runID string, simSeconds float64, pts []model.ScenarioPoint) error {
    m.mu.Lock(); defer m.mu.Unlock()
    byScn := m.snaps[runID]
    if byScn == nil {
        byScn = map[model.Scenario][]model.ComparisonPoint{}
        m.snaps[runID] = byScn
    }
    for _, p := range pts {
        series := byScn[p.Scenario]
        if n := len(series); n > 0 && series[n-1].Day >= p.Day { continue }
        byScn[p.Scenario] = append(series, p.ComparisonPoint)
    }
    return nil
}

func (m *Memory) ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    start := 0
    if cursor != "" {
        for i := range m.order { if m.order[i] == cursor { start = i+1; break } }
    }
    limit = clampLimit(limit)
    end := start + limit
    if end > len(m.order) { end = len(m.order) }
    items := make([]model.Run, 0, end-start)
    for _, id := range m.order[start:end] { items = append(items, m.summaryLocked(id)) }
    next := ""
    if end < len(m.order) { next = m.order[end-1] }
    return items, next, nil
}

func (m *Memory) GetRun(ctx context.Context, runID string) (model.RunReport, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, ok := m.runs[runID]; !ok { return model.RunReport{}, ErrNotFound }
    rep := newReport(m.summaryLocked(runID))
    for _, id := range m.byRun[runID] {
        sh := m.shipments[id]
        rs := rep.ByRoute[sh.RouteID]
        rs.Shipments++
        rs.Units += sh.Size
        rs.EmissionsKg += sh.EmissionsKg
        if sh.Arrived { rs.Arrived++ }
        rep.ByRoute[sh.RouteID] = rs
    }
    for scn, pts := range m.snaps[runID] {
        cp := append([]model.ComparisonPoint(nil), pts...)
        sort.Slice(cp, func(i, j int) bool { return cp[i].Day < cp[j].Day })
        rep.Comparison[scn] = cp
    }
    return rep, nil
}

func (m *Memory) summaryLocked(runID string) model.Run {
    r := *m.runs[runID]
    for _, id := range m.byRun[runID] {
        r.Shipments++
        r.Emissions += m.shipments[id].EmissionsKg
    }
    return r
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
