package sim

import (
    "context"
    "errors"
    "math"
    "sync"
    "testing"
    "time"

    "chainsim/internal/config"
    "chainsim/internal/geo"
    "chainsim/internal/logging"
    "chainsim/internal/model"
)

var (
    coordA = model.Coord{Lat: 0, Lng: 0}
    coordB = model.Coord{Lat: 0, Lng: 0.01}
)

// smallNetwork: one raw source above the shipping threshold feeding one store ~1.1 km away.
func smallNetwork() *config.Network {
    return &config.Network{
        StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
        Nodes: []model.Node{
            {ID: "A", Type: model.NodeRawMaterials, Capacity: 1000, InitialStock: 900, Coords: coordA},
            {ID: "B", Type: model.NodeRetail, Capacity: 1000, InitialStock: 0, Coords: coordB},
        },
        Routes: []model.Route{{
            ID: "ab", From: "A", To: "B", Vehicle: model.VehicleTruck, Capacity: 600, SpeedKmh: 80,
            EmissionFactor: 0.1, FrequencyDays: 1, Waypoints: []model.Coord{coordA, coordB},
        }},
        Animation: config.AnimationConfig{ArrivalPauseMs: 3000},
    }
}

type recObserver struct {
    mu         sync.Mutex
    runs       []string
    finished   []string
    dispatched []model.Shipment
    arrived    []model.Shipment
    snaps      int
}

func (o *recObserver) RunStarted(id string, _ time.Time)  { o.mu.Lock(); o.runs = append(o.runs, id); o.mu.Unlock() }
func (o *recObserver) RunFinished(id string, _ time.Time) { o.mu.Lock(); o.finished = append(o.finished, id); o.mu.Unlock() }
func (o *recObserver) ShipmentDispatched(s model.Shipment) {
    o.mu.Lock(); o.dispatched = append(o.dispatched, s); o.mu.Unlock()
}
func (o *recObserver) ShipmentArrived(s model.Shipment) {
    o.mu.Lock(); o.arrived = append(o.arrived, s); o.mu.Unlock()
}
func (o *recObserver) Snapshot(string, float64, []model.ScenarioPoint) { o.mu.Lock(); o.snaps++; o.mu.Unlock() }

func newSmallSim(t *testing.T, opts ...Option) (*Simulation, *recObserver) {
    t.Helper()
    obs := &recObserver{}
    opts = append([]Option{WithLogger(logging.Noop()), WithSeed(1), WithObserver(obs)}, opts...)
    s := New(smallNetwork(), opts...)
    s.Init()
    return s, obs
}

func TestShipmentTransfersStockAndEmissions(t *testing.T) {
    s, obs := newSmallSim(t)
    if err := s.Step(); err != nil { t.Fatalf("step: %v", err) }
    st := s.State()
    if st.Nodes["A"].Stock != 300 { t.Fatalf("source stock %v, want 300", st.Nodes["A"].Stock) }
    if st.Nodes["A"].OutboundRate != 600 { t.Fatalf("outbound %v", st.Nodes["A"].OutboundRate) }
    want := 600 * geo.Haversine(coordA, coordB) * 0.1
    if got := st.Emissions[model.ScenarioBaseline][model.VehicleTruck]; math.Abs(got-want) > 1e-9 { t.Fatalf("emissions %v want %v", got, want) }
    if st.Emissions[model.ScenarioGreenRail][model.VehicleTruck] != 0 { t.Fatalf("inactive scenario must not accumulate") }
    if st.PendingArrivals != 1 || len(obs.dispatched) != 1 { t.Fatalf("pending=%d dispatched=%d", st.PendingArrivals, len(obs.dispatched)) }
    if err := s.Step(); err != nil { t.Fatalf("step: %v", err) }
    if s.State().Nodes["A"].Stock != 300 { t.Fatalf("stock below threshold must not ship again") }
}

func TestArrivalLandsAfterTravelTime(t *testing.T) {
    s, obs := newSmallSim(t)
    _ = s.SetSpeed(10)
    _ = s.Step()
    travel := geo.Haversine(coordA, coordB) / 80 * 3600
    frames := int(math.Ceil(travel/(10.0/FrameRate))) + 1
    for i := 0; i < frames; i++ { _ = s.Step() }
    st := s.State()
    if st.PendingArrivals != 0 || len(obs.arrived) != 1 { t.Fatalf("pending=%d arrived=%d", st.PendingArrivals, len(obs.arrived)) }
    if b := st.Nodes["B"].Stock; b < 590 || b > 600 { t.Fatalf("destination stock %v", b) }
}

func TestPausedSimulationAppliesNothing(t *testing.T) {
    s, obs := newSmallSim(t)
    _ = s.SetSpeed(10)
    _ = s.Step()
    before := s.State()
    for i := 0; i < 1000; i++ {
        if err := s.Tick(); err != nil { t.Fatalf("tick: %v", err) }
    }
    after := s.State()
    if after.Clock.SimSeconds != before.Clock.SimSeconds || after.PendingArrivals != 1 || len(obs.arrived) != 0 {
        t.Fatalf("paused simulation advanced: %+v", after.Clock)
    }
    s.Play()
    for i := 0; i < 400; i++ { _ = s.Tick() }
    if len(obs.arrived) != 1 { t.Fatalf("arrival should land once playing") }
}

func TestResetRestoresState(t *testing.T) {
    s, obs := newSmallSim(t)
    _ = s.SetSpeed(10)
    _ = s.SetScenario(model.ScenarioGreenRail)
    s.Play()
    for i := 0; i < 3700; i++ { _ = s.Step() }
    firstRun := s.RunID()
    if s.State().Emissions[model.ScenarioGreenRail][model.VehicleTruck] == 0 { t.Fatalf("expected emissions before reset") }
    s.Reset()
    st := s.State()
    if st.Playing || st.Clock.SimSeconds != 0 || st.PendingArrivals != 0 { t.Fatalf("after reset: %+v", st) }
    if st.Nodes["A"].Stock != 900 || st.Nodes["B"].Stock != 0 { t.Fatalf("stock not restored: %+v", st.Nodes) }
    for _, sc := range model.Scenarios {
        for v, kg := range st.Emissions[sc] {
            if kg != 0 { t.Fatalf("%s/%s emissions %v after reset", sc, v, kg) }
        }
        if len(st.Comparison[sc]) != 0 { t.Fatalf("%s series not cleared", sc) }
    }
    if st.RunID == firstRun || len(obs.finished) != 1 || obs.finished[0] != firstRun { t.Fatalf("run rollover: %v %v", st.RunID, obs.finished) }
}

func TestResetDropsInFlightArrival(t *testing.T) {
    s, obs := newSmallSim(t)
    _ = s.SetSpeed(10)
    _ = s.Step()
    if s.State().PendingArrivals != 1 { t.Fatalf("expected a shipment in flight") }
    s.Reset()
    if s.State().PendingArrivals != 0 { t.Fatalf("reset must drop in-flight arrivals") }
    _ = s.Step() // dispatches the post-reset shipment
    for i := 0; i < 400; i++ { _ = s.Step() }
    if len(obs.arrived) != 1 { t.Fatalf("expected only the post-reset shipment to arrive, got %d", len(obs.arrived)) }
    if b := s.State().Nodes["B"].Stock; b > 600 { t.Fatalf("stale arrival landed: B=%v", b) }
}

func TestStopPurgesAndFinishesRun(t *testing.T) {
    s, obs := newSmallSim(t)
    _ = s.Step()
    s.Play()
    s.Stop()
    st := s.State()
    if st.Playing || st.PendingArrivals != 0 || st.RunID != "" { t.Fatalf("after stop: %+v", st) }
    if len(obs.finished) != 1 { t.Fatalf("stop should finish the run") }
}

func TestStockStaysWithinBounds(t *testing.T) {
    net, err := config.DefaultNetwork()
    if err != nil { t.Fatalf("network: %v", err) }
    s := New(net, WithLogger(logging.Noop()), WithSeed(7))
    s.Init()
    _ = s.SetSpeed(10)
    for i := 0; i < 20000; i++ {
        if err := s.Step(); err != nil { t.Fatalf("step %d: %v", i, err) }
        if i%250 != 0 { continue }
        for id, st := range s.State().Nodes {
            if st.Stock < 0 || st.Stock > st.Capacity { t.Fatalf("frame %d node %s stock %v out of [0,%v]", i, id, st.Stock, st.Capacity) }
        }
    }
}

func TestScenarioSwitchDisablesSweden(t *testing.T) {
    net, _ := config.DefaultNetwork()
    s := New(net, WithLogger(logging.Noop()), WithSeed(1))
    s.Init()
    _ = s.Step()
    if err := s.SetScenario(model.ScenarioLocalSource); err != nil { t.Fatalf("scenario: %v", err) }
    _ = s.Step()
    swe, _ := s.Inspect("N1_SWE")
    fac, _ := s.Inspect("N5_FAC")
    if swe.ProductionRate != 0 { t.Fatalf("N1_SWE production %v", swe.ProductionRate) }
    if fac.ProductionRate != 50*1.3*1.5 { t.Fatalf("N5_FAC production %v", fac.ProductionRate) }
}

func TestSnapshotsDuringRun(t *testing.T) {
    s, obs := newSmallSim(t)
    _ = s.Step() // floor(1/60) = 0 -> first snapshot at day 0
    for i := 0; i < 3600; i++ { _ = s.Step() } // reaches 60 s, still day 0
    st := s.State()
    if len(st.Comparison[model.ScenarioBaseline]) != 1 || obs.snaps != 1 { t.Fatalf("series=%v snaps=%d", st.Comparison, obs.snaps) }
}

func TestSetSpeedAndScenarioValidation(t *testing.T) {
    s, _ := newSmallSim(t)
    for _, v := range []float64{0, 0.05, 10.5, math.NaN()} {
        if err := s.SetSpeed(v); !errors.Is(err, ErrInvalidSpeed) { t.Fatalf("speed %v: %v", v, err) }
    }
    if err := s.SetSpeed(0.1); err != nil { t.Fatalf("speed 0.1: %v", err) }
    if err := s.SetScenario("green"); !errors.Is(err, ErrUnknownScenario) { t.Fatalf("scenario: %v", err) }
    if _, err := s.Inspect("Z"); !errors.Is(err, ErrUnknownNode) { t.Fatalf("inspect: %v", err) }
}

func TestToggleAndClock(t *testing.T) {
    s, _ := newSmallSim(t)
    if !s.Toggle() || !s.Playing() { t.Fatalf("toggle should start playing") }
    _ = s.SetSpeed(7.5)
    for i := 0; i < 60; i++ { _ = s.Tick() }
    st := s.State()
    if st.Clock.SimSeconds != 7.5 { t.Fatalf("60 frames at 7.5x should be 7.5 s, got %v", st.Clock.SimSeconds) }
    if st.Clock.Date.Second() != 7 || st.Elapsed != "00:00:07" { t.Fatalf("date %v elapsed %s", st.Clock.Date, st.Elapsed) }
    if s.Toggle() { t.Fatalf("second toggle should pause") }
}

type panicDisplay struct{ nopDisplay; statuses []Status }

func (p *panicDisplay) ShowFrame(f Frame) {
    if f.SimSeconds > 0 { panic("display gone") }
}
func (p *panicDisplay) ShowStatus(st Status) { p.statuses = append(p.statuses, st) }

func TestStepFailurePauses(t *testing.T) {
    d := &panicDisplay{}
    s, _ := newSmallSim(t, WithDisplay(d))
    s.Play()
    err := s.Tick()
    if !errors.Is(err, ErrStepPanic) { t.Fatalf("expected panic error, got %v", err) }
    if s.Playing() { t.Fatalf("failure must pause") }
    last := d.statuses[len(d.statuses)-1]
    if last.Reason != "error" || last.Error == "" { t.Fatalf("status: %+v", last) }
}

func TestNilRendererSkipsAnimation(t *testing.T) {
    s, _ := newSmallSim(t, WithRenderer(nil))
    if err := s.Step(); err != nil { t.Fatalf("step without renderer: %v", err) }
    if err := s.Dispatch("ab"); !errors.Is(err, ErrInvalidGeometry) { t.Fatalf("dispatch: %v", err) }
}

func TestFormatElapsed(t *testing.T) {
    if got := FormatElapsed(3725.9); got != "01:02:05" { t.Fatalf("got %s", got) }
    if got := FormatElapsed(0); got != "00:00:00" { t.Fatalf("got %s", got) }
}

func TestDriverTicksWhilePlaying(t *testing.T) {
    s, _ := newSmallSim(t)
    d := NewDriver(s, 500)
    d.Start(context.Background())
    s.Play()
    deadline := time.Now().Add(2 * time.Second)
    for s.State().Frames < 3 && time.Now().Before(deadline) { time.Sleep(5 * time.Millisecond) }
    d.Stop()
    d.Stop()
    if s.State().Frames < 3 { t.Fatalf("driver did not tick") }
}
