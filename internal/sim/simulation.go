// Package sim holds the supply-chain simulation: node inventory, shipments,
// vehicle animation and emission accounting, advanced one frame at a time.
package sim

import (
    "errors"
    "fmt"
    "math"
    "math/rand"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/sirupsen/logrus"

    "chainsim/internal/config"
    "chainsim/internal/logging"
    "chainsim/internal/metrics"
    "chainsim/internal/model"
)

var (
    ErrUnknownNode     = errors.New("unknown node")
    ErrUnknownRoute    = errors.New("unknown route")
    ErrInvalidGeometry = errors.New("invalid route geometry")
    ErrInvalidSpeed    = errors.New("speed out of range")
    ErrUnknownScenario = errors.New("unknown scenario")
    ErrVehicleBusy     = errors.New("vehicle already moving")
    ErrStepPanic       = errors.New("step panicked")
)

const (
    // FrameRate is the nominal frame rate; one frame advances the clock by speed/FrameRate seconds.
    FrameRate = 60.0
    FrameMs   = 1000.0 / FrameRate
    MinSpeed  = 0.1
    MaxSpeed  = 10.0
)

// Simulation owns the whole mutable model. All methods are safe for
// concurrent use; collaborators are invoked with the lock held.
type Simulation struct {
    mu sync.Mutex

    net      *config.Network
    nodes    map[string]model.Node
    routes   []model.Route
    states   map[string]*model.NodeState
    start    time.Time
    simTime  float64
    speed    float64
    scenario model.Scenario
    playing  bool
    runID    string
    frames   uint64

    effects   *EffectQueue
    animator  *Animator
    emissions *Emissions

    renderer Renderer
    display  Display
    charts   Charts
    observer observers
    rng      *rand.Rand
    log      logrus.FieldLogger

    warnedNoRenderer bool
}

type Option func(*Simulation)

func WithRenderer(r Renderer) Option { return func(s *Simulation) { s.renderer = r } }
func WithDisplay(d Display) Option   { return func(s *Simulation) { s.display = d } }
func WithCharts(c Charts) Option     { return func(s *Simulation) { s.charts = c } }
func WithObserver(o Observer) Option {
    return func(s *Simulation) { if o != nil { s.observer = append(s.observer, o) } }
}
func WithLogger(l logrus.FieldLogger) Option { return func(s *Simulation) { s.log = logging.Component(l, "sim") } }
func WithSeed(seed int64) Option             { return func(s *Simulation) { s.rng = rand.New(rand.NewSource(seed)) } }
func WithStartDate(t time.Time) Option       { return func(s *Simulation) { s.start = t } }

// New builds a simulation over net. Call Init before the first Step.
func New(net *config.Network, opts ...Option) *Simulation {
    s := &Simulation{
        net:       net,
        nodes:     map[string]model.Node{},
        routes:    append([]model.Route(nil), net.Routes...),
        states:    map[string]*model.NodeState{},
        start:     net.StartDate,
        speed:     1,
        scenario:  model.ScenarioBaseline,
        effects:   NewEffectQueue(),
        emissions: NewEmissions(),
        renderer:  nopRenderer{},
        display:   nopDisplay{},
        charts:    nopCharts{},
        log:       logging.Component(nil, "sim"),
    }
    for _, o := range opts { o(s) }
    if s.rng == nil { s.rng = rand.New(rand.NewSource(time.Now().UnixNano())) }
    for _, n := range net.Nodes { s.nodes[n.ID] = n }
    s.resetStatesLocked()
    s.animator = NewAnimator(s.routes, s.renderer, net.Animation.ArrivalPauseMs, s.log.WithField("part", "animator"))
    return s
}

// Init seeds node state, creates vehicle markers, starts the demo vehicle and
// opens the first run.
func (s *Simulation) Init() {
    s.mu.Lock()
    defer s.mu.Unlock()
    created := s.animator.CreateMarkers()
    s.log.WithFields(logrus.Fields{"nodes": len(s.nodes), "routes": len(s.routes), "markers": created}).Info("simulation initialised")
    s.startTestVehicleLocked()
    s.newRunLocked()
    s.publishLocked("init")
}

func (s *Simulation) startTestVehicleLocked() {
    id := s.net.Animation.TestRoute
    if id == "" { return }
    if err := s.animator.Start(id, s.speed); err != nil {
        s.log.WithError(err).WithField("route", id).Warn("test vehicle not started")
    }
}

func (s *Simulation) newRunLocked() {
    now := time.Now().UTC()
    if s.runID != "" { s.observer.RunFinished(s.runID, now) }
    s.runID = uuid.NewString()
    s.observer.RunStarted(s.runID, now)
}

func (s *Simulation) resetStatesLocked() {
    s.states = make(map[string]*model.NodeState, len(s.net.Nodes))
    for _, n := range s.net.Nodes {
        s.states[n.ID] = initialState(n)
        metrics.NodeStock.WithLabelValues(n.ID).Set(n.InitialStock)
    }
}

// Tick runs one frame when playing and is a no-op while paused.
func (s *Simulation) Tick() error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if !s.playing { return nil }
    return s.stepLocked()
}

// Step runs exactly one frame regardless of play state.
func (s *Simulation) Step() error {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.stepLocked()
}

func (s *Simulation) stepLocked() (err error) {
    defer func() {
        if r := recover(); r != nil { err = fmt.Errorf("%w: %v", ErrStepPanic, r) }
        if err != nil { s.failLocked(err) }
    }()
    start := time.Now()

    dt := s.speed / FrameRate
    s.simTime += dt
    s.frames++
    date := s.dateLocked()

    updateNodes(s.net.Nodes, s.states, date, dt, s.scenario, s.net.Scenarios)
    shipped, err := s.processShipments()
    if err != nil { return err }
    s.effects.RunDue(s.simTime)

    if s.renderer == nil {
        if !s.warnedNoRenderer { s.log.Warn("no renderer, animation skipped") }
        s.warnedNoRenderer = true
    } else {
        s.animator.Advance(FrameMs)
        s.animator.MaybeStart(s.simTime, s.speed, s.rng.Float64)
    }

    pts := s.emissions.MaybeSnapshot(s.simTime)
    if len(pts) > 0 { s.observer.Snapshot(s.runID, s.simTime, pts) }
    if shipped || len(pts) > 0 { s.charts.UpdateCharts(s.emissions.chartUpdate(s.scenario)) }
    s.display.ShowFrame(s.frameLocked())

    metrics.SimTicks.Inc()
    metrics.StepDuration.Observe(time.Since(start).Seconds())
    metrics.PendingEffects.Set(float64(s.effects.Len()))
    metrics.VehiclesMoving.Set(float64(s.animator.Moving()))
    for id, st := range s.states { metrics.NodeStock.WithLabelValues(id).Set(st.Stock) }
    return nil
}

// failLocked pauses after a failed step. Partial updates of that step stay.
func (s *Simulation) failLocked(err error) {
    s.log.WithError(err).WithField("simTime", s.simTime).Error("step failed, pausing")
    metrics.StepFailures.Inc()
    s.playing = false
    st := s.statusLocked("error")
    st.Error = err.Error()
    s.display.ShowStatus(st)
}

func (s *Simulation) dateLocked() time.Time {
    return s.start.Add(time.Duration(s.simTime * float64(time.Second)))
}

// Play resumes ticking.
func (s *Simulation) Play() {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.playing { return }
    s.playing = true
    s.publishLocked("play")
}

// Pause stops ticking. Pending arrivals and vehicle steps stay queued on the
// simulated clock and resume with it.
func (s *Simulation) Pause() {
    s.mu.Lock()
    defer s.mu.Unlock()
    if !s.playing { return }
    s.playing = false
    s.publishLocked("pause")
}

// Toggle flips play state and reports the new one.
func (s *Simulation) Toggle() bool {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.playing = !s.playing
    if s.playing { s.publishLocked("play") } else { s.publishLocked("pause") }
    return s.playing
}

func (s *Simulation) Playing() bool {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.playing
}

func (s *Simulation) SetSpeed(v float64) error {
    if math.IsNaN(v) || v < MinSpeed || v > MaxSpeed {
        return fmt.Errorf("%w: %v not in [%v, %v]", ErrInvalidSpeed, v, MinSpeed, MaxSpeed)
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    s.speed = v
    s.publishLocked("speed")
    return nil
}

func (s *Simulation) SetScenario(sc model.Scenario) error {
    if _, err := model.ParseScenario(string(sc)); err != nil { return fmt.Errorf("%w: %q", ErrUnknownScenario, sc) }
    s.mu.Lock()
    defer s.mu.Unlock()
    s.scenario = sc
    s.publishLocked("scenario")
    s.charts.UpdateCharts(s.emissions.chartUpdate(s.scenario))
    return nil
}

// Dispatch starts the vehicle animation of one route.
func (s *Simulation) Dispatch(routeID string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.animator.Start(routeID, s.speed)
}

// Reset pauses and returns to the initial state: stock, clock, emissions and
// series are restored, and every pending arrival and vehicle step is dropped.
func (s *Simulation) Reset() {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.playing = false
    dropped := s.effects.Purge()
    steps := s.animator.Reset()
    s.resetStatesLocked()
    s.emissions.Reset()
    s.simTime = 0
    s.frames = 0
    s.log.WithFields(logrus.Fields{"droppedArrivals": dropped, "droppedSteps": steps}).Info("simulation reset")
    s.newRunLocked()
    s.startTestVehicleLocked()
    s.publishLocked("reset")
    s.charts.UpdateCharts(s.emissions.chartUpdate(s.scenario))
}

// Stop pauses and drops every pending effect; used at shutdown.
func (s *Simulation) Stop() {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.playing = false
    dropped := s.effects.Purge() + s.animator.Reset()
    s.publishLocked("stop")
    if s.runID != "" { s.observer.RunFinished(s.runID, time.Now().UTC()) }
    s.runID = ""
    s.log.WithField("dropped", dropped).Info("simulation stopped")
}

func (s *Simulation) publishLocked(reason string) {
    s.display.ShowStatus(s.statusLocked(reason))
    s.display.ShowFrame(s.frameLocked())
}

func (s *Simulation) statusLocked(reason string) Status {
    return Status{RunID: s.runID, Playing: s.playing, Speed: s.speed, Scenario: s.scenario, Reason: reason}
}

func (s *Simulation) frameLocked() Frame {
    date := s.dateLocked()
    stocks := make(map[string]string, len(s.states))
    for id, st := range s.states {
        stocks[id] = fmt.Sprintf("Stock: %d/%d units", int64(math.Round(st.Stock)), int64(st.Capacity))
    }
    return Frame{
        RunID:      s.runID,
        Date:       date.Format("Jan 2, 2006"),
        Elapsed:    FormatElapsed(s.simTime),
        Season:     fmt.Sprintf("%.1fx", SeasonalityMultiplier(date.Month())),
        SimSeconds: s.simTime,
        Stocks:     stocks,
    }
}

// FormatElapsed renders simulated seconds as HH:MM:SS.
func FormatElapsed(sec float64) string {
    h := int64(sec / 3600)
    m := int64(math.Mod(sec, 3600) / 60)
    x := int64(math.Mod(sec, 60))
    return fmt.Sprintf("%02d:%02d:%02d", h, m, x)
}
