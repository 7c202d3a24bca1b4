package sim

import (
    "fmt"

    "github.com/sirupsen/logrus"

    "chainsim/internal/geo"
    "chainsim/internal/model"
)

const (
    kindStep  = "vehicle.step"
    kindPark  = "vehicle.park"
    msPerHour = 3600000.0
)

type vehicle struct {
    route     model.Route
    created   bool
    state     model.MarkerState
    index     int
    startedAt float64
    duration  float64
    step      float64
    pending   string
}

// Animator moves one marker per route along its waypoints on its own
// millisecond clock. Steps and park resets are tracked in an EffectQueue so
// Reset and Stop drop them atomically.
type Animator struct {
    now      float64
    queue    *EffectQueue
    vehicles map[string]*vehicle
    order    []string
    renderer Renderer
    pauseMs  float64
    log      logrus.FieldLogger
}

func NewAnimator(routes []model.Route, r Renderer, pauseMs float64, log logrus.FieldLogger) *Animator {
    a := &Animator{
        queue:    NewEffectQueue(),
        vehicles: map[string]*vehicle{},
        renderer: r,
        pauseMs:  pauseMs,
        log:      log,
    }
    for _, rt := range routes {
        a.vehicles[rt.ID] = &vehicle{route: rt, state: model.MarkerIdle}
        a.order = append(a.order, rt.ID)
    }
    return a
}

// CreateMarkers asks the renderer for one marker per route at its first
// waypoint and returns how many were created.
func (a *Animator) CreateMarkers() int {
    n := 0
    for _, id := range a.order {
        if a.createMarker(a.vehicles[id]) != nil { n++ }
    }
    return n
}

// createMarker returns nil when the route cannot be animated.
func (a *Animator) createMarker(v *vehicle) *vehicle {
    if a.renderer == nil {
        a.log.WithField("route", v.route.ID).Warn("no renderer, marker not created")
        return nil
    }
    if len(v.route.Waypoints) < 2 {
        a.log.WithField("route", v.route.ID).WithField("waypoints", len(v.route.Waypoints)).Error("route geometry unusable, marker not created")
        return nil
    }
    if err := a.renderer.CreateMarker(v.route.ID, v.route.Vehicle, v.route.Waypoints[0]); err != nil {
        a.log.WithError(err).WithField("route", v.route.ID).Error("create marker")
        return nil
    }
    v.created = true
    return v
}

// TravelMs is the real-time length of a full trip along the waypoints.
func TravelMs(rt model.Route, speedMultiplier float64) float64 {
    if rt.SpeedKmh <= 0 || speedMultiplier <= 0 { return 0 }
    return geo.PathDistance(rt.Waypoints) / rt.SpeedKmh * msPerHour / speedMultiplier
}

// Start sends the route's vehicle on its way.
func (a *Animator) Start(routeID string, speedMultiplier float64) error {
    v, ok := a.vehicles[routeID]
    if !ok { return fmt.Errorf("%w: %s", ErrUnknownRoute, routeID) }
    if !v.created || len(v.route.Waypoints) < 2 { return fmt.Errorf("%w: route %s has no marker", ErrInvalidGeometry, routeID) }
    if v.state != model.MarkerIdle { return fmt.Errorf("%w: %s", ErrVehicleBusy, routeID) }
    v.state = model.MarkerMoving
    v.index = 0
    v.startedAt = a.now
    v.duration = TravelMs(v.route, speedMultiplier)
    v.step = v.duration / float64(len(v.route.Waypoints)-1)
    v.pending = a.queue.Schedule(a.now+v.step, kindStep, func(at float64) { a.advance(v, at) })
    return nil
}

func (a *Animator) advance(v *vehicle, at float64) {
    v.index++
    a.move(v)
    if v.index >= len(v.route.Waypoints)-1 {
        v.state = model.MarkerArrived
        v.pending = a.queue.Schedule(at+a.pauseMs, kindPark, func(float64) { a.park(v) })
        return
    }
    v.pending = a.queue.Schedule(at+v.step, kindStep, func(next float64) { a.advance(v, next) })
}

func (a *Animator) park(v *vehicle) {
    v.index = 0
    v.state = model.MarkerIdle
    v.pending = ""
    a.move(v)
}

func (a *Animator) move(v *vehicle) {
    if a.renderer == nil { return }
    if err := a.renderer.MoveMarker(v.route.ID, v.route.Waypoints[v.index]); err != nil {
        a.log.WithError(err).WithField("route", v.route.ID).Warn("move marker")
    }
}

// Advance moves the animation clock forward and runs due steps.
func (a *Animator) Advance(deltaMs float64) int {
    a.now += deltaMs
    return a.queue.RunDue(a.now)
}

// MaybeStart rolls the per-route start chance for every idle vehicle.
// The chance grows with simulated time: (1/frequency) * (simTime/3600) * 0.5.
func (a *Animator) MaybeStart(simTime, speedMultiplier float64, draw func() float64) []string {
    var started []string
    for _, id := range a.order {
        v := a.vehicles[id]
        if !v.created || v.state != model.MarkerIdle || len(v.route.Waypoints) < 2 || v.route.FrequencyDays <= 0 { continue }
        p := (1 / v.route.FrequencyDays) * (simTime / 3600) * 0.5
        if draw() < p {
            if err := a.Start(id, speedMultiplier); err == nil { started = append(started, id) }
        }
    }
    return started
}

// Reset drops pending steps and parks every vehicle at its first waypoint.
func (a *Animator) Reset() int {
    n := a.queue.Purge()
    for _, id := range a.order {
        v := a.vehicles[id]
        wasAway := v.index != 0
        v.state, v.index, v.pending = model.MarkerIdle, 0, ""
        v.startedAt, v.duration, v.step = 0, 0, 0
        if v.created && wasAway { a.move(v) }
    }
    a.now = 0
    return n
}

func (a *Animator) Moving() int {
    n := 0
    for _, v := range a.vehicles {
        if v.state == model.MarkerMoving { n++ }
    }
    return n
}

func (a *Animator) Markers() []model.Marker {
    out := make([]model.Marker, 0, len(a.order))
    for _, id := range a.order {
        v := a.vehicles[id]
        m := model.Marker{RouteID: id, Vehicle: v.route.Vehicle, State: v.state, Index: v.index, StartedAtMs: v.startedAt, DurationMs: v.duration}
        if len(v.route.Waypoints) > v.index { m.Position = v.route.Waypoints[v.index] }
        out = append(out, m)
    }
    return out
}
