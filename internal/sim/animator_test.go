package sim

import (
    "errors"
    "sync"
    "testing"

    "chainsim/internal/geo"
    "chainsim/internal/logging"
    "chainsim/internal/model"
)

type recRenderer struct {
    mu      sync.Mutex
    created []string
    moves   []model.Coord
}

func (r *recRenderer) CreateMarker(id string, _ model.VehicleType, _ model.Coord) error {
    r.mu.Lock(); defer r.mu.Unlock()
    r.created = append(r.created, id)
    return nil
}

func (r *recRenderer) MoveMarker(_ string, at model.Coord) error {
    r.mu.Lock(); defer r.mu.Unlock()
    r.moves = append(r.moves, at)
    return nil
}

var twoPoint = model.Route{
    ID: "ab", From: "A", To: "B", Vehicle: model.VehicleTruck, SpeedKmh: 80, FrequencyDays: 2,
    Waypoints: []model.Coord{{Lat: 51.51, Lng: 7.46}, {Lat: 48.98, Lng: 2.49}},
}

func newTestAnimator(r Renderer, routes ...model.Route) *Animator {
    a := NewAnimator(routes, r, 3000, logging.Noop())
    a.CreateMarkers()
    return a
}

func TestAnimatorTwoWaypointsArrivesAfterOneStep(t *testing.T) {
    speed := 2.0
    d := geo.Haversine(twoPoint.Waypoints[0], twoPoint.Waypoints[1]) / twoPoint.SpeedKmh * 3600000 / speed
    if got := TravelMs(twoPoint, speed); got != d { t.Fatalf("travel ms %v want %v", got, d) }

    early := newTestAnimator(&recRenderer{}, twoPoint)
    if err := early.Start("ab", speed); err != nil { t.Fatalf("start: %v", err) }
    early.Advance(d * 0.999)
    if m := early.Markers()[0]; m.State != model.MarkerMoving || m.Index != 0 { t.Fatalf("before one step: %+v", m) }

    rr := &recRenderer{}
    a := newTestAnimator(rr, twoPoint)
    if err := a.Start("ab", speed); err != nil { t.Fatalf("start: %v", err) }
    a.Advance(d)
    m := a.Markers()[0]
    if m.State != model.MarkerArrived || m.Index != 1 || m.Position != twoPoint.Waypoints[1] { t.Fatalf("after one step: %+v", m) }
    if len(rr.moves) != 1 { t.Fatalf("expected one reposition, got %d", len(rr.moves)) }

    a.Advance(2999)
    if a.Markers()[0].State != model.MarkerArrived { t.Fatalf("parked too early") }
    a.Advance(1)
    m = a.Markers()[0]
    if m.State != model.MarkerIdle || m.Index != 0 { t.Fatalf("after pause: %+v", m) }
    if rr.moves[len(rr.moves)-1] != twoPoint.Waypoints[0] { t.Fatalf("marker should return to start") }
}

func TestAnimatorMultiWaypointSteps(t *testing.T) {
    rt := twoPoint
    rt.ID = "abc"
    rt.Waypoints = []model.Coord{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 0, Lng: 2}}
    a := newTestAnimator(&recRenderer{}, rt)
    if err := a.Start("abc", 1); err != nil { t.Fatalf("start: %v", err) }
    step := TravelMs(rt, 1) / 2
    a.Advance(step)
    if m := a.Markers()[0]; m.Index != 1 || m.State != model.MarkerMoving { t.Fatalf("after first step: %+v", m) }
    a.Advance(step)
    if m := a.Markers()[0]; m.Index != 2 || m.State != model.MarkerArrived { t.Fatalf("after second step: %+v", m) }
}

func TestAnimatorStartErrors(t *testing.T) {
    bad := model.Route{ID: "bad", Vehicle: model.VehicleTruck, SpeedKmh: 80, Waypoints: []model.Coord{{Lat: 1, Lng: 1}}}
    rr := &recRenderer{}
    a := newTestAnimator(rr, twoPoint, bad)
    if len(rr.created) != 1 || rr.created[0] != "ab" { t.Fatalf("only the valid route gets a marker: %v", rr.created) }
    if err := a.Start("nope", 1); !errors.Is(err, ErrUnknownRoute) { t.Fatalf("unknown route: %v", err) }
    if err := a.Start("bad", 1); !errors.Is(err, ErrInvalidGeometry) { t.Fatalf("bad geometry: %v", err) }
    if err := a.Start("ab", 1); err != nil { t.Fatalf("start: %v", err) }
    if err := a.Start("ab", 1); !errors.Is(err, ErrVehicleBusy) { t.Fatalf("busy: %v", err) }
}

func TestAnimatorNilRendererCreatesNothing(t *testing.T) {
    a := NewAnimator([]model.Route{twoPoint}, nil, 3000, logging.Noop())
    if n := a.CreateMarkers(); n != 0 { t.Fatalf("created %d markers without a renderer", n) }
    if err := a.Start("ab", 1); !errors.Is(err, ErrInvalidGeometry) { t.Fatalf("expected no marker error, got %v", err) }
}

func TestAnimatorMaybeStartProbability(t *testing.T) {
    a := newTestAnimator(&recRenderer{}, twoPoint)
    // p = (1/2) * (3600/3600) * 0.5 = 0.25
    if got := a.MaybeStart(3600, 1, func() float64 { return 0.26 }); len(got) != 0 { t.Fatalf("draw above p should not start") }
    if got := a.MaybeStart(3600, 1, func() float64 { return 0.24 }); len(got) != 1 { t.Fatalf("draw below p should start") }
    if got := a.MaybeStart(3600, 1, func() float64 { return 0 }); len(got) != 0 { t.Fatalf("moving vehicle must not restart") }
}

func TestAnimatorResetCancelsPendingSteps(t *testing.T) {
    rr := &recRenderer{}
    a := newTestAnimator(rr, twoPoint)
    _ = a.Start("ab", 1)
    if n := a.Reset(); n != 1 { t.Fatalf("expected one pending step dropped, got %d", n) }
    moves := len(rr.moves)
    a.Advance(TravelMs(twoPoint, 1) * 2)
    if len(rr.moves) != moves { t.Fatalf("cancelled step still fired") }
    if m := a.Markers()[0]; m.State != model.MarkerIdle || m.Index != 0 { t.Fatalf("after reset: %+v", m) }
}
