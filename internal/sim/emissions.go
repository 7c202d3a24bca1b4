package sim

import (
    "math"

    "chainsim/internal/model"
)

// SnapshotEvery is the snapshot period in whole simulated seconds.
const SnapshotEvery = 60

// Emissions accumulates kg CO2 per scenario and vehicle type, and keeps a
// per-scenario series of cumulative totals tagged by simulated day.
type Emissions struct {
    totals map[model.Scenario]map[model.VehicleType]float64
    series map[model.Scenario][]model.ComparisonPoint
}

func NewEmissions() *Emissions {
    e := &Emissions{}
    e.Reset()
    return e
}

// Reset zeroes every accumulator and clears every series.
func (e *Emissions) Reset() {
    e.totals = map[model.Scenario]map[model.VehicleType]float64{}
    e.series = map[model.Scenario][]model.ComparisonPoint{}
    for _, sc := range model.Scenarios {
        byV := map[model.VehicleType]float64{}
        for _, v := range model.VehicleTypes { byV[v] = 0 }
        e.totals[sc] = byV
        e.series[sc] = []model.ComparisonPoint{}
    }
}

func (e *Emissions) Add(sc model.Scenario, v model.VehicleType, kg float64) {
    byV := e.totals[sc]
    if byV == nil {
        byV = map[model.VehicleType]float64{}
        e.totals[sc] = byV
    }
    byV[v] += kg
}

// Total sums a scenario across vehicle types.
func (e *Emissions) Total(sc model.Scenario) float64 {
    sum := 0.0
    for _, v := range e.totals[sc] { sum += v }
    return sum
}

// MaybeSnapshot appends each scenario's total when floor(simTime) is a
// multiple of SnapshotEvery. A scenario whose last point already carries the
// current day label is skipped.
func (e *Emissions) MaybeSnapshot(simTime float64) []model.ScenarioPoint {
    if int64(math.Floor(simTime))%SnapshotEvery != 0 { return nil }
    day := int(math.Round(simTime / 86400))
    var out []model.ScenarioPoint
    for _, sc := range model.Scenarios {
        s := e.series[sc]
        if n := len(s); n > 0 && s[n-1].Day == day { continue }
        pt := model.ComparisonPoint{Day: day, Total: e.Total(sc)}
        e.series[sc] = append(s, pt)
        out = append(out, model.ScenarioPoint{Scenario: sc, ComparisonPoint: pt})
    }
    return out
}

// Breakdown copies one scenario's per-vehicle totals.
func (e *Emissions) Breakdown(sc model.Scenario) map[model.VehicleType]float64 {
    out := make(map[model.VehicleType]float64, len(e.totals[sc]))
    for k, v := range e.totals[sc] { out[k] = v }
    return out
}

// Totals copies every accumulator.
func (e *Emissions) Totals() map[model.Scenario]map[model.VehicleType]float64 {
    out := make(map[model.Scenario]map[model.VehicleType]float64, len(e.totals))
    for sc := range e.totals { out[sc] = e.Breakdown(sc) }
    return out
}

// Series copies every comparison series.
func (e *Emissions) Series() map[model.Scenario][]model.ComparisonPoint {
    out := make(map[model.Scenario][]model.ComparisonPoint, len(e.series))
    for sc, s := range e.series {
        cp := make([]model.ComparisonPoint, len(s))
        copy(cp, s)
        out[sc] = cp
    }
    return out
}

func (e *Emissions) chartUpdate(active model.Scenario) ChartUpdate {
    totals := make(map[model.Scenario]float64, len(model.Scenarios))
    for _, sc := range model.Scenarios { totals[sc] = e.Total(sc) }
    return ChartUpdate{Active: active, ByVehicle: e.Breakdown(active), Totals: totals, Comparison: e.Series()}
}
