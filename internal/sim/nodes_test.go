package sim

import (
    "testing"
    "time"

    "chainsim/internal/config"
    "chainsim/internal/model"
)

func TestSeasonalityMultiplier(t *testing.T) {
    cases := map[time.Month]float64{
        time.August: 1.8, time.September: 1.8, time.January: 1.3,
        time.June: 0.8, time.July: 0.8, time.March: 1.0, time.December: 1.0,
    }
    for m, want := range cases {
        if got := SeasonalityMultiplier(m); got != want { t.Fatalf("%s: got %v want %v", m, got, want) }
    }
}

func TestUpdateNodesClampsAndRates(t *testing.T) {
    nodes := []model.Node{
        {ID: "F", Type: model.NodeManufacturing, Capacity: 100},
        {ID: "R", Type: model.NodeRetail, Capacity: 100},
        {ID: "D", Type: model.NodeDistribution, Capacity: 100},
    }
    states := map[string]*model.NodeState{
        "F": {Stock: 100, Capacity: 100, InboundRate: 7, OutboundRate: 3},
        "R": {Stock: 0.001, Capacity: 100},
        "D": {Stock: 40, Capacity: 100, InboundRate: 1},
    }
    aug := time.Date(2024, 8, 10, 0, 0, 0, 0, time.UTC)
    updateNodes(nodes, states, aug, 3600, model.ScenarioBaseline, config.ScenarioConfig{})
    if states["F"].Stock != 100 { t.Fatalf("factory at capacity should stay clamped: %v", states["F"].Stock) }
    if states["F"].ProductionRate != 90 { t.Fatalf("production rate: %v", states["F"].ProductionRate) }
    if states["F"].InboundRate != 0 || states["F"].OutboundRate != 0 || states["D"].InboundRate != 0 { t.Fatalf("flows should reset") }
    if states["R"].Stock != 0 || states["R"].SalesRate != 36 { t.Fatalf("retail: %+v", states["R"]) }
    if states["D"].Stock != 40 { t.Fatalf("distribution stock should not move: %v", states["D"].Stock) }
}

func TestUpdateNodesRateTimesDt(t *testing.T) {
    nodes := []model.Node{{ID: "F", Type: model.NodeManufacturing, Capacity: 1000}}
    states := map[string]*model.NodeState{"F": {Stock: 0, Capacity: 1000}}
    mar := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
    updateNodes(nodes, states, mar, 1800, model.ScenarioBaseline, config.ScenarioConfig{})
    if states["F"].Stock != 25 { t.Fatalf("half an hour at 50/h should add 25, got %v", states["F"].Stock) }
}

func TestUpdateNodesLocalSourceOverride(t *testing.T) {
    nodes := []model.Node{
        {ID: "N1_SWE", Type: model.NodeRawMaterials, Capacity: 10},
        {ID: "N5_FAC", Type: model.NodeManufacturing, Capacity: 10},
    }
    states := map[string]*model.NodeState{
        "N1_SWE": {Stock: 5, Capacity: 10, ProductionRate: 42},
        "N5_FAC": {Stock: 5, Capacity: 10},
    }
    hooks := config.ScenarioConfig{DisableNode: "N1_SWE", BoostNode: "N5_FAC", BoostFactor: 1.5}
    jan := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
    updateNodes(nodes, states, jan, 1, model.ScenarioLocalSource, hooks)
    if states["N1_SWE"].ProductionRate != 0 { t.Fatalf("N1_SWE production should be 0") }
    if got := states["N5_FAC"].ProductionRate; got != 50*1.3*1.5 { t.Fatalf("N5_FAC production: %v", got) }
    updateNodes(nodes, states, jan, 1, model.ScenarioGreenRail, hooks)
    if got := states["N5_FAC"].ProductionRate; got != 50*1.3 { t.Fatalf("green rail should not boost: %v", got) }
}
