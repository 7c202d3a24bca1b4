package sim

import (
    "math"
    "time"

    "chainsim/internal/config"
    "chainsim/internal/model"
)

// Base rates in units per hour before seasonality.
const (
    BaseProductionRate = 50.0
    BaseSalesRate      = 20.0
)

func initialState(n model.Node) *model.NodeState {
    st := &model.NodeState{Stock: n.InitialStock, Capacity: n.Capacity}
    switch n.Type {
    case model.NodeManufacturing:
        st.ProductionRate = BaseProductionRate
    case model.NodeRetail:
        st.SalesRate = BaseSalesRate
    }
    return st
}

// updateNodes advances every node by dt simulated seconds on date, then
// applies the active scenario's overrides to the rates.
func updateNodes(nodes []model.Node, states map[string]*model.NodeState, date time.Time, dt float64, sc model.Scenario, hooks config.ScenarioConfig) {
    m := SeasonalityMultiplier(date.Month())
    hours := dt / 3600
    for _, n := range nodes {
        st := states[n.ID]
        if st == nil { continue }
        st.InboundRate = 0
        st.OutboundRate = 0
        switch n.Type {
        case model.NodeManufacturing:
            st.ProductionRate = BaseProductionRate * m
            st.Stock = math.Min(st.Capacity, st.Stock+st.ProductionRate*hours)
        case model.NodeRetail:
            st.SalesRate = BaseSalesRate * m
            st.Stock = math.Max(0, st.Stock-st.SalesRate*hours)
        }
    }
    switch sc {
    case model.ScenarioLocalSource:
        if st := states[hooks.DisableNode]; st != nil { st.ProductionRate = 0 }
        if st := states[hooks.BoostNode]; st != nil { st.ProductionRate *= hooks.BoostFactor }
    case model.ScenarioGreenRail:
        // hooks.GreenRailHook marks the node whose trucks would move to rail; no rate change.
    }
}
