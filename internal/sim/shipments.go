package sim

import (
    "fmt"
    "math"

    "github.com/google/uuid"

    "chainsim/internal/geo"
    "chainsim/internal/metrics"
    "chainsim/internal/model"
)

const (
    kindArrival = "shipment.arrival"
    // ShipThreshold is the share of route capacity the source stock must exceed.
    ShipThreshold = 0.8
)

// processShipments dispatches one shipment per route whose source holds more
// than ShipThreshold of the route capacity. Emissions go to the active scenario.
func (s *Simulation) processShipments() (bool, error) {
    shipped := false
    for _, r := range s.routes {
        src, dst := s.states[r.From], s.states[r.To]
        if src == nil || dst == nil { return shipped, fmt.Errorf("route %s: %w", r.ID, ErrUnknownNode) }
        if src.Stock <= ShipThreshold*r.Capacity { continue }

        size := math.Min(r.Capacity, src.Stock)
        dist := geo.Haversine(s.nodes[r.From].Coords, s.nodes[r.To].Coords)
        kg := size * dist * r.EmissionFactor
        s.emissions.Add(s.scenario, r.Vehicle, kg)

        src.Stock -= size
        src.OutboundRate += size

        sh := model.Shipment{
            ID: uuid.NewString(), RunID: s.runID, RouteID: r.ID, From: r.From, To: r.To,
            Vehicle: r.Vehicle, Scenario: s.scenario, Size: size, DistanceKm: dist, EmissionsKg: kg,
            DispatchedAt: s.simTime, ArrivesAt: s.simTime + dist/r.SpeedKmh*3600,
        }
        s.effects.Schedule(sh.ArrivesAt, kindArrival, func(float64) { s.arrive(sh) })
        shipped = true

        metrics.Shipments.WithLabelValues(r.ID, string(r.Vehicle)).Inc()
        metrics.EmissionsKg.WithLabelValues(string(s.scenario), string(r.Vehicle)).Add(kg)
        s.observer.ShipmentDispatched(sh)
    }
    return shipped, nil
}

func (s *Simulation) arrive(sh model.Shipment) {
    dst := s.states[sh.To]
    if dst == nil { return }
    dst.Stock = math.Min(dst.Capacity, dst.Stock+sh.Size)
    dst.InboundRate += sh.Size
    sh.Arrived = true
    s.observer.ShipmentArrived(sh)
}
