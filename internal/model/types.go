package model

import (
    "encoding/json"
    "fmt"
    "time"
)

// Core domain types shared by the simulation, the API and the ledger.

type NodeType string

const (
    NodeRawMaterials  NodeType = "raw_materials"
    NodeManufacturing NodeType = "manufacturing"
    NodeDistribution  NodeType = "distribution"
    NodeRetail        NodeType = "retail"
)

type VehicleType string

const (
    VehicleTruck      VehicleType = "truck"
    VehicleRail       VehicleType = "rail"
    VehicleAir        VehicleType = "air"
    VehicleMultimodal VehicleType = "multimodal"
)

// VehicleTypes lists every vehicle type in a stable order (chart axis order).
var VehicleTypes = []VehicleType{VehicleTruck, VehicleRail, VehicleAir, VehicleMultimodal}

func (v VehicleType) Valid() bool {
    switch v {
    case VehicleTruck, VehicleRail, VehicleAir, VehicleMultimodal:
        return true
    }
    return false
}

type Scenario string

const (
    ScenarioBaseline    Scenario = "baseline"
    ScenarioGreenRail   Scenario = "green_rail"
    ScenarioLocalSource Scenario = "local_source"
)

// Scenarios lists the three comparison scenarios in display order.
var Scenarios = []Scenario{ScenarioBaseline, ScenarioGreenRail, ScenarioLocalSource}

// ParseScenario accepts one of the three scenario tags.
func ParseScenario(s string) (Scenario, error) {
    switch Scenario(s) {
    case ScenarioBaseline, ScenarioGreenRail, ScenarioLocalSource:
        return Scenario(s), nil
    }
    return "", fmt.Errorf("unknown scenario %q", s)
}

type Coord struct {
    Lat float64 `json:"lat" yaml:"lat"`
    Lng float64 `json:"lng" yaml:"lng"`
}

type Node struct {
    ID           string   `json:"id"`
    Name         string   `json:"name"`
    Type         NodeType `json:"type"`
    Product      string   `json:"product,omitempty"`
    Capacity     float64  `json:"capacity"`
    InitialStock float64  `json:"initialStock"`
    Coords       Coord    `json:"coords"`
}

// NodeState is the mutable per-node inventory record. Rates are units/hour,
// except inbound/outbound which hold the units moved during the current tick.
type NodeState struct {
    Stock          float64 `json:"stock"`
    Capacity       float64 `json:"capacity"`
    ProductionRate float64 `json:"productionRate"`
    SalesRate      float64 `json:"salesRate"`
    InboundRate    float64 `json:"inboundRate"`
    OutboundRate   float64 `json:"outboundRate"`
}

type Route struct {
    ID             string      `json:"id"`
    Name           string      `json:"name,omitempty"`
    From           string      `json:"from"`
    To             string      `json:"to"`
    Vehicle        VehicleType `json:"vehicle"`
    Capacity       float64     `json:"capacity"`
    SpeedKmh       float64     `json:"speedKmh"`
    EmissionFactor float64     `json:"emissionFactor"`
    FrequencyDays  float64     `json:"frequencyDays"`
    Waypoints      []Coord     `json:"waypoints"`
}

type MarkerState string

const (
    MarkerIdle    MarkerState = "idle"
    MarkerMoving  MarkerState = "moving"
    MarkerArrived MarkerState = "arrived"
)

// Marker is a read-only view of a route's vehicle animation.
type Marker struct {
    RouteID     string      `json:"routeId"`
    Vehicle     VehicleType `json:"vehicle"`
    State       MarkerState `json:"state"`
    Index       int         `json:"index"`
    StartedAtMs float64     `json:"startedAtMs,omitempty"`
    DurationMs  float64     `json:"durationMs,omitempty"`
    Position    Coord       `json:"position"`
}

type Shipment struct {
    ID           string      `json:"id"`
    RunID        string      `json:"runId"`
    RouteID      string      `json:"routeId"`
    From         string      `json:"from"`
    To           string      `json:"to"`
    Vehicle      VehicleType `json:"vehicle"`
    Scenario     Scenario    `json:"scenario"`
    Size         float64     `json:"size"`
    DistanceKm   float64     `json:"distanceKm"`
    EmissionsKg  float64     `json:"emissionsKg"`
    DispatchedAt float64     `json:"dispatchedAt"`
    ArrivesAt    float64     `json:"arrivesAt"`
    Arrived      bool        `json:"arrived"`
}

type ComparisonPoint struct {
    Day   int     `json:"day"`
    Total float64 `json:"total"`
}

// ScenarioPoint is a comparison point tagged with its scenario, as recorded by the ledger.
type ScenarioPoint struct {
    Scenario Scenario `json:"scenario"`
    ComparisonPoint
}

type Clock struct {
    SimSeconds float64   `json:"simSeconds"`
    Date       time.Time `json:"date"`
}

// Inspection is the per-node detail view.
type Inspection struct {
    Node
    NodeState
    Utilization float64 `json:"utilization"`
}

// MarshalJSON flattens the node and its state; both carry a capacity.
func (i Inspection) MarshalJSON() ([]byte, error) {
    return json.Marshal(struct {
        ID             string   `json:"id"`
        Name           string   `json:"name"`
        Type           NodeType `json:"type"`
        Product        string   `json:"product,omitempty"`
        Coords         Coord    `json:"coords"`
        Stock          float64  `json:"stock"`
        Capacity       float64  `json:"capacity"`
        Utilization    float64  `json:"utilization"`
        ProductionRate float64  `json:"productionRate"`
        SalesRate      float64  `json:"salesRate"`
        InboundRate    float64  `json:"inboundRate"`
        OutboundRate   float64  `json:"outboundRate"`
    }{
        i.Node.ID, i.Node.Name, i.Node.Type, i.Node.Product, i.Node.Coords,
        i.NodeState.Stock, i.NodeState.Capacity, i.Utilization,
        i.ProductionRate, i.SalesRate, i.InboundRate, i.OutboundRate,
    })
}

// Run summarises one simulation run (Init or Reset to the next Reset).
type Run struct {
    ID         string     `json:"id"`
    StartedAt  time.Time  `json:"startedAt"`
    FinishedAt *time.Time `json:"finishedAt,omitempty"`
    Shipments  int        `json:"shipments"`
    Emissions  float64    `json:"emissionsKg"`
}

type RunReport struct {
    Run
    ByRoute    map[string]RouteSummary        `json:"byRoute"`
    Comparison map[Scenario][]ComparisonPoint `json:"comparison"`
}

type RouteSummary struct {
    Shipments   int     `json:"shipments"`
    Units       float64 `json:"units"`
    EmissionsKg float64 `json:"emissionsKg"`
    Arrived     int     `json:"arrived"`
}
