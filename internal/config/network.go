package config

import (
    "bytes"
    _ "embed"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "sync"
    "time"

    "github.com/santhosh-tekuri/jsonschema/v5"
    "gopkg.in/yaml.v3"

    "chainsim/internal/model"
)

//go:embed defaults/network.yaml
var defaultNetwork []byte

//go:embed defaults/network.schema.json
var networkSchema []byte

var ErrInvalidNetwork = errors.New("invalid network")

// Network is the validated static definition of nodes, routes and scenario hooks.
type Network struct {
    StartDate time.Time
    Nodes     []model.Node
    Routes    []model.Route
    Scenarios ScenarioConfig
    Animation AnimationConfig
}

type ScenarioConfig struct {
    DisableNode   string
    BoostNode     string
    BoostFactor   float64
    GreenRailHook string
}

type AnimationConfig struct {
    TestRoute      string
    ArrivalPauseMs float64
}

// Node returns the node with the given id.
func (n *Network) Node(id string) (model.Node, bool) {
    for _, x := range n.Nodes {
        if x.ID == id { return x, true }
    }
    return model.Node{}, false
}

type networkFile struct {
    StartDate string `yaml:"start_date"`
    Scenarios struct {
        LocalSource struct {
            DisableNode string   `yaml:"disable_node"`
            BoostNode   string   `yaml:"boost_node"`
            BoostFactor *float64 `yaml:"boost_factor"`
        } `yaml:"local_source"`
        GreenRail struct {
            HookNode string `yaml:"hook_node"`
        } `yaml:"green_rail"`
    } `yaml:"scenarios"`
    Animation struct {
        TestRoute      string   `yaml:"test_route"`
        ArrivalPauseMs *float64 `yaml:"arrival_pause_ms"`
    } `yaml:"animation"`
    Nodes []struct {
        ID           string      `yaml:"id"`
        Name         string      `yaml:"name"`
        Type         string      `yaml:"type"`
        Product      string      `yaml:"product"`
        Capacity     float64     `yaml:"capacity"`
        InitialStock float64     `yaml:"initial_stock"`
        Coords       model.Coord `yaml:"coords"`
    } `yaml:"nodes"`
    Routes []struct {
        ID             string        `yaml:"id"`
        Name           string        `yaml:"name"`
        From           string        `yaml:"from"`
        To             string        `yaml:"to"`
        Vehicle        string        `yaml:"vehicle"`
        Capacity       float64       `yaml:"capacity"`
        SpeedKmh       float64       `yaml:"speed_kmh"`
        EmissionFactor float64       `yaml:"emission_factor"`
        FrequencyDays  float64       `yaml:"frequency_days"`
        Waypoints      []model.Coord `yaml:"waypoints"`
    } `yaml:"routes"`
}

// DefaultNetwork returns the embedded ten-node network.
func DefaultNetwork() (*Network, error) { return ParseNetwork(defaultNetwork) }

// LoadNetwork reads a network file, or the embedded default when path is empty.
func LoadNetwork(path string) (*Network, error) {
    if path == "" { return DefaultNetwork() }
    b, err := os.ReadFile(path)
    if err != nil { return nil, fmt.Errorf("read network %s: %w", path, err) }
    return ParseNetwork(b)
}

// ParseNetwork decodes yaml, validates it against the schema and checks references.
func ParseNetwork(data []byte) (*Network, error) {
    var doc any
    if err := yaml.Unmarshal(data, &doc); err != nil { return nil, fmt.Errorf("%w: yaml: %v", ErrInvalidNetwork, err) }
    if err := validateSchema(doc); err != nil { return nil, fmt.Errorf("%w: %v", ErrInvalidNetwork, err) }

    var f networkFile
    if err := yaml.Unmarshal(data, &f); err != nil { return nil, fmt.Errorf("%w: yaml: %v", ErrInvalidNetwork, err) }

    n := &Network{
        StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
        Scenarios: ScenarioConfig{
            DisableNode:   f.Scenarios.LocalSource.DisableNode,
            BoostNode:     f.Scenarios.LocalSource.BoostNode,
            BoostFactor:   1.5,
            GreenRailHook: f.Scenarios.GreenRail.HookNode,
        },
        Animation: AnimationConfig{TestRoute: f.Animation.TestRoute, ArrivalPauseMs: 3000},
    }
    if f.StartDate != "" {
        d, err := time.Parse("2006-01-02", f.StartDate[:min(len(f.StartDate), 10)])
        if err != nil { return nil, fmt.Errorf("%w: start_date: %v", ErrInvalidNetwork, err) }
        n.StartDate = d
    }
    if f.Scenarios.LocalSource.BoostFactor != nil { n.Scenarios.BoostFactor = *f.Scenarios.LocalSource.BoostFactor }
    if f.Animation.ArrivalPauseMs != nil { n.Animation.ArrivalPauseMs = *f.Animation.ArrivalPauseMs }

    ids := map[string]struct{}{}
    for _, x := range f.Nodes {
        if _, dup := ids[x.ID]; dup { return nil, fmt.Errorf("%w: duplicate node %s", ErrInvalidNetwork, x.ID) }
        ids[x.ID] = struct{}{}
        if x.InitialStock > x.Capacity {
            return nil, fmt.Errorf("%w: node %s initial_stock %v exceeds capacity %v", ErrInvalidNetwork, x.ID, x.InitialStock, x.Capacity)
        }
        n.Nodes = append(n.Nodes, model.Node{
            ID: x.ID, Name: x.Name, Type: model.NodeType(x.Type), Product: x.Product,
            Capacity: x.Capacity, InitialStock: x.InitialStock, Coords: x.Coords,
        })
    }
    routeIDs := map[string]struct{}{}
    for _, r := range f.Routes {
        if _, dup := routeIDs[r.ID]; dup { return nil, fmt.Errorf("%w: duplicate route %s", ErrInvalidNetwork, r.ID) }
        routeIDs[r.ID] = struct{}{}
        if _, ok := ids[r.From]; !ok { return nil, fmt.Errorf("%w: route %s: unknown from node %q", ErrInvalidNetwork, r.ID, r.From) }
        if _, ok := ids[r.To]; !ok { return nil, fmt.Errorf("%w: route %s: unknown to node %q", ErrInvalidNetwork, r.ID, r.To) }
        n.Routes = append(n.Routes, model.Route{
            ID: r.ID, Name: r.Name, From: r.From, To: r.To, Vehicle: model.VehicleType(r.Vehicle),
            Capacity: r.Capacity, SpeedKmh: r.SpeedKmh, EmissionFactor: r.EmissionFactor,
            FrequencyDays: r.FrequencyDays, Waypoints: r.Waypoints,
        })
    }
    for _, ref := range []string{n.Scenarios.DisableNode, n.Scenarios.BoostNode, n.Scenarios.GreenRailHook} {
        if ref == "" { continue }
        if _, ok := ids[ref]; !ok { return nil, fmt.Errorf("%w: scenario references unknown node %q", ErrInvalidNetwork, ref) }
    }
    if t := n.Animation.TestRoute; t != "" {
        if _, ok := routeIDs[t]; !ok { return nil, fmt.Errorf("%w: animation test_route %q unknown", ErrInvalidNetwork, t) }
    }
    return n, nil
}

var (
    schemaOnce sync.Once
    schema     *jsonschema.Schema
    schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
    schemaOnce.Do(func() {
        c := jsonschema.NewCompiler()
        if err := c.AddResource("network.schema.json", bytes.NewReader(networkSchema)); err != nil { schemaErr = err; return }
        schema, schemaErr = c.Compile("network.schema.json")
    })
    return schema, schemaErr
}

// validateSchema round-trips the yaml document through JSON so the validator
// sees plain JSON types.
func validateSchema(doc any) error {
    s, err := compiledSchema()
    if err != nil { return fmt.Errorf("schema: %w", err) }
    b, err := json.Marshal(doc)
    if err != nil { return err }
    var v any
    if err := json.Unmarshal(b, &v); err != nil { return err }
    return s.Validate(v)
}
