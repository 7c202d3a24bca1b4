// Package routing resolves the animation geometry of each route.
package routing

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "time"

    "github.com/paulmach/orb"
    "github.com/paulmach/orb/geojson"
    "github.com/sirupsen/logrus"
    "golang.org/x/time/rate"

    "chainsim/internal/geo"
    "chainsim/internal/model"
)

// Resolver fills in route waypoints. Explicit waypoints win; air routes fly
// straight; road routes ask OSRM when configured and fall back to a straight line.
type Resolver struct {
    BaseURL string
    HTTP    *http.Client
    Limiter *rate.Limiter
    Log     logrus.FieldLogger
}

func NewResolver(baseURL string, rps float64, log logrus.FieldLogger) *Resolver {
    if rps <= 0 { rps = 1 }
    return &Resolver{
        BaseURL: baseURL,
        HTTP:    &http.Client{Timeout: 10 * time.Second},
        Limiter: rate.NewLimiter(rate.Limit(rps), 1),
        Log:     log,
    }
}

type osrmResponse struct {
    Code   string `json:"code"`
    Routes []struct {
        Geometry json.RawMessage `json:"geometry"`
        Distance float64         `json:"distance"`
    } `json:"routes"`
}

// Resolve returns the waypoint sequence for route r between from and to.
func (rv *Resolver) Resolve(ctx context.Context, r model.Route, from, to model.Coord) []model.Coord {
    if len(r.Waypoints) >= 2 { return r.Waypoints }
    straight := []model.Coord{from, to}
    if r.Vehicle == model.VehicleAir || rv == nil || rv.BaseURL == "" { return straight }
    pts, err := rv.fetch(ctx, from, to)
    if err != nil {
        if rv.Log != nil { rv.Log.WithError(err).WithField("route", r.ID).Warn("road geometry unavailable, using straight line") }
        return straight
    }
    return pts
}

// ResolveAll resolves every route of a network in place.
func (rv *Resolver) ResolveAll(ctx context.Context, routes []model.Route, nodes []model.Node) {
    byID := make(map[string]model.Node, len(nodes))
    for _, n := range nodes { byID[n.ID] = n }
    for i := range routes {
        from, to := byID[routes[i].From], byID[routes[i].To]
        routes[i].Waypoints = rv.Resolve(ctx, routes[i], from.Coords, to.Coords)
    }
}

func (rv *Resolver) fetch(ctx context.Context, from, to model.Coord) ([]model.Coord, error) {
    if rv.Limiter != nil {
        if err := rv.Limiter.Wait(ctx); err != nil { return nil, err }
    }
    u := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=full&geometries=geojson", rv.BaseURL, from.Lng, from.Lat, to.Lng, to.Lat)
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
    if err != nil { return nil, err }
    client := rv.HTTP
    if client == nil { client = http.DefaultClient }
    resp, err := client.Do(req)
    if err != nil { return nil, err }
    defer func() { _ = resp.Body.Close() }()
    if resp.StatusCode != http.StatusOK { return nil, fmt.Errorf("osrm: status %d", resp.StatusCode) }
    body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
    if err != nil { return nil, err }
    var out osrmResponse
    if err := json.Unmarshal(body, &out); err != nil { return nil, fmt.Errorf("osrm: decode: %w", err) }
    if out.Code != "Ok" || len(out.Routes) == 0 { return nil, fmt.Errorf("osrm: code %q", out.Code) }
    g, err := geojson.UnmarshalGeometry(out.Routes[0].Geometry)
    if err != nil { return nil, fmt.Errorf("osrm: geometry: %w", err) }
    ls, ok := g.Geometry().(orb.LineString)
    if !ok || len(ls) < 2 { return nil, fmt.Errorf("osrm: expected a line string") }
    return geo.FromLineString(ls), nil
}
