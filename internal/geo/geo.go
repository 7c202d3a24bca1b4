// Package geo holds the great-circle helpers and the GeoJSON export of the network.
package geo

import (
    "math"

    "github.com/paulmach/orb"
    "github.com/paulmach/orb/geojson"

    "chainsim/internal/model"
)

// EarthRadiusKm is the mean Earth radius used for all distances.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance between a and b in kilometers.
func Haversine(a, b model.Coord) float64 {
    dLat := (b.Lat - a.Lat) * math.Pi / 180
    dLon := (b.Lng - a.Lng) * math.Pi / 180
    h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
    if h > 1 { h = 1 }
    c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
    return EarthRadiusKm * c
}

// PathDistance sums the legs of a polyline.
func PathDistance(pts []model.Coord) float64 {
    total := 0.0
    for i := 0; i < len(pts)-1; i++ {
        total += Haversine(pts[i], pts[i+1])
    }
    return total
}

func Point(c model.Coord) orb.Point { return orb.Point{c.Lng, c.Lat} }

func LineString(pts []model.Coord) orb.LineString {
    ls := make(orb.LineString, 0, len(pts))
    for _, p := range pts {
        ls = append(ls, Point(p))
    }
    return ls
}

// FromLineString converts orb coordinates (lng, lat) back to model coordinates.
func FromLineString(ls orb.LineString) []model.Coord {
    out := make([]model.Coord, 0, len(ls))
    for _, p := range ls {
        out = append(out, model.Coord{Lat: p.Lat(), Lng: p.Lon()})
    }
    return out
}

// NetworkFeatureCollection renders nodes as points and routes as lines.
func NetworkFeatureCollection(nodes []model.Node, routes []model.Route) *geojson.FeatureCollection {
    fc := geojson.NewFeatureCollection()
    for _, n := range nodes {
        f := geojson.NewFeature(Point(n.Coords))
        f.ID = n.ID
        f.Properties["kind"] = "node"
        f.Properties["id"] = n.ID
        f.Properties["name"] = n.Name
        f.Properties["type"] = string(n.Type)
        f.Properties["product"] = n.Product
        f.Properties["capacity"] = n.Capacity
        fc.Append(f)
    }
    for _, r := range routes {
        f := geojson.NewFeature(LineString(r.Waypoints))
        f.ID = r.ID
        f.Properties["kind"] = "route"
        f.Properties["id"] = r.ID
        f.Properties["from"] = r.From
        f.Properties["to"] = r.To
        f.Properties["vehicle"] = string(r.Vehicle)
        f.Properties["emissionFactor"] = r.EmissionFactor
        f.Properties["distanceKm"] = PathDistance(r.Waypoints)
        fc.Append(f)
    }
    return fc
}
