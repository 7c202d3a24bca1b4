package eventlog

import (
    "path/filepath"
    "testing"
    "time"

    "chainsim/internal/model"
)

func TestWriteReadRoundTrip(t *testing.T) {
    dir := t.TempDir()
    w := NewJSONLZstdWriter(dir)
    at := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
    w.now = func() time.Time { return at }

    sh := model.Shipment{ID: "s1", RunID: "r1", RouteID: "ab", Vehicle: model.VehicleRail, Scenario: model.ScenarioGreenRail, Size: 480, EmissionsKg: 12.5}
    if err := w.Write(Record{Type: TypeRunStarted, At: at, RunID: "r1"}); err != nil { t.Fatalf("write: %v", err) }
    if err := w.Write(
        Record{Type: TypeShipmentDispatched, At: at, RunID: "r1", Shipment: &sh},
        Record{Type: TypeShipmentArrived, At: at, RunID: "r1", Shipment: &sh},
        Record{Type: TypeSnapshot, At: at, RunID: "r1", SimSeconds: 86400, Points: []model.ScenarioPoint{{Scenario: model.ScenarioGreenRail, ComparisonPoint: model.ComparisonPoint{Day: 1, Total: 12.5}}}},
    ); err != nil { t.Fatalf("write batch: %v", err) }
    if err := w.Close(); err != nil { t.Fatalf("close: %v", err) }

    // a second session appends a new zstd frame to the same hour file
    w2 := NewJSONLZstdWriter(dir)
    w2.now = w.now
    if err := w2.Write(Record{Type: TypeRunFinished, At: at, RunID: "r1"}); err != nil { t.Fatalf("write2: %v", err) }
    _ = w2.Close()

    files, err := Files(dir)
    if err != nil || len(files) != 1 { t.Fatalf("files: %v %v", files, err) }
    if filepath.Base(files[0]) != "events-2024-03-01-10.jsonl.zst" { t.Fatalf("unexpected name %s", files[0]) }
    recs, err := ReadFile(files[0])
    if err != nil { t.Fatalf("read: %v", err) }
    if len(recs) != 5 { t.Fatalf("want 5 records, got %d", len(recs)) }
    if recs[1].Shipment == nil || recs[1].Shipment.ID != "s1" { t.Fatalf("shipment not decoded: %+v", recs[1]) }

    sum := Summarize(recs)
    if sum.Runs != 1 || sum.Dispatched != 1 || sum.Arrived != 1 || sum.Units != 480 { t.Fatalf("summary: %+v", sum) }
    if got := sum.EmissionsKg[model.ScenarioGreenRail][model.VehicleRail]; got != 12.5 { t.Fatalf("emissions: %v", got) }
    if p := sum.LastPoints[model.ScenarioGreenRail]; p.Day != 1 { t.Fatalf("last point: %+v", p) }
}

func TestHourlyRotation(t *testing.T) {
    dir := t.TempDir()
    w := NewJSONLZstdWriter(dir)
    at := time.Date(2024, 3, 1, 10, 59, 0, 0, time.UTC)
    w.now = func() time.Time { return at }
    _ = w.Write(Record{Type: TypeRunStarted, RunID: "a"})
    at = at.Add(2 * time.Minute)
    _ = w.Write(Record{Type: TypeRunStarted, RunID: "b"})
    _ = w.Close()
    files, _ := Files(dir)
    if len(files) != 2 { t.Fatalf("want 2 files, got %v", files) }
}
