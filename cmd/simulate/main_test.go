package main

import (
    "bytes"
    "encoding/json"
    "strings"
    "testing"

    "chainsim/internal/eventlog"
    "chainsim/internal/logging"
)

func TestSimulateJSONReport(t *testing.T) {
    var buf bytes.Buffer
    o := options{frames: 6000, speed: 10, scenario: "green_rail", seed: 3, asJSON: true, eventLog: t.TempDir()}
    if err := simulate(&buf, o, logging.Noop()); err != nil { t.Fatalf("simulate: %v", err) }
    var r report
    if err := json.Unmarshal(buf.Bytes(), &r); err != nil { t.Fatalf("decode: %v\n%s", err, buf.String()) }
    if r.Frames != 6000 || r.SimSeconds < 999 || len(r.Stocks) != 10 { t.Fatalf("report: %+v", r) }
    if r.Shipments == 0 || len(r.Emissions["green_rail"]) == 0 { t.Fatalf("no shipments recorded: %+v", r) }

    files, _ := eventlog.Files(o.eventLog)
    if len(files) == 0 { t.Fatalf("no event log written") }
    var out bytes.Buffer
    if err := replay(&out, files[0], false); err != nil { t.Fatalf("replay: %v", err) }
    if !strings.Contains(out.String(), "green_rail") { t.Fatalf("replay output: %s", out.String()) }
}

func TestSimulateRejectsBadScenario(t *testing.T) {
    var buf bytes.Buffer
    if err := simulate(&buf, options{frames: 1, speed: 1, scenario: "teleport"}, logging.Noop()); err == nil {
        t.Fatalf("expected error")
    }
}
