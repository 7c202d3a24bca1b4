// Command simulate runs the supply-chain simulation headless for a fixed
// number of frames and prints emissions, the comparison series and final
// stocks. With -replay it summarises a recorded event log instead.
package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "io"
    "os"
    "sort"
    "text/tabwriter"
    "time"

    "github.com/sirupsen/logrus"

    "chainsim/internal/buildinfo"
    "chainsim/internal/config"
    "chainsim/internal/eventlog"
    "chainsim/internal/ledger"
    "chainsim/internal/logging"
    "chainsim/internal/model"
    "chainsim/internal/routing"
    "chainsim/internal/sim"
    "chainsim/internal/store"
)

type options struct {
    network  string
    frames   int
    speed    float64
    scenario string
    seed     int64
    asJSON   bool
    eventLog string
    replay   string
    osrm     string
}

func main() {
    var o options
    version := flag.Bool("version", false, "print version and exit")
    flag.StringVar(&o.network, "network", "", "network yaml (embedded default when empty)")
    flag.IntVar(&o.frames, "frames", 60*60*24, "frames to step (60 per simulated second at speed 1)")
    flag.Float64Var(&o.speed, "speed", 1, "speed multiplier in [0.1, 10]")
    flag.StringVar(&o.scenario, "scenario", string(model.ScenarioBaseline), "baseline | green_rail | local_source")
    flag.Int64Var(&o.seed, "seed", 1, "random seed for vehicle departures")
    flag.BoolVar(&o.asJSON, "json", false, "print the report as JSON")
    flag.StringVar(&o.eventLog, "event-log", "", "directory for a zstd JSONL event log")
    flag.StringVar(&o.replay, "replay", "", "summarise an event log file and exit")
    flag.StringVar(&o.osrm, "osrm", "", "OSRM base URL for road geometry")
    flag.Parse()

    if *version {
        fmt.Println(buildinfo.String())
        return
    }
    log := logging.FromEnv()
    var err error
    if o.replay != "" {
        err = replay(os.Stdout, o.replay, o.asJSON)
    } else {
        err = simulate(os.Stdout, o, log)
    }
    if err != nil {
        log.WithError(err).Fatal("simulate failed")
    }
}

type report struct {
    RunID      string                                           `json:"runId"`
    Frames     int                                              `json:"frames"`
    SimSeconds float64                                          `json:"simSeconds"`
    Date       time.Time                                        `json:"date"`
    Emissions  map[model.Scenario]map[model.VehicleType]float64 `json:"emissions"`
    Comparison map[model.Scenario][]model.ComparisonPoint       `json:"comparison"`
    Stocks     map[string]float64                               `json:"stocks"`
    Shipments  int                                              `json:"shipments"`
    Failed     string                                           `json:"failed,omitempty"`
}

func simulate(out io.Writer, o options, log *logrus.Logger) error {
    net, err := loadNetwork(o.network)
    if err != nil { return err }
    sc, err := model.ParseScenario(o.scenario)
    if err != nil { return err }
    if o.osrm != "" {
        routing.NewResolver(o.osrm, 1, log).ResolveAll(context.Background(), net.Routes, net.Nodes)
    }

    st := store.NewMemory()
    var sink ledger.Sink
    if o.eventLog != "" {
        w := eventlog.NewJSONLZstdWriter(o.eventLog)
        defer func() { _ = w.Close() }()
        sink = w
    }
    rec := ledger.NewRecorder(1 << 16)
    worker := ledger.NewWorker(rec, st, sink, 100*time.Millisecond, log)
    worker.Start()

    s := sim.New(net, sim.WithObserver(rec), sim.WithLogger(log), sim.WithSeed(o.seed))
    s.Init()
    if err := s.SetSpeed(o.speed); err != nil { return err }
    if err := s.SetScenario(sc); err != nil { return err }

    r := report{}
    for i := 0; i < o.frames; i++ {
        if err := s.Step(); err != nil {
            r.Failed = fmt.Sprintf("frame %d: %v", i+1, err)
            break
        }
        r.Frames++
    }
    state := s.State()
    s.Stop()
    worker.Shutdown()

    r.RunID, r.SimSeconds, r.Date = state.RunID, state.Clock.SimSeconds, state.Clock.Date
    r.Emissions, r.Comparison = state.Emissions, state.Comparison
    r.Stocks = make(map[string]float64, len(state.Nodes))
    for id, ns := range state.Nodes { r.Stocks[id] = ns.Stock }
    if rep, err := st.GetRun(context.Background(), state.RunID); err == nil { r.Shipments = rep.Shipments }

    if o.asJSON { return writeJSON(out, r) }
    printReport(out, r, s.Nodes())
    return nil
}

func printReport(out io.Writer, r report, nodes []model.Node) {
    fmt.Fprintf(out, "run %s: %d frames, %s simulated (%s), %d shipments\n",
        r.RunID, r.Frames, sim.FormatElapsed(r.SimSeconds), r.Date.Format("Jan 2, 2006"), r.Shipments)
    if r.Failed != "" { fmt.Fprintf(out, "stopped early: %s\n", r.Failed) }

    tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
    fmt.Fprintln(tw, "\nSCENARIO\tVEHICLE\tKG CO2")
    for _, sc := range model.Scenarios {
        for _, v := range model.VehicleTypes {
            if kg := r.Emissions[sc][v]; kg > 0 { fmt.Fprintf(tw, "%s\t%s\t%.1f\n", sc, v, kg) }
        }
    }
    fmt.Fprintln(tw, "\nSCENARIO\tDAY\tTOTAL KG")
    for _, sc := range model.Scenarios {
        for _, p := range r.Comparison[sc] { fmt.Fprintf(tw, "%s\t%d\t%.1f\n", sc, p.Day, p.Total) }
    }
    fmt.Fprintln(tw, "\nNODE\tSTOCK")
    for _, n := range nodes { fmt.Fprintf(tw, "%s\t%.0f/%.0f\n", n.ID, r.Stocks[n.ID], n.Capacity) }
    _ = tw.Flush()
}

func replay(out io.Writer, path string, asJSON bool) error {
    recs, err := eventlog.ReadFile(path)
    if err != nil { return err }
    sum := eventlog.Summarize(recs)
    if asJSON { return writeJSON(out, sum) }
    fmt.Fprintf(out, "%d records, %d runs, %d dispatched, %d arrived, %.0f units\n",
        len(recs), sum.Runs, sum.Dispatched, sum.Arrived, sum.Units)
    scs := make([]string, 0, len(sum.EmissionsKg))
    for sc := range sum.EmissionsKg { scs = append(scs, string(sc)) }
    sort.Strings(scs)
    for _, sc := range scs {
        total := 0.0
        for _, kg := range sum.EmissionsKg[model.Scenario(sc)] { total += kg }
        fmt.Fprintf(out, "  %s: %.1f kg", sc, total)
        if p, ok := sum.LastPoints[model.Scenario(sc)]; ok { fmt.Fprintf(out, " (last snapshot day %d: %.1f kg)", p.Day, p.Total) }
        fmt.Fprintln(out)
    }
    return nil
}

func writeJSON(out io.Writer, v any) error {
    enc := json.NewEncoder(out)
    enc.SetIndent("", "  ")
    return enc.Encode(v)
}

func loadNetwork(path string) (*config.Network, error) {
    if path == "" { return config.DefaultNetwork() }
    return config.LoadNetwork(path)
}
