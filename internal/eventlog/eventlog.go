// Package eventlog writes and reads the compressed JSONL record of simulation
// domain events (runs, shipments, comparison snapshots).
package eventlog

import (
    "bufio"
    "encoding/json"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "sync"
    "time"

    "github.com/klauspost/compress/zstd"

    "chainsim/internal/model"
)

const (
    TypeRunStarted         = "run.started"
    TypeRunFinished        = "run.finished"
    TypeShipmentDispatched = "shipment.dispatched"
    TypeShipmentArrived    = "shipment.arrived"
    TypeSnapshot           = "snapshot"
)

// Record is one line of the event log.
type Record struct {
    Type       string                `json:"type"`
    At         time.Time             `json:"at"`
    RunID      string                `json:"runId"`
    SimSeconds float64               `json:"simSeconds,omitempty"`
    Shipment   *model.Shipment       `json:"shipment,omitempty"`
    Points     []model.ScenarioPoint `json:"points,omitempty"`
}

const filePrefix = "events"

// JSONLZstdWriter appends records to hourly rotated zstd files under a directory.
type JSONLZstdWriter struct {
    baseDir string
    now     func() time.Time

    mu      sync.Mutex
    curHour string
    f       *os.File
    enc     *zstd.Encoder
    w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir string) *JSONLZstdWriter {
    return &JSONLZstdWriter{baseDir: baseDir, now: time.Now}
}

func (w *JSONLZstdWriter) Close() error {
    w.mu.Lock()
    defer w.mu.Unlock()
    return w.closeLocked()
}

// Write appends a batch and flushes it through the encoder, so a crash loses
// at most the batch in progress.
func (w *JSONLZstdWriter) Write(recs ...Record) error {
    if len(recs) == 0 { return nil }
    w.mu.Lock()
    defer w.mu.Unlock()

    hour := w.now().UTC().Format("2006-01-02-15")
    if hour != w.curHour || w.w == nil {
        if err := w.rotateLocked(hour); err != nil {
            return err
        }
    }
    for _, r := range recs {
        b, err := json.Marshal(r)
        if err != nil {
            return err
        }
        if _, err := w.w.Write(b); err != nil {
            return err
        }
        if err := w.w.WriteByte('\n'); err != nil {
            return err
        }
    }
    if err := w.w.Flush(); err != nil {
        return err
    }
    return w.enc.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
    if err := w.closeLocked(); err != nil {
        return err
    }
    if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
        return err
    }
    f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
    if err != nil {
        return err
    }
    enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
    if err != nil {
        _ = f.Close()
        return err
    }
    w.f = f
    w.enc = enc
    w.w = bufio.NewWriterSize(enc, 64*1024)
    w.curHour = hour
    return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
    var err1 error
    if w.w != nil {
        _ = w.w.Flush()
    }
    if w.enc != nil {
        err1 = w.enc.Close()
        w.enc = nil
    }
    if w.f != nil {
        _ = w.f.Close()
        w.f = nil
    }
    w.w = nil
    w.curHour = ""
    return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
    return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", filePrefix, hour))
}

// Files lists the event log files in dir, oldest first.
func Files(dir string) ([]string, error) {
    out, err := filepath.Glob(filepath.Join(dir, filePrefix+"-*.jsonl.zst"))
    if err != nil {
        return nil, err
    }
    sort.Strings(out)
    return out, nil
}
