package ledger

import (
    "context"
    "errors"
    "sync"
    "time"

    "github.com/sirupsen/logrus"

    "chainsim/internal/eventlog"
    "chainsim/internal/logging"
    "chainsim/internal/metrics"
    "chainsim/internal/model"
    "chainsim/internal/store"
)

// Sink receives every drained record before it is applied to the store.
type Sink interface {
    Write(recs ...eventlog.Record) error
}

type Worker struct {
    Recorder  *Recorder
    Store     store.Store
    Sink      Sink
    Interval  time.Duration
    BatchSize int
    Log       logrus.FieldLogger
    Stop      chan struct{}

    now      func() time.Time
    pending  []eventlog.Record
    attempts int
    retryAt  time.Time
    wg       sync.WaitGroup
}

func NewWorker(rec *Recorder, s store.Store, sink Sink, interval time.Duration, log logrus.FieldLogger) *Worker {
    if interval <= 0 { interval = time.Second }
    return &Worker{
        Recorder:  rec,
        Store:     s,
        Sink:      sink,
        Interval:  interval,
        BatchSize: 500,
        Log:       logging.Component(log, "ledger"),
        Stop:      make(chan struct{}),
        now:       time.Now,
    }
}

func (w *Worker) Start() {
    w.wg.Add(1)
    go func() {
        defer w.wg.Done()
        ticker := time.NewTicker(w.Interval)
        defer ticker.Stop()
        for {
            select {
            case <-w.Stop:
                return
            case <-ticker.C:
                w.processOnce(false)
            }
        }
    }()
}

// Shutdown stops the ticker loop and makes one last attempt to drain the
// queue, ignoring any backoff in effect.
func (w *Worker) Shutdown() {
    close(w.Stop)
    w.wg.Wait()
    w.processOnce(true)
    if w.Recorder.Pending() > 0 || len(w.pending) > 0 {
        w.Log.WithFields(logrus.Fields{"queued": w.Recorder.Pending(), "unapplied": len(w.pending)}).Warn("ledger shut down with unrecorded events")
    }
}

func (w *Worker) processOnce(force bool) {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    for {
        w.drain()
        if len(w.pending) == 0 { return }
        if !force && w.now().Before(w.retryAt) { return }
        n, err := w.apply(ctx, w.pending)
        w.pending = w.pending[n:]
        if err != nil {
            w.attempts++
            w.retryAt = w.now().Add(nextBackoff(w.attempts))
            metrics.LedgerFlushFailures.Inc()
            w.Log.WithError(err).WithFields(logrus.Fields{"attempts": w.attempts, "unapplied": len(w.pending), "retryAt": w.retryAt}).Warn("ledger flush failed")
            return
        }
        w.attempts = 0
        w.retryAt = time.Time{}
        if len(w.pending) == 0 && w.Recorder.Pending() == 0 { return }
    }
}

// drain moves up to BatchSize queued records into pending and writes them to the sink.
func (w *Worker) drain() {
    var fresh []eventlog.Record
loop:
    for len(w.pending)+len(fresh) < w.BatchSize {
        select {
        case rec := <-w.Recorder.queue:
            fresh = append(fresh, rec)
        default:
            break loop
        }
    }
    if len(fresh) == 0 { return }
    if w.Sink != nil {
        if err := w.Sink.Write(fresh...); err != nil {
            w.Log.WithError(err).WithField("records", len(fresh)).Warn("event log write failed")
        }
    }
    w.pending = append(w.pending, fresh...)
}

// apply writes records to the store in order, batching runs of the same type.
// It returns how many records were applied before the first error.
func (w *Worker) apply(ctx context.Context, recs []eventlog.Record) (int, error) {
    i := 0
    for i < len(recs) {
        j := i + 1
        if batchable(recs[i].Type) {
            for j < len(recs) && recs[j].Type == recs[i].Type { j++ }
        }
        if err := w.applyGroup(ctx, recs[i:j]); err != nil { return i, err }
        i = j
    }
    return i, nil
}

func batchable(typ string) bool {
    return typ == eventlog.TypeShipmentDispatched || typ == eventlog.TypeShipmentArrived
}

func (w *Worker) applyGroup(ctx context.Context, group []eventlog.Record) error {
    r := group[0]
    switch r.Type {
    case eventlog.TypeRunStarted:
        return w.Store.CreateRun(ctx, r.RunID, r.At)
    case eventlog.TypeRunFinished:
        err := w.Store.FinishRun(ctx, r.RunID, r.At)
        if errors.Is(err, store.ErrNotFound) {
            w.Log.WithField("run", r.RunID).Warn("finish for unknown run")
            return nil
        }
        return err
    case eventlog.TypeShipmentDispatched:
        items := make([]model.Shipment, 0, len(group))
        for _, g := range group { if g.Shipment != nil { items = append(items, *g.Shipment) } }
        return w.Store.InsertShipments(ctx, items)
    case eventlog.TypeShipmentArrived:
        ids := make([]string, 0, len(group))
        for _, g := range group { if g.Shipment != nil { ids = append(ids, g.Shipment.ID) } }
        return w.Store.MarkArrivals(ctx, ids)
    case eventlog.TypeSnapshot:
        return w.Store.InsertSnapshots(ctx, r.RunID, r.SimSeconds, r.Points)
    }
    return nil
}

func nextBackoff(attempts int) time.Duration {
    if attempts < 0 { attempts = 0 }
    if attempts > 12 { attempts = 12 }
    base := time.Second * time.Duration(1<<attempts)
    if base > time.Hour { base = time.Hour }
    return base
}
