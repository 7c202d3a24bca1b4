// Package ledger records simulation domain events into the run store and the
// optional event log without blocking the frame loop.
package ledger

import (
    "time"

    "chainsim/internal/eventlog"
    "chainsim/internal/metrics"
    "chainsim/internal/model"
)

const DefaultQueueSize = 4096

// Recorder is a sim.Observer that enqueues events for the Worker. When the
// queue is full the event is dropped and counted.
type Recorder struct {
    queue chan eventlog.Record
    now   func() time.Time
}

func NewRecorder(size int) *Recorder {
    if size <= 0 { size = DefaultQueueSize }
    return &Recorder{queue: make(chan eventlog.Record, size), now: time.Now}
}

func (r *Recorder) enqueue(rec eventlog.Record) {
    if rec.At.IsZero() { rec.At = r.now().UTC() }
    select {
    case r.queue <- rec:
    default:
        metrics.LedgerDropped.Inc()
    }
}

func (r *Recorder) RunStarted(runID string, at time.Time) {
    r.enqueue(eventlog.Record{Type: eventlog.TypeRunStarted, At: at.UTC(), RunID: runID})
}

func (r *Recorder) RunFinished(runID string, at time.Time) {
    r.enqueue(eventlog.Record{Type: eventlog.TypeRunFinished, At: at.UTC(), RunID: runID})
}

func (r *Recorder) ShipmentDispatched(sh model.Shipment) {
    r.enqueue(eventlog.Record{Type: eventlog.TypeShipmentDispatched, RunID: sh.RunID, SimSeconds: sh.DispatchedAt, Shipment: &sh})
}

func (r *Recorder) ShipmentArrived(sh model.Shipment) {
    r.enqueue(eventlog.Record{Type: eventlog.TypeShipmentArrived, RunID: sh.RunID, SimSeconds: sh.ArrivesAt, Shipment: &sh})
}

func (r *Recorder) Snapshot(runID string, simSeconds float64, pts []model.ScenarioPoint) {
    cp := append([]model.ScenarioPoint(nil), pts...)
    r.enqueue(eventlog.Record{Type: eventlog.TypeSnapshot, RunID: runID, SimSeconds: simSeconds, Points: cp})
}

// Pending is the number of queued, not yet drained events.
func (r *Recorder) Pending() int { return len(r.queue) }
