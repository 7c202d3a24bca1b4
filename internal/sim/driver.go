package sim

import (
    "context"
    "sync"
    "time"
)

// Driver calls Tick at a fixed real-time frame rate until stopped.
type Driver struct {
    Sim      *Simulation
    Interval time.Duration

    mu     sync.Mutex
    cancel context.CancelFunc
    done   chan struct{}
}

func NewDriver(s *Simulation, hz int) *Driver {
    if hz <= 0 { hz = int(FrameRate) }
    return &Driver{Sim: s, Interval: time.Second / time.Duration(hz)}
}

// Start launches the frame loop; calling it on a running driver is a no-op.
func (d *Driver) Start(ctx context.Context) {
    d.mu.Lock()
    defer d.mu.Unlock()
    if d.cancel != nil { return }
    ctx, cancel := context.WithCancel(ctx)
    d.cancel = cancel
    d.done = make(chan struct{})
    go d.loop(ctx, d.done)
}

func (d *Driver) loop(ctx context.Context, done chan struct{}) {
    defer close(done)
    ticker := time.NewTicker(d.Interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            // failures are logged and pause the simulation inside Tick
            _ = d.Sim.Tick()
        }
    }
}

// Stop cancels the loop and waits for it to exit.
func (d *Driver) Stop() {
    d.mu.Lock()
    cancel, done := d.cancel, d.done
    d.cancel, d.done = nil, nil
    d.mu.Unlock()
    if cancel == nil { return }
    cancel()
    <-done
}
