package sim

import (
    "container/heap"

    "github.com/google/uuid"
)

// EffectQueue holds deferred effects ordered by due time (simulated seconds
// for arrivals, animation milliseconds for vehicle steps). Effects with equal
// due times run in scheduling order. Not safe for concurrent use; the owning
// Simulation serializes access.
type EffectQueue struct {
    h    effectHeap
    byID map[string]*effect
    seq  uint64
}

type effect struct {
    id        string
    at        float64
    seq       uint64
    kind      string
    fn        func(at float64)
    cancelled bool
}

func NewEffectQueue() *EffectQueue {
    return &EffectQueue{byID: map[string]*effect{}}
}

// Schedule registers fn to run once the queue is drained at or past at.
func (q *EffectQueue) Schedule(at float64, kind string, fn func(at float64)) string {
    q.seq++
    e := &effect{id: uuid.NewString(), at: at, seq: q.seq, kind: kind, fn: fn}
    heap.Push(&q.h, e)
    q.byID[e.id] = e
    return e.id
}

// Cancel marks an effect as cancelled; it is dropped when it surfaces.
func (q *EffectQueue) Cancel(id string) bool {
    e, ok := q.byID[id]
    if !ok { return false }
    e.cancelled = true
    delete(q.byID, id)
    return true
}

// RunDue runs every live effect due at or before now, in order. Effects
// scheduled by a running effect are picked up in the same drain when due.
func (q *EffectQueue) RunDue(now float64) int {
    n := 0
    for q.h.Len() > 0 && q.h[0].at <= now {
        e := heap.Pop(&q.h).(*effect)
        if e.cancelled { continue }
        delete(q.byID, e.id)
        e.fn(e.at)
        n++
    }
    return n
}

// Purge drops every pending effect and returns how many were live.
func (q *EffectQueue) Purge() int {
    n := len(q.byID)
    q.h = nil
    q.byID = map[string]*effect{}
    return n
}

// Len counts live (not cancelled) effects.
func (q *EffectQueue) Len() int { return len(q.byID) }

// CountKind counts live effects of one kind.
func (q *EffectQueue) CountKind(kind string) int {
    n := 0
    for _, e := range q.byID {
        if e.kind == kind { n++ }
    }
    return n
}

// Next reports the due time of the earliest live effect.
func (q *EffectQueue) Next() (float64, bool) {
    for q.h.Len() > 0 && q.h[0].cancelled { heap.Pop(&q.h) }
    if q.h.Len() == 0 { return 0, false }
    return q.h[0].at, true
}

type effectHeap []*effect

func (h effectHeap) Len() int { return len(h) }
func (h effectHeap) Less(i, j int) bool {
    if h[i].at != h[j].at { return h[i].at < h[j].at }
    return h[i].seq < h[j].seq
}
func (h effectHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *effectHeap) Push(x any)   { *h = append(*h, x.(*effect)) }
func (h *effectHeap) Pop() any {
    old := *h
    n := len(old)
    e := old[n-1]
    old[n-1] = nil
    *h = old[:n-1]
    return e
}
