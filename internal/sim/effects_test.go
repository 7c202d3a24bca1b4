package sim

import "testing"

func TestEffectQueueOrderAndTies(t *testing.T) {
    q := NewEffectQueue()
    var got []string
    q.Schedule(5, "x", func(float64) { got = append(got, "c") })
    q.Schedule(1, "x", func(float64) { got = append(got, "a") })
    q.Schedule(5, "x", func(float64) { got = append(got, "d") })
    q.Schedule(2, "x", func(float64) { got = append(got, "b") })
    if n := q.RunDue(4); n != 2 { t.Fatalf("ran %d, want 2", n) }
    if n := q.RunDue(5); n != 2 { t.Fatalf("ran %d, want 2", n) }
    if want := "abcd"; join(got) != want { t.Fatalf("order %q want %q", join(got), want) }
    if q.Len() != 0 { t.Fatalf("queue should be empty") }
}

func TestEffectQueueCancelAndPurge(t *testing.T) {
    q := NewEffectQueue()
    ran := 0
    id := q.Schedule(1, "arrival", func(float64) { ran++ })
    q.Schedule(2, "arrival", func(float64) { ran++ })
    q.Schedule(3, "step", func(float64) { ran++ })
    if !q.Cancel(id) || q.Cancel(id) { t.Fatalf("cancel should succeed exactly once") }
    if q.Len() != 2 || q.CountKind("arrival") != 1 { t.Fatalf("len=%d arrivals=%d", q.Len(), q.CountKind("arrival")) }
    if at, ok := q.Next(); !ok || at != 2 { t.Fatalf("next=%v,%v", at, ok) }
    if n := q.Purge(); n != 2 { t.Fatalf("purged %d", n) }
    q.RunDue(100)
    if ran != 0 { t.Fatalf("purged effects ran: %d", ran) }
    if _, ok := q.Next(); ok { t.Fatalf("expected empty queue") }
}

func TestEffectQueueChainedEffectsInSameDrain(t *testing.T) {
    q := NewEffectQueue()
    var times []float64
    var step func(at float64)
    step = func(at float64) {
        times = append(times, at)
        if len(times) < 3 { q.Schedule(at+1, "step", step) }
    }
    q.Schedule(1, "step", step)
    q.RunDue(10)
    if len(times) != 3 || times[2] != 3 { t.Fatalf("times=%v", times) }
}

func join(s []string) string {
    out := ""
    for _, x := range s { out += x }
    return out
}
