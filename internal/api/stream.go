package api

import (
    "encoding/json"
    "fmt"
    "net/http"
    "time"

    "github.com/go-chi/chi/v5"

    "chainsim/internal/metrics"
)

const sseHeartbeat = 15 * time.Second

// EventsStreamHandler streams every simulation event as SSE.
func (s *Server) EventsStreamHandler(w http.ResponseWriter, r *http.Request) {
    s.serveSSE(w, r, TopicSim)
}

// RouteEventsStreamHandler streams one route's marker and shipment events.
func (s *Server) RouteEventsStreamHandler(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "routeID")
    if !s.knownRoute(id) { writeProblem(w, 404, "Route not found", id, r.URL.Path); return }
    s.serveSSE(w, r, RouteTopic(id))
}

func (s *Server) knownRoute(id string) bool {
    for _, rt := range s.Network.Routes {
        if rt.ID == id { return true }
    }
    return false
}

func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request, topic string) {
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(topic)
    defer s.Broker.Unsubscribe(topic, ch)
    clients := metrics.StreamClients.WithLabelValues("sse")
    clients.Inc()
    defer clients.Dec()

    heartbeat := func() {
        fmt.Fprintf(w, "event: heartbeat\n")
        fmt.Fprintf(w, "data: {\"topic\":%q,\"ts\":%q}\n\n", topic, time.Now().UTC().Format(time.RFC3339))
        flusher.Flush()
    }
    heartbeat()
    for {
        select {
        case <-r.Context().Done():
            return
        case evt, ok := <-ch:
            if !ok { return }
            b, err := json.Marshal(evt.Data)
            if err != nil { continue }
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", b)
            flusher.Flush()
        case <-time.After(sseHeartbeat):
            heartbeat()
        }
    }
}
