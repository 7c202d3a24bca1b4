package api

import (
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/go-chi/chi/v5"
    "github.com/go-chi/chi/v5/middleware"
    "github.com/sirupsen/logrus"

    "chainsim/internal/metrics"
)

func (s *Server) logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
        next.ServeHTTP(ww, r)
        entry := s.Log.WithFields(logrus.Fields{
            "remote":   r.RemoteAddr,
            "method":   r.Method,
            "path":     r.URL.Path,
            "status":   ww.Status(),
            "bytes":    ww.BytesWritten(),
            "duration": time.Since(start).String(),
            "reqId":    middleware.GetReqID(r.Context()),
        })
        if ww.Status() >= 500 { entry.Warn("request") } else { entry.Debug("request") }
    })
}

// metricsMiddleware records request counts and latency by route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
        next.ServeHTTP(ww, r)
        path := "unmatched"
        if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" { path = rc.RoutePattern() }
        status := ww.Status()
        if status == 0 { status = http.StatusOK }
        code := strconv.Itoa(status)
        metrics.HTTPRequests.WithLabelValues(r.Method, path, code).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, path, code).Observe(time.Since(start).Seconds())
    })
}

// corsMiddleware answers preflights and sets the allow-origin header for
// ALLOW_ORIGINS, a comma separated list or "*".
func corsMiddleware(allow string) func(http.Handler) http.Handler {
    allowed := map[string]bool{}
    for _, o := range strings.Split(allow, ",") {
        if o = strings.TrimSpace(o); o != "" { allowed[o] = true }
    }
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            origin := r.Header.Get("Origin")
            switch {
            case allowed["*"]:
                w.Header().Set("Access-Control-Allow-Origin", "*")
            case origin != "" && allowed[origin]:
                w.Header().Set("Access-Control-Allow-Origin", origin)
                w.Header().Add("Vary", "Origin")
            }
            w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
            w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
            if r.Method == http.MethodOptions {
                w.WriteHeader(http.StatusNoContent)
                return
            }
            next.ServeHTTP(w, r)
        })
    }
}

// rateLimit guards the control routes with a shared token bucket (RATE_RPS, RATE_BURST).
func (s *Server) rateLimit(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if !s.limiter.Allow() {
            metrics.HTTPRateLimited.Inc()
            w.Header().Set("Retry-After", "1")
            writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "control rate limit exceeded", r.URL.Path)
            return
        }
        next.ServeHTTP(w, r)
    })
}
