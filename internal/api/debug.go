package api

import (
    "net/http"
    "time"

    "chainsim/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    c := s.Config
    _, redis := s.Broker.(*RedisBroker)
    info := map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "config": map[string]any{
            "PORT":             c.Port,
            "FRAME_HZ":         c.FrameHz,
            "SIM_SEED":         c.Seed,
            "AUTOPLAY":         c.Autoplay,
            "ALLOW_ORIGINS":    c.AllowOrigins,
            "RATE_RPS":         c.RateRPS,
            "RATE_BURST":       c.RateBurst,
            "DISPLAY_EVERY":    c.DisplayEvery,
            "LEDGER_FLUSH":     c.LedgerFlush.String(),
            "NETWORK_FILE":     c.NetworkFile,
            "HAS_DATABASE_URL": c.DatabaseURL != "",
            "HAS_SQLITE_PATH":  c.SQLitePath != "",
            "HAS_REDIS_URL":    c.RedisURL != "",
            "REDIS_BROKER":     redis,
            "EVENT_LOG_DIR":    c.EventLogDir,
            "OSRM_URL":         c.OSRMURL,
        },
    }
    writeJSON(w, 200, info)
}
