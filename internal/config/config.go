// Package config reads process settings from the environment and the network
// definition from yaml.
package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// Config holds process settings. Every field has an env var and a default.
type Config struct {
    Port         string
    DatabaseURL  string
    SQLitePath   string
    RedisURL     string
    NetworkFile  string
    FrameHz      int
    Seed         int64
    Autoplay     bool
    RateRPS      float64
    RateBurst    int
    AllowOrigins string
    EventLogDir  string
    OSRMURL      string
    OSRMRPS      float64
    LedgerFlush  time.Duration
    DisplayEvery int
}

// FromEnv reads the process configuration from environment variables.
func FromEnv() Config {
    return Config{
        Port:         envOr("PORT", "8080"),
        DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
        SQLitePath:   strings.TrimSpace(os.Getenv("SQLITE_PATH")),
        RedisURL:     strings.TrimSpace(os.Getenv("REDIS_URL")),
        NetworkFile:  os.Getenv("NETWORK_FILE"),
        FrameHz:      envInt("FRAME_HZ", 60),
        Seed:         int64(envInt("SIM_SEED", int(time.Now().UnixNano()&0x7fffffff))),
        Autoplay:     envBool("AUTOPLAY", false),
        RateRPS:      envFloat("RATE_RPS", 5),
        RateBurst:    envInt("RATE_BURST", 10),
        AllowOrigins: envOr("ALLOW_ORIGINS", "*"),
        EventLogDir:  os.Getenv("EVENT_LOG_DIR"),
        OSRMURL:      strings.TrimRight(os.Getenv("OSRM_URL"), "/"),
        OSRMRPS:      envFloat("OSRM_RPS", 1),
        LedgerFlush:  time.Duration(envInt("LEDGER_FLUSH_MS", 1000)) * time.Millisecond,
        DisplayEvery: envInt("DISPLAY_EVERY", 6),
    }
}

func envOr(key, def string) string {
    if v := strings.TrimSpace(os.Getenv(key)); v != "" { return v }
    return def
}

func envInt(key string, def int) int {
    if v := os.Getenv(key); v != "" { if n, err := strconv.Atoi(v); err == nil && n > 0 { return n } }
    return def
}

func envFloat(key string, def float64) float64 {
    if v := os.Getenv(key); v != "" { if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 { return f } }
    return def
}

func envBool(key string, def bool) bool {
    if v := os.Getenv(key); v != "" { if b, err := strconv.ParseBool(v); err == nil { return b } }
    return def
}
