// Package logging builds the process logger from LOG_LEVEL and LOG_FORMAT.
package logging

import (
    "io"
    "os"
    "strings"

    "github.com/sirupsen/logrus"
)

// Config controls basic logger behaviour.
type Config struct {
    Level  string // debug, info, warn, error
    Format string // json or text
    Out    io.Writer
}

// New constructs a logrus logger with the provided config.
func New(cfg Config) *logrus.Logger {
    l := logrus.New()
    if cfg.Out != nil { l.SetOutput(cfg.Out) } else { l.SetOutput(os.Stdout) }
    l.SetLevel(parseLevel(cfg.Level))
    switch strings.ToLower(cfg.Format) {
    case "json":
        l.SetFormatter(&logrus.JSONFormatter{})
    default:
        l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
    }
    return l
}

// FromEnv reads LOG_LEVEL and LOG_FORMAT, defaulting to text at info level.
func FromEnv() *logrus.Logger {
    return New(Config{Level: os.Getenv("LOG_LEVEL"), Format: os.Getenv("LOG_FORMAT")})
}

// Noop returns a logger that discards everything.
func Noop() *logrus.Logger {
    l := logrus.New()
    l.SetOutput(io.Discard)
    return l
}

// Component tags a logger with the component name.
func Component(l logrus.FieldLogger, name string) logrus.FieldLogger {
    if l == nil { l = Noop() }
    return l.WithField("component", name)
}

func parseLevel(s string) logrus.Level {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "debug":
        return logrus.DebugLevel
    case "warn", "warning":
        return logrus.WarnLevel
    case "error":
        return logrus.ErrorLevel
    default:
        return logrus.InfoLevel
    }
}
