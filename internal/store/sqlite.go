package store

import (
    "database/sql"
    "fmt"
    "os"
    "path/filepath"

    _ "modernc.org/sqlite"
)

// NewSQLite opens (creating if needed) a file-backed ledger. ":memory:" is
// accepted for tests.
func NewSQLite(path string) (*SQL, error) {
    if path == "" {
        return nil, fmt.Errorf("empty sqlite path")
    }
    if path != ":memory:" {
        if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
            return nil, err
        }
    }
    db, err := sql.Open("sqlite", path)
    if err != nil {
        return nil, err
    }
    // A single connection serialises writers and keeps ":memory:" databases alive.
    db.SetMaxOpenConns(1)
    db.SetMaxIdleConns(1)
    db.SetConnMaxLifetime(0)
    pragmas := []string{
        "PRAGMA journal_mode=WAL;",
        "PRAGMA synchronous=NORMAL;",
        "PRAGMA busy_timeout=5000;",
    }
    for _, p := range pragmas {
        if _, err := db.Exec(p); err != nil {
            _ = db.Close()
            return nil, fmt.Errorf("sqlite %s: %w", p, err)
        }
    }
    return &SQL{db: db, driver: "sqlite"}, nil
}
