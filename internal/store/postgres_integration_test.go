//go:build postgres_integration

package store

import (
    "context"
    "os"
    "testing"
    "time"

    "github.com/google/uuid"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
    dsn := os.Getenv("DATABASE_URL")
    if dsn == "" { t.Skip("DATABASE_URL not set; skipping integration test") }
    ctx := context.Background()
    p, err := NewPostgres(dsn)
    if err != nil { t.Fatalf("NewPostgres: %v", err) }
    defer p.Close()
    if err := p.Ping(ctx); err != nil { t.Fatalf("Ping: %v", err) }
    if err := p.Migrate(ctx); err != nil { t.Fatalf("Migrate: %v", err) }
    id := uuid.NewString()
    if err := p.CreateRun(ctx, id, time.Now()); err != nil { t.Fatalf("CreateRun: %v", err) }
    if _, err := p.GetRun(ctx, id); err != nil { t.Fatalf("GetRun: %v", err) }
    if _, _, err := p.ListRuns(ctx, "", 1); err != nil { t.Fatalf("ListRuns: %v", err) }
}
