package store

import (
    "context"
    "database/sql"
    _ "embed"
    "errors"
    "fmt"
    "strconv"
    "strings"
    "time"

    "chainsim/internal/model"
)

//go:embed schema/ledger.sql
var ledgerSchema string

// SQL is the database/sql ledger shared by the Postgres and SQLite backends.
// Queries are written with '?' placeholders and rebound per driver.
type SQL struct {
    db     *sql.DB
    driver string
}

func (s *SQL) Driver() string { return s.driver }

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQL) Close() error { return s.db.Close() }

// Migrate applies the embedded ledger schema. Statements are idempotent.
func (s *SQL) Migrate(ctx context.Context) error {
    for _, stmt := range splitStatements(ledgerSchema) {
        if _, err := s.db.ExecContext(ctx, stmt); err != nil {
            return fmt.Errorf("migrate %s: %w", s.driver, err)
        }
    }
    return nil
}

func splitStatements(src string) []string {
    var lines []string
    for _, ln := range strings.Split(src, "\n") {
        if strings.HasPrefix(strings.TrimSpace(ln), "--") { continue }
        lines = append(lines, ln)
    }
    var out []string
    for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
        if stmt = strings.TrimSpace(stmt); stmt != "" { out = append(out, stmt) }
    }
    return out
}

// rebind rewrites '?' placeholders as $1..$n for Postgres.
func rebind(driver, q string) string {
    if driver != "pgx" { return q }
    var b strings.Builder
    n := 0
    for _, r := range q {
        if r == '?' {
            n++
            b.WriteByte('$')
            b.WriteString(strconv.Itoa(n))
            continue
        }
        b.WriteRune(r)
    }
    return b.String()
}

func (s *SQL) q(query string) string { return rebind(s.driver, query) }

func (s *SQL) CreateRun(ctx context.Context, runID string, startedAt time.Time) error {
    _, err := s.db.ExecContext(ctx, s.q(`INSERT INTO runs (id, started_at_ms) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`),
        runID, startedAt.UnixMilli())
    return err
}

func (s *SQL) FinishRun(ctx context.Context, runID string, finishedAt time.Time) error {
    res, err := s.db.ExecContext(ctx, s.q(`UPDATE runs SET finished_at_ms = ? WHERE id = ?`), finishedAt.UnixMilli(), runID)
    if err != nil { return err }
    if n, err := res.RowsAffected(); err == nil && n == 0 { return ErrNotFound }
    return nil
}

func (s *SQL) InsertShipments(ctx context.Context, items []model.Shipment) error {
    if len(items) == 0 { return nil }
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    stmt, err := tx.PrepareContext(ctx, s.q(`INSERT INTO shipments
        (id, run_id, route_id, from_node, to_node, vehicle, scenario, size, distance_km, emissions_kg, dispatched_at, arrives_at, arrived)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`))
    if err != nil { return err }
    defer stmt.Close()
    for _, sh := range items {
        arrived := 0
        if sh.Arrived { arrived = 1 }
        if _, err := stmt.ExecContext(ctx, sh.ID, sh.RunID, sh.RouteID, sh.From, sh.To, string(sh.Vehicle), string(sh.Scenario),
            sh.Size, sh.DistanceKm, sh.EmissionsKg, sh.DispatchedAt, sh.ArrivesAt, arrived); err != nil {
            return fmt.Errorf("insert shipment %s: %w", sh.ID, err)
        }
    }
    return tx.Commit()
}

func (s *SQL) MarkArrivals(ctx context.Context, shipmentIDs []string) error {
    if len(shipmentIDs) == 0 { return nil }
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    stmt, err := tx.PrepareContext(ctx, s.q(`UPDATE shipments SET arrived = 1 WHERE id = ?`))
    if err != nil { return err }
    defer stmt.Close()
    for _, id := range shipmentIDs {
        if _, err := stmt.ExecContext(ctx, id); err != nil { return err }
    }
    return tx.Commit()
}

func (s *SQL) InsertSnapshots(ctx context.Context, runID string, simSeconds float64, pts []model.ScenarioPoint) error {
    if len(pts) == 0 { return nil }
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    stmt, err := tx.PrepareContext(ctx, s.q(`INSERT INTO snapshots (run_id, scenario, day, total_kg, sim_seconds)
        VALUES (?, ?, ?, ?, ?) ON CONFLICT (run_id, scenario, day) DO NOTHING`))
    if err != nil { return err }
    defer stmt.Close()
    for _, p := range pts {
        if _, err := stmt.ExecContext(ctx, runID, string(p.Scenario), p.Day, p.Total, simSeconds); err != nil { return err }
    }
    return tx.Commit()
}

const runSummarySelect = `SELECT r.id, r.started_at_ms, r.finished_at_ms, COUNT(s.id), COALESCE(SUM(s.emissions_kg), 0)
    FROM runs r LEFT JOIN shipments s ON s.run_id = r.id`

func (s *SQL) ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error) {
    limit = clampLimit(limit)
    var (
        rows *sql.Rows
        err  error
    )
    if cursor == "" {
        rows, err = s.db.QueryContext(ctx, s.q(runSummarySelect+`
            GROUP BY r.id, r.started_at_ms, r.finished_at_ms
            ORDER BY r.started_at_ms, r.id LIMIT ?`), limit+1)
    } else {
        rows, err = s.db.QueryContext(ctx, s.q(runSummarySelect+`
            WHERE (r.started_at_ms, r.id) > (SELECT c.started_at_ms, c.id FROM runs c WHERE c.id = ?)
            GROUP BY r.id, r.started_at_ms, r.finished_at_ms
            ORDER BY r.started_at_ms, r.id LIMIT ?`), cursor, limit+1)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    items := []model.Run{}
    for rows.Next() {
        r, err := scanRun(rows)
        if err != nil { return nil, "", err }
        items = append(items, r)
    }
    if err := rows.Err(); err != nil { return nil, "", err }
    next := ""
    if len(items) > limit {
        items = items[:limit]
        next = items[limit-1].ID
    }
    return items, next, nil
}

func (s *SQL) GetRun(ctx context.Context, runID string) (model.RunReport, error) {
    row := s.db.QueryRowContext(ctx, s.q(runSummarySelect+` WHERE r.id = ?
        GROUP BY r.id, r.started_at_ms, r.finished_at_ms`), runID)
    r, err := scanRun(row)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.RunReport{}, ErrNotFound }
        return model.RunReport{}, err
    }
    rep := newReport(r)

    rows, err := s.db.QueryContext(ctx, s.q(`SELECT route_id, COUNT(*), SUM(size), SUM(emissions_kg), SUM(arrived)
        FROM shipments WHERE run_id = ? GROUP BY route_id`), runID)
    if err != nil { return rep, err }
    for rows.Next() {
        var (
            route string
            rs    model.RouteSummary
        )
        if err := rows.Scan(&route, &rs.Shipments, &rs.Units, &rs.EmissionsKg, &rs.Arrived); err != nil {
            rows.Close()
            return rep, err
        }
        rep.ByRoute[route] = rs
    }
    rows.Close()
    if err := rows.Err(); err != nil { return rep, err }

    rows, err = s.db.QueryContext(ctx, s.q(`SELECT scenario, day, total_kg FROM snapshots WHERE run_id = ? ORDER BY scenario, day`), runID)
    if err != nil { return rep, err }
    defer rows.Close()
    for rows.Next() {
        var (
            scn string
            p   model.ComparisonPoint
        )
        if err := rows.Scan(&scn, &p.Day, &p.Total); err != nil { return rep, err }
        rep.Comparison[model.Scenario(scn)] = append(rep.Comparison[model.Scenario(scn)], p)
    }
    return rep, rows.Err()
}

type rowScanner interface {
    Scan(dest ...any) error
}

func scanRun(sc rowScanner) (model.Run, error) {
    var (
        r        model.Run
        started  int64
        finished sql.NullInt64
    )
    if err := sc.Scan(&r.ID, &started, &finished, &r.Shipments, &r.Emissions); err != nil { return r, err }
    r.StartedAt = time.UnixMilli(started).UTC()
    if finished.Valid {
        t := time.UnixMilli(finished.Int64).UTC()
        r.FinishedAt = &t
    }
    return r, nil
}
