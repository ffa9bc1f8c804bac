package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"sales-call-insights-go/internal/logger"
	"sales-call-insights-go/internal/types"
)

// SQLite is a Store backed by a local SQLite file.
type SQLite struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// OpenSQLite creates or opens the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, eris.Wrap(err, "sqlite: create data directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer keeps concurrent pipeline runs from hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: %s", pragma)
		}
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

type sqliteMigration struct {
	Version     int
	Description string
	SQL         string
}

// Append new migrations with increasing versions.
var sqliteMigrations = []sqliteMigration{
	{
		Version:     1,
		Description: "initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS recordings (
    id TEXT PRIMARY KEY,
    customer_name TEXT NOT NULL DEFAULT '',
    customer_phone TEXT NOT NULL DEFAULT '',
    rep_email TEXT NOT NULL,
    rep_name TEXT NOT NULL,
    project TEXT NOT NULL DEFAULT '',
    recording_url TEXT NOT NULL,
    submitted_at TEXT NOT NULL,
    transcript TEXT NOT NULL DEFAULT '',
    ai_insights TEXT NOT NULL DEFAULT '',
    score INTEGER NOT NULL DEFAULT 0 CHECK (score BETWEEN 0 AND 10),
    missed_pros INTEGER NOT NULL DEFAULT 0,
    pros_mentioned INTEGER NOT NULL DEFAULT 0,
    top_objection TEXT NOT NULL DEFAULT '',
    objections_faced INTEGER NOT NULL DEFAULT 0,
    objections_cleared INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'processing',
    error_id TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    error_at TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recordings_project ON recordings(project);
CREATE INDEX IF NOT EXISTS idx_recordings_status ON recordings(status);

CREATE TABLE IF NOT EXISTS project_knowledge (
    project TEXT PRIMARY KEY,
    pros TEXT NOT NULL DEFAULT '[]',
    objections TEXT NOT NULL DEFAULT '[]',
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS objection_counts (
    project TEXT NOT NULL REFERENCES project_knowledge(project) ON DELETE CASCADE,
    label TEXT NOT NULL,
    count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (project, label)
);`,
	},
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	log := logger.Component("store.sqlite")

	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return eris.Wrap(err, "sqlite: read schema version")
	}

	for _, m := range sqliteMigrations {
		if m.Version <= current {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return eris.Wrap(err, "sqlite: begin migration")
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return eris.Wrapf(err, "sqlite: migration %d (%s)", m.Version, m.Description)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, "PRAGMA user_version = "+strconv.Itoa(m.Version)); err != nil {
			_ = tx.Rollback()
			return eris.Wrapf(err, "sqlite: stamp version %d", m.Version)
		}
		if err := tx.Commit(); err != nil {
			return eris.Wrapf(err, "sqlite: commit migration %d", m.Version)
		}
		log.WithField("version", m.Version).Info("applied migration")
	}
	return nil
}

// sqliteTime is fixed width so text ordering matches time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullTime(e *types.ErrorInfo) interface{} {
	if e == nil || e.Timestamp.IsZero() {
		return nil
	}
	return formatTime(e.Timestamp)
}

func (s *SQLite) CreateRecording(ctx context.Context, rec *types.Recording) error {
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	errID, errMsg := errorFields(rec)

	q, args, err := s.sb.Insert("recordings").Columns(recordingColumns...).Values(
		rec.ID, rec.CustomerName, rec.CustomerPhone, rec.RepEmail, rec.RepName, rec.Project,
		rec.RecordingURL, formatTime(rec.SubmittedAt), rec.Transcript, rec.AIInsights, rec.Score,
		rec.MissedPros, rec.ProsMentioned, rec.TopObjection, rec.ObjectionsFaced,
		rec.ObjectionsCleared, string(rec.Status), errID, errMsg, nullTime(rec.Error),
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	).ToSql()
	if err != nil {
		return eris.Wrap(err, "sqlite: build insert")
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return eris.Wrapf(err, "sqlite: insert recording %s", rec.ID)
	}
	return nil
}

func (s *SQLite) GetRecording(ctx context.Context, id string) (*types.Recording, error) {
	q, args, err := s.sb.Select(recordingColumns...).From("recordings").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build select")
	}
	rec, err := scanSQLiteRecording(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get recording %s", id)
	}
	return rec, nil
}

func (s *SQLite) SaveRecording(ctx context.Context, rec *types.Recording) error {
	rec.UpdatedAt = time.Now().UTC()
	errID, errMsg := errorFields(rec)

	vals := []interface{}{
		rec.CustomerName, rec.CustomerPhone, rec.RepEmail, rec.RepName, rec.Project,
		rec.RecordingURL, rec.Transcript, rec.AIInsights, rec.Score, rec.MissedPros,
		rec.ProsMentioned, rec.TopObjection, rec.ObjectionsFaced, rec.ObjectionsCleared,
		string(rec.Status), errID, errMsg, nullTime(rec.Error), formatTime(rec.UpdatedAt),
	}
	set := make(map[string]interface{}, len(mutableColumns))
	for i, c := range mutableColumns {
		set[c] = vals[i]
	}

	q, args, err := s.sb.Update("recordings").SetMap(set).Where(sq.Eq{"id": rec.ID}).ToSql()
	if err != nil {
		return eris.Wrap(err, "sqlite: build update")
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save recording %s", rec.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) ListRecordings(ctx context.Context, f RecordingFilter) ([]types.Recording, error) {
	b := s.sb.Select(recordingColumns...).From("recordings").OrderBy("submitted_at DESC")
	if f.Project != "" {
		b = b.Where(sq.Eq{"project": f.Project})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list")
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recordings")
	}
	defer rows.Close()

	var out []types.Recording
	for rows.Next() {
		rec, err := scanSQLiteRecording(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan recording")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate recordings")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteRecording(row rowScanner) (*types.Recording, error) {
	var (
		rec                         types.Recording
		status, errID, errMsg       string
		submitted, created, updated string
		errAt                       sql.NullString
	)
	err := row.Scan(
		&rec.ID, &rec.CustomerName, &rec.CustomerPhone, &rec.RepEmail, &rec.RepName, &rec.Project,
		&rec.RecordingURL, &submitted, &rec.Transcript, &rec.AIInsights, &rec.Score,
		&rec.MissedPros, &rec.ProsMentioned, &rec.TopObjection, &rec.ObjectionsFaced,
		&rec.ObjectionsCleared, &status, &errID, &errMsg, &errAt, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = types.Status(status)
	rec.SubmittedAt = parseTime(submitted)
	rec.CreatedAt = parseTime(created)
	rec.UpdatedAt = parseTime(updated)
	if errID != "" || errMsg != "" {
		rec.Error = &types.ErrorInfo{ID: errID, Message: errMsg}
		if errAt.Valid {
			rec.Error.Timestamp = parseTime(errAt.String)
		}
	}
	return &rec, nil
}

func (s *SQLite) GetProject(ctx context.Context, project string) (*types.ProjectKnowledge, error) {
	var pros, objections string
	err := s.db.QueryRowContext(ctx,
		"SELECT pros, objections FROM project_knowledge WHERE project = ?", project,
	).Scan(&pros, &objections)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get project %s", project)
	}

	pk := &types.ProjectKnowledge{Project: project, ObjectionCounts: map[string]int{}}
	if err := decodeList(pros, &pk.Pros); err != nil {
		return nil, err
	}
	if err := decodeList(objections, &pk.Objections); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT label, count FROM objection_counts WHERE project = ?", project)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: objection counts %s", project)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			label string
			n     int
		)
		if err := rows.Scan(&label, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan objection count")
		}
		pk.ObjectionCounts[label] = n
	}
	return pk, eris.Wrap(rows.Err(), "sqlite: iterate objection counts")
}

func (s *SQLite) UpsertProject(ctx context.Context, pk types.ProjectKnowledge) error {
	pros, err := encodeList(pk.Pros)
	if err != nil {
		return err
	}
	objections, err := encodeList(pk.Objections)
	if err != nil {
		return err
	}

	q, args, err := s.sb.Insert("project_knowledge").
		Columns("project", "pros", "objections", "updated_at").
		Values(pk.Project, pros, objections, formatTime(time.Now())).
		Suffix("ON CONFLICT(project) DO UPDATE SET pros = excluded.pros, objections = excluded.objections, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return eris.Wrap(err, "sqlite: build upsert")
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return eris.Wrapf(err, "sqlite: upsert project %s", pk.Project)
	}
	return nil
}

const sqliteIncrementObjection = `
INSERT INTO objection_counts (project, label, count)
SELECT ?, ?, 1 WHERE EXISTS (SELECT 1 FROM project_knowledge WHERE project = ?)
ON CONFLICT(project, label) DO UPDATE SET count = count + 1`

func (s *SQLite) IncrementObjection(ctx context.Context, project, label string) (bool, error) {
	res, err := s.db.ExecContext(ctx, sqliteIncrementObjection, project, label, project)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: increment objection %q for %s", label, project)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func encodeList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "encode list")
	}
	return string(b), nil
}

func decodeList(s string, dst *[]string) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), dst); err != nil {
		return eris.Wrap(err, "decode list")
	}
	return nil
}
