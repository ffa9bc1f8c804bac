package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"sales-call-insights-go/internal/config"
	"sales-call-insights-go/internal/logger"
	"sales-call-insights-go/internal/types"
)

// Pool is the subset of *pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool Pool
	sb   sq.StatementBuilderType
}

// OpenPostgres connects, pings and migrates.
func OpenPostgres(ctx context.Context, cfg config.StoreConfig) (*Postgres, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	p := NewPostgres(pool)
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an existing pool without touching the schema.
func NewPostgres(pool Pool) *Postgres {
	return &Postgres{pool: pool, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS recordings (
    id TEXT PRIMARY KEY,
    customer_name TEXT NOT NULL DEFAULT '',
    customer_phone TEXT NOT NULL DEFAULT '',
    rep_email TEXT NOT NULL,
    rep_name TEXT NOT NULL,
    project TEXT NOT NULL DEFAULT '',
    recording_url TEXT NOT NULL,
    submitted_at TIMESTAMPTZ NOT NULL,
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
    error_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_recordings_project ON recordings(project);
CREATE INDEX IF NOT EXISTS idx_recordings_status ON recordings(status);

CREATE TABLE IF NOT EXISTS project_knowledge (
    project TEXT PRIMARY KEY,
    pros JSONB NOT NULL DEFAULT '[]',
    objections JSONB NOT NULL DEFAULT '[]',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS objection_counts (
    project TEXT NOT NULL REFERENCES project_knowledge(project) ON DELETE CASCADE,
    label TEXT NOT NULL,
    count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (project, label)
);`

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	logger.Component("store.postgres").Info("schema ready")
	return nil
}

func pgErrorAt(e *types.ErrorInfo) any {
	if e == nil || e.Timestamp.IsZero() {
		return nil
	}
	return e.Timestamp.UTC()
}

func (p *Postgres) CreateRecording(ctx context.Context, rec *types.Recording) error {
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	errID, errMsg := errorFields(rec)

	q, args, err := p.sb.Insert("recordings").Columns(recordingColumns...).Values(
		rec.ID, rec.CustomerName, rec.CustomerPhone, rec.RepEmail, rec.RepName, rec.Project,
		rec.RecordingURL, rec.SubmittedAt.UTC(), rec.Transcript, rec.AIInsights, rec.Score,
		rec.MissedPros, rec.ProsMentioned, rec.TopObjection, rec.ObjectionsFaced,
		rec.ObjectionsCleared, string(rec.Status), errID, errMsg, pgErrorAt(rec.Error),
		rec.CreatedAt, rec.UpdatedAt,
	).ToSql()
	if err != nil {
		return eris.Wrap(err, "postgres: build insert")
	}
	if _, err := p.pool.Exec(ctx, q, args...); err != nil {
		return eris.Wrapf(err, "postgres: insert recording %s", rec.ID)
	}
	return nil
}

func (p *Postgres) GetRecording(ctx context.Context, id string) (*types.Recording, error) {
	q, args, err := p.sb.Select(recordingColumns...).From("recordings").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build select")
	}
	rec, err := scanPostgresRecording(p.pool.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get recording %s", id)
	}
	return rec, nil
}

func (p *Postgres) SaveRecording(ctx context.Context, rec *types.Recording) error {
	rec.UpdatedAt = time.Now().UTC()
	errID, errMsg := errorFields(rec)

	vals := []any{
		rec.CustomerName, rec.CustomerPhone, rec.RepEmail, rec.RepName, rec.Project,
		rec.RecordingURL, rec.Transcript, rec.AIInsights, rec.Score, rec.MissedPros,
		rec.ProsMentioned, rec.TopObjection, rec.ObjectionsFaced, rec.ObjectionsCleared,
		string(rec.Status), errID, errMsg, pgErrorAt(rec.Error), rec.UpdatedAt,
	}
	set := make(map[string]any, len(mutableColumns))
	for i, c := range mutableColumns {
		set[c] = vals[i]
	}

	q, args, err := p.sb.Update("recordings").SetMap(set).Where(sq.Eq{"id": rec.ID}).ToSql()
	if err != nil {
		return eris.Wrap(err, "postgres: build update")
	}
	tag, err := p.pool.Exec(ctx, q, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: save recording %s", rec.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ListRecordings(ctx context.Context, f RecordingFilter) ([]types.Recording, error) {
	b := p.sb.Select(recordingColumns...).From("recordings").OrderBy("submitted_at DESC")
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
		return nil, eris.Wrap(err, "postgres: build list")
	}

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recordings")
	}
	defer rows.Close()

	var out []types.Recording
	for rows.Next() {
		rec, err := scanPostgresRecording(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan recording")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate recordings")
}

func scanPostgresRecording(row pgx.Row) (*types.Recording, error) {
	var (
		rec                   types.Recording
		status, errID, errMsg string
		errAt                 sql.NullTime
	)
	err := row.Scan(
		&rec.ID, &rec.CustomerName, &rec.CustomerPhone, &rec.RepEmail, &rec.RepName, &rec.Project,
		&rec.RecordingURL, &rec.SubmittedAt, &rec.Transcript, &rec.AIInsights, &rec.Score,
		&rec.MissedPros, &rec.ProsMentioned, &rec.TopObjection, &rec.ObjectionsFaced,
		&rec.ObjectionsCleared, &status, &errID, &errMsg, &errAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = types.Status(status)
	if errID != "" || errMsg != "" {
		rec.Error = &types.ErrorInfo{ID: errID, Message: errMsg}
		if errAt.Valid {
			rec.Error.Timestamp = errAt.Time
		}
	}
	return &rec, nil
}

func (p *Postgres) GetProject(ctx context.Context, project string) (*types.ProjectKnowledge, error) {
	var pros, objections []byte
	err := p.pool.QueryRow(ctx,
		"SELECT pros, objections FROM project_knowledge WHERE project = $1", project,
	).Scan(&pros, &objections)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get project %s", project)
	}

	pk := &types.ProjectKnowledge{Project: project, ObjectionCounts: map[string]int{}}
	if err := decodeList(string(pros), &pk.Pros); err != nil {
		return nil, err
	}
	if err := decodeList(string(objections), &pk.Objections); err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, "SELECT label, count FROM objection_counts WHERE project = $1", project)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: objection counts %s", project)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			label string
			n     int
		)
		if err := rows.Scan(&label, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan objection count")
		}
		pk.ObjectionCounts[label] = n
	}
	return pk, eris.Wrap(rows.Err(), "postgres: iterate objection counts")
}

func (p *Postgres) UpsertProject(ctx context.Context, pk types.ProjectKnowledge) error {
	pros, err := encodeList(pk.Pros)
	if err != nil {
		return err
	}
	objections, err := encodeList(pk.Objections)
	if err != nil {
		return err
	}

	q, args, err := p.sb.Insert("project_knowledge").
		Columns("project", "pros", "objections", "updated_at").
		Values(pk.Project, pros, objections, time.Now().UTC()).
		Suffix("ON CONFLICT (project) DO UPDATE SET pros = EXCLUDED.pros, objections = EXCLUDED.objections, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return eris.Wrap(err, "postgres: build upsert")
	}
	if _, err := p.pool.Exec(ctx, q, args...); err != nil {
		return eris.Wrapf(err, "postgres: upsert project %s", pk.Project)
	}
	return nil
}

const postgresIncrementObjection = `
INSERT INTO objection_counts (project, label, count)
SELECT $1, $2, 1 WHERE EXISTS (SELECT 1 FROM project_knowledge WHERE project = $1)
ON CONFLICT (project, label) DO UPDATE SET count = objection_counts.count + 1`

func (p *Postgres) IncrementObjection(ctx context.Context, project, label string) (bool, error) {
	tag, err := p.pool.Exec(ctx, postgresIncrementObjection, project, label)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: increment objection %q for %s", label, project)
	}
	return tag.RowsAffected() > 0, nil
}
