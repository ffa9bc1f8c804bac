// Package store persists recordings and per-project knowledge.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"sales-call-insights-go/internal/config"
	"sales-call-insights-go/internal/types"
)

// ErrNotFound is returned when a recording or project does not exist.
var ErrNotFound = errors.New("not found")

// RecordingFilter narrows ListRecordings. Zero fields match everything.
type RecordingFilter struct {
	Project string
	Status  types.Status
	Limit   uint64
}

// RecordStore is the durable record store keyed by recording id.
type RecordStore interface {
	CreateRecording(ctx context.Context, rec *types.Recording) error
	GetRecording(ctx context.Context, id string) (*types.Recording, error)
	// SaveRecording overwrites every mutable field of an existing record.
	SaveRecording(ctx context.Context, rec *types.Recording) error
	ListRecordings(ctx context.Context, f RecordingFilter) ([]types.Recording, error)
}

// KnowledgeStore holds project pros, objections and objection counters.
type KnowledgeStore interface {
	GetProject(ctx context.Context, project string) (*types.ProjectKnowledge, error)
	UpsertProject(ctx context.Context, pk types.ProjectKnowledge) error
	// IncrementObjection atomically adds one to the counter for label when the
	// project exists. It reports whether a counter was updated.
	IncrementObjection(ctx context.Context, project, label string) (bool, error)
}

// Store is the full persistence surface.
type Store interface {
	RecordStore
	KnowledgeStore
	Close() error
}

// Open connects to the configured database and applies the schema.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "":
		return OpenSQLite(ctx, cfg.SQLitePath)
	case "postgres", "postgresql":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: database_url is required for postgres")
		}
		return OpenPostgres(ctx, cfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

var recordingColumns = []string{
	"id", "customer_name", "customer_phone", "rep_email", "rep_name", "project",
	"recording_url", "submitted_at", "transcript", "ai_insights", "score",
	"missed_pros", "pros_mentioned", "top_objection", "objections_faced",
	"objections_cleared", "status", "error_id", "error_message", "error_at",
	"created_at", "updated_at",
}

// mutableColumns are rewritten by SaveRecording.
var mutableColumns = []string{
	"customer_name", "customer_phone", "rep_email", "rep_name", "project",
	"recording_url", "transcript", "ai_insights", "score", "missed_pros",
	"pros_mentioned", "top_objection", "objections_faced", "objections_cleared",
	"status", "error_id", "error_message", "error_at", "updated_at",
}

func errorFields(rec *types.Recording) (id, msg string) {
	if rec.Error == nil {
		return "", ""
	}
	return rec.Error.ID, rec.Error.Message
}
