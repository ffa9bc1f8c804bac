// Package knowledge supplies the per-project selling points and objections
// that steer the analysis prompt.
package knowledge

import (
	"context"
	"errors"
	"strings"

	"sales-call-insights-go/internal/logger"
	"sales-call-insights-go/internal/store"
	"sales-call-insights-go/internal/types"
)

// Source looks up a project's knowledge.
type Source interface {
	GetProject(ctx context.Context, project string) (*types.ProjectKnowledge, error)
}

// Enricher resolves project context for a run. It never fails: analysis can
// always proceed without context.
type Enricher struct {
	src Source
}

func NewEnricher(src Source) *Enricher {
	return &Enricher{src: src}
}

// Enrich returns the pros and objections recorded for project. Unknown or
// empty projects and lookup errors yield empty lists.
func (e *Enricher) Enrich(ctx context.Context, project string) ([]string, []string) {
	project = strings.TrimSpace(project)
	if project == "" || e.src == nil {
		return nil, nil
	}
	log := logger.Component("knowledge").With("project", project)

	pk, err := e.src.GetProject(ctx, project)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.WithError(err).Warn("could not fetch project knowledge")
		}
		return nil, nil
	}
	if pk == nil {
		return nil, nil
	}

	log.WithFields(map[string]interface{}{
		"pros":       len(pk.Pros),
		"objections": len(pk.Objections),
	}).Debug("found project knowledge")
	return pk.Pros, pk.Objections
}
