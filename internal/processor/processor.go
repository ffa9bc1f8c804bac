// Package processor runs one analysis of a recorded sales call end to end.
package processor

import (
	"context"
	"strings"
	"time"

	"sales-call-insights-go/internal/artifact"
	"sales-call-insights-go/internal/extractor"
	"sales-call-insights-go/internal/logger"
	"sales-call-insights-go/internal/scratch"
	"sales-call-insights-go/internal/types"
)

// Resolver produces a local copy of an artifact reference.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (artifact.Resolved, error)
}

// Normalizer converts audio into the transcription format.
type Normalizer interface {
	Normalize(ctx context.Context, src string) (string, error)
}

// Transcriber turns a local audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Enricher returns known pros and objections for a project.
type Enricher interface {
	Enrich(ctx context.Context, project string) ([]string, []string)
}

// InsightGenerator asks the model for an analysis.
type InsightGenerator interface {
	Generate(ctx context.Context, transcript string, pros, objections []string) (string, error)
}

// ObjectionCounter bumps a project's objection counter.
type ObjectionCounter interface {
	IncrementObjection(ctx context.Context, project, label string) (bool, error)
}

// Deps are the collaborators of a Processor.
type Deps struct {
	Resolver    Resolver
	Normalizer  Normalizer
	Transcriber Transcriber
	Enricher    Enricher
	Insights    InsightGenerator
	Counter     ObjectionCounter
	// RunTimeout bounds a whole run; zero means no bound.
	RunTimeout time.Duration
}

// Processor is the single entry point for analyzing a recording.
type Processor struct {
	d Deps
}

func New(d Deps) *Processor {
	return &Processor{d: d}
}

// Analyze resolves, converts, transcribes and evaluates the artifact at ref.
// It always returns a well-formed result: on any fatal step failure the result
// carries the failure sentinel and Error. Scratch files created by the run are
// removed on every exit path.
func (p *Processor) Analyze(ctx context.Context, ref, project string) types.AnalysisResult {
	log := logger.Component("processor").With("ref", ref).With("project", project)
	start := time.Now()

	if p.d.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.d.RunTimeout)
		defer cancel()
	}

	var tmp []string
	defer func() {
		for _, f := range tmp {
			if err := scratch.Remove(f); err != nil {
				log.WithError(err).WithField("file", f).Warn("cleanup failed")
			}
		}
	}()

	res, err := p.run(ctx, ref, project, &tmp)
	if err != nil {
		log.WithError(err).
			WithField("kind", types.KindOf(err)).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Error("analysis failed")
		return types.FailedResult(err)
	}

	log.WithFields(map[string]interface{}{
		"score":              res.Score,
		"missed_pros":        res.MissedPros,
		"top_objection":      res.TopObjection,
		"objections_faced":   res.ObjectionsFaced,
		"objections_cleared": res.ObjectionsCleared,
		"pros_mentioned":     res.ProsMentioned,
		"duration_ms":        time.Since(start).Milliseconds(),
	}).Info("analysis complete")
	return res
}

func (p *Processor) run(ctx context.Context, ref, project string, tmp *[]string) (types.AnalysisResult, error) {
	resolved, err := p.d.Resolver.Resolve(ctx, ref)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	if resolved.Scratch {
		*tmp = append(*tmp, resolved.Path)
	}

	converted, err := p.d.Normalizer.Normalize(ctx, resolved.Path)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	*tmp = append(*tmp, converted)

	transcript, err := p.d.Transcriber.Transcribe(ctx, converted)
	if err != nil {
		if types.KindOf(err) == "" {
			err = types.NewError(types.KindTranscription, "failed to transcribe audio", err)
		}
		return types.AnalysisResult{}, err
	}
	if strings.TrimSpace(transcript) == "" {
		return types.AnalysisResult{}, types.NewError(types.KindEmptyTranscript,
			"Empty transcript - no speech detected or transcription failed", nil)
	}

	var pros, objections []string
	if p.d.Enricher != nil {
		pros, objections = p.d.Enricher.Enrich(ctx, project)
	}

	insights, err := p.d.Insights.Generate(ctx, transcript, pros, objections)
	if err != nil {
		if types.KindOf(err) == "" {
			err = types.NewError(types.KindLLM, "failed to analyze call", err)
		}
		return types.AnalysisResult{}, err
	}

	m := extractor.Extract(insights)
	p.countObjection(ctx, project, m)

	return types.NewResult(transcript, insights, m), nil
}

// countObjection records the top objection against the project. Failures are
// logged only.
func (p *Processor) countObjection(ctx context.Context, project string, m types.Metrics) {
	project = strings.TrimSpace(project)
	if p.d.Counter == nil || project == "" || m.ObjectionsFaced <= 0 || !Countable(m.TopObjection) {
		return
	}
	log := logger.Component("processor").With("project", project).With("objection", m.TopObjection)

	updated, err := p.d.Counter.IncrementObjection(ctx, project, m.TopObjection)
	if err != nil {
		log.WithError(err).Warn("failed to update objection count")
		return
	}
	if updated {
		log.Info("objection count updated")
	}
}

// Countable reports whether label names a real objection rather than a
// default or sentinel value.
func Countable(label string) bool {
	switch strings.TrimSpace(label) {
	case "", "None", types.NoObjection, types.FailedObjection:
		return false
	}
	return true
}
