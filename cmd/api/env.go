package main

import (
	"context"

	"github.com/rotisserie/eris"

	"sales-call-insights-go/internal/artifact"
	"sales-call-insights-go/internal/blob"
	"sales-call-insights-go/internal/insight"
	"sales-call-insights-go/internal/knowledge"
	"sales-call-insights-go/internal/llm"
	"sales-call-insights-go/internal/logger"
	"sales-call-insights-go/internal/pipeline"
	"sales-call-insights-go/internal/processor"
	"sales-call-insights-go/internal/scratch"
	"sales-call-insights-go/internal/store"
	"sales-call-insights-go/internal/transcoder"
	"sales-call-insights-go/internal/transcription"
)

// appEnv holds the wired components shared by commands.
type appEnv struct {
	Store     store.Store
	Blobs     blob.Store
	Processor *processor.Processor
	Runner    *pipeline.Runner
}

func (e *appEnv) Close() {
	if err := e.Store.Close(); err != nil {
		logger.New().WithError(err).Warn("failed to close store")
	}
}

// initStore opens only the database, for commands that do not analyze.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// initEnv wires the full analysis pipeline from cfg.
func initEnv(ctx context.Context) (*appEnv, error) {
	log := logger.New()

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	blobs, err := blob.New(cfg.Blob)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "blob store")
	}

	provider, err := llm.New(cfg.LLM)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "llm provider")
	}

	dir := scratch.Dir(cfg.Scratch.Dir)
	if err := dir.Ensure(); err != nil {
		_ = st.Close()
		return nil, err
	}

	proc := processor.New(processor.Deps{
		Resolver:    artifact.NewResolver(dir, nil),
		Normalizer:  transcoder.NewNormalizer(transcoder.FFmpeg{Path: cfg.FFmpeg.Path}, dir, cfg.FFmpeg.Format),
		Transcriber: transcription.New(cfg.Transcription),
		Enricher:    knowledge.NewEnricher(st),
		Insights:    insight.NewGenerator(provider),
		Counter:     st,
		RunTimeout:  cfg.Pipeline.RunTimeout(),
	})

	log.WithFields(map[string]interface{}{
		"store":        cfg.Store.Driver,
		"blob":         cfg.Blob.Driver,
		"llm":          provider.Name(),
		"mock_whisper": cfg.Transcription.Mock,
		"scratch_dir":  cfg.Scratch.Dir,
	}).Info("pipeline initialized")

	return &appEnv{
		Store:     st,
		Blobs:     blobs,
		Processor: proc,
		Runner:    pipeline.NewRunner(st, blobs, proc),
	}, nil
}
