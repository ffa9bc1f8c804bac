package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"sales-call-insights-go/internal/artifact"
	"sales-call-insights-go/internal/logger"
	"sales-call-insights-go/internal/store"
	"sales-call-insights-go/internal/types"
)

// BatchOptions bounds a bulk reanalysis.
type BatchOptions struct {
	Project     string
	Concurrency int
	// PerMinute caps how many runs start per minute; zero means unpaced.
	PerMinute int
	Limit     uint64
}

// BatchReport summarizes a bulk reanalysis.
type BatchReport struct {
	Candidates int   `json:"candidates"`
	Skipped    int   `json:"skipped"`
	Succeeded  int64 `json:"succeeded"`
	Failed     int64 `json:"failed"`
}

// ReanalyzeFailed reruns every failed recording whose artifact is a URL.
// Individual failures are recorded on their records and do not stop the batch.
func (r *Runner) ReanalyzeFailed(ctx context.Context, opts BatchOptions) (BatchReport, error) {
	log := logger.Component("pipeline.batch")

	recs, err := r.records.ListRecordings(ctx, store.RecordingFilter{
		Project: opts.Project,
		Status:  types.StatusFailed,
		Limit:   opts.Limit,
	})
	if err != nil {
		return BatchReport{}, eris.Wrap(err, "pipeline: list failed recordings")
	}

	var rep BatchReport
	var todo []types.Recording
	for _, rec := range recs {
		if !artifact.IsRemote(rec.RecordingURL) {
			rep.Skipped++
			log.With("recording_id", rec.ID).Warn("skipping recording without a remote artifact")
			continue
		}
		todo = append(todo, rec)
	}
	rep.Candidates = len(todo)
	if len(todo) == 0 {
		log.Info("no failed recordings to reanalyze")
		return rep, nil
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.PerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.PerMinute)), 1)
	}

	log.WithFields(map[string]interface{}{
		"recordings":  len(todo),
		"concurrency": concurrency,
		"per_minute":  opts.PerMinute,
	}).Info("reanalyzing failed recordings")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64
	for i := range todo {
		rec := &todo[i]
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			rec.Status = types.StatusProcessing
			if err := r.records.SaveRecording(gctx, rec); err != nil {
				failed.Add(1)
				log.With("recording_id", rec.ID).WithError(err).Error("failed to mark recording processing")
				return nil
			}
			if res := r.run(gctx, rec, rec.RecordingURL, types.StatusReanalyzed); res.Failed() {
				failed.Add(1)
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}

	err = g.Wait()
	rep.Succeeded, rep.Failed = succeeded.Load(), failed.Load()
	if err != nil {
		return rep, eris.Wrap(err, "pipeline: reanalyze batch")
	}

	log.WithFields(map[string]interface{}{
		"succeeded": rep.Succeeded,
		"failed":    rep.Failed,
		"skipped":   rep.Skipped,
	}).Info("batch complete")
	return rep, nil
}
