// Package pipeline owns the Recording lifecycle: it creates records, runs
// analyses in the background and persists their outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"sales-call-insights-go/internal/blob"
	"sales-call-insights-go/internal/logger"
	"sales-call-insights-go/internal/scratch"
	"sales-call-insights-go/internal/store"
	"sales-call-insights-go/internal/types"
)

var (
	// ErrInvalid wraps validation failures of a submission.
	ErrInvalid = errors.New("invalid recording")
	// ErrAnalysisFailed is returned by Retry when the rerun ends in failure.
	ErrAnalysisFailed = errors.New("analysis failed")
)

// Analyzer runs one analysis.
type Analyzer interface {
	Analyze(ctx context.Context, ref, project string) types.AnalysisResult
}

// NewRecording is an upload waiting to become a Recording.
type NewRecording struct {
	CustomerName  string
	CustomerPhone string
	RepEmail      string
	RepName       string
	Project       string

	// LocalPath is an uploaded file to push to the blob store. When empty,
	// RecordingURL must already point at the artifact.
	LocalPath    string
	FileName     string
	RecordingURL string
}

// Runner drives analyses for stored recordings.
type Runner struct {
	records  store.RecordStore
	blobs    blob.Store
	analyzer Analyzer

	wg sync.WaitGroup
}

func NewRunner(records store.RecordStore, blobs blob.Store, a Analyzer) *Runner {
	return &Runner{records: records, blobs: blobs, analyzer: a}
}

// Submit validates in, uploads its artifact and stores a new record in the
// processing state. It does not start the analysis.
func (r *Runner) Submit(ctx context.Context, in NewRecording) (*types.Recording, error) {
	rec := &types.Recording{
		ID:            uuid.NewString(),
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		RepEmail:      in.RepEmail,
		RepName:       in.RepName,
		Project:       in.Project,
		RecordingURL:  in.RecordingURL,
		Status:        types.StatusProcessing,
	}
	if in.LocalPath != "" {
		rec.RecordingURL = in.LocalPath
	}
	rec.ApplyDefaults()
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, err.Error())
	}

	if in.LocalPath != "" {
		if r.blobs == nil {
			return nil, eris.New("pipeline: no blob store configured")
		}
		name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(orDefault(in.FileName, in.LocalPath)))
		u, err := r.blobs.Upload(ctx, in.LocalPath, name)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: upload recording")
		}
		rec.RecordingURL = u
	}

	if err := r.records.CreateRecording(ctx, rec); err != nil {
		return nil, eris.Wrap(err, "pipeline: create recording")
	}
	logger.Component("pipeline").With("recording_id", rec.ID).With("project", rec.Project).Info("recording created")
	return rec, nil
}

// Job is one background analysis.
type Job struct {
	ID string

	done   chan struct{}
	result types.AnalysisResult
}

// Done is closed once the outcome has been persisted.
func (j *Job) Done() <-chan struct{} { return j.done }

// Result is valid after Done is closed.
func (j *Job) Result() types.AnalysisResult {
	<-j.done
	return j.result
}

// Start analyzes rec in the background, detached from any request context.
// When localCopy is set it is analyzed instead of the stored URL and removed
// afterwards.
func (r *Runner) Start(rec *types.Recording, localCopy string) *Job {
	job := &Job{ID: rec.ID, done: make(chan struct{})}
	cp := *rec

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(job.done)

		log := logger.Component("pipeline").With("recording_id", cp.ID)
		if localCopy != "" {
			defer func() {
				if err := scratch.Remove(localCopy); err != nil {
					log.WithError(err).Warn("failed to remove upload copy")
				}
			}()
		}

		ref := cp.RecordingURL
		if localCopy != "" {
			ref = localCopy
		}
		job.result = r.run(context.Background(), &cp, ref, types.StatusCompleted)
	}()
	return job
}

// Wait blocks until every started job has finished or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry reruns the analysis of a stored recording synchronously. The record
// passes through processing and ends reanalyzed or failed; in the latter case
// the returned error wraps ErrAnalysisFailed.
func (r *Runner) Retry(ctx context.Context, id string) (*types.Recording, error) {
	rec, err := r.records.GetRecording(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Status = types.StatusProcessing
	if err := r.records.SaveRecording(ctx, rec); err != nil {
		return nil, eris.Wrapf(err, "pipeline: mark %s processing", id)
	}

	res := r.run(ctx, rec, rec.RecordingURL, types.StatusReanalyzed)
	if res.Failed() {
		return rec, fmt.Errorf("%w: %s", ErrAnalysisFailed, res.Error)
	}
	return rec, nil
}

// StatusReport is what the status endpoint returns.
type StatusReport struct {
	ID     string           `json:"recordingId"`
	Status types.Status     `json:"status"`
	Score  int              `json:"score"`
	Error  *types.ErrorInfo `json:"error,omitempty"`
}

// Status reports the stored lifecycle state of a recording.
func (r *Runner) Status(ctx context.Context, id string) (StatusReport, error) {
	rec, err := r.records.GetRecording(ctx, id)
	if err != nil {
		return StatusReport{}, err
	}
	return StatusReport{ID: rec.ID, Status: rec.Status, Score: rec.Score, Error: rec.Error}, nil
}

// run performs one analysis of rec and persists the outcome. Panics in the
// analyzer are turned into a failed record.
func (r *Runner) run(ctx context.Context, rec *types.Recording, ref string, success types.Status) (res types.AnalysisResult) {
	log := logger.Component("pipeline").With("recording_id", rec.ID)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			log.WithField("stack", string(debug.Stack())).Errorf("analysis panicked: %v", p)
			res = types.FailedResult(fmt.Errorf("internal error: %v", p))
		}
		r.persist(ctx, rec, res, success)
		log.WithField("status", rec.Status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Info("analysis finished")
	}()

	return r.analyzer.Analyze(ctx, ref, rec.Project)
}

func (r *Runner) persist(ctx context.Context, rec *types.Recording, res types.AnalysisResult, success types.Status) {
	rec.ApplyResult(res)
	if res.Failed() {
		rec.Status = types.StatusFailed
		rec.Error = &types.ErrorInfo{
			ID:        "ERR-" + uuid.NewString(),
			Message:   res.Error,
			Timestamp: time.Now().UTC(),
		}
	} else {
		rec.Status = success
		rec.Error = nil
	}

	// The request that triggered a retry may already be gone; the outcome is still stored.
	if err := r.records.SaveRecording(context.WithoutCancel(ctx), rec); err != nil {
		logger.Component("pipeline").With("recording_id", rec.ID).
			WithError(err).Error("failed to persist analysis outcome")
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
