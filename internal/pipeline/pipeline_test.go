package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-call-insights-go/internal/blob"
	"sales-call-insights-go/internal/store"
	"sales-call-insights-go/internal/types"
)

type fakeAnalyzer struct {
	mu     sync.Mutex
	fn     func(ref, project string) types.AnalysisResult
	refs   []string
	block  chan struct{}
	during func()
}

func (f *fakeAnalyzer) Analyze(_ context.Context, ref, project string) types.AnalysisResult {
	f.mu.Lock()
	f.refs = append(f.refs, ref)
	f.mu.Unlock()
	if f.during != nil {
		f.during()
	}
	if f.block != nil {
		<-f.block
	}
	if f.fn != nil {
		return f.fn(ref, project)
	}
	return types.NewResult("hello", "PITCH SCORE: 8/10", types.Metrics{Score: 8, TopObjection: types.NoObjection})
}

func failWith(msg string) func(string, string) types.AnalysisResult {
	return func(string, string) types.AnalysisResult {
		return types.FailedResult(types.NewError(types.KindLLM, msg, nil))
	}
}

func newTestRunner(t *testing.T, a Analyzer) (*Runner, *store.SQLite, string) {
	t.Helper()
	st, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	blobDir := t.TempDir()
	return NewRunner(st, blob.NewLocal(blobDir, "http://localhost:5000/recordings"), a), st, blobDir
}

func seed(t *testing.T, st store.RecordStore, url string, status types.Status) *types.Recording {
	t.Helper()
	rec := &types.Recording{
		ID:           "rec-" + strings.ReplaceAll(t.Name(), "/", "-") + "-" + filepath.Base(url),
		RepEmail:     "rep@example.com",
		RepName:      "Asha",
		RecordingURL: url,
		Project:      "Skyline",
		Status:       status,
	}
	rec.ApplyDefaults()
	require.NoError(t, st.CreateRecording(context.Background(), rec))
	return rec
}

func waitJob(t *testing.T, j *Job) {
	t.Helper()
	select {
	case <-j.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}
}

func TestSubmit_UploadsAndCreates(t *testing.T) {
	r, st, blobDir := newTestRunner(t, &fakeAnalyzer{})
	src := filepath.Join(t.TempDir(), "upload-123")
	require.NoError(t, os.WriteFile(src, []byte("audio"), 0o644))

	rec, err := r.Submit(context.Background(), NewRecording{
		RepEmail:  "rep@example.com",
		RepName:   "Asha",
		LocalPath: src,
		FileName:  "call.webm",
	})
	require.NoError(t, err)

	assert.Equal(t, types.StatusProcessing, rec.Status)
	assert.Equal(t, types.DefaultProject, rec.Project)
	assert.Equal(t, types.DefaultCustomerName, rec.CustomerName)
	assert.True(t, strings.HasPrefix(rec.RecordingURL, "http://localhost:5000/recordings/"))
	assert.True(t, strings.HasSuffix(rec.RecordingURL, "-call.webm"))

	entries, err := os.ReadDir(blobDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	got, err := st.GetRecording(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.RecordingURL, got.RecordingURL)
	assert.Equal(t, types.StatusProcessing, got.Status)
}

func TestSubmit_Invalid(t *testing.T) {
	r, st, blobDir := newTestRunner(t, &fakeAnalyzer{})

	_, err := r.Submit(context.Background(), NewRecording{RepName: "Asha", RecordingURL: "https://cdn/x.mp3"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Contains(t, err.Error(), "email")

	recs, err := st.ListRecordings(context.Background(), store.RecordingFilter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
	entries, _ := os.ReadDir(blobDir)
	assert.Empty(t, entries)
}

func TestStart_Completed(t *testing.T) {
	a := &fakeAnalyzer{}
	r, st, _ := newTestRunner(t, a)
	rec := seed(t, st, "https://cdn.example.com/a.mp3", types.StatusProcessing)

	copyPath := filepath.Join(t.TempDir(), "upload-copy")
	require.NoError(t, os.WriteFile(copyPath, []byte("audio"), 0o644))

	job := r.Start(rec, copyPath)
	waitJob(t, job)

	assert.Equal(t, []string{copyPath}, a.refs)
	assert.NoFileExists(t, copyPath)
	assert.Equal(t, 8, job.Result().Score)

	got, err := st.GetRecording(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, got.Status)
	assert.Equal(t, 8, got.Score)
	assert.Equal(t, "hello", got.Transcript)
	assert.Nil(t, got.Error)
}

func TestStart_Failed(t *testing.T) {
	a := &fakeAnalyzer{fn: failWith("model unavailable")}
	r, st, _ := newTestRunner(t, a)
	rec := seed(t, st, "https://cdn.example.com/b.mp3", types.StatusProcessing)

	waitJob(t, r.Start(rec, ""))

	assert.Equal(t, []string{"https://cdn.example.com/b.mp3"}, a.refs)
	got, err := st.GetRecording(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Equal(t, 0, got.Score)
	assert.Equal(t, "Analysis failed: model unavailable", got.AIInsights)
	assert.Equal(t, types.FailedObjection, got.TopObjection)
	require.NotNil(t, got.Error)
	assert.True(t, strings.HasPrefix(got.Error.ID, "ERR-"))
	assert.Equal(t, "model unavailable", got.Error.Message)
	assert.False(t, got.Error.Timestamp.IsZero())
}

func TestStart_PanicBecomesFailure(t *testing.T) {
	a := &fakeAnalyzer{fn: func(string, string) types.AnalysisResult { panic("boom") }}
	r, st, _ := newTestRunner(t, a)
	rec := seed(t, st, "https://cdn.example.com/c.mp3", types.StatusProcessing)

	waitJob(t, r.Start(rec, ""))

	got, err := st.GetRecording(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Contains(t, got.Error.Message, "boom")
}

func TestWait(t *testing.T) {
	a := &fakeAnalyzer{block: make(chan struct{})}
	r, st, _ := newTestRunner(t, a)
	rec := seed(t, st, "https://cdn.example.com/d.mp3", types.StatusProcessing)

	job := r.Start(rec, "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)

	close(a.block)
	require.NoError(t, r.Wait(context.Background()))
	select {
	case <-job.Done():
	default:
		t.Fatal("Wait returned before the job finished")
	}
}

func TestRetry(t *testing.T) {
	t.Run("reanalyzed", func(t *testing.T) {
		a := &fakeAnalyzer{}
		r, st, _ := newTestRunner(t, a)
		rec := seed(t, st, "https://cdn.example.com/e.mp3", types.StatusFailed)

		var seen types.Status
		a.during = func() {
			got, err := st.GetRecording(context.Background(), rec.ID)
			if err == nil {
				seen = got.Status
			}
		}

		out, err := r.Retry(context.Background(), rec.ID)
		require.NoError(t, err)
		assert.Equal(t, types.StatusProcessing, seen)
		assert.Equal(t, types.StatusReanalyzed, out.Status)

		status, err := r.Status(context.Background(), rec.ID)
		require.NoError(t, err)
		assert.Equal(t, types.StatusReanalyzed, status.Status)
		assert.Equal(t, 8, status.Score)
	})

	t.Run("failed again", func(t *testing.T) {
		r, st, _ := newTestRunner(t, &fakeAnalyzer{fn: failWith("still broken")})
		rec := seed(t, st, "https://cdn.example.com/f.mp3", types.StatusCompleted)

		out, err := r.Retry(context.Background(), rec.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAnalysisFailed))
		assert.Equal(t, types.StatusFailed, out.Status)

		status, err := r.Status(context.Background(), rec.ID)
		require.NoError(t, err)
		assert.Equal(t, types.StatusFailed, status.Status)
		require.NotNil(t, status.Error)
		assert.Equal(t, "still broken", status.Error.Message)
	})

	t.Run("unknown id", func(t *testing.T) {
		r, _, _ := newTestRunner(t, &fakeAnalyzer{})
		_, err := r.Retry(context.Background(), "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestStatus_NotFound(t *testing.T) {
	r, _, _ := newTestRunner(t, &fakeAnalyzer{})
	_, err := r.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReanalyzeFailed(t *testing.T) {
	a := &fakeAnalyzer{fn: func(ref, _ string) types.AnalysisResult {
		if strings.Contains(ref, "bad") {
			return failWith("corrupt audio")(ref, "")
		}
		return types.NewResult("t", "PITCH SCORE: 6/10", types.Metrics{Score: 6})
	}}
	r, st, _ := newTestRunner(t, a)

	ok1 := seed(t, st, "https://cdn.example.com/ok1.mp3", types.StatusFailed)
	ok2 := seed(t, st, "http://cdn.example.com/ok2.mp3", types.StatusFailed)
	bad := seed(t, st, "https://cdn.example.com/bad.mp3", types.StatusFailed)
	local := seed(t, st, "/var/uploads/local.mp3", types.StatusFailed)
	done := seed(t, st, "https://cdn.example.com/done.mp3", types.StatusCompleted)

	rep, err := r.ReanalyzeFailed(context.Background(), BatchOptions{Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, BatchReport{Candidates: 3, Skipped: 1, Succeeded: 2, Failed: 1}, rep)

	statusOf := func(id string) types.Status {
		got, err := st.GetRecording(context.Background(), id)
		require.NoError(t, err)
		return got.Status
	}
	assert.Equal(t, types.StatusReanalyzed, statusOf(ok1.ID))
	assert.Equal(t, types.StatusReanalyzed, statusOf(ok2.ID))
	assert.Equal(t, types.StatusFailed, statusOf(bad.ID))
	assert.Equal(t, types.StatusFailed, statusOf(local.ID))
	assert.Equal(t, types.StatusCompleted, statusOf(done.ID))
	assert.Len(t, a.refs, 3)
}

func TestReanalyzeFailed_Nothing(t *testing.T) {
	r, _, _ := newTestRunner(t, &fakeAnalyzer{})
	rep, err := r.ReanalyzeFailed(context.Background(), BatchOptions{PerMinute: 30})
	require.NoError(t, err)
	assert.Equal(t, BatchReport{}, rep)
}
