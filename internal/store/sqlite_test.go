package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-call-insights-go/internal/config"
	"sales-call-insights-go/internal/types"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newRecording(id, project string) *types.Recording {
	rec := &types.Recording{
		ID:           id,
		RepEmail:     "rep@example.com",
		RepName:      "Asha",
		Project:      project,
		RecordingURL: "https://cdn.example.com/" + id + ".mp3",
	}
	rec.ApplyDefaults()
	return rec
}

func TestSQLite_RecordingRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	rec := newRecording("r1", "Skyline")
	require.NoError(t, s.CreateRecording(ctx, rec))

	got, err := s.GetRecording(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusProcessing, got.Status)
	assert.Equal(t, types.DefaultCustomerName, got.CustomerName)
	assert.Equal(t, types.DefaultCustomerPhone, got.CustomerPhone)
	assert.Equal(t, "Skyline", got.Project)
	assert.Nil(t, got.Error)
	assert.WithinDuration(t, rec.SubmittedAt, got.SubmittedAt, time.Millisecond)

	got.ApplyResult(types.AnalysisResult{
		Transcript: "hello", AIInsights: "PITCH SCORE: 8/10", Score: 8,
		TopObjection: "Price", ObjectionsFaced: 2, ObjectionsCleared: 1, ProsMentioned: 3, MissedPros: 1,
	})
	got.Status = types.StatusCompleted
	require.NoError(t, s.SaveRecording(ctx, got))

	again, err := s.GetRecording(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, again.Status)
	assert.Equal(t, 8, again.Score)
	assert.Equal(t, "Price", again.TopObjection)
	assert.Equal(t, 2, again.ObjectionsFaced)
	assert.Equal(t, 1, again.ObjectionsCleared)
	assert.Equal(t, 3, again.ProsMentioned)
	assert.Equal(t, 1, again.MissedPros)
}

func TestSQLite_SaveErrorInfo(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	rec := newRecording("r2", "")
	require.NoError(t, s.CreateRecording(ctx, rec))

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec.Status = types.StatusFailed
	rec.Error = &types.ErrorInfo{ID: "ERR-1", Message: "audio conversion failed", Timestamp: ts}
	require.NoError(t, s.SaveRecording(ctx, rec))

	got, err := s.GetRecording(ctx, "r2")
	require.NoError(t, err)
	require.NotNil(t, got.Error)
	assert.Equal(t, "ERR-1", got.Error.ID)
	assert.Equal(t, "audio conversion failed", got.Error.Message)
	assert.True(t, ts.Equal(got.Error.Timestamp))

	got.Error = nil
	got.Status = types.StatusReanalyzed
	require.NoError(t, s.SaveRecording(ctx, got))
	cleared, err := s.GetRecording(ctx, "r2")
	require.NoError(t, err)
	assert.Nil(t, cleared.Error)
}

func TestSQLite_NotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	_, err := s.GetRecording(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.SaveRecording(ctx, newRecording("missing", ""))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetProject(ctx, "Nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListRecordings(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	for i, tc := range []struct {
		id, project string
		status      types.Status
	}{
		{"a", "Skyline", types.StatusFailed},
		{"b", "Skyline", types.StatusCompleted},
		{"c", "Lakeview", types.StatusFailed},
	} {
		rec := newRecording(tc.id, tc.project)
		rec.Status = tc.status
		rec.SubmittedAt = time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.CreateRecording(ctx, rec))
	}

	all, err := s.ListRecordings(ctx, RecordingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)

	failed, err := s.ListRecordings(ctx, RecordingFilter{Status: types.StatusFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 2)

	sky, err := s.ListRecordings(ctx, RecordingFilter{Project: "Skyline", Status: types.StatusFailed})
	require.NoError(t, err)
	require.Len(t, sky, 1)
	assert.Equal(t, "a", sky[0].ID)

	limited, err := s.ListRecordings(ctx, RecordingFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_ProjectKnowledge(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	require.NoError(t, s.UpsertProject(ctx, types.ProjectKnowledge{
		Project: "Skyline", Pros: []string{"Nexus Mall proximity"}, Objections: []string{"Price"},
	}))
	require.NoError(t, s.UpsertProject(ctx, types.ProjectKnowledge{
		Project: "Skyline", Pros: []string{"Nexus Mall proximity", "Clubhouse"},
	}))

	pk, err := s.GetProject(ctx, "Skyline")
	require.NoError(t, err)
	assert.Equal(t, []string{"Nexus Mall proximity", "Clubhouse"}, pk.Pros)
	assert.Empty(t, pk.Objections)
	assert.Empty(t, pk.ObjectionCounts)
}

func TestSQLite_IncrementObjection(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	ok, err := s.IncrementObjection(ctx, "Unknown", "Price")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.UpsertProject(ctx, types.ProjectKnowledge{Project: "Skyline"}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.IncrementObjection(ctx, "Skyline", "Price")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	ok, err = s.IncrementObjection(ctx, "Skyline", "Parking")
	require.NoError(t, err)
	assert.True(t, ok)

	pk, err := s.GetProject(ctx, "Skyline")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Price": 10, "Parking": 1}, pk.ObjectionCounts)
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.CreateRecording(ctx, newRecording("keep", "")))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.GetRecording(ctx, "keep")
	assert.NoError(t, err)
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	_ = st.Close()

	_, err = Open(ctx, config.StoreConfig{Driver: "postgres"})
	assert.Error(t, err)

	_, err = Open(ctx, config.StoreConfig{Driver: "mongo"})
	assert.Error(t, err)
}
