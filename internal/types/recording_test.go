package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecording_ApplyDefaults(t *testing.T) {
	r := Recording{CustomerName: "  ", RepEmail: " rep@example.com ", RepName: "Asha", RecordingURL: " https://x/a.mp3 "}
	r.ApplyDefaults()

	assert.Equal(t, DefaultCustomerName, r.CustomerName)
	assert.Equal(t, DefaultCustomerPhone, r.CustomerPhone)
	assert.Equal(t, DefaultProject, r.Project)
	assert.Equal(t, "rep@example.com", r.RepEmail)
	assert.Equal(t, "https://x/a.mp3", r.RecordingURL)
	assert.Equal(t, StatusProcessing, r.Status)
	assert.False(t, r.SubmittedAt.IsZero())
}

func TestRecording_Validate(t *testing.T) {
	r := Recording{}
	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recordingUrl")
	assert.Contains(t, err.Error(), "email")
	assert.Contains(t, err.Error(), "userName")

	r = Recording{RecordingURL: "a.mp3", RepEmail: "e", RepName: "n"}
	assert.NoError(t, r.Validate())
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, ClampScore(-3))
	assert.Equal(t, 7, ClampScore(7))
	assert.Equal(t, MaxScore, ClampScore(42))
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusReanalyzed.Terminal())
}

func TestFailedResult(t *testing.T) {
	res := FailedResult(NewError(KindConversion, "audio conversion failed", errors.New("exit status 1")))

	assert.True(t, res.Failed())
	assert.Equal(t, KindConversion, res.ErrorKind)
	assert.Equal(t, "audio conversion failed: exit status 1", res.Error)
	assert.Equal(t, "Analysis failed: audio conversion failed: exit status 1", res.AIInsights)
	assert.Equal(t, FailedObjection, res.TopObjection)
	assert.Zero(t, res.Score)
	assert.Empty(t, res.Transcript)
}

func TestApplyResult_ClampsScore(t *testing.T) {
	var r Recording
	r.ApplyResult(NewResult("t", "i", Metrics{Score: 15, TopObjection: "Price"}))
	assert.Equal(t, MaxScore, r.Score)
	assert.Equal(t, "Price", r.TopObjection)
	assert.Equal(t, "t", r.Transcript)
}

func TestErrorKinds(t *testing.T) {
	fe := FetchError("https://x/a.mp3", 403, nil)
	assert.Equal(t, 403, fe.StatusCode)
	assert.Contains(t, fe.Error(), "(403)")

	wrapped := fmt.Errorf("run: %w", NotFoundError("/tmp/a.mp3"))
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(wrapped, KindFetch))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, KindNotFound))
}
