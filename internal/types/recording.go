package types

import (
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle state of a Recording.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusReanalyzed Status = "reanalyzed"
)

// Terminal reports whether no pipeline run is expected to change the record.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusReanalyzed
}

const (
	DefaultCustomerName  = "Customer"
	DefaultCustomerPhone = "N/A"
	DefaultProject       = "General"

	// NoObjection is the top objection when the analysis names none.
	NoObjection = "No major objections identified"
	// FailedObjection is the top objection sentinel of a failed analysis.
	FailedObjection = "Analysis failed"

	MaxScore = 10
)

// ErrorInfo describes the last pipeline failure of a Recording.
type ErrorInfo struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Recording is one uploaded sales call and its derived analysis.
type Recording struct {
	ID            string    `json:"id"`
	CustomerName  string    `json:"name"`
	CustomerPhone string    `json:"phone"`
	RepEmail      string    `json:"email"`
	RepName       string    `json:"userName"`
	Project       string    `json:"project"`
	RecordingURL  string    `json:"recordingUrl"`
	SubmittedAt   time.Time `json:"date"`

	Transcript string `json:"transcript"`
	AIInsights string `json:"aiInsights"`

	Score             int    `json:"score"`
	MissedPros        int    `json:"missedPros"`
	ProsMentioned     int    `json:"prosMentioned"`
	TopObjection      string `json:"topObjection"`
	ObjectionsFaced   int    `json:"objectionsFaced"`
	ObjectionsCleared int    `json:"objectionsCleared"`

	Status Status     `json:"status"`
	Error  *ErrorInfo `json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ApplyDefaults trims the free-text fields and fills the optional ones.
func (r *Recording) ApplyDefaults() {
	r.CustomerName = orDefault(r.CustomerName, DefaultCustomerName)
	r.CustomerPhone = orDefault(r.CustomerPhone, DefaultCustomerPhone)
	r.Project = orDefault(r.Project, DefaultProject)
	r.RepEmail = strings.TrimSpace(r.RepEmail)
	r.RepName = strings.TrimSpace(r.RepName)
	r.RecordingURL = strings.TrimSpace(r.RecordingURL)
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = StatusProcessing
	}
}

// Validate checks the fields every stored Recording must carry.
func (r *Recording) Validate() error {
	var missing []string
	if strings.TrimSpace(r.RecordingURL) == "" {
		missing = append(missing, "recordingUrl")
	}
	if strings.TrimSpace(r.RepEmail) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(r.RepName) == "" {
		missing = append(missing, "userName")
	}
	if len(missing) > 0 {
		return errors.New("missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}

// ApplyResult copies an analysis outcome onto the record. Status is not touched.
func (r *Recording) ApplyResult(res AnalysisResult) {
	r.Transcript = res.Transcript
	r.AIInsights = res.AIInsights
	r.Score = ClampScore(res.Score)
	r.MissedPros = res.MissedPros
	r.ProsMentioned = res.ProsMentioned
	r.TopObjection = res.TopObjection
	r.ObjectionsFaced = res.ObjectionsFaced
	r.ObjectionsCleared = res.ObjectionsCleared
}

// ClampScore bounds a pitch score to [0, MaxScore].
func ClampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}

// ProjectKnowledge is a project's known selling points and objections together
// with how often each objection was the top one in an analyzed call.
type ProjectKnowledge struct {
	Project         string         `json:"project"`
	Pros            []string       `json:"pros"`
	Objections      []string       `json:"objections"`
	ObjectionCounts map[string]int `json:"objectionCounts"`
}

// Metrics is the typed data extracted from a model's free-text analysis.
type Metrics struct {
	Score             int    `json:"score"`
	MissedPros        int    `json:"missedPros"`
	TopObjection      string `json:"topObjection"`
	ObjectionsFaced   int    `json:"objectionsFaced"`
	ObjectionsCleared int    `json:"objectionsCleared"`
	ProsMentioned     int    `json:"prosMentioned"`
}

// AnalysisResult is returned by every analysis run, successful or not.
// A failed run carries Error and the sentinel values from FailedResult.
type AnalysisResult struct {
	Transcript        string    `json:"transcript"`
	AIInsights        string    `json:"aiInsights"`
	Score             int       `json:"score"`
	MissedPros        int       `json:"missedPros"`
	TopObjection      string    `json:"topObjection"`
	ObjectionsFaced   int       `json:"objectionsFaced"`
	ObjectionsCleared int       `json:"objectionsCleared"`
	ProsMentioned     int       `json:"prosMentioned"`
	Error             string    `json:"error,omitempty"`
	ErrorKind         ErrorKind `json:"errorKind,omitempty"`
}

// Failed reports whether the run ended in the failure sentinel.
func (r AnalysisResult) Failed() bool {
	return r.Error != ""
}

// FailedResult builds the sentinel result for a run aborted by err.
func FailedResult(err error) AnalysisResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return AnalysisResult{
		AIInsights:   "Analysis failed: " + msg,
		TopObjection: FailedObjection,
		Error:        msg,
		ErrorKind:    KindOf(err),
	}
}

// NewResult combines a transcript, the raw insight text and its metrics.
func NewResult(transcript, insights string, m Metrics) AnalysisResult {
	return AnalysisResult{
		Transcript:        transcript,
		AIInsights:        insights,
		Score:             ClampScore(m.Score),
		MissedPros:        m.MissedPros,
		TopObjection:      m.TopObjection,
		ObjectionsFaced:   m.ObjectionsFaced,
		ObjectionsCleared: m.ObjectionsCleared,
		ProsMentioned:     m.ProsMentioned,
	}
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
