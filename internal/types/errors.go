package types

import (
	"errors"
	"fmt"
)

// ErrorKind names a class of fatal pipeline failure.
type ErrorKind string

const (
	KindFetch           ErrorKind = "FetchError"
	KindNotFound        ErrorKind = "NotFoundError"
	KindConversion      ErrorKind = "ConversionError"
	KindTranscription   ErrorKind = "TranscriptionError"
	KindEmptyTranscript ErrorKind = "EmptyTranscriptError"
	KindLLM             ErrorKind = "LlmError"
)

// PipelineError is a fatal failure of one pipeline step.
type PipelineError struct {
	Kind ErrorKind
	Msg  string
	// StatusCode is the remote HTTP status for FetchError, 0 otherwise.
	StatusCode int
	Err        error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewError builds a PipelineError of the given kind.
func NewError(kind ErrorKind, msg string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Msg: msg, Err: cause}
}

// FetchError reports a failed download; status is 0 for transport failures.
func FetchError(url string, status int, cause error) *PipelineError {
	msg := fmt.Sprintf("failed to fetch %q", url)
	if status != 0 {
		msg = fmt.Sprintf("failed to fetch %q (%d)", url, status)
	}
	return &PipelineError{Kind: KindFetch, Msg: msg, StatusCode: status, Err: cause}
}

// NotFoundError reports a missing local file.
func NotFoundError(path string) *PipelineError {
	return &PipelineError{Kind: KindNotFound, Msg: fmt.Sprintf("audio file not found: %s", path)}
}

// KindOf returns the taxonomy kind of err, or "" when err is not a PipelineError.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err is a PipelineError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
