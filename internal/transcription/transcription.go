package transcription

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"sales-call-insights-go/internal/config"
	"sales-call-insights-go/internal/logger"
	"sales-call-insights-go/internal/scratch"
	"sales-call-insights-go/internal/types"
)

// Transcriber turns a local audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// New returns the configured transcriber. Mock mode via USE_MOCK_TRANSCRIBE=true.
func New(cfg config.TranscriptionConfig) Transcriber {
	if cfg.Mock {
		return Mock{}
	}
	return NewWhisper(cfg)
}

// Whisper calls an OpenAI-compatible /audio/transcriptions endpoint.
type Whisper struct {
	baseURL  string
	apiKey   string
	model    string
	language string
	maxRetry time.Duration
	client   *http.Client
}

func NewWhisper(cfg config.TranscriptionConfig) *Whisper {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Whisper{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		language: cfg.Language,
		maxRetry: time.Duration(cfg.MaxRetrySeconds) * time.Second,
		client:   &http.Client{Timeout: timeout},
	}
}

// Transcribe uploads path and returns the plain-text transcript.
func (w *Whisper) Transcribe(ctx context.Context, path string) (string, error) {
	log := logger.Component("transcription").With("path", path)

	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return "", types.NotFoundError(path)
	}
	log.WithField("size_mb", fmt.Sprintf("%.2f", float64(fi.Size())/(1024*1024))).Info("starting transcription")

	var text string
	op := func() error {
		body, contentType, err := w.form(path)
		if err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", body)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)
		if w.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+w.apiKey)
		}

		resp, err := w.client.Do(req)
		if err != nil {
			log.WithError(err).Warn("transcription request failed")
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			log.WithError(err).Warn("transcription response read failed")
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(string(b)))
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(b))))
		}
		text = string(b)
		return nil
	}

	var bo backoff.BackOff = &backoff.StopBackOff{}
	if w.maxRetry > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.MaxElapsedTime = w.maxRetry
		bo = eb
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", types.NewError(types.KindTranscription, "failed to transcribe audio", err)
	}

	log.WithField("chars", len(text)).Info("transcription completed")
	return strings.TrimSpace(text), nil
}

// form builds a fresh multipart body; each retry needs its own reader.
func (w *Whisper) form(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var b bytes.Buffer
	mw := multipart.NewWriter(&b)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	_ = mw.WriteField("model", w.model)
	if w.language != "" {
		_ = mw.WriteField("language", w.language)
	}
	_ = mw.WriteField("response_format", "text")
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &b, mw.FormDataContentType(), nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 300 {
		return s[:300]
	}
	return s
}

// Mock returns a canned transcript for any existing file.
type Mock struct {
	Text string
}

func (m Mock) Transcribe(_ context.Context, path string) (string, error) {
	if !scratch.Exists(path) {
		return "", types.NotFoundError(path)
	}
	if m.Text != "" {
		return m.Text, nil
	}
	return "MOCK TRANSCRIPT: Customer likes the location but says the price is too high and asks about possession dates.", nil
}
