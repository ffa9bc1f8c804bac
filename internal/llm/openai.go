package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rotisserie/eris"

	"sales-call-insights-go/internal/logger"
)

// OpenAI calls an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	baseURL string
	apiKey  string
	opts    Options
	client  *http.Client
}

// NewOpenAI builds a chat completions client.
func NewOpenAI(baseURL, apiKey string, opts Options) *OpenAI {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &OpenAI{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
	}
}

func (o *OpenAI) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends one chat completion request. Transport failures and 5xx
// responses are retried with exponential backoff; 4xx responses are not.
func (o *OpenAI) Generate(ctx context.Context, system, prompt string) (string, error) {
	log := logger.Component("llm-openai").With("model", o.opts.Model)

	msgs := make([]chatMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: prompt})

	data, err := json.Marshal(chatRequest{
		Model:       o.opts.Model,
		Messages:    msgs,
		MaxTokens:   o.opts.MaxTokens,
		Temperature: o.opts.Temperature,
	})
	if err != nil {
		return "", eris.Wrap(err, "openai: marshal request")
	}
	log.WithField("payload_len", len(data)).Debug("llm request")

	var content string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := o.client.Do(req)
		if err != nil {
			log.WithError(err).Warn("llm request failed")
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("openai: read response: %w", err)
		}
		log.WithField("http_status", resp.StatusCode).Debug("llm response received")

		if resp.StatusCode >= 400 {
			statusErr := fmt.Errorf("openai: status %d: %s", resp.StatusCode, errorMessage(body))
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				// Permanent: don't retry on client errors
				return backoff.Permanent(statusErr)
			}
			return statusErr
		}

		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("openai: decode response: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return backoff.Permanent(eris.New("openai: response has no choices"))
		}
		content = parsed.Choices[0].Message.Content
		return nil
	}

	var b backoff.BackOff = &backoff.StopBackOff{}
	if o.opts.MaxRetry > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.MaxElapsedTime = o.opts.MaxRetry
		b = eb
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return "", eris.Wrap(err, "openai: chat completion")
	}
	return content, nil
}

func errorMessage(body []byte) string {
	var parsed chatResponse
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		s = s[:300]
	}
	return s
}
