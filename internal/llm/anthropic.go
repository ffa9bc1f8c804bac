package llm

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"sales-call-insights-go/internal/logger"
)

// Anthropic generates completions with the Anthropic Messages API.
type Anthropic struct {
	client sdk.Client
	opts   Options
}

// NewAnthropic builds a client for the given key. Extra request options (a
// base URL in tests) are passed through to the SDK.
func NewAnthropic(apiKey string, opts Options, reqOpts ...option.RequestOption) *Anthropic {
	all := []option.RequestOption{option.WithAPIKey(apiKey)}
	if opts.Timeout > 0 {
		all = append(all, option.WithRequestTimeout(opts.Timeout))
	}
	all = append(all, reqOpts...)
	return &Anthropic{client: sdk.NewClient(all...), opts: opts}
}

func (a *Anthropic) Name() string { return "anthropic" }

// Generate sends a single message. The SDK retries rate limits and 5xx itself.
func (a *Anthropic) Generate(ctx context.Context, system, prompt string) (string, error) {
	params := sdk.MessageNewParams{
		Model:       sdk.Model(a.opts.Model),
		MaxTokens:   int64(a.opts.MaxTokens),
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
		Temperature: sdk.Float(a.opts.Temperature),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "anthropic: create message")
	}

	var sb strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}

	logger.Component("llm-anthropic").WithFields(map[string]interface{}{
		"model":         string(msg.Model),
		"input_tokens":  msg.Usage.InputTokens,
		"output_tokens": msg.Usage.OutputTokens,
	}).Debug("anthropic message complete")

	return sb.String(), nil
}
