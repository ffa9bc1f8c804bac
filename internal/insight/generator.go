// Package insight asks a language model for a structured coaching analysis of
// a call transcript.
package insight

import (
	"context"
	"strings"

	"sales-call-insights-go/internal/llm"
	"sales-call-insights-go/internal/logger"
	"sales-call-insights-go/internal/types"
)

// Generator produces raw insight text for a transcript.
type Generator struct {
	provider llm.Provider
}

func NewGenerator(p llm.Provider) *Generator {
	return &Generator{provider: p}
}

// Generate returns the model's analysis. Any provider failure or an empty
// reply is reported as an LlmError; the call is not retried here.
func (g *Generator) Generate(ctx context.Context, transcript string, pros, objections []string) (string, error) {
	log := logger.Component("insight").With("provider", g.provider.Name())

	prompt := BuildPrompt(transcript, pros, objections)
	log.WithField("prompt_len", len(prompt)).Debug("requesting analysis")

	out, err := g.provider.Generate(ctx, SystemPrompt, prompt)
	if err != nil {
		return "", types.NewError(types.KindLLM, "failed to analyze call", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", types.NewError(types.KindLLM, "model returned an empty analysis", nil)
	}

	log.WithField("insights_len", len(out)).Info("analysis generated")
	return out, nil
}
