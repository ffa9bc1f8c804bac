package insight

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-call-insights-go/internal/llm"
	"sales-call-insights-go/internal/types"
)

func TestBuildPrompt_WithKnowledge(t *testing.T) {
	p := BuildPrompt("Hello, is this a good time?", []string{"Nexus Mall proximity", "Clubhouse"}, []string{"Price"})

	assert.Contains(t, p, "KEY PROJECT ADVANTAGES TO HIGHLIGHT (mention if these were covered in the call):\n1. Nexus Mall proximity\n2. Clubhouse")
	assert.Contains(t, p, "COMMON OBJECTIONS TO WATCH FOR (note if these were raised in the call):\n1. Price")
	assert.Contains(t, p, "TRANSCRIPT:\nHello, is this a good time?\n")
	assert.Contains(t, p, "'PITCH SCORE: X/10'")
	assert.Contains(t, p, "1. [Objection text] - [Addressed: Yes/No] - [Handling: X/5]")
	assert.Contains(t, p, "- [Pro 1]: [Mentioned/Partially Mentioned/Not Mentioned] - [Explanation]")

	assert.Less(t, strings.Index(p, "KEY PROJECT ADVANTAGES"), strings.Index(p, "COMMON OBJECTIONS"))
	assert.Less(t, strings.Index(p, "COMMON OBJECTIONS"), strings.Index(p, "TRANSCRIPT:"))
}

func TestBuildPrompt_WithoutKnowledge(t *testing.T) {
	p := BuildPrompt("transcript", nil, nil)

	assert.NotContains(t, p, "KEY PROJECT ADVANTAGES")
	assert.NotContains(t, p, "COMMON OBJECTIONS")
	assert.True(t, strings.HasPrefix(p, "You are an expert sales call analyst."))
	for _, h := range []string{"PITCH SCORE", "PROS MENTIONED", "OBJECTIONS RAISED", "KEY STRENGTHS",
		"AREAS FOR IMPROVEMENT", "MISSED OPPORTUNITIES", "OBJECTION HANDLING",
		"CLOSING EFFECTIVENESS", "CUSTOMER ENGAGEMENT", "NEXT STEPS"} {
		assert.Contains(t, p, h)
	}
}

func TestGenerator_PassesSystemPrompt(t *testing.T) {
	m := &llm.Mock{Response: "PITCH SCORE: 5/10"}
	g := NewGenerator(m)

	out, err := g.Generate(context.Background(), "hi", []string{"Nexus Mall proximity"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "PITCH SCORE: 5/10", out)
	require.Equal(t, 1, m.Calls())
	assert.Contains(t, m.Prompts[0], "1. Nexus Mall proximity")
}

func TestGenerator_WrapsProviderError(t *testing.T) {
	m := &llm.Mock{Err: errors.New("rate limited")}
	_, err := NewGenerator(m).Generate(context.Background(), "hi", nil, nil)

	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindLLM))
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, 1, m.Calls())
}

func TestGenerator_EmptyReply(t *testing.T) {
	m := &llm.Mock{Response: "   "}
	_, err := NewGenerator(m).Generate(context.Background(), "hi", nil, nil)
	assert.True(t, types.IsKind(err, types.KindLLM))
}
