package llm

import (
	"context"
	"sync"
)

// MockAnalysis is the deterministic analysis the mock provider returns.
const MockAnalysis = `PITCH SCORE: 7/10

PROS MENTIONED:
- [Location]: Mentioned - The representative described the neighbourhood.
- [Amenities]: Partially Mentioned - Only the pool came up.

OBJECTIONS RAISED:
1. Price too high - Addressed: Yes - Handling: 4/5
2. Possession timeline unclear - Addressed: No - Handling: 2/5

KEY STRENGTHS:
- Warm opening and good rapport

AREAS FOR IMPROVEMENT:
- Quantify the value before discussing price

MISSED OPPORTUNITIES:
- Did not offer a site visit
- Did not mention financing partners

OBJECTION HANDLING:
Price was reframed well; the timeline concern was left open.

CLOSING EFFECTIVENESS:
No firm next meeting was booked.

CUSTOMER ENGAGEMENT:
The customer asked several detailed questions.

NEXT STEPS:
- Share the payment plan and schedule a visit`

// Mock returns a fixed response, or Err when set. It records the prompts it saw.
type Mock struct {
	Response string
	Err      error

	mu      sync.Mutex
	Prompts []string
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Generate(_ context.Context, _, prompt string) (string, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if m.Response == "" {
		return MockAnalysis, nil
	}
	return m.Response, nil
}

// Calls returns how many times Generate ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}
