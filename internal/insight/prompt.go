package insight

import (
	"fmt"
	"strings"
)

// SystemPrompt fixes the model's persona.
const SystemPrompt = "You are an expert sales trainer and call analyst with 20+ years of experience in sales coaching and performance evaluation. You are fluent in English, Hindi, and Kannada, and can analyze transcripts in any language. Always return your analysis in English."

const analysisTemplate = `You are an expert sales call analyst. The following sales call transcript may be in English, Hindi, Kannada, or any other language. If the transcript is not in English, translate and analyze it as needed. Always provide your analysis and all answers in English.

%s%s

TRANSCRIPT:
%s

YOUR TASKS:

1. PITCH SCORE (0-10): Rate the sales performance out of 10 based on:
   - How well the salesperson explained the project pros
   - How effectively they handled objections
   - Overall sales technique and professionalism

2. PROS MENTIONED: List specific project advantages that were mentioned in the conversation. For each, note if it was:
   - Clearly explained
   - Partially mentioned
   - Not mentioned at all

3. OBJECTIONS RAISED: Extract ALL objections or concerns raised by the customer during the call. For each objection, note:
   - The specific objection
   - Whether it was successfully addressed
   - How well it was handled (1-5 rating)

4. KEY STRENGTHS: What the salesperson did well
5. AREAS FOR IMPROVEMENT: What could be better
6. MISSED OPPORTUNITIES: Important selling points not mentioned
7. OBJECTION HANDLING: Overall effectiveness in handling objections
8. CLOSING EFFECTIVENESS: Quality of closing attempts (1-5 rating)
9. CUSTOMER ENGAGEMENT: Level of customer interest and engagement (1-5 rating)
10. NEXT STEPS: Recommended follow-up actions

IMPORTANT: Format your response with clear section headers in ALL CAPS. For the PITCH SCORE, use the exact format: 'PITCH SCORE: X/10' where X is the score.

For OBJECTIONS RAISED, use this format:
OBJECTIONS RAISED:
1. [Objection text] - [Addressed: Yes/No] - [Handling: X/5]

For PROS MENTIONED, use this format:
PROS MENTIONED:
- [Pro 1]: [Mentioned/Partially Mentioned/Not Mentioned] - [Explanation]

Be specific and reference parts of the conversation to support your analysis.`

// BuildPrompt renders the analysis prompt. Known pros and objections are
// listed as numbered blocks only when non-empty.
func BuildPrompt(transcript string, pros, objections []string) string {
	prosBlock := enumerate("KEY PROJECT ADVANTAGES TO HIGHLIGHT (mention if these were covered in the call):", pros)
	objectionsBlock := enumerate("COMMON OBJECTIONS TO WATCH FOR (note if these were raised in the call):", objections)
	return fmt.Sprintf(analysisTemplate, prosBlock, objectionsBlock, transcript)
}

func enumerate(title string, items []string) string {
	if len(items) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(title)
	for i, it := range items {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, it)
	}
	return sb.String()
}
