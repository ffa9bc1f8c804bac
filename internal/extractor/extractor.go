// Package extractor derives typed call metrics from the free-text analysis a
// language model returns. Every rule degrades to a zero value; nothing here
// returns an error or panics on malformed input.
package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"sales-call-insights-go/internal/types"
)

// Section names the analysis prompt asks the model to use.
const (
	SectionPitchScore          = "PITCH SCORE"
	SectionProsMentioned       = "PROS MENTIONED"
	SectionObjectionsRaised    = "OBJECTIONS RAISED"
	SectionKeyStrengths        = "KEY STRENGTHS"
	SectionAreasForImprovement = "AREAS FOR IMPROVEMENT"
	SectionMissedOpportunities = "MISSED OPPORTUNITIES"
	SectionObjectionHandling   = "OBJECTION HANDLING"
	SectionClosing             = "CLOSING EFFECTIVENESS"
	SectionEngagement          = "CUSTOMER ENGAGEMENT"
	SectionNextSteps           = "NEXT STEPS"
)

var knownSections = map[string]bool{
	SectionPitchScore:          true,
	SectionProsMentioned:       true,
	SectionObjectionsRaised:    true,
	SectionKeyStrengths:        true,
	SectionAreasForImprovement: true,
	SectionMissedOpportunities: true,
	SectionObjectionHandling:   true,
	SectionClosing:             true,
	SectionEngagement:          true,
	SectionNextSteps:           true,
}

var (
	scoreRe         = regexp.MustCompile(`(?i)PITCH\s+SCORE[\s:*]*(\d{1,3})\s*/\s*10`)
	scoreFallbackRe = regexp.MustCompile(`(?i)\bSCORE[\s:*]*(\d{1,3})`)

	bulletRe    = regexp.MustCompile(`^\s*[-•*]\s+\S`)
	numberedRe  = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)
	numPrefixRe = regexp.MustCompile(`^\d+[.)]\s*`)
	addressedRe = regexp.MustCompile(`(?i)addressed\W*yes`)
	mentionedRe = regexp.MustCompile(`(?i)^\s*[-•*]\s*(.+?):\s*\[?\s*(partially\s+mentioned|mentioned)\b`)

	objectionMarkerRe = regexp.MustCompile(`(?i)\b(?:objections?|concerns?|issues?)\b[^\S\n]*:[^\S\n]*([^\n]+)`)
)

// Extract parses all metrics out of an analysis text.
func Extract(text string) types.Metrics {
	secs := Sections(text)
	return types.Metrics{
		Score:             Score(text),
		MissedPros:        missedPros(secs),
		TopObjection:      topObjection(text, secs),
		ObjectionsFaced:   len(objectionEntries(secs)),
		ObjectionsCleared: objectionsCleared(secs),
		ProsMentioned:     prosMentioned(secs),
	}
}

// Score returns the pitch score clamped to [0, 10], or 0 when none is found.
func Score(text string) int {
	if m := scoreRe.FindStringSubmatch(text); m != nil {
		return atoiClamp(m[1])
	}
	if m := scoreFallbackRe.FindStringSubmatch(text); m != nil {
		return atoiClamp(m[1])
	}
	return 0
}

func atoiClamp(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return types.ClampScore(n)
}

// Sections splits text at its header lines and returns each section body keyed
// by upper-cased header name. When a header repeats the first one wins.
func Sections(text string) map[string]string {
	out := map[string]string{}
	var (
		name string
		body []string
	)
	flush := func() {
		if name == "" {
			return
		}
		if _, seen := out[name]; !seen {
			out[name] = strings.TrimSpace(strings.Join(body, "\n"))
		}
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if h, rest, ok := parseHeader(line); ok {
			flush()
			name, body = h, nil
			if rest != "" {
				body = append(body, rest)
			}
			continue
		}
		if name != "" {
			body = append(body, line)
		}
	}
	flush()
	return out
}

// parseHeader recognizes lines such as "OBJECTIONS RAISED:", "## 3. KEY STRENGTHS"
// or "**PITCH SCORE:** 7/10". It returns the upper-cased name and any text that
// follows the colon on the same line.
func parseHeader(line string) (string, string, bool) {
	s := strings.TrimSpace(line)
	if s == "" || bulletRe.MatchString(s) {
		return "", "", false
	}
	s = strings.TrimLeft(s, "# ")
	s = strings.TrimLeft(s, "*_ ")
	numbered := numPrefixRe.MatchString(s)
	s = numPrefixRe.ReplaceAllString(s, "")
	s = strings.TrimLeft(s, "*_ ")

	head, rest := s, ""
	if i := strings.Index(s, ":"); i >= 0 {
		head, rest = s[:i], s[i+1:]
	}
	head = strings.Trim(head, "*_# ")
	rest = strings.TrimSpace(strings.Trim(strings.TrimSpace(rest), "*_"))

	if !isCapsHeading(head) {
		return "", "", false
	}
	name := strings.ToUpper(strings.Join(strings.Fields(head), " "))
	// A numbered upper-case line is an objection like "1. EMI" unless it names a section.
	if numbered && !knownSections[name] {
		return "", "", false
	}
	return name, rest, true
}

func isCapsHeading(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 3
}

func lines(body string) []string {
	if body == "" {
		return nil
	}
	return strings.Split(body, "\n")
}

func missedPros(secs map[string]string) int {
	n := 0
	for _, l := range lines(secs[SectionMissedOpportunities]) {
		if bulletRe.MatchString(l) {
			n++
		}
	}
	return n
}

func objectionEntries(secs map[string]string) []string {
	var out []string
	for _, l := range lines(secs[SectionObjectionsRaised]) {
		if m := numberedRe.FindStringSubmatch(l); m != nil {
			out = append(out, strings.TrimSpace(m[1]))
		}
	}
	return out
}

func objectionsCleared(secs map[string]string) int {
	n := 0
	for _, e := range objectionEntries(secs) {
		if addressedRe.MatchString(e) {
			n++
		}
	}
	return n
}

func topObjection(text string, secs map[string]string) string {
	if entries := objectionEntries(secs); len(entries) > 0 {
		if label := cleanLabel(strings.SplitN(entries[0], " - ", 2)[0]); label != "" {
			return label
		}
	}
	if m := objectionMarkerRe.FindStringSubmatch(text); m != nil {
		if label := cleanLabel(m[1]); label != "" {
			return label
		}
	}
	return types.NoObjection
}

func cleanLabel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_ ")
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	return strings.TrimSpace(s)
}

func prosMentioned(secs map[string]string) int {
	n := 0
	for _, l := range lines(secs[SectionProsMentioned]) {
		if mentionedRe.MatchString(l) {
			n++
		}
	}
	return n
}
