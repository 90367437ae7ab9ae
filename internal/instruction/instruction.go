// Package instruction implements the Instruction Extractor (spec §4.C):
// recovering a task's initial user instruction from its UI-message log,
// with a prioritized fallback to a <task> block buried in a later
// api_req_started payload when the plain-text candidate looks truncated.
package instruction

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/jra3/taskgraph/internal/artifact"
)

const maxLen = 200
const minCandidateALen = 20
const bPreferenceMinLen = 50

var taskTagRE = regexp.MustCompile(`(?s)<task>(.*?)</task>`)
var envDetailsRE = regexp.MustCompile(`(?s)<environment_details>.*?</environment_details>`)

// Extract runs the single-pass, short-circuiting algorithm of spec §4.C
// over an ordered UI-message log and returns the emitted instruction, or
// ("", false) if none qualifies.
func Extract(messages []artifact.UIMessage) (string, bool) {
	candidateA, hasA := findCandidateA(messages)
	candidateB, hasB := findCandidateB(messages)

	var emitted string
	var ok bool
	switch {
	case hasB && (!hasA || strings.HasSuffix(candidateA, "...") || len(candidateA) < bPreferenceMinLen):
		emitted, ok = candidateB, true
	case hasA:
		emitted, ok = candidateA, true
	default:
		return "", false
	}

	emitted = stripTags(emitted)
	emitted = truncate(emitted, maxLen)
	return emitted, ok
}

func findCandidateA(messages []artifact.UIMessage) (string, bool) {
	for _, m := range messages {
		if m.Type == "say" && m.Say == "text" && len(m.Text) > minCandidateALen {
			return m.Text, true
		}
	}
	return "", false
}

// apiReqStartedPayload is the shape of an api_req_started record's text
// field once JSON-decoded.
type apiReqStartedPayload struct {
	Request string `json:"request"`
}

func findCandidateB(messages []artifact.UIMessage) (string, bool) {
	for _, m := range messages {
		if m.Say != "api_req_started" || m.Text == "" {
			continue
		}
		var payload apiReqStartedPayload
		if err := json.Unmarshal([]byte(m.Text), &payload); err != nil {
			continue
		}
		if payload.Request == "" {
			continue
		}
		match := taskTagRE.FindStringSubmatch(payload.Request)
		if match == nil {
			continue
		}
		trimmed := strings.TrimSpace(match[1])
		if trimmed == "" {
			continue
		}
		return trimmed, true
	}
	return "", false
}

// stripTags removes any surviving <task>/</task> markers and
// environment_details blocks, per spec §4.C.4.
func stripTags(s string) string {
	s = envDetailsRE.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "<task>", "")
	s = strings.ReplaceAll(s, "</task>", "")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
