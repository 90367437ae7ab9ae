package instruction

import (
	"strings"
	"testing"

	"github.com/jra3/taskgraph/internal/artifact"
)

func TestExtract_Empty(t *testing.T) {
	t.Parallel()
	_, ok := Extract(nil)
	if ok {
		t.Error("Extract() on empty log should yield none")
	}
}

func TestExtract_CandidateAPreferredAtExactly50Chars(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("a", 50) // exactly 50 chars, no ellipsis
	msgs := []artifact.UIMessage{
		{Type: "say", Say: "text", Text: text},
	}
	got, ok := Extract(msgs)
	if !ok {
		t.Fatal("Extract() expected a result")
	}
	if got != text {
		t.Errorf("Extract() = %q, want candidate A (%q) since len == 50 and no ellipsis", got, text)
	}
}

func TestExtract_CandidateAUnder50FallsBackToB(t *testing.T) {
	t.Parallel()
	short := strings.Repeat("a", 49)
	reqJSON := `{"request":"<task>\nreal instruction\n</task>"}`
	msgs := []artifact.UIMessage{
		{Type: "say", Say: "text", Text: short},
		{Say: "api_req_started", Text: reqJSON},
	}
	got, ok := Extract(msgs)
	if !ok {
		t.Fatal("Extract() expected a result")
	}
	if got != "real instruction" {
		t.Errorf("Extract() = %q, want fallback to candidate B", got)
	}
}

func TestExtract_EllipsisTriggersFallback(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("a", 60) + "..."
	reqJSON := `{"request":"<task>\nMISSION ARCHITECTURALE CRITIQUE : Refactoriser le système de cache\n</task>"}`
	msgs := []artifact.UIMessage{
		{Type: "say", Say: "text", Text: long},
		{Say: "api_req_started", Text: reqJSON},
	}
	got, ok := Extract(msgs)
	if !ok {
		t.Fatal("Extract() expected a result")
	}
	want := "MISSION ARCHITECTURALE CRITIQUE : Refactoriser le système de cache"
	if got != want {
		t.Errorf("Extract() = %q, want %q", got, want)
	}
	if strings.Contains(got, "<task>") || strings.Contains(got, "</task>") {
		t.Error("Extract() must not leak <task> tags")
	}
}

func TestExtract_TruncatesTo200(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("b", 300)
	msgs := []artifact.UIMessage{{Type: "say", Say: "text", Text: long}}
	got, ok := Extract(msgs)
	if !ok {
		t.Fatal("Extract() expected a result")
	}
	if len(got) != 200 {
		t.Errorf("Extract() len = %d, want 200", len(got))
	}
}

func TestExtract_NoCandidate(t *testing.T) {
	t.Parallel()
	msgs := []artifact.UIMessage{{Type: "say", Say: "text", Text: "short"}}
	_, ok := Extract(msgs)
	if ok {
		t.Error("Extract() should yield none when candidate A is too short and there's no B")
	}
}
