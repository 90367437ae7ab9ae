package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jra3/taskgraph/internal/locator"
	"github.com/jra3/taskgraph/internal/skeleton"
)

func writeFixtureTask(t *testing.T, root, id, workspace, instruction string, prefixes ...string) {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	meta := `{"title":"task ` + id + `","workspace":"` + workspace + `"}`
	if err := os.WriteFile(filepath.Join(dir, "task_metadata.json"), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}

	var launches string
	for _, p := range prefixes {
		launches += `{"type":"say","say":"tool","text":"<new_task><message>` + p + `</message></new_task>"},`
	}
	var instr string
	if instruction != "" {
		instr = `{"type":"say","say":"text","text":"` + instruction + `"},`
	}
	ui := "[" + instr + launches + `{"type":"say","say":"tool","text":"padding message for size"}]`
	if err := os.WriteFile(filepath.Join(dir, "ui_messages.json"), []byte(ui), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEngine_RebuildAndPersist(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFixtureTask(t, root, "11111111-1111-4111-8111-111111111111", "/ws/a", "",
		"Build the widget service end to end please")
	writeFixtureTask(t, root, "22222222-2222-4222-8222-222222222222", "/ws/a",
		"Build the widget service end to end please")

	c := New(root)
	loc := locator.NewFSLocator([]string{root})
	eng := NewEngine(c, loc)

	result, err := eng.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if result.Phase1.Processed != 2 {
		t.Errorf("Phase1 Processed = %d, want 2", result.Phase1.Processed)
	}

	child, ok := c.Get("22222222-2222-4222-8222-222222222222")
	if !ok {
		t.Fatal("child skeleton not found in cache")
	}
	if child.ReconstructedParentID != "11111111-1111-4111-8111-111111111111" {
		t.Errorf("child parent = %q, want parent id", child.ReconstructedParentID)
	}

	// Persisted file exists and round-trips byte-for-byte on a second,
	// unchanged rebuild (spec §8 idempotence property).
	persistedPath := filepath.Join(root, ".skeletons", "22222222-2222-4222-8222-222222222222.json")
	before, err := os.ReadFile(persistedPath)
	if err != nil {
		t.Fatalf("read persisted skeleton: %v", err)
	}

	c2 := New(root)
	eng2 := NewEngine(c2, loc)
	if _, err := eng2.Rebuild(context.Background()); err != nil {
		t.Fatalf("second Rebuild() error = %v", err)
	}
	after, err := os.ReadFile(persistedPath)
	if err != nil {
		t.Fatalf("read persisted skeleton after second rebuild: %v", err)
	}
	if string(before) != string(after) {
		t.Error("re-running the engine on an unchanged source should produce byte-identical skeleton files")
	}
}

func TestEngine_WorkspaceFilter(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFixtureTask(t, root, "11111111-1111-4111-8111-111111111111", "/Users/me/Projects/Alpha", "")
	writeFixtureTask(t, root, "22222222-2222-4222-8222-222222222222", "/Users/me/Projects/Beta", "")

	c := New(root)
	loc := locator.NewFSLocator([]string{root})
	eng := NewEngine(c, loc)
	eng.Workspace = "alpha"

	if _, err := eng.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	if _, ok := c.Get("11111111-1111-4111-8111-111111111111"); !ok {
		t.Error("alpha task should be included")
	}
	if _, ok := c.Get("22222222-2222-4222-8222-222222222222"); ok {
		t.Error("beta task should be excluded by the workspace filter")
	}
}

func TestEngine_RefreshNoopWhenUnchanged(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	id := "11111111-1111-4111-8111-111111111111"
	writeFixtureTask(t, root, id, "/ws/a", "")

	c := New(root)
	loc := locator.NewFSLocator([]string{root})
	eng := NewEngine(c, loc)
	if _, err := eng.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	changed, err := eng.Refresh(context.Background(), id, filepath.Join(root, id))
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if changed {
		t.Error("Refresh() should be a no-op when source checksums match")
	}
}

func TestCache_ListConversationsSortAndLimit(t *testing.T) {
	t.Parallel()
	c := New(t.TempDir())
	c.Put(&skeleton.Skeleton{TaskID: "a", Metadata: skeleton.Metadata{LastActivity: "2026-01-01T00:00:00Z"}})
	c.Put(&skeleton.Skeleton{TaskID: "b", Metadata: skeleton.Metadata{LastActivity: "2026-03-01T00:00:00Z"}})
	c.Put(&skeleton.Skeleton{TaskID: "c", Metadata: skeleton.Metadata{LastActivity: "2026-02-01T00:00:00Z"}})

	out := c.ListConversations(ListFilter{SortBy: "lastActivity", Descending: true, Limit: 2})
	if len(out) != 2 || out[0].TaskID != "b" || out[1].TaskID != "c" {
		t.Errorf("ListConversations() = %+v", out)
	}
}

func TestCache_MostRecent(t *testing.T) {
	t.Parallel()
	c := New(t.TempDir())
	c.Put(&skeleton.Skeleton{TaskID: "old", Metadata: skeleton.Metadata{LastActivity: "2026-01-01T00:00:00Z"}})
	c.Put(&skeleton.Skeleton{TaskID: "new", Metadata: skeleton.Metadata{LastActivity: "2026-05-01T00:00:00Z"}})

	if got := c.MostRecent(); got == nil || got.TaskID != "new" {
		t.Errorf("MostRecent() = %+v", got)
	}
}
