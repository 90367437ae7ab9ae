// Package testutil provides fixture builders shared across taskgraph's
// test suites, grounded on the teacher's internal/testutil/fixtures.go
// (fully-populated fixture constructors callers compose rather than
// hand-rolling ad hoc JSON in every test file).
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TaskFolderSpec describes one fixture task folder's contents.
type TaskFolderSpec struct {
	TaskID      string
	Workspace   string
	Instruction string   // becomes a say/text message if non-empty
	Prefixes    []string // each becomes a new_task launch block
}

// WriteTaskFolder materializes spec as a task folder under root,
// producing task_metadata.json and ui_messages.json in the shape the
// Artifact Reader and Instruction/Child-Instruction extractors expect.
func WriteTaskFolder(t *testing.T, root string, spec TaskFolderSpec) string {
	t.Helper()
	dir := filepath.Join(root, spec.TaskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	meta := `{"title":"task ` + spec.TaskID + `","workspace":"` + spec.Workspace + `"}`
	if err := os.WriteFile(filepath.Join(dir, "task_metadata.json"), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}

	var launches string
	for _, p := range spec.Prefixes {
		launches += `{"type":"say","say":"tool","text":"<new_task><message>` + p + `</message></new_task>"},`
	}
	var instr string
	if spec.Instruction != "" {
		instr = `{"type":"say","say":"text","text":"` + spec.Instruction + `"},`
	}
	ui := "[" + instr + launches + `{"type":"say","say":"tool","text":"padding message for size"}]`
	if err := os.WriteFile(filepath.Join(dir, "ui_messages.json"), []byte(ui), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

// ChainFixture writes a four-level ancestor chain (root -> a -> b -> c),
// mirroring the shape of scenario S6, and returns the task ids in
// root-to-leaf order.
func ChainFixture(t *testing.T, root string) []string {
	t.Helper()
	ids := []string{
		"00000000-0000-4000-8000-000000000001",
		"00000000-0000-4000-8000-000000000002",
		"00000000-0000-4000-8000-000000000003",
		"00000000-0000-4000-8000-000000000004",
	}
	WriteTaskFolder(t, root, TaskFolderSpec{
		TaskID:   ids[0],
		Prefixes: []string{"Build the widget service end to end please and report back"},
	})
	WriteTaskFolder(t, root, TaskFolderSpec{
		TaskID:      ids[1],
		Instruction: "Build the widget service end to end please and report back",
		Prefixes:    []string{"Write integration tests for the widget service please"},
	})
	WriteTaskFolder(t, root, TaskFolderSpec{
		TaskID:      ids[2],
		Instruction: "Write integration tests for the widget service please",
		Prefixes:    []string{"Add a regression test for the widget edge case please"},
	})
	WriteTaskFolder(t, root, TaskFolderSpec{
		TaskID:      ids[3],
		Instruction: "Add a regression test for the widget edge case please",
	})
	return ids
}
