package skeleton

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jra3/taskgraph/internal/artifact"
	"github.com/jra3/taskgraph/internal/childindex"
	"github.com/jra3/taskgraph/internal/instruction"
)

// Build reads a task folder's artifacts via the Artifact Reader, runs
// instruction extraction and child-prefix indexing, digests the
// message/action sequence, and checksums the source files — producing a
// skeleton with phase1Completed=true, phase2Completed=false, and no
// reconstructed parent (spec §4.E). Extraction errors are recorded in
// ProcessingState.Errors rather than aborting: the skeleton's identity
// and metadata remain valid even when some artifact is unreadable.
func Build(taskID, dir string) (Skeleton, error) {
	folder := artifact.TaskFolder{Dir: dir}
	sk := Skeleton{
		TaskID: taskID,
		ProcessingState: ProcessingState{
			Phase1Completed: true,
		},
	}

	meta, err := folder.ReadMetadata()
	if err != nil {
		sk.ProcessingState.Errors = append(sk.ProcessingState.Errors, "metadata: "+err.Error())
	} else {
		sk.Metadata = Metadata{
			Title:        meta.Title,
			CreatedAt:    meta.CreatedAt,
			LastActivity: meta.LastActivity,
			Workspace:    meta.Workspace,
			DataSource:   meta.DataSource,
		}
		sk.ParentTaskID = meta.ParentTaskID
	}

	uiMessages, err := folder.ReadUIMessages()
	if err != nil {
		sk.ProcessingState.Errors = append(sk.ProcessingState.Errors, "ui_messages: "+err.Error())
	}

	if instr, ok := instruction.Extract(uiMessages); ok {
		sk.TruncatedInstruction = instr
	}

	apiMessages, present, err := folder.ReadAPIHistory()
	if err != nil {
		sk.ProcessingState.Errors = append(sk.ProcessingState.Errors, "api_conversation_history: "+err.Error())
	}

	sk.ChildTaskInstructionPrefixes = collectChildPrefixes(uiMessages, apiMessages)
	sk.Sequence = buildSequence(uiMessages)
	sk.Metadata.MessageCount = countMessages(sk.Sequence)
	sk.Metadata.ActionCount = countActions(sk.Sequence)
	sk.Metadata.TotalSize = folderSize(dir)
	sk.IsCompleted = len(uiMessages) > 0

	checksums, checksumErrs := checksumSources(dir, present)
	sk.SourceChecksums = checksums
	sk.ProcessingState.Errors = append(sk.ProcessingState.Errors, checksumErrs...)

	return sk, nil
}

// collectChildPrefixes scans both the UI and API logs for new-task-launch
// blocks and returns the de-duplicated, length-filtered prefix set.
func collectChildPrefixes(uiMessages []artifact.UIMessage, apiMessages []artifact.APIMessage) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(text string) {
		for _, p := range childindex.ExtractPrefixes(text) {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}

	for _, m := range uiMessages {
		add(m.Text)
	}
	for _, m := range apiMessages {
		add(string(m.Content))
	}
	return out
}

func buildSequence(uiMessages []artifact.UIMessage) []SequenceItem {
	var items []SequenceItem
	for _, m := range uiMessages {
		switch {
		case m.Type == "say" && m.Say == "text":
			items = append(items, SequenceItem{
				Kind:    "message",
				Message: &ItemMessage{Role: RoleAssistant, Content: m.Text},
			})
		case m.Type == "ask":
			items = append(items, SequenceItem{
				Kind:    "message",
				Message: &ItemMessage{Role: RoleUser, Content: m.Text},
			})
		case m.Type == "say" && (m.Say == "tool" || m.Say == "command"):
			actionType := ActionTool
			if m.Say == "command" {
				actionType = ActionCommand
			}
			items = append(items, SequenceItem{
				Kind:   "action",
				Action: &ItemAction{Type: actionType, Name: m.Say, Status: "completed"},
			})
		}
	}
	return items
}

func countMessages(items []SequenceItem) int {
	n := 0
	for _, it := range items {
		if it.Kind == "message" {
			n++
		}
	}
	return n
}

func countActions(items []SequenceItem) int {
	n := 0
	for _, it := range items {
		if it.Kind == "action" {
			n++
		}
	}
	return n
}

func folderSize(dir string) int64 {
	var total int64
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total
}

// checksumSources computes sha256 over each well-known source file
// present in dir, used by the cache's incremental-refresh change
// detection (spec §3's source_file_checksums, §4.F incremental mode).
func checksumSources(dir string, hasAPIHistory bool) (map[string]string, []string) {
	files := []string{artifact.FileTaskMetadata, artifact.FileUIMessages}
	if hasAPIHistory {
		files = append(files, artifact.FileAPIHistory)
	}

	sums := make(map[string]string)
	var errs []string
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, "checksum "+name+": "+err.Error())
			continue
		}
		sum := sha256.Sum256(data)
		sums[name] = hex.EncodeToString(sum[:])
	}
	return sums, errs
}

// ChecksumsMatch reports whether current matches stored exactly (same
// file set, same hashes) — the input to incremental-refresh's
// change-detection gate.
func ChecksumsMatch(stored, current map[string]string) bool {
	if len(stored) != len(current) {
		return false
	}
	for k, v := range stored {
		if current[k] != v {
			return false
		}
	}
	return true
}

// MarshalIndent is the canonical on-disk encoding used by the Skeleton
// Cache so that re-running the engine over an unchanged source produces
// byte-for-byte identical .skeletons/*.json files (spec §8).
func MarshalIndent(sk Skeleton) ([]byte, error) {
	return json.MarshalIndent(sk, "", "  ")
}
