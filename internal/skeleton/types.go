// Package skeleton defines the conversation skeleton (spec §3) and the
// Skeleton Builder (spec §4.E) that produces one from a task folder's raw
// artifacts.
package skeleton

// Role distinguishes a sequence message's speaker.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ActionType distinguishes a sequence action's kind.
type ActionType string

const (
	ActionTool    ActionType = "tool"
	ActionCommand ActionType = "command"
)

// SequenceItem is a tagged union: exactly one of Message or Action is set.
// Spec §9 asks for tagged variants with exhaustive matching rather than
// open inheritance; Kind is the tag.
type SequenceItem struct {
	Kind    string  `json:"kind"` // "message" | "action"
	Message *ItemMessage `json:"message,omitempty"`
	Action  *ItemAction  `json:"action,omitempty"`
}

type ItemMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ItemAction struct {
	Type        ActionType `json:"type"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	FilePath    string     `json:"filePath,omitempty"`
	LineCount   int        `json:"lineCount,omitempty"`
	ContentSize int        `json:"contentSize,omitempty"`
}

// Metadata mirrors spec §3's metadata block.
type Metadata struct {
	Title        string `json:"title"`
	CreatedAt    string `json:"createdAt"`
	LastActivity string `json:"lastActivity"`
	MessageCount int    `json:"messageCount"`
	ActionCount  int    `json:"actionCount"`
	TotalSize    int64  `json:"totalSize"`
	Workspace    string `json:"workspace"`
	DataSource   string `json:"dataSource"`
}

// ProcessingState tracks which engine phases have touched this skeleton
// and any errors they recorded (spec §3, §7).
type ProcessingState struct {
	Phase1Completed bool     `json:"phase1Completed"`
	Phase2Completed bool     `json:"phase2Completed"`
	Errors          []string `json:"errors,omitempty"`
}

// Skeleton is the per-task summary record owned exclusively by the
// Skeleton Cache (spec §3 invariant: "exactly one owner of each
// skeleton: the cache").
type Skeleton struct {
	TaskID                       string   `json:"taskId"`
	ParentTaskID                 string   `json:"parentTaskId,omitempty"`
	ReconstructedParentID        string   `json:"reconstructedParentId,omitempty"`
	TruncatedInstruction         string   `json:"truncatedInstruction,omitempty"`
	ChildTaskInstructionPrefixes []string `json:"childTaskInstructionPrefixes,omitempty"`

	Metadata Metadata       `json:"metadata"`
	Sequence []SequenceItem `json:"sequence,omitempty"`

	IsCompleted      bool             `json:"isCompleted"`
	ProcessingState  ProcessingState  `json:"processingState"`
	SourceChecksums  map[string]string `json:"sourceFileChecksums,omitempty"`
}
