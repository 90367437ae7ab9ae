// Package render turns skeletons into the human-readable text view
// required by the Skeleton Cache's view_conversation_tree operation
// (spec §4.G). Adapted from the teacher's internal/marshal package,
// which built markdown reports by walking ordered records with a
// strings.Builder (internal/marshal/history.go's HistoryToMarkdown) and
// optionally wrapped output in YAML frontmatter
// (internal/marshal/frontmatter.go).
package render

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dustin/go-humanize"

	"github.com/jra3/taskgraph/internal/skeleton"
)

// ViewMode selects which part of the hierarchy view_conversation_tree
// renders (spec §4.G).
type ViewMode string

const (
	ViewSingle  ViewMode = "single"
	ViewChain   ViewMode = "chain"
	ViewCluster ViewMode = "cluster"
)

// Lookup resolves a task id to its skeleton, used to walk ancestor
// chains without depending on the cache package directly (keeps render
// a leaf package).
type Lookup func(taskID string) (*skeleton.Skeleton, bool)

// SiblingsLookup resolves a parent task id to every skeleton that
// reconstructed it as their parent, used by cluster mode.
type SiblingsLookup func(parentID string) []*skeleton.Skeleton

// Tree renders task per view mode and truncateLines (spec §4.G):
// single = one task; chain = root-to-task ancestor chain; cluster = the
// parent's full sibling set. truncateLines == 0 disables truncation.
func Tree(taskID string, mode ViewMode, truncateLines int, lookup Lookup, siblings SiblingsLookup) (string, error) {
	switch mode {
	case ViewChain:
		return renderChain(taskID, truncateLines, lookup)
	case ViewCluster:
		return renderCluster(taskID, truncateLines, lookup, siblings)
	default:
		sk, ok := lookup(taskID)
		if !ok {
			return "", fmt.Errorf("task not found: %s", taskID)
		}
		return renderOne(sk, truncateLines), nil
	}
}

func renderChain(taskID string, truncateLines int, lookup Lookup) (string, error) {
	chain, err := ancestorChain(taskID, lookup)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, sk := range chain {
		sb.WriteString(renderOne(sk, truncateLines))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func renderCluster(taskID string, truncateLines int, lookup Lookup, siblings SiblingsLookup) (string, error) {
	sk, ok := lookup(taskID)
	if !ok {
		return "", fmt.Errorf("task not found: %s", taskID)
	}
	if sk.ReconstructedParentID == "" {
		return renderOne(sk, truncateLines), nil
	}
	parent, ok := lookup(sk.ReconstructedParentID)
	if !ok {
		return renderOne(sk, truncateLines), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Cluster around parent %s\n\n", parent.TaskID))
	sb.WriteString(renderOne(parent, truncateLines))
	sb.WriteString("\n### Siblings\n\n")
	for _, sib := range siblings(parent.TaskID) {
		sb.WriteString(renderOne(sib, truncateLines))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func ancestorChain(taskID string, lookup Lookup) ([]*skeleton.Skeleton, error) {
	var chain []*skeleton.Skeleton
	visited := make(map[string]struct{})
	current := taskID
	for current != "" {
		if _, seen := visited[current]; seen {
			return nil, fmt.Errorf("cycle detected while walking ancestor chain at %s", current)
		}
		visited[current] = struct{}{}

		sk, ok := lookup(current)
		if !ok {
			return nil, fmt.Errorf("task not found: %s", current)
		}
		chain = append(chain, sk)
		current = sk.ReconstructedParentID
	}
	// reverse: root first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func renderOne(sk *skeleton.Skeleton, truncateLines int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s (%s)\n", titleOrID(sk), sk.TaskID))
	sb.WriteString(fmt.Sprintf("- messages: %d, actions: %d, size: %s\n",
		sk.Metadata.MessageCount, sk.Metadata.ActionCount, humanize.Bytes(uint64(maxInt64(sk.Metadata.TotalSize, 0)))))
	if sk.ReconstructedParentID != "" {
		sb.WriteString(fmt.Sprintf("- parent: %s\n", sk.ReconstructedParentID))
	}
	sb.WriteString("\n")

	for _, item := range sk.Sequence {
		sb.WriteString(renderItem(item, truncateLines))
		sb.WriteString("\n")
	}
	return sb.String()
}

func titleOrID(sk *skeleton.Skeleton) string {
	if sk.Metadata.Title != "" {
		return sk.Metadata.Title
	}
	return sk.TaskID
}

func renderItem(item skeleton.SequenceItem, truncateLines int) string {
	switch item.Kind {
	case "message":
		return fmt.Sprintf("**%s:** %s", item.Message.Role, truncateText(item.Message.Content, truncateLines))
	case "action":
		return fmt.Sprintf("`%s %s` — %s", item.Action.Type, item.Action.Name, item.Action.Status)
	default:
		return ""
	}
}

// truncateText preserves the first n and last n lines of text,
// substituting "[...]" between them. n == 0 disables truncation.
func truncateText(text string, n int) string {
	if n <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= 2*n {
		return text
	}
	head := lines[:n]
	tail := lines[len(lines)-n:]
	return strings.Join(head, "\n") + "\n[...]\n" + strings.Join(tail, "\n")
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// FrontmatterBlock renders sk's metadata as a YAML frontmatter block,
// mirroring the teacher's internal/marshal/frontmatter.go. Tree does not
// call it, and the tree command has no flag that prepends it.
func FrontmatterBlock(sk *skeleton.Skeleton) (string, error) {
	fm := map[string]any{
		"taskId":       sk.TaskID,
		"title":        sk.Metadata.Title,
		"lastActivity": sk.Metadata.LastActivity,
		"messageCount": sk.Metadata.MessageCount,
	}
	data, err := yaml.Marshal(fm)
	if err != nil {
		return "", err
	}
	return "---\n" + string(data) + "---\n", nil
}
