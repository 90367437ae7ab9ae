// Package childindex implements the Child-Instruction Indexer (spec
// §4.D): scanning assistant messages for child-task launch blocks,
// normalizing the extracted instruction into a prefix, and maintaining
// the global instruction index used by Phase 2 of the Hierarchy
// Reconstruction Engine.
package childindex

import (
	"regexp"
	"strings"
)

const (
	minPrefixLen = 10
	maxPrefixLen = 300
)

// launchTags is the whitelist of outer tag names that encode a
// new-task-launch block, per spec §4.D.
var launchTags = []string{"new_task", "switch_mode"}

var envDetailsRE = regexp.MustCompile(`(?s)<environment_details>.*?</environment_details>`)
var whitespaceRunRE = regexp.MustCompile(`\s+`)

// ExtractPrefixes scans a single assistant message's raw text for
// new-task-launch blocks and returns the normalized, de-duplicated,
// length-filtered prefixes it contains.
func ExtractPrefixes(text string) []string {
	var out []string
	seen := make(map[string]struct{})

	for _, tag := range launchTags {
		for _, body := range extractTagBodies(text, tag) {
			msg := extractInnerMessage(body)
			prefix := Normalize(msg)
			if len(prefix) < minPrefixLen {
				continue
			}
			if len(prefix) > maxPrefixLen {
				prefix = prefix[:maxPrefixLen]
			}
			if _, dup := seen[prefix]; dup {
				continue
			}
			seen[prefix] = struct{}{}
			out = append(out, prefix)
		}
	}
	return out
}

// extractTagBodies returns the inner content of every <tag>...</tag>
// block found in text, using a forgiving (non-XML-strict) scan that
// tolerates unbalanced or unknown nested tags: it simply matches the
// first closing tag with the same name, falling through any inner markup
// as plain text.
func extractTagBodies(text, tag string) []string {
	open := "<" + tag + ">"
	close_ := "</" + tag + ">"

	var bodies []string
	rest := text
	for {
		start := strings.Index(rest, open)
		if start == -1 {
			break
		}
		rest = rest[start+len(open):]
		end := strings.Index(rest, close_)
		if end == -1 {
			break
		}
		bodies = append(bodies, rest[:end])
		rest = rest[end+len(close_):]
	}
	return bodies
}

// extractInnerMessage pulls the <message>...</message> (or, if absent,
// the raw block) out of a launch block's body.
func extractInnerMessage(body string) string {
	const openTag, closeTag = "<message>", "</message>"
	start := strings.Index(body, openTag)
	if start == -1 {
		return body
	}
	rest := body[start+len(openTag):]
	end := strings.Index(rest, closeTag)
	if end == -1 {
		return rest
	}
	return rest[:end]
}

// Normalize applies spec §4.D's normalization rule: trim, collapse
// whitespace runs to single spaces, strip a leading <user_message>
// wrapper, and remove environment_details sections.
func Normalize(s string) string {
	s = envDetailsRE.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<user_message>")
	s = strings.TrimSuffix(s, "</user_message>")
	s = strings.TrimSpace(s)
	s = whitespaceRunRE.ReplaceAllString(s, " ")
	return s
}
