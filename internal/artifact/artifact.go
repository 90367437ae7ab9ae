// Package artifact implements the Artifact Reader (spec §4.B): parsing a
// task folder's JSON files with BOM tolerance and strict UTF-8/JSON
// decoding. Malformed files surface a structured error; defaults are
// never silently substituted.
package artifact

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/jra3/taskgraph/internal/apperr"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// StripBOM removes a leading UTF-8 byte-order mark from b, if present.
func StripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, bom) {
		return b[len(bom):]
	}
	return b
}

// StripBOMString removes a leading UTF-8 BOM from s, if present. Exists as
// a side-effect-free helper for callers about to run a JSON.parse
// equivalent over an in-memory string.
func StripBOMString(s string) string {
	if len(s) >= 3 && s[0] == bom[0] && s[1] == bom[1] && s[2] == bom[2] {
		return s[3:]
	}
	return s
}

// UIMessage is one entry of ui_messages.json.
type UIMessage struct {
	Type string `json:"type"`
	Say  string `json:"say,omitempty"`
	Text string `json:"text,omitempty"`
	TS   int64  `json:"ts,omitempty"`
}

// TaskMetadata is the host-defined per-task metadata descriptor.
type TaskMetadata struct {
	Title          string `json:"title"`
	CreatedAt      string `json:"createdAt"`
	LastActivity   string `json:"lastActivity"`
	Workspace      string `json:"workspace"`
	DataSource     string `json:"dataSource"`
	ParentTaskID   string `json:"parentTaskId,omitempty"`
}

// ReadJSON reads path, strips a leading BOM, decodes as UTF-8 and parses
// strictly as JSON into v. Failure kinds map directly onto spec §4.B:
// NotFound, PermissionDenied, MalformedJson, EncodingError.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.Wrap(apperr.CodeNotFound, "artifact not found: "+path, err)
		}
		if os.IsPermission(err) {
			return apperr.Wrap(apperr.CodePermissionDenied, "artifact not readable: "+path, err)
		}
		return apperr.Wrap(apperr.CodeMalformedJSON, "artifact read failed: "+path, err)
	}

	data = StripBOM(data)
	if !utf8.Valid(data) {
		return apperr.New(apperr.CodeEncodingError, "artifact is not valid UTF-8: "+path)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.CodeMalformedJSON, "artifact JSON decode failed: "+path, err)
	}
	return nil
}

// TaskFolder is the set of well-known artifact filenames within a task
// directory (spec §6).
type TaskFolder struct {
	Dir string
}

const (
	FileTaskMetadata = "task_metadata.json"
	FileUIMessages   = "ui_messages.json"
	FileAPIHistory   = "api_conversation_history.json"
)

// ReadMetadata reads task_metadata.json. Missing metadata is reported,
// never defaulted.
func (f TaskFolder) ReadMetadata() (TaskMetadata, error) {
	var m TaskMetadata
	err := ReadJSON(filepath.Join(f.Dir, FileTaskMetadata), &m)
	return m, err
}

// ReadUIMessages reads ui_messages.json.
func (f TaskFolder) ReadUIMessages() ([]UIMessage, error) {
	var msgs []UIMessage
	err := ReadJSON(filepath.Join(f.Dir, FileUIMessages), &msgs)
	return msgs, err
}

// HasAPIHistory reports whether api_conversation_history.json exists
// without reading it (used by cache filters for "presence of API
// history").
func (f TaskFolder) HasAPIHistory() bool {
	_, err := os.Stat(filepath.Join(f.Dir, FileAPIHistory))
	return err == nil
}

// ReadAPIHistory reads the optional api_conversation_history.json. A
// missing file is not an error; it returns (nil, false, nil).
func (f TaskFolder) ReadAPIHistory() ([]APIMessage, bool, error) {
	path := filepath.Join(f.Dir, FileAPIHistory)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, apperr.Wrap(apperr.CodePermissionDenied, "api history not readable: "+path, err)
	}
	var msgs []APIMessage
	if err := ReadJSON(path, &msgs); err != nil {
		return nil, true, err
	}
	return msgs, true, nil
}

// APIMessage is one entry of api_conversation_history.json: an assistant
// or user turn potentially containing an embedded request payload used by
// the Instruction Extractor and the Child-Instruction Indexer.
type APIMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content,omitempty"`
}
