package message

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jra3/taskgraph/internal/apperr"
)

const maxIDRetries = 5

// Store is the file-backed inbox/sent/archive triad rooted at dir
// (<shared>/messages/ per spec §6). Grounded on the same write-to-temp-
// then-rename discipline as internal/commitlog, with read-path
// filtering/sorting modeled on the teacher's in-memory repository scans
// (internal/repo/mock.go).
type Store struct {
	dir string
}

func Open(dir string) (*Store, error) {
	for _, sub := range []string{"inbox", "sent", "archive"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, apperr.Wrap(apperr.CodeMalformedJSON, "create message store directory", err)
		}
	}
	return &Store{dir: dir}, nil
}

func (s *Store) pathFor(bucket, id string) string {
	return filepath.Join(s.dir, bucket, id+".json")
}

func writeAtomic(path string, m *Message) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.CodeMalformedJSON, "marshal message", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperr.Wrap(apperr.CodeMalformedJSON, "write message temp file", err)
	}
	return os.Rename(tmp, path)
}

func readMessage(path string) (*Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperr.Wrap(apperr.CodeMalformedJSON, "parse message "+path, err)
	}
	return &m, nil
}

// SendInput is the caller-supplied payload for Send.
type SendInput struct {
	From     string
	To       string
	Subject  string
	Body     string
	Priority Priority
	Tags     []string
	ThreadID string
	ReplyTo  string
}

// Send constructs a message and writes it to inbox/ and sent/ (spec
// §4.I).
func (s *Store) Send(in SendInput) (*Message, error) {
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}

	now := time.Now().UTC()
	var id string
	for attempt := 0; attempt < maxIDRetries; attempt++ {
		candidate, err := newID(now)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeMalformedJSON, "generate message id", err)
		}
		if _, err := os.Stat(s.pathFor("sent", candidate)); os.IsNotExist(err) {
			id = candidate
			break
		}
	}
	if id == "" {
		return nil, apperr.New(apperr.CodeValidationFailed, "could not allocate a unique message id after retries")
	}

	m := &Message{
		ID:        id,
		From:      in.From,
		To:        in.To,
		Subject:   in.Subject,
		Body:      in.Body,
		Priority:  in.Priority,
		Status:    StatusUnread,
		Timestamp: now,
		ThreadID:  in.ThreadID,
		ReplyTo:   in.ReplyTo,
		Metadata:  Metadata{Tags: in.Tags},
	}

	if err := writeAtomic(s.pathFor("sent", id), m); err != nil {
		return nil, err
	}
	if err := writeAtomic(s.pathFor("inbox", id), m); err != nil {
		return nil, err
	}
	return m, nil
}

// Reply sends a new message threaded to id (spec §4.I).
func (s *Store) Reply(id, from, to, subject, body string, priority Priority) (*Message, error) {
	original, err := s.GetMessage(id)
	if err != nil {
		return nil, err
	}
	threadID := original.ThreadID
	if threadID == "" {
		threadID = original.ID
	}
	return s.Send(SendInput{
		From:     from,
		To:       to,
		Subject:  subject,
		Body:     body,
		Priority: priority,
		ThreadID: threadID,
		ReplyTo:  id,
	})
}

// GetMessage searches inbox, then sent, then archive, returning the
// first hit (spec §4.I read-order).
func (s *Store) GetMessage(id string) (*Message, error) {
	for _, bucket := range []string{"inbox", "sent", "archive"} {
		m, err := readMessage(s.pathFor(bucket, id))
		if err == nil {
			return m, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return nil, apperr.New(apperr.CodeMessageNotFound, "message not found: "+id)
}

// ReadInbox scans inbox/ for recipient, applies statusFilter, sorts
// newest-first by timestamp, and truncates to limit (spec §4.I).
func (s *Store) ReadInbox(recipient string, statusFilter StatusFilter, limit int) ([]ListItem, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "inbox"))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeMalformedJSON, "list inbox directory", err)
	}

	var items []ListItem
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
			continue
		}
		m, err := readMessage(filepath.Join(s.dir, "inbox", ent.Name()))
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeMalformedJSON, "read inbox message "+ent.Name(), err)
		}
		if m.To != recipient {
			continue
		}
		if statusFilter != FilterAll && string(m.Status) != string(statusFilter) {
			continue
		}
		items = append(items, ListItem{Message: *m, Preview: previewOf(m.Body)})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Timestamp.After(items[j].Timestamp) })

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func previewOf(body string) string {
	const max = 100
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max]) + "..."
}

// MarkAsRead sets status=read on the inbox and sent copies of id.
// unread -> read only; already-read messages are left untouched
// (idempotent per spec §8).
func (s *Store) MarkAsRead(id string) (bool, error) {
	inboxPath := s.pathFor("inbox", id)
	m, err := readMessage(inboxPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, apperr.New(apperr.CodeMessageNotFound, "message not found in inbox: "+id)
		}
		return false, err
	}
	if m.Status != StatusUnread {
		return true, nil
	}

	m.Status = StatusRead
	if err := writeAtomic(inboxPath, m); err != nil {
		return false, err
	}

	if sent, err := readMessage(s.pathFor("sent", id)); err == nil {
		sent.Status = StatusRead
		if err := writeAtomic(s.pathFor("sent", id), sent); err != nil {
			return false, err
		}
	} else if !os.IsNotExist(err) {
		return false, err
	}

	return true, nil
}

// ArchiveMessage moves the inbox file to archive/, setting
// status=archived. Applying it twice is idempotent: the second call
// finds the file already archived (spec §8).
func (s *Store) ArchiveMessage(id string) error {
	inboxPath := s.pathFor("inbox", id)
	m, err := readMessage(inboxPath)
	if err != nil {
		if os.IsNotExist(err) {
			if _, archErr := readMessage(s.pathFor("archive", id)); archErr == nil {
				return nil
			}
			return apperr.New(apperr.CodeMessageNotFound, "message not found in inbox: "+id)
		}
		return err
	}

	m.Status = StatusArchived
	if err := writeAtomic(s.pathFor("archive", id), m); err != nil {
		return err
	}
	if err := os.Remove(inboxPath); err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(apperr.CodeMalformedJSON, "remove archived inbox file", err)
	}
	return nil
}

// AmendInput is the caller-supplied payload for Amend.
type AmendInput struct {
	ID              string
	InvokingMachine string
	NewBody         string
	Reason          string
}

// Amend edits a sent message's body, allowed only while the recipient's
// inbox copy remains unread and the invoker is the original sender
// (spec §4.I, scenario S4).
func (s *Store) Amend(in AmendInput) (*Message, error) {
	sentPath := s.pathFor("sent", in.ID)
	sent, err := readMessage(sentPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.CodeMessageNotFound, "message not found in sent: "+in.ID)
		}
		return nil, err
	}
	if sent.From != in.InvokingMachine {
		return nil, apperr.New(apperr.CodeNotSender, fmt.Sprintf("machine %s did not send message %s", in.InvokingMachine, in.ID))
	}

	inboxPath := s.pathFor("inbox", in.ID)
	inboxMsg, err := readMessage(inboxPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.CodeMessageNotFound, "message not found in inbox: "+in.ID)
		}
		return nil, err
	}
	if inboxMsg.Status != StatusUnread {
		return nil, apperr.New(apperr.CodeAlreadyRead, "cannot amend a message the recipient has already read")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if !sent.Metadata.Amended {
		sent.Metadata.OriginalContent = sent.Body
	}
	sent.Body = in.NewBody
	sent.Metadata.Amended = true
	sent.Metadata.AmendmentReason = in.Reason
	sent.Metadata.AmendmentTimestamp = now
	sent.Metadata.UpdatedAt = now

	// sent/ is updated before inbox/: a crash here leaves inbox/ stale
	// but sent/ authoritative (spec §4.I ordering guarantee).
	if err := writeAtomic(sentPath, sent); err != nil {
		return nil, err
	}

	inboxMsg.Body = sent.Body
	inboxMsg.Metadata = sent.Metadata
	if err := writeAtomic(inboxPath, inboxMsg); err != nil {
		return nil, err
	}

	return sent, nil
}
