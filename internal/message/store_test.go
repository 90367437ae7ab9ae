package message

import (
	"strings"
	"testing"
	"time"

	"github.com/jra3/taskgraph/internal/apperr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestSend_WritesInboxAndSent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	m, err := s.Send(SendInput{From: "m1", To: "m2", Subject: "hi", Body: "hello there"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !IDPattern.MatchString(m.ID) {
		t.Errorf("Send() id = %q, does not match pattern", m.ID)
	}
	if m.Status != StatusUnread || m.Priority != PriorityMedium {
		t.Errorf("Send() = %+v, want unread/MEDIUM defaults", m)
	}

	got, err := s.GetMessage(m.ID)
	if err != nil {
		t.Fatalf("GetMessage() error = %v", err)
	}
	if got.Body != "hello there" {
		t.Errorf("GetMessage() body = %q", got.Body)
	}
}

// TestAmend_S4 mirrors scenario S4.
func TestAmend_S4(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	m, err := s.Send(SendInput{From: "m1", To: "m2", Subject: "s", Body: "v1"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	amended, err := s.Amend(AmendInput{ID: m.ID, InvokingMachine: "m1", NewBody: "v2"})
	if err != nil {
		t.Fatalf("Amend() error = %v", err)
	}
	if amended.Body != "v2" || amended.Metadata.OriginalContent != "v1" {
		t.Errorf("Amend() = %+v, want body v2 original v1", amended)
	}

	if _, err := s.MarkAsRead(m.ID); err != nil {
		t.Fatalf("MarkAsRead() error = %v", err)
	}

	if _, err := s.Amend(AmendInput{ID: m.ID, InvokingMachine: "m1", NewBody: "v3"}); !apperr.Is(err, apperr.CodeAlreadyRead) {
		t.Errorf("Amend() after read err = %v, want CodeAlreadyRead", err)
	}

	m2, err := s.Send(SendInput{From: "m1", To: "m2", Subject: "s2", Body: "v1"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if _, err := s.Amend(AmendInput{ID: m2.ID, InvokingMachine: "m3", NewBody: "v2"}); !apperr.Is(err, apperr.CodeNotSender) {
		t.Errorf("Amend() by non-sender err = %v, want CodeNotSender", err)
	}

	if _, err := s.Amend(AmendInput{ID: "msg-20260101T000000-zzzzzz", InvokingMachine: "m1", NewBody: "x"}); !apperr.Is(err, apperr.CodeMessageNotFound) {
		t.Errorf("Amend() on missing id err = %v, want CodeMessageNotFound", err)
	}
}

// TestReadInbox_S5 mirrors scenario S5.
func TestReadInbox_S5(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	send := func(subject string, at time.Time) {
		m, err := s.Send(SendInput{From: "m1", To: "m2", Subject: subject, Body: "body " + subject})
		if err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		m.Timestamp = at
		writeAtomic(s.pathFor("inbox", m.ID), m)
	}
	send("A", base)
	send("B", base.Add(10*time.Millisecond))
	send("C", base.Add(20*time.Millisecond))

	items, err := s.ReadInbox("m2", FilterAll, 0)
	if err != nil {
		t.Fatalf("ReadInbox() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("ReadInbox() returned %d items, want 3", len(items))
	}
	got := []string{items[0].Subject, items[1].Subject, items[2].Subject}
	want := []string{"C", "B", "A"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ReadInbox() order = %v, want %v", got, want)
		}
	}
}

func TestMarkAsRead_Idempotent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	m, _ := s.Send(SendInput{From: "m1", To: "m2", Subject: "s", Body: "b"})

	if _, err := s.MarkAsRead(m.ID); err != nil {
		t.Fatalf("MarkAsRead() error = %v", err)
	}
	ok, err := s.MarkAsRead(m.ID)
	if err != nil || !ok {
		t.Fatalf("MarkAsRead() second call ok=%v err=%v", ok, err)
	}

	got, _ := s.GetMessage(m.ID)
	if got.Status != StatusRead {
		t.Errorf("status after double MarkAsRead() = %s, want read", got.Status)
	}
}

func TestArchiveMessage_IdempotentAndDisjointFromInbox(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	m, _ := s.Send(SendInput{From: "m1", To: "m2", Subject: "s", Body: "b"})

	if err := s.ArchiveMessage(m.ID); err != nil {
		t.Fatalf("ArchiveMessage() error = %v", err)
	}
	if err := s.ArchiveMessage(m.ID); err != nil {
		t.Fatalf("second ArchiveMessage() error = %v", err)
	}

	got, err := s.GetMessage(m.ID)
	if err != nil {
		t.Fatalf("GetMessage() after archive error = %v", err)
	}
	if got.Status != StatusArchived {
		t.Errorf("status after archive = %s, want archived", got.Status)
	}
}

func TestReply_InheritsThread(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	original, _ := s.Send(SendInput{From: "m1", To: "m2", Subject: "s", Body: "b"})

	reply, err := s.Reply(original.ID, "m2", "m1", "re: s", "reply body", PriorityLow)
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if reply.ReplyTo != original.ID || reply.ThreadID != original.ID {
		t.Errorf("Reply() = %+v, want replyTo/threadId == %s", reply, original.ID)
	}
}

func TestReadInbox_FiltersByRecipientAndStatus(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	s.Send(SendInput{From: "m1", To: "m2", Subject: "mine", Body: "b"})
	s.Send(SendInput{From: "m1", To: "m3", Subject: "not-mine", Body: "b"})

	items, err := s.ReadInbox("m2", FilterUnread, 0)
	if err != nil {
		t.Fatalf("ReadInbox() error = %v", err)
	}
	if len(items) != 1 || items[0].Subject != "mine" {
		t.Errorf("ReadInbox() = %+v, want only m2's message", items)
	}
}

func TestPreviewOf_TruncatesAt100(t *testing.T) {
	t.Parallel()
	long := make([]byte, 150)
	for i := range long {
		long[i] = 'x'
	}
	got := previewOf(string(long))
	if len(got) != 103 || got[100:] != "..." {
		t.Errorf("previewOf() len=%d suffix=%q", len(got), got[len(got)-3:])
	}
}

func TestPreviewOf_MultibyteSafe(t *testing.T) {
	t.Parallel()
	// 150 multibyte runes: byte-slicing at index 100 would split one in
	// half and corrupt the preview.
	runes := make([]rune, 150)
	for i := range runes {
		runes[i] = '日'
	}
	body := string(runes)
	got := previewOf(body)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("previewOf() = %q, want ... suffix", got)
	}
	if n := len([]rune(strings.TrimSuffix(got, "..."))); n != 100 {
		t.Errorf("previewOf() truncated to %d runes, want 100", n)
	}
}
