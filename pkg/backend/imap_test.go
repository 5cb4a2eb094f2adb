package backend

import (
	"errors"
	"sync"
	"testing"

	"github.com/emersion/go-imap"
	"github.com/rs/zerolog"

	"github.com/Delivr-Project/Delivr-API/pkg/config"
)

func TestFetchWindow(t *testing.T) {
	cases := []struct {
		total    uint32
		limit    int
		from, to uint32
	}{
		{total: 10, limit: 3, from: 8, to: 10},
		{total: 10, limit: 10, from: 1, to: 10},
		{total: 2, limit: 5, from: 1, to: 2},
		{total: 1, limit: 1, from: 1, to: 1},
		{total: 100, limit: 0, from: 51, to: 100}, // default limit
	}

	for _, tc := range cases {
		from, to := fetchWindow(tc.total, tc.limit)
		if from != tc.from || to != tc.to {
			t.Errorf("fetchWindow(%d, %d) = [%d, %d], expected [%d, %d]",
				tc.total, tc.limit, from, to, tc.from, tc.to)
		}
		if count := int(to - from + 1); tc.limit > 0 && count > tc.limit {
			t.Errorf("window [%d, %d] exceeds limit %d", from, to, tc.limit)
		}
	}
}

func TestMailboxFromInfo(t *testing.T) {
	info := &imap.MailboxInfo{
		Attributes: []string{"\\HasNoChildren", imap.TrashAttr},
		Delimiter:  "/",
		Name:       "INBOX/Trash",
	}

	mb := mailboxFromInfo(info)
	if mb.Name != "Trash" {
		t.Errorf("expected name Trash, got %s", mb.Name)
	}
	if mb.ParentPath != "INBOX" {
		t.Errorf("expected parent path INBOX, got %s", mb.ParentPath)
	}
	if mb.SpecialUse != imap.TrashAttr {
		t.Errorf("expected special use %s, got %s", imap.TrashAttr, mb.SpecialUse)
	}
	if len(mb.Flags) != 2 {
		t.Errorf("expected both attributes as flags, got %v", mb.Flags)
	}
}

func TestStatusFromIMAP(t *testing.T) {
	st := statusFromIMAP(&imap.MailboxStatus{Messages: 6, Recent: 1, Unseen: 5})
	if st.Messages != 6 || st.Recent != 1 || st.Unseen != 5 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestMailboxLocksSerializePerPath(t *testing.T) {
	var locks mailboxLocks

	unlock := locks.lock("INBOX")

	// A different mailbox is not blocked.
	done := make(chan struct{})
	go func() {
		defer close(done)
		release := locks.lock("Sent")
		release()
	}()
	<-done

	// The same mailbox is blocked until release.
	var order []string
	var mu sync.Mutex
	second := make(chan struct{})
	go func() {
		defer close(second)
		release := locks.lock("INBOX")
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		release()
	}()

	mu.Lock()
	order = append(order, "first")
	mu.Unlock()
	unlock()
	<-second

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("unexpected acquisition order %v", order)
	}
}

func TestMailboxLockReleasedOnErrorPath(t *testing.T) {
	var locks mailboxLocks

	fail := func() (err error) {
		unlock := locks.lock("INBOX")
		defer unlock()
		return errTest
	}
	if err := fail(); err == nil {
		t.Fatal("expected an error")
	}

	// The lock must be free again.
	release := locks.lock("INBOX")
	release()
}

var errTest = errors.New("test error")

func TestIMAPAccountStartsDisconnected(t *testing.T) {
	a := NewIMAPAccount(config.Server{Host: "localhost", Port: 143, Encryption: config.EncryptionNone}, 0, zerolog.Nop())

	if a.Connected() {
		t.Error("expected a fresh backend to be disconnected")
	}
	if a.State() != StateDisconnected {
		t.Errorf("expected disconnected state, got %s", a.State())
	}

	// Operations before Connect fail with ErrNotConnected.
	if _, err := a.ListMailboxes(); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if _, err := a.ListMessages("INBOX", 10); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := a.AddFlags("INBOX", []uint32{1}, []string{imap.SeenFlag}); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := a.CreateMessage("Drafts", []byte("draft")); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestIMAPAccountDisconnectIdempotent(t *testing.T) {
	a := NewIMAPAccount(config.Server{Host: "localhost", Port: 143, Encryption: config.EncryptionNone}, 0, zerolog.Nop())

	if err := a.Disconnect(); err != nil {
		t.Errorf("expected disconnect on a disconnected backend to be a no-op, got %v", err)
	}
	if a.State() != StateDisconnected {
		t.Errorf("expected disconnected state, got %s", a.State())
	}
}

func TestStateString(t *testing.T) {
	if StateDisconnected.String() != "disconnected" ||
		StateConnecting.String() != "connecting" ||
		StateConnected.String() != "connected" {
		t.Error("unexpected state names")
	}
}
