package backend

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"

	"github.com/Delivr-Project/Delivr-API/pkg/config"
	"github.com/Delivr-Project/Delivr-API/pkg/mail"
)

// ErrNotConnected is returned by mailbox operations invoked before
// Connect, or after the connection was lost.
var ErrNotConnected = errors.New("imap: not connected")

const (
	defaultListLimit = 50

	// Tried before the generic trash name when the account lists no
	// \Trash special-use mailbox.
	gmailTrashPath   = "[Gmail]/Trash"
	genericTrashPath = "Trash"
)

// IMAPAccount wraps one physical IMAP connection for a single
// account. Construction performs no I/O; the connection is
// established by Connect and its state is observable through State
// and Connected so the cache can treat a spontaneous transport close
// like a normal teardown.
type IMAPAccount struct {
	server  config.Server
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.Mutex // guards client and state
	client *client.Client
	state  State

	locks mailboxLocks
}

// NewIMAPAccount creates a disconnected IMAP backend from credentials.
func NewIMAPAccount(server config.Server, timeout time.Duration, log zerolog.Logger) *IMAPAccount {
	return &IMAPAccount{
		server:  server,
		timeout: timeout,
		log:     log.With().Str("imap", server.Addr()).Logger(),
	}
}

// setState is the single transition point for connection state.
// Callers must hold a.mu.
func (a *IMAPAccount) setState(s State) {
	if a.state == s {
		return
	}
	a.log.Debug().Stringer("from", a.state).Stringer("to", s).Msg("imap state change")
	a.state = s
}

// Connect establishes and authenticates the connection. Calling it on
// an already-connected backend is a no-op.
func (a *IMAPAccount) Connect() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateConnected {
		return nil
	}
	a.setState(StateConnecting)

	c, err := a.dial()
	if err != nil {
		a.setState(StateDisconnected)
		return fmt.Errorf("failed to connect to %s: %w", a.server.Addr(), err)
	}
	c.Timeout = a.timeout

	if err := c.Login(a.server.Username, a.server.Password); err != nil {
		c.Logout()
		a.setState(StateDisconnected)
		return fmt.Errorf("imap login failed for %s: %w", a.server.Username, err)
	}

	a.client = c
	a.setState(StateConnected)
	go a.watchClose(c)
	return nil
}

func (a *IMAPAccount) dial() (*client.Client, error) {
	addr := a.server.Addr()
	dialer := &net.Dialer{Timeout: a.timeout}
	tlsConfig := &tls.Config{ServerName: a.server.Host}

	switch a.server.Encryption {
	case config.EncryptionSSL:
		return client.DialWithDialerTLS(dialer, addr, tlsConfig)
	case config.EncryptionSTARTTLS:
		c, err := client.DialWithDialer(dialer, addr)
		if err != nil {
			return nil, err
		}
		if err := c.StartTLS(tlsConfig); err != nil {
			c.Close()
			return nil, err
		}
		return c, nil
	default:
		return client.DialWithDialer(dialer, addr)
	}
}

// watchClose flips the state when the transport reports the session
// gone, server-initiated closes included.
func (a *IMAPAccount) watchClose(c *client.Client) {
	<-c.LoggedOut()

	a.mu.Lock()
	if a.client == c {
		a.client = nil
		a.setState(StateDisconnected)
	}
	a.mu.Unlock()
}

// Disconnect logs out and tears the connection down.
func (a *IMAPAccount) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateConnected || a.client == nil {
		a.setState(StateDisconnected)
		return nil
	}

	err := a.client.Logout()
	a.client = nil
	a.setState(StateDisconnected)
	if err != nil {
		return fmt.Errorf("imap logout: %w", err)
	}
	return nil
}

// State returns the current connection state.
func (a *IMAPAccount) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Connected reports whether the backend holds a live session.
func (a *IMAPAccount) Connected() bool {
	return a.State() == StateConnected
}

// conn returns the live client or ErrNotConnected.
func (a *IMAPAccount) conn() (*client.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateConnected || a.client == nil {
		return nil, ErrNotConnected
	}
	return a.client, nil
}

// ListMailboxes enumerates the full mailbox hierarchy as a flat list.
func (a *IMAPAccount) ListMailboxes() ([]mail.Mailbox, error) {
	c, err := a.conn()
	if err != nil {
		return nil, err
	}

	ch := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.List("", "*", ch)
	}()

	var boxes []mail.Mailbox
	for info := range ch {
		boxes = append(boxes, mailboxFromInfo(info))
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to list mailboxes: %w", err)
	}
	return boxes, nil
}

// ListMailboxTree enumerates the mailbox hierarchy grouped by parent.
func (a *IMAPAccount) ListMailboxTree() ([]*mail.MailboxNode, error) {
	boxes, err := a.ListMailboxes()
	if err != nil {
		return nil, err
	}
	return mail.BuildTree(boxes), nil
}

// GetMailbox returns the mailbox with the given path, or nil when the
// account has none.
func (a *IMAPAccount) GetMailbox(path string) (*mail.Mailbox, error) {
	boxes, err := a.ListMailboxes()
	if err != nil {
		return nil, err
	}
	for i := range boxes {
		if boxes[i].Path == path {
			return &boxes[i], nil
		}
	}
	return nil, nil
}

// GetMailboxStatus returns the counters of a mailbox, or nil when the
// mailbox does not exist.
func (a *IMAPAccount) GetMailboxStatus(path string) (*mail.MailboxStatus, error) {
	c, err := a.conn()
	if err != nil {
		return nil, err
	}

	items := []imap.StatusItem{imap.StatusMessages, imap.StatusRecent, imap.StatusUnseen}
	st, err := c.Status(path, items)
	if err != nil {
		// STATUS on a missing mailbox is a protocol error; only
		// report it as one when the mailbox actually exists.
		if mb, lerr := a.GetMailbox(path); lerr == nil && mb == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get status of %s: %w", path, err)
	}
	return statusFromIMAP(st), nil
}

// ListMessages returns the newest limit messages of a mailbox by
// sequence position, normalized. An empty mailbox yields an empty
// slice.
func (a *IMAPAccount) ListMessages(mailbox string, limit int) ([]*mail.Mail, error) {
	c, err := a.conn()
	if err != nil {
		return nil, err
	}

	unlock := a.locks.lock(mailbox)
	defer unlock()

	mbox, err := c.Select(mailbox, false)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", mailbox, err)
	}
	if mbox.Messages == 0 {
		return []*mail.Mail{}, nil
	}

	from, to := fetchWindow(mbox.Messages, limit)
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, to)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchFlags, section.FetchItem()}

	ch := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, ch)
	}()

	mails := make([]*mail.Mail, 0, to-from+1)
	for msg := range ch {
		m, err := a.normalize(msg)
		if err != nil {
			a.log.Warn().Err(err).Uint32("uid", msg.Uid).Msg("skipping unparsable message")
			continue
		}
		mails = append(mails, m)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages from %s: %w", mailbox, err)
	}
	return mails, nil
}

// GetMessage fetches one message by UID, or nil when the mailbox has
// no such message.
func (a *IMAPAccount) GetMessage(mailbox string, uid uint32) (*mail.Mail, error) {
	c, err := a.conn()
	if err != nil {
		return nil, err
	}

	unlock := a.locks.lock(mailbox)
	defer unlock()

	if _, err := c.Select(mailbox, false); err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", mailbox, err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	ch := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, ch)
	}()

	var found *mail.Mail
	for msg := range ch {
		if found != nil {
			continue
		}
		m, err := a.normalize(msg)
		if err != nil {
			a.log.Warn().Err(err).Uint32("uid", msg.Uid).Msg("unparsable message")
			continue
		}
		found = m
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message %d from %s: %w", uid, mailbox, err)
	}
	return found, nil
}

// normalize runs the fetched source through the message normalizer.
func (a *IMAPAccount) normalize(msg *imap.Message) (*mail.Mail, error) {
	r := msg.GetBody(&imap.BodySectionName{})
	if r == nil {
		return nil, fmt.Errorf("message %d has no body section", msg.Uid)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %d: %w", msg.Uid, err)
	}
	return mail.Parse(msg.Uid, raw)
}

// AddFlags adds flags to the given messages.
func (a *IMAPAccount) AddFlags(mailbox string, uids []uint32, flags []string) error {
	return a.storeFlags(mailbox, uids, flags, imap.AddFlags)
}

// RemoveFlags removes flags from the given messages.
func (a *IMAPAccount) RemoveFlags(mailbox string, uids []uint32, flags []string) error {
	return a.storeFlags(mailbox, uids, flags, imap.RemoveFlags)
}

func (a *IMAPAccount) storeFlags(mailbox string, uids []uint32, flags []string, op imap.FlagsOp) error {
	c, err := a.conn()
	if err != nil {
		return err
	}

	unlock := a.locks.lock(mailbox)
	defer unlock()

	if _, err := c.Select(mailbox, false); err != nil {
		return fmt.Errorf("failed to select %s: %w", mailbox, err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	item := imap.FormatFlagsOp(op, true)
	args := make([]interface{}, len(flags))
	for i, f := range flags {
		args[i] = f
	}

	if err := c.UidStore(seqset, item, args, nil); err != nil {
		return fmt.Errorf("failed to update flags in %s: %w", mailbox, err)
	}
	return nil
}

// MoveToMailbox moves messages to another mailbox.
func (a *IMAPAccount) MoveToMailbox(mailbox string, uids []uint32, targetPath string) error {
	c, err := a.conn()
	if err != nil {
		return err
	}

	unlock := a.locks.lock(mailbox)
	defer unlock()

	if _, err := c.Select(mailbox, false); err != nil {
		return fmt.Errorf("failed to select %s: %w", mailbox, err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	if err := c.UidMove(seqset, targetPath); err != nil {
		return fmt.Errorf("failed to move messages to %s: %w", targetPath, err)
	}
	return nil
}

// MoveToTrash moves messages to the account's trash mailbox, trying
// the provider-specific path first and falling back to the generic
// one.
func (a *IMAPAccount) MoveToTrash(mailbox string, uids []uint32) error {
	trash := a.trashPath()

	c, err := a.conn()
	if err != nil {
		return err
	}

	unlock := a.locks.lock(mailbox)
	defer unlock()

	if _, err := c.Select(mailbox, false); err != nil {
		return fmt.Errorf("failed to select %s: %w", mailbox, err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	if err := c.UidMove(seqset, trash); err != nil {
		if trash == genericTrashPath {
			return fmt.Errorf("failed to move messages to trash: %w", err)
		}
		if err := c.UidMove(seqset, genericTrashPath); err != nil {
			return fmt.Errorf("failed to move messages to trash: %w", err)
		}
	}
	return nil
}

// trashPath resolves the provider's trash mailbox: the \Trash
// special-use path when the server advertises one.
func (a *IMAPAccount) trashPath() string {
	boxes, err := a.ListMailboxes()
	if err != nil {
		return gmailTrashPath
	}
	for _, mb := range boxes {
		if mb.SpecialUse == imap.TrashAttr {
			return mb.Path
		}
	}
	return gmailTrashPath
}

// CreateMailbox creates a mailbox at the given path.
func (a *IMAPAccount) CreateMailbox(path string) error {
	c, err := a.conn()
	if err != nil {
		return err
	}
	if err := c.Create(path); err != nil {
		return fmt.Errorf("failed to create mailbox %s: %w", path, err)
	}
	return nil
}

// RenameMailbox renames the mailbox leaf, keeping it under the same
// parent.
func (a *IMAPAccount) RenameMailbox(path, newName string) error {
	mb, err := a.GetMailbox(path)
	if err != nil {
		return err
	}
	if mb == nil {
		return fmt.Errorf("mailbox %s does not exist", path)
	}

	newPath := newName
	if mb.ParentPath != "" {
		newPath = mb.ParentPath + mb.Delimiter + newName
	}

	c, err := a.conn()
	if err != nil {
		return err
	}
	if err := c.Rename(path, newPath); err != nil {
		return fmt.Errorf("failed to rename mailbox %s: %w", path, err)
	}
	return nil
}

// DeleteMailbox deletes the mailbox at the given path.
func (a *IMAPAccount) DeleteMailbox(path string) error {
	c, err := a.conn()
	if err != nil {
		return err
	}
	if err := c.Delete(path); err != nil {
		return fmt.Errorf("failed to delete mailbox %s: %w", path, err)
	}
	return nil
}

// CreateMessage appends a composed raw message to a mailbox, used for
// storing drafts.
func (a *IMAPAccount) CreateMessage(mailbox string, raw []byte) error {
	c, err := a.conn()
	if err != nil {
		return err
	}
	if err := c.Append(mailbox, nil, time.Now(), bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("failed to append message to %s: %w", mailbox, err)
	}
	return nil
}
