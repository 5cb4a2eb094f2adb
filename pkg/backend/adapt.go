package backend

import (
	"github.com/emersion/go-imap"

	"github.com/Delivr-Project/Delivr-API/pkg/mail"
)

// Special-use attributes from RFC 6154. Servers return them as plain
// mailbox attributes in LIST responses.
var specialUseAttrs = map[string]bool{
	imap.AllAttr:     true,
	imap.ArchiveAttr: true,
	imap.DraftsAttr:  true,
	imap.FlaggedAttr: true,
	imap.JunkAttr:    true,
	imap.SentAttr:    true,
	imap.TrashAttr:   true,
}

// mailboxFromInfo maps a LIST response to the internal mailbox shape.
func mailboxFromInfo(info *imap.MailboxInfo) mail.Mailbox {
	flags := make([]string, 0, len(info.Attributes))
	var specialUse string
	for _, attr := range info.Attributes {
		flags = append(flags, attr)
		if specialUseAttrs[attr] {
			specialUse = attr
		}
	}
	return mail.NewMailbox(info.Name, info.Delimiter, flags, specialUse)
}

// statusFromIMAP maps a STATUS response to the internal counters.
func statusFromIMAP(st *imap.MailboxStatus) *mail.MailboxStatus {
	return &mail.MailboxStatus{
		Messages: st.Messages,
		Recent:   st.Recent,
		Unseen:   st.Unseen,
	}
}

// fetchWindow returns the sequence range covering the newest limit
// messages of a mailbox with total messages: [max(1,total-limit+1),
// total]. The caller handles the empty mailbox before calling.
func fetchWindow(total uint32, limit int) (from, to uint32) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	from = 1
	if uint32(limit) < total {
		from = total - uint32(limit) + 1
	}
	return from, total
}
