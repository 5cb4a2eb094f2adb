package mail

import "time"

// Address is a single parsed mailbox address with an optional display
// name.
type Address struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// BodyType tags the single content variant a mail body carries.
type BodyType string

const (
	BodyText BodyType = "text"
	BodyHTML BodyType = "html"
)

// Body is the selected content variant of a message. A message never
// exposes text and HTML at the same time; selection happens during
// normalization.
type Body struct {
	Type    BodyType `json:"contentType"`
	Content string   `json:"content"`
}

// Attachment describes one MIME attachment. Content holds the raw
// decoded bytes and stays inside the normalization pipeline; it is
// stripped by Mail.Redacted before a message crosses the API boundary.
type Attachment struct {
	Filename           string `json:"filename,omitempty"`
	ContentType        string `json:"contentType"`
	Size               int64  `json:"size"`
	ContentID          string `json:"contentId,omitempty"`
	ContentDisposition string `json:"contentDisposition,omitempty"`
	Content            []byte `json:"-"`
}

// Inline reports whether the attachment is referenced from the message
// body (inline disposition or a Content-ID).
func (a Attachment) Inline() bool {
	return a.ContentDisposition == "inline" || a.ContentID != ""
}

// Mail is the normalized, safe-to-render projection of one message.
type Mail struct {
	UID        uint32            `json:"uid"`
	RawHeaders map[string]string `json:"rawHeaders"`

	From []Address `json:"from,omitempty"`
	To   []Address `json:"to,omitempty"`
	Cc   []Address `json:"cc,omitempty"`
	Bcc  []Address `json:"bcc,omitempty"`

	Subject    string    `json:"subject,omitempty"`
	InReplyTo  string    `json:"inReplyTo,omitempty"`
	References []string  `json:"references,omitempty"`
	Date       time.Time `json:"date"`

	Attachments []Attachment `json:"attachments"`
	Body        *Body        `json:"body,omitempty"`
}

// HasAttachments reports whether the mail carries any attachments.
func (m *Mail) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// AttachmentsByType returns the attachments with the given content
// type.
func (m *Mail) AttachmentsByType(contentType string) []Attachment {
	var out []Attachment
	for _, a := range m.Attachments {
		if a.ContentType == contentType {
			out = append(out, a)
		}
	}
	return out
}

// InlineAttachments returns the attachments embedded in the body.
func (m *Mail) InlineAttachments() []Attachment {
	var out []Attachment
	for _, a := range m.Attachments {
		if a.Inline() {
			out = append(out, a)
		}
	}
	return out
}

// RegularAttachments returns the attachments that are not inline.
func (m *Mail) RegularAttachments() []Attachment {
	var out []Attachment
	for _, a := range m.Attachments {
		if !a.Inline() {
			out = append(out, a)
		}
	}
	return out
}

// Redacted returns a copy of the mail with attachment content removed,
// keeping only attachment metadata. Every value that leaves the core
// must go through this.
func (m *Mail) Redacted() *Mail {
	out := *m
	if len(m.Attachments) > 0 {
		out.Attachments = make([]Attachment, len(m.Attachments))
		for i, a := range m.Attachments {
			a.Content = nil
			out.Attachments[i] = a
		}
	}
	return &out
}
