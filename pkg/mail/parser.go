package mail

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
)

// Parse normalizes a raw message source into a Mail. Headers are
// captured by name with the last occurrence winning, address fields
// are expanded into flat lists (omitted entirely when empty), every
// MIME attachment is captured with its raw content, and the body is
// reduced to a single variant: sanitized HTML when an HTML part
// exists, otherwise the plain text part, otherwise no body.
func Parse(uid uint32, raw []byte) (*Mail, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if mr == nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	defer mr.Close()

	m := &Mail{
		UID:        uid,
		RawHeaders: make(map[string]string),
	}

	fields := mr.Header.Fields()
	for fields.Next() {
		m.RawHeaders[fields.Key()] = fields.Value()
	}

	m.From = addressList(mr.Header, "From")
	m.To = addressList(mr.Header, "To")
	m.Cc = addressList(mr.Header, "Cc")
	m.Bcc = addressList(mr.Header, "Bcc")

	if subject, err := mr.Header.Subject(); err == nil {
		m.Subject = subject
	}
	if date, err := mr.Header.Date(); err == nil {
		m.Date = date
	}
	if irt, err := mr.Header.Text("In-Reply-To"); err == nil {
		m.InReplyTo = strings.TrimSpace(irt)
	}
	if refs, err := mr.Header.Text("References"); err == nil {
		m.References = strings.Fields(refs)
	}

	var textBody, htmlBody string
	var hasText, hasHTML bool

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := p.Header.(type) {
		case *gomail.InlineHeader:
			ct, params, _ := h.ContentType()
			switch {
			case strings.HasPrefix(ct, "text/plain") && !hasText:
				b, err := io.ReadAll(p.Body)
				if err != nil {
					continue
				}
				textBody = string(b)
				hasText = true
			case strings.HasPrefix(ct, "text/html") && !hasHTML:
				b, err := io.ReadAll(p.Body)
				if err != nil {
					continue
				}
				htmlBody = string(b)
				hasHTML = true
			default:
				// Inline non-text part, usually an embedded image.
				content, err := io.ReadAll(p.Body)
				if err != nil {
					continue
				}
				m.Attachments = append(m.Attachments, Attachment{
					Filename:           params["name"],
					ContentType:        ct,
					Size:               int64(len(content)),
					ContentID:          messageID(h.Get("Content-Id")),
					ContentDisposition: "inline",
					Content:            content,
				})
			}
		case *gomail.AttachmentHeader:
			ct, _, _ := h.ContentType()
			filename, _ := h.Filename()
			disposition, _, _ := h.ContentDisposition()
			content, err := io.ReadAll(p.Body)
			if err != nil {
				continue
			}
			m.Attachments = append(m.Attachments, Attachment{
				Filename:           filename,
				ContentType:        ct,
				Size:               int64(len(content)),
				ContentID:          messageID(h.Get("Content-Id")),
				ContentDisposition: disposition,
				Content:            content,
			})
		}
	}

	switch {
	case hasHTML:
		m.Body = &Body{Type: BodyHTML, Content: Sanitize(htmlBody)}
	case hasText:
		m.Body = &Body{Type: BodyText, Content: textBody}
	}

	return m, nil
}

// addressList expands an address-bearing header field into a flat
// list. Fields that resolve to zero addresses are omitted rather than
// returned empty.
func addressList(h gomail.Header, key string) []Address {
	list, err := h.AddressList(key)
	if err != nil || len(list) == 0 {
		return nil
	}
	out := make([]Address, 0, len(list))
	for _, a := range list {
		out = append(out, Address{Name: a.Name, Address: a.Address})
	}
	return out
}

// messageID strips the angle brackets of a Message-ID style header
// value.
func messageID(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "<")
	return strings.TrimSuffix(v, ">")
}
