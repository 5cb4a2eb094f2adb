package backend

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	jwemail "github.com/jordan-wright/email"
	"github.com/rs/zerolog"

	"github.com/Delivr-Project/Delivr-API/pkg/config"
	"github.com/Delivr-Project/Delivr-API/pkg/mail"
)

// ErrNoSender is returned when a mail to be submitted carries no From
// address.
var ErrNoSender = errors.New("smtp: mail has no sender")

// SMTPAccount submits composed messages for one account. It is
// stateless beyond its credentials; every send opens its own
// connection.
type SMTPAccount struct {
	server config.Server
	log    zerolog.Logger
}

// NewSMTPAccount creates a submission backend from credentials.
func NewSMTPAccount(server config.Server, log zerolog.Logger) *SMTPAccount {
	return &SMTPAccount{
		server: server,
		log:    log.With().Str("smtp", server.Addr()).Logger(),
	}
}

// SendResult reports the outcome of a successful submission.
type SendResult struct {
	MessageID string `json:"messageId"`
}

// SendMail builds a transport message from the structured fields of m
// and submits it.
func (a *SMTPAccount) SendMail(m *mail.Mail) (*SendResult, error) {
	e, err := buildMessage(m)
	if err != nil {
		return nil, err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), a.server.Host)
	e.Headers.Set("Message-Id", messageID)

	addr := a.server.Addr()
	var auth smtp.Auth
	if a.server.Username != "" {
		auth = smtp.PlainAuth("", a.server.Username, a.server.Password, a.server.Host)
	}
	tlsConfig := &tls.Config{ServerName: a.server.Host}

	switch a.server.Encryption {
	case config.EncryptionSSL:
		err = e.SendWithTLS(addr, auth, tlsConfig)
	case config.EncryptionSTARTTLS:
		err = e.SendWithStartTLS(addr, auth, tlsConfig)
	default:
		err = e.Send(addr, auth)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to send mail: %w", err)
	}

	a.log.Debug().Str("message_id", messageID).Msg("mail submitted")
	return &SendResult{MessageID: messageID}, nil
}

// buildMessage maps the structured mail onto the transport message:
// addresses formatted with their display name, the single body variant
// copied into the matching transport field, threading headers and the
// date verbatim.
func buildMessage(m *mail.Mail) (*jwemail.Email, error) {
	if len(m.From) == 0 {
		return nil, ErrNoSender
	}

	e := jwemail.NewEmail()
	e.From = formatAddress(m.From[0])
	e.To = formatAddresses(m.To)
	e.Cc = formatAddresses(m.Cc)
	e.Bcc = formatAddresses(m.Bcc)
	e.Subject = m.Subject

	if m.Body != nil {
		switch m.Body.Type {
		case mail.BodyHTML:
			e.HTML = []byte(m.Body.Content)
		default:
			e.Text = []byte(m.Body.Content)
		}
	}

	if m.InReplyTo != "" {
		e.Headers.Set("In-Reply-To", m.InReplyTo)
	}
	if len(m.References) > 0 {
		e.Headers.Set("References", strings.Join(m.References, " "))
	}
	if !m.Date.IsZero() {
		e.Headers.Set("Date", m.Date.Format(time.RFC1123Z))
	}

	return e, nil
}

func formatAddress(a mail.Address) string {
	if a.Name != "" {
		return fmt.Sprintf("%q <%s>", a.Name, a.Address)
	}
	return a.Address
}

func formatAddresses(addrs []mail.Address) []string {
	var out []string
	for _, a := range addrs {
		out = append(out, formatAddress(a))
	}
	return out
}
