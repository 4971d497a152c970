// SPDX-License-Identifier: MIT

// Package mailer sends application email through an async outbox.
package mailer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// Mail represents an email message.
//
// Addresses may be of any form permitted by RFC 822. At least one of
// To, Cc or Bcc must be non-empty, and at least one of TextBody or
// HTMLBody must be non-empty.
type Mail struct {
	// Sender is put into the "From" header field.
	Sender string

	// ReplyTo is put into the "Reply-To" header field. Optional.
	ReplyTo string

	// To is put into the "To" header field.
	To []string

	// Cc is put into the "Cc" header field.
	Cc []string

	// Bcc recipients receive the message without appearing in headers.
	Bcc []string

	// Subject is put into the "Subject" header field.
	Subject string

	// TextBody is the plaintext body of the message.
	TextBody string

	// HTMLBody is the HTML body of the message. When both bodies are
	// set the message is sent as multipart/alternative.
	HTMLBody string
}

// Validate checks the message is sendable.
func (m *Mail) Validate() error {
	if m.Sender == "" {
		return errors.New("mail has no sender")
	}
	if len(m.To)+len(m.Cc)+len(m.Bcc) == 0 {
		return errors.New("mail has no recipients")
	}
	if m.TextBody == "" && m.HTMLBody == "" {
		return errors.New("mail has no body")
	}
	return nil
}

// Recipients returns all envelope recipients.
func (m *Mail) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	out = append(out, m.To...)
	out = append(out, m.Cc...)
	out = append(out, m.Bcc...)
	return out
}

// Mailer knows how to deliver messages. Implementations return the
// Message-ID of the sent message.
type Mailer interface {
	Send(ctx context.Context, msg *Mail) (string, error)
}

// MailerFunc adapts a function to the Mailer interface, useful in tests.
type MailerFunc func(ctx context.Context, msg *Mail) (string, error)

func (f MailerFunc) Send(ctx context.Context, msg *Mail) (string, error) {
	return f(ctx, msg)
}

// GenerateMessageID produces an RFC 5322 Message-ID scoped to the given
// host.
func GenerateMessageID(host string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("<%s@%s>", hex.EncodeToString(buf), host), nil
}
