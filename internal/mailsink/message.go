// SPDX-License-Identifier: MIT

// Package mailsink implements a local, non-delivering SMTP server that
// captures messages for inspection over HTTP. It exists so the
// password-reset flow can be exercised during development without a
// real mail provider.
package mailsink

import (
	"net/mail"
	"strings"
	"time"
)

// Message is one captured SMTP transaction: the envelope plus the raw
// DATA bytes exactly as received (dot-unstuffed).
type Message struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	Recipients []string  `json:"recipients"`
	ReceivedAt time.Time `json:"received_at"`
	ClientAddr string    `json:"client_addr"`
	Size       int64     `json:"size"`
	Raw        []byte    `json:"raw"`
}

// Summary is the listing view of a message: envelope plus a few parsed
// headers, without the body.
type Summary struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	Recipients []string  `json:"recipients"`
	ReceivedAt time.Time `json:"received_at"`
	Size       int64     `json:"size"`
	Subject    string    `json:"subject"`
	HeaderFrom string    `json:"header_from,omitempty"`
	HeaderTo   string    `json:"header_to,omitempty"`
}

// Summarize parses the message headers. A message that does not parse
// as RFC 5322 still gets a summary from its envelope.
func (m *Message) Summarize() Summary {
	s := Summary{
		ID:         m.ID,
		From:       m.From,
		Recipients: m.Recipients,
		ReceivedAt: m.ReceivedAt,
		Size:       m.Size,
	}
	parsed, err := mail.ReadMessage(strings.NewReader(string(m.Raw)))
	if err != nil {
		return s
	}
	s.Subject = parsed.Header.Get("Subject")
	s.HeaderFrom = parsed.Header.Get("From")
	s.HeaderTo = parsed.Header.Get("To")
	return s
}
