// SPDX-License-Identifier: MIT

package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// SMTPConfig configures the outbound SMTP transport.
type SMTPConfig struct {
	Host     string
	Port     int
	UseTLS   bool // issue STARTTLS after EHLO
	Username string
	Password string
	// Timeout bounds the whole SMTP dialogue for one message.
	Timeout time.Duration
}

// SMTPMailer delivers messages over the standard SMTP client handshake.
// The standard library client is used directly: the dependency surface
// carries no SMTP client library, and the handshake is small.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer creates an SMTP transport.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPMailer{cfg: cfg}
}

// Send delivers the message and returns its Message-ID.
func (m *SMTPMailer) Send(ctx context.Context, msg *Mail) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	msgID, err := GenerateMessageID(m.cfg.Host)
	if err != nil {
		return "", fmt.Errorf("generate message id: %w", err)
	}

	raw, err := BuildMessage(msg, msgID)
	if err != nil {
		return "", fmt.Errorf("build message: %w", err)
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	dialer := net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", addr, err)
	}
	// One deadline covers the whole dialogue.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(m.cfg.Timeout))
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return "", fmt.Errorf("smtp handshake: %w", err)
	}
	defer func() { _ = client.Close() }()

	if m.cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return "", fmt.Errorf("server %s does not offer STARTTLS", m.cfg.Host)
		}
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return "", fmt.Errorf("starttls: %w", err)
		}
	}

	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return "", fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(msg.Sender); err != nil {
		return "", fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, rcpt := range msg.Recipients() {
		if err := client.Rcpt(rcpt); err != nil {
			return "", fmt.Errorf("RCPT TO %s: %w", rcpt, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		return "", fmt.Errorf("DATA: %w", err)
	}
	if _, err := wc.Write(raw); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("write body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close body: %w", err)
	}

	if err := client.Quit(); err != nil {
		return "", fmt.Errorf("QUIT: %w", err)
	}
	return msgID, nil
}

// BuildMessage assembles the raw RFC 5322 message bytes. Messages with
// both a text and an HTML body become multipart/alternative, text part
// first so conforming readers prefer the HTML rendering.
func BuildMessage(msg *Mail, msgID string) ([]byte, error) {
	var buf bytes.Buffer

	writeHeader := func(key, value string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", key, value)
	}

	writeHeader("From", msg.Sender)
	if len(msg.To) > 0 {
		writeHeader("To", strings.Join(msg.To, ", "))
	}
	if len(msg.Cc) > 0 {
		writeHeader("Cc", strings.Join(msg.Cc, ", "))
	}
	if msg.ReplyTo != "" {
		writeHeader("Reply-To", msg.ReplyTo)
	}
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader("Date", time.Now().UTC().Format(time.RFC1123Z))
	writeHeader("Message-ID", msgID)
	writeHeader("MIME-Version", "1.0")

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		mw := multipart.NewWriter(&buf)
		writeHeader("Content-Type", `multipart/alternative; boundary="`+mw.Boundary()+`"`)
		buf.WriteString("\r\n")

		textPart, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type": {`text/plain; charset="utf-8"`},
		})
		if err != nil {
			return nil, err
		}
		if _, err := textPart.Write([]byte(msg.TextBody)); err != nil {
			return nil, err
		}

		htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type": {`text/html; charset="utf-8"`},
		})
		if err != nil {
			return nil, err
		}
		if _, err := htmlPart.Write([]byte(msg.HTMLBody)); err != nil {
			return nil, err
		}

		if err := mw.Close(); err != nil {
			return nil, err
		}

	case msg.HTMLBody != "":
		writeHeader("Content-Type", `text/html; charset="utf-8"`)
		buf.WriteString("\r\n")
		buf.WriteString(msg.HTMLBody)

	default:
		writeHeader("Content-Type", `text/plain; charset="utf-8"`)
		buf.WriteString("\r\n")
		buf.WriteString(msg.TextBody)
	}

	return buf.Bytes(), nil
}
