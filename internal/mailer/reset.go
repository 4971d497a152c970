// SPDX-License-Identifier: MIT

package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/sozzifer/microblog/templates"
)

var (
	resetTextTmpl = texttemplate.Must(
		texttemplate.ParseFS(templates.FS, "email/reset_password.txt"))
	resetHTMLTmpl = htmltemplate.Must(
		htmltemplate.ParseFS(templates.FS, "email/reset_password.html"))
)

// ResetEmailData feeds the password-reset email templates.
type ResetEmailData struct {
	Username string
	ResetURL string
}

// ResetSender composes and enqueues password-reset messages.
type ResetSender struct {
	outbox *Outbox
	sender string
}

// NewResetSender creates a reset-mail composer. The sender address is
// the first configured admin address.
func NewResetSender(outbox *Outbox, sender string) *ResetSender {
	return &ResetSender{outbox: outbox, sender: sender}
}

// SendPasswordReset renders both email bodies and enqueues the message.
func (s *ResetSender) SendPasswordReset(username, email, resetURL string) error {
	data := ResetEmailData{Username: username, ResetURL: resetURL}

	var text bytes.Buffer
	if err := resetTextTmpl.Execute(&text, data); err != nil {
		return fmt.Errorf("render text body: %w", err)
	}
	var html bytes.Buffer
	if err := resetHTMLTmpl.Execute(&html, data); err != nil {
		return fmt.Errorf("render html body: %w", err)
	}

	return s.outbox.Enqueue(&Mail{
		Sender:   s.sender,
		To:       []string{email},
		Subject:  "[Microblog] Reset Your Password",
		TextBody: text.String(),
		HTMLBody: html.String(),
	})
}
