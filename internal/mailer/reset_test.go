// SPDX-License-Identifier: MIT

package mailer

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSendPasswordReset(t *testing.T) {
	capture := &captureMailer{}
	o := NewOutbox(capture, OutboxConfig{QueueSize: 4, RatePerSecond: 1000})
	o.Start(context.Background())

	sender := NewResetSender(o, "admin@example.com")
	err := sender.SendPasswordReset("susan", "susan@example.com", "http://localhost:8080/reset_password/tok123")
	if err != nil {
		t.Fatalf("SendPasswordReset: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if capture.count() != 1 {
		t.Fatalf("delivered %d messages, want 1", capture.count())
	}
	msg := capture.sent[0]

	if msg.Sender != "admin@example.com" {
		t.Errorf("sender = %q", msg.Sender)
	}
	if len(msg.To) != 1 || msg.To[0] != "susan@example.com" {
		t.Errorf("to = %v", msg.To)
	}
	if msg.Subject != "[Microblog] Reset Your Password" {
		t.Errorf("subject = %q", msg.Subject)
	}
	for _, body := range []string{msg.TextBody, msg.HTMLBody} {
		if !strings.Contains(body, "susan") {
			t.Errorf("body missing username: %q", body)
		}
		if !strings.Contains(body, "http://localhost:8080/reset_password/tok123") {
			t.Errorf("body missing reset URL: %q", body)
		}
	}
	if !strings.Contains(msg.HTMLBody, "<a href=") {
		t.Error("html body missing link markup")
	}
}
