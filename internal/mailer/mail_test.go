// SPDX-License-Identifier: MIT

package mailer

import (
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
)

func TestMailValidate(t *testing.T) {
	tests := []struct {
		name    string
		mail    Mail
		wantErr bool
	}{
		{
			name: "valid text mail",
			mail: Mail{Sender: "admin@example.com", To: []string{"user@example.com"}, TextBody: "hi"},
		},
		{
			name:    "missing sender",
			mail:    Mail{To: []string{"user@example.com"}, TextBody: "hi"},
			wantErr: true,
		},
		{
			name:    "no recipients",
			mail:    Mail{Sender: "admin@example.com", TextBody: "hi"},
			wantErr: true,
		},
		{
			name:    "no body",
			mail:    Mail{Sender: "admin@example.com", To: []string{"user@example.com"}},
			wantErr: true,
		},
		{
			name: "bcc only is enough",
			mail: Mail{Sender: "admin@example.com", Bcc: []string{"user@example.com"}, HTMLBody: "<p>hi</p>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mail.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecipientsCombinesAllFields(t *testing.T) {
	m := Mail{
		To:  []string{"a@example.com"},
		Cc:  []string{"b@example.com"},
		Bcc: []string{"c@example.com"},
	}
	got := m.Recipients()
	if len(got) != 3 {
		t.Fatalf("got %d recipients, want 3", len(got))
	}
}

func TestGenerateMessageID(t *testing.T) {
	id1, err := GenerateMessageID("mail.example.com")
	if err != nil {
		t.Fatalf("GenerateMessageID: %v", err)
	}
	if !strings.HasPrefix(id1, "<") || !strings.HasSuffix(id1, "@mail.example.com>") {
		t.Errorf("malformed message id %q", id1)
	}
	id2, _ := GenerateMessageID("mail.example.com")
	if id1 == id2 {
		t.Error("message ids must be unique")
	}
}

func TestBuildMessageMultipartAlternative(t *testing.T) {
	m := &Mail{
		Sender:   "admin@example.com",
		To:       []string{"susan@example.com"},
		Subject:  "Reset Your Password",
		TextBody: "plain version",
		HTMLBody: "<p>html version</p>",
	}
	raw, err := BuildMessage(m, "<abc@example.com>")
	if err != nil {
		t.Fatalf("BuildMessage: %v", err)
	}

	parsed, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("message does not parse: %v", err)
	}
	if got := parsed.Header.Get("Message-ID"); got != "<abc@example.com>" {
		t.Errorf("Message-ID = %q", got)
	}
	if got := parsed.Header.Get("From"); got != "admin@example.com" {
		t.Errorf("From = %q", got)
	}

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("parse content type: %v", err)
	}
	if mediaType != "multipart/alternative" {
		t.Fatalf("media type = %q, want multipart/alternative", mediaType)
	}

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	var types []string
	var bodies []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read part: %v", err)
		}
		body, _ := io.ReadAll(part)
		types = append(types, part.Header.Get("Content-Type"))
		bodies = append(bodies, string(body))
	}

	if len(types) != 2 {
		t.Fatalf("got %d parts, want 2", len(types))
	}
	// Text part comes first so readers prefer the HTML alternative.
	if !strings.Contains(types[0], "text/plain") || !strings.Contains(bodies[0], "plain version") {
		t.Errorf("first part = %q: %q", types[0], bodies[0])
	}
	if !strings.Contains(types[1], "text/html") || !strings.Contains(bodies[1], "html version") {
		t.Errorf("second part = %q: %q", types[1], bodies[1])
	}
}

func TestBuildMessageTextOnly(t *testing.T) {
	m := &Mail{
		Sender:   "admin@example.com",
		To:       []string{"susan@example.com"},
		Subject:  "hello",
		TextBody: "just text",
	}
	raw, err := BuildMessage(m, "<abc@example.com>")
	if err != nil {
		t.Fatalf("BuildMessage: %v", err)
	}
	parsed, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("message does not parse: %v", err)
	}
	if ct := parsed.Header.Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(parsed.Body)
	if !strings.Contains(string(body), "just text") {
		t.Errorf("body = %q", body)
	}
}

func TestBuildMessageNonASCIISubject(t *testing.T) {
	m := &Mail{
		Sender:   "admin@example.com",
		To:       []string{"susan@example.com"},
		Subject:  "Grüße",
		TextBody: "hi",
	}
	raw, err := BuildMessage(m, "<abc@example.com>")
	if err != nil {
		t.Fatalf("BuildMessage: %v", err)
	}
	parsed, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("message does not parse: %v", err)
	}
	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(parsed.Header.Get("Subject"))
	if err != nil {
		t.Fatalf("decode subject: %v", err)
	}
	if subject != "Grüße" {
		t.Errorf("subject = %q", subject)
	}
}
