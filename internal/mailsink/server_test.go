// SPDX-License-Identifier: MIT

package mailsink

import (
	"context"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sozzifer/microblog/internal/mailer"
)

// startSink runs a sink on a random loopback port and returns its
// address and store.
func startSink(t *testing.T, cfg Config) (string, Store) {
	t.Helper()

	store := NewMemoryStore(0)
	srv := NewServer(cfg, store)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("sink did not shut down")
		}
	})

	return ln.Addr().String(), store
}

func TestSinkCapturesSendMail(t *testing.T) {
	addr, store := startSink(t, Config{})

	body := "Subject: hello\r\n\r\nhi there\r\n"
	err := smtp.SendMail(addr, nil, "app@example.com",
		[]string{"john@example.com", "susan@example.com"}, []byte(body))
	require.NoError(t, err)

	msgs, total, err := store.List(1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, total)

	msg := msgs[0]
	assert.Equal(t, "app@example.com", msg.From)
	assert.Equal(t, []string{"john@example.com", "susan@example.com"}, msg.Recipients)
	assert.Contains(t, string(msg.Raw), "hi there")
	assert.NotEmpty(t, msg.ID)

	summary := msg.Summarize()
	assert.Equal(t, "hello", summary.Subject)
}

func TestSinkCapturesApplicationMail(t *testing.T) {
	addr, store := startSink(t, Config{})

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	m := mailer.NewSMTPMailer(mailer.SMTPConfig{Host: host, Port: port, Timeout: 5 * time.Second})
	msgID, err := m.Send(context.Background(), &mailer.Mail{
		Sender:   "admin@example.com",
		To:       []string{"john@example.com"},
		Subject:  "[Microblog] Reset Your Password",
		TextBody: "reset link inside",
		HTMLBody: "<p>reset link inside</p>",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msgID)

	msgs, _, err := store.List(1, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "admin@example.com", msgs[0].From)
	assert.Equal(t, "[Microblog] Reset Your Password", msgs[0].Summarize().Subject)
}

// dialog opens a raw protocol session for edge-case tests.
type dialog struct {
	t  *testing.T
	tc *textproto.Conn
}

func newDialog(t *testing.T, addr string) *dialog {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	tc := textproto.NewConn(conn)
	t.Cleanup(func() { _ = tc.Close() })

	d := &dialog{t: t, tc: tc}
	d.expect(220)
	return d
}

func (d *dialog) send(line string) { require.NoError(d.t, d.tc.PrintfLine("%s", line)) }

func (d *dialog) expect(code int) string {
	d.t.Helper()
	_, msg, err := d.tc.ReadResponse(code)
	require.NoError(d.t, err, "expected %d", code)
	return msg
}

func TestSinkCommandSequencing(t *testing.T) {
	addr, _ := startSink(t, Config{})
	d := newDialog(t, addr)

	// MAIL before HELO
	d.send("MAIL FROM:<a@example.com>")
	d.expect(503)

	d.send("EHLO tester")
	greeting := d.expect(250)
	assert.Contains(t, greeting, "SIZE")

	// DATA before MAIL/RCPT
	d.send("DATA")
	d.expect(503)

	d.send("NOOP")
	d.expect(250)
	d.send("VRFY john")
	d.expect(252)
	d.send("BOGUS")
	d.expect(500)

	d.send("MAIL FROM:<a@example.com>")
	d.expect(250)
	d.send("RCPT TO:<b@example.com>")
	d.expect(250)
	d.send("RSET")
	d.expect(250)

	// RSET cleared the transaction
	d.send("DATA")
	d.expect(503)

	d.send("QUIT")
	d.expect(221)
}

func TestSinkRejectsOversizedDeclaration(t *testing.T) {
	addr, store := startSink(t, Config{MaxMessageBytes: 1024})
	d := newDialog(t, addr)

	d.send("EHLO tester")
	d.expect(250)
	d.send("MAIL FROM:<a@example.com> SIZE=2048")
	d.expect(552)

	_, total, err := store.List(1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSinkRejectsOversizedBody(t *testing.T) {
	addr, store := startSink(t, Config{MaxMessageBytes: 64})
	d := newDialog(t, addr)

	d.send("EHLO tester")
	d.expect(250)
	d.send("MAIL FROM:<a@example.com>")
	d.expect(250)
	d.send("RCPT TO:<b@example.com>")
	d.expect(250)
	d.send("DATA")
	d.expect(354)
	d.send(strings.Repeat("x", 200))
	d.send(".")
	d.expect(552)

	_, total, err := store.List(1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSinkRecipientLimit(t *testing.T) {
	addr, _ := startSink(t, Config{MaxRecipients: 2})
	d := newDialog(t, addr)

	d.send("EHLO tester")
	d.expect(250)
	d.send("MAIL FROM:<a@example.com>")
	d.expect(250)
	d.send("RCPT TO:<r1@example.com>")
	d.expect(250)
	d.send("RCPT TO:<r2@example.com>")
	d.expect(250)
	d.send("RCPT TO:<r3@example.com>")
	d.expect(452)
}

func TestSinkAcceptsNullReversePath(t *testing.T) {
	addr, store := startSink(t, Config{})
	d := newDialog(t, addr)

	d.send("EHLO tester")
	d.expect(250)

	// Bounce messages use the empty reverse-path; it still opens a
	// transaction.
	d.send("MAIL FROM:<>")
	d.expect(250)
	d.send("MAIL FROM:<a@example.com>")
	d.expect(503)
	d.send("RCPT TO:<b@example.com>")
	d.expect(250)
	d.send("DATA")
	d.expect(354)
	d.send("Subject: delivery status")
	d.send("")
	d.send("bounced")
	d.send(".")
	d.expect(250)

	msgs, total, err := store.List(1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Empty(t, msgs[0].From)
	assert.Equal(t, []string{"b@example.com"}, msgs[0].Recipients)
}
