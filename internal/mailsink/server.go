// SPDX-License-Identifier: MIT

package mailsink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sozzifer/microblog/internal/log"
	"github.com/sozzifer/microblog/internal/metrics"
)

// Config bounds a sink instance. Zero values fall back to the defaults
// below.
type Config struct {
	Hostname        string
	MaxMessageBytes int64
	MaxRecipients   int
	ReadTimeout     time.Duration
}

const (
	defaultMaxMessageBytes = 10 << 20
	defaultMaxRecipients   = 100
	defaultReadTimeout     = 5 * time.Minute
)

// Server is the SMTP half of the sink. It accepts any sender and
// recipient, stores the message, and never relays anything.
type Server struct {
	cfg   Config
	store Store

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer creates an SMTP sink in front of store.
func NewServer(cfg Config, store Store) *Server {
	if cfg.Hostname == "" {
		cfg.Hostname = "mailsink.local"
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = defaultMaxMessageBytes
	}
	if cfg.MaxRecipients <= 0 {
		cfg.MaxRecipients = defaultMaxRecipients
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	return &Server{
		cfg:   cfg,
		store: store,
		conns: make(map[net.Conn]struct{}),
	}
}

// Serve runs the accept loop on ln until ctx is canceled. Open
// connections are closed on shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer func() { _ = ln.Close() }()
	go func() {
		<-ctx.Done()
		s.closeAllConns()
		_ = ln.Close()
	}()

	logger := log.WithComponent("mailsink")
	logger.Info().
		Str("event", "sink.listening").
		Str("addr", ln.Addr().String()).
		Msg("smtp sink listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		go s.handleConn(conn)
	}
}

func (s *Server) trackConn(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrackConn(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) closeAllConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

// session is the per-connection SMTP state.
type session struct {
	greeted bool
	// gotFrom tracks MAIL separately from the address: the empty
	// reverse-path MAIL FROM:<> still opens a transaction.
	gotFrom bool
	from    string
	rcpts   []string
}

func (sess *session) reset() {
	sess.gotFrom = false
	sess.from = ""
	sess.rcpts = nil
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	defer s.untrackConn(conn)

	remote := conn.RemoteAddr().String()
	logger := log.WithComponent("mailsink")
	logger.Debug().Str("remote", remote).Msg("client connected")

	tc := textproto.NewConn(conn)
	_ = tc.PrintfLine("220 %s microblog mailsink ready", s.cfg.Hostname)

	sess := &session{}
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		line, err := tc.ReadLine()
		if err != nil {
			return
		}

		verb, args := splitCommand(line)
		switch verb {
		case "EHLO":
			sess.greeted = true
			sess.reset()
			_ = tc.PrintfLine("250-%s greets you", s.cfg.Hostname)
			_ = tc.PrintfLine("250-8BITMIME")
			_ = tc.PrintfLine("250 SIZE %d", s.cfg.MaxMessageBytes)
		case "HELO":
			sess.greeted = true
			sess.reset()
			_ = tc.PrintfLine("250 %s", s.cfg.Hostname)
		case "MAIL":
			s.handleMail(tc, sess, args)
		case "RCPT":
			s.handleRcpt(tc, sess, args)
		case "DATA":
			s.handleData(tc, conn, sess, remote)
		case "RSET":
			sess.reset()
			_ = tc.PrintfLine("250 2.0.0 Ok")
		case "NOOP":
			_ = tc.PrintfLine("250 2.0.0 Ok")
		case "VRFY":
			// Sink accepts everything; don't claim to have verified.
			_ = tc.PrintfLine("252 2.1.5 Cannot verify, will accept message")
		case "QUIT":
			_ = tc.PrintfLine("221 2.0.0 %s closing connection", s.cfg.Hostname)
			return
		default:
			_ = tc.PrintfLine("500 5.5.2 Unrecognized command")
		}
	}
}

func (s *Server) handleMail(tc *textproto.Conn, sess *session, args string) {
	if !sess.greeted {
		_ = tc.PrintfLine("503 5.5.1 Send HELO/EHLO first")
		return
	}
	if sess.gotFrom {
		_ = tc.PrintfLine("503 5.5.1 Nested MAIL command")
		return
	}
	addr, params, ok := parsePath(args, "FROM")
	if !ok {
		_ = tc.PrintfLine("501 5.5.4 Syntax: MAIL FROM:<address>")
		return
	}
	if declared, ok := params["SIZE"]; ok {
		if n, err := strconv.ParseInt(declared, 10, 64); err == nil && n > s.cfg.MaxMessageBytes {
			metrics.IncSinkMessageRejected("size")
			_ = tc.PrintfLine("552 5.3.4 Message exceeds maximum size")
			return
		}
	}
	sess.gotFrom = true
	sess.from = addr
	_ = tc.PrintfLine("250 2.1.0 Ok")
}

func (s *Server) handleRcpt(tc *textproto.Conn, sess *session, args string) {
	if !sess.gotFrom {
		_ = tc.PrintfLine("503 5.5.1 Need MAIL command first")
		return
	}
	if len(sess.rcpts) >= s.cfg.MaxRecipients {
		metrics.IncSinkMessageRejected("recipients")
		_ = tc.PrintfLine("452 5.5.3 Too many recipients")
		return
	}
	addr, _, ok := parsePath(args, "TO")
	if !ok {
		_ = tc.PrintfLine("501 5.5.4 Syntax: RCPT TO:<address>")
		return
	}
	sess.rcpts = append(sess.rcpts, addr)
	_ = tc.PrintfLine("250 2.1.5 Ok")
}

func (s *Server) handleData(tc *textproto.Conn, conn net.Conn, sess *session, remote string) {
	if !sess.gotFrom || len(sess.rcpts) == 0 {
		_ = tc.PrintfLine("503 5.5.1 Need MAIL and RCPT first")
		return
	}
	_ = tc.PrintfLine("354 End data with <CR><LF>.<CR><LF>")

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	dr := tc.DotReader()
	body, err := io.ReadAll(io.LimitReader(dr, s.cfg.MaxMessageBytes+1))
	// Drain the rest of the dot-terminated body so the next command
	// starts on a clean line, even when the size limit cut us short.
	_, _ = io.Copy(io.Discard, dr)
	if err != nil {
		_ = tc.PrintfLine("451 4.3.0 Error reading message data")
		sess.reset()
		return
	}
	if int64(len(body)) > s.cfg.MaxMessageBytes {
		metrics.IncSinkMessageRejected("size")
		_ = tc.PrintfLine("552 5.3.4 Message exceeds maximum size")
		sess.reset()
		return
	}

	msg := &Message{
		ID:         uuid.New().String(),
		From:       sess.from,
		Recipients: sess.rcpts,
		ReceivedAt: time.Now().UTC(),
		ClientAddr: remote,
		Size:       int64(len(body)),
		Raw:        body,
	}
	if err := s.store.Save(msg); err != nil {
		logger := log.WithComponent("mailsink")
		logger.Error().
			Err(err).
			Str("message_id", msg.ID).
			Msg("message store failed")
		metrics.IncSinkMessageRejected("store")
		_ = tc.PrintfLine("451 4.3.0 Local error storing message")
		sess.reset()
		return
	}

	metrics.IncSinkMessageReceived(msg.Size)
	logger := log.WithComponent("mailsink")
	logger.Info().
		Str("event", "sink.message").
		Str("message_id", msg.ID).
		Str("from", msg.From).
		Int("recipients", len(msg.Recipients)).
		Int64("bytes", msg.Size).
		Msg("message captured")

	_ = tc.PrintfLine("250 2.0.0 Ok: queued as %s", msg.ID)
	sess.reset()
}

func splitCommand(line string) (verb, args string) {
	verb = line
	if i := strings.IndexByte(line, ' '); i >= 0 {
		verb, args = line[:i], strings.TrimSpace(line[i+1:])
	}
	return strings.ToUpper(verb), args
}

// parsePath extracts the address from "FROM:<addr> PARAM=..." style
// arguments. The empty reverse-path MAIL FROM:<> is accepted.
func parsePath(args, keyword string) (addr string, params map[string]string, ok bool) {
	prefix := keyword + ":"
	if len(args) < len(prefix) || !strings.EqualFold(args[:len(prefix)], prefix) {
		return "", nil, false
	}
	rest := strings.TrimSpace(args[len(prefix):])

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil, false
	}
	addr = strings.TrimSuffix(strings.TrimPrefix(fields[0], "<"), ">")

	params = make(map[string]string)
	for _, f := range fields[1:] {
		k, v, _ := strings.Cut(f, "=")
		params[strings.ToUpper(k)] = v
	}
	return addr, params, true
}

// ListenAndServe listens on addr and runs Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mailsink listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}
