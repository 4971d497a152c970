// SPDX-License-Identifier: MIT

package mailer

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sozzifer/microblog/internal/log"
	"github.com/sozzifer/microblog/internal/metrics"
)

// ErrOutboxFull indicates the queue was full and the mail was dropped.
var ErrOutboxFull = errors.New("outbox full, mail dropped")

// ErrOutboxClosed indicates the outbox no longer accepts mail.
var ErrOutboxClosed = errors.New("outbox closed")

// OutboxConfig configures the async send queue.
type OutboxConfig struct {
	// QueueSize bounds the buffered channel behind Enqueue.
	QueueSize int
	// RatePerSecond throttles the worker.
	RatePerSecond float64
	// SendTimeout bounds one delivery attempt.
	SendTimeout time.Duration
	// MaxAttempts caps delivery retries per message.
	MaxAttempts int
}

// Outbox decouples request handling from SMTP delivery: Enqueue never
// blocks, a single worker goroutine drains the queue.
type Outbox struct {
	mailer Mailer
	cfg    OutboxConfig

	ch      chan *Mail
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewOutbox creates the queue. Call Start to launch the worker.
func NewOutbox(mailer Mailer, cfg OutboxConfig) *Outbox {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Outbox{
		mailer:  mailer,
		cfg:     cfg,
		ch:      make(chan *Mail, cfg.QueueSize),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
	}
}

// Start launches the worker goroutine. The worker drains the queue
// until Close is called; ctx cancels in-flight deliveries.
func (o *Outbox) Start(ctx context.Context) {
	o.wg.Add(1)
	go o.worker(ctx)
}

// Enqueue queues the message for async delivery. When the queue is full
// the message is dropped with an error log rather than blocking the
// request path.
func (o *Outbox) Enqueue(msg *Mail) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrOutboxClosed
	}

	select {
	case o.ch <- msg:
		metrics.IncMailEnqueued("queued")
		return nil
	default:
		metrics.IncMailEnqueued("dropped")
		logger := log.WithComponent("mailer")
		logger.Error().
			Str("subject", msg.Subject).
			Int(log.FieldRecipients, len(msg.Recipients())).
			Msg("outbox full, dropping mail")
		return ErrOutboxFull
	}
}

// Close stops accepting mail and drains the queue. The context bounds
// the drain; queued mail still unsent when it expires is dropped.
func (o *Outbox) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.ch)
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Outbox) worker(ctx context.Context) {
	defer o.wg.Done()

	for msg := range o.ch {
		if err := o.limiter.Wait(ctx); err != nil {
			// Context canceled: deliver remaining queued mail
			// best-effort, bounded by the per-send timeout only.
			o.deliver(context.WithoutCancel(ctx), msg)
			continue
		}
		o.deliver(ctx, msg)
	}
}

// deliver attempts one message with capped backoff between retries.
func (o *Outbox) deliver(ctx context.Context, msg *Mail) {
	logger := log.WithComponent("mailer")
	backoff := time.Second

	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, o.cfg.SendTimeout)
		msgID, err := o.mailer.Send(sendCtx, msg)
		cancel()

		if err == nil {
			metrics.IncMailSent("success")
			logger.Info().
				Str(log.FieldMessageID, msgID).
				Str("subject", msg.Subject).
				Int(log.FieldRecipients, len(msg.Recipients())).
				Msg("mail sent")
			return
		}

		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Str("subject", msg.Subject).
			Msg("mail delivery failed")

		if attempt == o.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			metrics.IncMailSent("failure")
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}

	metrics.IncMailSent("failure")
	logger.Error().
		Str("subject", msg.Subject).
		Int("attempts", o.cfg.MaxAttempts).
		Msg("mail delivery abandoned")
}
