package notifier

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Sender delivers a single message.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Outbox decouples message producers from delivery. Post never blocks; a
// full buffer drops the message with a warning.
type Outbox struct {
	sender  Sender
	ch      chan string
	retries int
}

// NewOutbox creates an outbox holding up to size undelivered messages.
func NewOutbox(sender Sender, size, retries int) *Outbox {
	if size <= 0 {
		size = 64
	}
	return &Outbox{sender: sender, ch: make(chan string, size), retries: retries}
}

// Post queues text for delivery.
func (o *Outbox) Post(text string) {
	select {
	case o.ch <- text:
	default:
		log.Warn().Int("buffer", cap(o.ch)).Msg("outbox full, dropping notification")
	}
}

// Run delivers queued messages until ctx is cancelled.
func (o *Outbox) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-o.ch:
			if err := o.sender.SendWithRetry(ctx, text, o.retries); err != nil {
				log.Error().Err(err).Msg("notification not delivered")
			}
		}
	}
}

// LogSender writes messages to the log instead of a chat. Used when no bot
// token is configured.
type LogSender struct{}

func (LogSender) SendWithRetry(_ context.Context, text string, _ int) error {
	log.Info().Str("text", text).Msg("notification")
	return nil
}
