// Package sender is the reference outbound-sender collaborator: it
// consumes NotificationEvents, renders a localized message per
// recipient, and delivers it through a pluggable Transport. Rate-limit
// responses are retried with the server-supplied backoff up to a fixed
// attempt cap; any other failure is logged and the message is dropped —
// at-most-once delivery, the same behavior spec.md's "other error
// silently succeeds" design note describes, but made observable via the
// returned Outcome instead of swallowed.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hdbg/pjatkbot-go/internal/bus"
	"github.com/hdbg/pjatkbot-go/internal/model"
	"github.com/hdbg/pjatkbot-go/internal/ratelimit"
	"github.com/hdbg/pjatkbot-go/internal/store"
)

// Transport delivers one rendered message to one external user id. A
// RateLimitError return triggers Sender's retry-with-backoff path;
// any other error is a permanent failure for that attempt.
type Transport interface {
	SendMessage(ctx context.Context, userID, text string) error
}

// RateLimitError signals the remote asked the caller to slow down and
// try again after RetryAfter.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("sender: rate limited, retry after %s", e.RetryAfter)
}

// Outcome is what happened to one recipient's delivery attempt.
type Outcome int

const (
	OutcomeSent Outcome = iota
	// OutcomeDropped covers both "permanent transport failure" and
	// "exhausted retry attempts" — either way the message was not
	// delivered and will not be retried again. spec.md's "other error
	// silently succeeds" note is satisfied here by returning this value
	// rather than hiding the drop from the caller.
	OutcomeDropped
)

const defaultMaxAttempts = 10

// Sender implements spec.md §4.7's retry/drop contract against a
// pluggable Transport.
type Sender struct {
	transport   Transport
	store       store.Store
	limiter     *ratelimit.Limiter
	maxAttempts int
	logger      *slog.Logger
}

// Config bundles Sender's dependencies.
type Config struct {
	Transport       Transport
	Store           store.Store
	RateLimitPerMin int
	MaxAttempts     int
	Logger          *slog.Logger
}

// New builds a Sender.
func New(cfg Config) *Sender {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Sender{
		transport:   cfg.Transport,
		store:       cfg.Store,
		limiter:     ratelimit.New(cfg.RateLimitPerMin),
		maxAttempts: maxAttempts,
		logger:      cfg.Logger,
	}
}

// Run consumes notifications until ctx is done or the topic is closed.
func (s *Sender) Run(ctx context.Context, notifications *bus.Topic[bus.NotificationEvent]) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-notifications.Recv():
			if !ok {
				return nil
			}
			s.dispatch(ctx, ev)
		}
	}
}

func (s *Sender) dispatch(ctx context.Context, ev bus.NotificationEvent) {
	for _, userID := range ev.UserIDs {
		outcome := s.Send(ctx, userID, ev)
		if outcome == OutcomeDropped {
			s.log().Warn("sender: message dropped", "user_id", userID, "kind", ev.Kind, "class", ev.Class.Name)
		}
	}
}

// Send renders and delivers one message to one recipient, retrying on
// RateLimitError up to maxAttempts total attempts.
func (s *Sender) Send(ctx context.Context, userID string, ev bus.NotificationEvent) Outcome {
	text := s.render(ctx, userID, ev, time.Now())

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return OutcomeDropped
		}

		err := s.transport.SendMessage(ctx, userID, text)
		if err == nil {
			return OutcomeSent
		}

		var rle *RateLimitError
		if errors.As(err, &rle) {
			select {
			case <-time.After(rle.RetryAfter):
				continue
			case <-ctx.Done():
				return OutcomeDropped
			}
		}

		s.log().Error("sender: delivery failed", "user_id", userID, "attempt", attempt, "error", err)
		return OutcomeDropped
	}

	s.log().Warn("sender: exhausted retry attempts", "user_id", userID, "attempts", s.maxAttempts)
	return OutcomeDropped
}

func (s *Sender) render(ctx context.Context, userID string, ev bus.NotificationEvent, now time.Time) string {
	lang := model.LanguageEnglish
	if s.store != nil {
		if u, err := s.store.User(ctx, userID); err == nil {
			lang = u.Language
		}
	}
	return renderMessage(lang, ev, now)
}

func (s *Sender) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
