package goIdentity

import (
	"context"
	"io"

	"github.com/MrEthical07/goIdentity/internal/events"
)

type (
	// AccountEvent describes one applied account mutation.
	AccountEvent = events.Event
	// EventSink receives account events, typically a message-queue publisher.
	EventSink = events.Sink
	// NoOpSink discards account events.
	NoOpSink = events.NoOpSink
)

const (
	EventUserRegistered     = "user.registered"
	EventUserActivated      = "user.activated"
	EventEmailChanged       = "user.email_changed"
	EventPasswordChanged    = "user.password_changed"
	EventPasswordReset      = "user.password_reset"
	EventUsernameChanged    = "user.username_changed"
	EventRoleChanged        = "user.role_changed"
	EventSessionsRevoked    = "user.sessions_revoked"
	EventConfirmationIssued = "confirmation.issued"
)

// ChannelSink hands account events to an in-process consumer.
type ChannelSink = events.ChannelSink

func NewChannelSink(buffer int) *ChannelSink {
	return events.NewChannelSink(buffer)
}

// NewJSONLinesSink writes one JSON event per line to w.
func NewJSONLinesSink(w io.Writer) EventSink {
	return events.NewJSONLinesSink(w)
}

func (e *Engine) emitEvent(ctx context.Context, eventType, userID, actorID string, metadata map[string]string) {
	if e == nil || e.events == nil {
		return
	}
	ev := events.New(eventType, userID, actorID, e.now())
	ev.IP = ClientIPFromContext(ctx)
	ev.Attributes = metadata
	e.events.Emit(ctx, ev)
}
