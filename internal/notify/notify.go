package notify

import (
	"context"
	"errors"
)

// Message is a single outbound notification.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Client delivers notifications. Enabled reports whether sends reach a real provider.
type Client interface {
	Enabled() bool
	Send(ctx context.Context, msg Message) error
}

// ErrInvalidMessage is returned for messages missing a recipient, subject or body.
var ErrInvalidMessage = errors.New("invalid notification message")

// Noop is used when no provider is configured.
type Noop struct{}

func (Noop) Enabled() bool { return false }

func (Noop) Send(context.Context, Message) error { return nil }

var _ Client = Noop{}
