package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrEthical07/goIdentity/confirmation"
)

// ErrDelivery wraps every failure to hand a message to the transport.
var ErrDelivery = errors.New("notification delivery failed")

// Notifier hands a rendered confirmation link to a delivery channel. data
// carries template context such as the username.
type Notifier interface {
	SendConfirmationMessage(ctx context.Context, destination string, t confirmation.TokenType, link string, data map[string]string) error
}

// LogNotifier logs deliveries instead of sending them.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) SendConfirmationMessage(ctx context.Context, destination string, t confirmation.TokenType, link string, _ map[string]string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "confirmation message",
		"destination", destination,
		"token_type", t.String(),
		"link", link,
	)
	return nil
}
