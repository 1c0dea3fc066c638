// Package alert holds the check and notify use cases shared by the scheduled
// broadcast and the interactive bot.
package alert

import (
	"context"
	"errors"
	"fmt"
)

// ErrSendFailed matches any *SendError.
var ErrSendFailed = errors.New("notification send failed")

// SendError is returned by a Gateway when a message could not be delivered.
type SendError struct {
	// ChannelID is the destination chat or channel.
	ChannelID string

	// Status is the upstream status, e.g. "http 403" or the API description.
	Status string

	// Err is the underlying cause, if any.
	Err error
}

func (e *SendError) Error() string {
	msg := fmt.Sprintf("send to %s failed", e.ChannelID)
	if e.Status != "" {
		msg += ": " + e.Status
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SendError) Unwrap() error { return e.Err }

// Is reports whether target is ErrSendFailed.
func (e *SendError) Is(target error) bool { return target == ErrSendFailed }

// Gateway delivers a formatted message to a channel.
// Implementations must be safe for concurrent use.
type Gateway interface {
	// Send returns an error matching ErrSendFailed on failure.
	Send(ctx context.Context, channelID, text string) error
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, channelID, text string) error

// Send implements Gateway.
func (f GatewayFunc) Send(ctx context.Context, channelID, text string) error {
	return f(ctx, channelID, text)
}
