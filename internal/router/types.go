package router

import (
	"errors"
	"fmt"

	"github.com/rickgao/polymarket-realtime/internal/frame"
	"github.com/rickgao/polymarket-realtime/internal/subscription"
)

// Errors
var (
	ErrAuth          = errors.New("user channel authentication rejected")
	ErrCallbackPanic = errors.New("callback panicked")
)

// RouterConfig holds configuration for the Event Dispatcher.
type RouterConfig struct {
	MailboxSize           int // Initial per-subscription queue capacity. Default: 64
	MailboxLimit          int // Max queued events per subscription, negative = unbounded. Default: 10000
	DiagnosticsBufferSize int // Default: 100
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		MailboxSize:           64,
		MailboxLimit:          10000,
		DiagnosticsBufferSize: 100,
	}
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived   int64 // Transport frames
	MessagesRouted     int64 // Deliveries queued to a subscription
	ParseErrors        int64
	ControlFrames      int64
	Unmatched          int64 // Data messages with no active subscriber
	CallbackErrors     int64
	Dropped            int64 // Deliveries discarded (inactive or mailbox full)
	DiagnosticsDropped int64
	Mailboxes          int
	Queued             int
}

// CallbackError is delivered to OnError when a subscription callback returns
// an error or panics. Other subscriptions are unaffected.
type CallbackError struct {
	Handle subscription.Handle
	Kind   frame.Kind
	Err    error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("subscription %s: %s callback: %v", e.Handle, e.Kind, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// ServerError is an error frame sent by the server. On the user channel it
// means the credentials were rejected; the subscription stays registered and
// is retried on the next reconnect.
type ServerError struct {
	Channel frame.Channel
	AssetID string
	Message string
}

func (e *ServerError) Error() string {
	if e.AssetID != "" {
		return fmt.Sprintf("server error on %s channel (asset %s): %s", e.Channel, e.AssetID, e.Message)
	}
	if e.Channel != "" {
		return fmt.Sprintf("server error on %s channel: %s", e.Channel, e.Message)
	}
	return "server error: " + e.Message
}

// IsAuth reports whether the error rejects a user-channel subscription.
func (e *ServerError) IsAuth() bool {
	return e.Channel == frame.ChannelUser
}

// Is makes errors.Is(err, ErrAuth) match user-channel rejections.
func (e *ServerError) Is(target error) bool {
	return target == ErrAuth && e.IsAuth()
}

func newServerError(ef *frame.ErrorFrame) *ServerError {
	if ef == nil {
		return &ServerError{}
	}
	return &ServerError{Channel: ef.Channel, AssetID: ef.AssetID, Message: ef.Message}
}

// mailbox serializes deliveries to one subscription.
type mailbox struct {
	sub *subscription.Subscription
	buf *GrowableBuffer[frame.Message]
}
