package lively

import "livelyclient/internal/envelope"

type sendOptions struct {
	sender string
	action string
	n      int
}

func defaultSendOptions() sendOptions {
	return sendOptions{
		sender: envelope.DefaultSender,
		action: envelope.DefaultAction,
		n:      envelope.DefaultN,
	}
}

// SendOption overrides one of the message-level defaults of Send.
type SendOption func(*sendOptions)

func WithSender(sender string) SendOption {
	return func(o *sendOptions) { o.sender = sender }
}

func WithAction(action string) SendOption {
	return func(o *sendOptions) { o.action = action }
}

// WithN sets the message sequence marker. It is never incremented automatically.
func WithN(n int) SendOption {
	return func(o *sendOptions) { o.n = n }
}
