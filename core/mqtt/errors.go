package mqtt

import "errors"

var (
	// ErrAckTimeout is returned when the gateway does not acknowledge a
	// command before the timeout.
	ErrAckTimeout = errors.New("timeout waiting for ack")
	// ErrUnknownCommand is returned when waiting on a command id that was
	// never sent.
	ErrUnknownCommand = errors.New("unknown command")
)
