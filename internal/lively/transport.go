package lively

import (
	"context"
	"net/http"
)

// AckFunc is called by the transport once the server acknowledges an emit.
// It is an alias so transports can declare the same signature without importing this package.
type AckFunc = func(args ...any)

// Transport is the socket connection the client drives. The socketio package
// provides the real implementation; tests substitute a mock.
type Transport interface {
	Connect(ctx context.Context, url, subPath string, namespaces []string, headers http.Header) error
	Disconnect() error
	Emit(ctx context.Context, payload any, namespace string, ack AckFunc) error
	Connected() bool
}
