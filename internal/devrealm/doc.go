// Package devrealm is a small Socket.IO v4 realm for local runs and tests.
//
// It accepts the Engine.IO websocket handshake, optionally checks the token
// header as an HS256 JWT, connects the configured namespaces, acks every event
// and keeps what it received per room. It serves /healthz, /rooms and /metrics
// next to the socket endpoint.
package devrealm
