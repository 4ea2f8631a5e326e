package socketio

import (
	"fmt"
	"net/url"
	"strings"
)

const defaultSubPath = "socket.io"

// BuildURL turns a realm and a transport sub-path into the websocket endpoint:
// <realm>/<subPath>/?EIO=4&transport=websocket with http(s) mapped to ws(s).
func BuildURL(realm, subPath string) (string, error) {
	u, err := url.Parse(realm)
	if err != nil {
		return "", fmt.Errorf("invalid realm %q: %w", realm, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid realm %q: unsupported scheme %q", realm, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid realm %q: missing host", realm)
	}

	sub := strings.Trim(subPath, "/")
	if sub == "" {
		sub = defaultSubPath
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + sub + "/"
	u.RawPath = ""

	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
