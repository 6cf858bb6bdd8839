package config

import (
	"fmt"
	"net/url"
	"strings"
)

// APIBase trims a trailing slash and makes sure the base ends in /api.
func APIBase(raw string) string {
	base := strings.TrimSuffix(raw, "/")
	if strings.HasSuffix(base, "/api") {
		return base
	}
	return base + "/api"
}

// SocketBase is the API base without its /api suffix; the live channel is
// served from the backend root.
func SocketBase(apiBase string) string {
	return strings.TrimSuffix(APIBase(apiBase), "/api")
}

// WebsocketURL maps the socket base to ws or wss and appends path.
func WebsocketURL(apiBase, path string) (string, error) {
	u, err := url.Parse(SocketBase(apiBase))
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported backend scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}

func (c *Config) APIBase() string { return APIBase(c.Backend.URL) }

func (c *Config) WebsocketURL() (string, error) {
	return WebsocketURL(c.Backend.URL, c.Backend.SocketPath)
}
