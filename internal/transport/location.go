package transport

import (
	"fmt"
	"net/url"
	"strings"
)

// Location is the address a session is reached at, the equivalent of a page URL.
type Location struct {
	Secure   bool
	Host     string
	Path     string
	RawQuery string
}

// ParseLocation accepts http, https, ws and wss URLs.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Location{}, fmt.Errorf("parse page url: %w", err)
	}
	var secure bool
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
	case "https", "wss":
		secure = true
	default:
		return Location{}, fmt.Errorf("page url %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return Location{}, fmt.Errorf("page url %q: missing host", raw)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return Location{Secure: secure, Host: u.Host, Path: path, RawQuery: u.RawQuery}, nil
}

// Endpoint derives the signaling URL: the socket scheme follows the page scheme
// and the page query string is forwarded unchanged.
func (l Location) Endpoint(path string) string {
	scheme := "ws"
	if l.Secure {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: l.Host, Path: path, RawQuery: l.RawQuery}
	return u.String()
}

// Room returns the room query parameter.
func (l Location) Room() string {
	q, err := url.ParseQuery(l.RawQuery)
	if err != nil {
		return ""
	}
	return q.Get("room")
}

// WithRoom returns a copy addressed at room id.
func (l Location) WithRoom(id string) Location {
	q, err := url.ParseQuery(l.RawQuery)
	if err != nil {
		q = url.Values{}
	}
	q.Set("room", id)
	l.RawQuery = q.Encode()
	return l
}

// String renders the page URL.
func (l Location) String() string {
	scheme := "http"
	if l.Secure {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: l.Host, Path: l.Path, RawQuery: l.RawQuery}
	return u.String()
}
