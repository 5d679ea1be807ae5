package router

import "github.com/saker-ai/spiritio-client/internal/transport"

// Channel states reported in Status.
const (
	ChannelConnecting = "connecting"
	ChannelOpen       = "open"
	ChannelClosed     = "closed"
)

// Status is a point-in-time view of the session.
type Status struct {
	SessionID          string `json:"session_id"`
	PageURL            string `json:"page_url"`
	Room               string `json:"room"`
	UserName           string `json:"user_name,omitempty"`
	Channel            string `json:"channel"`
	Media              string `json:"media"`
	PermissionsGranted bool   `json:"permissions_granted"`
	Participants       int    `json:"participants"`
	RemoteStreams      int    `json:"remote_streams"`
}

// Status returns a snapshot. Safe to call from any goroutine.
func (r *Router) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Router) updateStatus(fn func(*Status)) {
	r.mu.Lock()
	fn(&r.status)
	r.mu.Unlock()
}

func (r *Router) setLocation(loc transport.Location) {
	r.location = loc
	r.updateStatus(func(s *Status) {
		s.PageURL = loc.String()
		s.Room = loc.Room()
	})
}
