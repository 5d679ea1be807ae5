// Package roster tracks the participants of the current room.
package roster

import (
	"sort"
	"strings"
	"sync"

	"github.com/saker-ai/spiritio-client/internal/protocol"
)

// Roster is the participant list plus the name to id lookup used by the command parser.
type Roster struct {
	mu      sync.RWMutex
	guests  []protocol.Guest
	byName  map[string]protocol.ID
	streams map[string]string
}

// New returns an empty roster.
func New() *Roster {
	return &Roster{
		byName:  make(map[string]protocol.ID),
		streams: make(map[string]string),
	}
}

// Replace swaps in a fresh participant list. Later duplicates of a name win.
func (r *Roster) Replace(guests []protocol.Guest) {
	byName := make(map[string]protocol.ID, len(guests))
	list := make([]protocol.Guest, 0, len(guests))
	for _, guest := range guests {
		name := strings.TrimSpace(guest.Name)
		if name == "" {
			continue
		}
		guest.Name = name
		list = append(list, guest)
		if guest.ID != "" {
			byName[name] = guest.ID
		}
	}

	r.mu.Lock()
	r.guests = list
	r.byName = byName
	r.mu.Unlock()
}

// LookupID resolves a display name. The match is exact and case-sensitive.
func (r *Roster) LookupID(name string) (protocol.ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// Guests returns a copy of the participant list.
func (r *Roster) Guests() []protocol.Guest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]protocol.Guest(nil), r.guests...)
}

// Names returns participant names in sorted order.
func (r *Roster) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.guests))
	for _, guest := range r.guests {
		names = append(names, guest.Name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Len returns the number of participants.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.guests)
}

// Rename updates a participant's display name in place.
func (r *Roster) Rename(oldName, newName string) {
	newName = strings.TrimSpace(newName)
	if oldName == "" || newName == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.guests {
		if r.guests[i].Name == oldName {
			r.guests[i].Name = newName
		}
	}
	if id, ok := r.byName[oldName]; ok {
		delete(r.byName, oldName)
		r.byName[newName] = id
	}
	for streamID, name := range r.streams {
		if name == oldName {
			r.streams[streamID] = newName
		}
	}
}

// LabelStream records the display name for a remote stream.
func (r *Roster) LabelStream(streamID, name string) {
	if streamID == "" {
		return
	}
	r.mu.Lock()
	r.streams[streamID] = name
	r.mu.Unlock()
}

// StreamLabel returns the display name recorded for a stream.
func (r *Roster) StreamLabel(streamID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.streams[streamID]
	return name, ok
}
