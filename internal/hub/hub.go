// Package hub tracks the live client sessions of each room and fans messages
// out to them. It knows nothing about game rules.
package hub

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
)

// Session is one live client connection.
type Session interface {
	ID() string
	UserID() uint
	Send(data []byte) error
	Close() error
}

type Registry struct {
	mu     sync.Mutex
	rooms  map[uint]map[string]Session
	closed bool
}

func New() *Registry {
	return &Registry{rooms: make(map[uint]map[string]Session)}
}

// Register adds a session to a room. It reports false once the registry has
// been closed.
func (r *Registry) Register(roomID uint, session Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	group := r.rooms[roomID]
	if group == nil {
		group = make(map[string]Session)
		r.rooms[roomID] = group
	}
	group[session.ID()] = session
	return true
}

// Unregister removes a session and drops the room entry once it is empty.
func (r *Registry) Unregister(roomID uint, session Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	group := r.rooms[roomID]
	if group == nil {
		return
	}
	delete(group, session.ID())
	if len(group) == 0 {
		delete(r.rooms, roomID)
	}
}

func (r *Registry) snapshot(roomID uint) []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	group := r.rooms[roomID]
	sessions := make([]Session, 0, len(group))
	for _, session := range group {
		sessions = append(sessions, session)
	}
	return sessions
}

// Broadcast sends payload to every session in the room. A failed send is
// logged and does not stop the others.
func (r *Registry) Broadcast(roomID uint, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("hub marshal failed room_id=%d error=%v", roomID, err)
		return
	}
	for _, session := range r.snapshot(roomID) {
		if err := session.Send(data); err != nil {
			log.Printf("hub send failed room_id=%d session=%s error=%v", roomID, session.ID(), err)
		}
	}
}

// Unicast sends payload to every session of one user in the room.
func (r *Registry) Unicast(roomID, userID uint, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("hub marshal failed room_id=%d error=%v", roomID, err)
		return
	}
	for _, session := range r.snapshot(roomID) {
		if session.UserID() != userID {
			continue
		}
		if err := session.Send(data); err != nil {
			log.Printf("hub send failed room_id=%d user_id=%d session=%s error=%v", roomID, userID, session.ID(), err)
		}
	}
}

// Connected returns the distinct user ids with at least one live session.
func (r *Registry) Connected(roomID uint) []uint {
	seen := make(map[uint]struct{})
	for _, session := range r.snapshot(roomID) {
		seen[session.UserID()] = struct{}{}
	}
	ids := make([]uint, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Rooms returns how many rooms currently have live sessions.
func (r *Registry) Rooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Close closes every session and rejects later registrations.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	var sessions []Session
	for _, group := range r.rooms {
		for _, session := range group {
			sessions = append(sessions, session)
		}
	}
	r.rooms = make(map[uint]map[string]Session)
	r.mu.Unlock()
	for _, session := range sessions {
		_ = session.Close()
	}
}
