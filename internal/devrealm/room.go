package devrealm

import (
	"sort"
	"sync"
	"time"
)

// Received is one event payload accepted by the realm.
type Received struct {
	Namespace string
	SessionID string
	User      string
	Payload   any
	At        time.Time
}

// Room collects every payload routed to one room id.
type Room struct {
	ID       string
	mu       sync.RWMutex
	received []Received
}

func NewRoom(id string) *Room {
	return &Room{ID: id}
}

func (r *Room) Add(msg Received) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, msg)
}

// Messages returns a copy of the received payloads in arrival order.
func (r *Room) Messages() []Received {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Received, len(r.received))
	copy(out, r.received)
	return out
}

func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.received)
}

// Hub indexes rooms by id.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*Room)}
}

// Room returns the room with id, creating it on first use.
func (h *Hub) Room(id string) *Room {
	h.mu.RLock()
	room, ok := h.rooms[id]
	h.mu.RUnlock()
	if ok {
		return room
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok = h.rooms[id]; !ok {
		room = NewRoom(id)
		h.rooms[id] = room
	}
	return room
}

// RoomIDs lists known rooms in sorted order.
func (h *Hub) RoomIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UnroutedRoom collects payloads that carry no data.room.
const UnroutedRoom = "_unrouted"

// RoomOf extracts data.room from a broadcast envelope.
func RoomOf(payload any) string {
	env, ok := payload.(map[string]any)
	if !ok {
		return UnroutedRoom
	}
	data, ok := env["data"].(map[string]any)
	if !ok {
		return UnroutedRoom
	}
	if room, ok := data["room"].(string); ok {
		return room
	}
	return UnroutedRoom
}
