package main

import (
	"log/slog"
	"sync"
)

// Scheduler receives occupancy changes from the Registry.
type Scheduler interface {
	Schedule(roomID string)
	CancelAndFlush(roomID string)
}

type nopScheduler struct{}

func (nopScheduler) Schedule(string)       {}
func (nopScheduler) CancelAndFlush(string) {}

// Registry maps room ids to their member sets and is the authority on
// occupancy. Member sets are guarded per room; mu guards the room map and
// the connection → room index. Lock order is mu before Room.mu.
//
// Calls for a single connection must be serialized by the caller (the
// SessionManager does this); calls for different connections may run
// concurrently.
type Registry struct {
	sched      Scheduler
	maxRooms   int
	maxPerRoom int

	mu      sync.RWMutex
	rooms   map[string]*Room
	current map[string]string
}

func NewRegistry(maxRooms, maxPerRoom int) *Registry {
	return &Registry{
		sched:      nopScheduler{},
		maxRooms:   maxRooms,
		maxPerRoom: maxPerRoom,
		rooms:      make(map[string]*Room),
		current:    make(map[string]string),
	}
}

// SetScheduler installs the occupancy listener. It must be called before
// the registry is shared.
func (r *Registry) SetScheduler(s Scheduler) {
	if s == nil {
		s = nopScheduler{}
	}
	r.sched = s
}

// Join moves c into roomID, leaving its previous room first. It returns the
// vacated room id, if any. Both affected rooms get a debounced occupancy
// update. If admission fails after the previous room was vacated, c ends
// up in no room.
func (r *Registry) Join(c Conn, roomID string) (vacated string, err error) {
	if err := validateRoomID(roomID); err != nil {
		return "", err
	}

	prev := r.RoomOf(c)
	if prev == roomID && r.IsMember(roomID, c) {
		r.sched.Schedule(roomID)
		return "", nil
	}
	if err := r.admit(c, roomID); err != nil {
		return "", err
	}

	if prev != "" {
		if r.removeFrom(c, prev) {
			vacated = prev
		}
		r.mu.Lock()
		delete(r.current, c.ID())
		r.mu.Unlock()
	}

	if _, err := r.addTo(c, roomID); err != nil {
		return vacated, err
	}

	r.mu.Lock()
	r.current[c.ID()] = roomID
	r.mu.Unlock()

	r.sched.Schedule(roomID)
	return vacated, nil
}

// Leave removes c from roomID. It is safe on non-members and reports
// whether anything changed.
func (r *Registry) Leave(c Conn, roomID string) (bool, error) {
	if err := validateRoomID(roomID); err != nil {
		return false, err
	}
	if !r.removeFrom(c, roomID) {
		return false, nil
	}
	r.mu.Lock()
	if r.current[c.ID()] == roomID {
		delete(r.current, c.ID())
	}
	r.mu.Unlock()
	return true, nil
}

// MembersExcept returns every member of roomID other than c.
func (r *Registry) MembersExcept(roomID string, c Conn) []Conn {
	room := r.lookup(roomID)
	if room == nil {
		return nil
	}
	except := ""
	if c != nil {
		except = c.ID()
	}
	return room.snapshot(except)
}

func (r *Registry) Members(roomID string) []Conn {
	return r.MembersExcept(roomID, nil)
}

// Occupancy returns the member count, 0 for an unknown room.
func (r *Registry) Occupancy(roomID string) int {
	room := r.lookup(roomID)
	if room == nil {
		return 0
	}
	return room.ClientCount()
}

func (r *Registry) IsMember(roomID string, c Conn) bool {
	room := r.lookup(roomID)
	return room != nil && room.has(c)
}

// RoomOf returns the room c currently occupies, or "".
func (r *Registry) RoomOf(c Conn) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current[c.ID()]
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) lookup(roomID string) *Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[roomID]
}

// admit is a best-effort check of the limits before c leaves its current
// room; addTo repeats it authoritatively.
func (r *Registry) admit(c Conn, roomID string) error {
	r.mu.RLock()
	room := r.rooms[roomID]
	roomCount := len(r.rooms)
	prev := r.rooms[r.current[c.ID()]]
	r.mu.RUnlock()

	if room == nil {
		// c's current room is evicted on the way out if c is alone in it.
		if prev != nil && prev.has(c) && prev.ClientCount() == 1 {
			roomCount--
		}
		if r.maxRooms > 0 && roomCount >= r.maxRooms {
			return ErrTooManyRooms
		}
		return nil
	}
	if r.maxPerRoom > 0 && !room.has(c) && room.ClientCount() >= r.maxPerRoom {
		return ErrRoomFull
	}
	return nil
}

func (r *Registry) addTo(c Conn, roomID string) (int, error) {
	for {
		room, err := r.getOrCreate(roomID)
		if err != nil {
			return 0, err
		}
		count, ok, err := room.add(c, r.maxPerRoom)
		if ok {
			return count, err
		}
		// Evicted between lookup and add.
	}
}

func (r *Registry) getOrCreate(roomID string) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if ok && !room.isEvicted() {
		return room, nil
	}
	if !ok && r.maxRooms > 0 && len(r.rooms) >= r.maxRooms {
		return nil, ErrTooManyRooms
	}
	room = NewRoom(roomID)
	r.rooms[roomID] = room
	return room, nil
}

// removeFrom drops c from roomID, evicting the room when it empties.
func (r *Registry) removeFrom(c Conn, roomID string) bool {
	room := r.lookup(roomID)
	if room == nil {
		return false
	}
	removed, empty := room.remove(c)
	if !removed {
		return false
	}

	if empty {
		r.mu.Lock()
		if r.rooms[roomID] == room {
			delete(r.rooms, roomID)
		}
		r.mu.Unlock()
		slog.Debug("room evicted", "room", roomID)
		r.sched.CancelAndFlush(roomID)
		return true
	}

	slog.Debug("room left", "room", roomID, "conn", c.ID())
	r.sched.Schedule(roomID)
	return true
}
