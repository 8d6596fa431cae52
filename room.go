package main

import (
	"sync"
	"time"
)

// Room is the member set of one room id. Once the last member leaves the
// room is marked evicted and never reused; a later join on the same id
// builds a fresh Room.
type Room struct {
	id        string
	mu        sync.RWMutex
	members   map[string]Conn
	evicted   bool
	createdAt time.Time
}

func NewRoom(id string) *Room {
	return &Room{
		id:        id,
		members:   make(map[string]Conn),
		createdAt: time.Now(),
	}
}

// add inserts c. ok is false when the room was evicted concurrently and
// the caller must look the room up again.
func (r *Room) add(c Conn, limit int) (count int, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evicted {
		return 0, false, nil
	}
	if _, member := r.members[c.ID()]; !member && limit > 0 && len(r.members) >= limit {
		return len(r.members), true, ErrRoomFull
	}
	r.members[c.ID()] = c
	return len(r.members), true, nil
}

// remove deletes c and reports whether it was a member and whether the
// room is now empty (and therefore evicted).
func (r *Room) remove(c Conn) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[c.ID()]; !ok {
		return false, false
	}
	delete(r.members, c.ID())
	if len(r.members) == 0 {
		r.evicted = true
		return true, true
	}
	return true, false
}

func (r *Room) isEvicted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.evicted
}

func (r *Room) has(c Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[c.ID()]
	return ok
}

func (r *Room) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// snapshot copies the member set, skipping exceptID, so callers can send
// without holding the lock.
func (r *Room) snapshot(exceptID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.members))
	for id, c := range r.members {
		if id == exceptID {
			continue
		}
		out = append(out, c)
	}
	return out
}
