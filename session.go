package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

type SessionState int

const (
	StateUnjoined SessionState = iota
	StateJoined
	// StateLeft behaves like StateUnjoined; the connection stays open and
	// may join another room.
	StateLeft
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	case StateLeft:
		return "left"
	case StateDisconnected:
		return "disconnected"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// SessionManager owns the per-connection lifecycle records. A Session's
// room field is the single authoritative "current room" and is only
// changed by Join, Leave and Disconnect.
type SessionManager struct {
	registry *Registry
	router   *Router
	metrics  *Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionManager(registry *Registry, router *Router, metrics *Metrics) *SessionManager {
	return &SessionManager{
		registry: registry,
		router:   router,
		metrics:  metrics,
		sessions: make(map[string]*Session),
	}
}

// Open starts tracking c in the Unjoined state.
func (m *SessionManager) Open(c Conn) *Session {
	s := &Session{mgr: m, conn: c, state: StateUnjoined}
	m.mu.Lock()
	m.sessions[c.ID()] = s
	m.mu.Unlock()
	slog.Debug("session opened", "conn", c.ID())
	return s
}

func (m *SessionManager) get(connID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[connID]
}

func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every tracked connection. Each transport then runs its
// own Disconnect.
func (m *SessionManager) CloseAll() {
	m.mu.RLock()
	conns := make([]Conn, 0, len(m.sessions))
	for _, s := range m.sessions {
		conns = append(conns, s.conn)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

func (m *SessionManager) forget(s *Session) {
	m.mu.Lock()
	if m.sessions[s.conn.ID()] == s {
		delete(m.sessions, s.conn.ID())
	}
	m.mu.Unlock()
}

// Session serializes the lifecycle transitions of one connection.
type Session struct {
	mgr  *SessionManager
	conn Conn

	mu    sync.Mutex
	state SessionState
	room  string
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Room returns the room the session is joined to, or "".
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// Join enters roomID, leaving the current room first.
func (s *Session) Join(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisconnected {
		return ErrConnClosed
	}

	vacated, err := s.mgr.registry.Join(s.conn, roomID)
	if vacated != "" {
		s.room = ""
		s.state = StateLeft
		s.ack(EventLeftRoom, vacated)
	}
	if err != nil {
		return err
	}

	s.room = roomID
	s.state = StateJoined
	s.ack(EventJoinedRoom, roomID)
	slog.Info("room joined", "room", roomID, "conn", s.conn.ID(), "users", s.mgr.registry.Occupancy(roomID))
	return nil
}

// Leave exits roomID. Leaving a room the session is not in returns
// ErrNotAMember and changes nothing.
func (s *Session) Leave(roomID string) error {
	if err := validateRoomID(roomID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateJoined || s.room != roomID {
		return ErrNotAMember
	}
	if _, err := s.mgr.registry.Leave(s.conn, roomID); err != nil {
		return err
	}

	s.room = ""
	s.state = StateLeft
	s.ack(EventLeftRoom, roomID)
	slog.Info("room left", "room", roomID, "conn", s.conn.ID())
	return nil
}

// Send routes text to the other members of roomID.
func (s *Session) Send(roomID string, text *string) (int, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state == StateDisconnected {
		return 0, ErrConnClosed
	}
	return s.mgr.router.RouteText(s.conn, roomID, text)
}

// Disconnect removes the connection from whatever room it last occupied.
// It is the one guaranteed cleanup path and is safe to call repeatedly.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	room := s.room
	if room != "" {
		if _, err := s.mgr.registry.Leave(s.conn, room); err != nil {
			slog.Warn("disconnect cleanup", "room", room, "conn", s.conn.ID(), "err", err)
		}
	}
	s.room = ""
	s.state = StateDisconnected
	s.mu.Unlock()

	s.mgr.forget(s)
	slog.Info("session closed", "conn", s.conn.ID(), "room", room)
}

// Handle decodes one inbound frame and applies it. Failures are reported
// to this connection only.
func (s *Session) Handle(frame []byte) {
	env, err := decodeEnvelope(frame)
	if err != nil {
		s.reject("", err)
		return
	}

	switch env.Event {
	case EventJoinRoom:
		var roomID string
		if roomID, err = decodeRoomID(env.Data); err == nil {
			err = s.Join(roomID)
		}
	case EventSend:
		var (
			roomID string
			text   *string
		)
		if roomID, text, err = decodeSend(env.Data); err == nil {
			_, err = s.Send(roomID, text)
		}
	case EventLeaveRoom:
		var roomID string
		if roomID, err = decodeRoomID(env.Data); err == nil {
			err = s.Leave(roomID)
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	s.reject(env.Event, err)
}

// HandleThrottled is called instead of Handle for a frame over the
// connection's rate. Membership changes still go through; anything else is
// answered with a rate-limited error.
func (s *Session) HandleThrottled(frame []byte) {
	env, err := decodeEnvelope(frame)
	if err == nil && (env.Event == EventJoinRoom || env.Event == EventLeaveRoom) {
		s.Handle(frame)
		return
	}
	s.reject(env.Event, ErrRateLimited)
}

func (s *Session) reject(event string, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, ErrNotAMember):
		slog.Debug("ignored for non-member", "event", event, "conn", s.conn.ID())
		return
	case errors.Is(err, ErrConnClosed):
		return
	}

	kind := errorKind(err)
	s.mgr.metrics.protocolError(kind)
	slog.Debug("request rejected", "event", event, "conn", s.conn.ID(), "err", err)
	if sendErr := s.conn.Send(encodeEvent(EventError, kind, "")); sendErr != nil {
		slog.Debug("error event dropped", "conn", s.conn.ID(), "err", sendErr)
	}
}

func (s *Session) ack(event, roomID string) {
	if err := s.conn.Send(encodeEvent(event, roomID, "")); err != nil {
		slog.Debug("ack dropped", "event", event, "conn", s.conn.ID(), "err", err)
	}
}
