package main

import (
	"log/slog"
	"sync"
	"time"
)

// MemberSource is read when a notification fires, never when it is
// scheduled.
type MemberSource interface {
	Members(roomID string) []Conn
	Occupancy(roomID string) int
}

// Notifier coalesces bursts of membership changes per room into one
// room-users-count broadcast after a quiet period.
type Notifier struct {
	source  MemberSource
	delay   time.Duration
	metrics *Metrics

	mu      sync.Mutex
	pending map[string]*pendingNotification
}

type pendingNotification struct {
	timer  *time.Timer
	fireAt time.Time
}

func NewNotifier(source MemberSource, delay time.Duration, metrics *Metrics) *Notifier {
	return &Notifier{
		source:  source,
		delay:   delay,
		metrics: metrics,
		pending: make(map[string]*pendingNotification),
	}
}

func (n *Notifier) Schedule(roomID string) {
	n.ScheduleAfter(roomID, n.delay)
}

// ScheduleAfter replaces any pending notification for roomID with one that
// fires after delay.
func (n *Notifier) ScheduleAfter(roomID string, delay time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if p, ok := n.pending[roomID]; ok {
		p.timer.Stop()
	}
	p := &pendingNotification{fireAt: time.Now().Add(delay)}
	p.timer = time.AfterFunc(delay, func() { n.fire(roomID, p) })
	n.pending[roomID] = p
}

// CancelAndFlush drops the pending notification for roomID, if any, and
// emits the current occupancy right away.
func (n *Notifier) CancelAndFlush(roomID string) {
	n.cancel(roomID)
	n.emit(roomID)
}

// FlushAll flushes every pending notification.
func (n *Notifier) FlushAll() {
	n.mu.Lock()
	ids := make([]string, 0, len(n.pending))
	for id := range n.pending {
		ids = append(ids, id)
	}
	n.mu.Unlock()

	for _, id := range ids {
		n.CancelAndFlush(id)
	}
}

// Sweep drops pending notifications for rooms that no longer have members.
func (n *Notifier) Sweep() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	dropped := 0
	for id, p := range n.pending {
		if n.source.Occupancy(id) > 0 {
			continue
		}
		p.timer.Stop()
		delete(n.pending, id)
		dropped++
	}
	if dropped > 0 {
		slog.Debug("pending notifications swept", "dropped", dropped)
	}
	return dropped
}

// deadline returns the fire time of the outstanding notification for roomID.
func (n *Notifier) deadline(roomID string) (time.Time, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.pending[roomID]
	if !ok {
		return time.Time{}, false
	}
	return p.fireAt, true
}

func (n *Notifier) PendingCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

func (n *Notifier) cancel(roomID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if p, ok := n.pending[roomID]; ok {
		p.timer.Stop()
		delete(n.pending, roomID)
	}
}

func (n *Notifier) fire(roomID string, p *pendingNotification) {
	n.mu.Lock()
	if n.pending[roomID] != p {
		// Rescheduled or cancelled after the timer had already fired.
		n.mu.Unlock()
		return
	}
	delete(n.pending, roomID)
	n.mu.Unlock()

	n.emit(roomID)
}

func (n *Notifier) emit(roomID string) {
	members := n.source.Members(roomID)
	if len(members) == 0 {
		return
	}

	frame := encodeEvent(EventRoomUsersCount, len(members), "")
	for _, c := range members {
		if err := c.Send(frame); err != nil {
			n.metrics.deliveryDropped()
			slog.Debug("users count dropped", "room", roomID, "conn", c.ID(), "err", err)
		}
	}
	n.metrics.occupancyNotified()
	slog.Debug("users count sent", "room", roomID, "users", len(members))
}
