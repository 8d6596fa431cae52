package main

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// received is an outbound frame as a client decodes it.
type received struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	From  string          `json:"from"`
}

type mockConn struct {
	id      string
	mu      sync.Mutex
	frames  [][]byte
	sendErr error
	closed  bool
}

func newMockConn(id string) *mockConn {
	return &mockConn{id: id}
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	if m.closed {
		return ErrConnClosed
	}
	m.frames = append(m.frames, data)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockConn) events() []received {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]received, 0, len(m.frames))
	for _, f := range m.frames {
		var ev received
		if err := json.Unmarshal(f, &ev); err == nil {
			out = append(out, ev)
		}
	}
	return out
}

func (m *mockConn) named(event string) []received {
	var out []received
	for _, ev := range m.events() {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

// counts returns every room-users-count value received, in order.
func (m *mockConn) counts() []int {
	var out []int
	for _, ev := range m.named(EventRoomUsersCount) {
		var n int
		if json.Unmarshal(ev.Data, &n) == nil {
			out = append(out, n)
		}
	}
	return out
}

func (m *mockConn) texts() []string {
	var out []string
	for _, ev := range m.named(EventReceive) {
		var s string
		if json.Unmarshal(ev.Data, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}

func (m *mockConn) errors() []string {
	var out []string
	for _, ev := range m.named(EventError) {
		var s string
		if json.Unmarshal(ev.Data, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}

func (m *mockConn) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = nil
}

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []string
	flushed   []string
}

func (r *recordingScheduler) Schedule(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, roomID)
}

func (r *recordingScheduler) CancelAndFlush(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushed = append(r.flushed, roomID)
}

func (r *recordingScheduler) calls() (scheduled, flushed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.scheduled...), append([]string(nil), r.flushed...)
}

const testNotifyDelay = 20 * time.Millisecond

func testConfig() *Config {
	return &Config{
		Addr:           "127.0.0.1:0",
		MaxMessageSize: 1 << 20,
		NotifyDelay:    testNotifyDelay,
		SweepInterval:  time.Hour,
		RateLimitPerIP: 100,
		MessageRate:    1000,
		CORSOrigins:    []string{"http://localhost:5173"},
	}
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(testConfig(), NewMetrics())
}

// settle waits long enough for any pending notification to have fired.
func settle() {
	time.Sleep(5 * testNotifyDelay)
}

func str(s string) *string { return &s }

func requireCountsEventually(t *testing.T, c *mockConn, want []int) {
	t.Helper()
	require.Eventually(t, func() bool {
		got := c.counts()
		if len(got) != len(want) {
			return false
		}
		for i := range got {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond, "conn %s counts: got %v, want %v", c.id, c.counts(), want)
}
