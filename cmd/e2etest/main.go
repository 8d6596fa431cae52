// E2E test: two editors share a room through a live relay, exchange text and
// watch the occupancy count follow a leave and a disconnect.
// Usage: go run ./cmd/e2etest -relay ws://localhost:5000/ws -room 123456
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

var (
	relayURL = flag.String("relay", "ws://localhost:5000/ws", "relay WebSocket URL")
	roomID   = flag.String("room", "123456", "room id to join")
	origin   = flag.String("origin", "", "Origin header to send (empty for none)")
)

type event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	From  string          `json:"from,omitempty"`
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	// --- Connect both editors ---
	log.Println(">> Connecting editor A...")
	a, err := dial(*relayURL)
	if err != nil {
		log.Fatal("A connect:", err)
	}
	defer a.Close()
	log.Println("   A connected ✓")

	log.Println(">> Connecting editor B...")
	b, err := dial(*relayURL)
	if err != nil {
		log.Fatal("B connect:", err)
	}
	defer b.Close()
	log.Println("   B connected ✓")

	// --- Join ---
	for name, conn := range map[string]*websocket.Conn{"A": a, "B": b} {
		log.Printf(">> %s joining %q...", name, *roomID)
		mustEmit(conn, "join-room", *roomID)
		mustExpect(conn, "joined-room", nil)
		log.Printf("   %s joined ✓", name)
	}

	log.Println(">> Waiting for occupancy 2...")
	mustExpect(a, "room-users-count", countIs(2))
	mustExpect(b, "room-users-count", countIs(2))
	log.Println("   Both see 2 users ✓")

	// --- A types, B receives ---
	text := "hello from A\nsecond line"
	log.Println(">> A sending text...")
	mustEmit(a, "send", map[string]string{"roomId": *roomID, "message": text})
	got := mustExpect(b, "receive", nil)
	var received string
	if err := json.Unmarshal(got.Data, &received); err != nil || received != text {
		fail("B received %s, want %q", got.Data, text)
	}
	log.Printf("   B received %q from %s ✓", received, got.From)

	// --- B types, A receives ---
	log.Println(">> B sending text...")
	mustEmit(b, "send", map[string]string{"roomId": *roomID, "message": "hello from B"})
	mustExpect(a, "receive", nil)
	log.Println("   A received ✓")

	// --- Errors go to the sender ---
	log.Println(">> A sending a malformed send...")
	mustEmit(a, "send", map[string]string{"roomId": *roomID})
	errEv := mustExpect(a, "error", nil)
	log.Printf("   A got error %s ✓", errEv.Data)

	// --- Leave ---
	log.Println(">> B leaving...")
	mustEmit(b, "leave-room", *roomID)
	mustExpect(b, "left-room", nil)
	mustExpect(a, "room-users-count", countIs(1))
	log.Println("   A sees 1 user ✓")

	// --- Rejoin then drop without leaving ---
	log.Println(">> B rejoining and disconnecting abruptly...")
	mustEmit(b, "join-room", *roomID)
	mustExpect(a, "room-users-count", countIs(2))
	_ = b.UnderlyingConn().Close()
	mustExpect(a, "room-users-count", countIs(1))
	log.Println("   A sees 1 user after disconnect ✓")

	// --- Done ---
	fmt.Println()
	log.Println("═══════════════════════════════")
	log.Println("  E2E TEST PASSED ✓")
	log.Println("═══════════════════════════════")
}

func dial(u string) (*websocket.Conn, error) {
	var header map[string][]string
	if *origin != "" {
		header = map[string][]string{"Origin": {*origin}}
	}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(u, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
		}
		return nil, err
	}
	return conn, nil
}

func mustEmit(conn *websocket.Conn, name string, data any) {
	b, err := json.Marshal(map[string]any{"event": name, "data": data})
	if err != nil {
		log.Fatal("marshal:", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Fatal("write:", err)
	}
}

// mustExpect reads until it sees name, skipping unrelated events.
func mustExpect(conn *websocket.Conn, name string, accept func(event) bool) event {
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			fail("waiting for %s: %v", name, err)
		}
		var ev event
		if err := json.Unmarshal(msg, &ev); err != nil {
			fail("bad frame %s: %v", msg, err)
		}
		if ev.Event == name && (accept == nil || accept(ev)) {
			return ev
		}
	}
}

func countIs(n int) func(event) bool {
	return func(ev event) bool {
		var got int
		return json.Unmarshal(ev.Data, &got) == nil && got == n
	}
}

func fail(format string, args ...any) {
	log.Printf("FAIL: "+format, args...)
	os.Exit(1)
}
