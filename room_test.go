package main

import (
	"errors"
	"testing"
)

func TestRoom_AddRemove(t *testing.T) {
	room := NewRoom("test-room")

	c1 := newMockConn("conn-1")
	c2 := newMockConn("conn-2")

	if n, ok, err := room.add(c1, 0); !ok || err != nil || n != 1 {
		t.Fatalf("add c1: n=%d ok=%v err=%v", n, ok, err)
	}
	if n, _, _ := room.add(c2, 0); n != 2 {
		t.Errorf("expected 2 clients, got %d", n)
	}

	removed, empty := room.remove(c1)
	if !removed || empty {
		t.Errorf("remove c1: removed=%v empty=%v", removed, empty)
	}
	if room.ClientCount() != 1 {
		t.Errorf("expected 1 client after remove, got %d", room.ClientCount())
	}

	removed, empty = room.remove(c2)
	if !removed || !empty {
		t.Errorf("remove c2: removed=%v empty=%v", removed, empty)
	}
	if room.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", room.ClientCount())
	}
}

func TestRoom_AddTwiceCountsOnce(t *testing.T) {
	room := NewRoom("test-room")
	c1 := newMockConn("conn-1")

	room.add(c1, 0)
	room.add(c1, 0)

	if room.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", room.ClientCount())
	}
}

func TestRoom_RemoveNonMember(t *testing.T) {
	room := NewRoom("test-room")
	room.add(newMockConn("conn-1"), 0)

	removed, empty := room.remove(newMockConn("conn-2"))
	if removed || empty {
		t.Errorf("remove non-member: removed=%v empty=%v", removed, empty)
	}
	if room.isEvicted() {
		t.Error("room should not be evicted")
	}
}

func TestRoom_EvictedRejectsAdd(t *testing.T) {
	room := NewRoom("test-room")
	c1 := newMockConn("conn-1")

	room.add(c1, 0)
	room.remove(c1)

	if !room.isEvicted() {
		t.Fatal("empty room should be evicted")
	}
	if _, ok, _ := room.add(c1, 0); ok {
		t.Error("add on evicted room should report !ok")
	}
	if room.ClientCount() != 0 {
		t.Errorf("evicted room gained a member: %d", room.ClientCount())
	}
}

func TestRoom_Limit(t *testing.T) {
	room := NewRoom("test-room")
	c1 := newMockConn("conn-1")
	c2 := newMockConn("conn-2")

	room.add(c1, 1)
	if _, ok, err := room.add(c2, 1); !ok || !errors.Is(err, ErrRoomFull) {
		t.Errorf("expected ErrRoomFull, got ok=%v err=%v", ok, err)
	}
	// A member re-adding itself is not turned away.
	if _, _, err := room.add(c1, 1); err != nil {
		t.Errorf("re-add of member: %v", err)
	}
}

func TestRoom_SnapshotExcludes(t *testing.T) {
	room := NewRoom("test-room")
	c1 := newMockConn("conn-1")
	c2 := newMockConn("conn-2")
	c3 := newMockConn("conn-3")
	room.add(c1, 0)
	room.add(c2, 0)
	room.add(c3, 0)

	got := room.snapshot("conn-1")
	if len(got) != 2 {
		t.Fatalf("expected 2 conns, got %d", len(got))
	}
	for _, c := range got {
		if c.ID() == "conn-1" {
			t.Error("snapshot should exclude conn-1")
		}
	}

	if all := room.snapshot(""); len(all) != 3 {
		t.Errorf("expected 3 conns, got %d", len(all))
	}
}
