package main

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Client → server events.
const (
	EventJoinRoom  = "join-room"
	EventSend      = "send"
	EventLeaveRoom = "leave-room"
)

// Server → client events.
const (
	EventReceive        = "receive"
	EventRoomUsersCount = "room-users-count"
	EventJoinedRoom     = "joined-room"
	EventLeftRoom       = "left-room"
	EventError          = "error"
)

const maxRoomIDLength = 128

// Envelope is the inbound frame. Data is decoded per event so that a
// payload of the wrong type is reported instead of silently zeroed.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is the frame written to clients.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
	From  string `json:"from,omitempty"`
}

type sendPayload struct {
	RoomID  json.RawMessage `json:"roomId"`
	Message json.RawMessage `json:"message"`
}

func decodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event name", ErrMalformedFrame)
	}
	return env, nil
}

// decodeRoomID accepts only a non-empty JSON string.
func decodeRoomID(raw json.RawMessage) (string, error) {
	if isAbsent(raw) {
		return "", fmt.Errorf("%w: missing", ErrInvalidRoomID)
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRoomID, err)
	}
	if err := validateRoomID(id); err != nil {
		return "", err
	}
	return id, nil
}

func validateRoomID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRoomID)
	}
	if len(id) > maxRoomIDLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidRoomID, maxRoomIDLength)
	}
	return nil
}

// decodeSend returns the room id and text of a send payload. A nil text
// means the message was absent; an empty string is valid content.
func decodeSend(raw json.RawMessage) (string, *string, error) {
	if isAbsent(raw) {
		return "", nil, fmt.Errorf("%w: missing payload", ErrInvalidMessage)
	}
	var p sendPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	roomID, err := decodeRoomID(p.RoomID)
	if err != nil {
		return "", nil, err
	}
	if isAbsent(p.Message) {
		return roomID, nil, fmt.Errorf("%w: missing message", ErrInvalidMessage)
	}
	var text string
	if err := json.Unmarshal(p.Message, &text); err != nil {
		return roomID, nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return roomID, &text, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// encodeEvent marshals an outbound frame once so fan-out can share it.
func encodeEvent(event string, data any, from string) []byte {
	b, err := json.Marshal(Outbound{Event: event, Data: data, From: from})
	if err != nil {
		// Data is always a string or an int.
		panic(fmt.Sprintf("encode %s: %v", event, err))
	}
	return b
}
