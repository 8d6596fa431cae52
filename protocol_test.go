package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRoomID(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{`"123456"`, "123456", false},
		{`"hello world"`, "hello world", false},
		{`"` + strings.Repeat("x", maxRoomIDLength) + `"`, strings.Repeat("x", maxRoomIDLength), false},
		{`"` + strings.Repeat("x", maxRoomIDLength+1) + `"`, "", true},
		{`""`, "", true},
		{``, "", true},
		{`null`, "", true},
		{`123456`, "", true},
		{`["r"]`, "", true},
		{`{"roomId":"r"}`, "", true},
	}

	for _, tt := range tests {
		got, err := decodeRoomID(json.RawMessage(tt.raw))
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidRoomID, "raw %q", tt.raw)
			continue
		}
		require.NoError(t, err, "raw %q", tt.raw)
		assert.Equal(t, tt.want, got)
	}
}

func TestDecodeSend(t *testing.T) {
	roomID, text, err := decodeSend(json.RawMessage(`{"roomId":"123456","message":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, "123456", roomID)
	require.NotNil(t, text)
	assert.Equal(t, "hello", *text)

	_, text, err = decodeSend(json.RawMessage(`{"roomId":"r","message":""}`))
	require.NoError(t, err)
	require.NotNil(t, text)
	assert.Empty(t, *text)

	_, text, err = decodeSend(json.RawMessage(`{"roomId":"r"}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Nil(t, text)

	_, _, err = decodeSend(json.RawMessage(`{"roomId":"r","message":{"ops":[]}}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, _, err = decodeSend(json.RawMessage(`{"roomId":5,"message":"x"}`))
	assert.ErrorIs(t, err, ErrInvalidRoomID)

	_, _, err = decodeSend(nil)
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := decodeEnvelope([]byte(`{"event":"join-room","data":"r"}`))
	require.NoError(t, err)
	assert.Equal(t, EventJoinRoom, env.Event)
	assert.JSONEq(t, `"r"`, string(env.Data))

	_, err = decodeEnvelope([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = decodeEnvelope([]byte(`{"event":""}`))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestEncodeEvent(t *testing.T) {
	assert.JSONEq(t, `{"event":"receive","data":"hi","from":"conn-1"}`,
		string(encodeEvent(EventReceive, "hi", "conn-1")))
	assert.JSONEq(t, `{"event":"room-users-count","data":3}`,
		string(encodeEvent(EventRoomUsersCount, 3, "")))
	assert.JSONEq(t, `{"event":"receive","data":"","from":"c"}`,
		string(encodeEvent(EventReceive, "", "c")))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "invalid room id", errorKind(fmt.Errorf("%w: detail", ErrInvalidRoomID)))
	assert.Equal(t, "unknown event", errorKind(fmt.Errorf("%w: %q", ErrUnknownEvent, "x")))
	assert.Equal(t, "room full", errorKind(ErrRoomFull))
	assert.Equal(t, "internal error", errorKind(ErrSendBufferFull))
	assert.Equal(t, "internal error", errorKind(fmt.Errorf("boom")))
}
