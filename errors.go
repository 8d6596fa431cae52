package main

import "errors"

var (
	ErrInvalidRoomID  = errors.New("invalid room id")
	ErrInvalidMessage = errors.New("invalid message")
	ErrNotAMember     = errors.New("not a member of room")
	ErrUnknownEvent   = errors.New("unknown event")
	ErrMalformedFrame = errors.New("malformed frame")
	ErrRoomFull       = errors.New("room full")
	ErrTooManyRooms   = errors.New("max rooms reached")
	ErrRateLimited    = errors.New("rate limited")

	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// clientErrors lists the kinds that may be reported back to a client, in
// match order. Anything else is reported as an internal error.
var clientErrors = []error{
	ErrInvalidRoomID,
	ErrInvalidMessage,
	ErrUnknownEvent,
	ErrMalformedFrame,
	ErrRoomFull,
	ErrTooManyRooms,
	ErrRateLimited,
}

// errorKind returns the stable client-facing message for err. Wrapped
// detail is dropped so decode errors never leak to the wire.
func errorKind(err error) string {
	for _, kind := range clientErrors {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "internal error"
}
