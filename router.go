package main

import (
	"fmt"
	"log/slog"
)

// Router fans text updates out to the other members of the sender's room.
type Router struct {
	registry *Registry
	metrics  *Metrics
}

func NewRouter(registry *Registry, metrics *Metrics) *Router {
	return &Router{registry: registry, metrics: metrics}
}

// RouteText delivers text to every member of roomID except sender and
// returns how many recipients accepted the frame. A nil text means the
// message was absent. The sender must currently be a member of roomID.
//
// Sends are non-blocking, so a stalled recipient only loses its own copy.
func (rt *Router) RouteText(sender Conn, roomID string, text *string) (int, error) {
	if err := validateRoomID(roomID); err != nil {
		return 0, err
	}
	if text == nil {
		return 0, fmt.Errorf("%w: missing message", ErrInvalidMessage)
	}
	if !rt.registry.IsMember(roomID, sender) {
		return 0, ErrNotAMember
	}

	recipients := rt.registry.MembersExcept(roomID, sender)
	if len(recipients) == 0 {
		return 0, nil
	}

	frame := encodeEvent(EventReceive, *text, sender.ID())
	delivered := 0
	for _, c := range recipients {
		if err := c.Send(frame); err != nil {
			rt.metrics.deliveryDropped()
			slog.Debug("text dropped", "room", roomID, "conn", c.ID(), "err", err)
			continue
		}
		delivered++
	}
	rt.metrics.routed(delivered)
	return delivered, nil
}
