// Package relay forwards real-time drawing events to the other members of a room.
package relay

import (
	"go.uber.org/zap"
)

// Envelope is one outbound websocket frame.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Transport delivers envelopes to connections. Implementations must not block:
// a frame that cannot be queued is dropped.
type Transport interface {
	Send(connectionID string, envelope Envelope)
	Broadcast(envelope Envelope)
}

// MembershipSource exposes the current member list of a room.
type MembershipSource interface {
	Members(roomID string) []string
}

// Relay is stateless fan-out. It consults membership at dispatch time and keeps no
// history, so a connection that joins later never sees earlier events.
type Relay struct {
	members   MembershipSource
	transport Transport
	logger    *zap.Logger
}

// New constructs a Relay.
func New(members MembershipSource, transport Transport, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		members:   members,
		transport: transport,
		logger:    logger,
	}
}

// Forward sends the envelope to every member of roomID except senderID and returns
// the number of recipients. Unknown or empty rooms are a silent no-op.
func (r *Relay) Forward(roomID, senderID string, envelope Envelope) int {
	recipients := 0
	for _, connectionID := range r.members.Members(roomID) {
		if connectionID == senderID {
			continue
		}
		r.transport.Send(connectionID, envelope)
		recipients++
	}
	if recipients > 0 {
		r.logger.Debug("relayed event",
			zap.String("event", envelope.Event),
			zap.String("room_id", roomID),
			zap.String("sender_id", senderID),
			zap.Int("recipients", recipients))
	}
	return recipients
}
