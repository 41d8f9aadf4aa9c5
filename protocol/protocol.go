// Package protocol defines the datagram messages exchanged with clients and
// the msgpack envelope codec. One message per UDP datagram.
package protocol

import "github.com/vmihailenco/msgpack/v5"

const (
	MsgConnect        = "connect"
	MsgUpdateVelocity = "update_velocity"
	MsgUpdatePosition = "update_position"
)

// Envelope wraps every datagram: a type tag and the raw payload bytes,
// decoded in a second pass once the type is known.
type Envelope struct {
	T string             `msgpack:"t"`
	P msgpack.RawMessage `msgpack:"p"`
}

// Command is the closed set of inbound commands. Decoding produces exactly
// one of Connect or UpdateVelocity; handlers switch over these exhaustively.
type Command interface {
	isCommand()
}

// Connect registers a player and the endpoint its updates go to. The id is
// client-generated and taken at face value.
type Connect struct {
	PlayerID   string `msgpack:"playerId"`
	ClientIP   string `msgpack:"clientIp"`
	ClientPort int    `msgpack:"clientPort"`
}

// UpdateVelocity is a directional input for a known player. Each axis is
// -1, 0 or 1. Angular is carried for protocol completeness but has no
// physical effect.
type UpdateVelocity struct {
	PlayerID string `msgpack:"playerId"`
	VX       int    `msgpack:"vx"`
	VY       int    `msgpack:"vy"`
	Angular  int    `msgpack:"angular"`
}

func (Connect) isCommand()        {}
func (UpdateVelocity) isCommand() {}

// UpdatePosition is the outbound per-player state, sent to every client on
// every tick.
type UpdatePosition struct {
	PlayerID string  `msgpack:"playerId"`
	X        float64 `msgpack:"x"`
	Y        float64 `msgpack:"y"`
	Angle    float64 `msgpack:"angle"` // radians
}
