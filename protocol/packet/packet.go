// Package packet implements the packets of Minecraft: Java Edition understood by the proxy, and the
// registry mapping connection state, direction, protocol version and packet id to them. Packets not
// known to the registry are kept as opaque Unknown packets so that they can be forwarded unchanged.
package packet

import (
	"errors"

	"github.com/cooldogedev/lumen/protocol"
)

// ErrUnregistered is returned when a packet is encoded in a state, direction or version it has no
// id in.
var ErrUnregistered = errors.New("packet: not registered")

// Handler receives packets dispatched by Packet.Handle. A handler implements the XxxHandler
// interface of every packet it understands in its state; packets whose interface it does not
// implement are reported as not handled.
type Handler any

// Packet is a packet that can be written to a connection.
type Packet interface {
	// Encode writes the fields of the packet for the direction and version passed.
	Encode(w *protocol.Writer, dir protocol.Direction, v *protocol.Version) error
	// Handle dispatches the packet to the handler and reports whether the handler consumed it.
	Handle(h Handler) bool
}

// Decodable is a Packet that can also be read from a connection. Packets that are only ever sent
// by the proxy do not implement it, so the registry can never produce them from incoming data.
type Decodable interface {
	Packet
	// Decode reads the fields of the packet for the direction and version passed. It must consume
	// the entire payload.
	Decode(r *protocol.Reader, dir protocol.Direction, v *protocol.Version) error
}

// Unknown is a packet with an id the registry holds no type for. Its payload is kept verbatim so
// that it can be forwarded.
type Unknown struct {
	ID      int32
	Payload []byte
}

// Encode ...
func (pk *Unknown) Encode(w *protocol.Writer, _ protocol.Direction, _ *protocol.Version) error {
	w.Bytes(pk.Payload)
	return nil
}

// Handle always reports the packet as not handled.
func (pk *Unknown) Handle(Handler) bool {
	return false
}
