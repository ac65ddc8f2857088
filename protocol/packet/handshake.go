package packet

import "github.com/cooldogedev/lumen/protocol"

const (
	// NextStateStatus is the next state requested by clients pinging the server.
	NextStateStatus int32 = 1
	// NextStateLogin is the next state requested by clients joining the server.
	NextStateLogin int32 = 2
)

// HandshakeHandler handles Handshake packets.
type HandshakeHandler interface {
	HandleHandshake(pk *Handshake) bool
}

// Handshake is the first packet sent by a client. It declares the protocol version of the client,
// the address it used to connect and the state it wants to move to.
type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	Port            uint16
	NextState       int32
}

// Decode ...
func (pk *Handshake) Decode(r *protocol.Reader, _ protocol.Direction, _ *protocol.Version) error {
	pk.ProtocolVersion = r.VarInt()
	pk.ServerAddress = r.String(protocol.DefaultMaxStringSize)
	pk.Port = r.Uint16()
	pk.NextState = r.VarInt()
	return r.Err()
}

// Encode ...
func (pk *Handshake) Encode(w *protocol.Writer, _ protocol.Direction, _ *protocol.Version) error {
	w.VarInt(pk.ProtocolVersion)
	w.String(pk.ServerAddress)
	w.Uint16(pk.Port)
	w.VarInt(pk.NextState)
	return nil
}

// Handle ...
func (pk *Handshake) Handle(h Handler) bool {
	if hh, ok := h.(HandshakeHandler); ok {
		return hh.HandleHandshake(pk)
	}
	return false
}
